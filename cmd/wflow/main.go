// Command wflow discovers command workflows, resolves their arguments
// interactively and copies the generated command to the clipboard.
package main

func main() {
	Execute()
}
