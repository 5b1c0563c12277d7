package ports

import "context"

// CloneOptions tunes GitClient.CloneRepository.
type CloneOptions struct {
	SSHKey string // Path to a private key; empty uses the default agent.
	Branch string
}

// GitClient fetches workflow definitions from a remote repository.
type GitClient interface {
	// CloneRepository replaces the contents of destination with the files of url
	// and returns the checked out commit id.
	CloneRepository(ctx context.Context, url, destination string, opts CloneOptions) (string, error)
}

// ShellRunner runs a shell snippet and returns its standard output.
type ShellRunner interface {
	Output(ctx context.Context, script string) (string, error)
}

// Clipboard copies text to the system clipboard.
type Clipboard interface {
	Copy(ctx context.Context, text string) error
}

// Prompter asks the user for input.
type Prompter interface {
	Select(ctx context.Context, message string, options []string) (string, error)
	Input(ctx context.Context, message, defaultValue string) (string, error)
}

// Renderer writes user-facing output.
type Renderer interface {
	Message(format string, args ...any)
	Success(format string, args ...any)
	Warning(format string, args ...any)
	// Markdown renders a markdown document.
	Markdown(doc string)
}

// Settings are the persisted user preferences.
type Settings interface {
	Language() string
	SetLanguage(language string) error
	ResourceURL() string
	SetResourceURL(url string) error
	StorageBackend() string
	SetStorageBackend(backend string) error
	WorkflowsDir() string
}
