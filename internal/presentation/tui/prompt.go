package tui

import (
	"context"
	"errors"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"golang.org/x/term"

	"github.com/aretw0/wflow/pkg/domain"
)

// ErrNotInteractive is returned when stdin is not a terminal.
var ErrNotInteractive = errors.New("stdin is not a terminal")

// Prompter implements ports.Prompter with survey.
type Prompter struct {
	stdio terminal.Stdio
	isTTY func() bool
}

// NewPrompter creates a prompter on the process standard streams.
func NewPrompter() *Prompter {
	return &Prompter{
		stdio: terminal.Stdio{In: os.Stdin, Out: os.Stdout, Err: os.Stderr},
		isTTY: func() bool { return term.IsTerminal(int(os.Stdin.Fd())) },
	}
}

// Select asks the user to pick one of options.
func (p *Prompter) Select(ctx context.Context, message string, options []string) (string, error) {
	if len(options) == 0 {
		return "", domain.ValidationError("no options for %q", message)
	}
	var answer string
	err := p.ask(ctx, &survey.Select{Message: message, Options: options, PageSize: 15}, &answer)
	return answer, err
}

// Input asks for free text, prefilled with defaultValue.
func (p *Prompter) Input(ctx context.Context, message, defaultValue string) (string, error) {
	var answer string
	err := p.ask(ctx, &survey.Input{Message: message, Default: defaultValue}, &answer)
	return answer, err
}

func (p *Prompter) ask(ctx context.Context, prompt survey.Prompt, answer *string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.isTTY() {
		return domain.WrapError(domain.KindExecution, "prompt", ErrNotInteractive)
	}
	err := survey.AskOne(prompt, answer, survey.WithStdio(p.stdio.In, p.stdio.Out, p.stdio.Err))
	if errors.Is(err, terminal.InterruptErr) {
		return domain.WrapError(domain.KindExecution, "prompt", context.Canceled)
	}
	if err != nil {
		return domain.WrapError(domain.KindExecution, "prompt", err)
	}
	return nil
}
