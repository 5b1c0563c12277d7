package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/ports"
)

// CustomValueOption is appended to static enum choices to allow free input.
const CustomValueOption = "(enter a custom value)"

// Resolver asks for the value of each workflow argument.
type Resolver struct {
	Prompter ports.Prompter
	Shell    ports.ShellRunner
	Renderer ports.Renderer
}

// ResolveAll resolves args in declaration order. Values in preset are taken as is;
// earlier values are visible to the dynamic resolution of later ones.
func (r *Resolver) ResolveAll(ctx context.Context, args []domain.WorkflowArgument, preset map[string]string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, arg := range args {
		if v, ok := preset[arg.Name]; ok {
			values[arg.Name] = v
			continue
		}
		v, err := r.Resolve(ctx, arg, values)
		if err != nil {
			return nil, err
		}
		values[arg.Name] = v
	}
	return values, nil
}

// Resolve asks for a single argument given the values resolved so far.
func (r *Resolver) Resolve(ctx context.Context, arg domain.WorkflowArgument, current map[string]string) (string, error) {
	switch arg.ResolvedType() {
	case domain.ArgumentEnum:
		switch {
		case len(arg.EnumVariants) > 0:
			return r.resolveStaticEnum(ctx, arg)
		case arg.EnumCommand != "":
			return r.resolveDynamicEnum(ctx, arg, current)
		}
		return "", domain.ValidationError("enum argument %s has neither enum_variants nor enum_command", arg.Name)
	default:
		return r.input(ctx, arg)
	}
}

func (r *Resolver) prompter(arg domain.WorkflowArgument) (ports.Prompter, error) {
	if r.Prompter == nil {
		return nil, domain.ValidationError("argument %s needs a value but no prompt is available", arg.Name)
	}
	return r.Prompter, nil
}

func (r *Resolver) resolveStaticEnum(ctx context.Context, arg domain.WorkflowArgument) (string, error) {
	p, err := r.prompter(arg)
	if err != nil {
		return "", err
	}
	options := append(append([]string{}, arg.EnumVariants...), CustomValueOption)
	choice, err := p.Select(ctx, "Select "+arg.Name, options)
	if err != nil {
		return "", domain.WrapError(domain.KindValidation, "select "+arg.Name, err)
	}
	if choice == CustomValueOption {
		return r.input(ctx, arg)
	}
	return choice, nil
}

func (r *Resolver) resolveDynamicEnum(ctx context.Context, arg domain.WorkflowArgument, current map[string]string) (string, error) {
	script := arg.EnumCommand
	if ref := arg.DynamicResolution; ref != "" {
		v, ok := current[ref]
		if !ok {
			return "", domain.ValidationError("argument %s depends on %s, which is not resolved yet", arg.Name, ref)
		}
		script = strings.ReplaceAll(script, "{{"+ref+"}}", v)
	}
	if r.Shell == nil {
		return "", domain.NewError(domain.KindConfiguration, "no shell available to list values of %s", arg.Name)
	}
	if r.Renderer != nil {
		r.Renderer.Message("Executing: %s", script)
	}

	out, err := r.Shell.Output(ctx, script)
	if err != nil {
		return "", domain.WrapError(domain.KindValidation, "list "+arg.Name, err)
	}
	var options []string
	for line := range strings.Lines(out) {
		if opt := strings.TrimSpace(line); opt != "" {
			options = append(options, opt)
		}
	}
	if len(options) == 0 {
		return "", domain.ValidationError("no options found for %s", arg.Name)
	}

	p, err := r.prompter(arg)
	if err != nil {
		return "", err
	}
	choice, err := p.Select(ctx, "Select "+arg.Name, options)
	if err != nil {
		return "", domain.WrapError(domain.KindValidation, "select "+arg.Name, err)
	}
	return choice, nil
}

func (r *Resolver) input(ctx context.Context, arg domain.WorkflowArgument) (string, error) {
	p, err := r.prompter(arg)
	if err != nil {
		return "", err
	}
	def := ""
	if arg.HasDefault() {
		def = arg.DefaultValue
	}
	msg := "Enter " + arg.Name
	if arg.Description != "" {
		msg = fmt.Sprintf("%s (%s)", msg, arg.Description)
	}
	v, err := p.Input(ctx, msg, def)
	if err != nil {
		return "", domain.WrapError(domain.KindValidation, "input "+arg.Name, err)
	}
	return v, nil
}
