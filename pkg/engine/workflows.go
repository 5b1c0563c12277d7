package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/aretw0/wflow/pkg/domain"
)

// DiscoverWorkflows loads the workflow definitions from the workflows directory.
type DiscoverWorkflows struct{}

func (DiscoverWorkflows) Name() string { return "discover-workflows" }
func (DiscoverWorkflows) isCommand()   {}

func (DiscoverWorkflows) load(_ context.Context, ec *Context, _ domain.State) ([]discovered, error) {
	settings, err := ec.App.settings()
	if err != nil {
		return nil, err
	}
	return loadWorkflowDir(settings.WorkflowsDir())
}

func (DiscoverWorkflows) validate([]discovered) error { return nil }

func (DiscoverWorkflows) emit(_ context.Context, _ *Context, _ domain.State, found []discovered) ([]domain.Event, error) {
	events := make([]domain.Event, 0, len(found))
	for _, d := range found {
		events = append(events, domain.NewEvent(domain.WorkflowDiscoveredEvent{
			Workflow: d.workflow,
			FilePath: d.path,
		}))
	}
	return events, nil
}

func (DiscoverWorkflows) effect(context.Context, *Context, domain.State, domain.State) error {
	return nil
}

// ListWorkflows prints the discovered workflows.
type ListWorkflows struct{}

func (ListWorkflows) Name() string { return "list-workflows" }
func (ListWorkflows) isCommand()   {}

func (ListWorkflows) load(_ context.Context, _ *Context, s domain.State) ([]domain.Workflow, error) {
	switch st := s.(type) {
	case domain.WorkflowsDiscovered:
		return st.Workflows, nil
	case domain.Initial:
		return nil, nil
	}
	return nil, domain.ValidationError("workflows have not been discovered yet (state %s)", s.Phase())
}

func (ListWorkflows) validate([]domain.Workflow) error { return nil }

func (ListWorkflows) emit(_ context.Context, _ *Context, _ domain.State, workflows []domain.Workflow) ([]domain.Event, error) {
	names := make([]string, len(workflows))
	for i, w := range workflows {
		names[i] = w.Name
	}
	return []domain.Event{domain.NewEvent(domain.AvailableWorkflowsListedEvent{Workflows: names})}, nil
}

func (ListWorkflows) effect(_ context.Context, ec *Context, _, next domain.State) error {
	r := ec.render()
	r.Message("Available workflows:")
	listed, ok := next.(domain.WorkflowsListed)
	if !ok || len(listed.Workflows) == 0 {
		r.Message("  no workflows found")
		return nil
	}
	for _, w := range listed.Workflows {
		if w.Description != "" {
			r.Message("  - %s: %s", w.Name, w.Description)
		} else {
			r.Message("  - %s", w.Name)
		}
	}
	return nil
}

// SelectWorkflow picks one discovered workflow. An empty Workflow asks the user.
type SelectWorkflow struct {
	Workflow string `json:"workflow,omitempty"`
}

func (SelectWorkflow) Name() string { return "select-workflow" }
func (SelectWorkflow) isCommand()   {}

type selection struct {
	workflows []domain.Workflow
	name      string
}

func (c SelectWorkflow) load(ctx context.Context, ec *Context, s domain.State) (selection, error) {
	st, ok := s.(domain.WorkflowsDiscovered)
	if !ok {
		return selection{}, domain.ValidationError("workflows must be discovered before selecting one (state %s)", s.Phase())
	}
	sel := selection{workflows: st.Workflows, name: c.Workflow}
	if sel.name != "" {
		return sel, nil
	}

	if len(st.Workflows) == 0 {
		return selection{}, domain.ValidationError("no workflows available to select")
	}
	if ec.App.Prompter == nil {
		return selection{}, domain.ValidationError("no workflow name given and no prompt is available")
	}
	names := make([]string, len(st.Workflows))
	for i, w := range st.Workflows {
		names[i] = w.Name
	}
	choice, err := ec.App.Prompter.Select(ctx, "Select a workflow", names)
	if err != nil {
		return selection{}, domain.WrapError(domain.KindValidation, "select workflow", err)
	}
	sel.name = choice
	return sel, nil
}

func (SelectWorkflow) validate(sel selection) error {
	if _, ok := domain.FindWorkflow(sel.workflows, sel.name); !ok {
		return domain.ValidationError("workflow %q not found", sel.name)
	}
	return nil
}

func (SelectWorkflow) emit(_ context.Context, ec *Context, _ domain.State, sel selection) ([]domain.Event, error) {
	wf, _ := domain.FindWorkflow(sel.workflows, sel.name)
	return []domain.Event{domain.NewEvent(domain.WorkflowSelectedEvent{
		Workflow: wf,
		User:     ec.Workflow.User,
	})}, nil
}

func (SelectWorkflow) effect(_ context.Context, ec *Context, _, next domain.State) error {
	st, ok := next.(domain.WorkflowSelected)
	if !ok {
		ec.render().Warning("no workflow selected")
		return nil
	}
	ec.render().Markdown(describeWorkflow(st.Selected))
	return nil
}

func describeWorkflow(w domain.Workflow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", w.Name)
	if w.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", w.Description)
	}
	fmt.Fprintf(&b, "```sh\n%s\n```\n", w.Command)
	if len(w.Arguments) > 0 {
		b.WriteString("\n| Argument | Type | Description |\n|---|---|---|\n")
		for _, a := range w.Arguments {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", a.Name, a.ResolvedType(), a.Description)
		}
	}
	if len(w.Tags) > 0 {
		fmt.Fprintf(&b, "\nTags: %s\n", strings.Join(w.Tags, ", "))
	}
	return b.String()
}

// StartWorkflow begins an execution of the selected workflow.
type StartWorkflow struct{}

func (StartWorkflow) Name() string { return "start-workflow" }
func (StartWorkflow) isCommand()   {}

func (StartWorkflow) load(_ context.Context, _ *Context, s domain.State) (domain.Workflow, error) {
	st, ok := s.(domain.WorkflowSelected)
	if !ok {
		return domain.Workflow{}, domain.ValidationError("no workflow selected to start (state %s)", s.Phase())
	}
	return st.Selected, nil
}

func (StartWorkflow) validate(domain.Workflow) error { return nil }

func (StartWorkflow) emit(_ context.Context, ec *Context, _ domain.State, _ domain.Workflow) ([]domain.Event, error) {
	return []domain.Event{domain.NewEvent(domain.WorkflowStartedEvent{
		User:        ec.Workflow.User,
		Hostname:    ec.Workflow.Hostname,
		ExecutionID: uuid.NewString(),
	})}, nil
}

func (StartWorkflow) effect(_ context.Context, ec *Context, _, next domain.State) error {
	st, ok := next.(domain.WorkflowStarted)
	if !ok {
		ec.render().Warning("no workflow started")
		return nil
	}
	ec.render().Message("Starting workflow %s (execution %s)", st.Selected.Name, st.ExecutionID)
	return nil
}

// ResolveArguments resolves every argument of the started workflow.
// Values in Preset skip the prompt.
type ResolveArguments struct {
	Preset map[string]string `json:"preset,omitempty"`
}

func (ResolveArguments) Name() string { return "resolve-arguments" }
func (ResolveArguments) isCommand()   {}

type resolution struct {
	workflow domain.Workflow
	values   map[string]string
}

func (c ResolveArguments) load(ctx context.Context, ec *Context, s domain.State) (resolution, error) {
	st, ok := s.(domain.WorkflowStarted)
	if !ok {
		return resolution{}, domain.ValidationError("no workflow started to resolve arguments for (state %s)", s.Phase())
	}
	r := &Resolver{Prompter: ec.App.Prompter, Shell: ec.App.Shell, Renderer: ec.App.Renderer}
	values, err := r.ResolveAll(ctx, st.Selected.Arguments, c.Preset)
	if err != nil {
		return resolution{}, err
	}
	return resolution{workflow: st.Selected, values: values}, nil
}

func (ResolveArguments) validate(res resolution) error {
	for _, arg := range res.workflow.Arguments {
		v, ok := res.values[arg.Name]
		if !ok {
			return domain.ValidationError("argument %s was not resolved", arg.Name)
		}
		switch arg.ResolvedType() {
		case domain.ArgumentNumber:
			if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
				return domain.ValidationError("argument %s must be a number, got %q", arg.Name, v)
			}
		case domain.ArgumentBoolean:
			if _, err := strconv.ParseBool(strings.TrimSpace(v)); err != nil {
				return domain.ValidationError("argument %s must be a boolean, got %q", arg.Name, v)
			}
		}
	}
	return nil
}

func (ResolveArguments) emit(_ context.Context, _ *Context, _ domain.State, res resolution) ([]domain.Event, error) {
	return []domain.Event{domain.NewEvent(domain.WorkflowArgumentsResolvedEvent{
		Arguments: maps.Clone(res.values),
	})}, nil
}

func (ResolveArguments) effect(ctx context.Context, ec *Context, _, next domain.State) error {
	st, ok := next.(domain.WorkflowArgumentsResolved)
	if !ok {
		ec.render().Warning("no arguments resolved")
		return nil
	}
	r := ec.render()
	r.Message("Resolved arguments for %s:", st.Selected.Name)
	for _, k := range slices.Sorted(maps.Keys(st.Arguments)) {
		r.Message("  %s = %s", k, st.Arguments[k])
	}

	rendered, err := RenderCommand(st.Selected.Command, st.Arguments)
	if err != nil {
		return err
	}
	r.Message("Generated command:")
	r.Message("%s", rendered)

	if ec.App.Clipboard == nil {
		return nil
	}
	if err := ec.App.Clipboard.Copy(ctx, rendered); err != nil {
		r.Warning("Failed to copy to clipboard: %v", err)
		ec.logger().Warn("Clipboard copy failed", "err", err)
	} else {
		r.Success("Command copied to clipboard")
	}
	return nil
}

// CompleteWorkflow finishes the execution and ends the session.
type CompleteWorkflow struct{}

func (CompleteWorkflow) Name() string { return "complete-workflow" }
func (CompleteWorkflow) isCommand()   {}

func (CompleteWorkflow) load(_ context.Context, _ *Context, s domain.State) (domain.Workflow, error) {
	st, ok := s.(domain.WorkflowArgumentsResolved)
	if !ok {
		return domain.Workflow{}, domain.ValidationError("no workflow ready to complete (state %s)", s.Phase())
	}
	return st.Selected, nil
}

func (CompleteWorkflow) validate(domain.Workflow) error { return nil }

func (CompleteWorkflow) emit(context.Context, *Context, domain.State, domain.Workflow) ([]domain.Event, error) {
	return []domain.Event{domain.NewEvent(domain.WorkflowCompletedEvent{})}, nil
}

func (CompleteWorkflow) effect(_ context.Context, ec *Context, _, next domain.State) error {
	if st, ok := next.(domain.WorkflowCompleted); ok {
		ec.render().Success("Workflow %s completed", st.Completed.Name)
	}
	return ec.CompleteSession()
}
