package engine

import (
	"context"
	"errors"

	"github.com/aretw0/wflow/pkg/domain"
)

// Command is a unit of intent. The set is closed: only this package defines commands.
type Command interface {
	// Name is the kebab-case command name used in logs, spans and the admin API.
	Name() string
	isCommand()
}

// phases is the four-phase protocol, typed by the command's loaded data L.
type phases[L any] interface {
	Command
	load(ctx context.Context, ec *Context, s domain.State) (L, error)
	validate(loaded L) error
	emit(ctx context.Context, ec *Context, s domain.State, loaded L) ([]domain.Event, error)
	effect(ctx context.Context, ec *Context, prev, next domain.State) error
}

// pipeline is a command with its loaded-data type bound.
type pipeline struct {
	process func(ctx context.Context, ec *Context, s domain.State) ([]domain.Event, error)
	effect  func(ctx context.Context, ec *Context, prev, next domain.State) error
}

func bind[L any](cmd phases[L]) pipeline {
	return pipeline{
		process: func(ctx context.Context, ec *Context, s domain.State) ([]domain.Event, error) {
			loaded, err := cmd.load(ctx, ec, s)
			if err != nil {
				return nil, classify(domain.KindExecution, "load", cmd, ec, err)
			}
			if err := cmd.validate(loaded); err != nil {
				return nil, classify(domain.KindValidation, "validate", cmd, ec, err)
			}
			events, err := cmd.emit(ctx, ec, s, loaded)
			if err != nil {
				return nil, classify(domain.KindEvent, "emit", cmd, ec, err)
			}
			return events, nil
		},
		effect: func(ctx context.Context, ec *Context, prev, next domain.State) error {
			if err := cmd.effect(ctx, ec, prev, next); err != nil {
				return classify(domain.KindExecution, "effect", cmd, ec, err)
			}
			return nil
		},
	}
}

func pipelineFor(cmd Command) (pipeline, error) {
	switch c := cmd.(type) {
	case DiscoverWorkflows:
		return bind[[]discovered](c), nil
	case ListWorkflows:
		return bind[[]domain.Workflow](c), nil
	case SelectWorkflow:
		return bind[selection](c), nil
	case StartWorkflow:
		return bind[domain.Workflow](c), nil
	case ResolveArguments:
		return bind[resolution](c), nil
	case CompleteWorkflow:
		return bind[domain.Workflow](c), nil
	case SyncWorkflows:
		return bind[syncTarget](c), nil
	case RecordSyncResult:
		return bind[syncResult](c), nil
	case SetLanguage:
		return bind[string](c), nil
	case GetCurrentLanguage:
		return bind[string](c), nil
	case ListLanguages:
		return bind[[]string](c), nil
	case SetStorageBackend:
		return bind[string](c), nil
	case ListAggregates:
		return bind[[]string](c), nil
	case ReplayAggregate:
		return bind[aggregateLog](c), nil
	case PurgeAggregate:
		return bind[purgeRange](c), nil
	}
	return pipeline{}, domain.ValidationError("unknown command %T", cmd)
}

// classify wraps err as kind unless it is already classified.
// A classified error returned directly gets the missing command context filled in.
func classify(kind domain.Kind, phase string, cmd Command, ec *Context, err error) error {
	if de, ok := err.(*domain.Error); ok {
		out := *de
		if out.Op == "" {
			out.Op = phase
		}
		if out.SessionID == "" {
			out.SessionID = ec.SessionID()
		}
		if out.Command == "" {
			out.Command = cmd.Name()
		}
		return &out
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return &domain.Error{
		Kind:      kind,
		Op:        phase,
		SessionID: ec.SessionID(),
		Command:   cmd.Name(),
		Err:       err,
	}
}
