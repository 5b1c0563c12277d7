package engine

import (
	"context"
	"slices"

	"github.com/aretw0/wflow/pkg/domain"
)

// ListAggregates prints every aggregate known to the event store.
type ListAggregates struct{}

func (ListAggregates) Name() string { return "list-aggregates" }
func (ListAggregates) isCommand()   {}

func (ListAggregates) load(ctx context.Context, ec *Context, _ domain.State) ([]string, error) {
	store, err := ec.App.eventStore()
	if err != nil {
		return nil, err
	}
	return store.ListAggregates(ctx)
}

func (ListAggregates) validate([]string) error { return nil }

func (ListAggregates) emit(_ context.Context, _ *Context, _ domain.State, ids []string) ([]domain.Event, error) {
	return []domain.Event{domain.NewEvent(domain.AggregatesListedEvent{
		AggregateIDs:   slices.Clone(ids),
		AggregateCount: len(ids),
	})}, nil
}

func (ListAggregates) effect(ctx context.Context, ec *Context, _, _ domain.State) error {
	store, err := ec.App.eventStore()
	if err != nil {
		return err
	}
	ids, err := store.ListAggregates(ctx)
	if err != nil {
		return err
	}
	r := ec.render()
	if len(ids) == 0 {
		r.Message("No aggregates found")
		return nil
	}
	r.Message("Aggregates (%d):", len(ids))
	for _, id := range ids {
		r.Message("  %s", id)
	}
	return nil
}

// ReplayAggregate rebuilds an aggregate's state from its events and prints it.
type ReplayAggregate struct {
	ID string `json:"aggregate_id"`
}

func (ReplayAggregate) Name() string { return "replay-aggregate" }
func (ReplayAggregate) isCommand()   {}

type aggregateLog struct {
	id     string
	events []domain.AggregateEvent
}

func (c ReplayAggregate) load(ctx context.Context, ec *Context, _ domain.State) (aggregateLog, error) {
	if c.ID == "" {
		return aggregateLog{}, domain.ValidationError("aggregate id is required")
	}
	store, err := ec.App.eventStore()
	if err != nil {
		return aggregateLog{}, err
	}
	events, err := store.GetEvents(ctx, c.ID)
	if err != nil {
		return aggregateLog{}, err
	}
	return aggregateLog{id: c.ID, events: events}, nil
}

func (ReplayAggregate) validate(l aggregateLog) error {
	if len(l.events) == 0 {
		return &domain.Error{Kind: domain.KindValidation, Msg: "aggregate " + l.id + " has no events", Err: domain.ErrSessionNotFound}
	}
	return nil
}

func (ReplayAggregate) emit(_ context.Context, _ *Context, _ domain.State, l aggregateLog) ([]domain.Event, error) {
	return []domain.Event{domain.NewEvent(domain.AggregateReplayedEvent{
		AggregateID: l.id,
		EventsCount: len(l.events),
	})}, nil
}

func (c ReplayAggregate) effect(ctx context.Context, ec *Context, _, _ domain.State) error {
	store, err := ec.App.eventStore()
	if err != nil {
		return err
	}
	store.Invalidate(c.ID)
	state, err := store.GetCurrentState(ctx, c.ID)
	if err != nil {
		return err
	}
	doc, err := domain.MarshalState(state)
	if err != nil {
		return err
	}
	r := ec.render()
	r.Message("Aggregate %s is in state %s", c.ID, state.Phase())
	r.Markdown("```json\n" + string(doc) + "\n```")
	return nil
}

// PurgeAggregate drops the first ToSequence retained events of an aggregate.
// A zero ToSequence drops them all.
type PurgeAggregate struct {
	ID         string `json:"aggregate_id"`
	ToSequence uint64 `json:"to_sequence,omitempty"`
}

func (PurgeAggregate) Name() string { return "purge-aggregate" }
func (PurgeAggregate) isCommand()   {}

type purgeRange struct {
	id      string
	to      uint64
	highest uint64
}

func (c PurgeAggregate) load(ctx context.Context, ec *Context, _ domain.State) (purgeRange, error) {
	if c.ID == "" {
		return purgeRange{}, domain.ValidationError("aggregate id is required")
	}
	journal, err := ec.App.journal()
	if err != nil {
		return purgeRange{}, err
	}
	highest, err := journal.HighestSequenceNr(ctx, c.ID)
	if err != nil {
		return purgeRange{}, err
	}
	to := c.ToSequence
	if to == 0 {
		to = highest
	}
	return purgeRange{id: c.ID, to: to, highest: highest}, nil
}

func (PurgeAggregate) validate(p purgeRange) error {
	if p.to > p.highest {
		return domain.ValidationError("cannot purge %d events of %s: only %d retained", p.to, p.id, p.highest)
	}
	return nil
}

func (PurgeAggregate) emit(_ context.Context, _ *Context, _ domain.State, p purgeRange) ([]domain.Event, error) {
	return []domain.Event{domain.NewEvent(domain.AggregatePurgedEvent{
		AggregateID: p.id,
		ToSequence:  p.to,
	})}, nil
}

func (c PurgeAggregate) effect(ctx context.Context, ec *Context, _, _ domain.State) error {
	journal, err := ec.App.journal()
	if err != nil {
		return err
	}
	to := c.ToSequence
	if to == 0 {
		if to, err = journal.HighestSequenceNr(ctx, c.ID); err != nil {
			return err
		}
	}
	if err := journal.DeleteEvents(ctx, c.ID, to); err != nil {
		return err
	}
	if store, err := ec.App.eventStore(); err == nil {
		store.Invalidate(c.ID)
	}
	ec.render().Success("Purged %d events of %s", to, c.ID)
	return nil
}
