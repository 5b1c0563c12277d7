package actor

import (
	"context"
	"fmt"
	"time"

	"github.com/aretw0/wflow/pkg/domain"
)

const (
	// DefaultMailboxSize is the buffer of every actor mailbox.
	DefaultMailboxSize = 64
	// DefaultCommandTimeout bounds the wait for a command reply.
	DefaultCommandTimeout = 30 * time.Second
)

type reply[T any] struct {
	value T
	err   error
}

// mailbox is the address of an actor goroutine.
// The channel is never closed; the loop exits on a stop message and closes done.
type mailbox[M any] struct {
	ch   chan M
	done chan struct{}
}

func newMailbox[M any](size int) *mailbox[M] {
	if size <= 0 {
		size = DefaultMailboxSize
	}
	return &mailbox[M]{
		ch:   make(chan M, size),
		done: make(chan struct{}),
	}
}

func (m *mailbox[M]) stopped() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}

// send enqueues msg, waiting for room until ctx is done.
func (m *mailbox[M]) send(ctx context.Context, msg M) error {
	if m.stopped() {
		return domain.ErrActorStopped
	}
	select {
	case m.ch <- msg:
		return nil
	case <-m.done:
		return domain.ErrActorStopped
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", domain.ErrSendFailed, ctx.Err())
	}
}

// cast enqueues msg without blocking. A full mailbox hands delivery to a goroutine.
func (m *mailbox[M]) cast(msg M) error {
	if m.stopped() {
		return domain.ErrActorStopped
	}
	select {
	case m.ch <- msg:
	default:
		go func() {
			select {
			case m.ch <- msg:
			case <-m.done:
			}
		}()
	}
	return nil
}

// call sends the message built around a reply channel and waits for the answer.
// A zero timeout waits until ctx is done or the actor stops.
func call[T, M any](ctx context.Context, m *mailbox[M], timeout time.Duration, build func(chan<- reply[T]) M) (T, error) {
	var zero T
	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C

		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	replies := make(chan reply[T], 1)
	if err := m.send(ctx, build(replies)); err != nil {
		return zero, err
	}

	select {
	case r := <-replies:
		return r.value, r.err
	case <-m.done:
		select {
		case r := <-replies:
			return r.value, r.err
		default:
			return zero, domain.ErrActorStopped
		}
	case <-expired:
		return zero, domain.ErrCallTimeout
	case <-ctx.Done():
		if timeout > 0 && ctx.Err() == context.DeadlineExceeded {
			return zero, domain.ErrCallTimeout
		}
		return zero, ctx.Err()
	}
}
