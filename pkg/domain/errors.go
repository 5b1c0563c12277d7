package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the routing table or a store.
var ErrSessionNotFound = errors.New("session not found")

// ErrInvalidTransition is returned when an event cannot be applied to the current state.
var ErrInvalidTransition = errors.New("invalid state transition")

// ErrUnknownEventType is returned when a persisted event carries an unknown discriminator.
var ErrUnknownEventType = errors.New("unknown event type")

// ErrNotInitialized is returned when commands are submitted before the guardian started its manager.
var ErrNotInitialized = errors.New("workflow system not initialized")

// ErrActorStopped is returned when a message targets an actor that is no longer running.
var ErrActorStopped = errors.New("actor stopped")

// ErrCallTimeout is returned when a request/response call gets no reply in time.
var ErrCallTimeout = errors.New("call timed out")

// ErrSendFailed is returned when a message cannot be delivered to a mailbox.
var ErrSendFailed = errors.New("message send failed")

// Kind classifies an Error.
type Kind string

const (
	KindGeneric        Kind = "generic"
	KindFileSystem     Kind = "filesystem"
	KindConfiguration  Kind = "configuration"
	KindValidation     Kind = "validation"
	KindExecution      Kind = "execution"
	KindEvent          Kind = "event"
	KindNetwork        Kind = "network"
	KindSerialization  Kind = "serialization"
	KindSpawn          Kind = "spawn"
	KindTimeout        Kind = "timeout"
	KindUnreachable    Kind = "unreachable"
	KindSend           Kind = "send"
	KindRecovery       Kind = "recovery"
	KindNotInitialized Kind = "not_initialized"
)

// Error is the classified error used across the command core.
// Op names the failing operation; SessionID and Command are optional context.
type Error struct {
	Kind      Kind
	Op        string
	SessionID string
	Command   string
	Msg       string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(" error")
	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}
	if e.Command != "" {
		fmt.Fprintf(&b, " (command %s)", e.Command)
	}
	if e.SessionID != "" {
		fmt.Fprintf(&b, " [session %s]", e.SessionID)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an Error of the given kind with a formatted message.
func NewError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError classifies err under kind. A nil err yields nil.
func WrapError(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// ValidationError is shorthand for NewError(KindValidation, ...).
func ValidationError(format string, args ...any) *Error {
	return NewError(KindValidation, format, args...)
}

// KindOf returns the kind of the outermost *Error in err's chain, or KindGeneric.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindGeneric
}

// IsKind reports whether err carries a classified error of kind k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

func IsValidation(err error) bool { return IsKind(err, KindValidation) }

func IsTimeout(err error) bool { return IsKind(err, KindTimeout) || errors.Is(err, ErrCallTimeout) }

// IsDelivery reports whether err is a failure to reach an actor rather than
// a failure of the command itself.
func IsDelivery(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindUnreachable, KindSend:
		return true
	}
	return false
}

var (
	unrecoverableMarkers = []string{"validation", "authentication", "authorization", "parse", "format"}
	recoverableMarkers   = []string{"timeout", "connection", "network", "temporary", "retry"}
)

// IsRecoverable classifies a session failure message.
// Unrecoverable markers are checked first so they win ties.
func IsRecoverable(msg string) bool {
	lower := strings.ToLower(msg)
	for _, m := range unrecoverableMarkers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	for _, m := range recoverableMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
