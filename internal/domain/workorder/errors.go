package workorder

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

type Kind string

const (
	KindValidation            Kind = "validation_error"
	KindInvalidTransition     Kind = "invalid_transition"
	KindInsufficientAuthority Kind = "insufficient_authority"
	KindConflict              Kind = "conflict"
	KindInsufficientStock     Kind = "insufficient_stock"
	KindInvariantViolation    Kind = "invariant_violation"
	KindNotFound              Kind = "not_found"
)

var (
	ErrValidation            = errors.New("validation error")
	ErrInvalidTransition     = errors.New("invalid transition")
	ErrInsufficientAuthority = errors.New("insufficient authority")
	ErrConflict              = errors.New("conflict")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrInvariantViolation    = errors.New("invariant violation")
	ErrNotFound              = errors.New("not found")

	ErrRefRequired = errors.New("work order ref is required")
	ErrInvalidRef  = errors.New("invalid work order ref")
)

var sentinelByKind = map[Kind]error{
	KindValidation:            ErrValidation,
	KindInvalidTransition:     ErrInvalidTransition,
	KindInsufficientAuthority: ErrInsufficientAuthority,
	KindConflict:              ErrConflict,
	KindInsufficientStock:     ErrInsufficientStock,
	KindInvariantViolation:    ErrInvariantViolation,
	KindNotFound:              ErrNotFound,
}

// Error is the typed failure surfaced by every lifecycle operation.
// It carries enough context (current status, attempted transition, actor)
// for the request layer to render a message without re-reading the order.
type Error struct {
	Kind        Kind
	WorkOrderID uint64
	Number      string
	Current     Status
	Target      Status
	Actor       string
	Detail      string
	Err         error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Number != "" {
		fmt.Fprintf(&b, " on %s", e.Number)
	} else if e.WorkOrderID != 0 {
		fmt.Fprintf(&b, " on work order %d", e.WorkOrderID)
	}
	if e.Current != "" && e.Target != "" {
		fmt.Fprintf(&b, " (%s -> %s)", e.Current, e.Target)
	} else if e.Current != "" {
		fmt.Fprintf(&b, " (status %s)", e.Current)
	}
	if e.Actor != "" {
		fmt.Fprintf(&b, " by %s", e.Actor)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if sentinel, ok := sentinelByKind[e.Kind]; ok {
		out = append(out, sentinel)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// LogAttrs lets errs.Loggable emit the error context as structured fields.
func (e *Error) LogAttrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("kind", string(e.Kind))}
	if e.WorkOrderID != 0 {
		attrs = append(attrs, slog.Uint64("work_order_id", e.WorkOrderID))
	}
	if e.Number != "" {
		attrs = append(attrs, slog.String("work_order", e.Number))
	}
	if e.Current != "" {
		attrs = append(attrs, slog.String("current_status", string(e.Current)))
	}
	if e.Target != "" {
		attrs = append(attrs, slog.String("target_status", string(e.Target)))
	}
	if e.Actor != "" {
		attrs = append(attrs, slog.String("actor", e.Actor))
	}
	return attrs
}

// KindOf returns the error kind anywhere in the chain, or "" for foreign errors.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}
	for kind, sentinel := range sentinelByKind {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return ""
}

// WithContext fills missing order/actor/transition fields on a typed error.
// Foreign errors are returned unchanged.
func WithContext(err error, wo *WorkOrder, target Status, actor string) error {
	var typed *Error
	if !errors.As(err, &typed) {
		return err
	}
	if wo != nil {
		if typed.WorkOrderID == 0 {
			typed.WorkOrderID = wo.ID
		}
		if typed.Number == "" {
			typed.Number = wo.Number
		}
		if typed.Current == "" {
			typed.Current = wo.Status
		}
	}
	if typed.Target == "" {
		typed.Target = target
	}
	if typed.Actor == "" {
		typed.Actor = actor
	}
	return err
}

func NewError(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

func validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Detail: fmt.Sprintf(format, args...)}
}

func invariantf(format string, args ...any) *Error {
	return &Error{Kind: KindInvariantViolation, Detail: fmt.Sprintf(format, args...)}
}

// Validationf builds a ValidationError.
func Validationf(format string, args ...any) error {
	return validationf(format, args...)
}

// Conflictf builds a Conflict error.
func Conflictf(format string, args ...any) error {
	return &Error{Kind: KindConflict, Detail: fmt.Sprintf(format, args...)}
}

// Authorityf builds an InsufficientAuthority error.
func Authorityf(format string, args ...any) error {
	return &Error{Kind: KindInsufficientAuthority, Detail: fmt.Sprintf(format, args...)}
}
