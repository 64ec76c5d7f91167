package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesKindAndCode(t *testing.T) {
	err := fmt.Errorf("confirm pickup: %w", Precondition("booking is %s", "accepted"))

	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatal("precondition error should match the invalid transition kind")
	}
	if !errors.Is(err, ErrPreconditionFailed) {
		t.Fatal("precondition error should match its code")
	}
	if errors.Is(err, ErrConflict) {
		t.Fatal("precondition error must not match conflict")
	}
	if errors.Is(InvalidTransition("nope"), ErrPreconditionFailed) {
		t.Fatal("plain invalid transition must not match the precondition code")
	}
}

func TestPersistencePassesTypedErrorsThrough(t *testing.T) {
	nf := NotFound("booking")
	if got := Persistence("load booking", nf); got != error(nf) {
		t.Fatalf("expected typed error unchanged, got %v", got)
	}

	raw := errors.New("connection reset")
	wrapped := Persistence("load booking", raw)
	if KindOf(wrapped) != KindPersistence {
		t.Fatalf("expected persistence kind, got %v", KindOf(wrapped))
	}
	if !errors.Is(wrapped, raw) {
		t.Fatal("persistence error should unwrap to the cause")
	}
	if Persistence("noop", nil) != nil {
		t.Fatal("nil error should stay nil")
	}
}

func TestUnauthorizedIsGeneric(t *testing.T) {
	if Unauthorized().Error() != "not authorized" {
		t.Fatalf("unexpected message %q", Unauthorized().Error())
	}
}
