package service

import (
	"context"
	"testing"
)

func TestCancelsRegisterAndCancel(t *testing.T) {
	c := NewCancels(testLogger())

	ctx, release := c.Register(context.Background(), "s1", "req-1")
	defer release()

	if c.Active() != 1 {
		t.Fatalf("Active = %d, want 1", c.Active())
	}
	if !c.Cancel("req-1") {
		t.Fatal("Cancel returned false for a tracked request")
	}
	if ctx.Err() == nil {
		t.Error("context not cancelled")
	}
}

func TestCancelsUnknownRequest(t *testing.T) {
	c := NewCancels(testLogger())

	if c.Cancel("missing") {
		t.Error("Cancel returned true for an unknown request")
	}
}

func TestCancelsReleaseUntracks(t *testing.T) {
	c := NewCancels(testLogger())

	_, release := c.Register(context.Background(), "s1", "req-1")
	release()

	if c.Active() != 0 {
		t.Errorf("Active = %d after release", c.Active())
	}
	if c.Cancel("req-1") {
		t.Error("released request still cancellable")
	}
}

func TestCancelsSession(t *testing.T) {
	c := NewCancels(testLogger())

	ctx1, release1 := c.Register(context.Background(), "s1", "req-1")
	defer release1()
	ctx2, release2 := c.Register(context.Background(), "s1", "req-2")
	defer release2()
	other, releaseOther := c.Register(context.Background(), "s2", "req-3")
	defer releaseOther()

	if got := c.CancelSession("s1"); got != 2 {
		t.Fatalf("CancelSession = %d, want 2", got)
	}
	if ctx1.Err() == nil || ctx2.Err() == nil {
		t.Error("session contexts not cancelled")
	}
	if other.Err() != nil {
		t.Error("unrelated session was cancelled")
	}
	if got := c.CancelSession("s1"); got != 2 {
		// Cancel functions are idempotent; the registry still tracks the
		// requests until their owners release them.
		t.Errorf("second CancelSession = %d, want 2", got)
	}
}
