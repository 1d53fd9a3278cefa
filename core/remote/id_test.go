package remote

import "testing"

func TestConfirmed(t *testing.T) {
	id := Confirmed(42)
	if id.IsPending() {
		t.Error("confirmed id reported as pending")
	}
	if id.Server() != 42 {
		t.Errorf("Server() = %d, want 42", id.Server())
	}
	if id.String() != "42" {
		t.Errorf("String() = %q, want 42", id.String())
	}
}

func TestNewPending(t *testing.T) {
	a := NewPending()
	b := NewPending()

	if !a.IsPending() || !b.IsPending() {
		t.Fatal("pending ids must report IsPending")
	}
	if a.Server() != 0 {
		t.Errorf("pending id leaked a server id: %d", a.Server())
	}
	if a.Equal(b) {
		t.Error("two pending ids must never be equal")
	}
	if a.String() == b.String() {
		t.Error("pending id keys must be unique")
	}
}

func TestPendingNeverEqualsConfirmed(t *testing.T) {
	if NewPending().Equal(Confirmed(0)) {
		t.Error("pending id must not equal confirmed id")
	}
}

func TestIsZero(t *testing.T) {
	var id ID
	if !id.IsZero() {
		t.Error("zero value should be zero")
	}
	if Confirmed(1).IsZero() || NewPending().IsZero() {
		t.Error("non-empty ids must not be zero")
	}
}
