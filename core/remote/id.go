// Package remote provides identifiers for records that live on the
// backend but may exist locally before the backend has confirmed them.
package remote

import (
	"strconv"

	"github.com/google/uuid"
)

// ID identifies a remote record. It is either confirmed, carrying the
// server-assigned numeric id, or pending, carrying a locally generated
// token for an optimistic record the backend has not acknowledged yet.
// Keeping the two forms in one type stops reconciliation code from
// mixing a temporary token up with a real id.
type ID struct {
	server int64
	local  string
}

// Confirmed returns an ID carrying a server-assigned id.
func Confirmed(server int64) ID {
	return ID{server: server}
}

// NewPending returns an ID with a fresh local token and no server id.
func NewPending() ID {
	return ID{local: uuid.NewString()}
}

// IsPending reports whether the record has not been confirmed by the server.
func (id ID) IsPending() bool {
	return id.local != ""
}

// IsZero reports whether the ID identifies nothing.
func (id ID) IsZero() bool {
	return id.server == 0 && id.local == ""
}

// Server returns the server-assigned id. It is 0 while pending.
func (id ID) Server() int64 {
	return id.server
}

// String returns a stable key for the ID, usable in pending-mutation sets.
func (id ID) String() string {
	if id.IsPending() {
		return "pending:" + id.local
	}
	return strconv.FormatInt(id.server, 10)
}

// Equal reports whether two IDs identify the same record.
func (id ID) Equal(other ID) bool {
	return id == other
}
