// Package session holds the per-conversation primitives owned by the
// lifecycle manager: the synchronously readable session identifier cell, the
// practice/test mode and its clock, and the running transcript.
package session

import "sync/atomic"

// Handle is the cell holding the identifier of the live session.
//
// It is the single value shared between the network callbacks, which learn
// the authoritative identifier, and the per-frame send path, which reads it.
// Reads are lock-free and always observe the latest write, so the first frame
// after [Handle.Invalidate] already sees an empty identifier.
//
// The zero value is an empty, valid handle.
type Handle struct {
	v atomic.Pointer[handleState]
}

type handleState struct {
	id      string
	retired bool
}

// ID returns the current session identifier, or "" when no session is live.
func (h *Handle) ID() string {
	s := h.v.Load()
	if s == nil || s.retired {
		return ""
	}
	return s.id
}

// Live reports whether a non-empty identifier is set.
func (h *Handle) Live() bool {
	return h.ID() != ""
}

// Set replaces the identifier, for example when the service confirms the
// session with its own identifier. Set is ignored after [Handle.Invalidate]
// until [Handle.Reset], so a late confirmation from a dead session cannot
// revive it. It reports whether the identifier was stored.
func (h *Handle) Set(id string) bool {
	for {
		old := h.v.Load()
		if old != nil && old.retired {
			return false
		}
		if h.v.CompareAndSwap(old, &handleState{id: id}) {
			return true
		}
	}
}

// Invalidate clears the identifier and blocks further [Handle.Set] calls. It
// returns the identifier that was live, if any.
func (h *Handle) Invalidate() string {
	old := h.v.Swap(&handleState{retired: true})
	if old == nil || old.retired {
		return ""
	}
	return old.id
}

// Reset prepares the handle for a new session and stores id.
func (h *Handle) Reset(id string) {
	h.v.Store(&handleState{id: id})
}
