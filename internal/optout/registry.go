// Package optout tracks users excluded from reaction tallying.
//
// The registry is a mutex-guarded set of user IDs, persisted in full on
// every mutation. Its lock is independent of the tally lock: the two share
// no data, so opt-out commands and reaction counting may proceed
// concurrently with each other.
package optout

import (
	"sort"
	"sync"
)

// Store persists the full opt-out set. Implemented by storage.CSVStore.
type Store interface {
	SaveOptOuts(userIDs []int64) error
}

// Registry is the set of opted-out users.
//
// Add and Remove are idempotent with respect to final state, and the
// persisted set mirrors memory after every successful call.
type Registry struct {
	mu    sync.Mutex
	users map[int64]struct{}
	store Store
}

// New creates a Registry seeded with the given user IDs, typically from
// Store load at startup.
func New(store Store, initial []int64) *Registry {
	users := make(map[int64]struct{}, len(initial))
	for _, id := range initial {
		users[id] = struct{}{}
	}
	return &Registry{users: users, store: store}
}

// Add inserts a user into the opt-out set and persists it.
//
// Returns (false, nil) if the user was already ignored - a no-op that
// triggers no save. The insert is kept even if the save fails, matching the
// tally engine's no-rollback policy; the error is surfaced to the caller.
func (r *Registry) Add(userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID]; ok {
		return false, nil
	}
	r.users[userID] = struct{}{}
	return true, r.store.SaveOptOuts(r.snapshotLocked())
}

// Remove deletes a user from the opt-out set and persists it.
// Returns (false, nil) if the user was not ignored.
func (r *Registry) Remove(userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID]; !ok {
		return false, nil
	}
	delete(r.users, userID)
	return true, r.store.SaveOptOuts(r.snapshotLocked())
}

// Contains reports whether a user has opted out. O(1).
func (r *Registry) Contains(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.users[userID]
	return ok
}

// Snapshot returns the opt-out set sorted ascending.
func (r *Registry) Snapshot() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Len returns the number of opted-out users.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

func (r *Registry) snapshotLocked() []int64 {
	out := make([]int64, 0, len(r.users))
	for id := range r.users {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
