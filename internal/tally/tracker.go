package tally

import (
	"log/slog"
	"sort"
	"sync"
)

// UnknownName is the placeholder label used when a display name cannot be
// resolved. Name resolution is best-effort and never blocks counting.
const UnknownName = "Unknown"

// Tally is one author's running reaction count.
type Tally struct {
	UserID      int64
	DisplayName string
	Count       int64
}

// Store persists the full tally table. Implemented by storage.CSVStore
// (production) and by in-memory fakes (tests).
//
// SaveTallies receives the complete table on every qualifying reaction -
// whole-file overwrite, no append, no diff.
type Store interface {
	SaveTallies(tallies []Tally) error
}

// NameResolver resolves a user ID to a display name. Implemented by the
// gateway adapter (live lookup) and by fixed maps in tests.
type NameResolver interface {
	DisplayName(userID int64) (string, error)
}

// OptOutChecker reports whether a user has opted out of tracking.
// Implemented by optout.Registry.
type OptOutChecker interface {
	Contains(userID int64) bool
}

// Recorder receives a journal entry for every counted reaction.
// Implemented by journal.Journal. Recording is best-effort: the engine logs
// failures and keeps going.
type Recorder interface {
	Record(messageID, authorID, reactorID, delta int64) error
}

// Tracker is the reaction counting engine.
//
// All mutations of the tally table and the dedup record, and the save that
// follows them, happen under one mutex. Gateway handlers may call
// HandleReaction from any goroutine.
type Tracker struct {
	mu      sync.Mutex
	tallies map[int64]*Tally
	seen    map[int64]map[int64]struct{} // authorID -> set of counted messageIDs

	store     Store
	optOuts   OptOutChecker
	names     NameResolver
	journal   Recorder
	increment int64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithIncrement sets the amount added per qualifying reaction.
// Values <= 0 are ignored and the default of 1 is kept.
func WithIncrement(n int64) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.increment = n
		}
	}
}

// WithResolver sets the display name resolver. Without one, every new
// tally gets the UnknownName placeholder.
func WithResolver(r NameResolver) Option {
	return func(t *Tracker) {
		t.names = r
	}
}

// WithJournal sets the counted-reaction journal. Optional.
func WithJournal(r Recorder) Option {
	return func(t *Tracker) {
		t.journal = r
	}
}

// WithInitial seeds the tally table, typically from Store load at startup.
// Later entries for the same user ID overwrite earlier ones.
func WithInitial(tallies []Tally) Option {
	return func(t *Tracker) {
		for _, entry := range tallies {
			e := entry
			t.tallies[e.UserID] = &e
		}
	}
}

// New creates a Tracker that persists through store and excludes reactors
// reported by optOuts. The dedup record always starts empty.
func New(store Store, optOuts OptOutChecker, opts ...Option) *Tracker {
	t := &Tracker{
		tallies:   make(map[int64]*Tally),
		seen:      make(map[int64]map[int64]struct{}),
		store:     store,
		optOuts:   optOuts,
		increment: 1,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// HandleReaction decides whether a reaction event counts and applies it.
//
// Check order: self-reaction, opted-out reactor, already-counted message.
// A qualifying event records the message in the dedup record, increments the
// author's tally, resolves the display name best-effort, and triggers a full
// save of the tally table - all inside one critical section.
//
// Note the opt-out check applies to the REACTOR only. An opted-out author
// still accrues tallies from others; that asymmetry is the modeled behavior.
//
// A failed save is logged and NOT rolled back: the increment already
// happened, so memory and disk diverge until the next successful save.
func (t *Tracker) HandleReaction(ev ReactionEvent) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ev.ReactorID == ev.AuthorID {
		return Decision{Outcome: SkippedSelfReaction, Total: t.currentLocked(ev.AuthorID)}
	}

	if t.optOuts != nil && t.optOuts.Contains(ev.ReactorID) {
		return Decision{Outcome: SkippedOptedOut, Total: t.currentLocked(ev.AuthorID)}
	}

	messages, ok := t.seen[ev.AuthorID]
	if !ok {
		messages = make(map[int64]struct{})
		t.seen[ev.AuthorID] = messages
	}
	if _, counted := messages[ev.MessageID]; counted {
		return Decision{Outcome: SkippedDuplicate, Total: t.currentLocked(ev.AuthorID)}
	}
	messages[ev.MessageID] = struct{}{}

	entry, ok := t.tallies[ev.AuthorID]
	if !ok {
		entry = &Tally{UserID: ev.AuthorID, DisplayName: t.resolveName(ev.AuthorID)}
		t.tallies[ev.AuthorID] = entry
	} else if entry.DisplayName == "" || entry.DisplayName == UnknownName {
		// Retry resolution for entries loaded without a usable name.
		entry.DisplayName = t.resolveName(ev.AuthorID)
	}
	entry.Count += t.increment

	slog.Debug("reaction counted",
		"message_id", ev.MessageID,
		"author_id", ev.AuthorID,
		"reactor_id", ev.ReactorID,
		"total", entry.Count,
	)

	if err := t.store.SaveTallies(t.snapshotLocked()); err != nil {
		slog.Error("tally save failed, in-memory state retained",
			"error", err,
			"author_id", ev.AuthorID,
			"total", entry.Count,
		)
	}

	if t.journal != nil {
		if err := t.journal.Record(ev.MessageID, ev.AuthorID, ev.ReactorID, t.increment); err != nil {
			slog.Error("journal record failed",
				"error", err,
				"message_id", ev.MessageID,
				"author_id", ev.AuthorID,
			)
		}
	}

	return Decision{Outcome: CountedReaction, Total: entry.Count}
}

// Total returns the current tally for a user, zero if untracked.
func (t *Tracker) Total(userID int64) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentLocked(userID)
}

// Snapshot returns a copy of the tally table sorted by user ID.
func (t *Tracker) Snapshot() []Tally {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Increment returns the configured per-reaction increment.
func (t *Tracker) Increment() int64 {
	return t.increment
}

func (t *Tracker) currentLocked(userID int64) int64 {
	if entry, ok := t.tallies[userID]; ok {
		return entry.Count
	}
	return 0
}

func (t *Tracker) snapshotLocked() []Tally {
	out := make([]Tally, 0, len(t.tallies))
	for _, entry := range t.tallies {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

func (t *Tracker) resolveName(userID int64) string {
	if t.names == nil {
		return UnknownName
	}
	name, err := t.names.DisplayName(userID)
	if err != nil || name == "" {
		slog.Warn("display name unresolved", "user_id", userID, "error", err)
		return UnknownName
	}
	return name
}
