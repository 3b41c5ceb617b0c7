package tally

// ReactionEvent is a single reaction-added event as seen by the counting
// engine: who reacted, to whose message, on which message.
//
// IDs are Discord snowflakes converted to int64 by the gateway adapter.
// Zero values are valid but meaningless - the engine applies no special
// validation to them.
type ReactionEvent struct {
	MessageID int64
	AuthorID  int64
	ReactorID int64
}

// Outcome classifies what the engine did with a reaction event.
type Outcome int

const (
	// CountedReaction means the author's tally was incremented.
	CountedReaction Outcome = iota + 1
	// SkippedSelfReaction means reactor == author.
	SkippedSelfReaction
	// SkippedOptedOut means the reactor is on the opt-out list.
	SkippedOptedOut
	// SkippedDuplicate means this (author, message) pair was already counted.
	SkippedDuplicate
)

// String returns a stable label for logging.
func (o Outcome) String() string {
	switch o {
	case CountedReaction:
		return "counted"
	case SkippedSelfReaction:
		return "self_reaction"
	case SkippedOptedOut:
		return "opted_out"
	case SkippedDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// Decision is the engine's verdict on one reaction event.
//
// Total is the author's tally after handling; for skipped events it is the
// unchanged current value (zero if the author has no tally yet).
type Decision struct {
	Outcome Outcome
	Total   int64
}

// Counted reports whether the event incremented a tally.
func (d Decision) Counted() bool {
	return d.Outcome == CountedReaction
}
