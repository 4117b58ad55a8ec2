package timeline

// EventKind identifies a diagnostic event emitted by a Resolver.
type EventKind string

const (
	EventResolved EventKind = "schedule.resolved"
	EventOverlap  EventKind = "schedule.overlap"
)

// Event carries what the Resolver decided for one Resolve call.
//
// For EventResolved, Schedule is set and Window holds the matched period's
// window (zero when the default profile applies). For EventOverlap, Matched
// lists every candidate period in day-plan order and Winner is the one used.
type Event struct {
	Kind    EventKind
	Weekday int
	Clock   string
	DayPlan string

	Schedule *ResolvedSchedule
	Window   Window

	Matched []string
	Winner  string
	Policy  OverlapPolicy
}

// Observer receives diagnostic events synchronously from Resolve.
// Implementations must not block.
type Observer func(Event)

func nopObserver(Event) {}
