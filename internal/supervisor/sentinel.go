package supervisor

import "strings"

// Console-output sentinels. The server's own log lines are the only
// reliable signal for lifecycle transitions, so startup is driven by
// substring rules evaluated against every line, first match wins.

// Event is a lifecycle signal derived from one console line.
type Event int

const (
	EventNone Event = iota
	// EventRCONReady fires when the remote console listener is up; the
	// server is considered fully started from this point.
	EventRCONReady
	// EventEULARequired fires when the server refuses to boot until the
	// license file is accepted.
	EventEULARequired
	// EventStartupDone fires on the generic world-loaded banner.
	EventStartupDone
)

// Rule binds a console substring to an event.
type Rule struct {
	Substr string
	Event  Event
}

// DefaultRules match the banners every supported distribution prints.
// Order matters: the EULA refusal must be recognized before the generic
// "Done" banner.
var DefaultRules = []Rule{
	{Substr: "RCON running on", Event: EventRCONReady},
	{Substr: "EULA", Event: EventEULARequired},
	{Substr: "Done", Event: EventStartupDone},
}

// Classify returns the event for a console line, or EventNone.
func Classify(line string, rules []Rule) Event {
	for _, r := range rules {
		if r.Substr != "" && strings.Contains(line, r.Substr) {
			return r.Event
		}
	}
	return EventNone
}
