package webhook

import "time"

// Event names understood by the workflow engine.
const (
	EventUserRegistered      = "user_registered"
	EventAutomationCycle     = "automation_cycle"
	EventAutomationCompleted = "automation_completed"
	EventLoopCompleted       = "loop_completed"
	EventLoopStopped         = "loop_stopped"
)

// Steps and actions carried in the cycle section of a payload.
const (
	StepPreEmail  = "pre_email"
	StepPostEmail = "post_email"

	ActionCycleStart = "cycle_start"
	ActionEmailSent  = "email_sent"
)

// timestampLayout is RFC 3339 with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// User identifies the subject of an event.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Cycle describes where inside an automation cycle an event was raised.
type Cycle struct {
	Number int    `json:"number"`
	Total  int    `json:"total"`
	Step   string `json:"step"`
	Action string `json:"action"`
	Status string `json:"status,omitempty"`
}

// Event is the JSON body posted to the webhook endpoint.
// Timestamp and Source are filled by the Dispatcher when left empty.
type Event struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Source    string         `json:"source"`
	User      User           `json:"user"`
	Cycle     *Cycle         `json:"cycle,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewEvent starts an event of the given kind for user.
func NewEvent(name string, user User) Event {
	return Event{Event: name, User: user}
}

// WithCycle returns a copy of e carrying cycle position information.
func (e Event) WithCycle(number, total int, step, action string) Event {
	e.Cycle = &Cycle{Number: number, Total: total, Step: step, Action: action, Status: "started"}
	return e
}

// WithMetadata returns a copy of e with key set in its metadata.
func (e Event) WithMetadata(key string, value any) Event {
	md := make(map[string]any, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		md[k] = v
	}
	md[key] = value
	e.Metadata = md
	return e
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
