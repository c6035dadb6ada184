package domain

type EventLevel string

const (
	EventLevelMajor  EventLevel = "major"
	EventLevelMinor  EventLevel = "minor"
	EventLevelSilent EventLevel = "silent"
)

// RetryEvent is emitted every time a source is retried. It is purely observational.
type RetryEvent struct {
	Level   EventLevel `json:"level"`
	Message string     `json:"message"`
	Err     error      `json:"-"`
}

type RetryNotifier func(RetryEvent)

// Notify calls n when set
func (n RetryNotifier) Notify(event RetryEvent) {
	if n != nil {
		n(event)
	}
}
