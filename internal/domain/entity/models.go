package entity

import "time"

const (
	KindKeepalive  = "keepalive"
	KeepaliveValue = "ping"

	PayloadProject = "project"
	PayloadValue   = "value"
)

// Event is one upstream record on its way to the subscribers.
type Event struct {
	Kind    string
	Payload map[string]string
}

// NewKeepalive returns the synthetic liveness event sent by the relay.
func NewKeepalive() Event {
	return Event{
		Kind:    KindKeepalive,
		Payload: map[string]string{PayloadValue: KeepaliveValue},
	}
}

// Value returns the correlation value carried on the wire: the project name, or the ping value for keepalives.
func (e Event) Value() string {
	if e.Kind == KindKeepalive {
		return e.Payload[PayloadValue]
	}

	return e.Payload[PayloadProject]
}

// Repository is the local clone updated when its project is replicated.
type Repository struct {
	Name   string
	Path   string
	Origin string
	Refs   string
}

// FetchRecord is the outcome of one fetch run, as reported by one scheduler host.
type FetchRecord struct {
	Project   string
	Host      string
	StartedAt time.Time
	Duration  time.Duration
	ExitCode  int
	Error     string
}

func (r FetchRecord) Failed() bool {
	return r.ExitCode != 0 || r.Error != ""
}
