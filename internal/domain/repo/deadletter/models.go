package deadletter

import "time"

// DeadLetter is the JSON document stored for every dropped record.
type DeadLetter struct {
	ProcessingContext ProcessingContext
	Sources           Sources
	Reason            Reason
}

type ProcessingContext struct {
	Component Component
	Time      time.Time
	Host      string
}

type Component struct {
	Branch   string
	Revision string
}

type Sources struct {
	Record     string
	Additional []KeyValue
}

type KeyValue struct {
	Source string
	Key    string
	Value  []byte
}

type Reason struct {
	Category string
	Error    string
}
