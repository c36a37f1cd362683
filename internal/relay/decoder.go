package relay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gerritevents/gerrit-events/internal/domain/entity"
)

var ErrMalformedEvent = errors.New("malformed event")

const (
	fieldType    = "type"
	fieldProject = "project"
)

// Decoder turns upstream records into events, keeping only the accepted kinds.
type Decoder struct {
	kinds map[string]struct{}
}

func NewDecoder(kinds []string) Decoder {
	ret := Decoder{
		kinds: make(map[string]struct{}, len(kinds)),
	}

	for _, kind := range kinds {
		ret.kinds[kind] = struct{}{}
	}

	return ret
}

// Decode returns the event and true when the record kind is accepted.
// A record of a kind not accepted is discarded without error, even if it carries no project.
func (d Decoder) Decode(record []byte) (entity.Event, bool, error) {
	fields := map[string]any{}

	err := json.Unmarshal(record, &fields)
	if err != nil {
		return entity.Event{}, false, fmt.Errorf("%w: %w", ErrMalformedEvent, err)
	}

	kind, err := extractString(fields, fieldType)
	if err != nil {
		return entity.Event{}, false, err
	}

	_, accepted := d.kinds[kind]
	if !accepted {
		return entity.Event{}, false, nil
	}

	_, err = extractString(fields, fieldProject)
	if err != nil {
		return entity.Event{}, false, err
	}

	// Nested objects (change, refUpdate, ...) are not needed downstream
	payload := make(map[string]string, len(fields))

	for key, value := range fields {
		str, ok := value.(string)
		if ok {
			payload[key] = str
		}
	}

	return entity.Event{
		Kind:    kind,
		Payload: payload,
	}, true, nil
}

func extractString(fields map[string]any, key string) (string, error) {
	value, present := fields[key]
	if !present {
		return "", fmt.Errorf("%w: missing %s", ErrMalformedEvent, key)
	}

	ret, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s is not a string", ErrMalformedEvent, key)
	}

	if ret == "" {
		return "", fmt.Errorf("%w: empty %s", ErrMalformedEvent, key)
	}

	return ret, nil
}
