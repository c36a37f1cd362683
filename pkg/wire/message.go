// Package wire defines the three-frame messages exchanged between relays and schedulers:
//
//	[topic, kind, value]
//
// All frames are UTF-8 text. Subscribers filter on the topic frame by prefix.
package wire

import (
	"errors"
	"fmt"
)

const (
	DefaultTopic = "gerritstream"

	frameCount = 3
)

var ErrInvalidMessage = errors.New("invalid wire message")

type Message struct {
	Topic string
	Kind  string
	Value string
}

func NewMessage(topic, kind, value string) Message {
	return Message{
		Topic: topic,
		Kind:  kind,
		Value: value,
	}
}

// Frames encodes the message.
func (m Message) Frames() [][]byte {
	return [][]byte{[]byte(m.Topic), []byte(m.Kind), []byte(m.Value)}
}

// Decode reads a message from its frames. Frames after the third one are ignored.
func Decode(frames [][]byte) (Message, error) {
	if len(frames) < frameCount {
		return Message{}, fmt.Errorf("%w: expected %d frames, got %d", ErrInvalidMessage, frameCount, len(frames))
	}

	return Message{
		Topic: string(frames[0]),
		Kind:  string(frames[1]),
		Value: string(frames[2]),
	}, nil
}
