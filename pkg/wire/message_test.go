package wire_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gerritevents/gerrit-events/pkg/wire"
)

func TestRoundTrip(t *testing.T) {
	msg := wire.NewMessage(wire.DefaultTopic, "ref-replication-done", "repoA")

	frames := msg.Frames()
	require.Len(t, frames, 3)
	assert.Equal(t, []byte("gerritstream"), frames[0])

	decoded, err := wire.Decode(frames)
	require.NoError(t, err)

	assert.Equal(t, "ref-replication-done", decoded.Kind)
	assert.Equal(t, "repoA", decoded.Value)
	assert.Equal(t, msg, decoded)
}

func TestDecode(t *testing.T) {
	cases := []struct {
		name     string
		frames   [][]byte
		valid    bool
		expected wire.Message
	}{
		{
			name:     "keepalive",
			frames:   [][]byte{[]byte("gerritstream"), []byte("keepalive"), []byte("ping")},
			valid:    true,
			expected: wire.Message{Topic: "gerritstream", Kind: "keepalive", Value: "ping"},
		},
		{
			name:     "extra frames are ignored",
			frames:   [][]byte{[]byte("gerritstream"), []byte("ref-updated"), []byte("repoB"), []byte("extra")},
			valid:    true,
			expected: wire.Message{Topic: "gerritstream", Kind: "ref-updated", Value: "repoB"},
		},
		{
			name:     "utf-8 value",
			frames:   [][]byte{[]byte("gerritstream"), []byte("ref-replication-done"), []byte("équipe/dépôt")},
			valid:    true,
			expected: wire.Message{Topic: "gerritstream", Kind: "ref-replication-done", Value: "équipe/dépôt"},
		},
		{
			name:   "missing value frame",
			frames: [][]byte{[]byte("gerritstream"), []byte("keepalive")},
		},
		{
			name: "no frame",
		},
	}

	for i := range cases {
		c := cases[i]

		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			msg, err := wire.Decode(c.frames)
			if !c.valid {
				assert.ErrorIs(t, err, wire.ErrInvalidMessage)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, c.expected, msg)
		})
	}
}
