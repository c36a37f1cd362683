package upstream

import (
	"bytes"
	"sync"

	"github.com/gerritevents/gerrit-events/internal/queue"
)

// LineSession splits the upstream bytes into newline delimited records.
// Each non empty record is pushed to the records queue.
type LineSession struct {
	mu      sync.Mutex
	pending []byte
	closed  bool
	cause   error

	records *queue.Queue[[]byte]
	done    chan struct{}
}

func NewLineSession(records *queue.Queue[[]byte]) *LineSession {
	return &LineSession{
		records: records,
		done:    make(chan struct{}),
	}
}

func (s *LineSession) OnData(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.pending = append(s.pending, data...)

	for {
		idx := bytes.IndexByte(s.pending, '\n')
		if idx < 0 {
			break
		}

		s.push(s.pending[:idx])
		s.pending = s.pending[idx+1:]
	}
}

// OnClose flushes an unterminated last record.
func (s *LineSession) OnClose(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.push(s.pending)
	s.pending = nil
	s.closed = true
	s.cause = err

	close(s.done)
}

// Done is closed once the upstream is gone.
func (s *LineSession) Done() <-chan struct{} {
	return s.done
}

// Err returns the reason the upstream is gone.
func (s *LineSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cause
}

func (s *LineSession) push(record []byte) {
	record = bytes.TrimSpace(record)
	if len(record) == 0 {
		return
	}

	// pending is reused by later appends
	s.records.Push(bytes.Clone(record))
}
