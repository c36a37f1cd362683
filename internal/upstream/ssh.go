package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/go-logr/logr"
	"golang.org/x/crypto/ssh"
)

const readBufferSize = 32 * 1024

// SSHSource runs the stream command (gerrit stream-events) over an ssh session.
type SSHSource struct {
	address string
	command string
	config  *ssh.ClientConfig

	logger *logr.Logger
}

func NewSSHSource(host string, port int, command string, config *ssh.ClientConfig) SSHSource {
	return SSHSource{
		address: net.JoinHostPort(host, strconv.Itoa(port)),
		command: command,
		config:  config,
	}
}

func (s SSHSource) WithLogger(logger logr.Logger) SSHSource {
	s.logger = &logger

	return s
}

func (s SSHSource) Stream(ctx context.Context, session Session) error {
	err := s.stream(ctx, session)

	session.OnClose(err)

	return err
}

func (s SSHSource) stream(ctx context.Context, session Session) error {
	s.logInfo(0, "Connecting to upstream", "address", s.address, "user", s.config.User)

	client, err := ssh.Dial("tcp", s.address, s.config)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", s.address, err)
	}
	defer client.Close()

	sshSession, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to open ssh session: %w", err)
	}
	defer sshSession.Close()

	stdout, err := sshSession.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	err = sshSession.Start(s.command)
	if err != nil {
		return fmt.Errorf("failed to start %q: %w", s.command, err)
	}

	s.logInfo(0, "Streaming upstream events", "command", s.command)

	// Closing the client unblocks the read loop on shutdown
	stop := context.AfterFunc(ctx, func() {
		client.Close()
	})
	defer stop()

	readErr := s.read(stdout, session)

	waitErr := sshSession.Wait()

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case readErr != nil:
		return fmt.Errorf("failed to read upstream stream: %w", readErr)
	case waitErr != nil:
		return fmt.Errorf("%w: %w", ErrStreamClosed, waitErr)
	default:
		return ErrStreamClosed
	}
}

func (s SSHSource) read(reader io.Reader, session Session) error {
	buffer := make([]byte, readBufferSize)

	for {
		n, err := reader.Read(buffer)
		if n > 0 {
			s.logInfo(3, "Data received", "size", n)

			session.OnData(buffer[:n])
		}

		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return err
		}
	}
}

func (s SSHSource) logInfo(level int, msg string, keysAndValues ...any) {
	if s.logger == nil {
		return
	}

	s.logger.V(level).Info(msg, keysAndValues...)
}
