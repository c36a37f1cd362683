package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	osexec "os/exec"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-logr/logr"
	"github.com/vladimirvivien/gexe/exec"

	"github.com/gerritevents/gerrit-events/internal/domain/entity"
)

var ErrFetchFailed = errors.New("fetch failed")

const DefaultGitBinary = "git"

// GitFetcher updates the local clone of a repository with git fetch.
type GitFetcher struct {
	gitBinary string

	logger *logr.Logger
}

func NewGitFetcher(gitBinary string) GitFetcher {
	if gitBinary == "" {
		gitBinary = DefaultGitBinary
	}

	return GitFetcher{
		gitBinary: gitBinary,
	}
}

func (f GitFetcher) WithLogger(logger logr.Logger) GitFetcher {
	f.logger = &logger

	return f
}

// Process runs git -C <path> fetch <origin> <refs...> and waits for its completion.
// The output is logged whatever the exit status; a failure is returned wrapped in ErrFetchFailed.
func (f GitFetcher) Process(ctx context.Context, repository entity.Repository) error {
	args := f.args(repository)

	stdout := bytes.NewBufferString("")
	stderr := bytes.NewBufferString("")

	proc := exec.NewProc(f.gitBinary)
	proc.Command().Args = append([]string{f.gitBinary}, args...)
	proc.Command().Stdout = stdout
	proc.Command().Stderr = stderr

	proc.Start().Wait()

	err := proc.Err()

	f.logInfo(0, "Fetch completed",
		"project", repository.Name,
		"command", f.gitBinary+" "+strings.Join(args, " "),
		"exitCode", ExitCode(err),
		"stdout", stdout.String(),
		"stderr", stderr.String(),
		"outputSize", humanize.Bytes(uint64(stdout.Len()+stderr.Len())),
	)

	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFetchFailed, repository.Name, err)
	}

	return nil
}

func (f GitFetcher) args(repository entity.Repository) []string {
	ret := []string{"-C", repository.Path, "fetch", repository.Origin}

	return append(ret, strings.Fields(repository.Refs)...)
}

// ExitCode returns the exit status carried by a fetch error: 0 when err is nil, -1 when the command did not exit.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	exitErr := &osexec.ExitError{}
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return -1
}

func (f GitFetcher) logInfo(level int, msg string, keysAndValues ...any) {
	if f.logger == nil {
		return
	}

	f.logger.V(level).Info(msg, keysAndValues...)
}
