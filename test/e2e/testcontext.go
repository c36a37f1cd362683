// Package e2e runs a relay and a scheduler in process, connected by a real ZeroMQ socket on loopback.
package e2e

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promdto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/gerritevents/gerrit-events/internal/config"
	"github.com/gerritevents/gerrit-events/internal/domain/entity"
	"github.com/gerritevents/gerrit-events/internal/factory"
	"github.com/gerritevents/gerrit-events/internal/relay"
	"github.com/gerritevents/gerrit-events/internal/scheduler"
	"github.com/gerritevents/gerrit-events/internal/transport"
	"github.com/gerritevents/gerrit-events/internal/upstream"
	"github.com/gerritevents/gerrit-events/pkg/pipeline"
)

const (
	KindReplicationDone = "ref-replication-done"
	KindRefUpdated      = "ref-updated"

	WarmupProject = "warmup"

	topic = "gerritstream"
)

type TestConfig struct {
	Dir string

	HeartbeatPeriod time.Duration
	MaxMissed       int

	// Projects whose fetch sleeps before exiting
	SlowProjects []string
	SlowDuration time.Duration

	Projects []string
}

func CreateTestConfig(dir string, projects ...string) TestConfig {
	return TestConfig{
		Dir:             dir,
		HeartbeatPeriod: 100 * time.Millisecond,
		MaxMissed:       3,
		SlowDuration:    300 * time.Millisecond,
		Projects:        append([]string{WarmupProject}, projects...),
	}
}

type TestContext struct {
	Config TestConfig

	Upstream *FakeUpstream
	Git      FakeGit

	RelayRegistry     *prometheus.Registry
	SchedulerRegistry *prometheus.Registry

	relayDone     chan error
	schedulerDone chan error

	cancel context.CancelFunc
}

// CreateTestContext starts the relay then the scheduler. Call Close to stop both.
func CreateTestContext(conf TestConfig) (*TestContext, error) {
	ctx, cancel := context.WithCancel(context.Background())

	ret := &TestContext{
		Config:            conf,
		Upstream:          NewFakeUpstream(),
		RelayRegistry:     prometheus.NewRegistry(),
		SchedulerRegistry: prometheus.NewRegistry(),
		relayDone:         make(chan error, 1),
		schedulerDone:     make(chan error, 1),
		cancel:            cancel,
	}

	git, err := CreateFakeGit(conf.Dir, conf.SlowProjects, conf.SlowDuration)
	if err != nil {
		cancel()

		return nil, err
	}

	ret.Git = git

	endpoint, err := ret.startRelay(ctx)
	if err != nil {
		cancel()

		return nil, fmt.Errorf("failed to start relay: %w", err)
	}

	err = ret.startScheduler(ctx, endpoint)
	if err != nil {
		cancel()

		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	return ret, nil
}

func (tc *TestContext) startRelay(ctx context.Context) (string, error) {
	publisher, err := transport.NewPublisher(ctx, "tcp://127.0.0.1:0")
	if err != nil {
		return "", err
	}

	queues := relay.NewQueues()

	recordProcessing, err := factory.DecorateRecordProcessing(relay.NewMain(relay.NewDecoder([]string{KindReplicationDone}), queues.Outgoing), tc.RelayRegistry)
	if err != nil {
		return "", err
	}

	errorProcessing, err := factory.DecorateErrorProcessing(nil, tc.RelayRegistry, config.Retry{})
	if err != nil {
		return "", err
	}

	publishProcessing, err := factory.DecoratePublishProcessing(relay.NewPublishing(publisher, topic), tc.RelayRegistry)
	if err != nil {
		return "", err
	}

	emitter := relay.NewEmitter(clockwork.NewRealClock(), tc.Config.HeartbeatPeriod, queues.Outgoing)

	service := relay.NewService(tc.Upstream, publisher, emitter, queues, relay.Pipelines{
		Record:  recordProcessing,
		Error:   errorProcessing,
		Publish: publishProcessing,
	})

	go func() {
		tc.relayDone <- service.Run(ctx)
	}()

	return "tcp://" + publisher.Addr().String(), nil
}

func (tc *TestContext) startScheduler(ctx context.Context, endpoint string) error {
	repositories := map[string]entity.Repository{}

	for _, project := range tc.Config.Projects {
		repositories[project] = tc.Git.Repository(project)
	}

	subscriber := transport.NewSubscriber(ctx, topic).WithIdleTimeout(5 * tc.Config.HeartbeatPeriod)
	subscriber.Dial([]string{endpoint}, retry.Delay(50*time.Millisecond), retry.MaxDelay(200*time.Millisecond))

	queues := scheduler.NewQueues()

	router := scheduler.NewRouter(subscriber, []string{KindReplicationDone}, repositories, queues)

	monitor, err := scheduler.NewMonitor(clockwork.NewRealClock(), queues.Beats, tc.SchedulerRegistry, scheduler.MonitorConfig{
		Period:    tc.Config.HeartbeatPeriod,
		MaxMissed: tc.Config.MaxMissed,
		Namespace: "scheduler",
	})
	if err != nil {
		return err
	}

	fetch, err := factory.DecorateFetchProcessing(scheduler.NewGitFetcher(tc.Git.Binary), tc.SchedulerRegistry)
	if err != nil {
		return err
	}

	coalescing, err := scheduler.NewCoalescing(fetch, tc.SchedulerRegistry, pipeline.MetricsConfig{Namespace: "scheduler"})
	if err != nil {
		return err
	}

	service := scheduler.NewService(router, monitor, coalescing, queues)

	go func() {
		tc.schedulerDone <- service.Run(ctx)
	}()

	return nil
}

// Warmup sends replication events for the warmup project until one fetch ran.
// Messages published before the subscriber is connected are lost.
func (tc *TestContext) Warmup(ctx context.Context) error {
	return retry.Do(
		func() error {
			tc.Upstream.Send(ReplicationDone(WarmupProject))

			if tc.Git.Count(WarmupProject) == 0 {
				return errors.New("no warmup fetch yet")
			}

			return nil
		},
		retry.Context(ctx),
		retry.Attempts(100),
		retry.Delay(50*time.Millisecond),
		retry.DelayType(retry.FixedDelay),
	)
}

func (tc *TestContext) RelayDone() <-chan error {
	return tc.relayDone
}

func (tc *TestContext) SchedulerDone() <-chan error {
	return tc.schedulerDone
}

func (tc *TestContext) Close() {
	tc.cancel()
	tc.Upstream.Close()
}

// ReplicationDone returns a ref-replication-done record, as written by the review server.
func ReplicationDone(project string) string {
	return fmt.Sprintf(`{"type":%q,"project":%q,"ref":"refs/heads/main","targetNode":"mirror-1","eventCreatedOn":1700000000}`, KindReplicationDone, project)
}

func RefUpdated(project string) string {
	return fmt.Sprintf(`{"type":%q,"project":%q}`, KindRefUpdated, project)
}

// FakeUpstream streams the lines it is sent, until closed.
type FakeUpstream struct {
	lines chan string

	closeOnce sync.Once
	closed    chan struct{}
}

func NewFakeUpstream() *FakeUpstream {
	return &FakeUpstream{
		lines:  make(chan string, 100),
		closed: make(chan struct{}),
	}
}

func (f *FakeUpstream) Send(line string) {
	select {
	case f.lines <- line:
	case <-f.closed:
	}
}

// Close ends the stream as if the review server went away.
func (f *FakeUpstream) Close() {
	f.closeOnce.Do(func() {
		close(f.closed)
	})
}

func (f *FakeUpstream) Stream(ctx context.Context, session upstream.Session) error {
	for {
		select {
		case <-ctx.Done():
			session.OnClose(ctx.Err())

			return ctx.Err()
		case <-f.closed:
			session.OnClose(upstream.ErrStreamClosed)

			return upstream.ErrStreamClosed
		case line := <-f.lines:
			session.OnData([]byte(line + "\n"))
		}
	}
}

// FakeGit is a git stand-in appending one line per fetch to a log file.
type FakeGit struct {
	Binary string

	dir string
	log string
}

func CreateFakeGit(dir string, slowProjects []string, slowDuration time.Duration) (FakeGit, error) {
	ret := FakeGit{
		Binary: filepath.Join(dir, "git"),
		dir:    dir,
		log:    filepath.Join(dir, "fetches.log"),
	}

	script := strings.Builder{}
	script.WriteString("#!/bin/sh\n")

	for _, project := range slowProjects {
		fmt.Fprintf(&script, "if [ \"$2\" = %q ]; then sleep %.3f; fi\n", ret.Repository(project).Path, slowDuration.Seconds())
	}

	fmt.Fprintf(&script, "echo \"$@\" >> %s\n", ret.log)

	err := os.WriteFile(ret.Binary, []byte(script.String()), 0o755)
	if err != nil {
		return ret, fmt.Errorf("failed to write fake git: %w", err)
	}

	return ret, nil
}

func (g FakeGit) Repository(project string) entity.Repository {
	return entity.Repository{
		Name:   project,
		Path:   filepath.Join(g.dir, project+".git"),
		Origin: "origin",
		Refs:   "+refs/heads/*:refs/heads/*",
	}
}

// Fetches returns the arguments of every completed fetch.
func (g FakeGit) Fetches() []string {
	content, err := os.ReadFile(g.log)
	if err != nil {
		return nil
	}

	return strings.Split(strings.TrimSpace(string(content)), "\n")
}

// Count returns the completed fetches of project.
func (g FakeGit) Count(project string) int {
	path := g.Repository(project).Path
	ret := 0

	for _, fetch := range g.Fetches() {
		fields := strings.Fields(fetch)
		if len(fields) > 1 && fields[1] == path {
			ret++
		}
	}

	return ret
}

// ScrapeMetrics renders the registry the way the metrics endpoint does, then parses it back.
func ScrapeMetrics(registry *prometheus.Registry) (map[string]*promdto.MetricFamily, error) {
	recorder := httptest.NewRecorder()

	promhttp.HandlerFor(registry, promhttp.HandlerOpts{}).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	parser := expfmt.TextParser{}

	ret, err := parser.TextToMetricFamilies(strings.NewReader(recorder.Body.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse metrics: %w", err)
	}

	return ret, nil
}

// CounterValue returns the value of the counter of family matching the label, 0 when absent.
func CounterValue(families map[string]*promdto.MetricFamily, family string, labelName string, labelValue string) float64 {
	metricFamily, ok := families[family]
	if !ok {
		return 0
	}

	for _, metric := range metricFamily.GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == labelName && label.GetValue() == labelValue {
				return metric.GetCounter().GetValue()
			}
		}
	}

	return 0
}
