package cmd

import (
	"fmt"
	"os"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/gerritevents/gerrit-events/internal/common"
	"github.com/gerritevents/gerrit-events/internal/domain/entity"
	"github.com/gerritevents/gerrit-events/internal/domain/repo/fetchhistory"
	"github.com/gerritevents/gerrit-events/internal/factory"
	"github.com/gerritevents/gerrit-events/internal/log"
	"github.com/gerritevents/gerrit-events/internal/scheduler"
	"github.com/gerritevents/gerrit-events/pkg/pipeline"
)

const schedulerNamespace = "scheduler"

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Fetch the local clones when the relays report a replication",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.Logger()

		var closers common.Closers
		defer func() { closeAll(closers) }()

		ctx, registry, err := setupProcess(&closers)
		if err != nil {
			return err
		}

		schedulerConf := conf.Scheduler

		repositories, err := factory.CreateRepositories(schedulerConf)
		if err != nil {
			return err
		}

		logger.Info("Watching repositories", "count", len(repositories), "relays", schedulerConf.Relays)

		subscriber, closeSubscriber, err := factory.CreateSubscriber(ctx, schedulerConf)
		if err != nil {
			return err
		}

		closers.Add(closeSubscriber)

		queues := scheduler.NewQueues()

		router := scheduler.NewRouter(subscriber, schedulerConf.TriggerKinds, repositories, queues).WithLogger(logger.WithName("router"))

		monitor, err := scheduler.NewMonitor(clockwork.NewRealClock(), queues.Beats, registry, scheduler.MonitorConfig{
			Period:    schedulerConf.Heartbeat.Period,
			MaxMissed: schedulerConf.Heartbeat.MaxMissed,
			Namespace: schedulerNamespace,
		})
		if err != nil {
			return fmt.Errorf("failed to create heartbeat monitor: %w", err)
		}

		monitor = monitor.WithLogger(logger.WithName("heartbeat"))

		// Create fetch pipeline
		var fetch pipeline.Processing[entity.Repository] = scheduler.NewGitFetcher(schedulerConf.Fetch.GitBinary).WithLogger(logger.WithName("fetcher"))

		if schedulerConf.History.Valkey.URL != "" {
			client, closeClient, err := factory.CreateValkeyClient(ctx, schedulerConf.History.Valkey)
			if err != nil {
				return err
			}

			closers.Add(closeClient)

			hostname, err := os.Hostname()
			if err != nil {
				return fmt.Errorf("failed to get hostname: %w", err)
			}

			history := fetchhistory.NewValkeyRepo(client, schedulerConf.History.Expiration, schedulerConf.History.KeyPrefix)
			fetch = scheduler.NewHistoryRecorder(fetch, history, clockwork.NewRealClock(), hostname).WithLogger(logger.WithName("history"))
		}

		fetch, err = factory.DecorateFetchProcessing(fetch, registry)
		if err != nil {
			return fmt.Errorf("failed to create fetch processing: %w", err)
		}

		coalescing, err := scheduler.NewCoalescing(fetch, registry, pipeline.MetricsConfig{Namespace: schedulerNamespace})
		if err != nil {
			return fmt.Errorf("failed to create coalescing: %w", err)
		}

		coalescing = coalescing.WithLogger(logger.WithName("coalescing"))

		// Start scheduler
		err = scheduler.NewService(router, monitor, coalescing, queues).WithLogger(logger.WithName("scheduler")).Run(ctx)

		logger.V(2).Info("Scheduler stopped")

		return err
	},
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
}
