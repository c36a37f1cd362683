package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/version"
	"github.com/spf13/cobra"

	"github.com/gerritevents/gerrit-events/internal/common"
	"github.com/gerritevents/gerrit-events/internal/config"
	"github.com/gerritevents/gerrit-events/internal/factory"
	"github.com/gerritevents/gerrit-events/internal/log"
)

const (
	debugLevel = 3

	develVersion = "devel"
)

var (
	cfgFile string
	debug   bool

	conf *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "gerrit-events",
	Short: "Relay gerrit events and keep local clones up to date",
	Long: `
Relay gerrit events to many subscribers and fetch the local clones they keep up to date.

The relay reads the gerrit event stream (ssh stream-events or kafka) and publishes the accepted
events, plus periodic keepalives, on a ZeroMQ PUB socket. The scheduler subscribes to one or more
relays and runs git fetch for the replicated projects, at most one fetch per project at a time.

Configuration is read from the --config file then overridden by GERRITEVENTS_* environment variables
(relay.publish.port -> GERRITEVENTS_RELAY_PUBLISH_PORT).
`,
	Version:       binaryVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		conf, err = config.Parse(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to parse config %s: %w", cfgFile, err)
		}

		if debug {
			conf.Logs.Level = max(conf.Logs.Level, debugLevel)
		}

		// Init logger
		err = log.Init(conf.Logs)
		if err != nil {
			return fmt.Errorf("failed to init logger: %w", err)
		}

		logger := log.Logger()

		// Dump generic information
		logger.Info("Starting gerrit-events "+cmd.Name(),
			"version", version.Info(),
			"buildContext", version.BuildContext(),
		)
		logger.V(1).Info("Using config", "config", fmt.Sprintf("%+v", conf))

		return nil
	},
}

// Execute runs the selected command and exits with status 1 on failure.
// A stop requested by a signal is not a failure.
func Execute() {
	err := rootCmd.Execute()
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}

	log.Logger().Error(err, "Stopped")
	fmt.Fprintln(os.Stderr, "Error:", err)

	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logs")
	rootCmd.Flags().BoolP("version", "V", false, "print the version and exit")
}

// binaryVersion is set at build time through -ldflags on github.com/prometheus/common/version.
func binaryVersion() string {
	if version.Version == "" {
		return develVersion
	}

	return version.Version
}

// setupProcess tunes the runtime for the container limits, then starts the metrics server.
// The returned context is canceled on SIGINT/SIGTERM.
func setupProcess(closers *common.Closers) (context.Context, *prometheus.Registry, error) {
	logger := log.Logger()

	// Set max procs based on cpu limits
	err := common.SetMaxProcs()
	if err != nil {
		return nil, nil, err
	}

	// Set max memory, only available with cgroups
	err = common.SetMemLimit()
	if err != nil {
		logger.V(1).Info("Go memlimit not set", "reason", err.Error())
	}

	// Listen to sigterm and interrupt signals
	ctx := common.SetupSignalHandler(context.Background())

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if conf.Metrics.Port > 0 {
		server := factory.CreatePrometheusServer(conf.Metrics, registry)

		go func() {
			err := server.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error(err, "Metrics server stopped")
			}
		}()

		closers.Add(server.Shutdown)
	}

	return ctx, registry, nil
}

func closeAll(closers common.Closers) {
	err := closers.Close(context.Background())
	if err != nil {
		log.Logger().Error(err, "Failed to release resources")
	}
}
