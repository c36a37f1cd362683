package cmd

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/gerritevents/gerrit-events/internal/common"
	"github.com/gerritevents/gerrit-events/internal/domain/repo/deadletter"
	"github.com/gerritevents/gerrit-events/internal/factory"
	"github.com/gerritevents/gerrit-events/internal/log"
	"github.com/gerritevents/gerrit-events/internal/relay"
	"github.com/gerritevents/gerrit-events/pkg/pipeline"
)

// relayCmd represents the relay command
var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Read the gerrit event stream and publish it to the schedulers",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.Logger()

		var closers common.Closers
		defer func() { closeAll(closers) }()

		ctx, registry, err := setupProcess(&closers)
		if err != nil {
			return err
		}

		relayConf := conf.Relay

		// Upstream
		source, closeSource, err := factory.CreateUpstreamSource(relayConf.Upstream)
		if err != nil {
			return err
		}

		closers.Add(closeSource)

		// Subscribers side
		publisher, err := factory.CreatePublisher(ctx, relayConf.Publish)
		if err != nil {
			return err
		}

		closers.Add(common.CloseFuncOf(publisher.Close))

		logger.Info("Publishing events", "addr", publisher.Addr().String(), "topic", relayConf.Publish.Topic)

		queues := relay.NewQueues()

		// Create pipelines
		mainProcessing := relay.NewMain(relay.NewDecoder(relayConf.Events), queues.Outgoing).WithLogger(logger.WithName("main"))

		recordProcessing, err := factory.DecorateRecordProcessing(mainProcessing, registry)
		if err != nil {
			return fmt.Errorf("failed to create record processing: %w", err)
		}

		var deadLetter pipeline.ErrorProcessing

		if relayConf.DeadLetterQueue.Bucket != "" {
			s3Client, err := factory.CreateS3Client(ctx, relayConf.DeadLetterQueue)
			if err != nil {
				return fmt.Errorf("failed to create s3 client: %w", err)
			}

			deadLetter = deadletter.NewS3Writer(s3Client, clockwork.NewRealClock(), relayConf.DeadLetterQueue.Bucket, relayConf.DeadLetterQueue.KeyPrefix)
		}

		errorProcessing, err := factory.DecorateErrorProcessing(deadLetter, registry, relayConf.Retry)
		if err != nil {
			return fmt.Errorf("failed to create error processing: %w", err)
		}

		publishProcessing, err := factory.DecoratePublishProcessing(relay.NewPublishing(publisher, relayConf.Publish.Topic), registry)
		if err != nil {
			return fmt.Errorf("failed to create publish processing: %w", err)
		}

		emitter := relay.NewEmitter(clockwork.NewRealClock(), relayConf.Heartbeat.Period, queues.Outgoing).WithLogger(logger.WithName("heartbeat"))

		// Start relay
		service := relay.NewService(source, publisher, emitter, queues, relay.Pipelines{
			Record:  recordProcessing,
			Error:   errorProcessing,
			Publish: publishProcessing,
		}).WithLogger(logger.WithName("relay"))

		err = service.Run(ctx)

		logger.V(2).Info("Relay stopped")

		return err
	},
}

func init() {
	rootCmd.AddCommand(relayCmd)
}
