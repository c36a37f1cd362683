package upstream

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/go-logr/logr"
)

// KafkaSource reads upstream events published on a kafka topic, one JSON record per message.
type KafkaSource struct {
	consumer sarama.ConsumerGroup
	topics   []string

	logger *logr.Logger
}

func NewKafkaSource(consumer sarama.ConsumerGroup, topics []string) KafkaSource {
	return KafkaSource{
		consumer: consumer,
		topics:   topics,
	}
}

func (k KafkaSource) WithLogger(logger logr.Logger) KafkaSource {
	k.logger = &logger

	return k
}

func (k KafkaSource) Stream(ctx context.Context, session Session) error {
	err := k.stream(ctx, session)

	session.OnClose(err)

	return err
}

func (k KafkaSource) stream(ctx context.Context, session Session) error {
	go func() {
		for err := range k.consumer.Errors() {
			k.logError(err, "kafka consumer error")
		}
	}()

	handler := sessionHandler{
		session: session,
		logger:  k.logger,
	}

	// Consume returns on every rebalance
	for {
		err := k.consumer.Consume(ctx, k.topics, handler)
		if err != nil {
			return fmt.Errorf("%w: consumer failed: %w", ErrStreamClosed, err)
		}

		err = ctx.Err()
		if err != nil {
			k.logInfo(0, "Context expired")

			return err
		}
	}
}

func (k KafkaSource) logInfo(level int, msg string, keysAndValues ...any) {
	if k.logger == nil {
		return
	}

	k.logger.V(level).Info(msg, keysAndValues...)
}

func (k KafkaSource) logError(err error, msg string, keysAndValues ...any) {
	if k.logger == nil {
		return
	}

	k.logger.Error(err, msg, keysAndValues...)
}

// sessionHandler forwards every claimed message to the session as one line.
type sessionHandler struct {
	session Session
	logger  *logr.Logger
}

func (h sessionHandler) ConsumeClaim(groupSession sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := groupSession.Context()

	h.logInfo(0, "Start consuming",
		"topic", claim.Topic(),
		"partition", claim.Partition(),
		"initialOffset", claim.InitialOffset(),
	)

	for msg := range claim.Messages() {
		// If a re-balancing occurred, context will be canceled
		if ctx.Err() != nil {
			break
		}

		if msg == nil {
			h.logInfo(1, "Nil message")

			continue
		}

		h.logInfo(3, "Forwarding message", "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)

		record := make([]byte, 0, len(msg.Value)+1)
		record = append(record, msg.Value...)
		record = append(record, '\n')

		h.session.OnData(record)

		groupSession.MarkMessage(msg, "")
	}

	return nil
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (h sessionHandler) Setup(groupSession sarama.ConsumerGroupSession) error {
	h.logInfo(0, "Setup to consume", "claims", groupSession.Claims())

	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (h sessionHandler) Cleanup(groupSession sarama.ConsumerGroupSession) error {
	h.logInfo(0, "Cleanup after consuming", "claims", groupSession.Claims())

	return nil
}

func (h sessionHandler) logInfo(level int, msg string, keysAndValues ...any) {
	if h.logger == nil {
		return
	}

	h.logger.V(level).Info(msg, keysAndValues...)
}
