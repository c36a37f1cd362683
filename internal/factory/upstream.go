package factory

import (
	"fmt"
	"strings"

	"github.com/gerritevents/gerrit-events/internal/common"
	"github.com/gerritevents/gerrit-events/internal/config"
	"github.com/gerritevents/gerrit-events/internal/log"
	"github.com/gerritevents/gerrit-events/internal/upstream"
)

// CreateUpstreamSource creates the event source selected by conf.Type.
func CreateUpstreamSource(conf config.Upstream) (upstream.Source, common.CloseFunc, error) {
	logger := log.Logger().WithName("upstream")

	switch conf.Type {
	case config.UpstreamTypeSSH:
		if conf.SSH.Host == "" {
			return nil, nil, fmt.Errorf("no ssh host configured")
		}

		clientConfig, closeFunc, err := CreateSSHClientConfig(conf.SSH)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create ssh client config: %w", err)
		}

		source := upstream.NewSSHSource(conf.SSH.Host, conf.SSH.Port, conf.SSH.Command, clientConfig).WithLogger(logger)

		return source, closeFunc, nil
	case config.UpstreamTypeKafka:
		consumer, err := CreateKafkaConsumer(conf.Kafka)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create kafka consumer: %w", err)
		}

		topics := strings.Split(conf.Kafka.Consumer.Topic, ",")
		source := upstream.NewKafkaSource(consumer, topics).WithLogger(logger)

		return source, common.CloseFuncOf(consumer.Close), nil
	default:
		return nil, nil, fmt.Errorf("unknown upstream type %q", conf.Type)
	}
}
