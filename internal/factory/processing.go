package factory

import (
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gerritevents/gerrit-events/internal/config"
	"github.com/gerritevents/gerrit-events/internal/domain/entity"
	"github.com/gerritevents/gerrit-events/pkg/pipeline"
)

const (
	relayNamespace     = "relay"
	relayErrNamespace  = "relay_error"
	schedulerNamespace = "scheduler"
)

/*
 * DecorateRecordProcessing decorates the processing of upstream records as follow:
 *
 * panic --> duration --> main (decode + filter + queue)
 */
func DecorateRecordProcessing(mainProcessing pipeline.Processing[[]byte], registry prometheus.Registerer) (pipeline.Processing[[]byte], error) {
	ret, err := pipeline.NewDurationMetricsDecoratorProcessing(mainProcessing, registry, clockwork.NewRealClock(), pipeline.MetricsConfig{
		Namespace: relayNamespace,
		Buckets:   []float64{0.1, 0.5, 1, 5, 10, 50},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create duration metrics processor: %w", err)
	}

	ret = pipeline.NewPanicHandlerProcessing(ret)

	return ret, nil
}

/*
 * DecorateErrorProcessing decorates the error processing as follow:
 *
 *										---> retry --> dead letter (s3, optional)
 *	panic --> duration --> parallel ---|
 *										---> error count
 */
func DecorateErrorProcessing(deadLetter pipeline.ErrorProcessing, registry prometheus.Registerer, retryConf config.Retry) (pipeline.ErrorProcessing, error) {
	errorCount, err := pipeline.NewErrorCountProcessing(registry, pipeline.MetricsConfig{Namespace: relayErrNamespace})
	if err != nil {
		return nil, fmt.Errorf("failed to create error count processing: %w", err)
	}

	var ret pipeline.ErrorProcessing = errorCount

	if deadLetter != nil {
		retrying := pipeline.NewRetryProcessing[pipeline.ErrProcessingError](deadLetter, pipeline.RetryConfig{
			MaxAttempt: retryConf.MaxAttempt,
			Delay:      retryConf.Delay,
		})

		ret = pipeline.NewParallelProcessing[pipeline.ErrProcessingError](retrying, errorCount)
	}

	ret, err = pipeline.NewDurationMetricsDecoratorProcessing[pipeline.ErrProcessingError](ret, registry, clockwork.NewRealClock(), pipeline.MetricsConfig{Namespace: relayErrNamespace})
	if err != nil {
		return nil, fmt.Errorf("failed to create duration metrics processor: %w", err)
	}

	ret = pipeline.NewPanicHandlerProcessing[pipeline.ErrProcessingError](ret)

	return ret, nil
}

/*
 * DecoratePublishProcessing decorates the publishing of outgoing events as follow:
 *
 * count by kind --> main (encode + send)
 */
func DecoratePublishProcessing(mainProcessing pipeline.Processing[entity.Event], registry prometheus.Registerer) (pipeline.Processing[entity.Event], error) {
	ret, err := pipeline.NewCountDecoratorProcessing(mainProcessing, registry, pipeline.CountConfig[entity.Event]{
		Namespace: relayNamespace,
		Name:      "published_events_total",
		Help:      "Events published to the subscribers, by kind.",
		LabelName: "kind",
		Label:     func(event entity.Event) string { return event.Kind },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create count processor: %w", err)
	}

	return ret, nil
}

/*
 * DecorateFetchProcessing decorates the fetch of one repository as follow:
 *
 * panic --> duration --> main (git fetch, with history when enabled)
 */
func DecorateFetchProcessing(mainProcessing pipeline.Processing[entity.Repository], registry prometheus.Registerer) (pipeline.Processing[entity.Repository], error) {
	ret, err := pipeline.NewDurationMetricsDecoratorProcessing(mainProcessing, registry, clockwork.NewRealClock(), pipeline.MetricsConfig{
		Namespace: schedulerNamespace,
		Buckets:   []float64{100, 500, 1000, 5000, 10000, 30000, 60000, 300000},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create duration metrics processor: %w", err)
	}

	ret = pipeline.NewPanicHandlerProcessing(ret)

	return ret, nil
}
