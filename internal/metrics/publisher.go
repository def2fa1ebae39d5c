// Package metrics publishes engine and API telemetry to CloudWatch.
package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"riskwatch/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

const (
	// putMetricDataBatchSize is the number of datum entries per PutMetricData
	// call.
	putMetricDataBatchSize = 20

	// defaultFlushInterval bounds how long a datum can sit in the buffer.
	defaultFlushInterval = 10 * time.Second

	// publishTimeout caps a single PutMetricData call.
	publishTimeout = 5 * time.Second

	bufferSize = 1024
)

// Publisher batches metric data and flushes it to CloudWatch in the
// background. Record methods never block the caller: when the buffer is full
// the datum is dropped and counted, since losing a metric point is preferable
// to stalling a request.
type Publisher struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger

	ch            chan cwtypes.MetricDatum
	done          chan struct{}
	wg            sync.WaitGroup
	flushInterval time.Duration

	mu      sync.Mutex
	dropped int64

	now func() time.Time
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithFlushInterval overrides the background flush interval.
func WithFlushInterval(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		if d > 0 {
			p.flushInterval = d
		}
	}
}

// NewPublisher creates a Publisher and starts its flush loop. Call Close to
// drain the buffer on shutdown.
func NewPublisher(client CloudWatchClient, logger *slog.Logger, opts ...PublisherOption) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Publisher{
		client:        client,
		namespace:     types.MetricNamespace,
		logger:        logger,
		ch:            make(chan cwtypes.MetricDatum, bufferSize),
		done:          make(chan struct{}),
		flushInterval: defaultFlushInterval,
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	p.wg.Add(1)
	go p.loop()
	return p
}

// Close flushes buffered metrics and stops the background loop.
func (p *Publisher) Close() {
	close(p.done)
	p.wg.Wait()
}

// Dropped reports how many datum entries were discarded because the buffer
// was full.
func (p *Publisher) Dropped() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// RecordRequest emits APILatency with Method, Endpoint and Status dimensions.
// It implements the HTTP middleware metrics collector.
func (p *Publisher) RecordRequest(method, endpoint, status string, duration time.Duration) {
	p.enqueue(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricAPILatency),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Timestamp:  aws.Time(p.now()),
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimMethod), Value: aws.String(method)},
			{Name: aws.String(types.DimEndpoint), Value: aws.String(endpoint)},
			{Name: aws.String(types.DimStatus), Value: aws.String(status)},
		},
	})
}

// RecordIngest emits the accepted and rejected record counts of an ingest
// batch.
func (p *Publisher) RecordIngest(accepted, rejected int) {
	ts := p.now()
	p.enqueue(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricIngestAccepted),
		Value:      aws.Float64(float64(accepted)),
		Unit:       cwtypes.StandardUnitCount,
		Timestamp:  aws.Time(ts),
	})
	p.enqueue(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricIngestRejected),
		Value:      aws.Float64(float64(rejected)),
		Unit:       cwtypes.StandardUnitCount,
		Timestamp:  aws.Time(ts),
	})
}

// RecordEvaluation emits the evaluated neighborhood count and the wall-clock
// latency of a table evaluation.
func (p *Publisher) RecordEvaluation(neighborhoods int, duration time.Duration) {
	ts := p.now()
	p.enqueue(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricEvaluationCount),
		Value:      aws.Float64(float64(neighborhoods)),
		Unit:       cwtypes.StandardUnitCount,
		Timestamp:  aws.Time(ts),
	})
	p.enqueue(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricEvaluationLatency),
		Value:      aws.Float64(float64(duration.Milliseconds())),
		Unit:       cwtypes.StandardUnitMilliseconds,
		Timestamp:  aws.Time(ts),
	})
}

// RecordCacheStats emits cumulative evaluation cache hit and miss counters.
func (p *Publisher) RecordCacheStats(hits, misses int64) {
	ts := p.now()
	p.enqueue(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricCacheHit),
		Value:      aws.Float64(float64(hits)),
		Unit:       cwtypes.StandardUnitCount,
		Timestamp:  aws.Time(ts),
	})
	p.enqueue(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricCacheMiss),
		Value:      aws.Float64(float64(misses)),
		Unit:       cwtypes.StandardUnitCount,
		Timestamp:  aws.Time(ts),
	})
}

// RecordDataFreshness emits the indicator data lag in periods behind the
// current month.
func (p *Publisher) RecordDataFreshness(lagPeriods int) {
	p.enqueue(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricDataFreshness),
		Value:      aws.Float64(float64(lagPeriods)),
		Unit:       cwtypes.StandardUnitCount,
		Timestamp:  aws.Time(p.now()),
	})
}

// RecordUpstreamFailure emits a failure counter for an external data source.
func (p *Publisher) RecordUpstreamFailure(source string) {
	p.enqueue(cwtypes.MetricDatum{
		MetricName: aws.String(types.MetricUpstreamFailure),
		Value:      aws.Float64(1),
		Unit:       cwtypes.StandardUnitCount,
		Timestamp:  aws.Time(p.now()),
		Dimensions: []cwtypes.Dimension{
			{Name: aws.String(types.DimSource), Value: aws.String(source)},
		},
	})
}

func (p *Publisher) enqueue(d cwtypes.MetricDatum) {
	select {
	case p.ch <- d:
	default:
		p.mu.Lock()
		p.dropped++
		p.mu.Unlock()
	}
}

func (p *Publisher) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	batch := make([]cwtypes.MetricDatum, 0, putMetricDataBatchSize)
	for {
		select {
		case d := <-p.ch:
			batch = append(batch, d)
			if len(batch) >= putMetricDataBatchSize {
				p.flush(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				p.flush(batch)
				batch = batch[:0]
			}
		case <-p.done:
			// Drain whatever is still buffered before exiting.
			for {
				select {
				case d := <-p.ch:
					batch = append(batch, d)
					if len(batch) >= putMetricDataBatchSize {
						p.flush(batch)
						batch = batch[:0]
					}
				default:
					if len(batch) > 0 {
						p.flush(batch)
					}
					return
				}
			}
		}
	}
}

func (p *Publisher) flush(batch []cwtypes.MetricDatum) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(p.namespace),
		MetricData: batch,
	}
	if _, err := p.client.PutMetricData(ctx, input); err != nil {
		p.logger.Error("failed to publish metrics batch",
			"error", err,
			"batch_size", len(batch),
		)
	}
}
