package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"riskwatch/internal/engine"
	"riskwatch/internal/types"
)

// ReasonScheduledRefresh marks messages that ask the worker to pull the
// upstream feed before re-evaluating. Messages with any other reason
// re-evaluate already-stored data.
const ReasonScheduledRefresh = "scheduled_refresh"

// WorkerMetrics records ingest and evaluation telemetry. Optional.
type WorkerMetrics interface {
	RecordIngest(accepted, rejected int)
	RecordEvaluation(neighborhoods int, duration time.Duration)
}

// Worker consumes evaluation queue messages: it optionally refreshes the
// indicator table from the upstream feed, then evaluates the requested scope
// and persists the results.
type Worker struct {
	indicators types.IndicatorRepository
	results    types.ResultRepository
	evaluator  *engine.Evaluator
	source     *SourceClient
	metrics    WorkerMetrics
	logger     *slog.Logger
}

// NewWorker creates a Worker. source and metrics may be nil; without a
// source, refresh messages evaluate stored data only.
func NewWorker(
	indicators types.IndicatorRepository,
	results types.ResultRepository,
	evaluator *engine.Evaluator,
	source *SourceClient,
	metrics WorkerMetrics,
	logger *slog.Logger,
) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		indicators: indicators,
		results:    results,
		evaluator:  evaluator,
		source:     source,
		metrics:    metrics,
		logger:     logger,
	}
}

// HandleSQS processes a batch of evaluation queue messages. Each message is
// handled independently; failures are reported as partial batch failures so
// SQS retries only the affected messages.
func (w *Worker) HandleSQS(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := w.processMessage(ctx, record); err != nil {
			w.logger.ErrorContext(ctx, "failed to process evaluation message",
				"sqs_message_id", record.MessageId,
				"error", err,
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

func (w *Worker) processMessage(ctx context.Context, record events.SQSMessage) error {
	var msg types.EvalMessage
	if err := json.Unmarshal([]byte(record.Body), &msg); err != nil {
		// Permanent parse failure; retrying cannot help, so ACK.
		w.logger.ErrorContext(ctx, "failed to unmarshal evaluation message",
			"sqs_message_id", record.MessageId,
			"error", err,
		)
		return nil
	}

	logger := w.logger.With(
		"message_id", msg.MessageID,
		"reason", msg.Reason,
		"scope", len(msg.NeighborhoodIDs),
	)
	logger.InfoContext(ctx, "processing evaluation message")

	if msg.Reason == ReasonScheduledRefresh && w.source != nil {
		if err := w.refresh(ctx, logger); err != nil {
			return err
		}
	}

	return w.evaluate(ctx, msg, logger)
}

// refresh pulls the upstream feed and stores the valid records. Invalid
// records are dropped with a warning; the valid remainder is always stored.
func (w *Worker) refresh(ctx context.Context, logger *slog.Logger) error {
	fetched, err := w.source.FetchIndicators(ctx)
	if err != nil {
		return err
	}

	valid := make([]types.IndicatorRecord, 0, len(fetched))
	rejected := 0
	for _, rec := range fetched {
		if err := rec.Validate(); err != nil {
			rejected++
			logger.WarnContext(ctx, "rejecting upstream record",
				"neighborhood_id", rec.NeighborhoodID,
				"period", rec.Period.String(),
				"error", err,
			)
			continue
		}
		valid = append(valid, rec)
	}

	if len(valid) > 0 {
		if err := w.indicators.BulkUpsert(ctx, valid); err != nil {
			return err
		}
	}
	if w.metrics != nil {
		w.metrics.RecordIngest(len(valid), rejected)
	}

	logger.InfoContext(ctx, "upstream refresh stored",
		"accepted", len(valid),
		"rejected", rejected,
	)
	return nil
}

func (w *Worker) evaluate(ctx context.Context, msg types.EvalMessage, logger *slog.Logger) error {
	records, err := w.loadRecords(ctx, msg.NeighborhoodIDs)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		// Nothing to evaluate is a no-op, not a retryable failure.
		logger.WarnContext(ctx, "no indicator records in scope; skipping evaluation")
		return nil
	}

	start := time.Now()
	evaluation := w.evaluator.EvaluateTable(ctx, records)
	duration := time.Since(start)

	if len(evaluation.Results) > 0 {
		batch := make([]*types.RiskResult, 0, len(evaluation.Results))
		for _, res := range evaluation.Results {
			batch = append(batch, res)
		}
		if err := w.results.InsertBatch(ctx, evaluation.EvaluationID, batch); err != nil {
			return err
		}
	}

	if w.metrics != nil {
		w.metrics.RecordEvaluation(len(evaluation.Results), duration)
	}

	logger.InfoContext(ctx, "evaluation completed",
		"evaluation_id", evaluation.EvaluationID,
		"neighborhoods", len(evaluation.Results),
		"rejected", len(evaluation.Rejected),
		"alerts", len(evaluation.Alerts),
		"duration", duration,
	)
	return nil
}

func (w *Worker) loadRecords(ctx context.Context, ids []string) ([]types.IndicatorRecord, error) {
	if len(ids) == 0 {
		return w.indicators.ListAll(ctx)
	}
	var records []types.IndicatorRecord
	for _, id := range ids {
		recs, err := w.indicators.ListByNeighborhood(ctx, id)
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return records, nil
}
