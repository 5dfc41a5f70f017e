package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/millstone-erp/millstone-erp/internal/jobs"
)

// WeightRecalculator refreshes a stored order weight.
type WeightRecalculator interface {
	Recalculate(ctx context.Context, orderID int64) error
}

// WeightRecalcJob refreshes credit order weights out of band, so that
// dispatch screens show current figures without the request paying for the
// recalculation.
type WeightRecalcJob struct {
	Weights WeightRecalculator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewWeightRecalcJob constructs the job handler.
func NewWeightRecalcJob(weights WeightRecalculator, logger *slog.Logger, metrics *jobmetrics.Metrics) *WeightRecalcJob {
	return &WeightRecalcJob{Weights: weights, Logger: logger, Metrics: metrics}
}

// Handle executes the weight refresh job.
func (j *WeightRecalcJob) Handle(ctx context.Context, task *asynq.Task) (resultErr error) {
	if j == nil || j.Weights == nil {
		return errors.New("weight recalc: dependencies not configured")
	}
	var payload WeightRecalcPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.OrderID <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskWeightRecalc)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	if err := j.Weights.Recalculate(ctx, payload.OrderID); err != nil {
		j.log().Error("recalculate weight", slog.Int64("order_id", payload.OrderID), slog.Any("error", err))
		return err
	}
	j.log().Info("order weight refreshed", slog.Int64("order_id", payload.OrderID))
	return nil
}

func (j *WeightRecalcJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskWeightRecalc))
	}
	return slog.Default().With(slog.String("job", TaskWeightRecalc))
}
