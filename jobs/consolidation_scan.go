package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/millstone-erp/millstone-erp/internal/jobs"
	"github.com/millstone-erp/millstone-erp/internal/orders"
)

// SuggestionScanner asks the database routine to pair one order with nearby
// ready orders. Returns the number of suggestions created.
type SuggestionScanner interface {
	ScanForOrder(ctx context.Context, orderID int64) (int, error)
}

// ConsolidationScanJob discovers pairing opportunities. Enqueued for a
// single order when it becomes ready to ship, and on a cron over the whole
// ready backlog.
type ConsolidationScanJob struct {
	Scanner SuggestionScanner
	Orders  orders.Repository
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewConsolidationScanJob constructs the job handler.
func NewConsolidationScanJob(scanner SuggestionScanner, ordersRepo orders.Repository, logger *slog.Logger, metrics *jobmetrics.Metrics) *ConsolidationScanJob {
	return &ConsolidationScanJob{Scanner: scanner, Orders: ordersRepo, Logger: logger, Metrics: metrics}
}

// Handle executes the scan job.
func (j *ConsolidationScanJob) Handle(ctx context.Context, task *asynq.Task) (resultErr error) {
	if j == nil || j.Scanner == nil || j.Orders == nil {
		return errors.New("consolidation scan: dependencies not configured")
	}
	var payload ConsolidationScanPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskConsolidationScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	orderIDs, err := j.resolveOrders(ctx, payload.OrderID)
	if err != nil {
		j.log().Error("resolve orders", slog.Any("error", err))
		return err
	}
	if len(orderIDs) == 0 {
		j.log().Info("no ready orders to scan")
		return nil
	}

	start := time.Now()
	found := 0
	for _, orderID := range orderIDs {
		created, err := j.Scanner.ScanForOrder(ctx, orderID)
		if err != nil {
			j.log().Error("scan order", slog.Int64("order_id", orderID), slog.Any("error", err))
			return err
		}
		found += created
	}
	j.Metrics.AddSuggestions(found)

	j.log().Info("consolidation scan finished",
		slog.Int("orders", len(orderIDs)), slog.Int("suggestions", found),
		slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *ConsolidationScanJob) resolveOrders(ctx context.Context, orderID int64) ([]int64, error) {
	if orderID > 0 {
		order, err := j.Orders.GetOrder(ctx, orderID)
		if err != nil {
			return nil, err
		}
		// The order may have shipped between enqueue and execution.
		if order.Status != orders.StatusReadyToShip {
			j.log().Info("order no longer ready, skipping scan",
				slog.Int64("order_id", orderID), slog.String("status", string(order.Status)))
			return nil, nil
		}
		return []int64{order.ID}, nil
	}
	ready, err := j.Orders.ListReadyToShip(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(ready))
	for _, order := range ready {
		ids = append(ids, order.ID)
	}
	return ids, nil
}

func (j *ConsolidationScanJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskConsolidationScan))
	}
	return slog.Default().With(slog.String("job", TaskConsolidationScan))
}
