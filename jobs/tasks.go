// Package jobs holds background task definitions and the Asynq worker glue.
package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskWeightRecalc refreshes a stored order weight from its line items.
	TaskWeightRecalc = "orders:recalc_weight"
	// TaskConsolidationScan looks for new order pairing opportunities.
	TaskConsolidationScan = "consolidation:scan"
)

// WeightRecalcPayload identifies the order whose weight is refreshed.
type WeightRecalcPayload struct {
	OrderID int64 `json:"order_id"`
}

// NewWeightRecalcTask constructs an Asynq task.
func NewWeightRecalcTask(payload WeightRecalcPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWeightRecalc, data, asynq.Queue(QueueDefault)), nil
}

// ConsolidationScanPayload scopes a scan run. OrderID zero means every
// ready-to-ship order.
type ConsolidationScanPayload struct {
	OrderID int64 `json:"order_id"`
}

// NewConsolidationScanTask constructs an Asynq task.
func NewConsolidationScanTask(payload ConsolidationScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskConsolidationScan, data, asynq.Queue(QueueDefault)), nil
}

// Client submits jobs to the queue.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	client := asynq.NewClient(redisOpts)
	return &Client{client: client}, nil
}

// EnqueueWeightRecalc enqueues a weight refresh for one order.
func (c *Client) EnqueueWeightRecalc(ctx context.Context, payload WeightRecalcPayload) (*asynq.TaskInfo, error) {
	task, err := NewWeightRecalcTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// EnqueueConsolidationScan enqueues a pairing scan.
func (c *Client) EnqueueConsolidationScan(ctx context.Context, payload ConsolidationScanPayload) (*asynq.TaskInfo, error) {
	task, err := NewConsolidationScanTask(payload)
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
