// Package consumer ingests run requests from the Redis stream trigger
// path. External trigger services append requests; the consumer creates
// the pending run row and hands the run id to the dispatch queue.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/chigozzdevv/zecflow-sub000/common/config"
	"github.com/chigozzdevv/zecflow-sub000/common/logger"
	"github.com/chigozzdevv/zecflow-sub000/common/models"
	"github.com/chigozzdevv/zecflow-sub000/common/queue"
	"github.com/chigozzdevv/zecflow-sub000/common/redis"
	"github.com/chigozzdevv/zecflow-sub000/common/repository"
)

// RunQueueTopic is the in-process topic workers drain
const RunQueueTopic = "run.dispatch"

// RunRequest is one trigger event on the stream
type RunRequest struct {
	WorkflowID string          `json:"workflow_id"`
	OrgID      string          `json:"org_id"`
	Payload    map[string]any  `json:"payload,omitempty"`
	GraphPatch json.RawMessage `json:"graph_patch,omitempty"`
}

// RunRequestConsumer consumes run requests and enqueues pending runs
type RunRequestConsumer struct {
	redis    *redis.Client
	runs     *repository.RunRepository
	queue    queue.Queue
	log      *logger.Logger
	stream   string
	group    string
	consumer string
}

// NewRunRequestConsumer creates a new run request consumer
func NewRunRequestConsumer(client *redis.Client, runs *repository.RunRepository, q queue.Queue, cfg *config.Config, log *logger.Logger) *RunRequestConsumer {
	return &RunRequestConsumer{
		redis:    client,
		runs:     runs,
		queue:    q,
		log:      log,
		stream:   cfg.Redis.Stream,
		group:    cfg.Redis.Group,
		consumer: fmt.Sprintf("run_executor_%d", time.Now().Unix()),
	}
}

// Start begins consuming run requests until the context is cancelled
func (c *RunRequestConsumer) Start(ctx context.Context) error {
	c.log.Info("starting run request consumer",
		"stream", c.stream,
		"consumer_group", c.group,
		"consumer_name", c.consumer)

	if err := c.redis.CreateStreamGroup(ctx, c.stream, c.group); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			c.log.Info("run request consumer stopping")
			return nil
		default:
			if err := c.processNext(ctx); err != nil {
				c.log.Error("failed to process run request", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

func (c *RunRequestConsumer) processNext(ctx context.Context) error {
	streams, err := c.redis.ReadFromStreamGroup(ctx, c.group, c.consumer, c.stream, 1, 5*time.Second)
	if err != nil {
		return err
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			if err := c.handleMessage(ctx, message); err != nil {
				c.log.Error("failed to handle run request", "message_id", message.ID, "error", err)
				// Fall through to the ACK: malformed requests are not retryable
			}
			if err := c.redis.AckStreamMessage(ctx, c.stream, c.group, message.ID); err != nil {
				c.log.Error("failed to ACK run request", "message_id", message.ID, "error", err)
			}
		}
	}

	return nil
}

func (c *RunRequestConsumer) handleMessage(ctx context.Context, message goredis.XMessage) error {
	requestJSON, ok := message.Values["request"].(string)
	if !ok {
		return fmt.Errorf("message missing request field")
	}

	var request RunRequest
	if err := json.Unmarshal([]byte(requestJSON), &request); err != nil {
		return fmt.Errorf("failed to unmarshal run request: %w", err)
	}

	workflowID, err := uuid.Parse(request.WorkflowID)
	if err != nil {
		return fmt.Errorf("invalid workflow_id: %w", err)
	}

	run := &models.Run{
		ID:         uuid.New(),
		WorkflowID: workflowID,
		OrgID:      request.OrgID,
		Payload:    request.Payload,
		GraphPatch: request.GraphPatch,
		Status:     models.RunPending,
	}
	if err := c.runs.Create(ctx, run); err != nil {
		return err
	}

	c.log.Info("run request accepted", "run_id", run.ID, "workflow_id", workflowID, "org", request.OrgID)

	return c.queue.Publish(ctx, RunQueueTopic, run.ID.String(), []byte(run.ID.String()))
}
