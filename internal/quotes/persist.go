package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// TypePersistQuotation is the asynq task type that writes a snapshot.
const TypePersistQuotation = "quotation:persist"

// QueueName is the asynq queue quotation writes go through.
const QueueName = "quotations"

// Persister hands a finalized snapshot to storage.
type Persister interface {
	Persist(ctx context.Context, snap Snapshot) error
}

// snapshotSaver is the part of Store the persisters need.
type snapshotSaver interface {
	Save(ctx context.Context, snap Snapshot) error
}

// SyncPersister writes snapshots inline. Used when no Redis is configured.
type SyncPersister struct {
	Store snapshotSaver
}

// Persist implements Persister.
func (p SyncPersister) Persist(ctx context.Context, snap Snapshot) error {
	return p.Store.Save(ctx, snap)
}

// taskEnqueuer is satisfied by *asynq.Client.
type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskPersister enqueues snapshot writes so the worker retries them on failure.
type TaskPersister struct {
	Client   taskEnqueuer
	MaxRetry int
	Timeout  time.Duration
}

// NewPersistTask encodes a snapshot as an asynq task. The snapshot ID doubles as the task ID,
// so enqueuing the same snapshot twice is rejected by asynq.
func NewPersistTask(snap Snapshot, maxRetry int, timeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode quotation task: %w", err)
	}
	opts := []asynq.Option{
		asynq.Queue(QueueName),
		asynq.MaxRetry(maxRetry),
		asynq.TaskID(snap.ID),
	}
	if timeout > 0 {
		opts = append(opts, asynq.Timeout(timeout))
	}
	return asynq.NewTask(TypePersistQuotation, payload, opts...), nil
}

// Persist implements Persister.
func (p TaskPersister) Persist(ctx context.Context, snap Snapshot) error {
	task, err := NewPersistTask(snap, p.MaxRetry, p.Timeout)
	if err != nil {
		return err
	}
	if _, err := p.Client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue quotation %s: %w", snap.ID, err)
	}
	return nil
}

// PersistHandler is the worker side of TaskPersister.
type PersistHandler struct {
	Store  snapshotSaver
	Logger zerolog.Logger
}

// ProcessTask implements asynq.Handler. Undecodable payloads are skipped rather than retried.
func (h PersistHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var snap Snapshot
	if err := json.Unmarshal(t.Payload(), &snap); err != nil {
		h.Logger.Error().Err(err).Str("task_type", t.Type()).Msg("drop malformed quotation task")
		return fmt.Errorf("decode quotation task: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.Store.Save(ctx, snap); err != nil {
		h.Logger.Warn().Err(err).Str("quotation_id", snap.ID).Msg("persist quotation failed")
		return err
	}

	h.Logger.Info().
		Str("quotation_id", snap.ID).
		Str("purchase_request_id", snap.PurchaseRequestID).
		Msg("quotation persisted")
	return nil
}
