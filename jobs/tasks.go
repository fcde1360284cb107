// Package jobs runs the console's background work on asynq.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/grantdesk/grantdesk/internal/backend"
	"github.com/grantdesk/grantdesk/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDiscardDraft deletes an entity whose wizard was cancelled after
	// the first step.
	TaskDiscardDraft = "wizard:discard_draft"
)

// DiscardDraftPayload identifies the abandoned entity.
type DiscardDraftPayload struct {
	Kind     string `json:"kind"`
	Resource string `json:"resource"`
	EntityID string `json:"entity_id"`
}

// Path is the backend path of the entity.
func (p DiscardDraftPayload) Path() string {
	return strings.TrimRight(p.Resource, "/") + "/" + p.EntityID
}

// NewDiscardDraftTask constructs an asynq task. The task id dedupes repeated
// cancellations of the same draft.
func NewDiscardDraftTask(payload DiscardDraftPayload) (*asynq.Task, error) {
	if payload.Resource == "" || payload.EntityID == "" {
		return nil, errors.New("jobs: discard draft: resource and entity id required")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDiscardDraft, data,
		asynq.TaskID("discard:"+payload.Kind+":"+payload.Path()),
		asynq.MaxRetry(5),
		asynq.Timeout(time.Minute),
	), nil
}

// Deleter removes a backend entity.
type Deleter interface {
	Delete(ctx context.Context, token, path string) error
}

// Observer records processed tasks.
type Observer interface {
	ObserveJob(task string, err error)
}

// DiscardDraftJob handles TaskDiscardDraft with the service account token.
type DiscardDraftJob struct {
	backend  Deleter
	tokens   backend.TokenSource
	observer Observer
	logger   *slog.Logger
}

// NewDiscardDraftJob builds the handler. observer may be nil.
func NewDiscardDraftJob(be Deleter, tokens backend.TokenSource, observer Observer, logger *slog.Logger) *DiscardDraftJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscardDraftJob{backend: be, tokens: tokens, observer: observer, logger: logger}
}

// Handle deletes the entity. An entity that is already gone counts as done.
func (j *DiscardDraftJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload DiscardDraftPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.observe(err)
		return fmt.Errorf("jobs: decode discard payload: %w: %w", err, asynq.SkipRetry)
	}
	err := j.backend.Delete(ctx, j.tokens.Token(), payload.Path())
	if errors.Is(err, shared.ErrNotFound) {
		err = nil
	}
	j.observe(err)
	if err != nil {
		j.logger.Warn("discard draft", slog.String("kind", payload.Kind), slog.String("path", payload.Path()), slog.Any("error", err))
		if errors.Is(err, shared.ErrUnauthenticated) {
			return fmt.Errorf("jobs: discard draft: %w: %w", err, asynq.SkipRetry)
		}
		return err
	}
	j.logger.Info("draft discarded", slog.String("kind", payload.Kind), slog.String("path", payload.Path()))
	return nil
}

func (j *DiscardDraftJob) observe(err error) {
	if j.observer != nil {
		j.observer.ObserveJob(TaskDiscardDraft, err)
	}
}
