package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/rangoon-shop/rangoon-admin/internal/audit"
	jobmetrics "github.com/rangoon-shop/rangoon-admin/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// AuditFlushJob appends queued audit entries to the primary sink.
type AuditFlushJob struct {
	Sink    audit.Sink
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewAuditFlushJob constructs the job handler.
func NewAuditFlushJob(sink audit.Sink, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditFlushJob {
	return &AuditFlushJob{Sink: sink, Logger: logger, Metrics: metrics}
}

// Handle executes one re-delivery. Appends are idempotent by entry id, so retries are safe.
func (j *AuditFlushJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Sink == nil {
		return errors.New("audit flush: sink not configured")
	}
	var payload AuditFlushPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return errors.Join(err, asynq.SkipRetry)
	}
	e := payload.Entry
	if e.ID == "" || e.ActorID == "" {
		j.log().Warn("dropping malformed audit entry", slog.String("entry", e.ID))
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskAuditFlush)
	if _, err := j.Sink.Append(ctx, e); err != nil {
		j.log().Error("re-append audit entry", slog.String("entry", e.ID), slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics().Redelivered(string(e.Resource))
	j.log().Info("audit entry delivered", slog.String("entry", e.ID), slog.String("resource", string(e.Resource)))
	return tracker.End(nil)
}

func (j *AuditFlushJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *AuditFlushJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskAuditFlush))
	}
	return slog.Default().With(slog.String("job", TaskAuditFlush))
}
