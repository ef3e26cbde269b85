// internal/workers/accounts/preview-user-deletion/handler.go
package previewuserdeletion

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"eduprima/internal/common/camunda"
	"eduprima/internal/common/errors"
	"eduprima/internal/common/logger"
	"eduprima/internal/common/metrics"
	"eduprima/internal/common/observability"
	"eduprima/internal/common/validation"
	"eduprima/internal/deletion"
)

const TaskType = "preview-user-deletion"

var schema = validation.MustCompile(TaskType, inputSchema)

type Previewer interface {
	PreviewDeletion(ctx context.Context, id string) (*deletion.Preview, error)
}

type Handler struct {
	config    *Config
	previewer Previewer
	obs       *observability.Observability
	errors    *errors.ErrorHandler
	logger    logger.Logger
}

func NewHandler(config *Config, previewer Previewer, obs *observability.Observability, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		previewer: previewer,
		obs:       obs,
		errors:    errors.NewErrorHandler(l),
		logger:    l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := parseInput(job)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	if err := camunda.CompleteJob(context.Background(), client, job, output); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{"jobKey": job.Key, "error": err.Error()})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	h.obs.RecordJobProcessed(ctx, TaskType, "completed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "completed")
}

func parseInput(job entities.Job) (*Input, error) {
	vars, err := job.GetVariablesAsMap()
	if err != nil {
		return nil, errors.NewInvalidJobVariablesError(err.Error())
	}
	if err := schema.Validate(vars); err != nil {
		return nil, err
	}

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, errors.NewInvalidJobVariablesError(err.Error())
	}
	return &input, nil
}

// Execute computes the deletion preview for input.UserID.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	p, err := h.previewer.PreviewDeletion(ctx, input.UserID)
	if err != nil {
		return nil, toStandardError(err)
	}

	out := &Output{
		UserID:      p.RecordID,
		Entries:     p.Entries,
		TotalRows:   p.TotalRows(),
		Source:      string(p.Source),
		GeneratedAt: p.GeneratedAt,
	}
	if out.Entries == nil {
		out.Entries = []deletion.Entry{}
	}
	if p.Warning != nil {
		out.Degraded = true
		out.Warning = p.Warning.Error()
	}
	return out, nil
}

func toStandardError(err error) error {
	var (
		vErr     *deletion.ValidationError
		notFound *deletion.NotFoundError
	)
	switch {
	case stderrors.As(err, &vErr):
		return errors.NewValidationError(vErr.Field, err)
	case stderrors.As(err, &notFound):
		return errors.NewRecordNotFoundError(notFound.Table, notFound.ID, err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewStoreTimeoutError("preview deletion")
	default:
		return errors.NewStoreOperationFailedError("preview deletion", err)
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := errors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.errors.HandleJobError(context.Background(), client, job, stdErr)
}
