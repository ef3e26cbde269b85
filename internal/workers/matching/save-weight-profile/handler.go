// internal/workers/matching/save-weight-profile/handler.go
package saveweightprofile

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
	"eduprima/internal/matching"
)

const TaskType = "save-weight-profile"

var schema = validation.MustCompile(TaskType, inputSchema)

type WeightsWriter interface {
	Save(ctx context.Context, userID string, w matching.WeightProfile) error
}

type Handler struct {
	config *Config
	store  WeightsWriter
	obs    *observability.Observability
	errors *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(config *Config, store WeightsWriter, obs *observability.Observability, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config: config,
		store:  store,
		obs:    obs,
		errors: errors.NewErrorHandler(l),
		logger: l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	input, err := parseInput(job)
	if err == nil {
		var output *Output
		if output, err = h.Execute(ctx, input); err == nil {
			err = camunda.CompleteJob(context.Background(), client, job, output)
			if err != nil {
				h.logger.Error("failed to complete job", map[string]interface{}{"jobKey": job.Key, "error": err.Error()})
				return
			}
			metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
			metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
			h.obs.RecordJobProcessed(ctx, TaskType, "completed")
			return
		}
	}

	stdErr := errors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.errors.HandleJobError(context.Background(), client, job, stdErr)
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

// Execute validates and stores the profile.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := h.store.Save(ctx, input.UserID, input.Weights); err != nil {
		var vErr *matching.ValidationError
		if stderrors.As(err, &vErr) {
			return nil, errors.NewValidationError(vErr.Field, err)
		}
		return nil, errors.NewPreferencesFailedError(err)
	}

	h.logger.Info("weight profile saved", map[string]interface{}{"userId": input.UserID})
	return &Output{
		UserID:     input.UserID,
		Saved:      true,
		Normalized: input.Weights.Normalized(),
	}, nil
}
