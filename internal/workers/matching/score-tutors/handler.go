// internal/workers/matching/score-tutors/handler.go
package scoretutors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"go.opentelemetry.io/otel/attribute"

	"eduprima/internal/candidates"
	"eduprima/internal/common/camunda"
	"eduprima/internal/common/errors"
	"eduprima/internal/common/logger"
	"eduprima/internal/common/metrics"
	"eduprima/internal/common/observability"
	"eduprima/internal/common/validation"
	"eduprima/internal/matching"
)

const TaskType = "score-tutors"

var schema = validation.MustCompile(TaskType, inputSchema)

// WeightsReader returns a user's saved weight profile, or the defaults.
type WeightsReader interface {
	Get(ctx context.Context, userID string) (matching.WeightProfile, error)
}

type Handler struct {
	config  *Config
	source  candidates.Source
	weights WeightsReader
	engine  *matching.Engine
	obs     *observability.Observability
	errors  *errors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(config *Config, source candidates.Source, weights WeightsReader, obs *observability.Observability, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		source:  source,
		weights: weights,
		engine:  matching.NewEngine(config.Engine),
		obs:     obs,
		errors:  errors.NewErrorHandler(l),
		logger:  l,
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
		h.fail(ctx, client, job, err, start)
		return
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err, start)
		return
	}

	if err := camunda.CompleteJob(context.Background(), client, job, output); err != nil {
		h.logger.Error("failed to complete job", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
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

// Execute scores the candidate set for input and returns the top results.
func (h *Handler) Execute(ctx context.Context, input *Input) (output *Output, err error) {
	ctx, span := observability.StartSpan(ctx, "matching.score",
		attribute.String("candidate.source", h.config.Source))
	defer func() { observability.EndSpan(span, err) }()

	weights, weightsSource, err := h.resolveWeights(ctx, input)
	if err != nil {
		return nil, err
	}

	cands, err := h.source.Candidates(ctx, input.Query)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return nil, errors.NewStoreTimeoutError("load candidates")
		}
		return nil, errors.NewCandidateFetchFailedError(h.config.Source, err)
	}
	metrics.TutorSearchCandidates.WithLabelValues(h.config.Source).Observe(float64(len(cands)))

	results, err := h.engine.Score(cands, input.Query, weights, input.Origin)
	if err != nil {
		return nil, toStandardError(err)
	}

	if limit := h.limit(input.Limit); limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	h.logger.Info("tutors scored", map[string]interface{}{
		"candidates":    len(cands),
		"returned":      len(results),
		"weightsSource": weightsSource,
	})

	return &Output{
		Results:         results,
		TotalCandidates: len(cands),
		WeightsSource:   weightsSource,
	}, nil
}

func (h *Handler) resolveWeights(ctx context.Context, input *Input) (matching.WeightProfile, string, error) {
	if input.Weights != nil {
		return *input.Weights, WeightsFromInput, nil
	}
	if h.weights == nil || input.UserID == "" {
		return matching.DefaultWeights, WeightsFromDefaults, nil
	}

	w, err := h.weights.Get(ctx, input.UserID)
	if err != nil {
		return matching.WeightProfile{}, "", errors.NewPreferencesFailedError(err)
	}
	return w, WeightsFromPreferences, nil
}

func (h *Handler) limit(requested int) int {
	switch {
	case requested <= 0:
		return h.config.MaxResults
	case h.config.MaxResults > 0 && requested > h.config.MaxResults:
		return h.config.MaxResults
	default:
		return requested
	}
}

func toStandardError(err error) error {
	var vErr *matching.ValidationError
	if stderrors.As(err, &vErr) {
		return errors.NewValidationError(vErr.Field, err)
	}
	return err
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error, start time.Time) {
	stdErr := errors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.obs.RecordJobDuration(ctx, TaskType, time.Since(start), "failed")
	h.errors.HandleJobError(context.Background(), client, job, stdErr)
}
