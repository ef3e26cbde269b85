// internal/workers/accounts/confirm-user-deletion/handler.go
package confirmuserdeletion

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
	"eduprima/internal/store"
)

const TaskType = "confirm-user-deletion"

var schema = validation.MustCompile(TaskType, inputSchema)

type Deleter interface {
	ConfirmDeletion(ctx context.Context, id, actorID string) (*deletion.AuditRecord, error)
}

// ActorResolver maps an access token to the subject that presented it.
type ActorResolver interface {
	ResolveActor(ctx context.Context, accessToken string) (string, error)
}

type Handler struct {
	config  *Config
	deleter Deleter
	actors  ActorResolver
	obs     *observability.Observability
	errors  *errors.ErrorHandler
	logger  logger.Logger
}

func NewHandler(config *Config, deleter Deleter, actors ActorResolver, obs *observability.Observability, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:  config,
		deleter: deleter,
		actors:  actors,
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

// Execute resolves the actor and deletes input.UserID.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	actorID, err := h.resolveActor(ctx, input)
	if err != nil {
		return nil, err
	}

	record, err := h.deleter.ConfirmDeletion(ctx, input.UserID, actorID)
	if err != nil {
		return nil, toStandardError(err)
	}

	out := &Output{
		Deleted:   true,
		UserID:    record.RecordID,
		AuditID:   record.ID,
		ActorID:   record.ActorID,
		DeletedAt: record.DeletedAt,
		Entries:   []deletion.Entry{},
	}
	if record.Preview != nil {
		out.RemovedRows = record.Preview.TotalRows()
		out.PreviewSource = string(record.Preview.Source)
		if record.Preview.Entries != nil {
			out.Entries = record.Preview.Entries
		}
	}
	return out, nil
}

func (h *Handler) resolveActor(ctx context.Context, input *Input) (string, error) {
	if input.ActorID != "" {
		return input.ActorID, nil
	}
	if input.AccessToken == "" || h.actors == nil {
		return "", errors.NewValidationError("actorId", stderrors.New("actorId or accessToken is required"))
	}
	actor, err := h.actors.ResolveActor(ctx, input.AccessToken)
	if err != nil {
		var stdErr *errors.StandardError
		if stderrors.As(err, &stdErr) {
			return "", stdErr
		}
		return "", errors.NewActorResolutionFailedError(err)
	}
	return actor, nil
}

func toStandardError(err error) error {
	var (
		vErr       *deletion.ValidationError
		notFound   *deletion.NotFoundError
		constraint *deletion.ConstraintError
		verify     *deletion.VerificationFailedError
		unknown    *deletion.VerificationUnavailableError
		mismatch   *store.SchemaMismatchError
	)
	switch {
	case stderrors.As(err, &vErr):
		return errors.NewValidationError(vErr.Field, err)
	case stderrors.As(err, &notFound):
		return errors.NewRecordNotFoundError(notFound.Table, notFound.ID, err)
	case stderrors.As(err, &constraint):
		return errors.NewConstraintViolationError(constraint.Table, constraint.Constraint, err)
	case stderrors.As(err, &verify):
		return errors.NewVerificationFailedError(verify.Table, verify.ID, err)
	case stderrors.As(err, &unknown):
		return errors.NewDeletionUnverifiedError(unknown.Table, unknown.ID, err)
	case stderrors.As(err, &mismatch):
		return errors.NewSchemaMismatchError(err)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewStoreTimeoutError("confirm deletion")
	default:
		return errors.NewStoreOperationFailedError("confirm deletion", err)
	}
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := errors.Normalize(err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(stdErr.Code)).Inc()
	h.obs.RecordJobProcessed(ctx, TaskType, "failed")
	h.errors.HandleJobError(context.Background(), client, job, stdErr)
}
