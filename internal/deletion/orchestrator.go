// Package deletion previews and performs irreversible user-account deletion
// against a record store whose foreign keys cascade from users.
package deletion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"eduprima/internal/common/logger"
	"eduprima/internal/common/metrics"
	"eduprima/internal/common/observability"
	"eduprima/internal/store"
)

// AuditRecord is written once per verified deletion.
type AuditRecord struct {
	ID        string    `json:"id"`
	RecordID  string    `json:"recordId"`
	Email     string    `json:"email,omitempty"`
	Code      string    `json:"code,omitempty"`
	ActorID   string    `json:"actorId"`
	DeletedAt time.Time `json:"deletedAt"`

	// Preview is recomputed when the deletion is confirmed, so it reflects the
	// store at confirm time rather than the preview shown earlier.
	Preview *Preview `json:"preview"`
}

type Orchestrator struct {
	store       store.RecordStore
	audit       AuditSink
	events      EventPublisher
	identity    IdentityRemover
	receipts    ReceiptMailer
	preferences PreferenceCleaner
	logger      logger.Logger
	clock       func() time.Time

	fanOut          int
	followUpTimeout time.Duration
	verifyAttempts  int
	verifyBackoff   time.Duration
}

type Option func(*Orchestrator)

func WithAuditSink(sink AuditSink) Option {
	return func(o *Orchestrator) { o.audit = sink }
}

func WithEventPublisher(p EventPublisher) Option {
	return func(o *Orchestrator) { o.events = p }
}

func WithIdentityRemover(r IdentityRemover) Option {
	return func(o *Orchestrator) { o.identity = r }
}

func WithReceiptMailer(m ReceiptMailer) Option {
	return func(o *Orchestrator) { o.receipts = m }
}

func WithPreferenceCleaner(c PreferenceCleaner) Option {
	return func(o *Orchestrator) { o.preferences = c }
}

func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithFanOut bounds concurrent table counts in a manual preview.
func WithFanOut(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.fanOut = n
		}
	}
}

// WithFollowUpTimeout bounds each post-deletion side effect.
func WithFollowUpTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.followUpTimeout = d
		}
	}
}

// WithVerifyRetry sets how many times the post-delete read-back is attempted
// and the base delay between attempts.
func WithVerifyRetry(attempts int, backoff time.Duration) Option {
	return func(o *Orchestrator) {
		if attempts > 0 {
			o.verifyAttempts = attempts
		}
		if backoff >= 0 {
			o.verifyBackoff = backoff
		}
	}
}

func NewOrchestrator(rs store.RecordStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:           rs,
		logger:          logger.NewNoOpLogger(),
		clock:           time.Now,
		fanOut:          4,
		followUpTimeout: 10 * time.Second,
		verifyAttempts:  3,
		verifyBackoff:   200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// CheckSchema verifies UserSchema against the store when it supports schema checks.
func (o *Orchestrator) CheckSchema(ctx context.Context) error {
	checker, ok := o.store.(store.SchemaChecker)
	if !ok {
		return nil
	}
	return checker.CheckSchema(ctx, UserSchema)
}

// ConfirmDeletion deletes the user id with one store call, verifies the row is
// gone and records who confirmed it. Once the delete is issued, cancelling ctx
// no longer stops it.
func (o *Orchestrator) ConfirmDeletion(ctx context.Context, id, actorID string) (record *AuditRecord, err error) {
	switch {
	case id == "":
		return nil, &ValidationError{Field: "recordId", Reason: "must not be empty"}
	case actorID == "":
		return nil, &ValidationError{Field: "actorId", Reason: "must not be empty"}
	}

	ctx, span := observability.StartSpan(ctx, "deletion.confirm",
		attribute.String("record.id", id), attribute.String("actor.id", actorID))
	defer func() { observability.EndSpan(span, err) }()

	preview, core, err := o.preview(ctx, id)
	if err != nil {
		o.outcome(err)
		return nil, err
	}

	o.transition(id, StateDeleteConfirmed)
	dctx := context.WithoutCancel(ctx)

	if err := o.deleteCore(dctx, id); err != nil {
		if err = o.resolveAmbiguousDelete(dctx, id, err); err != nil {
			o.transition(id, StateDeleteFailed)
			o.outcome(err)
			return nil, err
		}
	} else {
		o.transition(id, StateDeleted)
		if err := o.verify(dctx, id); err != nil {
			o.outcome(err)
			return nil, err
		}
	}
	o.transition(id, StateVerified)

	record = &AuditRecord{
		ID:        uuid.NewString(),
		RecordID:  id,
		Email:     core.String("email"),
		Code:      core.String("user_code"),
		ActorID:   actorID,
		DeletedAt: o.clock().UTC(),
		Preview:   preview,
	}
	o.followUp(dctx, record)

	o.logger.Info("user deleted", map[string]interface{}{
		"recordId": id,
		"actorId":  actorID,
		"rows":     preview.TotalRows(),
		"source":   string(preview.Source),
		"auditId":  record.ID,
	})
	o.outcome(nil)
	return record, nil
}

func (o *Orchestrator) deleteCore(ctx context.Context, id string) error {
	n, err := o.store.Delete(ctx, CoreTable, store.Eq("id", id))
	if err != nil {
		var fk *store.ForeignKeyViolation
		if errors.As(err, &fk) {
			cErr := &ConstraintError{Table: fk.Table, Constraint: fk.Constraint, Detail: fk.Detail, Err: err}
			o.logger.Error("delete rejected by foreign key", map[string]interface{}{
				"recordId":   id,
				"table":      fk.Table,
				"constraint": fk.Constraint,
				"detail":     fk.Detail,
			})
			return cErr
		}
		return &DeleteFailedError{ID: id, Err: err}
	}
	if n == 0 {
		return &NotFoundError{Table: CoreTable, ID: id}
	}
	return nil
}

// resolveAmbiguousDelete reads the record back after a delete call failed
// without a constraint violation. The store may have applied the delete and
// lost the reply, in which case the deletion counts as done.
func (o *Orchestrator) resolveAmbiguousDelete(ctx context.Context, id string, deleteErr error) error {
	var failed *DeleteFailedError
	if !errors.As(deleteErr, &failed) {
		return deleteErr
	}

	n, err := o.remaining(ctx, id)
	switch {
	case err != nil:
		o.logger.Error("delete outcome unknown", map[string]interface{}{
			"recordId":    id,
			"deleteError": deleteErr.Error(),
			"countError":  err.Error(),
		})
		return &VerificationUnavailableError{Table: CoreTable, ID: id, Err: failed.Err}
	case n > 0:
		return deleteErr
	}

	o.logger.Warn("delete reported an error but the record is gone", map[string]interface{}{
		"recordId": id,
		"error":    deleteErr.Error(),
	})
	o.transition(id, StateDeleted)
	return nil
}

func (o *Orchestrator) verify(ctx context.Context, id string) error {
	n, err := o.remaining(ctx, id)
	if err != nil {
		o.logger.Error("could not verify deletion", map[string]interface{}{
			"recordId": id,
			"error":    err.Error(),
		})
		return &VerificationUnavailableError{Table: CoreTable, ID: id, Err: err}
	}
	if n > 0 {
		o.logger.Error("record still present after delete", map[string]interface{}{
			"recordId": id,
			"rows":     n,
		})
		return &VerificationFailedError{Table: CoreTable, ID: id, Rows: n}
	}
	return nil
}

// remaining counts core rows with id, retrying failed counts.
func (o *Orchestrator) remaining(ctx context.Context, id string) (int64, error) {
	var lastErr error
	for attempt := 0; attempt < o.verifyAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(o.verifyBackoff * time.Duration(attempt))
		}
		n, err := o.store.Count(ctx, CoreTable, store.Eq("id", id))
		if err == nil {
			return n, nil
		}
		lastErr = err
	}
	return 0, fmt.Errorf("count %s %q after %d attempts: %w", CoreTable, id, o.verifyAttempts, lastErr)
}

// followUp runs the side effects of a verified deletion. Each one is
// independent and only logs on failure.
func (o *Orchestrator) followUp(ctx context.Context, record *AuditRecord) {
	run := func(name string, fn func(context.Context) error) {
		fctx, cancel := context.WithTimeout(ctx, o.followUpTimeout)
		defer cancel()
		if err := fn(fctx); err != nil {
			o.logger.Warn(name+" failed", map[string]interface{}{
				"recordId": record.RecordID,
				"auditId":  record.ID,
				"error":    err.Error(),
			})
		}
	}

	if o.audit != nil {
		run("audit write", func(c context.Context) error { return o.audit.Write(c, record) })
	}
	if o.identity != nil && record.Email != "" {
		run("identity removal", func(c context.Context) error { return o.identity.RemoveIdentity(c, record.Email) })
	}
	if o.preferences != nil {
		run("preference cleanup", func(c context.Context) error { return o.preferences.Delete(c, record.RecordID) })
	}
	if o.events != nil {
		run("event publish", func(c context.Context) error { return o.events.PublishUserDeleted(c, record) })
	}
	if o.receipts != nil && record.Email != "" {
		run("receipt mail", func(c context.Context) error { return o.receipts.SendReceipt(c, record) })
	}
}

func (o *Orchestrator) transition(id string, s State) {
	o.logger.Debug("deletion state", map[string]interface{}{
		"recordId": id,
		"state":    s.String(),
	})
}

func (o *Orchestrator) outcome(err error) {
	metrics.DeletionOutcomes.WithLabelValues(OutcomeLabel(err)).Inc()
}

// OutcomeLabel names the result of a confirm call for metrics and logs.
func OutcomeLabel(err error) string {
	var (
		notFound   *NotFoundError
		constraint *ConstraintError
		verify     *VerificationFailedError
		unknown    *VerificationUnavailableError
		validation *ValidationError
	)
	switch {
	case err == nil:
		return "deleted"
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &constraint):
		return "constraint"
	case errors.As(err, &verify):
		return "verification_failed"
	case errors.As(err, &unknown):
		return "unverified"
	case errors.As(err, &validation):
		return "invalid"
	default:
		return "failed"
	}
}
