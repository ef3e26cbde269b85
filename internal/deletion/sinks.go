package deletion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"eduprima/internal/store"
)

// AuditSink persists AuditRecords. Records are append-only.
type AuditSink interface {
	Write(ctx context.Context, record *AuditRecord) error
}

// EventPublisher announces a completed deletion to other services.
type EventPublisher interface {
	PublishUserDeleted(ctx context.Context, record *AuditRecord) error
}

// IdentityRemover deletes the login account tied to an email.
type IdentityRemover interface {
	RemoveIdentity(ctx context.Context, email string) error
}

// ReceiptMailer tells the former account holder that their data is gone.
type ReceiptMailer interface {
	SendReceipt(ctx context.Context, record *AuditRecord) error
}

// PreferenceCleaner drops per-user state kept outside the record store.
type PreferenceCleaner interface {
	Delete(ctx context.Context, userID string) error
}

const (
	EventTypeUserDeleted = "user.deleted"
	auditResourceType    = "user"
)

// StoreAuditSink appends audit records to the audit_log table.
type StoreAuditSink struct {
	store store.RecordStore
}

func NewStoreAuditSink(rs store.RecordStore) *StoreAuditSink {
	return &StoreAuditSink{store: rs}
}

func (s *StoreAuditSink) Write(ctx context.Context, record *AuditRecord) error {
	details, err := json.Marshal(map[string]interface{}{
		"email":   record.Email,
		"code":    record.Code,
		"preview": record.Preview,
	})
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	return s.store.Insert(ctx, AuditTable, store.Row{
		"id":            record.ID,
		"event_type":    EventTypeUserDeleted,
		"resource_type": auditResourceType,
		"resource_id":   record.RecordID,
		"actor_id":      record.ActorID,
		"details":       details,
		"created_at":    record.DeletedAt,
	})
}

type jsonPublisher interface {
	PublishJSON(ctx context.Context, topicARN, eventType string, payload interface{}) (string, error)
}

// SNSEventPublisher publishes user.deleted events to a topic.
type SNSEventPublisher struct {
	client   jsonPublisher
	topicARN string
}

func NewSNSEventPublisher(client jsonPublisher, topicARN string) *SNSEventPublisher {
	return &SNSEventPublisher{client: client, topicARN: topicARN}
}

// UserDeletedEvent is the published payload. It carries no personal data.
type UserDeletedEvent struct {
	Type      string `json:"type"`
	AuditID   string `json:"auditId"`
	UserID    string `json:"userId"`
	ActorID   string `json:"actorId"`
	DeletedAt string `json:"deletedAt"`
	Rows      int64  `json:"rows"`
}

func (p *SNSEventPublisher) PublishUserDeleted(ctx context.Context, record *AuditRecord) error {
	var rows int64
	if record.Preview != nil {
		rows = record.Preview.TotalRows()
	}
	_, err := p.client.PublishJSON(ctx, p.topicARN, EventTypeUserDeleted, UserDeletedEvent{
		Type:      EventTypeUserDeleted,
		AuditID:   record.ID,
		UserID:    record.RecordID,
		ActorID:   record.ActorID,
		DeletedAt: record.DeletedAt.Format(time.RFC3339),
		Rows:      rows,
	})
	return err
}

type textSender interface {
	SendText(ctx context.Context, from, to, subject, body string) (string, error)
}

// SESReceiptMailer emails a deletion receipt from a fixed sender address.
type SESReceiptMailer struct {
	client textSender
	from   string
}

func NewSESReceiptMailer(client textSender, from string) *SESReceiptMailer {
	return &SESReceiptMailer{client: client, from: from}
}

func (m *SESReceiptMailer) SendReceipt(ctx context.Context, record *AuditRecord) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Your Eduprima account was deleted on %s.\n", record.DeletedAt.Format("2 January 2006 15:04 MST"))
	if record.Preview != nil && len(record.Preview.Entries) > 0 {
		b.WriteString("\nThe following data was removed:\n")
		for _, e := range record.Preview.Entries {
			fmt.Fprintf(&b, "- %s: %d\n", e.DataType, e.Count)
		}
	}
	fmt.Fprintf(&b, "\nReference: %s\n", record.ID)

	_, err := m.client.SendText(ctx, m.from, record.Email, "Your Eduprima account has been deleted", b.String())
	return err
}
