// Package notify delivers workflow side effects to owners and clients.
package notify

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/briefly/internal/logging"
	"github.com/diewo77/briefly/internal/models"
)

// Message types.
const (
	TypeDocumentSent   = "document_sent"
	TypeBriefApproved  = "brief_approved"
	TypeBriefRejected  = "brief_rejected"
	TypeBriefConverted = "brief_converted"
	TypeInvoicePaid    = "invoice_paid"
)

// Message is one outbound notification.
type Message struct {
	Type       string
	UserID     uint // owner the message belongs to
	DocumentID uint
	Recipient  string
	Subject    string
	Body       string
}

// Notifier sends a message. Implementations may be slow or fail; callers
// treat delivery as best effort.
type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// Outbox records messages in the notifications table for later delivery
// and for the owner's inbox.
type Outbox struct {
	db  *gorm.DB
	now func() time.Time
}

func NewOutbox(db *gorm.DB) *Outbox {
	return &Outbox{db: db, now: time.Now}
}

func (o *Outbox) Notify(ctx context.Context, m Message) error {
	n := models.Notification{
		UserID:     m.UserID,
		DocumentID: m.DocumentID,
		Type:       m.Type,
		Recipient:  m.Recipient,
		Subject:    m.Subject,
		Message:    m.Body,
		CreatedAt:  o.now(),
	}
	return o.db.WithContext(ctx).Create(&n).Error
}

// List returns the owner's notifications, newest first.
func (o *Outbox) List(ctx context.Context, userID uint, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var out []models.Notification
	err := o.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc, id desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkRead flags one of the owner's notifications as read.
func (o *Outbox) MarkRead(ctx context.Context, userID, id uint) error {
	res := o.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

// LogNotifier writes messages to the log only.
type LogNotifier struct {
	logger logging.Logger
}

func NewLogNotifier(l logging.Logger) *LogNotifier {
	return &LogNotifier{logger: logging.OrNop(l)}
}

func (n *LogNotifier) Notify(_ context.Context, m Message) error {
	n.logger.Infow("notification",
		"type", m.Type,
		"document_id", m.DocumentID,
		"recipient", m.Recipient,
		"subject", m.Subject,
	)
	return nil
}

// Dispatcher sends messages without letting a delivery failure reach the
// caller. Failures are logged.
type Dispatcher struct {
	notifier Notifier
	logger   logging.Logger
}

func NewDispatcher(n Notifier, l logging.Logger) *Dispatcher {
	return &Dispatcher{notifier: n, logger: logging.OrNop(l)}
}

// Send delivers m. A nil dispatcher or notifier drops the message.
func (d *Dispatcher) Send(ctx context.Context, m Message) {
	if d == nil || d.notifier == nil {
		return
	}
	if err := d.notifier.Notify(ctx, m); err != nil {
		d.logger.Errorw("notification failed",
			"type", m.Type,
			"document_id", m.DocumentID,
			"error", err,
		)
	}
}
