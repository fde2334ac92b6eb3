package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/diewo77/briefly/internal/models"
	"github.com/diewo77/briefly/internal/notify"
	"github.com/diewo77/briefly/internal/policy"
	"github.com/diewo77/briefly/internal/store"
	"github.com/diewo77/briefly/internal/validation"
	"github.com/diewo77/briefly/internal/workflow"
)

var errStale = errors.New("stale status")

// ownerActions are the transitions the owner drives from the dashboard.
// Approve and reject belong to the client's public page.
var ownerActions = map[workflow.Action]bool{
	workflow.ActionSend:     true,
	workflow.ActionConvert:  true,
	workflow.ActionMarkPaid: true,
}

// clientActions are the transitions available on the public page.
var clientActions = map[workflow.Action]bool{
	workflow.ActionApprove: true,
	workflow.ActionReject:  true,
}

// OwnerTransition applies an owner action to one of the owner's documents.
func (s *DocumentService) OwnerTransition(ctx context.Context, userID, id uint, action workflow.Action, in TransitionInput) (*models.Document, error) {
	if !ownerActions[action] {
		return nil, ErrForbidden
	}
	doc, err := s.load(ctx, userID, id, policy.ActionTransition)
	if err != nil {
		return nil, err
	}
	return s.Transition(ctx, doc, action, in)
}

// ClientTransition applies approve or reject from the public page. The
// caller has already passed the access gate for doc.
func (s *DocumentService) ClientTransition(ctx context.Context, doc *models.Document, action workflow.Action, in TransitionInput) (*models.Document, error) {
	if !clientActions[action] {
		return nil, ErrForbidden
	}
	return s.Transition(ctx, doc, action, in)
}

// ClientActions lists the public actions currently legal for doc.
func ClientActions(doc *models.Document) []string {
	var out []string
	for _, a := range workflow.Available(doc.Kind, doc.Status) {
		if clientActions[a] {
			out = append(out, string(a))
		}
	}
	return out
}

// Transition moves doc through action. The write is guarded by the status
// doc was loaded with: if another request changed it in the meantime the
// call fails with a conflicting InvalidTransitionError and nothing is
// written. Notifications go out only after the write is committed.
func (s *DocumentService) Transition(ctx context.Context, doc *models.Document, action workflow.Action, in TransitionInput) (*models.Document, error) {
	updated, err := s.transition(ctx, doc, action, in)
	s.metrics.Transition(string(doc.Kind), string(action), resultLabel(err))
	return updated, err
}

func (s *DocumentService) transition(ctx context.Context, doc *models.Document, action workflow.Action, in TransitionInput) (*models.Document, error) {
	to, err := workflow.Next(doc.Kind, doc.Status, action)
	if err != nil {
		return nil, err
	}

	fields := map[string]any{}
	switch action {
	case workflow.ActionReject:
		if strings.TrimSpace(in.Reason) == "" {
			return nil, (validation.Violations{"reason": "required"}).Err()
		}
		fields["rejection_reason"] = in.Reason
	case workflow.ActionSend:
		client, err := s.clientOf(ctx, doc)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(client.Email) == "" {
			return nil, (validation.Violations{"client.email": "required"}).Err()
		}
		fields["rejection_reason"] = ""
	case workflow.ActionMarkPaid:
		fields["paid_at"] = s.now()
	}

	var invoice *models.Document
	if action == workflow.ActionConvert {
		invoice, err = s.convert(ctx, doc)
	} else {
		var ok bool
		ok, err = s.docs.UpdateStatus(ctx, doc.ID, doc.Status, to, fields)
		if err == nil && !ok {
			err = errStale
		}
	}
	if errors.Is(err, errStale) {
		return nil, s.conflict(ctx, doc, action)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s %d: %w", action, doc.Kind, doc.ID, err)
	}

	updated, err := s.docs.FindByID(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Infow("document transition",
		"document_id", doc.ID, "kind", doc.Kind, "action", action, "from", doc.Status, "to", to)
	s.notifyTransition(ctx, updated, action, invoice)
	return updated, nil
}

// convert creates the invoice and marks the brief converted in one
// transaction. A brief that is no longer approved rolls everything back.
func (s *DocumentService) convert(ctx context.Context, brief *models.Document) (*models.Document, error) {
	var invoice *models.Document
	err := s.docs.Transaction(ctx, func(tx *store.DocumentStore) error {
		issue := s.today()
		number, err := tx.NextNumber(ctx, brief.UserID, models.KindInvoice, issue.Year())
		if err != nil {
			return fmt.Errorf("next number: %w", err)
		}
		briefID := brief.ID
		inv := &models.Document{
			Kind:          models.KindInvoice,
			UserID:        brief.UserID,
			ClientID:      brief.ClientID,
			Number:        number,
			Status:        models.StatusDraft,
			Currency:      brief.Currency,
			TaxRate:       brief.TaxRate,
			IssueDate:     issue,
			Notes:         brief.Notes,
			Theme:         brief.Theme,
			Token:         s.newToken(),
			SourceBriefID: &briefID,
			Items:         make([]models.LineItem, len(brief.Items)),
		}
		for i, it := range brief.Items {
			inv.Items[i] = models.LineItem{
				Description: it.Description,
				Quantity:    it.Quantity,
				UnitPrice:   it.UnitPrice,
				Position:    it.Position,
			}
		}
		inv.Recompute()
		if err := tx.Create(ctx, inv); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		ok, err := tx.UpdateStatus(ctx, brief.ID, models.StatusApproved, models.StatusConverted,
			map[string]any{"converted_invoice_id": inv.ID})
		if err != nil {
			return err
		}
		if !ok {
			return errStale
		}
		invoice = inv
		return nil
	})
	return invoice, err
}

// conflict reloads doc and reports the status that won.
func (s *DocumentService) conflict(ctx context.Context, doc *models.Document, action workflow.Action) error {
	current, err := s.docs.FindByID(ctx, doc.ID)
	if err != nil {
		return err
	}
	s.logger.Warnw("document transition conflict",
		"document_id", doc.ID, "action", action, "expected", doc.Status, "current", current.Status)
	return &workflow.InvalidTransitionError{
		Kind:     current.Kind,
		From:     current.Status,
		Action:   action,
		Conflict: true,
	}
}

func (s *DocumentService) clientOf(ctx context.Context, doc *models.Document) (*models.Client, error) {
	if doc.Client != nil && doc.Client.ID == doc.ClientID {
		return doc.Client, nil
	}
	c, err := s.clients.FindByID(ctx, doc.ClientID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, (validation.Violations{"client_id": "not_found"}).Err()
	}
	return c, err
}

func (s *DocumentService) ownerEmail(ctx context.Context, doc *models.Document) string {
	u, err := s.users.FindByID(ctx, doc.UserID)
	if err != nil {
		s.logger.Warnw("load document owner", "document_id", doc.ID, "user_id", doc.UserID, "error", err)
		return ""
	}
	return u.Email
}

func (s *DocumentService) notifyTransition(ctx context.Context, doc *models.Document, action workflow.Action, invoice *models.Document) {
	m := notify.Message{UserID: doc.UserID, DocumentID: doc.ID}
	switch action {
	case workflow.ActionSend:
		client, err := s.clientOf(ctx, doc)
		if err != nil {
			s.logger.Warnw("load document client", "document_id", doc.ID, "error", err)
			return
		}
		m.Type = notify.TypeDocumentSent
		m.Recipient = client.Email
		m.Subject = fmt.Sprintf("%s %s", doc.Kind, doc.Number)
		m.Body = s.PublicURL(doc)
	case workflow.ActionApprove:
		m.Type = notify.TypeBriefApproved
		m.Recipient = s.ownerEmail(ctx, doc)
		m.Subject = fmt.Sprintf("%s approved", doc.Number)
	case workflow.ActionReject:
		m.Type = notify.TypeBriefRejected
		m.Recipient = s.ownerEmail(ctx, doc)
		m.Subject = fmt.Sprintf("%s rejected", doc.Number)
		m.Body = doc.RejectionReason
	case workflow.ActionConvert:
		m.Type = notify.TypeBriefConverted
		m.Recipient = s.ownerEmail(ctx, doc)
		m.Subject = fmt.Sprintf("%s converted", doc.Number)
		if invoice != nil {
			m.Body = invoice.Number
		}
	case workflow.ActionMarkPaid:
		m.Type = notify.TypeInvoicePaid
		m.Recipient = s.ownerEmail(ctx, doc)
		m.Subject = fmt.Sprintf("%s paid", doc.Number)
	default:
		return
	}
	s.notifier.Send(ctx, m)
}

func resultLabel(err error) string {
	var inv *workflow.InvalidTransitionError
	var verr *validation.Error
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &inv) && inv.Conflict:
		return "conflict"
	case errors.As(err, &inv):
		return "invalid"
	case errors.As(err, &verr):
		return "validation"
	case errors.Is(err, ErrForbidden), errors.Is(err, models.ErrNotFound):
		return "denied"
	default:
		return "error"
	}
}
