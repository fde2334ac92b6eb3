// Package services holds the document use cases: editing, password
// protection and the status workflow with its side effects.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/diewo77/briefly/internal/access"
	"github.com/diewo77/briefly/internal/logging"
	"github.com/diewo77/briefly/internal/metrics"
	"github.com/diewo77/briefly/internal/models"
	"github.com/diewo77/briefly/internal/notify"
	"github.com/diewo77/briefly/internal/policy"
	"github.com/diewo77/briefly/internal/render"
	"github.com/diewo77/briefly/internal/store"
	"github.com/diewo77/briefly/internal/validation"
)

var (
	// ErrForbidden is returned when the caller may not perform an action at
	// all, independently of which document it targets.
	ErrForbidden = errors.New("forbidden")
	// ErrNotEditable is returned when content changes hit a document that
	// left draft/rejected.
	ErrNotEditable = errors.New("document is not editable")
)

const (
	minPasswordLength = 4
	createRetries     = 3
)

var maxTaxRate = decimal.NewFromInt(100)

// ItemInput is one line of a DocumentInput.
type ItemInput struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// DocumentInput carries the editable content of a brief or invoice.
type DocumentInput struct {
	ClientID  uint            `json:"client_id"`
	Currency  string          `json:"currency"`
	TaxRate   decimal.Decimal `json:"tax_rate"`
	IssueDate *time.Time      `json:"issue_date,omitempty"`
	DueDate   *time.Time      `json:"due_date,omitempty"`
	Notes     string          `json:"notes"`
	Theme     string          `json:"theme"`
	Items     []ItemInput     `json:"items"`
}

// TransitionInput is the optional payload of a transition.
type TransitionInput struct {
	Reason string `json:"reason"`
}

// DocumentService implements the document use cases on top of the stores.
type DocumentService struct {
	docs     *store.DocumentStore
	clients  *store.ClientStore
	users    *store.UserStore
	authz    *policy.Gate[uint]
	hasher   access.Hasher
	notifier *notify.Dispatcher
	metrics  *metrics.Metrics
	logger   logging.Logger
	baseURL  string
	now      func() time.Time
	newToken func() string
}

type Option func(*DocumentService)

// WithPublicBaseURL sets the origin used to build public links.
func WithPublicBaseURL(u string) Option {
	return func(s *DocumentService) { s.baseURL = strings.TrimRight(u, "/") }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *DocumentService) { s.metrics = m }
}

func WithLogger(l logging.Logger) Option {
	return func(s *DocumentService) { s.logger = logging.OrNop(l) }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *DocumentService) { s.now = now }
}

func NewDocumentService(
	docs *store.DocumentStore,
	clients *store.ClientStore,
	users *store.UserStore,
	authz *policy.Gate[uint],
	hasher access.Hasher,
	notifier *notify.Dispatcher,
	opts ...Option,
) *DocumentService {
	s := &DocumentService{
		docs:     docs,
		clients:  clients,
		users:    users,
		authz:    authz,
		hasher:   hasher,
		notifier: notifier,
		logger:   logging.Nop(),
		now:      time.Now,
		newToken: uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// PublicURL is the link sent to the client.
func (s *DocumentService) PublicURL(doc *models.Document) string {
	return s.baseURL + "/p/" + doc.Token
}

// authorize maps a denied ownership check to a not found error so that
// document ids do not leak across owners.
func (s *DocumentService) authorize(ctx context.Context, userID uint, action policy.Action, resource any) error {
	err := s.authz.Authorize(ctx, userID, action, policy.ResourceDocument, resource)
	switch {
	case err == nil:
		return nil
	case userID == 0:
		return ErrForbidden
	case resource == nil:
		return ErrForbidden
	default:
		return models.ErrNotFound
	}
}

func (s *DocumentService) load(ctx context.Context, userID, id uint, action policy.Action) (*models.Document, error) {
	doc, err := s.docs.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, userID, action, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Get returns one of the owner's documents.
func (s *DocumentService) Get(ctx context.Context, userID, id uint) (*models.Document, error) {
	return s.load(ctx, userID, id, policy.ActionView)
}

// GetByToken resolves a public link. No ownership check applies.
func (s *DocumentService) GetByToken(ctx context.Context, token string) (*models.Document, error) {
	return s.docs.FindByToken(ctx, token)
}

// List returns the owner's documents of one kind, or both when kind is empty.
func (s *DocumentService) List(ctx context.Context, userID uint, kind models.Kind) ([]models.Document, error) {
	if err := s.authorize(ctx, userID, policy.ActionList, nil); err != nil {
		return nil, err
	}
	return s.docs.List(ctx, userID, kind)
}

func (s *DocumentService) CreateBrief(ctx context.Context, userID uint, in DocumentInput) (*models.Document, error) {
	return s.Create(ctx, userID, models.KindBrief, in)
}

func (s *DocumentService) CreateInvoice(ctx context.Context, userID uint, in DocumentInput) (*models.Document, error) {
	return s.Create(ctx, userID, models.KindInvoice, in)
}

// Create validates in and stores a new draft with a fresh number and token.
func (s *DocumentService) Create(ctx context.Context, userID uint, kind models.Kind, in DocumentInput) (*models.Document, error) {
	if err := s.authorize(ctx, userID, policy.ActionCreate, nil); err != nil {
		return nil, err
	}
	if !kind.Valid() {
		return nil, (validation.Violations{"kind": "invalid"}).Err()
	}
	if err := s.validate(ctx, userID, &in); err != nil {
		return nil, err
	}

	doc := &models.Document{
		Kind:   kind,
		UserID: userID,
		Status: models.StatusDraft,
	}
	s.apply(doc, in)
	doc.Recompute()

	var err error
	for attempt := 0; attempt < createRetries; attempt++ {
		doc.Number, err = s.docs.NextNumber(ctx, userID, kind, doc.IssueDate.Year())
		if err != nil {
			return nil, fmt.Errorf("next number: %w", err)
		}
		doc.Token = s.newToken()
		err = s.docs.Create(ctx, doc)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			break
		}
		doc.ID = 0
		for i := range doc.Items {
			doc.Items[i].ID = 0
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", kind, err)
	}
	return s.docs.FindByID(ctx, doc.ID)
}

// Update replaces the content of a document that is still editable.
func (s *DocumentService) Update(ctx context.Context, userID, id uint, in DocumentInput) (*models.Document, error) {
	doc, err := s.load(ctx, userID, id, policy.ActionUpdate)
	if err != nil {
		return nil, err
	}
	if !doc.CanEdit() {
		return nil, ErrNotEditable
	}
	if err := s.validate(ctx, userID, &in); err != nil {
		return nil, err
	}
	s.apply(doc, in)
	doc.Recompute()

	written, err := s.docs.UpdateContent(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("update document %d: %w", id, err)
	}
	if !written {
		return nil, ErrNotEditable
	}
	return s.docs.FindByID(ctx, id)
}

// SetPassword protects the document with password, or removes the
// protection when password is empty.
func (s *DocumentService) SetPassword(ctx context.Context, userID, id uint, password string) (*models.Document, error) {
	doc, err := s.load(ctx, userID, id, policy.ActionUpdate)
	if err != nil {
		return nil, err
	}
	digest := ""
	if password != "" {
		v := validation.Violations{}
		validation.MinLength("password", password, minPasswordLength, v)
		if err := v.Err(); err != nil {
			return nil, err
		}
		if digest, err = s.hasher.Hash(password); err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
	}
	if err := s.docs.SetPassword(ctx, doc.ID, digest); err != nil {
		return nil, err
	}
	return s.docs.FindByID(ctx, doc.ID)
}

func (s *DocumentService) validate(ctx context.Context, userID uint, in *DocumentInput) error {
	v := validation.Violations{}
	validation.RequiredID("client_id", in.ClientID, v)
	if in.Currency == "" {
		in.Currency = "EUR"
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	validation.Currency("currency", in.Currency, v)
	validation.RangeDecimal("tax_rate", in.TaxRate, decimal.Zero, maxTaxRate, v)
	if in.Theme != "" {
		if _, ok := render.LookupTheme(in.Theme); !ok {
			v["theme"] = "unknown_theme"
		}
	}
	for i, it := range in.Items {
		prefix := fmt.Sprintf("items[%d].", i)
		validation.Required(prefix+"description", it.Description, v)
		validation.NonNegative(prefix+"quantity", it.Quantity, v)
		validation.NonNegative(prefix+"unit_price", it.UnitPrice, v)
	}
	if in.IssueDate != nil && in.DueDate != nil && in.DueDate.Before(*in.IssueDate) {
		v["due_date"] = "before_issue_date"
	}
	if in.ClientID != 0 {
		c, err := s.clients.FindByID(ctx, in.ClientID)
		switch {
		case errors.Is(err, models.ErrNotFound):
			v["client_id"] = "not_found"
		case err != nil:
			return fmt.Errorf("load client %d: %w", in.ClientID, err)
		case !s.authz.Can(ctx, userID, policy.ActionView, policy.ResourceClient, c):
			v["client_id"] = "not_found"
		}
	}
	return v.Err()
}

func (s *DocumentService) apply(doc *models.Document, in DocumentInput) {
	doc.ClientID = in.ClientID
	doc.Currency = in.Currency
	doc.TaxRate = in.TaxRate
	doc.Notes = in.Notes
	doc.Theme = in.Theme
	doc.DueDate = in.DueDate
	if in.IssueDate != nil {
		doc.IssueDate = *in.IssueDate
	} else if doc.IssueDate.IsZero() {
		doc.IssueDate = s.today()
	}
	doc.Items = make([]models.LineItem, len(in.Items))
	for i, it := range in.Items {
		doc.Items[i] = models.LineItem{
			Description: strings.TrimSpace(it.Description),
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			Position:    i + 1,
		}
	}
}

func (s *DocumentService) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
