package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/briefly/internal/access"
	"github.com/diewo77/briefly/internal/models"
	"github.com/diewo77/briefly/internal/notify"
	"github.com/diewo77/briefly/internal/policy"
	"github.com/diewo77/briefly/internal/store"
	"github.com/diewo77/briefly/internal/validation"
	"github.com/diewo77/briefly/internal/workflow"
)

type fixture struct {
	db     *gorm.DB
	svc    *DocumentService
	docs   *store.DocumentStore
	outbox *notify.Outbox
	owner  models.User
	client models.Client
}

var fixedNow = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	owner := models.User{Email: "owner@test", Password: "x"}
	require.NoError(t, db.Create(&owner).Error)
	client := models.Client{UserID: owner.ID, Name: "ClientCo", Email: "client@test"}
	require.NoError(t, db.Create(&client).Error)

	docs := store.NewDocumentStore(db)
	outbox := notify.NewOutbox(db)
	svc := NewDocumentService(
		docs,
		store.NewClientStore(db),
		store.NewUserStore(db),
		policy.NewOwnerGate(),
		access.NewBcryptHasher(bcrypt.MinCost),
		notify.NewDispatcher(outbox, nil),
		WithPublicBaseURL("https://app.test/"),
		WithClock(func() time.Time { return fixedNow }),
	)
	return &fixture{db: db, svc: svc, docs: docs, outbox: outbox, owner: owner, client: client}
}

func (f *fixture) input() DocumentInput {
	return DocumentInput{
		ClientID: f.client.ID,
		TaxRate:  decimal.NewFromInt(10),
		Items: []ItemInput{
			{Description: "Design", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(50)},
			{Description: "Hosting", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(30)},
		},
	}
}

func (f *fixture) brief(t *testing.T) *models.Document {
	t.Helper()
	doc, err := f.svc.CreateBrief(context.Background(), f.owner.ID, f.input())
	require.NoError(t, err)
	return doc
}

func (f *fixture) notifications(t *testing.T) []models.Notification {
	t.Helper()
	var out []models.Notification
	require.NoError(t, f.db.Order("id").Find(&out).Error)
	return out
}

func (f *fixture) invoiceCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&models.Document{}).Where("kind = ?", models.KindInvoice).Count(&n).Error)
	return n
}

func TestCreateBrief(t *testing.T) {
	f := setup(t)
	doc := f.brief(t)

	assert.Equal(t, models.KindBrief, doc.Kind)
	assert.Equal(t, "BRF-2026-0001", doc.Number)
	assert.Equal(t, models.StatusDraft, doc.Status)
	assert.Equal(t, "EUR", doc.Currency)
	assert.NotEmpty(t, doc.Token)
	assert.True(t, doc.Subtotal.Equal(decimal.NewFromInt(130)))
	assert.True(t, doc.TaxAmount.Equal(decimal.NewFromInt(13)))
	assert.True(t, doc.Total.Equal(decimal.NewFromInt(143)))
	assert.True(t, doc.IssueDate.Equal(fixedNow.Truncate(24*time.Hour)), "issue date %s", doc.IssueDate)
	require.Len(t, doc.Items, 2)
	assert.Equal(t, 1, doc.Items[0].Position)
	assert.Equal(t, "https://app.test/p/"+doc.Token, f.svc.PublicURL(doc))

	second := f.brief(t)
	assert.Equal(t, "BRF-2026-0002", second.Number)
	assert.NotEqual(t, doc.Token, second.Token)

	inv, err := f.svc.CreateInvoice(context.Background(), f.owner.ID, f.input())
	require.NoError(t, err)
	assert.Equal(t, "INV-2026-0001", inv.Number)
}

func TestCreateValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	other := models.Client{UserID: f.owner.ID + 1, Name: "NotMine"}
	require.NoError(t, f.db.Create(&other).Error)

	issue := fixedNow
	due := fixedNow.Add(-24 * time.Hour)
	in := DocumentInput{
		ClientID:  other.ID,
		Currency:  "euro",
		TaxRate:   decimal.NewFromInt(120),
		IssueDate: &issue,
		DueDate:   &due,
		Theme:     "neon",
		Items:     []ItemInput{{Description: " ", Quantity: decimal.NewFromInt(-1), UnitPrice: decimal.NewFromInt(-5)}},
	}
	_, err := f.svc.CreateBrief(ctx, f.owner.ID, in)
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, validation.Violations{
		"client_id":            "not_found",
		"currency":             "invalid_currency",
		"tax_rate":             "out_of_range",
		"theme":                "unknown_theme",
		"due_date":             "before_issue_date",
		"items[0].description": "required",
		"items[0].quantity":    "must_not_be_negative",
		"items[0].unit_price":  "must_not_be_negative",
	}, verr.Fields)

	var n int64
	require.NoError(t, f.db.Model(&models.Document{}).Count(&n).Error)
	assert.Zero(t, n, "nothing is written on validation errors")

	_, err = f.svc.CreateBrief(ctx, 0, f.input())
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestOwnershipSurfacesAsNotFound(t *testing.T) {
	f := setup(t)
	doc := f.brief(t)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, f.owner.ID+1, doc.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.svc.Update(ctx, f.owner.ID+1, doc.ID, f.input())
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = f.svc.OwnerTransition(ctx, f.owner.ID+1, doc.ID, workflow.ActionSend, TransitionInput{})
	assert.ErrorIs(t, err, models.ErrNotFound)

	list, err := f.svc.List(ctx, f.owner.ID+1, "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestUpdateOnlyWhileEditable(t *testing.T) {
	f := setup(t)
	doc := f.brief(t)
	ctx := context.Background()

	in := f.input()
	in.Items = in.Items[:1]
	in.TaxRate = decimal.NewFromInt(20)
	updated, err := f.svc.Update(ctx, f.owner.ID, doc.ID, in)
	require.NoError(t, err)
	require.Len(t, updated.Items, 1)
	assert.True(t, updated.Total.Equal(decimal.NewFromInt(120)), "total %s", updated.Total)
	assert.Equal(t, doc.Number, updated.Number)

	_, err = f.svc.OwnerTransition(ctx, f.owner.ID, doc.ID, workflow.ActionSend, TransitionInput{})
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, f.owner.ID, doc.ID, in)
	assert.ErrorIs(t, err, ErrNotEditable)
}

func TestSetPassword(t *testing.T) {
	f := setup(t)
	doc := f.brief(t)
	ctx := context.Background()

	_, err := f.svc.SetPassword(ctx, f.owner.ID, doc.ID, "abc")
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "too_short", verr.Fields["password"])

	got, err := f.svc.SetPassword(ctx, f.owner.ID, doc.ID, "open sesame")
	require.NoError(t, err)
	assert.True(t, got.IsPasswordProtected)
	assert.NotEqual(t, "open sesame", got.AccessPassword)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.AccessPassword), []byte("open sesame")))

	got, err = f.svc.SetPassword(ctx, f.owner.ID, doc.ID, "")
	require.NoError(t, err)
	assert.False(t, got.IsPasswordProtected)
}

func TestSendNotifiesClientAndClearsReason(t *testing.T) {
	f := setup(t)
	doc := f.brief(t)
	ctx := context.Background()

	sent, err := f.svc.OwnerTransition(ctx, f.owner.ID, doc.ID, workflow.ActionSend, TransitionInput{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, sent.Status)

	rejected, err := f.svc.ClientTransition(ctx, sent, workflow.ActionReject, TransitionInput{Reason: "too expensive"})
	require.NoError(t, err)
	assert.Equal(t, "too expensive", rejected.RejectionReason)

	resent, err := f.svc.OwnerTransition(ctx, f.owner.ID, doc.ID, workflow.ActionSend, TransitionInput{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusSent, resent.Status)
	assert.Empty(t, resent.RejectionReason)

	notes := f.notifications(t)
	require.Len(t, notes, 3)
	assert.Equal(t, notify.TypeDocumentSent, notes[0].Type)
	assert.Equal(t, "client@test", notes[0].Recipient)
	assert.Equal(t, "https://app.test/p/"+doc.Token, notes[0].Message)
}

func TestSendRequiresClientEmail(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.db.Model(&f.client).Update("email", "").Error)
	doc := f.brief(t)

	_, err := f.svc.OwnerTransition(context.Background(), f.owner.ID, doc.ID, workflow.ActionSend, TransitionInput{})
	var verr *validation.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "required", verr.Fields["client.email"])

	got, err := f.docs.FindByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, got.Status)
}

func TestRejectSentBrief(t *testing.T) {
	f := setup(t)
	doc := f.brief(t)
	ctx := context.Background()
	sent, err := f.svc.OwnerTransition(ctx, f.owner.ID, doc.ID, workflow.ActionSend, TransitionInput{})
	require.NoError(t, err)

	got, err := f.svc.ClientTransition(ctx, sent, workflow.ActionReject, TransitionInput{Reason: "wrong quantity"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	assert.Equal(t, "wrong quantity", got.RejectionReason)

	var rejections []models.Notification
	for _, n := range f.notifications(t) {
		if n.Type == notify.TypeBriefRejected {
			rejections = append(rejections, n)
		}
	}
	require.Len(t, rejections, 1)
	assert.Equal(t, "owner@test", rejections[0].Recipient)
	assert.Equal(t, "wrong quantity", rejections[0].Message)
}

func TestRejectRequiresReason(t *testing.T) {
	f := setup(t)
	doc := f.brief(t)

	for _, reason := range []string{"", "   ", "\n\t"} {
		_, err := f.svc.ClientTransition(context.Background(), doc, workflow.ActionReject, TransitionInput{Reason: reason})
		var verr *validation.Error
		require.ErrorAs(t, err, &verr, "reason %q", reason)
		assert.Equal(t, "required", verr.Fields["reason"])
	}
	got, err := f.docs.FindByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDraft, got.Status)
	assert.Empty(t, f.notifications(t))
}

func TestApproveTwiceIsInvalid(t *testing.T) {
	f := setup(t)
	doc := f.brief(t)
	ctx := context.Background()

	approved, err := f.svc.ClientTransition(ctx, doc, workflow.ActionApprove, TransitionInput{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)

	_, err = f.svc.ClientTransition(ctx, approved, workflow.ActionApprove, TransitionInput{})
	var inv *workflow.InvalidTransitionError
	require.ErrorAs(t, err, &inv)
	assert.False(t, inv.Conflict)
	assert.Equal(t, models.StatusApproved, inv.From)
	assert.Len(t, f.notifications(t), 1, "no second approval notification")
}

func TestConcurrentTransitionRejectsSecondWriter(t *testing.T) {
	f := setup(t)
	doc := f.brief(t)
	ctx := context.Background()

	// two visitors load the same draft
	first := *doc
	second := *doc

	_, err := f.svc.ClientTransition(ctx, &first, workflow.ActionApprove, TransitionInput{})
	require.NoError(t, err)

	_, err = f.svc.ClientTransition(ctx, &second, workflow.ActionReject, TransitionInput{Reason: "no"})
	var inv *workflow.InvalidTransitionError
	require.ErrorAs(t, err, &inv)
	assert.True(t, inv.Conflict)
	assert.Equal(t, models.StatusApproved, inv.From)

	got, err := f.docs.FindByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.Empty(t, got.RejectionReason)
}

func TestConvertCreatesInvoiceOnce(t *testing.T) {
	f := setup(t)
	doc := f.brief(t)
	ctx := context.Background()

	approved, err := f.svc.ClientTransition(ctx, doc, workflow.ActionApprove, TransitionInput{})
	require.NoError(t, err)

	converted, err := f.svc.OwnerTransition(ctx, f.owner.ID, doc.ID, workflow.ActionConvert, TransitionInput{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConverted, converted.Status)
	require.NotNil(t, converted.ConvertedInvoiceID)
	require.Len(t, converted.Items, 2, "brief items untouched")

	inv, err := f.svc.Get(ctx, f.owner.ID, *converted.ConvertedInvoiceID)
	require.NoError(t, err)
	assert.Equal(t, models.KindInvoice, inv.Kind)
	assert.Equal(t, models.StatusDraft, inv.Status)
	assert.Equal(t, "INV-2026-0001", inv.Number)
	assert.NotEqual(t, doc.Token, inv.Token)
	assert.Equal(t, doc.ClientID, inv.ClientID)
	assert.Equal(t, doc.Currency, inv.Currency)
	assert.True(t, inv.TaxRate.Equal(doc.TaxRate))
	assert.True(t, inv.Total.Equal(decimal.NewFromInt(143)))
	require.NotNil(t, inv.SourceBriefID)
	assert.Equal(t, doc.ID, *inv.SourceBriefID)
	require.Len(t, inv.Items, 2)
	assert.NotEqual(t, doc.Items[0].ID, inv.Items[0].ID)

	// a fresh read sees converted
	_, err = f.svc.OwnerTransition(ctx, f.owner.ID, doc.ID, workflow.ActionConvert, TransitionInput{})
	var invErr *workflow.InvalidTransitionError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, models.StatusConverted, invErr.From)

	// a stale copy still believing approved loses inside the transaction
	_, err = f.svc.Transition(ctx, approved, workflow.ActionConvert, TransitionInput{})
	require.ErrorAs(t, err, &invErr)
	assert.True(t, invErr.Conflict)

	assert.EqualValues(t, 1, f.invoiceCount(t))
}

func TestConvertDraftIsInvalid(t *testing.T) {
	f := setup(t)
	doc := f.brief(t)
	_, err := f.svc.OwnerTransition(context.Background(), f.owner.ID, doc.ID, workflow.ActionConvert, TransitionInput{})
	var inv *workflow.InvalidTransitionError
	require.ErrorAs(t, err, &inv)
	assert.Zero(t, f.invoiceCount(t))
}

func TestMarkPaid(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	inv, err := f.svc.CreateInvoice(ctx, f.owner.ID, f.input())
	require.NoError(t, err)

	_, err = f.svc.OwnerTransition(ctx, f.owner.ID, inv.ID, workflow.ActionMarkPaid, TransitionInput{})
	require.Error(t, err, "a draft invoice cannot be paid")

	_, err = f.svc.OwnerTransition(ctx, f.owner.ID, inv.ID, workflow.ActionSend, TransitionInput{})
	require.NoError(t, err)
	paid, err := f.svc.OwnerTransition(ctx, f.owner.ID, inv.ID, workflow.ActionMarkPaid, TransitionInput{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)
	assert.True(t, paid.PaidAt.Equal(fixedNow))
}

func TestActionsAreSplitBetweenOwnerAndClient(t *testing.T) {
	f := setup(t)
	doc := f.brief(t)
	ctx := context.Background()

	_, err := f.svc.OwnerTransition(ctx, f.owner.ID, doc.ID, workflow.ActionApprove, TransitionInput{})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = f.svc.ClientTransition(ctx, doc, workflow.ActionSend, TransitionInput{})
	assert.ErrorIs(t, err, ErrForbidden)

	assert.Equal(t, []string{"approve", "reject"}, ClientActions(doc))
	doc.Status = models.StatusConverted
	assert.Empty(t, ClientActions(doc))
}

type brokenNotifier struct{}

func (brokenNotifier) Notify(context.Context, notify.Message) error { return errors.New("down") }

func TestNotifierFailureDoesNotFailTransition(t *testing.T) {
	f := setup(t)
	f.svc.notifier = notify.NewDispatcher(brokenNotifier{}, nil)
	doc := f.brief(t)

	got, err := f.svc.ClientTransition(context.Background(), doc, workflow.ActionApprove, TransitionInput{})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
}
