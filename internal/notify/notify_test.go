package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/briefly/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Notification{}))
	return db
}

func TestOutboxRecordsAndLists(t *testing.T) {
	o := NewOutbox(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, o.Notify(ctx, Message{Type: TypeBriefApproved, UserID: 1, DocumentID: 7, Recipient: "me@test", Subject: "approved"}))
	require.NoError(t, o.Notify(ctx, Message{Type: TypeBriefRejected, UserID: 1, DocumentID: 7, Recipient: "me@test", Body: "too expensive"}))
	require.NoError(t, o.Notify(ctx, Message{Type: TypeDocumentSent, UserID: 2, DocumentID: 9, Recipient: "client@test"}))

	list, err := o.List(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, TypeBriefRejected, list[0].Type)
	assert.Equal(t, "too expensive", list[0].Message)

	require.NoError(t, o.MarkRead(ctx, 1, list[0].ID))
	assert.ErrorIs(t, o.MarkRead(ctx, 2, list[0].ID), models.ErrNotFound)

	list, err = o.List(ctx, 1, 10)
	require.NoError(t, err)
	assert.True(t, list[0].Read)
}

type failingNotifier struct{ calls int }

func (f *failingNotifier) Notify(context.Context, Message) error {
	f.calls++
	return errors.New("smtp down")
}

func TestDispatcherLogsFailures(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	f := &failingNotifier{}
	d := NewDispatcher(f, zap.New(core).Sugar())

	d.Send(context.Background(), Message{Type: TypeDocumentSent, DocumentID: 3})
	assert.Equal(t, 1, f.calls)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "notification failed", logs.All()[0].Message)

	var nilDispatcher *Dispatcher
	nilDispatcher.Send(context.Background(), Message{})
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(zap.New(core).Sugar())
	require.NoError(t, n.Notify(context.Background(), Message{Type: TypeInvoicePaid, Recipient: "me@test"}))
	assert.Equal(t, 1, logs.FilterMessage("notification").Len())
}
