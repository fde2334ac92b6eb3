package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diewo77/briefly/internal/config"
	"github.com/diewo77/briefly/internal/db"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg := config.Load()
	cfg.Database.Driver = db.DriverSQLite
	cfg.Database.DSN = fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	cfg.Auth.SessionSecret = "test-secret"
	cfg.Auth.BcryptCost = 4
	cfg.Access.Store = "db"
	cfg.Notify.Notifier = "outbox"
	cfg.Server.PublicBaseURL = "https://app.test"
	require.NoError(t, cfg.Validate())

	conn, err := db.Connect(db.Options{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN}, nil)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn, cfg.Database.Driver, cfg.Database.DSN, false))

	app, err := NewApp(cfg, conn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

type client struct {
	t       *testing.T
	app     *App
	cookies []*http.Cookie
}

func (c *client) call(method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.app.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		c.keep(ck)
	}
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func (c *client) keep(ck *http.Cookie) {
	for i, have := range c.cookies {
		if have.Name == ck.Name {
			c.cookies[i] = ck
			return
		}
	}
	c.cookies = append(c.cookies, ck)
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	rec = httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `briefly_http_requests_total{method="GET",route="GET /healthz",status="200"} 1`)
}

func TestOwnerToClientFlow(t *testing.T) {
	app := newTestApp(t)
	owner := &client{t: t, app: app}

	rec, _ := owner.call(http.MethodPost, "/api/signup", map[string]string{"email": "me@studio.test", "password": "correct horse"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, cl := owner.call(http.MethodPost, "/api/clients", map[string]string{"name": "ACME", "email": "buyer@acme.test"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec, doc := owner.call(http.MethodPost, "/api/briefs", map[string]any{
		"client_id": cl["id"],
		"tax_rate":  "20",
		"items":     []map[string]any{{"description": "Logo", "quantity": "1", "unit_price": "500"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := int(doc["id"].(float64))
	token := doc["token"].(string)

	rec, _ = owner.call(http.MethodPost, fmt.Sprintf("/api/documents/%d/password", id), map[string]string{"password": "letmein"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec, _ = owner.call(http.MethodPost, fmt.Sprintf("/api/documents/%d/send", id), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	visitor := &client{t: t, app: app}
	rec, _ = visitor.call(http.MethodPost, "/p/"+token+"/unlock", map[string]string{"password": "letmein"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec, out := visitor.call(http.MethodPost, "/p/"+token+"/approve", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "approved", out["status"])

	rec, converted := owner.call(http.MethodPost, fmt.Sprintf("/api/documents/%d/convert", id), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "converted", converted["status"])
	assert.NotNil(t, converted["converted_invoice_id"])

	rec, _ = owner.call(http.MethodGet, "/api/invoices", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "INV-"), rec.Body.String())

	rec, _ = owner.call(http.MethodGet, "/api/notifications", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "brief_approved")
	assert.Contains(t, rec.Body.String(), "brief_converted")
}
