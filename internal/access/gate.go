// Package access protects password-gated public documents from brute force.
//
// Failed attempts are logged per (document, identity). Once MaxAttempts
// failures fall inside the trailing Window the pair is locked until the
// oldest of them ages out; the password is not even evaluated while locked.
//
// Counting and recording are two separate store calls. Two concurrent
// requests from the same identity may both pass the count before either
// records, so a burst can briefly exceed the threshold by the number of
// in-flight requests.
package access

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diewo77/briefly/internal/logging"
	"github.com/diewo77/briefly/internal/models"
)

// ErrUnavailable wraps store failures on the read path. The gate fails
// closed: callers must deny access when they see it.
var ErrUnavailable = errors.New("access check unavailable")

// Reason explains a Decision.
type Reason string

const (
	ReasonGranted          Reason = "granted"
	ReasonNotProtected     Reason = "not_protected"
	ReasonLocked           Reason = "locked"
	ReasonWrongPassword    Reason = "wrong_password"
	ReasonPasswordRequired Reason = "password_required"
)

// Decision is the outcome of Check.
type Decision struct {
	Granted    bool
	Reason     Reason
	RetryAfter time.Duration // set when Reason is ReasonLocked
}

// Config holds the lockout policy.
type Config struct {
	WindowMinutes int
	MaxAttempts   int
}

// DefaultConfig is 5 failures per 60 minutes.
func DefaultConfig() Config {
	return Config{WindowMinutes: 60, MaxAttempts: 5}
}

// Window returns the trailing window as a duration.
func (c Config) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.WindowMinutes <= 0 {
		c.WindowMinutes = def.WindowMinutes
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	return c
}

// DocumentFinder loads the protection settings of a document.
// It returns models.ErrNotFound when the document does not exist.
type DocumentFinder interface {
	FindByID(ctx context.Context, id uint) (*models.Document, error)
}

// AttemptStore is the append-only log of failed attempts.
type AttemptStore interface {
	CountSince(ctx context.Context, documentID uint, identity string, since time.Time) (int64, error)
	Record(ctx context.Context, documentID uint, identity string, at time.Time) error
	Clear(ctx context.Context, documentID uint, identity string) error
}

// Gate decides whether a request for a protected document may proceed.
type Gate struct {
	docs     DocumentFinder
	attempts AttemptStore
	hasher   Hasher
	cfg      Config
	logger   logging.Logger
	now      func() time.Time
	observe  func(Reason)
}

// Option customizes a Gate.
type Option func(*Gate)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithLogger sets the logger used for cleanup failures.
func WithLogger(l logging.Logger) Option {
	return func(g *Gate) { g.logger = logging.OrNop(l) }
}

// WithObserver registers a callback invoked with every decision reason.
func WithObserver(f func(Reason)) Option {
	return func(g *Gate) { g.observe = f }
}

// NewGate builds a gate. Zero config values fall back to DefaultConfig.
func NewGate(docs DocumentFinder, attempts AttemptStore, hasher Hasher, cfg Config, opts ...Option) *Gate {
	g := &Gate{
		docs:     docs,
		attempts: attempts,
		hasher:   hasher,
		cfg:      cfg.normalized(),
		logger:   logging.Nop(),
		now:      time.Now,
		observe:  func(Reason) {},
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Config returns the effective lockout policy.
func (g *Gate) Config() Config { return g.cfg }

// Check evaluates a request from identity for documentID. An empty password
// on a protected document yields ReasonPasswordRequired (or ReasonLocked)
// without recording an attempt.
func (g *Gate) Check(ctx context.Context, documentID uint, identity, password string) (Decision, error) {
	doc, err := g.docs.FindByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return Decision{}, err
		}
		return Decision{}, fmt.Errorf("%w: load document %d: %v", ErrUnavailable, documentID, err)
	}
	return g.CheckDocument(ctx, doc, identity, password)
}

// CheckDocument is Check for a document the caller already loaded.
func (g *Gate) CheckDocument(ctx context.Context, doc *models.Document, identity, password string) (Decision, error) {
	if !doc.IsPasswordProtected {
		return g.decide(Decision{Granted: true, Reason: ReasonNotProtected}), nil
	}

	now := g.now()
	window := g.cfg.Window()
	count, err := g.attempts.CountSince(ctx, doc.ID, identity, now.Add(-window))
	if err != nil {
		return Decision{}, fmt.Errorf("%w: count attempts for document %d: %v", ErrUnavailable, doc.ID, err)
	}
	if count >= int64(g.cfg.MaxAttempts) {
		return g.decide(Decision{Reason: ReasonLocked, RetryAfter: window}), nil
	}
	if password == "" {
		return g.decide(Decision{Reason: ReasonPasswordRequired}), nil
	}

	if !g.hasher.Verify(password, doc.AccessPassword) {
		if err := g.attempts.Record(ctx, doc.ID, identity, now); err != nil {
			g.logger.Warnw("record access attempt", "document_id", doc.ID, "error", err)
		}
		return g.decide(Decision{Reason: ReasonWrongPassword}), nil
	}

	if err := g.attempts.Clear(ctx, doc.ID, identity); err != nil {
		g.logger.Warnw("clear access attempts", "document_id", doc.ID, "error", err)
	}
	return g.decide(Decision{Granted: true, Reason: ReasonGranted}), nil
}

// Locked reports whether identity is currently locked out of documentID.
func (g *Gate) Locked(ctx context.Context, documentID uint, identity string) (bool, error) {
	count, err := g.attempts.CountSince(ctx, documentID, identity, g.now().Add(-g.cfg.Window()))
	if err != nil {
		return true, fmt.Errorf("%w: count attempts for document %d: %v", ErrUnavailable, documentID, err)
	}
	return count >= int64(g.cfg.MaxAttempts), nil
}

func (g *Gate) decide(d Decision) Decision {
	g.observe(d.Reason)
	return d
}
