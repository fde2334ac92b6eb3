// Package workflow holds the document lifecycle rules.
//
//	draft    -> sent        SEND
//	rejected -> sent        SEND (after edit)
//	draft|sent -> approved  APPROVE
//	draft|sent -> rejected  REJECT
//	approved -> converted   CONVERT   (brief only)
//	sent|approved -> paid   MARK_PAID (invoice only)
//
// The rules are pure; persistence and side effects live in the services
// package.
package workflow

import (
	"fmt"

	"github.com/diewo77/briefly/internal/models"
)

// Action is a user request to move a document to another status.
type Action string

const (
	ActionSend     Action = "send"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionConvert  Action = "convert"
	ActionMarkPaid Action = "mark_paid"
)

// Actions lists every known action.
var Actions = []Action{ActionSend, ActionApprove, ActionReject, ActionConvert, ActionMarkPaid}

type rule struct {
	from  []models.Status
	to    models.Status
	kinds []models.Kind // nil means every kind
}

var rules = map[Action]rule{
	ActionSend:     {from: []models.Status{models.StatusDraft, models.StatusRejected}, to: models.StatusSent},
	ActionApprove:  {from: []models.Status{models.StatusSent, models.StatusDraft}, to: models.StatusApproved},
	ActionReject:   {from: []models.Status{models.StatusSent, models.StatusDraft}, to: models.StatusRejected},
	ActionConvert:  {from: []models.Status{models.StatusApproved}, to: models.StatusConverted, kinds: []models.Kind{models.KindBrief}},
	ActionMarkPaid: {from: []models.Status{models.StatusSent, models.StatusApproved}, to: models.StatusPaid, kinds: []models.Kind{models.KindInvoice}},
}

// InvalidTransitionError is returned for any (status, action) pair that is
// not listed above. It is never corrected silently.
//
// Conflict is set when the action was legal for the status the caller saw
// but another writer changed it first; From is then the status now stored.
type InvalidTransitionError struct {
	Kind     models.Kind
	From     models.Status
	Action   Action
	Conflict bool
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("invalid transition: cannot %s a %s %s", e.Action, e.From, e.Kind)
	if e.Conflict {
		msg += " (status changed concurrently)"
	}
	return msg
}

// Next returns the status reached by applying action to a document of the
// given kind currently in from.
func Next(kind models.Kind, from models.Status, action Action) (models.Status, error) {
	r, ok := rules[action]
	if !ok {
		return "", &InvalidTransitionError{Kind: kind, From: from, Action: action}
	}
	if r.kinds != nil && !containsKind(r.kinds, kind) {
		return "", &InvalidTransitionError{Kind: kind, From: from, Action: action}
	}
	for _, s := range r.from {
		if s == from {
			return r.to, nil
		}
	}
	return "", &InvalidTransitionError{Kind: kind, From: from, Action: action}
}

// Can reports whether Next would succeed.
func Can(kind models.Kind, from models.Status, action Action) bool {
	_, err := Next(kind, from, action)
	return err == nil
}

// Available lists the actions legal for a document right now, in a stable order.
func Available(kind models.Kind, from models.Status) []Action {
	var out []Action
	for _, a := range Actions {
		if Can(kind, from, a) {
			out = append(out, a)
		}
	}
	return out
}

// ParseAction validates a raw action name.
func ParseAction(s string) (Action, bool) {
	a := Action(s)
	_, ok := rules[a]
	return a, ok
}

func containsKind(kinds []models.Kind, k models.Kind) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}
