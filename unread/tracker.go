// Package unread tracks which request messages a viewer has already opened.
// State is kept per device and per view, so the same message can be unread
// on one admin's device and read on another's.
package unread

import (
	"context"
	"strconv"
	"time"

	"github.com/princinho/escolaportal/models"
)

// View is the screen a viewer reads requests from. Each view keeps its own set.
type View string

const (
	ViewUser        View = "user"
	ViewOperacional View = "operacional"
	ViewFinanceiro  View = "financeiro"
	ViewPedagogico  View = "pedagogico"
)

func (v View) Valid() bool {
	switch v {
	case ViewUser, ViewOperacional, ViewFinanceiro, ViewPedagogico:
		return true
	}
	return false
}

func (v View) StorageKey() string {
	return "viewed:" + string(v)
}

// isAdminView reports whether v reads requests as staff.
func (v View) isAdminView() bool {
	return v != ViewUser
}

// Types lists the request types shown on a view. The user view shows every
// type, restricted elsewhere to the viewer's own requests.
func (v View) Types() []models.RequestType {
	switch v {
	case ViewOperacional:
		return []models.RequestType{models.RequestTypeReservation, models.RequestTypeSupport}
	case ViewFinanceiro, ViewPedagogico:
		return []models.RequestType{models.RequestTypePurchase}
	}
	return models.RequestTypes
}

// ViewForRole picks the default view of a role. Admins read from the
// operational screens.
func ViewForRole(r models.Role) View {
	switch r {
	case models.RoleAdmin, models.RoleOperacional:
		return ViewOperacional
	case models.RoleFinanceiro:
		return ViewFinanceiro
	case models.RolePedagogico:
		return ViewPedagogico
	}
	return ViewUser
}

func RequestKey(requestID string) string {
	return requestID
}

func MessageKey(requestID string, ts time.Time) string {
	return requestID + "-" + strconv.FormatInt(ts.UnixMilli(), 10)
}

type Tracker struct {
	storage Storage
	view    View
	viewed  map[string]struct{}
}

// NewTracker loads the view's viewed-set from storage.
func NewTracker(ctx context.Context, storage Storage, view View) (*Tracker, error) {
	keys, err := storage.Load(ctx, view.StorageKey())
	if err != nil {
		return nil, err
	}
	t := &Tracker{storage: storage, view: view, viewed: make(map[string]struct{}, len(keys))}
	for _, k := range keys {
		t.viewed[k] = struct{}{}
	}
	return t, nil
}

func (t *Tracker) View() View { return t.view }

func (t *Tracker) IsViewed(key string) bool {
	_, ok := t.viewed[key]
	return ok
}

// MarkViewed records keys; already viewed keys are not written again.
func (t *Tracker) MarkViewed(ctx context.Context, keys ...string) error {
	fresh := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" || t.IsViewed(k) {
			continue
		}
		fresh = append(fresh, k)
	}
	if len(fresh) == 0 {
		return nil
	}
	if err := t.storage.Add(ctx, t.view.StorageKey(), fresh); err != nil {
		return err
	}
	for _, k := range fresh {
		t.viewed[k] = struct{}{}
	}
	return nil
}

// fromOtherSide reports whether m was written by the party this view reads.
func (t *Tracker) fromOtherSide(m models.Message) bool {
	if t.view.isAdminView() {
		return !m.IsAdmin
	}
	return m.IsAdmin
}

// CountUnread counts messages from the other side that this view has not opened.
func (t *Tracker) CountUnread(r *models.Request) int {
	id := r.Id.Hex()
	n := 0
	for _, m := range r.Messages {
		if t.fromOtherSide(m) && !t.IsViewed(MessageKey(id, m.Timestamp)) {
			n++
		}
	}
	return n
}

// IsNew reports whether a staff view has never opened the request itself.
func (t *Tracker) IsNew(r *models.Request) bool {
	return t.view.isAdminView() && !t.IsViewed(RequestKey(r.Id.Hex()))
}

// MarkRequestViewed marks the request and every message in it.
func (t *Tracker) MarkRequestViewed(ctx context.Context, r *models.Request) error {
	id := r.Id.Hex()
	keys := make([]string, 0, len(r.Messages)+1)
	keys = append(keys, RequestKey(id))
	for _, m := range r.Messages {
		keys = append(keys, MessageKey(id, m.Timestamp))
	}
	return t.MarkViewed(ctx, keys...)
}

type RequestUnread struct {
	RequestID string             `json:"requestId"`
	Type      models.RequestType `json:"type"`
	Unread    int                `json:"unread"`
	New       bool               `json:"new"`
}

type Summary struct {
	View     View            `json:"view"`
	Total    int             `json:"total"`
	New      int             `json:"new"`
	Requests []RequestUnread `json:"requests"`
}

// Summarize builds the badge counts for reqs. Requests with nothing unread are left out.
func (t *Tracker) Summarize(reqs []models.Request) Summary {
	s := Summary{View: t.view, Requests: make([]RequestUnread, 0)}
	for i := range reqs {
		r := &reqs[i]
		unread := t.CountUnread(r)
		isNew := t.IsNew(r)
		if unread == 0 && !isNew {
			continue
		}
		s.Total += unread
		if isNew {
			s.New++
		}
		s.Requests = append(s.Requests, RequestUnread{RequestID: r.Id.Hex(), Type: r.Type, Unread: unread, New: isNew})
	}
	return s
}
