package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository"
	"github.com/princinho/escolaportal/utils"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
)

const maxMessageLength = 5000

var statusLabels = map[models.RequestStatus]string{
	models.StatusPending:         "Pendente",
	models.StatusApproved:        "Aprovado",
	models.StatusRejected:        "Rejeitado",
	models.StatusInProgress:      "Em andamento",
	models.StatusCompleted:       "Concluído",
	models.StatusCanceled:        "Cancelado",
	models.StatusAnalyzing:       "Em análise",
	models.StatusWaitingDelivery: "Aguardando entrega",
	models.StatusDelivered:       "Entregue",
}

func StatusLabel(s models.RequestStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

type RequestQuery struct {
	IncludeHidden bool
	Type          models.RequestType
	Status        models.RequestStatus
	UserEmail     string
	Date          string
}

type StatusUpdate struct {
	Status          models.RequestStatus
	RejectionReason string
	DeliveryDate    string
}

type RequestService struct {
	Requests     repository.RequestRepository
	Equipment    repository.EquipmentRepository
	Conflicts    *ConflictChecker
	Availability *AvailabilityService
	// HiddenCutoffs is how long a terminal request stays in the default list, per type.
	HiddenCutoffs map[models.RequestType]time.Duration
	Now           func() time.Time
	Log           zerolog.Logger

	// reservations on one date are checked and stored one at a time
	dateLocks keyedMutex
	// messages on one request get distinct timestamps
	threadLocks keyedMutex
}

func NewRequestService(
	requests repository.RequestRepository,
	equipment repository.EquipmentRepository,
	availability *AvailabilityService,
	cutoffs map[models.RequestType]time.Duration,
	log zerolog.Logger,
) *RequestService {
	return &RequestService{
		Requests:      requests,
		Equipment:     equipment,
		Conflicts:     NewConflictChecker(requests, equipment),
		Availability:  availability,
		HiddenCutoffs: cutoffs,
		Now:           time.Now,
		Log:           log,
	}
}

func canManage(actor models.Actor, t models.RequestType) bool {
	return actor.Can(models.ManageFeature(t))
}

func isOwner(actor models.Actor, r *models.Request) bool {
	return actor.Email != "" && strings.EqualFold(actor.Email, r.UserEmail)
}

func normalizeTipo(raw string) (models.PurchaseTipo, bool) {
	folded := utils.Fold(raw)
	for _, t := range models.PurchaseTipos {
		if utils.Fold(string(t)) == folded {
			return t, true
		}
	}
	return "", false
}

func validateRequest(r *models.Request) error {
	v := &ValidationError{}
	switch r.Type {
	case models.RequestTypeReservation:
		validateSlot(v, r.Date, r.StartTime, r.EndTime)
		r.EquipmentIDs = utils.UniqueStrings(r.EquipmentIDs)
		if len(r.EquipmentIDs) == 0 {
			v.add("equipmentIds", "at least one equipment is required")
		}
	case models.RequestTypePurchase:
		r.ItemName = strings.TrimSpace(r.ItemName)
		if r.ItemName == "" {
			v.add("itemName", "required")
		}
		if r.Quantity < 1 {
			v.add("quantity", "must be at least 1")
		}
		if r.UnitPrice < 0 || math.IsNaN(r.UnitPrice) || math.IsInf(r.UnitPrice, 0) {
			v.add("unitPrice", "must be a non-negative number")
		}
		if strings.TrimSpace(r.Justification) == "" {
			v.add("justification", "required")
		}
		if tipo, ok := normalizeTipo(string(r.Tipo)); ok {
			r.Tipo = tipo
		} else {
			v.add("tipo", "must be one of Pedagógico, Administrativo, Financeiro")
		}
	case models.RequestTypeSupport:
		if strings.TrimSpace(r.Category) == "" {
			v.add("category", "required")
		}
		if strings.TrimSpace(r.Description) == "" {
			v.add("description", "required")
		}
	default:
		v.add("type", "unknown request type")
	}
	return v.errOrNil()
}

// Create stores a new pending request owned by actor.
func (s *RequestService) Create(ctx context.Context, actor models.Actor, r *models.Request) (*models.Request, error) {
	if err := validateRequest(r); err != nil {
		return nil, err
	}
	if r.Type == models.RequestTypeReservation {
		unlock := s.dateLocks.Lock(r.Date)
		defer unlock()
		if err := s.checkReservable(ctx, r); err != nil {
			return nil, err
		}
	}

	now := s.Now().UTC()
	r.Id = bson.NewObjectID()
	r.Status = models.StatusPending
	r.UserID = actor.UserID
	r.UserName = actor.Name
	r.UserEmail = actor.Email
	r.Messages = []models.Message{}
	r.Hidden = false
	r.CreatedAt = now
	r.UpdatedAt = now
	r.RejectionReason = ""
	r.DeliveryDate = ""

	if err := s.Requests.Insert(ctx, r); err != nil {
		return nil, err
	}
	s.Log.Info().Str("type", string(r.Type)).Str("id", r.Id.Hex()).Str("user", r.UserEmail).Msg("request created")
	return r, nil
}

func (s *RequestService) checkReservable(ctx context.Context, r *models.Request) error {
	if s.Availability != nil {
		ok, err := s.Availability.IsAvailable(ctx, r.Date)
		if err != nil {
			return err
		}
		if !ok {
			return ErrDateUnavailable
		}
	}

	ids := make([]bson.ObjectID, 0, len(r.EquipmentIDs))
	for _, raw := range r.EquipmentIDs {
		oid, err := bson.ObjectIDFromHex(raw)
		if err != nil {
			return &ValidationError{Fields: []FieldError{{Field: "equipmentIds", Message: "invalid id " + raw}}}
		}
		ids = append(ids, oid)
	}
	items, err := s.Equipment.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	reservable := make(map[bson.ObjectID]bool, len(items))
	for _, e := range items {
		reservable[e.ID] = e.IsAvailableForReservation
	}
	for _, id := range ids {
		if !reservable[id] {
			return fmt.Errorf("%w: %s", ErrEquipmentNotReservable, id.Hex())
		}
	}

	conflicts, err := s.Conflicts.CheckConflicts(ctx, ReservationCandidate{
		Date:         r.Date,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		EquipmentIDs: r.EquipmentIDs,
	})
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &ConflictError{Conflicts: conflicts}
	}
	return nil
}

func (s *RequestService) load(ctx context.Context, t models.RequestType, id bson.ObjectID) (*models.Request, error) {
	r, err := s.Requests.FindByID(ctx, t, id)
	return r, fromRepo(err)
}

func (s *RequestService) GetByID(ctx context.Context, actor models.Actor, t models.RequestType, id bson.ObjectID) (*models.Request, error) {
	r, err := s.load(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if !isOwner(actor, r) && !canManage(actor, t) {
		return nil, ErrForbidden
	}
	return r, nil
}

// hiddenByDefault reports whether r drops out of the default list.
func (s *RequestService) hiddenByDefault(r *models.Request, now time.Time) bool {
	if r.Hidden {
		return true
	}
	if !r.Status.IsTerminal() {
		return false
	}
	cutoff, ok := s.HiddenCutoffs[r.Type]
	if !ok {
		return false
	}
	return now.Sub(r.CreatedAt) > cutoff
}

// GetAll merges every collection the actor may read, newest first.
func (s *RequestService) GetAll(ctx context.Context, actor models.Actor, q RequestQuery) ([]models.Request, error) {
	if q.IncludeHidden && !actor.Can(models.FeatureViewHiddenRequests) {
		return nil, ErrForbidden
	}
	types := models.RequestTypes
	if q.Type != "" {
		if !q.Type.Valid() {
			return nil, &ValidationError{Fields: []FieldError{{Field: "type", Message: "unknown request type"}}}
		}
		types = []models.RequestType{q.Type}
	}

	now := s.Now().UTC()
	out := make([]models.Request, 0)
	for _, t := range types {
		f := repository.RequestFilter{Date: q.Date, UserEmail: q.UserEmail}
		if q.Status != "" {
			f.Statuses = []models.RequestStatus{q.Status}
		}
		if !canManage(actor, t) {
			f.UserEmail = actor.Email
		}
		found, err := s.Requests.Find(ctx, t, f)
		if err != nil {
			return nil, err
		}
		for i := range found {
			if !q.IncludeHidden && s.hiddenByDefault(&found[i], now) {
				continue
			}
			out = append(out, found[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func statusEvent(r *models.Request, to models.RequestStatus, at time.Time) *models.OutboxEvent {
	msg := fmt.Sprintf("%s: status alterado para %s.", r.Title(), StatusLabel(to))
	if to == models.StatusRejected && r.RejectionReason != "" {
		msg += " Motivo: " + r.RejectionReason
	}
	return &models.OutboxEvent{
		ID:          bson.NewObjectID(),
		Kind:        models.OutboxStatusChanged,
		RequestID:   r.Id,
		RequestType: r.Type,
		Recipient:   r.UserEmail,
		Title:       "Atualização de solicitação",
		Message:     msg,
		Link:        requestLink(r),
		CreatedAt:   at,
	}
}

func requestLink(r *models.Request) string {
	return "/requests/" + string(r.Type) + "/" + r.Id.Hex()
}

// UpdateStatus moves a request along its transition table and queues the
// requester's notification in the same write.
func (s *RequestService) UpdateStatus(ctx context.Context, actor models.Actor, t models.RequestType, id bson.ObjectID, u StatusUpdate) (*models.Request, error) {
	if !canManage(actor, t) {
		return nil, ErrForbidden
	}
	if !KnownStatus(t, u.Status) {
		return nil, &ValidationError{Fields: []FieldError{{Field: "status", Message: "unknown status " + string(u.Status)}}}
	}
	r, err := s.load(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if r.Status == u.Status {
		return r, nil
	}
	if !CanTransition(t, r.Status, u.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, u.Status)
	}

	ch := repository.StatusChange{From: r.Status, To: u.Status, At: s.Now().UTC()}
	if t == models.RequestTypePurchase && u.Status == models.StatusRejected {
		ch.RejectionReason = strings.TrimSpace(u.RejectionReason)
		if ch.RejectionReason == "" {
			return nil, ErrRejectionReasonRequired
		}
	}
	if t == models.RequestTypePurchase && u.DeliveryDate != "" {
		if _, err := utils.ParseDate(u.DeliveryDate); err != nil {
			return nil, &ValidationError{Fields: []FieldError{{Field: "deliveryDate", Message: err.Error()}}}
		}
		ch.DeliveryDate = u.DeliveryDate
	}
	return s.applyStatus(ctx, actor, r, ch)
}

func (s *RequestService) applyStatus(ctx context.Context, actor models.Actor, r *models.Request, ch repository.StatusChange) (*models.Request, error) {
	if ch.RejectionReason != "" {
		r.RejectionReason = ch.RejectionReason
	}
	var event *models.OutboxEvent
	if !isOwner(actor, r) {
		event = statusEvent(r, ch.To, ch.At)
	}
	if err := s.Requests.UpdateStatus(ctx, r.Type, r.Id, ch, event); err != nil {
		return nil, fromRepo(err)
	}
	s.Log.Info().
		Str("type", string(r.Type)).
		Str("id", r.Id.Hex()).
		Str("from", string(ch.From)).
		Str("to", string(ch.To)).
		Str("by", actor.Email).
		Msg("request status changed")
	return s.load(ctx, r.Type, r.Id)
}

// Cancel lets the requester (or a manager) withdraw a non-terminal request.
func (s *RequestService) Cancel(ctx context.Context, actor models.Actor, t models.RequestType, id bson.ObjectID) (*models.Request, error) {
	r, err := s.load(ctx, t, id)
	if err != nil {
		return nil, err
	}
	if !isOwner(actor, r) && !canManage(actor, t) {
		return nil, ErrForbidden
	}
	if r.Status == models.StatusCanceled {
		return r, nil
	}
	if !CanTransition(t, r.Status, models.StatusCanceled) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, models.StatusCanceled)
	}
	return s.applyStatus(ctx, actor, r, repository.StatusChange{
		From: r.Status,
		To:   models.StatusCanceled,
		At:   s.Now().UTC(),
	})
}

// AppendMessage adds text to the request thread. Messages from a manager
// who is not the requester count as admin messages and notify the requester.
func (s *RequestService) AppendMessage(ctx context.Context, actor models.Actor, t models.RequestType, id bson.ObjectID, text string) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Fields: []FieldError{{Field: "message", Message: "required"}}}
	}
	if len([]rune(text)) > maxMessageLength {
		return nil, &ValidationError{Fields: []FieldError{{Field: "message", Message: fmt.Sprintf("must be at most %d characters", maxMessageLength)}}}
	}
	unlock := s.threadLocks.Lock(string(t) + ":" + id.Hex())
	defer unlock()
	r, err := s.load(ctx, t, id)
	if err != nil {
		return nil, err
	}
	owner := isOwner(actor, r)
	if !owner && !canManage(actor, t) {
		return nil, ErrForbidden
	}

	now := nextMessageTime(r.Messages, s.Now())
	msg := models.Message{
		Message:   text,
		IsAdmin:   !owner,
		UserName:  actor.Name,
		Timestamp: now,
	}
	var event *models.OutboxEvent
	if msg.IsAdmin {
		event = &models.OutboxEvent{
			ID:          bson.NewObjectID(),
			Kind:        models.OutboxAdminMessage,
			RequestID:   r.Id,
			RequestType: r.Type,
			Recipient:   r.UserEmail,
			Title:       "Nova mensagem",
			Message:     fmt.Sprintf("%s respondeu em %s.", actor.Name, r.Title()),
			Link:        requestLink(r),
			CreatedAt:   now,
		}
	}
	if err := s.Requests.AppendMessage(ctx, t, id, msg, event); err != nil {
		return nil, fromRepo(err)
	}
	return &msg, nil
}

// nextMessageTime truncates now to the millisecond and moves it past the
// last message, so each message in a thread has its own viewed key.
func nextMessageTime(thread []models.Message, now time.Time) time.Time {
	now = now.UTC().Truncate(time.Millisecond)
	if n := len(thread); n > 0 {
		last := thread[n-1].Timestamp.UTC().Truncate(time.Millisecond)
		if !now.After(last) {
			now = last.Add(time.Millisecond)
		}
	}
	return now
}

func (s *RequestService) SetHidden(ctx context.Context, actor models.Actor, t models.RequestType, id bson.ObjectID, hidden bool) error {
	if !canManage(actor, t) {
		return ErrForbidden
	}
	return fromRepo(s.Requests.SetHidden(ctx, t, id, hidden, s.Now().UTC()))
}

func (s *RequestService) Delete(ctx context.Context, actor models.Actor, t models.RequestType, id bson.ObjectID) error {
	if !canManage(actor, t) && !actor.Can(models.FeatureDeleteRequests) {
		return ErrForbidden
	}
	if err := s.Requests.Delete(ctx, t, id); err != nil {
		return fromRepo(err)
	}
	s.Log.Info().Str("type", string(t)).Str("id", id.Hex()).Str("by", actor.Email).Msg("request deleted")
	return nil
}
