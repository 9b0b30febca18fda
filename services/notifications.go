package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository"
	"github.com/princinho/escolaportal/utils"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// RetentionMode decides what happens to notifications past a viewer's display limit.
type RetentionMode string

const (
	// RetentionArchive hides the excess for that viewer only.
	RetentionArchive RetentionMode = "archive"
	// RetentionGlobalDelete deletes the excess for every recipient.
	RetentionGlobalDelete RetentionMode = "global-delete"
)

func (m RetentionMode) Valid() bool {
	return m == RetentionArchive || m == RetentionGlobalDelete
}

type NewNotification struct {
	Title      string
	Message    string
	Link       string
	Recipients []string
}

// BatchError reports a CreateBatch that stopped part way.
type BatchError struct {
	Created int
	Err     error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch stopped after %d notifications: %v", e.Created, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

type NotificationService struct {
	Repo         repository.NotificationRepository
	DisplayLimit int
	Retention    RetentionMode
	Now          func() time.Time
	Log          zerolog.Logger
}

func NewNotificationService(repo repository.NotificationRepository, displayLimit int, mode RetentionMode, log zerolog.Logger) *NotificationService {
	if displayLimit <= 0 {
		displayLimit = 5
	}
	if !mode.Valid() {
		mode = RetentionArchive
	}
	return &NotificationService{Repo: repo, DisplayLimit: displayLimit, Retention: mode, Now: time.Now, Log: log}
}

func (s *NotificationService) build(in NewNotification, batch bool) (*models.Notification, error) {
	v := &ValidationError{}
	title := strings.TrimSpace(in.Title)
	message := strings.TrimSpace(in.Message)
	if title == "" {
		v.add("title", "required")
	}
	if message == "" {
		v.add("message", "required")
	}
	recipients := make([]string, 0, len(in.Recipients))
	for _, r := range utils.UniqueStrings(in.Recipients) {
		r = strings.ToLower(strings.TrimSpace(r))
		if r == "" {
			continue
		}
		if !strings.Contains(r, "@") {
			v.add("recipients", "invalid email "+r)
			continue
		}
		recipients = append(recipients, r)
	}
	if err := v.errOrNil(); err != nil {
		return nil, err
	}
	return &models.Notification{
		ID:         bson.NewObjectID(),
		Title:      title,
		Message:    message,
		Link:       strings.TrimSpace(in.Link),
		CreatedAt:  s.Now().UTC(),
		Recipients: recipients,
		ReadBy:     []string{},
		IsBatch:    batch,
	}, nil
}

// Create sends one notification; no recipients means every user sees it.
func (s *NotificationService) Create(ctx context.Context, actor models.Actor, in NewNotification) (*models.Notification, error) {
	if !actor.Can(models.FeatureSendNotifications) {
		return nil, ErrForbidden
	}
	n, err := s.build(in, false)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.Insert(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// CreateBatch writes the notifications one after another. Earlier writes
// stay in place when a later one fails.
func (s *NotificationService) CreateBatch(ctx context.Context, actor models.Actor, ins []NewNotification) ([]models.Notification, error) {
	if !actor.Can(models.FeatureSendNotifications) {
		return nil, ErrForbidden
	}
	built := make([]*models.Notification, 0, len(ins))
	for _, in := range ins {
		n, err := s.build(in, true)
		if err != nil {
			return nil, err
		}
		built = append(built, n)
	}
	created := make([]models.Notification, 0, len(built))
	for _, n := range built {
		if err := s.Repo.Insert(ctx, n); err != nil {
			s.Log.Error().Err(err).Int("created", len(created)).Msg("notification batch stopped")
			return created, &BatchError{Created: len(created), Err: err}
		}
		created = append(created, *n)
	}
	return created, nil
}

// Deliver stores a notification produced by the system rather than a user.
// A notification with the same id already stored counts as delivered.
func (s *NotificationService) Deliver(ctx context.Context, n *models.Notification) error {
	if n.ReadBy == nil {
		n.ReadBy = []string{}
	}
	if n.Recipients == nil {
		n.Recipients = []string{}
	}
	err := s.Repo.Insert(ctx, n)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil
	}
	return err
}

// GetForUser returns the newest notifications visible to email, at most
// DisplayLimit of them, and applies the retention mode to the rest.
func (s *NotificationService) GetForUser(ctx context.Context, email string) ([]models.Notification, error) {
	email = strings.ToLower(email)
	list, err := s.Repo.FindForRecipient(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(list) <= s.DisplayLimit {
		return list, nil
	}

	excess := make([]bson.ObjectID, 0, len(list)-s.DisplayLimit)
	for _, n := range list[s.DisplayLimit:] {
		excess = append(excess, n.ID)
	}
	switch s.Retention {
	case RetentionGlobalDelete:
		deleted, err := s.Repo.DeleteMany(ctx, excess)
		if err != nil {
			s.Log.Error().Err(err).Str("viewer", email).Msg("notification retention delete failed")
		} else {
			s.Log.Warn().Int64("deleted", deleted).Str("viewer", email).Msg("notifications past display limit deleted")
		}
	default:
		if err := s.Repo.ArchiveFor(ctx, excess, email); err != nil {
			s.Log.Error().Err(err).Str("viewer", email).Msg("notification archive failed")
		}
	}
	return list[:s.DisplayLimit], nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, email string) (int, error) {
	list, err := s.GetForUser(ctx, email)
	if err != nil {
		return 0, err
	}
	email = strings.ToLower(email)
	count := 0
	for i := range list {
		if !list[i].IsReadBy(email) {
			count++
		}
	}
	return count, nil
}

func (s *NotificationService) visible(ctx context.Context, id bson.ObjectID, email string) error {
	n, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return fromRepo(err)
	}
	if !n.IsGlobal() && !containsFold(n.Recipients, email) {
		return ErrNotFound
	}
	return nil
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// MarkRead adds email to the notification's readers; repeating it changes nothing.
func (s *NotificationService) MarkRead(ctx context.Context, id bson.ObjectID, email string) error {
	email = strings.ToLower(email)
	if err := s.visible(ctx, id, email); err != nil {
		return err
	}
	return fromRepo(s.Repo.AddReader(ctx, id, email))
}

// MarkAllRead marks ids as read by email. With no ids it marks every
// notification currently visible to email.
func (s *NotificationService) MarkAllRead(ctx context.Context, ids []bson.ObjectID, email string) error {
	email = strings.ToLower(email)
	if len(ids) == 0 {
		list, err := s.Repo.FindForRecipient(ctx, email)
		if err != nil {
			return err
		}
		for _, n := range list {
			ids = append(ids, n.ID)
		}
	} else {
		allowed := make([]bson.ObjectID, 0, len(ids))
		for _, id := range ids {
			if err := s.visible(ctx, id, email); err == nil {
				allowed = append(allowed, id)
			}
		}
		ids = allowed
	}
	if len(ids) == 0 {
		return nil
	}
	return s.Repo.AddReaderMany(ctx, ids, email)
}

func (s *NotificationService) Delete(ctx context.Context, actor models.Actor, id bson.ObjectID) error {
	if !actor.Can(models.FeatureDeleteNotifications) {
		return ErrForbidden
	}
	return fromRepo(s.Repo.Delete(ctx, id))
}
