package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository"
	"github.com/princinho/escolaportal/storage"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type NoticeInput struct {
	Title string
	Body  string
	Files []storage.Upload
}

type NoticeService struct {
	Repo           repository.NoticeRepository
	Blobs          storage.BlobStore
	Validator      *storage.FileValidator
	MaxAttachments int
	Now            func() time.Time
	Log            zerolog.Logger
}

func NewNoticeService(repo repository.NoticeRepository, blobs storage.BlobStore, validator *storage.FileValidator, maxAttachments int, log zerolog.Logger) *NoticeService {
	if maxAttachments <= 0 {
		maxAttachments = 5
	}
	return &NoticeService{
		Repo:           repo,
		Blobs:          blobs,
		Validator:      validator,
		MaxAttachments: maxAttachments,
		Now:            time.Now,
		Log:            log,
	}
}

// Create uploads the attachments under avisos/{id}/ and stores the notice.
// Uploaded objects are removed again if any later step fails.
func (s *NoticeService) Create(ctx context.Context, actor models.Actor, in NoticeInput) (*models.Notice, error) {
	if !actor.Can(models.FeatureManageNotices) {
		return nil, ErrForbidden
	}
	v := &ValidationError{}
	title := strings.TrimSpace(in.Title)
	body := strings.TrimSpace(in.Body)
	if title == "" {
		v.add("title", "required")
	}
	if body == "" {
		v.add("body", "required")
	}
	if len(in.Files) > s.MaxAttachments {
		v.add("files", fmt.Sprintf("at most %d attachments", s.MaxAttachments))
	}
	if len(in.Files) > 0 && s.Blobs == nil {
		return nil, ErrBlobStoreDisabled
	}
	for i := range in.Files {
		if s.Validator == nil {
			break
		}
		if err := s.Validator.Validate(&in.Files[i]); err != nil {
			v.add("files", err.Error())
		}
	}
	if err := v.errOrNil(); err != nil {
		return nil, err
	}

	now := s.Now().UTC()
	n := &models.Notice{
		ID:          bson.NewObjectID(),
		Title:       title,
		Body:        body,
		Attachments: make([]models.NoticeAttachment, 0, len(in.Files)),
		AuthorEmail: actor.Email,
		CreatedAt:   now,
	}
	uploaded := make([]string, 0, len(in.Files))
	cleanup := func() {
		if len(uploaded) == 0 {
			return
		}
		if err := s.Blobs.Delete(context.WithoutCancel(ctx), uploaded); err != nil {
			s.Log.Error().Err(err).Str("notice", n.ID.Hex()).Msg("attachment cleanup failed")
		}
	}

	for _, f := range in.Files {
		object := storage.NoticeObjectName(n.ID.Hex(), f.FileName)
		url, err := s.Blobs.Put(ctx, object, f)
		if err != nil {
			cleanup()
			return nil, err
		}
		uploaded = append(uploaded, object)
		n.Attachments = append(n.Attachments, models.NoticeAttachment{
			PublicURL:  url,
			ObjectName: object,
			MimeType:   f.ContentType,
			SizeBytes:  f.Size,
			FileName:   f.FileName,
			UploadedAt: now,
		})
	}

	if err := s.Repo.Insert(ctx, n); err != nil {
		cleanup()
		return nil, err
	}
	s.Log.Info().Str("notice", n.ID.Hex()).Int("attachments", len(n.Attachments)).Msg("notice posted")
	return n, nil
}

func (s *NoticeService) List(ctx context.Context, limit int) ([]models.Notice, error) {
	return s.Repo.List(ctx, limit)
}

// Delete removes the notice, then its attachments. A blob that cannot be
// removed is logged and left behind.
func (s *NoticeService) Delete(ctx context.Context, actor models.Actor, id bson.ObjectID) error {
	if !actor.Can(models.FeatureManageNotices) {
		return ErrForbidden
	}
	n, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return fromRepo(err)
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		return fromRepo(err)
	}
	if s.Blobs == nil || len(n.Attachments) == 0 {
		return nil
	}
	objects := make([]string, 0, len(n.Attachments))
	for _, a := range n.Attachments {
		objects = append(objects, a.ObjectName)
	}
	if err := s.Blobs.Delete(ctx, objects); err != nil {
		s.Log.Error().Err(err).Str("notice", id.Hex()).Msg("failed to delete notice attachments")
	}
	return nil
}

// Subscribe streams board changes until ctx is done.
func (s *NoticeService) Subscribe(ctx context.Context) (<-chan models.NoticeEvent, error) {
	return s.Repo.Watch(ctx)
}
