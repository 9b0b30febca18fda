package services

import (
	"context"
	"strings"
	"time"

	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository"
	"github.com/princinho/escolaportal/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type EquipmentService struct {
	Repo repository.EquipmentRepository
	Now  func() time.Time
}

func NewEquipmentService(repo repository.EquipmentRepository) *EquipmentService {
	return &EquipmentService{Repo: repo, Now: time.Now}
}

type EquipmentInput struct {
	Name                      string
	Type                      string
	IsAvailableForReservation bool
}

type EquipmentPatch struct {
	Name                      *string
	Type                      *string
	IsAvailableForReservation *bool
}

// KindCounts tallies the two device kinds tracked on the dashboard.
type KindCounts struct {
	IPads       int `json:"ipads"`
	Chromebooks int `json:"chromebooks"`
	Other       int `json:"other"`
}

func (s *EquipmentService) List(ctx context.Context, onlyReservable bool) ([]models.Equipment, error) {
	return s.Repo.List(ctx, onlyReservable)
}

func (s *EquipmentService) Get(ctx context.Context, id bson.ObjectID) (*models.Equipment, error) {
	e, err := s.Repo.FindByID(ctx, id)
	return e, fromRepo(err)
}

func (s *EquipmentService) Create(ctx context.Context, actor models.Actor, in EquipmentInput) (*models.Equipment, error) {
	if !actor.Can(models.FeatureManageEquipment) {
		return nil, ErrForbidden
	}
	v := &ValidationError{}
	name := strings.TrimSpace(in.Name)
	kind := strings.TrimSpace(in.Type)
	if name == "" {
		v.add("name", "required")
	}
	if kind == "" {
		v.add("type", "required")
	}
	if err := v.errOrNil(); err != nil {
		return nil, err
	}
	now := s.Now().UTC()
	e := &models.Equipment{
		ID:                        bson.NewObjectID(),
		Name:                      name,
		Type:                      kind,
		IsAvailableForReservation: in.IsAvailableForReservation,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	if err := s.Repo.Insert(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *EquipmentService) Update(ctx context.Context, actor models.Actor, id bson.ObjectID, p EquipmentPatch) (*models.Equipment, error) {
	if !actor.Can(models.FeatureManageEquipment) {
		return nil, ErrForbidden
	}
	v := &ValidationError{}
	if p.Name != nil {
		trimmed := strings.TrimSpace(*p.Name)
		if trimmed == "" {
			v.add("name", "must not be empty")
		}
		p.Name = &trimmed
	}
	if p.Type != nil {
		trimmed := strings.TrimSpace(*p.Type)
		if trimmed == "" {
			v.add("type", "must not be empty")
		}
		p.Type = &trimmed
	}
	if err := v.errOrNil(); err != nil {
		return nil, err
	}
	err := s.Repo.Update(ctx, id, repository.EquipmentUpdate{
		Name:                      p.Name,
		Type:                      p.Type,
		IsAvailableForReservation: p.IsAvailableForReservation,
		At:                        s.Now().UTC(),
	})
	if err != nil {
		return nil, fromRepo(err)
	}
	return s.Get(ctx, id)
}

func (s *EquipmentService) Delete(ctx context.Context, actor models.Actor, id bson.ObjectID) error {
	if !actor.Can(models.FeatureManageEquipment) {
		return ErrForbidden
	}
	return fromRepo(s.Repo.Delete(ctx, id))
}

func (s *EquipmentService) DeleteMany(ctx context.Context, actor models.Actor, ids []bson.ObjectID) (int64, error) {
	if !actor.Can(models.FeatureManageEquipment) {
		return 0, ErrForbidden
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return s.Repo.DeleteMany(ctx, ids)
}

// KindOf folds a free-text equipment type into "ipad", "chromebook" or "".
func KindOf(equipmentType string) string {
	folded := utils.Fold(equipmentType)
	switch {
	case strings.Contains(folded, "ipad"):
		return "ipad"
	case strings.Contains(folded, "chromebook"):
		return "chromebook"
	}
	return ""
}

func (s *EquipmentService) CountByKind(ctx context.Context) (KindCounts, error) {
	items, err := s.Repo.List(ctx, false)
	if err != nil {
		return KindCounts{}, err
	}
	var c KindCounts
	for _, e := range items {
		switch KindOf(e.Type) {
		case "ipad":
			c.IPads++
		case "chromebook":
			c.Chromebooks++
		default:
			c.Other++
		}
	}
	return c, nil
}
