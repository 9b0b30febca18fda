package services

import (
	"context"
	"sort"
	"time"

	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository"
	"github.com/princinho/escolaportal/utils"
	"github.com/rs/zerolog"
)

type AvailabilityService struct {
	Repo repository.AvailabilityRepository
	Loc  *time.Location
	Now  func() time.Time
	Log  zerolog.Logger
}

func NewAvailabilityService(repo repository.AvailabilityRepository, loc *time.Location, log zerolog.Logger) *AvailabilityService {
	if loc == nil {
		loc = time.UTC
	}
	return &AvailabilityService{Repo: repo, Loc: loc, Now: time.Now, Log: log}
}

func (s *AvailabilityService) today() string {
	return utils.Today(s.Now(), s.Loc)
}

// GetAvailableDates prunes every stored date before today, then lists the rest.
func (s *AvailabilityService) GetAvailableDates(ctx context.Context) ([]string, error) {
	today := s.today()
	removed, err := s.Repo.RemoveBefore(ctx, today)
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		s.Log.Info().Int64("removed", removed).Str("today", today).Msg("pruned past available dates")
	}
	stored, err := s.Repo.List(ctx)
	if err != nil {
		return nil, err
	}
	dates := make([]string, 0, len(stored))
	for _, d := range stored {
		// a concurrent AddDates may have slipped a past date in after the prune
		if d.Date >= today {
			dates = append(dates, d.Date)
		}
	}
	sort.Strings(dates)
	return dates, nil
}

func (s *AvailabilityService) normalizeDates(dates []string, rejectPast bool) ([]string, error) {
	v := &ValidationError{}
	dates = utils.UniqueStrings(dates)
	if len(dates) == 0 {
		v.add("dates", "at least one date is required")
	}
	today := s.today()
	for _, d := range dates {
		if _, err := utils.ParseDate(d); err != nil {
			v.add("dates", err.Error())
			continue
		}
		if rejectPast && d < today {
			v.add("dates", d+" is in the past")
		}
	}
	return dates, v.errOrNil()
}

// AddDates opens dates for reservation and returns how many were new.
func (s *AvailabilityService) AddDates(ctx context.Context, actor models.Actor, dates []string) (int, error) {
	if !actor.Can(models.FeatureManageDates) {
		return 0, ErrForbidden
	}
	dates, err := s.normalizeDates(dates, true)
	if err != nil {
		return 0, err
	}
	return s.Repo.AddMany(ctx, dates, s.Now().UTC())
}

func (s *AvailabilityService) RemoveDates(ctx context.Context, actor models.Actor, dates []string) (int64, error) {
	if !actor.Can(models.FeatureManageDates) {
		return 0, ErrForbidden
	}
	dates, err := s.normalizeDates(dates, false)
	if err != nil {
		return 0, err
	}
	return s.Repo.RemoveMany(ctx, dates)
}

// IsInPast reports whether date lies strictly before today.
func (s *AvailabilityService) IsInPast(date string) (bool, error) {
	if _, err := utils.ParseDate(date); err != nil {
		return false, err
	}
	return date < s.today(), nil
}

func (s *AvailabilityService) IsAvailable(ctx context.Context, date string) (bool, error) {
	past, err := s.IsInPast(date)
	if err != nil || past {
		return false, err
	}
	return s.Repo.Exists(ctx, date)
}
