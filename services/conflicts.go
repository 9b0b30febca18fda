package services

import (
	"context"
	"sort"

	"github.com/princinho/escolaportal/models"
	"github.com/princinho/escolaportal/repository"
	"github.com/princinho/escolaportal/utils"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Conflict is one (equipment, existing reservation) pair overlapping a candidate.
type Conflict struct {
	EquipmentID   string `json:"equipmentId"`
	EquipmentName string `json:"equipmentName"`
	ReservationID string `json:"reservationId"`
	Date          string `json:"date"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
	UserName      string `json:"userName"`
}

type ReservationCandidate struct {
	Date         string
	StartTime    string
	EndTime      string
	EquipmentIDs []string
	// ExcludeID skips the reservation being edited, if any.
	ExcludeID bson.ObjectID
}

// Overlaps is the half-open interval test: [aStart,aEnd) meets [bStart,bEnd).
func Overlaps(aStart, aEnd, bStart, bEnd int) bool {
	return aStart < bEnd && bStart < aEnd
}

type ConflictChecker struct {
	Requests  repository.RequestRepository
	Equipment repository.EquipmentRepository
}

func NewConflictChecker(requests repository.RequestRepository, equipment repository.EquipmentRepository) *ConflictChecker {
	return &ConflictChecker{Requests: requests, Equipment: equipment}
}

func validateSlot(v *ValidationError, date, start, end string) (int, int) {
	if _, err := utils.ParseDate(date); err != nil {
		v.add("date", err.Error())
	}
	s, errS := utils.MinutesOfDay(start)
	if errS != nil {
		v.add("startTime", errS.Error())
	}
	e, errE := utils.MinutesOfDay(end)
	if errE != nil {
		v.add("endTime", errE.Error())
	}
	if errS == nil && errE == nil && s >= e {
		v.add("endTime", "must be after startTime")
	}
	return s, e
}

// CheckConflicts reports every overlap between the candidate and existing
// reservations on the same date that share at least one equipment id.
func (c *ConflictChecker) CheckConflicts(ctx context.Context, cand ReservationCandidate) ([]Conflict, error) {
	v := &ValidationError{}
	start, end := validateSlot(v, cand.Date, cand.StartTime, cand.EndTime)
	equipmentIDs := utils.UniqueStrings(cand.EquipmentIDs)
	if len(equipmentIDs) == 0 {
		v.add("equipmentIds", "at least one equipment is required")
	}
	if err := v.errOrNil(); err != nil {
		return nil, err
	}

	existing, err := c.Requests.Find(ctx, models.RequestTypeReservation, repository.RequestFilter{
		Date:         cand.Date,
		EquipmentIDs: equipmentIDs,
		// canceled and rejected bookings no longer hold their equipment
		ExcludeStatuses: []models.RequestStatus{models.StatusCanceled, models.StatusRejected},
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(existing, func(i, j int) bool { return existing[i].StartTime < existing[j].StartTime })

	conflicts := make([]Conflict, 0)
	for _, r := range existing {
		if !cand.ExcludeID.IsZero() && r.Id == cand.ExcludeID {
			continue
		}
		shared := utils.IntersectStrings(equipmentIDs, r.EquipmentIDs)
		if len(shared) == 0 {
			continue
		}
		rs, errS := utils.MinutesOfDay(r.StartTime)
		re, errE := utils.MinutesOfDay(r.EndTime)
		if errS != nil || errE != nil {
			continue
		}
		if !Overlaps(rs, re, start, end) {
			continue
		}
		for _, id := range shared {
			conflicts = append(conflicts, Conflict{
				EquipmentID:   id,
				ReservationID: r.Id.Hex(),
				Date:          r.Date,
				StartTime:     r.StartTime,
				EndTime:       r.EndTime,
				UserName:      r.UserName,
			})
		}
	}
	if len(conflicts) == 0 {
		return conflicts, nil
	}

	names, err := c.equipmentNames(ctx, conflicts)
	if err != nil {
		return nil, err
	}
	for i := range conflicts {
		if name, ok := names[conflicts[i].EquipmentID]; ok {
			conflicts[i].EquipmentName = name
		} else {
			conflicts[i].EquipmentName = conflicts[i].EquipmentID
		}
	}
	return conflicts, nil
}

func (c *ConflictChecker) equipmentNames(ctx context.Context, conflicts []Conflict) (map[string]string, error) {
	ids := make([]bson.ObjectID, 0, len(conflicts))
	for _, cf := range conflicts {
		if oid, err := bson.ObjectIDFromHex(cf.EquipmentID); err == nil {
			ids = append(ids, oid)
		}
	}
	names := make(map[string]string, len(ids))
	if c.Equipment == nil || len(ids) == 0 {
		return names, nil
	}
	items, err := c.Equipment.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, e := range items {
		names[e.ID.Hex()] = e.Name
	}
	return names, nil
}
