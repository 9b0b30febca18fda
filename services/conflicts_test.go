package services

import (
	"context"
	"testing"

	"github.com/princinho/escolaportal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOverlaps(t *testing.T) {
	cases := []struct {
		name                 string
		aStart, aEnd, bStart int
		bEnd                 int
		want                 bool
	}{
		{"partial overlap", 540, 600, 570, 630, true},
		{"back to back", 540, 600, 600, 660, false},
		{"contained", 540, 720, 600, 630, true},
		{"identical", 540, 600, 540, 600, true},
		{"disjoint", 540, 600, 700, 760, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd))
			// symmetric in its arguments
			assert.Equal(t, tc.want, Overlaps(tc.bStart, tc.bEnd, tc.aStart, tc.aEnd))
		})
	}
}

func TestCheckConflicts_OverlapNamesEquipmentAndRange(t *testing.T) {
	f := newFixture(t)
	f.openDates(t, "2025-06-01")
	e1 := f.addEquipment(t, "E1", "iPad", true)

	_, err := f.reserve(t, ana, "2025-06-01", "09:00", "10:00", e1)
	require.NoError(t, err)

	_, err = f.reserve(t, bruno, "2025-06-01", "09:30", "10:30", e1)
	require.ErrorIs(t, err, ErrReservationConflict)

	var cerr *ConflictError
	require.ErrorAs(t, err, &cerr)
	require.Len(t, cerr.Conflicts, 1)
	c := cerr.Conflicts[0]
	assert.Equal(t, e1.ID.Hex(), c.EquipmentID)
	assert.Equal(t, "E1", c.EquipmentName)
	assert.Equal(t, "09:00", c.StartTime)
	assert.Equal(t, "10:00", c.EndTime)
	assert.Equal(t, "Ana", c.UserName)
}

func TestCheckConflicts_BackToBackAllowed(t *testing.T) {
	f := newFixture(t)
	f.openDates(t, "2025-06-01")
	e1 := f.addEquipment(t, "E1", "iPad", true)

	_, err := f.reserve(t, ana, "2025-06-01", "09:00", "10:00", e1)
	require.NoError(t, err)
	_, err = f.reserve(t, bruno, "2025-06-01", "10:00", "11:00", e1)
	require.NoError(t, err)
	_, err = f.reserve(t, bruno, "2025-06-01", "08:00", "09:00", e1)
	require.NoError(t, err)
}

func TestCheckConflicts_Symmetric(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.openDates(t, "2025-06-01")
	e1 := f.addEquipment(t, "E1", "iPad", true)
	e2 := f.addEquipment(t, "E2", "Chromebook", true)

	a := ReservationCandidate{Date: "2025-06-01", StartTime: "09:00", EndTime: "10:00", EquipmentIDs: []string{e1.ID.Hex(), e2.ID.Hex()}}
	b := ReservationCandidate{Date: "2025-06-01", StartTime: "09:45", EndTime: "11:00", EquipmentIDs: []string{e2.ID.Hex()}}

	_, err := f.reserve(t, ana, a.Date, a.StartTime, a.EndTime, e1, e2)
	require.NoError(t, err)
	ab, err := f.requests.Conflicts.CheckConflicts(ctx, b)
	require.NoError(t, err)

	// swap which one is stored
	g := newFixture(t)
	g.openDates(t, "2025-06-01")
	require.NoError(t, g.store.Equipment.Insert(ctx, e1))
	require.NoError(t, g.store.Equipment.Insert(ctx, e2))
	_, err = g.reserve(t, bruno, b.Date, b.StartTime, b.EndTime, e2)
	require.NoError(t, err)
	ba, err := g.requests.Conflicts.CheckConflicts(ctx, a)
	require.NoError(t, err)

	assert.Equal(t, len(ab) > 0, len(ba) > 0)
	assert.Len(t, ab, 1)
	assert.Len(t, ba, 1)
}

func TestCheckConflicts_ReportsEverySharedEquipment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.openDates(t, "2025-06-01")
	e1 := f.addEquipment(t, "E1", "iPad", true)
	e2 := f.addEquipment(t, "E2", "iPad", true)
	e3 := f.addEquipment(t, "E3", "iPad", true)

	_, err := f.reserve(t, ana, "2025-06-01", "09:00", "10:00", e1, e2)
	require.NoError(t, err)
	_, err = f.reserve(t, bruno, "2025-06-01", "09:30", "11:00", e3)
	require.NoError(t, err)

	got, err := f.requests.Conflicts.CheckConflicts(ctx, ReservationCandidate{
		Date: "2025-06-01", StartTime: "09:15", EndTime: "09:45",
		EquipmentIDs: []string{e1.ID.Hex(), e2.ID.Hex(), e3.ID.Hex()},
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	names := []string{got[0].EquipmentName, got[1].EquipmentName, got[2].EquipmentName}
	assert.ElementsMatch(t, []string{"E1", "E2", "E3"}, names)
}

func TestCheckConflicts_IgnoresOtherEquipmentDatesAndCanceled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.openDates(t, "2025-06-01", "2025-06-02")
	e1 := f.addEquipment(t, "E1", "iPad", true)
	e2 := f.addEquipment(t, "E2", "iPad", true)

	_, err := f.reserve(t, ana, "2025-06-01", "09:00", "10:00", e2)
	require.NoError(t, err)
	_, err = f.reserve(t, ana, "2025-06-02", "09:00", "10:00", e1)
	require.NoError(t, err)
	canceled, err := f.reserve(t, ana, "2025-06-01", "09:00", "10:00", e1)
	require.NoError(t, err)
	_, err = f.requests.Cancel(ctx, ana, models.RequestTypeReservation, canceled.Id)
	require.NoError(t, err)

	got, err := f.requests.Conflicts.CheckConflicts(ctx, ReservationCandidate{
		Date: "2025-06-01", StartTime: "09:00", EndTime: "10:00", EquipmentIDs: []string{e1.ID.Hex()},
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCheckConflicts_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.requests.Conflicts.CheckConflicts(context.Background(), ReservationCandidate{
		Date: "01/06/2025", StartTime: "10:00", EndTime: "09:00",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	fields := map[string]bool{}
	for _, fe := range verr.Fields {
		fields[fe.Field] = true
	}
	assert.True(t, fields["date"])
	assert.True(t, fields["endTime"])
	assert.True(t, fields["equipmentIds"])
}
