package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medlink-server/internal/models"
	"medlink-server/internal/testutil"
)

func at(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02T15:04", "2025-03-10T"+hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

func TestOverlaps(t *testing.T) {
	half := 30 * time.Minute

	tests := []struct {
		name   string
		aStart time.Time
		aDur   time.Duration
		bStart time.Time
		bDur   time.Duration
		want   bool
	}{
		{"same slot", at("09:00"), half, at("09:00"), half, true},
		{"partial overlap", at("09:15"), half, at("09:00"), half, true},
		{"contained", at("09:10"), 5 * time.Minute, at("09:00"), time.Hour, true},
		{"adjacent after", at("09:30"), half, at("09:00"), half, false},
		{"adjacent before", at("08:30"), half, at("09:00"), half, false},
		{"disjoint", at("11:00"), half, at("09:00"), half, false},
		{"zero candidate", at("09:10"), 0, at("09:00"), half, false},
		{"zero existing", at("09:00"), half, at("09:10"), 0, false},
		{"negative", at("09:00"), -half, at("09:00"), half, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overlaps(tt.aStart, tt.aDur, tt.bStart, tt.bDur))
			assert.Equal(t, tt.want, Overlaps(tt.bStart, tt.bDur, tt.aStart, tt.aDur), "overlap must be symmetric")
		})
	}
}

func seedAppointment(t *testing.T, store *GormStore, doctorID string, start time.Time, minutes int) *models.Appointment {
	t.Helper()
	apt := &models.Appointment{
		RequestID:       "req-" + start.Format("150405") + "-" + doctorID,
		DoctorID:        doctorID,
		PatientID:       "patient",
		ScheduledTime:   start,
		DurationMinutes: minutes,
		AcceptedByID:    doctorID,
	}
	require.NoError(t, store.CreateAppointment(context.Background(), apt))
	return apt
}

func TestConflictChecker(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewGormStore(db)
	ctx := context.Background()

	existing := seedAppointment(t, store, "doc-1", at("09:00"), 30)
	seedAppointment(t, store, "doc-2", at("10:00"), 30)
	late := seedAppointment(t, store, "doc-1", at("23:30"), 60)

	cancelled := seedAppointment(t, store, "doc-1", at("14:00"), 30)
	require.NoError(t, store.CancelAppointment(ctx, cancelled.ID, at("08:00")))

	checker := NewConflictChecker(store)

	t.Run("overlap returns the existing appointment", func(t *testing.T) {
		got, err := checker.FindConflict(ctx, "doc-1", at("09:15"), 30, "")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, existing.ID, got.ID)
	})

	t.Run("adjacent slot is free", func(t *testing.T) {
		ok, err := checker.HasConflict(ctx, "doc-1", at("09:30"), 30, "")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("other doctors do not count", func(t *testing.T) {
		ok, err := checker.HasConflict(ctx, "doc-1", at("10:00"), 30, "")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("excluded appointment is ignored", func(t *testing.T) {
		ok, err := checker.HasConflict(ctx, "doc-1", at("09:00"), 30, existing.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("cancelled appointment is ignored", func(t *testing.T) {
		ok, err := checker.HasConflict(ctx, "doc-1", at("14:00"), 30, "")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("zero duration never conflicts", func(t *testing.T) {
		ok, err := checker.HasConflict(ctx, "doc-1", at("09:10"), 0, "")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("interval crossing midnight is found from the next day", func(t *testing.T) {
		got, err := checker.FindConflict(ctx, "doc-1", at("23:30").Add(45*time.Minute), 30, "")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, late.ID, got.ID)
	})
}
