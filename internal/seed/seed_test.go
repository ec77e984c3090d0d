package seed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medlink-server/internal/chat"
	"medlink-server/internal/logger"
	"medlink-server/internal/models"
	"medlink-server/internal/scheduling"
	"medlink-server/internal/testutil"
)

func TestRun(t *testing.T) {
	db := testutil.NewDB(t)
	log := logger.Discard()
	svc := scheduling.NewService(scheduling.NewGormStore(db), nil, nil, log)
	chatSvc := chat.NewService(db, nil)
	ctx := context.Background()

	res, err := Run(ctx, db, svc, chatSvc, log, time.Now())
	require.NoError(t, err)

	assert.Len(t, res.Users, len(demoUsers))
	assert.Len(t, res.Requests, 3)
	require.Len(t, res.Appointments, 2)
	assert.NotNil(t, res.Thread)

	var specs int64
	require.NoError(t, db.Model(&models.Specialization{}).Count(&specs).Error)
	assert.EqualValues(t, len(specializations), specs)

	var doctorProfiles int64
	require.NoError(t, db.Model(&models.DoctorProfile{}).Count(&doctorProfiles).Error)
	assert.EqualValues(t, 2, doctorProfiles)

	var accepted int64
	require.NoError(t, db.Model(&models.AppointmentRequest{}).Where("status = ?", models.RequestAccepted).Count(&accepted).Error)
	assert.EqualValues(t, 2, accepted)

	// The two seeded appointments share a doctor and a day but not a slot.
	first, second := res.Appointments[0], res.Appointments[1]
	assert.False(t, scheduling.Overlaps(
		first.ScheduledTime, time.Duration(first.DurationMinutes)*time.Minute,
		second.ScheduledTime, time.Duration(second.DurationMinutes)*time.Minute,
	))

	admin := res.Users["admin"]
	assert.True(t, admin.CheckPassword(DemoPassword))
}

func TestRun_RefusesToRunTwice(t *testing.T) {
	db := testutil.NewDB(t)
	log := logger.Discard()
	svc := scheduling.NewService(scheduling.NewGormStore(db), nil, nil, log)
	chatSvc := chat.NewService(db, nil)
	ctx := context.Background()

	_, err := Run(ctx, db, svc, chatSvc, log, time.Now())
	require.NoError(t, err)

	_, err = Run(ctx, db, svc, chatSvc, log, time.Now())
	assert.EqualError(t, err, "demo data already present")
}
