package service

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-bot/internal/repository/repotest"
	appErrors "github.com/noah-isme/attendance-bot/pkg/errors"
)

func TestAttendanceToggleTwiceRestoresState(t *testing.T) {
	ctx := context.Background()
	store := repotest.New()
	alice := store.SeedTeacher("Alice", 111, false)
	sam := store.SeedStudent("Sam", alice.ID)
	store.SeedStudent("Lee", alice.ID)
	metrics := NewMetricsService()
	svc := NewAttendanceService(store.Attendance, store.Students, metrics, nil)

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	ws, students, err := svc.Open(ctx, alice.ID, day)
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Zero(t, ws.Len())

	_, err = svc.Toggle(ctx, alice.ID, ws, sam.ID)
	require.NoError(t, err)
	assert.True(t, ws.Has(sam.ID))
	assert.Len(t, store.Entries(sam.ID), 1)

	_, err = svc.Toggle(ctx, alice.ID, ws, sam.ID)
	require.NoError(t, err)
	assert.False(t, ws.Has(sam.ID))
	assert.Empty(t, store.Entries(sam.ID))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.toggles.WithLabelValues(DirectionPresent)))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.toggles.WithLabelValues(DirectionAbsent)))
}

func TestAttendanceOpenSeedsFromStore(t *testing.T) {
	ctx := context.Background()
	store := repotest.New()
	alice := store.SeedTeacher("Alice", 111, false)
	sam := store.SeedStudent("Sam", alice.ID)
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store.SeedPresent(sam.ID, day)
	svc := NewAttendanceService(store.Attendance, store.Students, nil, nil)

	ws, _, err := svc.Open(ctx, alice.ID, day)
	require.NoError(t, err)
	assert.True(t, ws.Has(sam.ID))

	_, err = svc.Toggle(ctx, alice.ID, ws, sam.ID)
	require.NoError(t, err)
	assert.Empty(t, store.Entries(sam.ID))
}

func TestAttendanceOpenWithoutStudents(t *testing.T) {
	store := repotest.New()
	alice := store.SeedTeacher("Alice", 111, false)
	svc := NewAttendanceService(store.Attendance, store.Students, nil, nil)

	ws, students, err := svc.Open(context.Background(), alice.ID, time.Now())
	require.NoError(t, err)
	assert.Nil(t, ws)
	assert.Empty(t, students)
}

func TestAttendanceToggleForeignStudent(t *testing.T) {
	ctx := context.Background()
	store := repotest.New()
	alice := store.SeedTeacher("Alice", 111, false)
	bob := store.SeedTeacher("Bob", 222, false)
	store.SeedStudent("Sam", alice.ID)
	mia := store.SeedStudent("Mia", bob.ID)
	svc := NewAttendanceService(store.Attendance, store.Students, nil, nil)

	ws, _, err := svc.Open(ctx, alice.ID, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	_, err = svc.Toggle(ctx, alice.ID, ws, mia.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Zero(t, store.AttendanceCount())
}

func TestAttendanceSummarize(t *testing.T) {
	ctx := context.Background()
	store := repotest.New()
	alice := store.SeedTeacher("Alice", 111, false)
	sam := store.SeedStudent("Sam", alice.ID)
	store.SeedStudent("Lee", alice.ID)
	svc := NewAttendanceService(store.Attendance, store.Students, nil, nil)

	ws, _, err := svc.Open(ctx, alice.ID, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = svc.Toggle(ctx, alice.ID, ws, sam.ID)
	require.NoError(t, err)

	summary, err := svc.Summarize(ctx, alice.ID, ws)
	require.NoError(t, err)
	require.Len(t, summary.Present, 1)
	require.Len(t, summary.Absent, 1)
	assert.Equal(t, "Sam", summary.Present[0].Name)
	assert.Equal(t, "Lee", summary.Absent[0].Name)
}
