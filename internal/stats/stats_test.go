package stats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anvarDev14/davomatoriental/internal/model"
	"github.com/anvarDev14/davomatoriental/internal/repository"
)

type fakeStore struct {
	closedTotal      int
	closedBySubject  map[int64]int
	counts           map[model.AttendanceStatus]int
	countsPerSubject map[int64]map[model.AttendanceStatus]int
	subjects         []model.Subject
}

func (f *fakeStore) CountClosedLessonsForGroup(context.Context, int64, time.Time) (int, error) {
	return f.closedTotal, nil
}

func (f *fakeStore) CountClosedLessonsForGroupBySubject(context.Context, int64, time.Time) (map[int64]int, error) {
	return f.closedBySubject, nil
}

func (f *fakeStore) CountAttendanceByStatus(context.Context, int64, time.Time) (map[model.AttendanceStatus]int, error) {
	return f.counts, nil
}

func (f *fakeStore) CountAttendanceByStatusPerSubject(context.Context, int64, time.Time) (map[int64]map[model.AttendanceStatus]int, error) {
	return f.countsPerSubject, nil
}

func (f *fakeStore) ListSubjects(context.Context) ([]model.Subject, error) {
	return f.subjects, nil
}

func (f *fakeStore) PlatformTotals(context.Context, time.Time) (repository.PlatformTotals, error) {
	return repository.PlatformTotals{}, nil
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 0, Percentage(0, 0))
	assert.Equal(t, 0, Percentage(5, 0))
	assert.Equal(t, 100, Percentage(10, 10))
	assert.Equal(t, 50, Percentage(1, 2))
	// Rounds half up.
	assert.Equal(t, 67, Percentage(2, 3))
	assert.Equal(t, 33, Percentage(1, 3))
	assert.Equal(t, 88, Percentage(7, 8))
}

func TestStudentOverviewCountsUnmarkedAsMissed(t *testing.T) {
	store := &fakeStore{
		closedTotal: 10,
		counts: map[model.AttendanceStatus]int{
			model.AttendancePresent: 5,
			model.AttendanceLate:    2,
			model.AttendanceAbsent:  1,
			// 2 closed lessons have no record at all.
		},
	}
	agg := NewAggregator(store, false)

	o, err := agg.StudentOverview(context.Background(), model.StudentProfile{ID: 1, GroupID: 3})
	require.NoError(t, err)
	assert.Equal(t, 10, o.TotalLessons)
	assert.Equal(t, 7, o.Attended)
	assert.Equal(t, 5, o.Present)
	assert.Equal(t, 2, o.Late)
	assert.Equal(t, 1, o.Absent)
	assert.Equal(t, 70, o.Percentage)
}

func TestStudentOverviewExcusedPolicy(t *testing.T) {
	store := &fakeStore{
		closedTotal: 4,
		counts: map[model.AttendanceStatus]int{
			model.AttendancePresent: 2,
			model.AttendanceExcused: 1,
		},
	}

	strict, err := NewAggregator(store, false).StudentOverview(context.Background(), model.StudentProfile{})
	require.NoError(t, err)
	assert.Equal(t, 2, strict.Attended)
	assert.Equal(t, 50, strict.Percentage)

	lenient, err := NewAggregator(store, true).StudentOverview(context.Background(), model.StudentProfile{})
	require.NoError(t, err)
	assert.Equal(t, 3, lenient.Attended)
	assert.Equal(t, 75, lenient.Percentage)
}

func TestStudentSubjectsSkipsSubjectsWithoutLessons(t *testing.T) {
	store := &fakeStore{
		closedBySubject: map[int64]int{4: 3},
		countsPerSubject: map[int64]map[model.AttendanceStatus]int{
			4: {model.AttendancePresent: 2},
		},
		subjects: []model.Subject{
			{ID: 4, Name: "Algorithms"},
			{ID: 5, Name: "Databases"},
		},
	}
	agg := NewAggregator(store, false)

	out, err := agg.StudentSubjects(context.Background(), model.StudentProfile{ID: 1, GroupID: 3})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Algorithms", out[0].SubjectName)
	assert.Equal(t, 3, out[0].TotalLessons)
	assert.Equal(t, 2, out[0].Attended)
	assert.Equal(t, 67, out[0].Percentage)
}
