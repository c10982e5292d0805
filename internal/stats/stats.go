package stats

import (
	"context"
	"time"

	"github.com/anvarDev14/davomatoriental/internal/model"
	"github.com/anvarDev14/davomatoriental/internal/repository"
)

// store is the slice of the repository aggregation reads from.
type store interface {
	CountClosedLessonsForGroup(ctx context.Context, groupID int64, since time.Time) (int, error)
	CountClosedLessonsForGroupBySubject(ctx context.Context, groupID int64, since time.Time) (map[int64]int, error)
	CountAttendanceByStatus(ctx context.Context, studentID int64, since time.Time) (map[model.AttendanceStatus]int, error)
	CountAttendanceByStatusPerSubject(ctx context.Context, studentID int64, since time.Time) (map[int64]map[model.AttendanceStatus]int, error)
	ListSubjects(ctx context.Context) ([]model.Subject, error)
	PlatformTotals(ctx context.Context, today time.Time) (repository.PlatformTotals, error)
}

type Aggregator struct {
	store store

	// Whether excused absences count toward the attended numerator.
	countExcused bool
}

func NewAggregator(store store, countExcused bool) *Aggregator {
	return &Aggregator{store: store, countExcused: countExcused}
}

// Overview is a student's attendance summary over all closed lessons of
// their group since enrollment.
type Overview struct {
	TotalLessons int `json:"total_lessons"`
	Attended     int `json:"attended"`
	Present      int `json:"present"`
	Late         int `json:"late"`
	Absent       int `json:"absent"`
	Excused      int `json:"excused"`
	Percentage   int `json:"percentage"`
}

// SubjectOverview is the same summary scoped to one subject.
type SubjectOverview struct {
	SubjectID   int64  `json:"subject_id"`
	SubjectName string `json:"subject_name"`
	Overview
}

func (a *Aggregator) overviewFromCounts(total int, counts map[model.AttendanceStatus]int) Overview {
	o := Overview{
		TotalLessons: total,
		Present:      counts[model.AttendancePresent],
		Late:         counts[model.AttendanceLate],
		Absent:       counts[model.AttendanceAbsent],
		Excused:      counts[model.AttendanceExcused],
	}
	o.Attended = o.Present + o.Late
	if a.countExcused {
		o.Attended += o.Excused
	}
	o.Percentage = Percentage(o.Attended, o.TotalLessons)
	return o
}

// StudentOverview computes the headline numbers. Unmarked closed lessons
// count against the student: the denominator is lessons held, not
// lessons marked.
func (a *Aggregator) StudentOverview(ctx context.Context, student model.StudentProfile) (Overview, error) {
	total, err := a.store.CountClosedLessonsForGroup(ctx, student.GroupID, student.CreatedAt)
	if err != nil {
		return Overview{}, err
	}
	counts, err := a.store.CountAttendanceByStatus(ctx, student.ID, student.CreatedAt)
	if err != nil {
		return Overview{}, err
	}
	return a.overviewFromCounts(total, counts), nil
}

// StudentSubjects computes the per-subject breakdown; subjects with no
// closed lessons for the group are omitted.
func (a *Aggregator) StudentSubjects(ctx context.Context, student model.StudentProfile) ([]SubjectOverview, error) {
	totals, err := a.store.CountClosedLessonsForGroupBySubject(ctx, student.GroupID, student.CreatedAt)
	if err != nil {
		return nil, err
	}
	counts, err := a.store.CountAttendanceByStatusPerSubject(ctx, student.ID, student.CreatedAt)
	if err != nil {
		return nil, err
	}
	subjects, err := a.store.ListSubjects(ctx)
	if err != nil {
		return nil, err
	}

	var out []SubjectOverview
	for _, subject := range subjects {
		total, held := totals[subject.ID]
		if !held {
			continue
		}
		out = append(out, SubjectOverview{
			SubjectID:   subject.ID,
			SubjectName: subject.Name,
			Overview:    a.overviewFromCounts(total, counts[subject.ID]),
		})
	}
	return out, nil
}

// PlatformTotals is the admin dashboard summary.
func (a *Aggregator) PlatformTotals(ctx context.Context, today time.Time) (repository.PlatformTotals, error) {
	return a.store.PlatformTotals(ctx, today)
}

// Percentage computes attended/total as a whole percent, rounding half
// up; zero total is 0, not a division error.
func Percentage(attended, total int) int {
	if total <= 0 {
		return 0
	}
	return (attended*100 + total/2) / total
}
