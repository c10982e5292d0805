package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/anvarDev14/davomatoriental/internal/model"
	"github.com/anvarDev14/davomatoriental/internal/repository"
)

// store is the slice of the repository marking needs.
type store interface {
	GetLesson(ctx context.Context, id int64) (model.Lesson, error)
	GetStudentProfileByID(ctx context.Context, studentID int64) (model.StudentProfile, error)
	GetAttendanceRecord(ctx context.Context, lessonID, studentID int64) (model.AttendanceRecord, error)
	InsertAttendanceIfAbsent(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, bool, error)
	UpsertAttendance(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error)
	AttendanceHistory(ctx context.Context, studentID int64, limit int) ([]repository.HistoryItem, error)
}

// policy is the marking-window logic, provided by the lesson service.
type policy interface {
	CanMark(l model.Lesson, now time.Time) bool
	MarkStatus(l model.Lesson, now time.Time) model.AttendanceStatus
}

type Service struct {
	store  store
	policy policy
	now    func() time.Time
}

func NewService(store store, policy policy) *Service {
	return &Service{store: store, policy: policy, now: time.Now}
}

// MarkResult carries the record plus whether this call was a no-op
// against an existing mark.
type MarkResult struct {
	Record        model.AttendanceRecord
	AlreadyMarked bool
}

// SelfMark records the student's own attendance. It is idempotent: a
// repeat call inside the window returns the original record untouched.
func (s *Service) SelfMark(ctx context.Context, student model.StudentProfile, lessonID int64) (MarkResult, error) {
	l, err := s.store.GetLesson(ctx, lessonID)
	if err != nil {
		return MarkResult{}, err
	}
	if l.GroupID != student.GroupID {
		return MarkResult{}, model.ErrNotInGroup
	}
	now := s.now()
	if !s.policy.CanMark(l, now) {
		if l.Status == model.LessonClosed {
			return MarkResult{}, model.ErrLessonClosed
		}
		return MarkResult{}, model.ErrLessonNotOpen
	}

	rec, created, err := s.store.InsertAttendanceIfAbsent(ctx, model.AttendanceRecord{
		LessonID:  lessonID,
		StudentID: student.ID,
		Status:    s.policy.MarkStatus(l, now),
		MarkedAt:  now.UTC(),
		MarkedBy:  model.MarkedBySelf,
	})
	if err != nil {
		return MarkResult{}, err
	}
	return MarkResult{Record: rec, AlreadyMarked: !created}, nil
}

// TeacherMark sets or corrects a student's record for the teacher's own
// lesson. It works while the lesson is open or after it closed, accepts
// any status including absent/excused, and overwrites self-marks.
func (s *Service) TeacherMark(ctx context.Context, teacherID, lessonID, studentID int64, status model.AttendanceStatus) (model.AttendanceRecord, error) {
	switch status {
	case model.AttendancePresent, model.AttendanceLate, model.AttendanceAbsent, model.AttendanceExcused:
	default:
		return model.AttendanceRecord{}, model.ErrInvalidStatus
	}

	l, err := s.store.GetLesson(ctx, lessonID)
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	if !l.OwnedBy(teacherID) {
		return model.AttendanceRecord{}, model.ErrNotYourLesson
	}
	if l.Status == model.LessonPending {
		return model.AttendanceRecord{}, model.ErrLessonNotOpen
	}
	student, err := s.store.GetStudentProfileByID(ctx, studentID)
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	if student.GroupID != l.GroupID {
		return model.AttendanceRecord{}, model.ErrNotInGroup
	}

	return s.store.UpsertAttendance(ctx, model.AttendanceRecord{
		LessonID:  lessonID,
		StudentID: studentID,
		Status:    status,
		MarkedAt:  s.now().UTC(),
		MarkedBy:  model.MarkedByTeacher,
	})
}

// History returns the student's most recent records with lesson context.
func (s *Service) History(ctx context.Context, studentID int64, limit int) ([]repository.HistoryItem, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.AttendanceHistory(ctx, studentID, limit)
}

// RecordFor fetches a single record, nil when the student is unmarked.
func (s *Service) RecordFor(ctx context.Context, lessonID, studentID int64) (*model.AttendanceRecord, error) {
	rec, err := s.store.GetAttendanceRecord(ctx, lessonID, studentID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
