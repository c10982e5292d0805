package lesson

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anvarDev14/davomatoriental/internal/model"
)

// store is the slice of the repository the lifecycle needs.
type store interface {
	GetLesson(ctx context.Context, id int64) (model.Lesson, error)
	InsertLesson(ctx context.Context, lesson model.Lesson) (model.Lesson, error)
	MaterializeLesson(ctx context.Context, lesson model.Lesson) (model.Lesson, error)
	OpenLesson(ctx context.Context, id int64, openedAt time.Time, openedBy *int64) (bool, error)
	CloseLesson(ctx context.Context, id int64, closedAt time.Time, closedBy *int64) (bool, error)
	DeleteLessonIfPending(ctx context.Context, id int64) (bool, error)
	GetGroup(ctx context.Context, id int64) (model.Group, error)
	GetSubject(ctx context.Context, id int64) (model.Subject, error)
	IsTeacherAssigned(ctx context.Context, teacherID, subjectID int64) (bool, error)
}

// Config is the timing policy the service applies.
type Config struct {
	Location            *time.Location
	MarkWindow          time.Duration
	LateThreshold       time.Duration
	DefaultLessonLength time.Duration
}

type Service struct {
	store store
	cfg   Config
	now   func() time.Time
}

func NewService(store store, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Service{store: store, cfg: cfg, now: time.Now}
}

// Materialize find-or-creates the dated lesson for a schedule entry.
// Absolute times are computed from the entry's minutes-since-midnight in
// the deployment timezone.
func (s *Service) Materialize(ctx context.Context, entry model.ScheduleEntry, date time.Time) (model.Lesson, error) {
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, s.cfg.Location)
	entryID := entry.ID
	return s.store.MaterializeLesson(ctx, model.Lesson{
		ScheduleEntryID: &entryID,
		GroupID:         entry.GroupID,
		SubjectID:       entry.SubjectID,
		TeacherID:       entry.TeacherID,
		Room:            entry.Room,
		Date:            day,
		ScheduledStart:  day.Add(time.Duration(entry.StartMinutes) * time.Minute),
		ScheduledEnd:    day.Add(time.Duration(entry.EndMinutes) * time.Minute),
	})
}

// CreateAdHoc creates an unscheduled lesson starting now, owned by the
// calling teacher. The teacher must be assigned to the subject.
func (s *Service) CreateAdHoc(ctx context.Context, teacherID, groupID, subjectID int64, room *string) (model.Lesson, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return model.Lesson{}, fmt.Errorf("group %d: %w", groupID, err)
	}
	if _, err := s.store.GetSubject(ctx, subjectID); err != nil {
		return model.Lesson{}, fmt.Errorf("subject %d: %w", subjectID, err)
	}
	assigned, err := s.store.IsTeacherAssigned(ctx, teacherID, subjectID)
	if err != nil {
		return model.Lesson{}, err
	}
	if !assigned {
		return model.Lesson{}, model.ErrNotAssigned
	}

	now := s.now().In(s.cfg.Location)
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.cfg.Location)
	return s.store.InsertLesson(ctx, model.Lesson{
		GroupID:        groupID,
		SubjectID:      subjectID,
		TeacherID:      &teacherID,
		Room:           room,
		Date:           day,
		ScheduledStart: now,
		ScheduledEnd:   now.Add(s.cfg.DefaultLessonLength),
	})
}

// Open transitions pending→open on behalf of the owning teacher.
func (s *Service) Open(ctx context.Context, lessonID, teacherID, actorAccountID int64) (model.Lesson, error) {
	current, err := s.store.GetLesson(ctx, lessonID)
	if err != nil {
		return model.Lesson{}, err
	}
	if !current.OwnedBy(teacherID) {
		return model.Lesson{}, model.ErrNotYourLesson
	}
	ok, err := s.store.OpenLesson(ctx, lessonID, s.now().UTC(), &actorAccountID)
	if err != nil {
		return model.Lesson{}, err
	}
	if !ok {
		return model.Lesson{}, transitionError(ctx, s.store, lessonID, model.LessonPending)
	}
	return s.store.GetLesson(ctx, lessonID)
}

// Close transitions open→closed on behalf of the owning teacher.
func (s *Service) Close(ctx context.Context, lessonID, teacherID, actorAccountID int64) (model.Lesson, error) {
	current, err := s.store.GetLesson(ctx, lessonID)
	if err != nil {
		return model.Lesson{}, err
	}
	if !current.OwnedBy(teacherID) {
		return model.Lesson{}, model.ErrNotYourLesson
	}
	ok, err := s.store.CloseLesson(ctx, lessonID, s.now().UTC(), &actorAccountID)
	if err != nil {
		return model.Lesson{}, err
	}
	if !ok {
		return model.Lesson{}, transitionError(ctx, s.store, lessonID, model.LessonOpen)
	}
	return s.store.GetLesson(ctx, lessonID)
}

// Delete removes a lesson that never started.
func (s *Service) Delete(ctx context.Context, lessonID, teacherID int64) error {
	current, err := s.store.GetLesson(ctx, lessonID)
	if err != nil {
		return err
	}
	if !current.OwnedBy(teacherID) {
		return model.ErrNotYourLesson
	}
	ok, err := s.store.DeleteLessonIfPending(ctx, lessonID)
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrLessonNotPending
	}
	return nil
}

// transitionError re-reads the lesson after a failed compare-and-set and
// names the state that blocked the transition.
func transitionError(ctx context.Context, st store, lessonID int64, wanted model.LessonStatus) error {
	current, err := st.GetLesson(ctx, lessonID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrNotFound
		}
		return err
	}
	switch current.Status {
	case model.LessonOpen:
		if wanted == model.LessonPending {
			return model.ErrAlreadyOpen
		}
		return model.ErrLessonNotOpen
	case model.LessonClosed:
		return model.ErrLessonClosed
	default:
		return model.ErrLessonNotOpen
	}
}
