package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anvarDev14/davomatoriental/internal/model"
	"github.com/anvarDev14/davomatoriental/internal/repository"
)

type markKey struct {
	lessonID  int64
	studentID int64
}

type fakeStore struct {
	lessons  map[int64]model.Lesson
	students map[int64]model.StudentProfile
	marks    map[markKey]model.AttendanceRecord
	nextID   int64

	// closeOnWrite flips the lesson to closed right before the insert,
	// simulating a teacher close landing after the window check.
	closeOnWrite bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		lessons:  make(map[int64]model.Lesson),
		students: make(map[int64]model.StudentProfile),
		marks:    make(map[markKey]model.AttendanceRecord),
		nextID:   1,
	}
}

func (f *fakeStore) GetLesson(_ context.Context, id int64) (model.Lesson, error) {
	l, ok := f.lessons[id]
	if !ok {
		return model.Lesson{}, model.ErrNotFound
	}
	return l, nil
}

func (f *fakeStore) GetStudentProfileByID(_ context.Context, id int64) (model.StudentProfile, error) {
	st, ok := f.students[id]
	if !ok {
		return model.StudentProfile{}, model.ErrNotFound
	}
	return st, nil
}

func (f *fakeStore) GetAttendanceRecord(_ context.Context, lessonID, studentID int64) (model.AttendanceRecord, error) {
	rec, ok := f.marks[markKey{lessonID, studentID}]
	if !ok {
		return model.AttendanceRecord{}, model.ErrNotFound
	}
	return rec, nil
}

// InsertAttendanceIfAbsent mirrors the repository's guarded write: the
// insert only lands while the lesson row is still open.
func (f *fakeStore) InsertAttendanceIfAbsent(_ context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, bool, error) {
	if f.closeOnWrite {
		l := f.lessons[rec.LessonID]
		l.Status = model.LessonClosed
		f.lessons[rec.LessonID] = l
		f.closeOnWrite = false
	}
	key := markKey{rec.LessonID, rec.StudentID}
	if existing, ok := f.marks[key]; ok {
		return existing, false, nil
	}
	switch f.lessons[rec.LessonID].Status {
	case model.LessonOpen:
	case model.LessonClosed:
		return model.AttendanceRecord{}, false, model.ErrLessonClosed
	default:
		return model.AttendanceRecord{}, false, model.ErrLessonNotOpen
	}
	rec.ID = f.nextID
	f.nextID++
	f.marks[key] = rec
	return rec, true, nil
}

func (f *fakeStore) UpsertAttendance(_ context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error) {
	key := markKey{rec.LessonID, rec.StudentID}
	if existing, ok := f.marks[key]; ok {
		rec.ID = existing.ID
	} else {
		rec.ID = f.nextID
		f.nextID++
	}
	f.marks[key] = rec
	return rec, nil
}

func (f *fakeStore) AttendanceHistory(_ context.Context, studentID int64, limit int) ([]repository.HistoryItem, error) {
	var items []repository.HistoryItem
	for _, rec := range f.marks {
		if rec.StudentID == studentID && len(items) < limit {
			items = append(items, repository.HistoryItem{Record: rec})
		}
	}
	return items, nil
}

// fixedPolicy is a stand-in for the lesson service's window logic.
type fixedPolicy struct {
	canMark bool
	status  model.AttendanceStatus
}

func (p fixedPolicy) CanMark(model.Lesson, time.Time) bool { return p.canMark }
func (p fixedPolicy) MarkStatus(model.Lesson, time.Time) model.AttendanceStatus {
	return p.status
}

func seedLesson(store *fakeStore, status model.LessonStatus, teacherID int64) model.Lesson {
	l := model.Lesson{ID: 1, GroupID: 3, SubjectID: 4, TeacherID: &teacherID, Status: status}
	store.lessons[l.ID] = l
	return l
}

func TestSelfMarkPresent(t *testing.T) {
	store := newFakeStore()
	seedLesson(store, model.LessonOpen, 11)
	svc := NewService(store, fixedPolicy{canMark: true, status: model.AttendancePresent})

	res, err := svc.SelfMark(context.Background(), model.StudentProfile{ID: 21, GroupID: 3}, 1)
	require.NoError(t, err)
	assert.False(t, res.AlreadyMarked)
	assert.Equal(t, model.AttendancePresent, res.Record.Status)
	assert.Equal(t, model.MarkedBySelf, res.Record.MarkedBy)
}

func TestSelfMarkIdempotent(t *testing.T) {
	store := newFakeStore()
	seedLesson(store, model.LessonOpen, 11)
	svc := NewService(store, fixedPolicy{canMark: true, status: model.AttendancePresent})
	student := model.StudentProfile{ID: 21, GroupID: 3}

	first, err := svc.SelfMark(context.Background(), student, 1)
	require.NoError(t, err)

	// Repeat keeps the original record even if the status would differ now.
	svc.policy = fixedPolicy{canMark: true, status: model.AttendanceLate}
	second, err := svc.SelfMark(context.Background(), student, 1)
	require.NoError(t, err)
	assert.True(t, second.AlreadyMarked)
	assert.Equal(t, first.Record.ID, second.Record.ID)
	assert.Equal(t, model.AttendancePresent, second.Record.Status)
}

func TestSelfMarkOutsideWindow(t *testing.T) {
	store := newFakeStore()
	seedLesson(store, model.LessonOpen, 11)
	svc := NewService(store, fixedPolicy{canMark: false})

	_, err := svc.SelfMark(context.Background(), model.StudentProfile{ID: 21, GroupID: 3}, 1)
	assert.True(t, errors.Is(err, model.ErrLessonNotOpen))
}

func TestSelfMarkClosedLesson(t *testing.T) {
	store := newFakeStore()
	seedLesson(store, model.LessonClosed, 11)
	svc := NewService(store, fixedPolicy{canMark: false})

	_, err := svc.SelfMark(context.Background(), model.StudentProfile{ID: 21, GroupID: 3}, 1)
	assert.True(t, errors.Is(err, model.ErrLessonClosed))
}

func TestSelfMarkLosesRaceWithClose(t *testing.T) {
	store := newFakeStore()
	seedLesson(store, model.LessonOpen, 11)
	store.closeOnWrite = true
	svc := NewService(store, fixedPolicy{canMark: true, status: model.AttendancePresent})

	// The window check passed against an open lesson, but the lesson
	// closed before the write; the guarded insert must refuse the mark.
	_, err := svc.SelfMark(context.Background(), model.StudentProfile{ID: 21, GroupID: 3}, 1)
	assert.True(t, errors.Is(err, model.ErrLessonClosed))
	assert.Empty(t, store.marks)
}

func TestSelfMarkWrongGroup(t *testing.T) {
	store := newFakeStore()
	seedLesson(store, model.LessonOpen, 11)
	svc := NewService(store, fixedPolicy{canMark: true, status: model.AttendancePresent})

	_, err := svc.SelfMark(context.Background(), model.StudentProfile{ID: 21, GroupID: 99}, 1)
	assert.True(t, errors.Is(err, model.ErrNotInGroup))
}

func TestTeacherMarkOverwritesSelfMark(t *testing.T) {
	store := newFakeStore()
	seedLesson(store, model.LessonOpen, 11)
	store.students[21] = model.StudentProfile{ID: 21, GroupID: 3}
	svc := NewService(store, fixedPolicy{canMark: true, status: model.AttendancePresent})

	_, err := svc.SelfMark(context.Background(), store.students[21], 1)
	require.NoError(t, err)

	rec, err := svc.TeacherMark(context.Background(), 11, 1, 21, model.AttendanceAbsent)
	require.NoError(t, err)
	assert.Equal(t, model.AttendanceAbsent, rec.Status)
	assert.Equal(t, model.MarkedByTeacher, rec.MarkedBy)
}

func TestTeacherMarkAfterClose(t *testing.T) {
	store := newFakeStore()
	seedLesson(store, model.LessonClosed, 11)
	store.students[21] = model.StudentProfile{ID: 21, GroupID: 3}
	svc := NewService(store, fixedPolicy{})

	rec, err := svc.TeacherMark(context.Background(), 11, 1, 21, model.AttendanceExcused)
	require.NoError(t, err)
	assert.Equal(t, model.AttendanceExcused, rec.Status)
}

func TestTeacherMarkPendingLesson(t *testing.T) {
	store := newFakeStore()
	seedLesson(store, model.LessonPending, 11)
	store.students[21] = model.StudentProfile{ID: 21, GroupID: 3}
	svc := NewService(store, fixedPolicy{})

	_, err := svc.TeacherMark(context.Background(), 11, 1, 21, model.AttendancePresent)
	assert.True(t, errors.Is(err, model.ErrLessonNotOpen))
}

func TestTeacherMarkForeignLesson(t *testing.T) {
	store := newFakeStore()
	seedLesson(store, model.LessonOpen, 11)
	store.students[21] = model.StudentProfile{ID: 21, GroupID: 3}
	svc := NewService(store, fixedPolicy{})

	_, err := svc.TeacherMark(context.Background(), 12, 1, 21, model.AttendancePresent)
	assert.True(t, errors.Is(err, model.ErrNotYourLesson))
}

func TestTeacherMarkInvalidStatus(t *testing.T) {
	store := newFakeStore()
	seedLesson(store, model.LessonOpen, 11)
	svc := NewService(store, fixedPolicy{})

	_, err := svc.TeacherMark(context.Background(), 11, 1, 21, model.AttendanceStatus("asleep"))
	assert.True(t, errors.Is(err, model.ErrInvalidStatus))
}

func TestTeacherMarkStudentOutsideGroup(t *testing.T) {
	store := newFakeStore()
	seedLesson(store, model.LessonOpen, 11)
	store.students[22] = model.StudentProfile{ID: 22, GroupID: 99}
	svc := NewService(store, fixedPolicy{})

	_, err := svc.TeacherMark(context.Background(), 11, 1, 22, model.AttendancePresent)
	assert.True(t, errors.Is(err, model.ErrNotInGroup))
}
