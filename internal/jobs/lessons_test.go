package jobs

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/anvarDev14/davomatoriental/internal/config"
	"github.com/anvarDev14/davomatoriental/internal/model"
)

type fakeJobStore struct {
	entries   []model.ScheduleEntry
	lessons   map[int64]model.Lesson
	openCalls int
}

func (f *fakeJobStore) ListEntriesStartingBetween(_ context.Context, _, _, _ int) ([]model.ScheduleEntry, error) {
	return f.entries, nil
}

func (f *fakeJobStore) OpenLesson(_ context.Context, id int64, openedAt time.Time, _ *int64) (bool, error) {
	f.openCalls++
	l := f.lessons[id]
	if l.Status != model.LessonPending {
		return false, nil
	}
	l.Status = model.LessonOpen
	l.OpenedAt = &openedAt
	f.lessons[id] = l
	return true, nil
}

// CloseExpiredLessons mirrors the repository's guarded update: only open
// lessons whose marking window has passed change state.
func (f *fakeJobStore) CloseExpiredLessons(_ context.Context, now time.Time, markWindow time.Duration) (int64, error) {
	var closed int64
	for id, l := range f.lessons {
		if l.Status == model.LessonOpen && !l.ScheduledStart.Add(markWindow).After(now) {
			l.Status = model.LessonClosed
			f.lessons[id] = l
			closed++
		}
	}
	return closed, nil
}

// fakeMaterializer maps schedule entries onto the fake store's lessons.
type fakeMaterializer struct {
	store   *fakeJobStore
	byEntry map[int64]int64
}

func (f *fakeMaterializer) Materialize(_ context.Context, entry model.ScheduleEntry, _ time.Time) (model.Lesson, error) {
	return f.store.lessons[f.byEntry[entry.ID]], nil
}

func testConfig() config.Config {
	return config.Config{
		Location:   time.UTC,
		OpenBefore: 5 * time.Minute,
		MarkWindow: 45 * time.Minute,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAutoOpenTransitionsOnlyPendingLessons(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeJobStore{
		entries: []model.ScheduleEntry{{ID: 1}, {ID: 2}},
		lessons: map[int64]model.Lesson{
			10: {ID: 10, Status: model.LessonPending, ScheduledStart: now.Add(3 * time.Minute)},
			20: {ID: 20, Status: model.LessonOpen, ScheduledStart: now.Add(3 * time.Minute)},
		},
	}
	lessons := &fakeMaterializer{store: store, byEntry: map[int64]int64{1: 10, 2: 20}}

	autoOpen(context.Background(), testConfig(), store, lessons, quietLogger())

	if got := store.lessons[10].Status; got != model.LessonOpen {
		t.Fatalf("pending lesson status = %q, want open", got)
	}
	if store.lessons[10].OpenedAt == nil {
		t.Fatal("opened lesson has no opened_at")
	}
	// The already-open lesson is skipped before the transition is tried.
	if store.openCalls != 1 {
		t.Fatalf("OpenLesson calls = %d, want 1", store.openCalls)
	}
}

func TestAutoCloseLeavesPendingLessonsUntouched(t *testing.T) {
	now := time.Now().UTC()
	store := &fakeJobStore{
		lessons: map[int64]model.Lesson{
			// Pending lesson whose window would have passed: never closed.
			1: {ID: 1, Status: model.LessonPending, ScheduledStart: now.Add(-2 * time.Hour)},
			// Open lesson past the window: closed.
			2: {ID: 2, Status: model.LessonOpen, ScheduledStart: now.Add(-2 * time.Hour)},
			// Open lesson still inside the window: stays open.
			3: {ID: 3, Status: model.LessonOpen, ScheduledStart: now.Add(-10 * time.Minute)},
		},
	}

	autoClose(context.Background(), testConfig(), store, quietLogger())

	if got := store.lessons[1].Status; got != model.LessonPending {
		t.Fatalf("pending lesson status = %q, want pending", got)
	}
	if got := store.lessons[2].Status; got != model.LessonClosed {
		t.Fatalf("expired open lesson status = %q, want closed", got)
	}
	if got := store.lessons[3].Status; got != model.LessonOpen {
		t.Fatalf("in-window lesson status = %q, want open", got)
	}
}
