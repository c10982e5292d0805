package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/anvarDev14/davomatoriental/internal/config"
	"github.com/anvarDev14/davomatoriental/internal/model"
)

// store is the slice of the repository the lifecycle jobs need.
type store interface {
	ListEntriesStartingBetween(ctx context.Context, dayOfWeek, fromMinutes, toMinutes int) ([]model.ScheduleEntry, error)
	OpenLesson(ctx context.Context, id int64, openedAt time.Time, openedBy *int64) (bool, error)
	CloseExpiredLessons(ctx context.Context, now time.Time, markWindow time.Duration) (int64, error)
}

// materializer find-or-creates the lesson row for a schedule entry,
// provided by the lesson service.
type materializer interface {
	Materialize(ctx context.Context, entry model.ScheduleEntry, date time.Time) (model.Lesson, error)
}

// StartLessonJobs runs the lesson lifecycle automation: scheduled
// lessons are materialized and opened shortly before their start, and
// open lessons whose marking window passed are closed.
func StartLessonJobs(ctx context.Context, cfg config.Config, store store, lessons materializer, logger *slog.Logger) {
	if !cfg.LessonJobsEnabled {
		return
	}
	interval := cfg.LessonJobsInterval
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				autoOpen(tickCtx, cfg, store, lessons, logger)
				autoClose(tickCtx, cfg, store, logger)
				cancel()
			}
		}
	}()
}

func autoOpen(ctx context.Context, cfg config.Config, store store, lessons materializer, logger *slog.Logger) {
	now := time.Now().In(cfg.Location)
	day := (int(now.Weekday()) + 6) % 7
	fromMinutes := now.Hour()*60 + now.Minute()
	toMinutes := fromMinutes + int(cfg.OpenBefore.Minutes())
	if toMinutes > 1439 {
		toMinutes = 1439
	}

	entries, err := store.ListEntriesStartingBetween(ctx, day, fromMinutes, toMinutes)
	if err != nil {
		logger.Error("lesson auto-open query failed", "error", err)
		return
	}
	for _, entry := range entries {
		l, err := lessons.Materialize(ctx, entry, now)
		if err != nil {
			logger.Error("lesson materialize failed", "entry_id", entry.ID, "error", err)
			continue
		}
		if l.Status != model.LessonPending {
			continue
		}
		opened, err := store.OpenLesson(ctx, l.ID, time.Now().UTC(), nil)
		if err != nil {
			logger.Error("lesson auto-open failed", "lesson_id", l.ID, "error", err)
			continue
		}
		if opened {
			logger.Info("lesson auto-opened",
				"lesson_id", l.ID, "group", entry.GroupName, "subject", entry.SubjectName)
		}
	}
}

func autoClose(ctx context.Context, cfg config.Config, store store, logger *slog.Logger) {
	closed, err := store.CloseExpiredLessons(ctx, time.Now().UTC(), cfg.MarkWindow)
	if err != nil {
		logger.Error("lesson auto-close failed", "error", err)
		return
	}
	if closed > 0 {
		logger.Info("lessons auto-closed", "count", closed)
	}
}
