package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/anvarDev14/davomatoriental/internal/model"
)

const lessonColumns = `
	id, schedule_entry_id, group_id, subject_id, teacher_id, room,
	lesson_date, scheduled_start_at, scheduled_end_at, status,
	opened_at, closed_at, created_at`

func scanLesson(row pgx.Row) (model.Lesson, error) {
	var l model.Lesson
	err := row.Scan(
		&l.ID, &l.ScheduleEntryID, &l.GroupID, &l.SubjectID, &l.TeacherID, &l.Room,
		&l.Date, &l.ScheduledStart, &l.ScheduledEnd, &l.Status,
		&l.OpenedAt, &l.ClosedAt, &l.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Lesson{}, model.ErrNotFound
	}
	return l, err
}

func (s *Store) GetLesson(ctx context.Context, id int64) (model.Lesson, error) {
	return scanLesson(s.db.QueryRow(ctx, `
		SELECT `+lessonColumns+` FROM lessons WHERE id = $1
	`, id))
}

func (s *Store) InsertLesson(ctx context.Context, lesson model.Lesson) (model.Lesson, error) {
	return scanLesson(s.db.QueryRow(ctx, `
		INSERT INTO lessons (schedule_entry_id, group_id, subject_id, teacher_id, room,
			lesson_date, scheduled_start_at, scheduled_end_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending')
		RETURNING `+lessonColumns+`
	`, lesson.ScheduleEntryID, lesson.GroupID, lesson.SubjectID, lesson.TeacherID, lesson.Room,
		lesson.Date, lesson.ScheduledStart, lesson.ScheduledEnd))
}

// MaterializeLesson find-or-creates the lesson for (entry, date). The
// partial unique index on (schedule_entry_id, lesson_date) makes the
// racing creators converge on one row.
func (s *Store) MaterializeLesson(ctx context.Context, lesson model.Lesson) (model.Lesson, error) {
	created, err := s.InsertLesson(ctx, lesson)
	if err == nil {
		return created, nil
	}
	if !isUniqueViolation(err) {
		return model.Lesson{}, err
	}
	return scanLesson(s.db.QueryRow(ctx, `
		SELECT `+lessonColumns+`
		FROM lessons
		WHERE schedule_entry_id = $1 AND lesson_date = $2
	`, lesson.ScheduleEntryID, lesson.Date))
}

// OpenLesson is the compare-and-set pending→open transition; false means
// the lesson was not pending (caller distinguishes why from a re-read).
func (s *Store) OpenLesson(ctx context.Context, id int64, openedAt time.Time, openedBy *int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE lessons
		SET status = 'open', opened_at = $2, opened_by = $3
		WHERE id = $1 AND status = 'pending'
	`, id, openedAt, openedBy)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CloseLesson is the compare-and-set open→closed transition.
func (s *Store) CloseLesson(ctx context.Context, id int64, closedAt time.Time, closedBy *int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE lessons
		SET status = 'closed', closed_at = $2, closed_by = $3
		WHERE id = $1 AND status = 'open'
	`, id, closedAt, closedBy)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteLessonIfPending preserves attendance history by refusing to
// delete once the lesson has left pending.
func (s *Store) DeleteLessonIfPending(ctx context.Context, id int64) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM lessons WHERE id = $1 AND status = 'pending'
	`, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// CloseExpiredLessons closes every open lesson whose marking window has
// passed; one guarded statement so it cannot race teacher closes.
func (s *Store) CloseExpiredLessons(ctx context.Context, now time.Time, markWindow time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE lessons
		SET status = 'closed', closed_at = $1
		WHERE status = 'open' AND scheduled_start_at + $2 <= $1
	`, now, markWindow)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CountClosedLessonsForGroup counts closed lessons scheduled on or after
// the given time (a student's enrollment date for the stats denominator).
func (s *Store) CountClosedLessonsForGroup(ctx context.Context, groupID int64, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM lessons
		WHERE group_id = $1 AND status = 'closed' AND scheduled_start_at >= $2
	`, groupID, since).Scan(&count)
	return count, err
}

// CountClosedLessonsForGroupBySubject is the per-subject denominator.
func (s *Store) CountClosedLessonsForGroupBySubject(ctx context.Context, groupID int64, since time.Time) (map[int64]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT subject_id, COUNT(*)
		FROM lessons
		WHERE group_id = $1 AND status = 'closed' AND scheduled_start_at >= $2
		GROUP BY subject_id
	`, groupID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var subjectID int64
		var count int
		if err := rows.Scan(&subjectID, &count); err != nil {
			return nil, err
		}
		counts[subjectID] = count
	}
	return counts, rows.Err()
}

// ReportLesson is one column of the admin attendance report.
type ReportLesson struct {
	LessonID    int64
	Date        time.Time
	SubjectName string
}

func (s *Store) ListLessonsForReport(ctx context.Context, groupID int64, from, to *time.Time) ([]ReportLesson, error) {
	rows, err := s.db.Query(ctx, `
		SELECT l.id, l.lesson_date, subj.name
		FROM lessons l
		JOIN subjects subj ON subj.id = l.subject_id
		WHERE l.group_id = $1
			AND ($2::date IS NULL OR l.lesson_date >= $2)
			AND ($3::date IS NULL OR l.lesson_date <= $3)
		ORDER BY l.lesson_date, l.scheduled_start_at
	`, groupID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lessons []ReportLesson
	for rows.Next() {
		var l ReportLesson
		if err := rows.Scan(&l.LessonID, &l.Date, &l.SubjectName); err != nil {
			return nil, err
		}
		lessons = append(lessons, l)
	}
	return lessons, rows.Err()
}
