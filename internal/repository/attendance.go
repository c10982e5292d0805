package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/anvarDev14/davomatoriental/internal/model"
)

const attendanceColumns = `id, lesson_id, student_id, status, marked_at, marked_by`

func scanAttendance(row pgx.Row) (model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := row.Scan(&rec.ID, &rec.LessonID, &rec.StudentID, &rec.Status, &rec.MarkedAt, &rec.MarkedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.AttendanceRecord{}, model.ErrNotFound
	}
	return rec, err
}

func (s *Store) GetAttendanceRecord(ctx context.Context, lessonID, studentID int64) (model.AttendanceRecord, error) {
	return scanAttendance(s.db.QueryRow(ctx, `
		SELECT `+attendanceColumns+`
		FROM attendance
		WHERE lesson_id = $1 AND student_id = $2
	`, lessonID, studentID))
}

// InsertAttendanceIfAbsent writes a self-mark only when no record exists
// yet and the lesson row is still open. The status guard sits in the same
// statement as the write, so a close landing after the caller's window
// check cannot be marked into; the unique key on (lesson_id, student_id)
// arbitrates duplicate marks. It returns the row that ends up in the
// table and whether this call created it.
func (s *Store) InsertAttendanceIfAbsent(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, bool, error) {
	inserted, err := scanAttendance(s.db.QueryRow(ctx, `
		INSERT INTO attendance (lesson_id, student_id, status, marked_at, marked_by)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (SELECT 1 FROM lessons WHERE id = $1 AND status = 'open')
		ON CONFLICT (lesson_id, student_id) DO NOTHING
		RETURNING `+attendanceColumns+`
	`, rec.LessonID, rec.StudentID, rec.Status, rec.MarkedAt, rec.MarkedBy))
	if err == nil {
		return inserted, true, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.AttendanceRecord{}, false, err
	}
	// Zero rows: either the student already has a record, or the lesson
	// left open between the caller's check and the write.
	existing, err := s.GetAttendanceRecord(ctx, rec.LessonID, rec.StudentID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.AttendanceRecord{}, false, err
	}
	l, err := s.GetLesson(ctx, rec.LessonID)
	if err != nil {
		return model.AttendanceRecord{}, false, err
	}
	if l.Status == model.LessonClosed {
		return model.AttendanceRecord{}, false, model.ErrLessonClosed
	}
	return model.AttendanceRecord{}, false, model.ErrLessonNotOpen
}

// UpsertAttendance is the teacher path: it overwrites whatever the
// student (or an earlier teacher correction) wrote.
func (s *Store) UpsertAttendance(ctx context.Context, rec model.AttendanceRecord) (model.AttendanceRecord, error) {
	return scanAttendance(s.db.QueryRow(ctx, `
		INSERT INTO attendance (lesson_id, student_id, status, marked_at, marked_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (lesson_id, student_id) DO UPDATE SET
			status    = EXCLUDED.status,
			marked_at = EXCLUDED.marked_at,
			marked_by = EXCLUDED.marked_by
		RETURNING `+attendanceColumns+`
	`, rec.LessonID, rec.StudentID, rec.Status, rec.MarkedAt, rec.MarkedBy))
}

// HistoryItem is one row of a student's attendance history.
type HistoryItem struct {
	Record      model.AttendanceRecord
	LessonDate  time.Time
	SubjectName string
}

func (s *Store) AttendanceHistory(ctx context.Context, studentID int64, limit int) ([]HistoryItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT att.id, att.lesson_id, att.student_id, att.status, att.marked_at, att.marked_by,
			l.lesson_date, subj.name
		FROM attendance att
		JOIN lessons l ON l.id = att.lesson_id
		JOIN subjects subj ON subj.id = l.subject_id
		WHERE att.student_id = $1
		ORDER BY l.scheduled_start_at DESC
		LIMIT $2
	`, studentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []HistoryItem
	for rows.Next() {
		var item HistoryItem
		rec := &item.Record
		if err := rows.Scan(
			&rec.ID, &rec.LessonID, &rec.StudentID, &rec.Status, &rec.MarkedAt, &rec.MarkedBy,
			&item.LessonDate, &item.SubjectName,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountAttendanceByStatus tallies a student's records on closed lessons
// since the given time, keyed by status.
func (s *Store) CountAttendanceByStatus(ctx context.Context, studentID int64, since time.Time) (map[model.AttendanceStatus]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT att.status, COUNT(*)
		FROM attendance att
		JOIN lessons l ON l.id = att.lesson_id
		WHERE att.student_id = $1 AND l.status = 'closed' AND l.scheduled_start_at >= $2
		GROUP BY att.status
	`, studentID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.AttendanceStatus]int)
	for rows.Next() {
		var status model.AttendanceStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// CountAttendanceByStatusPerSubject is the per-subject breakdown of the
// same tally.
func (s *Store) CountAttendanceByStatusPerSubject(ctx context.Context, studentID int64, since time.Time) (map[int64]map[model.AttendanceStatus]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT l.subject_id, att.status, COUNT(*)
		FROM attendance att
		JOIN lessons l ON l.id = att.lesson_id
		WHERE att.student_id = $1 AND l.status = 'closed' AND l.scheduled_start_at >= $2
		GROUP BY l.subject_id, att.status
	`, studentID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int64]map[model.AttendanceStatus]int)
	for rows.Next() {
		var subjectID int64
		var status model.AttendanceStatus
		var count int
		if err := rows.Scan(&subjectID, &status, &count); err != nil {
			return nil, err
		}
		if counts[subjectID] == nil {
			counts[subjectID] = make(map[model.AttendanceStatus]int)
		}
		counts[subjectID][status] = count
	}
	return counts, rows.Err()
}

func (s *Store) CountAttendanceForLesson(ctx context.Context, lessonID int64) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM attendance WHERE lesson_id = $1
	`, lessonID).Scan(&count)
	return count, err
}

// RosterRow is one student of a lesson's group with their mark, if any.
type RosterRow struct {
	StudentID   int64
	FullName    string
	StudentCode *string
	Status      *model.AttendanceStatus
	MarkedAt    *time.Time
	MarkedBy    *model.MarkedBy
}

// LessonRoster lists every student of the group with whatever record the
// lesson has for them; unmarked students come back with nil status.
func (s *Store) LessonRoster(ctx context.Context, lessonID, groupID int64) ([]RosterRow, error) {
	rows, err := s.db.Query(ctx, `
		SELECT sp.id, a.full_name, sp.student_code, att.status, att.marked_at, att.marked_by
		FROM student_profiles sp
		JOIN accounts a ON a.id = sp.account_id
		LEFT JOIN attendance att ON att.student_id = sp.id AND att.lesson_id = $1
		WHERE sp.group_id = $2
		ORDER BY a.full_name
	`, lessonID, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roster []RosterRow
	for rows.Next() {
		var row RosterRow
		if err := rows.Scan(&row.StudentID, &row.FullName, &row.StudentCode, &row.Status, &row.MarkedAt, &row.MarkedBy); err != nil {
			return nil, err
		}
		roster = append(roster, row)
	}
	return roster, rows.Err()
}

// PlatformTotals is the admin dashboard summary.
type PlatformTotals struct {
	Students      int
	Teachers      int
	Groups        int
	LessonsToday  int
	MarksToday    int
	OpenLessons   int
	ClosedLessons int
}

func (s *Store) PlatformTotals(ctx context.Context, today time.Time) (PlatformTotals, error) {
	var t PlatformTotals
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM student_profiles),
			(SELECT COUNT(*) FROM teacher_profiles),
			(SELECT COUNT(*) FROM groups),
			(SELECT COUNT(*) FROM lessons WHERE lesson_date = $1),
			(SELECT COUNT(*) FROM attendance att JOIN lessons l ON l.id = att.lesson_id WHERE l.lesson_date = $1),
			(SELECT COUNT(*) FROM lessons WHERE status = 'open'),
			(SELECT COUNT(*) FROM lessons WHERE status = 'closed')
	`, today).Scan(
		&t.Students, &t.Teachers, &t.Groups,
		&t.LessonsToday, &t.MarksToday, &t.OpenLessons, &t.ClosedLessons,
	)
	return t, err
}

// ReportMark is one cell of the export grid.
type ReportMark struct {
	LessonID  int64
	StudentID int64
	Status    model.AttendanceStatus
}

func (s *Store) ListMarksForReport(ctx context.Context, groupID int64, from, to *time.Time) ([]ReportMark, error) {
	rows, err := s.db.Query(ctx, `
		SELECT att.lesson_id, att.student_id, att.status
		FROM attendance att
		JOIN lessons l ON l.id = att.lesson_id
		WHERE l.group_id = $1
			AND ($2::date IS NULL OR l.lesson_date >= $2)
			AND ($3::date IS NULL OR l.lesson_date <= $3)
	`, groupID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var marks []ReportMark
	for rows.Next() {
		var m ReportMark
		if err := rows.Scan(&m.LessonID, &m.StudentID, &m.Status); err != nil {
			return nil, err
		}
		marks = append(marks, m)
	}
	return marks, rows.Err()
}

// GroupStudent is a roster entry independent of any lesson.
type GroupStudent struct {
	StudentID   int64
	FullName    string
	StudentCode *string
}

func (s *Store) ListGroupStudents(ctx context.Context, groupID int64) ([]GroupStudent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT sp.id, a.full_name, sp.student_code
		FROM student_profiles sp
		JOIN accounts a ON a.id = sp.account_id
		WHERE sp.group_id = $1
		ORDER BY a.full_name
	`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []GroupStudent
	for rows.Next() {
		var st GroupStudent
		if err := rows.Scan(&st.StudentID, &st.FullName, &st.StudentCode); err != nil {
			return nil, err
		}
		students = append(students, st)
	}
	return students, rows.Err()
}
