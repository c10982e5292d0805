package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/anvarDev14/davomatoriental/internal/model"
)

// Reference data: directions, groups, subjects, teacher assignments and
// the weekly schedule template.

func (s *Store) ListDirections(ctx context.Context) ([]model.Direction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, short_name FROM directions ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var directions []model.Direction
	for rows.Next() {
		var d model.Direction
		if err := rows.Scan(&d.ID, &d.Name, &d.ShortName); err != nil {
			return nil, err
		}
		directions = append(directions, d)
	}
	return directions, rows.Err()
}

func (s *Store) CreateDirection(ctx context.Context, name string, shortName *string) (model.Direction, error) {
	var d model.Direction
	err := s.db.QueryRow(ctx, `
		INSERT INTO directions (name, short_name)
		VALUES ($1, $2)
		RETURNING id, name, short_name
	`, name, shortName).Scan(&d.ID, &d.Name, &d.ShortName)
	return d, err
}

func (s *Store) ListGroups(ctx context.Context, directionID *int64) ([]model.Group, error) {
	rows, err := s.db.Query(ctx, `
		SELECT g.id, g.name, g.direction_id, g.course, d.name
		FROM groups g
		JOIN directions d ON d.id = g.direction_id
		WHERE $1::bigint IS NULL OR g.direction_id = $1
		ORDER BY g.name
	`, directionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.DirectionID, &g.Course, &g.DirectionName); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *Store) GetGroup(ctx context.Context, id int64) (model.Group, error) {
	var g model.Group
	err := s.db.QueryRow(ctx, `
		SELECT g.id, g.name, g.direction_id, g.course, d.name
		FROM groups g
		JOIN directions d ON d.id = g.direction_id
		WHERE g.id = $1
	`, id).Scan(&g.ID, &g.Name, &g.DirectionID, &g.Course, &g.DirectionName)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Group{}, model.ErrNotFound
	}
	return g, err
}

func (s *Store) CreateGroup(ctx context.Context, name string, directionID int64, course int) (model.Group, error) {
	var g model.Group
	err := s.db.QueryRow(ctx, `
		INSERT INTO groups (name, direction_id, course)
		VALUES ($1, $2, $3)
		RETURNING id, name, direction_id, course
	`, name, directionID, course).Scan(&g.ID, &g.Name, &g.DirectionID, &g.Course)
	return g, err
}

func (s *Store) CountStudentsInGroup(ctx context.Context, groupID int64) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM student_profiles WHERE group_id = $1
	`, groupID).Scan(&count)
	return count, err
}

func (s *Store) ListSubjects(ctx context.Context) ([]model.Subject, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, short_name FROM subjects ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []model.Subject
	for rows.Next() {
		var subject model.Subject
		if err := rows.Scan(&subject.ID, &subject.Name, &subject.ShortName); err != nil {
			return nil, err
		}
		subjects = append(subjects, subject)
	}
	return subjects, rows.Err()
}

func (s *Store) GetSubject(ctx context.Context, id int64) (model.Subject, error) {
	var subject model.Subject
	err := s.db.QueryRow(ctx, `
		SELECT id, name, short_name FROM subjects WHERE id = $1
	`, id).Scan(&subject.ID, &subject.Name, &subject.ShortName)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Subject{}, model.ErrNotFound
	}
	return subject, err
}

func (s *Store) CreateSubject(ctx context.Context, name string, shortName *string) (model.Subject, error) {
	var subject model.Subject
	err := s.db.QueryRow(ctx, `
		INSERT INTO subjects (name, short_name)
		VALUES ($1, $2)
		RETURNING id, name, short_name
	`, name, shortName).Scan(&subject.ID, &subject.Name, &subject.ShortName)
	return subject, err
}

func (s *Store) AssignSubjectTeacher(ctx context.Context, subjectID, teacherID int64) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO subject_teachers (subject_id, teacher_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, subjectID, teacherID)
	return err
}

// IsTeacherAssigned reports whether the teacher has a claim on the
// subject: an explicit assignment, or any active schedule entry naming
// them for it.
func (s *Store) IsTeacherAssigned(ctx context.Context, teacherID, subjectID int64) (bool, error) {
	var assigned bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM subject_teachers
			WHERE subject_id = $1 AND teacher_id = $2
		) OR EXISTS (
			SELECT 1 FROM schedule_entries
			WHERE subject_id = $1 AND teacher_id = $2 AND active
		)
	`, subjectID, teacherID).Scan(&assigned)
	return assigned, err
}

const scheduleEntryColumns = `
	se.id, se.group_id, se.subject_id, se.teacher_id, se.day_of_week,
	se.start_minutes, se.end_minutes, se.room, se.active,
	g.name, subj.name, COALESCE(a.full_name, '')`

const scheduleEntryJoins = `
	FROM schedule_entries se
	JOIN groups g ON g.id = se.group_id
	JOIN subjects subj ON subj.id = se.subject_id
	LEFT JOIN teacher_profiles t ON t.id = se.teacher_id
	LEFT JOIN accounts a ON a.id = t.account_id`

func scanScheduleEntries(rows pgx.Rows) ([]model.ScheduleEntry, error) {
	defer rows.Close()
	var entries []model.ScheduleEntry
	for rows.Next() {
		var e model.ScheduleEntry
		if err := rows.Scan(
			&e.ID, &e.GroupID, &e.SubjectID, &e.TeacherID, &e.DayOfWeek,
			&e.StartMinutes, &e.EndMinutes, &e.Room, &e.Active,
			&e.GroupName, &e.SubjectName, &e.TeacherName,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) ListScheduleEntries(ctx context.Context, groupID *int64) ([]model.ScheduleEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+scheduleEntryColumns+scheduleEntryJoins+`
		WHERE se.active AND ($1::bigint IS NULL OR se.group_id = $1)
		ORDER BY se.day_of_week, se.start_minutes
	`, groupID)
	if err != nil {
		return nil, err
	}
	return scanScheduleEntries(rows)
}

func (s *Store) ListGroupEntriesForDay(ctx context.Context, groupID int64, dayOfWeek int) ([]model.ScheduleEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+scheduleEntryColumns+scheduleEntryJoins+`
		WHERE se.active AND se.group_id = $1 AND se.day_of_week = $2
		ORDER BY se.start_minutes
	`, groupID, dayOfWeek)
	if err != nil {
		return nil, err
	}
	return scanScheduleEntries(rows)
}

func (s *Store) ListTeacherEntriesForDay(ctx context.Context, teacherID int64, dayOfWeek int) ([]model.ScheduleEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+scheduleEntryColumns+scheduleEntryJoins+`
		WHERE se.active AND se.teacher_id = $1 AND se.day_of_week = $2
		ORDER BY se.start_minutes
	`, teacherID, dayOfWeek)
	if err != nil {
		return nil, err
	}
	return scanScheduleEntries(rows)
}

// ListEntriesStartingBetween finds today's entries whose start falls in
// [fromMinutes, toMinutes]; the auto-open job uses it.
func (s *Store) ListEntriesStartingBetween(ctx context.Context, dayOfWeek, fromMinutes, toMinutes int) ([]model.ScheduleEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+scheduleEntryColumns+scheduleEntryJoins+`
		WHERE se.active AND se.day_of_week = $1
			AND se.start_minutes BETWEEN $2 AND $3
		ORDER BY se.start_minutes
	`, dayOfWeek, fromMinutes, toMinutes)
	if err != nil {
		return nil, err
	}
	return scanScheduleEntries(rows)
}

func (s *Store) GetScheduleEntry(ctx context.Context, id int64) (model.ScheduleEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+scheduleEntryColumns+scheduleEntryJoins+`
		WHERE se.id = $1
	`, id)
	if err != nil {
		return model.ScheduleEntry{}, err
	}
	entries, err := scanScheduleEntries(rows)
	if err != nil {
		return model.ScheduleEntry{}, err
	}
	if len(entries) == 0 {
		return model.ScheduleEntry{}, model.ErrNotFound
	}
	return entries[0], nil
}

func (s *Store) CreateScheduleEntry(ctx context.Context, entry model.ScheduleEntry) (model.ScheduleEntry, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO schedule_entries (group_id, subject_id, teacher_id, day_of_week, start_minutes, end_minutes, room)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, active
	`, entry.GroupID, entry.SubjectID, entry.TeacherID, entry.DayOfWeek,
		entry.StartMinutes, entry.EndMinutes, entry.Room,
	).Scan(&entry.ID, &entry.Active)
	return entry, err
}

// DeactivateScheduleEntry soft-deletes; lessons already materialized
// from the entry keep their history.
func (s *Store) DeactivateScheduleEntry(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE schedule_entries SET active = FALSE WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}
