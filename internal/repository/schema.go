package repository

import "context"

// Schema is applied on startup; every statement is idempotent so a
// restart against an existing database is a no-op.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id          BIGSERIAL PRIMARY KEY,
	telegram_id BIGINT NOT NULL UNIQUE,
	full_name   TEXT NOT NULL,
	username    TEXT,
	photo_url   TEXT,
	role        TEXT NOT NULL DEFAULT 'unregistered',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS directions (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	short_name TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS groups (
	id           BIGSERIAL PRIMARY KEY,
	name         TEXT NOT NULL,
	direction_id BIGINT NOT NULL REFERENCES directions(id),
	course       INT NOT NULL DEFAULT 1,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS subjects (
	id         BIGSERIAL PRIMARY KEY,
	name       TEXT NOT NULL,
	short_name TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS student_profiles (
	id           BIGSERIAL PRIMARY KEY,
	account_id   BIGINT NOT NULL UNIQUE REFERENCES accounts(id) ON DELETE CASCADE,
	group_id     BIGINT NOT NULL REFERENCES groups(id),
	student_code TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS teacher_profiles (
	id            BIGSERIAL PRIMARY KEY,
	account_id    BIGINT NOT NULL UNIQUE REFERENCES accounts(id) ON DELETE CASCADE,
	employee_code TEXT,
	department    TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS subject_teachers (
	subject_id BIGINT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
	teacher_id BIGINT NOT NULL REFERENCES teacher_profiles(id) ON DELETE CASCADE,
	PRIMARY KEY (subject_id, teacher_id)
);

CREATE TABLE IF NOT EXISTS schedule_entries (
	id            BIGSERIAL PRIMARY KEY,
	group_id      BIGINT NOT NULL REFERENCES groups(id),
	subject_id    BIGINT NOT NULL REFERENCES subjects(id),
	teacher_id    BIGINT REFERENCES teacher_profiles(id),
	day_of_week   SMALLINT NOT NULL CHECK (day_of_week BETWEEN 0 AND 6),
	start_minutes SMALLINT NOT NULL CHECK (start_minutes BETWEEN 0 AND 1439),
	end_minutes   SMALLINT NOT NULL CHECK (end_minutes BETWEEN 0 AND 1439),
	room          TEXT,
	active        BOOLEAN NOT NULL DEFAULT TRUE,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS lessons (
	id                 BIGSERIAL PRIMARY KEY,
	schedule_entry_id  BIGINT REFERENCES schedule_entries(id),
	group_id           BIGINT NOT NULL REFERENCES groups(id),
	subject_id         BIGINT NOT NULL REFERENCES subjects(id),
	teacher_id         BIGINT REFERENCES teacher_profiles(id),
	room               TEXT,
	lesson_date        DATE NOT NULL,
	scheduled_start_at TIMESTAMPTZ NOT NULL,
	scheduled_end_at   TIMESTAMPTZ NOT NULL,
	status             TEXT NOT NULL DEFAULT 'pending',
	opened_at          TIMESTAMPTZ,
	closed_at          TIMESTAMPTZ,
	opened_by          BIGINT REFERENCES accounts(id),
	closed_by          BIGINT REFERENCES accounts(id),
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS lessons_entry_date_key
	ON lessons (schedule_entry_id, lesson_date)
	WHERE schedule_entry_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS attendance (
	id         BIGSERIAL PRIMARY KEY,
	lesson_id  BIGINT NOT NULL REFERENCES lessons(id) ON DELETE CASCADE,
	student_id BIGINT NOT NULL REFERENCES student_profiles(id) ON DELETE CASCADE,
	status     TEXT NOT NULL,
	marked_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	marked_by  TEXT NOT NULL DEFAULT 'self',
	UNIQUE (lesson_id, student_id)
);

CREATE INDEX IF NOT EXISTS attendance_student_marked_idx
	ON attendance (student_id, marked_at DESC);

CREATE INDEX IF NOT EXISTS lessons_group_status_idx
	ON lessons (group_id, status);
`

// Bootstrap creates the schema if it does not exist yet.
func (s *Store) Bootstrap(ctx context.Context) error {
	_, err := s.db.Exec(ctx, schema)
	return err
}
