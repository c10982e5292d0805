package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/anvarDev14/davomatoriental/internal/model"
)

const accountColumns = `id, telegram_id, full_name, username, photo_url, role, created_at, updated_at`

func scanAccount(row pgx.Row) (model.Account, error) {
	var account model.Account
	err := row.Scan(
		&account.ID,
		&account.TelegramID,
		&account.FullName,
		&account.Username,
		&account.PhotoURL,
		&account.Role,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Account{}, model.ErrNotFound
	}
	return account, err
}

func (s *Store) GetAccountByTelegramID(ctx context.Context, telegramID int64) (model.Account, error) {
	return scanAccount(s.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE telegram_id = $1
	`, telegramID))
}

func (s *Store) GetAccountByID(ctx context.Context, id int64) (model.Account, error) {
	return scanAccount(s.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
	`, id))
}

// GetAccountByIDForUpdate locks the row for the rest of the transaction;
// registration uses it so two concurrent registrations serialize.
func (s *Store) GetAccountByIDForUpdate(ctx context.Context, id int64) (model.Account, error) {
	return scanAccount(s.db.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM accounts
		WHERE id = $1
		FOR UPDATE
	`, id))
}

// UpsertAccountIdentity creates the account on first contact (in the
// unregistered state) and refreshes the display fields on later logins.
func (s *Store) UpsertAccountIdentity(ctx context.Context, identity model.Identity) (model.Account, error) {
	return scanAccount(s.db.QueryRow(ctx, `
		INSERT INTO accounts (telegram_id, full_name, username, photo_url)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		ON CONFLICT (telegram_id) DO UPDATE SET
			full_name  = EXCLUDED.full_name,
			username   = EXCLUDED.username,
			photo_url  = EXCLUDED.photo_url,
			updated_at = now()
		RETURNING `+accountColumns+`
	`, identity.TelegramID, identity.FullName(), identity.Username, identity.PhotoURL))
}

func (s *Store) SetAccountRole(ctx context.Context, accountID int64, role model.Role) error {
	_, err := s.db.Exec(ctx, `
		UPDATE accounts SET role = $1, updated_at = now() WHERE id = $2
	`, role, accountID)
	return err
}

func (s *Store) SetAccountFullName(ctx context.Context, accountID int64, fullName string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE accounts SET full_name = $1, updated_at = now() WHERE id = $2
	`, fullName, accountID)
	return err
}

func (s *Store) CreateStudentProfile(ctx context.Context, accountID, groupID int64, studentCode *string) (model.StudentProfile, error) {
	var profile model.StudentProfile
	err := s.db.QueryRow(ctx, `
		INSERT INTO student_profiles (account_id, group_id, student_code)
		VALUES ($1, $2, $3)
		RETURNING id, account_id, group_id, student_code, created_at
	`, accountID, groupID, studentCode).Scan(
		&profile.ID, &profile.AccountID, &profile.GroupID, &profile.StudentCode, &profile.CreatedAt,
	)
	if isUniqueViolation(err) {
		return model.StudentProfile{}, model.ErrAlreadyRegistered
	}
	return profile, err
}

func (s *Store) CreateTeacherProfile(ctx context.Context, accountID int64, department string, employeeCode *string) (model.TeacherProfile, error) {
	var profile model.TeacherProfile
	err := s.db.QueryRow(ctx, `
		INSERT INTO teacher_profiles (account_id, department, employee_code)
		VALUES ($1, $2, $3)
		RETURNING id, account_id, employee_code, department, created_at
	`, accountID, department, employeeCode).Scan(
		&profile.ID, &profile.AccountID, &profile.EmployeeCode, &profile.Department, &profile.CreatedAt,
	)
	if isUniqueViolation(err) {
		return model.TeacherProfile{}, model.ErrAlreadyRegistered
	}
	return profile, err
}

func (s *Store) GetStudentProfileByAccount(ctx context.Context, accountID int64) (model.StudentProfile, error) {
	var profile model.StudentProfile
	err := s.db.QueryRow(ctx, `
		SELECT id, account_id, group_id, student_code, created_at
		FROM student_profiles
		WHERE account_id = $1
	`, accountID).Scan(
		&profile.ID, &profile.AccountID, &profile.GroupID, &profile.StudentCode, &profile.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.StudentProfile{}, model.ErrNotFound
	}
	return profile, err
}

func (s *Store) GetStudentProfileByID(ctx context.Context, studentID int64) (model.StudentProfile, error) {
	var profile model.StudentProfile
	err := s.db.QueryRow(ctx, `
		SELECT id, account_id, group_id, student_code, created_at
		FROM student_profiles
		WHERE id = $1
	`, studentID).Scan(
		&profile.ID, &profile.AccountID, &profile.GroupID, &profile.StudentCode, &profile.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.StudentProfile{}, model.ErrNotFound
	}
	return profile, err
}

func (s *Store) GetTeacherProfileByAccount(ctx context.Context, accountID int64) (model.TeacherProfile, error) {
	var profile model.TeacherProfile
	err := s.db.QueryRow(ctx, `
		SELECT id, account_id, employee_code, department, created_at
		FROM teacher_profiles
		WHERE account_id = $1
	`, accountID).Scan(
		&profile.ID, &profile.AccountID, &profile.EmployeeCode, &profile.Department, &profile.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.TeacherProfile{}, model.ErrNotFound
	}
	return profile, err
}

func (s *Store) GetTeacherProfileByID(ctx context.Context, teacherID int64) (model.TeacherProfile, error) {
	var profile model.TeacherProfile
	err := s.db.QueryRow(ctx, `
		SELECT id, account_id, employee_code, department, created_at
		FROM teacher_profiles
		WHERE id = $1
	`, teacherID).Scan(
		&profile.ID, &profile.AccountID, &profile.EmployeeCode, &profile.Department, &profile.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.TeacherProfile{}, model.ErrNotFound
	}
	return profile, err
}

// TeacherDisplayName resolves a teacher profile id to the account's
// display name, empty when the profile is missing.
func (s *Store) TeacherDisplayName(ctx context.Context, teacherID int64) (string, error) {
	var name string
	err := s.db.QueryRow(ctx, `
		SELECT a.full_name
		FROM teacher_profiles t
		JOIN accounts a ON a.id = t.account_id
		WHERE t.id = $1
	`, teacherID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return name, err
}
