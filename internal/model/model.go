package model

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleUnregistered Role = "unregistered"
	RoleStudent      Role = "student"
	RoleTeacher      Role = "teacher"
	RoleAdmin        Role = "admin"
)

type LessonStatus string

const (
	LessonPending LessonStatus = "pending"
	LessonOpen    LessonStatus = "open"
	LessonClosed  LessonStatus = "closed"
)

type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceLate    AttendanceStatus = "late"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceExcused AttendanceStatus = "excused"
)

type MarkedBy string

const (
	MarkedBySelf    MarkedBy = "self"
	MarkedByTeacher MarkedBy = "teacher"
)

// Identity is what the Telegram hand-off payload asserts about a user.
// It is verified, never stored as-is; accounts are joined on TelegramID.
type Identity struct {
	TelegramID int64
	FirstName  string
	LastName   string
	Username   string
	PhotoURL   string
}

func (i Identity) FullName() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// Account is the local record behind a Telegram identity. Role holds the
// stored role only (unregistered/student/teacher); admin is derived from
// the configured allow-list and never persisted.
type Account struct {
	ID         int64
	TelegramID int64
	FullName   string
	Username   *string
	PhotoURL   *string
	Role       Role
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ResolveRole maps an account to its effective role for a request.
func ResolveRole(account Account, adminIDs map[int64]struct{}) Role {
	if _, ok := adminIDs[account.TelegramID]; ok {
		return RoleAdmin
	}
	switch account.Role {
	case RoleStudent, RoleTeacher:
		return account.Role
	default:
		return RoleUnregistered
	}
}

type StudentProfile struct {
	ID          int64
	AccountID   int64
	GroupID     int64
	StudentCode *string
	CreatedAt   time.Time
}

type TeacherProfile struct {
	ID           int64
	AccountID    int64
	EmployeeCode *string
	Department   string
	CreatedAt    time.Time
}

type Direction struct {
	ID        int64
	Name      string
	ShortName *string
}

type Group struct {
	ID            int64
	Name          string
	DirectionID   int64
	Course        int
	DirectionName string
}

type Subject struct {
	ID        int64
	Name      string
	ShortName *string
}

// ScheduleEntry is the recurring weekly template a lesson derives from.
// Times are minutes since midnight in the deployment timezone;
// DayOfWeek is 0=Monday .. 6=Sunday.
type ScheduleEntry struct {
	ID           int64
	GroupID      int64
	SubjectID    int64
	TeacherID    *int64
	DayOfWeek    int
	StartMinutes int
	EndMinutes   int
	Room         *string
	Active       bool

	GroupName   string
	SubjectName string
	TeacherName string
}

// Lesson is one dated occurrence. It carries its own group/subject/
// teacher/times so ad hoc lessons need no schedule entry; schedule-derived
// lessons keep the entry reference for the daily-agenda unique key.
type Lesson struct {
	ID              int64
	ScheduleEntryID *int64
	GroupID         int64
	SubjectID       int64
	TeacherID       *int64
	Room            *string
	Date            time.Time
	ScheduledStart  time.Time
	ScheduledEnd    time.Time
	Status          LessonStatus
	OpenedAt        *time.Time
	ClosedAt        *time.Time
	CreatedAt       time.Time
}

func (l Lesson) OwnedBy(teacherID int64) bool {
	return l.TeacherID != nil && *l.TeacherID == teacherID
}

type AttendanceRecord struct {
	ID        int64
	LessonID  int64
	StudentID int64
	Status    AttendanceStatus
	MarkedAt  time.Time
	MarkedBy  MarkedBy
}

// MinutesToClock renders minutes-since-midnight as "HH:MM".
func MinutesToClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(value string) (int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, err
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}
