package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anvarDev14/davomatoriental/internal/attendance"
	"github.com/anvarDev14/davomatoriental/internal/config"
	"github.com/anvarDev14/davomatoriental/internal/lesson"
	"github.com/anvarDev14/davomatoriental/internal/model"
	"github.com/anvarDev14/davomatoriental/internal/report"
	"github.com/anvarDev14/davomatoriental/internal/repository"
	"github.com/anvarDev14/davomatoriental/internal/session"
	"github.com/anvarDev14/davomatoriental/internal/stats"
)

type Server struct {
	cfg      config.Config
	store    *repository.Store
	sessions *session.Manager
	lessons  *lesson.Service
	marker   *attendance.Service
	stats    *stats.Aggregator
	reports  *report.Builder
	validate *validator.Validate
	logger   *slog.Logger
	adminIDs map[int64]struct{}
}

func NewServer(
	cfg config.Config,
	store *repository.Store,
	sessions *session.Manager,
	lessons *lesson.Service,
	marker *attendance.Service,
	aggregator *stats.Aggregator,
	reports *report.Builder,
	logger *slog.Logger,
) *Server {
	return &Server{
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		lessons:  lessons,
		marker:   marker,
		stats:    aggregator,
		reports:  reports,
		validate: validator.New(),
		logger:   logger,
		adminIDs: cfg.AdminIDSet(),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/telegram", s.handleTelegramAuth)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/auth/me", s.handleMe)
		r.Post("/auth/logout", s.handleLogout)
		r.Post("/auth/register/student", s.handleRegisterStudent)
		r.Post("/auth/register/teacher", s.handleRegisterTeacher)

		// Registration pick lists are available before a role is set.
		r.Get("/directions", s.handleListDirections)
		r.Get("/groups", s.handleListGroups)

		r.Route("/student", func(r chi.Router) {
			r.Use(s.requireRole(model.RoleStudent))
			r.Get("/profile", s.handleStudentProfile)
			r.Get("/today", s.handleStudentToday)
			r.Get("/schedule", s.handleStudentSchedule)
			r.Get("/stats", s.handleStudentStats)
			r.Get("/stats/subjects", s.handleStudentSubjectStats)
		})
		r.Route("/attendance", func(r chi.Router) {
			r.Use(s.requireRole(model.RoleStudent))
			r.Post("/mark/{lessonID}", s.handleStudentMark)
			r.Get("/history", s.handleStudentHistory)
		})

		r.Route("/teacher", func(r chi.Router) {
			r.Use(s.requireRole(model.RoleTeacher))
			r.Get("/profile", s.handleTeacherProfile)
			r.Get("/today", s.handleTeacherToday)
			r.Post("/lesson/create", s.handleTeacherCreateLesson)
			r.Post("/lesson/{lessonID}/open", s.handleTeacherOpenLesson)
			r.Post("/lesson/{lessonID}/close", s.handleTeacherCloseLesson)
			r.Get("/lesson/{lessonID}/attendance", s.handleTeacherRoster)
			r.Post("/lesson/{lessonID}/mark/{studentID}", s.handleTeacherMark)
			r.Delete("/lesson/{lessonID}", s.handleTeacherDeleteLesson)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireRole(model.RoleAdmin))
			r.Get("/stats", s.handleAdminStats)
			r.Get("/attendance/report", s.handleAdminReport)
			r.Get("/attendance/export", s.handleAdminExport)
			r.Get("/directions", s.handleListDirections)
			r.Post("/directions", s.handleAdminCreateDirection)
			r.Get("/groups", s.handleListGroups)
			r.Post("/groups", s.handleAdminCreateGroup)
			r.Get("/groups/{groupID}/students", s.handleAdminGroupStudents)
			r.Get("/subjects", s.handleAdminListSubjects)
			r.Post("/subjects", s.handleAdminCreateSubject)
			r.Post("/subjects/{subjectID}/teachers/{teacherID}", s.handleAdminAssignTeacher)
			r.Get("/schedule", s.handleAdminListSchedule)
			r.Post("/schedule", s.handleAdminCreateScheduleEntry)
			r.Delete("/schedule/{entryID}", s.handleAdminDeleteScheduleEntry)
		})
	})

	return r
}

// Auth

type principal struct {
	account model.Account
	role    model.Role
	token   string
}

type principalKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		rec, err := s.sessions.Validate(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		account, err := s.store.GetAccountByID(r.Context(), rec.AccountID)
		if err != nil {
			_ = s.sessions.Revoke(r.Context(), token)
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		role := model.ResolveRole(account, s.adminIDs)
		if role != rec.Role {
			// The account's role changed after the session was issued;
			// force a fresh login so the client sees the new surface.
			_ = s.sessions.Revoke(r.Context(), token)
			writeError(w, http.StatusUnauthorized, "session_stale")
			return
		}
		ctx := context.WithValue(r.Context(), principalKey{}, principal{
			account: account,
			role:    role,
			token:   token,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principalFromContext(ctx context.Context) (principal, bool) {
	p, ok := ctx.Value(principalKey{}).(principal)
	return p, ok
}

func (s *Server) requireRole(role model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := principalFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing_token")
				return
			}
			if p.role != role {
				writeError(w, http.StatusForbidden, "forbidden")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Helpers

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func (s *Server) decodeJSON(r *http.Request, out any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return err
	}
	return s.validate.Struct(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// writeDomainError maps service errors onto the wire; anything unmapped
// is a 500 and gets logged.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidSignature):
		writeError(w, http.StatusUnauthorized, "invalid_init_data")
	case errors.Is(err, model.ErrExpired):
		writeError(w, http.StatusUnauthorized, "init_data_expired")
	case errors.Is(err, model.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "invalid_token")
	case errors.Is(err, model.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, "already_registered")
	case errors.Is(err, model.ErrNotAssigned):
		writeError(w, http.StatusForbidden, "not_assigned")
	case errors.Is(err, model.ErrAlreadyOpen):
		writeError(w, http.StatusConflict, "lesson_already_open")
	case errors.Is(err, model.ErrLessonClosed):
		writeError(w, http.StatusConflict, "lesson_closed")
	case errors.Is(err, model.ErrLessonNotOpen):
		writeError(w, http.StatusConflict, "lesson_not_open")
	case errors.Is(err, model.ErrLessonNotPending):
		writeError(w, http.StatusConflict, "lesson_not_pending")
	case errors.Is(err, model.ErrNotYourLesson):
		writeError(w, http.StatusForbidden, "not_your_lesson")
	case errors.Is(err, model.ErrNotInGroup):
		writeError(w, http.StatusForbidden, "not_in_group")
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, model.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, "invalid_status")
	default:
		s.logger.Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func queryID(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseLimit(r *http.Request, fallback int) int {
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

// dayOfWeek maps Go's Sunday-first weekday to the schedule's
// Monday-first convention.
func dayOfWeek(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
