package http

import (
	"context"
	"net/http"
	"time"

	"github.com/anvarDev14/davomatoriental/internal/model"
)

func (s *Server) teacherProfile(w http.ResponseWriter, r *http.Request) (model.TeacherProfile, bool) {
	p, _ := principalFromContext(r.Context())
	profile, err := s.store.GetTeacherProfileByAccount(r.Context(), p.account.ID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return model.TeacherProfile{}, false
	}
	return profile, true
}

func (s *Server) handleTeacherProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	profile, ok := s.teacherProfile(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":          mapAccount(p.account, p.role),
		"teacher_id":    profile.ID,
		"department":    profile.Department,
		"employee_code": profile.EmployeeCode,
	})
}

type teacherLessonResponse struct {
	lessonResponse
	Group       string `json:"group"`
	MarkedCount int    `json:"marked_count"`
	GroupSize   int    `json:"group_size"`
}

// handleTeacherToday materializes the teacher's scheduled lessons for
// today so they can be opened with one tap.
func (s *Server) handleTeacherToday(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.teacherProfile(w, r)
	if !ok {
		return
	}
	now := time.Now().In(s.cfg.Location)

	entries, err := s.store.ListTeacherEntriesForDay(r.Context(), profile.ID, dayOfWeek(now))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := make([]teacherLessonResponse, 0, len(entries))
	for _, entry := range entries {
		l, err := s.lessons.Materialize(r.Context(), entry, now)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		item, err := s.mapTeacherLesson(r, l, entry.SubjectName, entry.GroupName)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) mapTeacherLesson(r *http.Request, l model.Lesson, subjectName, groupName string) (teacherLessonResponse, error) {
	marked, err := s.store.CountAttendanceForLesson(r.Context(), l.ID)
	if err != nil {
		return teacherLessonResponse{}, err
	}
	size, err := s.store.CountStudentsInGroup(r.Context(), l.GroupID)
	if err != nil {
		return teacherLessonResponse{}, err
	}
	return teacherLessonResponse{
		lessonResponse: s.mapLesson(l, subjectName),
		Group:          groupName,
		MarkedCount:    marked,
		GroupSize:      size,
	}, nil
}

type createLessonRequest struct {
	GroupID   int64   `json:"group_id" validate:"required"`
	SubjectID int64   `json:"subject_id" validate:"required"`
	Room      *string `json:"room"`
}

func (s *Server) handleTeacherCreateLesson(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.teacherProfile(w, r)
	if !ok {
		return
	}
	var req createLessonRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	l, err := s.lessons.CreateAdHoc(r.Context(), profile.ID, req.GroupID, req.SubjectID, req.Room)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	subject, err := s.store.GetSubject(r.Context(), l.SubjectID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.mapLesson(l, subject.Name))
}

func (s *Server) handleTeacherOpenLesson(w http.ResponseWriter, r *http.Request) {
	s.handleLessonTransition(w, r, s.lessons.Open)
}

func (s *Server) handleTeacherCloseLesson(w http.ResponseWriter, r *http.Request) {
	s.handleLessonTransition(w, r, s.lessons.Close)
}

func (s *Server) handleLessonTransition(
	w http.ResponseWriter,
	r *http.Request,
	transition func(ctx context.Context, lessonID, teacherID, actorAccountID int64) (model.Lesson, error),
) {
	p, _ := principalFromContext(r.Context())
	profile, ok := s.teacherProfile(w, r)
	if !ok {
		return
	}
	lessonID, err := pathID(r, "lessonID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_lesson_id")
		return
	}
	l, err := transition(r.Context(), lessonID, profile.ID, p.account.ID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	subject, err := s.store.GetSubject(r.Context(), l.SubjectID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.mapLesson(l, subject.Name))
}

func (s *Server) handleTeacherDeleteLesson(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.teacherProfile(w, r)
	if !ok {
		return
	}
	lessonID, err := pathID(r, "lessonID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_lesson_id")
		return
	}
	if err := s.lessons.Delete(r.Context(), lessonID, profile.ID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTeacherRoster(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.teacherProfile(w, r)
	if !ok {
		return
	}
	lessonID, err := pathID(r, "lessonID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_lesson_id")
		return
	}
	l, err := s.store.GetLesson(r.Context(), lessonID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if !l.OwnedBy(profile.ID) {
		writeError(w, http.StatusForbidden, "not_your_lesson")
		return
	}
	roster, err := s.store.LessonRoster(r.Context(), lessonID, l.GroupID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(roster))
	for _, row := range roster {
		item := map[string]any{
			"student_id":   row.StudentID,
			"full_name":    row.FullName,
			"student_code": row.StudentCode,
			"is_marked":    row.Status != nil,
		}
		if row.Status != nil {
			item["status"] = string(*row.Status)
			item["marked_at"] = row.MarkedAt
			item["marked_by"] = string(*row.MarkedBy)
		}
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTeacherMark(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.teacherProfile(w, r)
	if !ok {
		return
	}
	lessonID, err := pathID(r, "lessonID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_lesson_id")
		return
	}
	studentID, err := pathID(r, "studentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_student_id")
		return
	}
	status := r.URL.Query().Get("status")
	if status == "" {
		writeError(w, http.StatusBadRequest, "missing_status")
		return
	}
	rec, err := s.marker.TeacherMark(r.Context(), profile.ID, lessonID, studentID, model.AttendanceStatus(status))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lesson_id":  rec.LessonID,
		"student_id": rec.StudentID,
		"status":     string(rec.Status),
		"marked_at":  rec.MarkedAt,
		"marked_by":  string(rec.MarkedBy),
	})
}
