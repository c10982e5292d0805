package http

import (
	"net/http"
	"time"

	"github.com/anvarDev14/davomatoriental/internal/model"
	"github.com/anvarDev14/davomatoriental/internal/stats"
)

type lessonResponse struct {
	ID       int64   `json:"id"`
	Subject  string  `json:"subject"`
	Room     *string `json:"room,omitempty"`
	Date     string  `json:"date"`
	StartsAt string  `json:"starts_at"`
	EndsAt   string  `json:"ends_at"`
	Status   string  `json:"status"`
}

func (s *Server) mapLesson(l model.Lesson, subjectName string) lessonResponse {
	loc := s.cfg.Location
	return lessonResponse{
		ID:       l.ID,
		Subject:  subjectName,
		Room:     l.Room,
		Date:     l.Date.In(loc).Format("2006-01-02"),
		StartsAt: l.ScheduledStart.In(loc).Format("15:04"),
		EndsAt:   l.ScheduledEnd.In(loc).Format("15:04"),
		Status:   string(l.Status),
	}
}

func (s *Server) studentProfile(w http.ResponseWriter, r *http.Request) (model.StudentProfile, bool) {
	p, _ := principalFromContext(r.Context())
	profile, err := s.store.GetStudentProfileByAccount(r.Context(), p.account.ID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return model.StudentProfile{}, false
	}
	return profile, true
}

func (s *Server) handleStudentProfile(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	profile, ok := s.studentProfile(w, r)
	if !ok {
		return
	}
	group, err := s.store.GetGroup(r.Context(), profile.GroupID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user":         mapAccount(p.account, p.role),
		"student_id":   profile.ID,
		"student_code": profile.StudentCode,
		"group": map[string]any{
			"id":        group.ID,
			"name":      group.Name,
			"direction": group.DirectionName,
			"course":    group.Course,
		},
	})
}

type studentLessonResponse struct {
	lessonResponse
	Teacher         string  `json:"teacher,omitempty"`
	IsMarked        bool    `json:"is_marked"`
	MarkStatus      *string `json:"mark_status,omitempty"`
	CanMark         bool    `json:"can_mark"`
	TimeRemaining   *int    `json:"time_remaining,omitempty"`
	AttendanceCount int     `json:"attendance_count"`
	TotalStudents   int     `json:"total_students"`
}

// handleStudentToday materializes today's lessons from the group's
// schedule and annotates each with the caller's marking state.
func (s *Server) handleStudentToday(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.studentProfile(w, r)
	if !ok {
		return
	}
	now := time.Now().In(s.cfg.Location)

	entries, err := s.store.ListGroupEntriesForDay(r.Context(), profile.GroupID, dayOfWeek(now))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := make([]studentLessonResponse, 0, len(entries))
	for _, entry := range entries {
		l, err := s.lessons.Materialize(r.Context(), entry, now)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		marked, err := s.store.CountAttendanceForLesson(r.Context(), l.ID)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		size, err := s.store.CountStudentsInGroup(r.Context(), l.GroupID)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		item := studentLessonResponse{
			lessonResponse:  s.mapLesson(l, entry.SubjectName),
			Teacher:         entry.TeacherName,
			CanMark:         s.lessons.CanMark(l, now),
			TimeRemaining:   s.lessons.TimeRemaining(l, now),
			AttendanceCount: marked,
			TotalStudents:   size,
		}
		rec, err := s.marker.RecordFor(r.Context(), l.ID, profile.ID)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		if rec != nil {
			item.IsMarked = true
			status := string(rec.Status)
			item.MarkStatus = &status
			item.CanMark = false
			item.TimeRemaining = nil
		}
		resp = append(resp, item)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStudentSchedule(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.studentProfile(w, r)
	if !ok {
		return
	}
	entries, err := s.store.ListScheduleEntries(r.Context(), &profile.GroupID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapScheduleEntries(entries))
}

func mapScheduleEntries(entries []model.ScheduleEntry) []map[string]any {
	resp := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, map[string]any{
			"id":          e.ID,
			"day_of_week": e.DayOfWeek,
			"starts_at":   model.MinutesToClock(e.StartMinutes),
			"ends_at":     model.MinutesToClock(e.EndMinutes),
			"group":       e.GroupName,
			"subject":     e.SubjectName,
			"teacher":     e.TeacherName,
			"room":        e.Room,
		})
	}
	return resp
}

func (s *Server) handleStudentStats(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.studentProfile(w, r)
	if !ok {
		return
	}
	overview, err := s.stats.StudentOverview(r.Context(), profile)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (s *Server) handleStudentSubjectStats(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.studentProfile(w, r)
	if !ok {
		return
	}
	subjects, err := s.stats.StudentSubjects(r.Context(), profile)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if subjects == nil {
		subjects = []stats.SubjectOverview{}
	}
	writeJSON(w, http.StatusOK, subjects)
}

func (s *Server) handleStudentHistory(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.studentProfile(w, r)
	if !ok {
		return
	}
	items, err := s.marker.History(r.Context(), profile.ID, parseLimit(r, 50))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(items))
	for _, item := range items {
		resp = append(resp, map[string]any{
			"lesson_id": item.Record.LessonID,
			"date":      item.LessonDate.Format("2006-01-02"),
			"subject":   item.SubjectName,
			"status":    string(item.Record.Status),
			"marked_at": item.Record.MarkedAt,
			"marked_by": string(item.Record.MarkedBy),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStudentMark(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.studentProfile(w, r)
	if !ok {
		return
	}
	lessonID, err := pathID(r, "lessonID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_lesson_id")
		return
	}
	result, err := s.marker.SelfMark(r.Context(), profile, lessonID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"lesson_id":      result.Record.LessonID,
		"status":         string(result.Record.Status),
		"marked_at":      result.Record.MarkedAt,
		"marked_by":      string(result.Record.MarkedBy),
		"already_marked": result.AlreadyMarked,
	})
}
