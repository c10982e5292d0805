package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/anvarDev14/davomatoriental/internal/model"
	"github.com/anvarDev14/davomatoriental/internal/stats"
)

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	now := time.Now().In(s.cfg.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.cfg.Location)
	totals, err := s.stats.PlatformTotals(r.Context(), today)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"students":       totals.Students,
		"teachers":       totals.Teachers,
		"groups":         totals.Groups,
		"lessons_today":  totals.LessonsToday,
		"marks_today":    totals.MarksToday,
		"open_lessons":   totals.OpenLessons,
		"closed_lessons": totals.ClosedLessons,
	})
}

// handleAdminReport returns the per-student attendance summary for a
// group over an optional date range.
func (s *Server) handleAdminReport(w http.ResponseWriter, r *http.Request) {
	groupID, err := queryID(r, "group_id")
	if err != nil || groupID == nil {
		writeError(w, http.StatusBadRequest, "missing_group")
		return
	}
	from, err := queryDate(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_from")
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_to")
		return
	}

	group, err := s.store.GetGroup(r.Context(), *groupID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	students, err := s.store.ListGroupStudents(r.Context(), *groupID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	lessons, err := s.store.ListLessonsForReport(r.Context(), *groupID, from, to)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	marks, err := s.store.ListMarksForReport(r.Context(), *groupID, from, to)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	type counts struct {
		present, late, absent, excused int
	}
	perStudent := make(map[int64]counts, len(students))
	for _, m := range marks {
		c := perStudent[m.StudentID]
		switch m.Status {
		case model.AttendancePresent:
			c.present++
		case model.AttendanceLate:
			c.late++
		case model.AttendanceAbsent:
			c.absent++
		case model.AttendanceExcused:
			c.excused++
		}
		perStudent[m.StudentID] = c
	}

	rows := make([]map[string]any, 0, len(students))
	for _, st := range students {
		c := perStudent[st.StudentID]
		attended := c.present + c.late
		rows = append(rows, map[string]any{
			"student_id":   st.StudentID,
			"full_name":    st.FullName,
			"student_code": st.StudentCode,
			"present":      c.present,
			"late":         c.late,
			"absent":       c.absent,
			"excused":      c.excused,
			"attended":     attended,
			"percentage":   stats.Percentage(attended, len(lessons)),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"group":         group.Name,
		"total_lessons": len(lessons),
		"students":      rows,
	})
}

// handleAdminExport streams the group attendance grid as an xlsx file.
func (s *Server) handleAdminExport(w http.ResponseWriter, r *http.Request) {
	groupID, err := queryID(r, "group_id")
	if err != nil || groupID == nil {
		writeError(w, http.StatusBadRequest, "missing_group")
		return
	}
	from, err := queryDate(r, "from")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_from")
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_to")
		return
	}

	payload, filename, err := s.reports.BuildGroupSheet(r.Context(), *groupID, from, to)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (s *Server) handleAdminGroupStudents(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathID(r, "groupID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_group_id")
		return
	}
	if _, err := s.store.GetGroup(r.Context(), groupID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	students, err := s.store.ListGroupStudents(r.Context(), groupID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(students))
	for _, st := range students {
		resp = append(resp, map[string]any{
			"student_id":   st.StudentID,
			"full_name":    st.FullName,
			"student_code": st.StudentCode,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type createDirectionRequest struct {
	Name      string  `json:"name" validate:"required"`
	ShortName *string `json:"short_name"`
}

func (s *Server) handleAdminCreateDirection(w http.ResponseWriter, r *http.Request) {
	var req createDirectionRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	d, err := s.store.CreateDirection(r.Context(), req.Name, req.ShortName)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         d.ID,
		"name":       d.Name,
		"short_name": d.ShortName,
	})
}

type createGroupRequest struct {
	Name        string `json:"name" validate:"required"`
	DirectionID int64  `json:"direction_id" validate:"required"`
	Course      int    `json:"course" validate:"min=1,max=6"`
}

func (s *Server) handleAdminCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	g, err := s.store.CreateGroup(r.Context(), req.Name, req.DirectionID, req.Course)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":           g.ID,
		"name":         g.Name,
		"direction_id": g.DirectionID,
		"course":       g.Course,
	})
}

func (s *Server) handleAdminListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := s.store.ListSubjects(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(subjects))
	for _, subject := range subjects {
		resp = append(resp, map[string]any{
			"id":         subject.ID,
			"name":       subject.Name,
			"short_name": subject.ShortName,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type createSubjectRequest struct {
	Name      string  `json:"name" validate:"required"`
	ShortName *string `json:"short_name"`
}

func (s *Server) handleAdminCreateSubject(w http.ResponseWriter, r *http.Request) {
	var req createSubjectRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	subject, err := s.store.CreateSubject(r.Context(), req.Name, req.ShortName)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         subject.ID,
		"name":       subject.Name,
		"short_name": subject.ShortName,
	})
}

func (s *Server) handleAdminAssignTeacher(w http.ResponseWriter, r *http.Request) {
	subjectID, err := pathID(r, "subjectID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_subject_id")
		return
	}
	teacherID, err := pathID(r, "teacherID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_teacher_id")
		return
	}
	if _, err := s.store.GetSubject(r.Context(), subjectID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if _, err := s.store.GetTeacherProfileByID(r.Context(), teacherID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if err := s.store.AssignSubjectTeacher(r.Context(), subjectID, teacherID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdminListSchedule(w http.ResponseWriter, r *http.Request) {
	groupID, err := queryID(r, "group_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_group")
		return
	}
	entries, err := s.store.ListScheduleEntries(r.Context(), groupID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapScheduleEntries(entries))
}

type createScheduleEntryRequest struct {
	GroupID   int64   `json:"group_id" validate:"required"`
	SubjectID int64   `json:"subject_id" validate:"required"`
	TeacherID *int64  `json:"teacher_id"`
	DayOfWeek int     `json:"day_of_week" validate:"min=0,max=6"`
	StartsAt  string  `json:"starts_at" validate:"required"`
	EndsAt    string  `json:"ends_at" validate:"required"`
	Room      *string `json:"room"`
}

func (s *Server) handleAdminCreateScheduleEntry(w http.ResponseWriter, r *http.Request) {
	var req createScheduleEntryRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	start, err := model.ParseClock(req.StartsAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_time")
		return
	}
	end, err := model.ParseClock(req.EndsAt)
	if err != nil || end <= start {
		writeError(w, http.StatusBadRequest, "invalid_time")
		return
	}
	if _, err := s.store.GetGroup(r.Context(), req.GroupID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if _, err := s.store.GetSubject(r.Context(), req.SubjectID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if req.TeacherID != nil {
		if _, err := s.store.GetTeacherProfileByID(r.Context(), *req.TeacherID); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
	}
	entry, err := s.store.CreateScheduleEntry(r.Context(), model.ScheduleEntry{
		GroupID:      req.GroupID,
		SubjectID:    req.SubjectID,
		TeacherID:    req.TeacherID,
		DayOfWeek:    req.DayOfWeek,
		StartMinutes: start,
		EndMinutes:   end,
		Room:         req.Room,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":          entry.ID,
		"day_of_week": entry.DayOfWeek,
		"starts_at":   model.MinutesToClock(entry.StartMinutes),
		"ends_at":     model.MinutesToClock(entry.EndMinutes),
	})
}

func (s *Server) handleAdminDeleteScheduleEntry(w http.ResponseWriter, r *http.Request) {
	entryID, err := pathID(r, "entryID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_entry_id")
		return
	}
	if err := s.store.DeactivateScheduleEntry(r.Context(), entryID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
