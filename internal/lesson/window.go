package lesson

import (
	"time"

	"github.com/anvarDev14/davomatoriental/internal/model"
)

// CanMark reports whether self-marking is allowed at the given instant.
// The window is anchored to the scheduled start even when the lesson was
// opened early, so nobody can mark before the lesson nominally begins.
func (s *Service) CanMark(l model.Lesson, now time.Time) bool {
	if l.Status != model.LessonOpen {
		return false
	}
	if now.Before(l.ScheduledStart) {
		return false
	}
	return !now.After(l.ScheduledStart.Add(s.cfg.MarkWindow))
}

// MarkStatus decides present vs late for a self-mark.
func (s *Service) MarkStatus(l model.Lesson, now time.Time) model.AttendanceStatus {
	if now.After(l.ScheduledStart.Add(s.cfg.LateThreshold)) {
		return model.AttendanceLate
	}
	return model.AttendancePresent
}

// TimeRemaining returns whole seconds left in the marking window, nil
// when marking is not currently possible.
func (s *Service) TimeRemaining(l model.Lesson, now time.Time) *int {
	if !s.CanMark(l, now) {
		return nil
	}
	seconds := int(l.ScheduledStart.Add(s.cfg.MarkWindow).Sub(now).Seconds())
	return &seconds
}
