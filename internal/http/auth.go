package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/anvarDev14/davomatoriental/internal/model"
	"github.com/anvarDev14/davomatoriental/internal/repository"
	"github.com/anvarDev14/davomatoriental/internal/telegram"
)

type accountResponse struct {
	ID         int64   `json:"id"`
	TelegramID int64   `json:"telegram_id"`
	FullName   string  `json:"full_name"`
	Username   *string `json:"username,omitempty"`
	PhotoURL   *string `json:"photo_url,omitempty"`
	Role       string  `json:"role"`
}

func mapAccount(account model.Account, role model.Role) accountResponse {
	return accountResponse{
		ID:         account.ID,
		TelegramID: account.TelegramID,
		FullName:   account.FullName,
		Username:   account.Username,
		PhotoURL:   account.PhotoURL,
		Role:       string(role),
	}
}

type telegramAuthRequest struct {
	InitData string `json:"init_data" validate:"required"`
}

func (s *Server) handleTelegramAuth(w http.ResponseWriter, r *http.Request) {
	var req telegramAuthRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	identity, err := telegram.Verify(req.InitData, s.cfg.BotToken, time.Now(), s.cfg.InitDataMaxAge)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	account, err := s.store.UpsertAccountIdentity(r.Context(), identity)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	role := model.ResolveRole(account, s.adminIDs)

	token, _, err := s.sessions.Issue(r.Context(), account, role)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"user":  mapAccount(account, role),
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	writeJSON(w, http.StatusOK, mapAccount(p.account, p.role))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())
	if err := s.sessions.Revoke(r.Context(), p.token); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDirections(w http.ResponseWriter, r *http.Request) {
	directions, err := s.store.ListDirections(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(directions))
	for _, d := range directions {
		resp = append(resp, map[string]any{
			"id":         d.ID,
			"name":       d.Name,
			"short_name": d.ShortName,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	directionID, err := queryID(r, "direction_id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_direction")
		return
	}
	groups, err := s.store.ListGroups(r.Context(), directionID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	resp := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		resp = append(resp, map[string]any{
			"id":        g.ID,
			"name":      g.Name,
			"direction": g.DirectionName,
			"course":    g.Course,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

type registerStudentRequest struct {
	GroupID     int64   `json:"group_id" validate:"required"`
	FullName    string  `json:"full_name"`
	StudentCode *string `json:"student_code"`
}

func (s *Server) handleRegisterStudent(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())

	var req registerStudentRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if _, err := s.store.GetGroup(r.Context(), req.GroupID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	err := s.store.WithTx(r.Context(), func(tx *repository.Store) error {
		account, err := tx.GetAccountByIDForUpdate(r.Context(), p.account.ID)
		if err != nil {
			return err
		}
		if account.Role != model.RoleUnregistered {
			return model.ErrAlreadyRegistered
		}
		if _, err := tx.CreateStudentProfile(r.Context(), account.ID, req.GroupID, req.StudentCode); err != nil {
			return err
		}
		if name := strings.TrimSpace(req.FullName); name != "" {
			if err := tx.SetAccountFullName(r.Context(), account.ID, name); err != nil {
				return err
			}
		}
		return tx.SetAccountRole(r.Context(), account.ID, model.RoleStudent)
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	// The old session carries the pre-registration role; issue a new one.
	_ = s.sessions.Revoke(r.Context(), p.token)
	account, err := s.store.GetAccountByID(r.Context(), p.account.ID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	role := model.ResolveRole(account, s.adminIDs)
	token, _, err := s.sessions.Issue(r.Context(), account, role)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"token": token,
		"user":  mapAccount(account, role),
	})
}

type registerTeacherRequest struct {
	Department   string  `json:"department" validate:"required"`
	FullName     string  `json:"full_name"`
	EmployeeCode *string `json:"employee_code"`
}

func (s *Server) handleRegisterTeacher(w http.ResponseWriter, r *http.Request) {
	p, _ := principalFromContext(r.Context())

	var req registerTeacherRequest
	if err := s.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	err := s.store.WithTx(r.Context(), func(tx *repository.Store) error {
		account, err := tx.GetAccountByIDForUpdate(r.Context(), p.account.ID)
		if err != nil {
			return err
		}
		if account.Role != model.RoleUnregistered {
			return model.ErrAlreadyRegistered
		}
		if _, err := tx.CreateTeacherProfile(r.Context(), account.ID, req.Department, req.EmployeeCode); err != nil {
			return err
		}
		if name := strings.TrimSpace(req.FullName); name != "" {
			if err := tx.SetAccountFullName(r.Context(), account.ID, name); err != nil {
				return err
			}
		}
		return tx.SetAccountRole(r.Context(), account.ID, model.RoleTeacher)
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	_ = s.sessions.Revoke(r.Context(), p.token)
	account, err := s.store.GetAccountByID(r.Context(), p.account.ID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	role := model.ResolveRole(account, s.adminIDs)
	token, _, err := s.sessions.Issue(r.Context(), account, role)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"token": token,
		"user":  mapAccount(account, role),
	})
}
