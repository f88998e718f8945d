package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"marketplace/internal/devhub"
	"marketplace/internal/queue"
	"marketplace/internal/services"
	"marketplace/internal/users"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.status != nil {
		writeJSON(w, http.StatusOK, s.status(r.Context()))
		return
	}
	writeJSON(w, http.StatusOK, DaemonStatus{Running: true, PID: os.Getpid()})
}

func (s *Server) handleSearchApps(w http.ResponseWriter, r *http.Request) {
	results, err := s.hub.SearchApps(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	suggestions, err := s.hub.Suggestions(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, _ := strconv.Atoi(query.Get("page"))
	res, err := s.hub.Dashboard(r.Context(), userFrom(r.Context()), query.Get("sort"), page)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, FromDashboard(res))
}

func (s *Server) handleLicenses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, devhub.Licenses())
}

func (s *Server) handleCheckPayPal(w http.ResponseWriter, r *http.Request) {
	res, err := s.hub.CheckPayPal(r.Context(), userFrom(r.Context()), r.URL.Query().Get("email"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	user := userFrom(r.Context())
	switch {
	case user == nil:
		s.fail(w, r, services.Wrap(services.ErrUnauthenticated, "api", "tasks", "login required", nil))
		return false
	case !user.IsAdmin:
		s.fail(w, r, services.Wrap(services.ErrForbidden, "api", "tasks", "admin only", nil))
		return false
	case s.tasks == nil:
		s.fail(w, r, services.Wrap(services.ErrNotFound, "api", "tasks", "task queue not attached", nil))
		return false
	}
	return true
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		if strings.TrimSpace(value) == "" {
			continue
		}
		status, ok := queue.ParseStatus(value)
		if !ok {
			s.fail(w, r, services.Wrap(services.ErrValidation, "api", "tasks", "unknown status "+value, nil))
			return
		}
		statuses = append(statuses, status)
	}
	items, err := s.tasks.List(r.Context(), statuses...)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TaskListResponse{Items: items})
}

func (s *Server) handleTask(w http.ResponseWriter, r *http.Request) {
	if !s.requireAdmin(w, r) {
		return
	}
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	task, err := s.tasks.Describe(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if task == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "task not found"})
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r.Context())
	payment, err := users.UserData(r.Context(), s.hub.Store(), user)
	if err != nil {
		s.fail(w, r, services.Wrap(services.ErrTransient, "api", "current user", "load preapproval", err))
		return
	}
	out := CurrentUser{Payment: payment}
	if user != nil {
		out.ID = user.ID
		out.Name = user.Name()
		out.ProfileURL = users.ProfilePath(user)
		out.ProfileLink = users.UserLink(user)
		out.EmailLink = users.EmailLink(user.Email, "")
	}
	writeJSON(w, http.StatusOK, out)
}
