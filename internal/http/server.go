// Package http exposes the data layer to the dashboard UI. Handlers are
// thin: they validate, call the façade, and translate the error taxonomy to
// status codes. No handler talks to a store directly.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/veo1flow-25/teman-cors/internal/audit"
	"github.com/veo1flow-25/teman-cors/internal/auth"
	"github.com/veo1flow-25/teman-cors/internal/config"
	"github.com/veo1flow-25/teman-cors/internal/errs"
	"github.com/veo1flow-25/teman-cors/internal/export"
	"github.com/veo1flow-25/teman-cors/internal/model"
	"github.com/veo1flow-25/teman-cors/internal/monitor"
	"github.com/veo1flow-25/teman-cors/internal/repository"
	"github.com/veo1flow-25/teman-cors/internal/settings"
)

type Server struct {
	cfg      config.Config
	reports  *repository.Repository
	auth     *auth.Service
	sessions *auth.Sessions
	audit    *audit.Pipeline
	settings *settings.Manager
	monitor  *monitor.Monitor
}

func NewServer(cfg config.Config, reports *repository.Repository, authService *auth.Service, sessions *auth.Sessions, pipeline *audit.Pipeline, settingsManager *settings.Manager, connMonitor *monitor.Monitor) *Server {
	return &Server{
		cfg:      cfg,
		reports:  reports,
		auth:     authService,
		sessions: sessions,
		audit:    pipeline,
		settings: settingsManager,
		monitor:  connMonitor,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/status", s.handleStatus)

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/reset-request", s.handleResetRequest)
	r.Post("/auth/reset-confirm", s.handleResetConfirm)
	r.With(s.authMiddleware).Post("/auth/logout", s.handleLogout)

	r.Route("/reports", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/{kind}/{year}", s.handleGetReport)
		r.Put("/{kind}/{year}", s.handlePutReport)
		r.With(s.requireAdmin).Delete("/{kind}/{year}", s.handleDeleteReport)
	})

	r.With(s.authMiddleware).Post("/export/csv", s.handleExportCSV)
	r.With(s.authMiddleware, s.requireAdmin).Get("/audit", s.handleListAudit)

	r.Route("/users", func(r chi.Router) {
		r.Use(s.authMiddleware, s.requireAdmin)
		r.Get("/", s.handleListUsers)
		r.Get("/stats", s.handleUserStats)
		r.Post("/{userID}/role", s.handleUpdateRole)
		r.Post("/{userID}/status", s.handleUpdateStatus)
		r.Delete("/{userID}", s.handleDeleteUser)
	})

	r.Route("/settings", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/", s.handleGetSettings)
		r.With(s.requireAdmin).Post("/years", s.handleAddYear)
		r.With(s.requireAdmin).Post("/active-year", s.handleSetActiveYear)
		r.With(s.requireAdmin).Post("/maintenance", s.handleToggleMaintenance)
	})

	return r
}

// --- middleware ---

type contextKey string

const claimsKey contextKey = "claims"

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if len(header) < 8 || header[:7] != "Bearer " {
			writeError(w, http.StatusUnauthorized, "missing_token")
			return
		}
		claims, err := s.sessions.Verify(r.Context(), header[7:])
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid_token")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFrom(r.Context())
		if !ok || !claims.Role.IsAdmin() {
			writeError(w, http.StatusForbidden, "admin_required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func claimsFrom(ctx context.Context) (auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(auth.Claims)
	return claims, ok
}

// --- connectivity ---

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	state := s.monitor.Probe(r.Context())
	writeJSON(w, http.StatusOK, map[string]model.ConnectivityState{"state": state})
}

// --- auth ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string            `json:"token"`
	User  model.UserProfile `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing_credentials")
		return
	}

	user, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeAuthFailure(w, err)
		return
	}

	token, err := s.sessions.Issue(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}
	s.audit.Record(user.Email, "LOGIN", "User logged in")
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing_fields")
		return
	}

	user, err := s.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		s.writeAuthFailure(w, err)
		return
	}

	token, err := s.sessions.Issue(r.Context(), user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "token_error")
		return
	}
	s.audit.Record(user.Email, "REGISTER", "Account created")
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFrom(r.Context())
	if err := s.sessions.Terminate(r.Context(), claims.Email, claims.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "logout_failed")
		return
	}
	s.audit.Record(claims.Email, "LOGOUT", "User logged out")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := s.auth.RequestReset(r.Context(), req.Email); err != nil {
		s.writeAuthFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Email == "" || req.Token == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := s.auth.ConfirmReset(r.Context(), req.Email, req.Token, req.Password); err != nil {
		s.writeAuthFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeAuthFailure maps the error taxonomy: rejections carry a user-facing
// message, everything else is an opaque upstream failure.
func (s *Server) writeAuthFailure(w http.ResponseWriter, err error) {
	if message, ok := errs.IsRejection(err); ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"status": "error", "message": message})
		return
	}
	if errors.Is(err, errs.ErrUnreachable) {
		writeError(w, http.StatusBadGateway, "backend_unreachable")
		return
	}
	writeError(w, http.StatusInternalServerError, "server_error")
}

// --- reports ---

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

func (s *Server) reportParams(r *http.Request) (model.ReportKind, int, string, error) {
	kind := model.ReportKind(chi.URLParam(r, "kind"))
	if !model.ValidKind(kind) {
		return "", 0, "", fmt.Errorf("unknown report kind %q", kind)
	}
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return "", 0, "", fmt.Errorf("invalid year")
	}
	date := r.URL.Query().Get("date")
	if date != "" && !datePattern.MatchString(date) {
		return "", 0, "", fmt.Errorf("invalid date")
	}
	return kind, year, date, nil
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	kind, year, date, err := s.reportParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	data, err := s.reports.Get(r.Context(), kind, year, date)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "report_not_found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handlePutReport(w http.ResponseWriter, r *http.Request) {
	kind, year, date, err := s.reportParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}

	var payload json.RawMessage
	if err := decodeRaw(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return
	}

	// The local commit is the acknowledgment; remote legs run detached.
	if err := s.reports.Put(r.Context(), kind, year, date, payload); err != nil {
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}

	claims, _ := claimsFrom(r.Context())
	s.audit.Record(claims.Email, "SAVE_REPORT", model.ReportID(kind, year, date))
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	kind, year, date, err := s.reportParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if err := s.reports.Delete(r.Context(), kind, year, date); err != nil {
		writeError(w, http.StatusInternalServerError, "delete_failed")
		return
	}
	claims, _ := claimsFrom(r.Context())
	s.audit.Record(claims.Email, "DELETE_REPORT", model.ReportID(kind, year, date))
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// --- export ---

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Filename string          `json:"filename"`
		Headers  []string        `json:"headers"`
		Rows     [][]interface{} `json:"rows"`
	}
	if err := decodeJSON(r, &req); err != nil || len(req.Headers) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if req.Filename == "" {
		req.Filename = "export"
	}
	w.Header().Set("Content-Type", "text/csv;charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", req.Filename+".csv"))
	_ = export.WriteCSV(w, req.Headers, req.Rows)
}

// --- audit ---

func (s *Server) handleListAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := s.audit.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if entries == nil {
		entries = []model.AuditLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- user management ---

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.auth.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	if users == nil {
		users = []model.UserProfile{}
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleUserStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.auth.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role model.Role `json:"role"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	userID := chi.URLParam(r, "userID")
	if err := s.auth.UpdateRole(r.Context(), userID, req.Role); err != nil {
		s.writeAdminFailure(w, err)
		return
	}
	claims, _ := claimsFrom(r.Context())
	s.audit.Record(claims.Email, "UPDATE_ROLE", fmt.Sprintf("Set role of %s to %s", userID, req.Role))
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status model.UserStatus `json:"status"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	userID := chi.URLParam(r, "userID")
	if err := s.auth.UpdateStatus(r.Context(), userID, req.Status); err != nil {
		s.writeAdminFailure(w, err)
		return
	}
	claims, _ := claimsFrom(r.Context())
	s.audit.Record(claims.Email, "UPDATE_STATUS", fmt.Sprintf("Set status of %s to %s", userID, req.Status))
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := s.auth.DeleteUser(r.Context(), userID); err != nil {
		s.writeAdminFailure(w, err)
		return
	}
	claims, _ := claimsFrom(r.Context())
	s.audit.Record(claims.Email, "DELETE_USER", fmt.Sprintf("Deleted user %s", userID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) writeAdminFailure(w http.ResponseWriter, err error) {
	if message, ok := errs.IsRejection(err); ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "message": message})
		return
	}
	if errors.Is(err, errs.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user_not_found")
		return
	}
	writeError(w, http.StatusInternalServerError, "server_error")
}

// --- settings ---

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	current, err := s.settings.Get(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error")
		return
	}
	writeJSON(w, http.StatusOK, current)
}

func (s *Server) handleAddYear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Year int `json:"year"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Year == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	claims, _ := claimsFrom(r.Context())
	updated, err := s.settings.AddYear(r.Context(), req.Year, claims.Email)
	if err != nil {
		s.writeAdminFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleSetActiveYear(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Year int `json:"year"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Year == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	claims, _ := claimsFrom(r.Context())
	updated, err := s.settings.SetActiveYear(r.Context(), req.Year, claims.Email)
	if err != nil {
		s.writeAdminFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleToggleMaintenance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request")
		return
	}
	claims, _ := claimsFrom(r.Context())
	updated, err := s.settings.ToggleMaintenance(r.Context(), req.Enabled, claims.Email)
	if err != nil {
		s.writeAdminFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// --- helpers ---

func decodeJSON(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(out)
}

func decodeRaw(r *http.Request, out *json.RawMessage) error {
	return json.NewDecoder(r.Body).Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
