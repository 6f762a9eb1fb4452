package attendance

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pontualhq/pontual/internal/domain"
	"github.com/pontualhq/pontual/internal/pkg/httputil"
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrDuplicatePunch, Status: http.StatusConflict},
	{Error: ErrPunchInFuture, Status: http.StatusBadRequest},
	{Error: ErrInvalidPunchKind, Status: http.StatusBadRequest},
	{Error: ErrEmployeeNotFound, Status: http.StatusNotFound},
}

// Handler handles HTTP requests for the attendance module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new attendance handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers authenticated punch routes. Employees act on
// their own record; the manager routes take an explicit employee id.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/punches", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)
		r.Get("/summary", h.DaySummary)
	})
}

// RegisterManagerRoutes registers routes for viewing other employees.
func (h *Handler) RegisterManagerRoutes(r chi.Router) {
	r.Get("/employees/{id}/punches", h.ListForEmployee)
	r.Get("/employees/{id}/punches/summary", h.DaySummaryForEmployee)
}

// PunchResponse is the wire shape of a punch.
type PunchResponse struct {
	ID         string             `json:"id"`
	EmployeeID string             `json:"employee_id"`
	Kind       domain.PunchKind   `json:"kind"`
	At         time.Time          `json:"at"`
	Source     domain.PunchSource `json:"source"`
}

// NewPunchResponse converts a domain punch.
func NewPunchResponse(p *domain.Punch) *PunchResponse {
	return &PunchResponse{
		ID:         p.ID,
		EmployeeID: p.EmployeeID,
		Kind:       p.Kind,
		At:         p.At,
		Source:     p.Source,
	}
}

// CreateRequest represents the request body for registering a punch.
type CreateRequest struct {
	Kind string `json:"kind" validate:"required,oneof=entry break_start break_end exit"`
	// At is optional; absent means "now". Offline replays always carry it.
	At     *time.Time `json:"at"`
	Source string     `json:"source" validate:"omitempty,oneof=online offline_sync"`
}

// Create handles POST /punches.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	input := CreateInput{
		EmployeeID: httputil.GetUserID(r.Context()),
		Kind:       domain.PunchKind(req.Kind),
		Source:     domain.PunchSource(req.Source),
	}
	if req.At != nil {
		input.At = *req.At
	}

	punch, err := h.service.Create(r.Context(), input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusCreated, NewPunchResponse(punch))
}

// List handles GET /punches for the authenticated employee.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, httputil.GetUserID(r.Context()))
}

// ListForEmployee handles GET /employees/{id}/punches.
func (h *Handler) ListForEmployee(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, employeeID string) {
	from, to, ok := parseRange(w, r)
	if !ok {
		return
	}

	punches, err := h.service.List(r.Context(), employeeID, from, to)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	responses := make([]*PunchResponse, 0, len(punches))
	for i := range punches {
		responses = append(responses, NewPunchResponse(&punches[i]))
	}
	httputil.JSON(w, http.StatusOK, map[string]interface{}{"punches": responses})
}

// DaySummary handles GET /punches/summary for the authenticated employee.
func (h *Handler) DaySummary(w http.ResponseWriter, r *http.Request) {
	h.daySummary(w, r, httputil.GetUserID(r.Context()))
}

// DaySummaryForEmployee handles GET /employees/{id}/punches/summary.
func (h *Handler) DaySummaryForEmployee(w http.ResponseWriter, r *http.Request) {
	h.daySummary(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) daySummary(w http.ResponseWriter, r *http.Request, employeeID string) {
	day := time.Now()
	if d := r.URL.Query().Get("date"); d != "" {
		parsed, err := time.Parse("2006-01-02", d)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		day = parsed
	}

	summary, err := h.service.DaySummary(r.Context(), employeeID, day, time.UTC)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	punches := make([]*PunchResponse, 0, len(summary.Punches))
	for i := range summary.Punches {
		punches = append(punches, NewPunchResponse(&summary.Punches[i]))
	}
	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"date":           summary.Date,
		"punches":        punches,
		"worked_minutes": summary.WorkedMinutes,
		"complete":       summary.Complete,
	})
}

// parseRange reads the from/to query parameters, defaulting to the last
// 30 days.
func parseRange(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	to = time.Now()
	from = to.AddDate(0, 0, -30)

	if f := r.URL.Query().Get("from"); f != "" {
		parsed, err := time.Parse("2006-01-02", f)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return from, to, false
		}
		from = parsed
	}
	if t := r.URL.Query().Get("to"); t != "" {
		parsed, err := time.Parse("2006-01-02", t)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return from, to, false
		}
		// Inclusive end date.
		to = parsed.AddDate(0, 0, 1)
	}
	return from, to, true
}
