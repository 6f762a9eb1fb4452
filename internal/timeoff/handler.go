package timeoff

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
	{Error: ErrAbsenceNotFound, Status: http.StatusNotFound},
	{Error: ErrVacationNotFound, Status: http.StatusNotFound},
	{Error: ErrInvalidPeriod, Status: http.StatusBadRequest},
	{Error: ErrAlreadyDecided, Status: http.StatusConflict},
	{Error: ErrOverlappingLeave, Status: http.StatusConflict},
}

// Handler handles HTTP requests for the time-off module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new time-off handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers routes for the authenticated employee.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/vacations", func(r chi.Router) {
		r.Get("/", h.ListOwnVacations)
		r.Post("/", h.RequestVacation)
	})
	r.Get("/absences", h.ListOwnAbsences)
}

// RegisterManagerRoutes registers manager/admin routes.
func (h *Handler) RegisterManagerRoutes(r chi.Router) {
	r.Get("/vacations/pending", h.ListPendingVacations)
	r.Post("/vacations/{id}/approve", h.Approve)
	r.Post("/vacations/{id}/reject", h.Reject)

	r.Route("/employees/{id}/absences", func(r chi.Router) {
		r.Get("/", h.ListAbsences)
		r.Post("/", h.RecordAbsence)
	})
	r.Post("/absences/{id}/justify", h.JustifyAbsence)
	r.Delete("/absences/{id}", h.DeleteAbsence)
}

// VacationResponse is the wire shape of a vacation request.
type VacationResponse struct {
	ID         string                `json:"id"`
	EmployeeID string                `json:"employee_id"`
	StartDate  string                `json:"start_date"`
	EndDate    string                `json:"end_date"`
	Status     domain.VacationStatus `json:"status"`
	DecidedBy  string                `json:"decided_by,omitempty"`
	DecidedAt  *time.Time            `json:"decided_at,omitempty"`
}

// NewVacationResponse converts a domain vacation.
func NewVacationResponse(v *domain.Vacation) *VacationResponse {
	return &VacationResponse{
		ID:         v.ID,
		EmployeeID: v.EmployeeID,
		StartDate:  v.StartDate.Format("2006-01-02"),
		EndDate:    v.EndDate.Format("2006-01-02"),
		Status:     v.Status,
		DecidedBy:  v.DecidedBy,
		DecidedAt:  v.DecidedAt,
	}
}

// AbsenceResponse is the wire shape of an absence.
type AbsenceResponse struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	Reason     string `json:"reason"`
	Justified  bool   `json:"justified"`
}

// NewAbsenceResponse converts a domain absence.
func NewAbsenceResponse(a *domain.Absence) *AbsenceResponse {
	return &AbsenceResponse{
		ID:         a.ID,
		EmployeeID: a.EmployeeID,
		Date:       a.Date.Format("2006-01-02"),
		Reason:     a.Reason,
		Justified:  a.Justified,
	}
}

// RequestVacationRequest represents the request body for a vacation request.
type RequestVacationRequest struct {
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// RequestVacation handles POST /vacations.
func (h *Handler) RequestVacation(w http.ResponseWriter, r *http.Request) {
	var req RequestVacationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	start, _ := time.Parse("2006-01-02", req.StartDate)
	end, _ := time.Parse("2006-01-02", req.EndDate)

	vacation, err := h.service.RequestVacation(r.Context(), httputil.GetUserID(r.Context()), start, end)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusCreated, NewVacationResponse(vacation))
}

// ListOwnVacations handles GET /vacations.
func (h *Handler) ListOwnVacations(w http.ResponseWriter, r *http.Request) {
	employeeID := httputil.GetUserID(r.Context())
	h.listVacations(w, r, VacationFilter{EmployeeID: &employeeID})
}

// ListPendingVacations handles GET /vacations/pending.
func (h *Handler) ListPendingVacations(w http.ResponseWriter, r *http.Request) {
	status := domain.VacationPending
	h.listVacations(w, r, VacationFilter{Status: &status})
}

func (h *Handler) listVacations(w http.ResponseWriter, r *http.Request, filter VacationFilter) {
	vacations, err := h.service.ListVacations(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	responses := make([]*VacationResponse, 0, len(vacations))
	for i := range vacations {
		responses = append(responses, NewVacationResponse(&vacations[i]))
	}
	httputil.JSON(w, http.StatusOK, map[string]interface{}{"vacations": responses})
}

// Approve handles POST /vacations/{id}/approve.
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

// Reject handles POST /vacations/{id}/reject.
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, approve bool) {
	vacation, err := h.service.Decide(r.Context(), chi.URLParam(r, "id"), httputil.GetUserID(r.Context()), approve)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.JSON(w, http.StatusOK, NewVacationResponse(vacation))
}

// RecordAbsenceRequest represents the request body for recording an absence.
type RecordAbsenceRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Reason    string `json:"reason" validate:"max=500"`
	Justified bool   `json:"justified"`
}

// RecordAbsence handles POST /employees/{id}/absences.
func (h *Handler) RecordAbsence(w http.ResponseWriter, r *http.Request) {
	var req RecordAbsenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	date, _ := time.Parse("2006-01-02", req.Date)
	absence, err := h.service.RecordAbsence(r.Context(), chi.URLParam(r, "id"), date, req.Reason, req.Justified)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusCreated, NewAbsenceResponse(absence))
}

// ListOwnAbsences handles GET /absences.
func (h *Handler) ListOwnAbsences(w http.ResponseWriter, r *http.Request) {
	h.listAbsences(w, r, httputil.GetUserID(r.Context()))
}

// ListAbsences handles GET /employees/{id}/absences.
func (h *Handler) ListAbsences(w http.ResponseWriter, r *http.Request) {
	h.listAbsences(w, r, chi.URLParam(r, "id"))
}

func (h *Handler) listAbsences(w http.ResponseWriter, r *http.Request, employeeID string) {
	to := time.Now().AddDate(0, 0, 1)
	from := to.AddDate(-1, 0, 0)

	if f := r.URL.Query().Get("from"); f != "" {
		parsed, err := time.Parse("2006-01-02", f)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "from must be YYYY-MM-DD")
			return
		}
		from = parsed
	}
	if t := r.URL.Query().Get("to"); t != "" {
		parsed, err := time.Parse("2006-01-02", t)
		if err != nil {
			httputil.Error(w, http.StatusBadRequest, "to must be YYYY-MM-DD")
			return
		}
		to = parsed.AddDate(0, 0, 1)
	}

	absences, err := h.service.ListAbsences(r.Context(), employeeID, from, to)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	responses := make([]*AbsenceResponse, 0, len(absences))
	for i := range absences {
		responses = append(responses, NewAbsenceResponse(&absences[i]))
	}
	httputil.JSON(w, http.StatusOK, map[string]interface{}{"absences": responses})
}

// JustifyAbsenceRequest represents the request body for justifying an absence.
type JustifyAbsenceRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// JustifyAbsence handles POST /absences/{id}/justify.
func (h *Handler) JustifyAbsence(w http.ResponseWriter, r *http.Request) {
	var req JustifyAbsenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	absence, err := h.service.JustifyAbsence(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.JSON(w, http.StatusOK, NewAbsenceResponse(absence))
}

// DeleteAbsence handles DELETE /absences/{id}.
func (h *Handler) DeleteAbsence(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAbsence(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
