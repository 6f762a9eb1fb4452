package employees

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pontualhq/pontual/internal/domain"
	"github.com/pontualhq/pontual/internal/pkg/httputil"
)

// Pagination constants.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

var errorMappings = []httputil.ErrorMapping{
	{Error: ErrEmployeeNotFound, Status: http.StatusNotFound},
	{Error: ErrEmailExists, Status: http.StatusConflict},
	{Error: ErrAlreadyInactive, Status: http.StatusConflict},
	{Error: ErrWeakPassword, Status: http.StatusBadRequest},
}

// Handler handles HTTP requests for the employees module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new employees handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers admin-only employee routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/employees", func(r chi.Router) {
		r.Get("/", h.List)
		r.Post("/", h.Create)
		r.Get("/departments", h.Departments)
		r.Get("/{id}", h.Get)
		r.Patch("/{id}", h.Update)
		r.Delete("/{id}", h.Deactivate)
		r.Post("/{id}/reactivate", h.Reactivate)
	})
}

// EmployeeResponse is the wire shape of an employee, without credentials.
type EmployeeResponse struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Role       domain.Role `json:"role"`
	Department string      `json:"department"`
	Position   string      `json:"position"`
	IsActive   bool        `json:"is_active"`
	HiredAt    string      `json:"hired_at,omitempty"`
}

// NewEmployeeResponse converts a domain employee.
func NewEmployeeResponse(e *domain.Employee) *EmployeeResponse {
	resp := &EmployeeResponse{
		ID:         e.ID,
		Name:       e.Name,
		Email:      e.Email,
		Role:       e.Role,
		Department: e.Department,
		Position:   e.Position,
		IsActive:   e.IsActive,
	}
	if e.HiredAt != nil {
		resp.HiredAt = e.HiredAt.Format("2006-01-02")
	}
	return resp
}

// CreateRequest represents the request body for registering an employee.
type CreateRequest struct {
	Name       string `json:"name" validate:"required,min=1,max=255"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
	Role       string `json:"role" validate:"omitempty,oneof=employee manager admin"`
	Department string `json:"department" validate:"max=255"`
	Position   string `json:"position" validate:"max=255"`
}

// Create handles POST /employees.
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

	role := domain.Role(req.Role)
	if role == "" {
		role = domain.RoleEmployee
	}

	employee, err := h.service.Create(r.Context(), CreateInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Role:       role,
		Department: req.Department,
		Position:   req.Position,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusCreated, NewEmployeeResponse(employee))
}

// Get handles GET /employees/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	employee, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.JSON(w, http.StatusOK, NewEmployeeResponse(employee))
}

// List handles GET /employees.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := Filter{
		Search: r.URL.Query().Get("search"),
		Limit:  DefaultListLimit,
	}

	if dept := r.URL.Query().Get("department"); dept != "" {
		filter.Department = &dept
	}
	if r.URL.Query().Get("include_inactive") == "true" {
		filter.IncludeInactive = true
	}

	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			httputil.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > MaxListLimit {
			parsed = MaxListLimit
		}
		filter.Limit = parsed
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			httputil.Error(w, http.StatusBadRequest, "offset must be a non-negative integer")
			return
		}
		filter.Offset = parsed
	}

	list, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	responses := make([]*EmployeeResponse, 0, len(list))
	for i := range list {
		responses = append(responses, NewEmployeeResponse(&list[i]))
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"employees": responses,
		"total":     total,
		"limit":     filter.Limit,
		"offset":    filter.Offset,
	})
}

// UpdateRequest represents the request body for a partial employee update.
type UpdateRequest struct {
	Name       *string `json:"name" validate:"omitempty,min=1,max=255"`
	Role       *string `json:"role" validate:"omitempty,oneof=employee manager admin"`
	Department *string `json:"department" validate:"omitempty,max=255"`
	Position   *string `json:"position" validate:"omitempty,max=255"`
	Password   *string `json:"password" validate:"omitempty,min=8"`
}

// Update handles PATCH /employees/{id}.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	input := UpdateInput{
		Name:       req.Name,
		Department: req.Department,
		Position:   req.Position,
		Password:   req.Password,
	}
	if req.Role != nil {
		role := domain.Role(*req.Role)
		input.Role = &role
	}

	employee, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), input)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	httputil.JSON(w, http.StatusOK, NewEmployeeResponse(employee))
}

// Deactivate handles DELETE /employees/{id}.
func (h *Handler) Deactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Reactivate handles POST /employees/{id}/reactivate.
func (h *Handler) Reactivate(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Reactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}

	employee, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.JSON(w, http.StatusOK, NewEmployeeResponse(employee))
}

// Departments handles GET /employees/departments.
func (h *Handler) Departments(w http.ResponseWriter, r *http.Request) {
	departments, err := h.service.Departments(r.Context())
	if err != nil {
		httputil.HandleError(r.Context(), w, err, errorMappings)
		return
	}
	httputil.JSON(w, http.StatusOK, map[string]interface{}{"departments": departments})
}
