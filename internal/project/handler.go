package project

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"staffdesk/internal/auth"
)

var (
	nameRegex        = regexp.MustCompile(`^[A-Za-z_]+$`)
	descriptionRegex = regexp.MustCompile(`^[A-Za-z0-9\s.,;:!?()-]*$`)
	statusRegex      = regexp.MustCompile(`^[A-Za-z ]+$`)
)

const (
	dateLayout       = "2006-01-02"
	maxJSONBodyBytes = 1 << 20
)

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

type createRequest struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	StartDate   string      `json:"start_date"`
	EndDate     string      `json:"end_date"`
	Status      string      `json:"status"`
	Employees   []uuid.UUID `json:"employees"`
}

type updateRequest struct {
	Name        *string      `json:"name"`
	Description *string      `json:"description"`
	StartDate   *string      `json:"start_date"`
	EndDate     *string      `json:"end_date"`
	Status      *string      `json:"status"`
	Employees   *[]uuid.UUID `json:"employees"`
}

type response struct {
	ID            uuid.UUID   `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	StartDate     *string     `json:"start_date"`
	EndDate       *string     `json:"end_date"`
	Status        string      `json:"status"`
	EstimatedSpan int         `json:"estimated_span_in_days"`
	Employees     []uuid.UUID `json:"employees"`
}

func toResponse(p Project) response {
	employees := p.EmployeeIDs
	if employees == nil {
		employees = make([]uuid.UUID, 0)
	}
	return response{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		StartDate:     formatDate(p.StartDate),
		EndDate:       formatDate(p.EndDate),
		Status:        p.Status,
		EstimatedSpan: p.EstimatedSpan,
		Employees:     employees,
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body createRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	p := Project{
		Name:        strings.TrimSpace(body.Name),
		Description: strings.TrimSpace(body.Description),
		Status:      strings.TrimSpace(body.Status),
	}
	if msg := validateFields(p.Name, p.Description, p.Status); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	var ok bool
	if p.StartDate, ok = parseDate(w, body.StartDate); !ok {
		return
	}
	if p.EndDate, ok = parseDate(w, body.EndDate); !ok {
		return
	}
	if p.StartDate != nil && p.EndDate != nil && !p.EndDate.After(*p.StartDate) {
		writeError(w, http.StatusBadRequest, "end date must be after start date")
		return
	}
	p.EstimatedSpan = estimatedSpanDays(p.StartDate, p.EndDate, time.Now().UTC().Truncate(24*time.Hour))

	created, err := h.repo.Create(r.Context(), p)
	if err != nil {
		if errors.Is(err, ErrNameTaken) {
			writeError(w, http.StatusBadRequest, "this project name is already in use")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to create project")
		return
	}

	if len(body.Employees) > 0 {
		if err := h.repo.SetEmployees(r.Context(), created.ID, body.Employees); err != nil {
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to assign employees")
			return
		}
		created.EmployeeIDs = body.Employees
	}

	writeJSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) All(w http.ResponseWriter, r *http.Request) {
	projects, err := h.repo.List(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list projects")
		return
	}

	writeJSON(w, http.StatusOK, toResponses(projects))
}

func (h *Handler) Filter(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	projects, err := h.repo.Filter(
		r.Context(),
		strings.TrimSpace(query.Get("name")),
		strings.TrimSpace(query.Get("status")),
	)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to filter projects")
		return
	}

	writeJSON(w, http.StatusOK, toResponses(projects))
}

// Self lists the projects assigned to the calling employee.
func (h *Handler) Self(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authorization header is missing")
		return
	}

	projects, err := h.repo.ListForEmployee(r.Context(), identity.EmployeeID)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list assigned projects")
		return
	}

	writeJSON(w, http.StatusOK, toResponses(projects))
}

func (h *Handler) Specific(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	p, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to load project")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body updateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	p, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to load project")
		return
	}

	if body.Name != nil {
		p.Name = strings.TrimSpace(*body.Name)
	}
	if body.Description != nil {
		p.Description = strings.TrimSpace(*body.Description)
	}
	if body.Status != nil {
		p.Status = strings.TrimSpace(*body.Status)
	}
	if msg := validateFields(p.Name, p.Description, p.Status); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if body.StartDate != nil {
		if p.StartDate, ok = parseDate(w, *body.StartDate); !ok {
			return
		}
	}
	if body.EndDate != nil {
		if p.EndDate, ok = parseDate(w, *body.EndDate); !ok {
			return
		}
	}
	if p.StartDate != nil && p.EndDate != nil && !p.EndDate.After(*p.StartDate) {
		writeError(w, http.StatusBadRequest, "end date must be after start date")
		return
	}
	if body.StartDate != nil || body.EndDate != nil {
		p.EstimatedSpan = estimatedSpanDays(p.StartDate, p.EndDate, time.Now().UTC().Truncate(24*time.Hour))
	}

	if err := h.repo.Update(r.Context(), p); err != nil {
		switch {
		case errors.Is(err, ErrNameTaken):
			writeError(w, http.StatusBadRequest, "this project name is already in use")
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "project not found")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to update project")
		}
		return
	}

	if body.Employees != nil {
		if err := h.repo.SetEmployees(r.Context(), p.ID, *body.Employees); err != nil {
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to assign employees")
			return
		}
		p.EmployeeIDs = *body.Employees
	}

	writeJSON(w, http.StatusOK, toResponse(p))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "project not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete project")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"detail": "project deleted"})
}

func validateFields(name, description, status string) string {
	if !nameRegex.MatchString(name) {
		return "project name may only contain letters and underscores, with no spaces"
	}
	if !descriptionRegex.MatchString(description) {
		return "description may contain letters, numbers, spaces, and basic punctuation"
	}
	if status != "" && !statusRegex.MatchString(status) {
		return "status may only contain letters and spaces"
	}
	return ""
}

func parseDate(w http.ResponseWriter, value string) (*time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, true
	}

	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		writeError(w, http.StatusBadRequest, "dates must use the YYYY-MM-DD format")
		return nil, false
	}

	return &parsed, true
}

func formatDate(value *time.Time) *string {
	if value == nil {
		return nil
	}
	formatted := value.Format(dateLayout)
	return &formatted
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid project id")
		return uuid.Nil, false
	}
	return id, true
}

func toResponses(projects []Project) []response {
	out := make([]response, 0, len(projects))
	for _, p := range projects {
		out = append(out, toResponse(p))
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
