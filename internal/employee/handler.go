package employee

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"staffdesk/internal/auth"
)

var (
	nameRegex  = regexp.MustCompile(`^[A-Za-z_]+$`)
	emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	repo *Repository
}

func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

type registerRequest struct {
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Email     string      `json:"email"`
	Password  string      `json:"password"`
	Projects  []uuid.UUID `json:"projects"`
}

// updateRequest carries partial updates; nil means "leave unchanged".
type updateRequest struct {
	FirstName *string      `json:"first_name"`
	LastName  *string      `json:"last_name"`
	Email     *string      `json:"email"`
	Password  *string      `json:"password"`
	Projects  *[]uuid.UUID `json:"projects"`
}

type response struct {
	ID         uuid.UUID   `json:"id"`
	FirstName  string      `json:"first_name"`
	LastName   string      `json:"last_name"`
	Email      string      `json:"email"`
	DateJoined string      `json:"date_joined"`
	Projects   []uuid.UUID `json:"projects"`
}

func toResponse(e Employee) response {
	projects := e.ProjectIDs
	if projects == nil {
		projects = make([]uuid.UUID, 0)
	}
	return response{
		ID:         e.ID,
		FirstName:  e.FirstName,
		LastName:   e.LastName,
		Email:      e.Email,
		DateJoined: e.DateJoined.UTC().Format("2006-01-02"),
		Projects:   projects,
	}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body registerRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	body.FirstName = strings.TrimSpace(body.FirstName)
	body.LastName = strings.TrimSpace(body.LastName)
	body.Email = strings.TrimSpace(strings.ToLower(body.Email))

	if !nameRegex.MatchString(body.FirstName) || !nameRegex.MatchString(body.LastName) {
		writeError(w, http.StatusBadRequest, "names may only contain letters and underscores, with no spaces")
		return
	}
	if !emailRegex.MatchString(body.Email) {
		writeError(w, http.StatusBadRequest, "email format is invalid")
		return
	}
	if len(body.Password) < 8 || len(body.Password) > 200 {
		writeError(w, http.StatusBadRequest, "password must be between 8 and 200 characters")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	created, err := h.repo.Create(r.Context(), Employee{
		FirstName:    body.FirstName,
		LastName:     body.LastName,
		Email:        body.Email,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			writeError(w, http.StatusBadRequest, "this email is already in use")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to register")
		return
	}

	if len(body.Projects) > 0 {
		if err := h.repo.SetProjects(r.Context(), created.ID, body.Projects); err != nil {
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to assign projects")
			return
		}
		created.ProjectIDs = body.Projects
	}

	writeJSON(w, http.StatusCreated, toResponse(created))
}

func (h *Handler) Self(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authorization header is missing")
		return
	}

	e, err := h.repo.GetByID(r.Context(), identity.EmployeeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "employee not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to load employee")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(e))
}

// SelfUpdate lets an employee edit their own record, except project
// assignments, which only administrators may change.
func (h *Handler) SelfUpdate(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authorization header is missing")
		return
	}

	body, ok := decodeUpdate(w, r)
	if !ok {
		return
	}
	if body.Projects != nil {
		writeError(w, http.StatusForbidden, "you cannot update your own projects")
		return
	}

	h.applyUpdate(w, r, identity.EmployeeID, body)
}

func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	employees, err := h.repo.List(r.Context())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to list employees")
		return
	}

	writeJSON(w, http.StatusOK, toResponses(employees))
}

func (h *Handler) Filter(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	employees, err := h.repo.Filter(
		r.Context(),
		strings.TrimSpace(strings.ToLower(query.Get("email"))),
		strings.TrimSpace(query.Get("first_name")),
		strings.TrimSpace(query.Get("last_name")),
	)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to filter employees")
		return
	}

	writeJSON(w, http.StatusOK, toResponses(employees))
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	e, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "employee not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to load employee")
		return
	}

	writeJSON(w, http.StatusOK, toResponse(e))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	body, ok := decodeUpdate(w, r)
	if !ok {
		return
	}

	h.applyUpdate(w, r, id, body)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "employee not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to delete employee")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"detail": "deleted"})
}

func (h *Handler) applyUpdate(w http.ResponseWriter, r *http.Request, id uuid.UUID, body updateRequest) {
	e, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "employee not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to load employee")
		return
	}

	if body.FirstName != nil {
		value := strings.TrimSpace(*body.FirstName)
		if !nameRegex.MatchString(value) {
			writeError(w, http.StatusBadRequest, "names may only contain letters and underscores, with no spaces")
			return
		}
		e.FirstName = value
	}
	if body.LastName != nil {
		value := strings.TrimSpace(*body.LastName)
		if !nameRegex.MatchString(value) {
			writeError(w, http.StatusBadRequest, "names may only contain letters and underscores, with no spaces")
			return
		}
		e.LastName = value
	}
	if body.Email != nil {
		value := strings.TrimSpace(strings.ToLower(*body.Email))
		if !emailRegex.MatchString(value) {
			writeError(w, http.StatusBadRequest, "email format is invalid")
			return
		}
		e.Email = value
	}
	if body.Password != nil {
		if len(*body.Password) < 8 || len(*body.Password) > 200 {
			writeError(w, http.StatusBadRequest, "password must be between 8 and 200 characters")
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*body.Password), bcrypt.DefaultCost)
		if err != nil {
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to update employee")
			return
		}
		e.PasswordHash = string(hash)
	}

	if err := h.repo.Update(r.Context(), e); err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			writeError(w, http.StatusBadRequest, "this email is already in use")
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "employee not found")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to update employee")
		}
		return
	}

	if body.Projects != nil {
		if err := h.repo.SetProjects(r.Context(), e.ID, *body.Projects); err != nil {
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to assign projects")
			return
		}
		e.ProjectIDs = *body.Projects
	}

	writeJSON(w, http.StatusOK, toResponse(e))
}

func decodeUpdate(w http.ResponseWriter, r *http.Request) (updateRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body updateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return updateRequest{}, false
	}

	return body, true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid employee id")
		return uuid.Nil, false
	}
	return id, true
}

func toResponses(employees []Employee) []response {
	out := make([]response, 0, len(employees))
	for _, e := range employees {
		out = append(out, toResponse(e))
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
