package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/getsentry/sentry-go"
)

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type logoutRequest struct {
	Refresh string `json:"refresh"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body loginRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	body.Email = strings.TrimSpace(body.Email)
	if !emailRegex.MatchString(body.Email) {
		writeError(w, http.StatusBadRequest, "email format is invalid")
		return
	}
	if body.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}

	tokens, err := h.service.Login(r.Context(), body.Email, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "failed to login")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// Logout runs behind the gate; the identity carries the raw access
// token whose ledger record gets invalidated.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authorization header is missing")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body logoutRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	if err := h.service.Logout(r.Context(), identity.Token, body.Refresh); err != nil {
		switch {
		case errors.Is(err, ErrTokenNotFound):
			writeError(w, http.StatusBadRequest, "invalid token")
		case errors.Is(err, ErrMissingRefreshToken):
			writeError(w, http.StatusBadRequest, "refresh token is missing")
		case errors.Is(err, ErrInvalidOrExpiredToken):
			writeError(w, http.StatusBadRequest, "refresh token is invalid or expired")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to logout")
		}
		return
	}

	writeJSON(w, http.StatusResetContent, map[string]string{"detail": "session terminated"})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body refreshRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	access, err := h.service.Refresh(r.Context(), body.Refresh)
	if err != nil {
		switch {
		case errors.Is(err, ErrMissingRefreshToken):
			writeError(w, http.StatusBadRequest, "refresh token is required")
		case errors.Is(err, ErrInvalidOrExpiredToken):
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "failed to refresh token")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
