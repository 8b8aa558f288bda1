package employee

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staffdesk/internal/auth"
)

func newHandlerWithMock(t *testing.T) (*Handler, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewHandler(NewRepository(db)), mock
}

func TestHandler_Register_RejectsBadInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		wantError string
	}{
		{
			name:      "first name with digits",
			body:      `{"first_name":"ada1","last_name":"lovelace","email":"ada@example.com","password":"longenough"}`,
			wantError: "letters and underscores",
		},
		{
			name:      "last name with spaces",
			body:      `{"first_name":"ada","last_name":"de lovelace","email":"ada@example.com","password":"longenough"}`,
			wantError: "letters and underscores",
		},
		{
			name:      "bad email",
			body:      `{"first_name":"ada","last_name":"lovelace","email":"not-an-email","password":"longenough"}`,
			wantError: "email format is invalid",
		},
		{
			name:      "short password",
			body:      `{"first_name":"ada","last_name":"lovelace","email":"ada@example.com","password":"short"}`,
			wantError: "between 8 and 200",
		},
		{
			name:      "unknown field",
			body:      `{"first_name":"ada","surname":"lovelace"}`,
			wantError: "invalid json body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Rejections happen before any query is issued.
			handler, mock := newHandlerWithMock(t)

			req := httptest.NewRequest(http.MethodPost, "/register/", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			handler.Register(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantError)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestHandler_Register(t *testing.T) {
	t.Parallel()

	handler, mock := newHandlerWithMock(t)
	now := time.Now().UTC()

	mock.ExpectQuery("INSERT INTO employees").
		WillReturnRows(sqlmock.NewRows([]string{"date_joined", "updated_at"}).AddRow(now, now))

	body := `{"first_name":"ada","last_name":"lovelace","email":"Ada@Example.COM","password":"longenough"}`
	req := httptest.NewRequest(http.MethodPost, "/register/", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Register(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	// Email is normalized to lower case and the hash never leaves the server.
	assert.Contains(t, rec.Body.String(), `"email":"ada@example.com"`)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Contains(t, rec.Body.String(), `"date_joined":"`+now.Format("2006-01-02")+`"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Search_BadID(t *testing.T) {
	t.Parallel()

	handler, mock := newHandlerWithMock(t)

	req := httptest.NewRequest(http.MethodGet, "/employee/search/nope/", nil)
	req.SetPathValue("id", "nope")
	rec := httptest.NewRecorder()

	handler.Search(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_SelfUpdate_RejectsProjectChanges(t *testing.T) {
	t.Parallel()

	handler, mock := newHandlerWithMock(t)

	req := httptest.NewRequest(http.MethodPut, "/employee/update/", strings.NewReader(`{"projects":[]}`))
	req = req.WithContext(auth.ContextWithIdentity(req.Context(), auth.Identity{EmployeeID: uuid.New()}))
	rec := httptest.NewRecorder()

	handler.SelfUpdate(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "you cannot update your own projects")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_SelfUpdate_RequiresIdentity(t *testing.T) {
	t.Parallel()

	handler, mock := newHandlerWithMock(t)

	req := httptest.NewRequest(http.MethodPut, "/employee/update/", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	handler.SelfUpdate(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
