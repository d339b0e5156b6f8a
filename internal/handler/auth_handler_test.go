package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ucu-dw/ucu-analytics-api/internal/models"
	"github.com/ucu-dw/ucu-analytics-api/internal/service"
)

type fakeCredentialRepo struct {
	student *models.Student
	account *models.AdminAccount
	courses []string
}

func (f *fakeCredentialRepo) FindStudentByAccessNumber(ctx context.Context, accessNumber string) (*models.Student, error) {
	if f.student == nil || f.student.AccessNumber != accessNumber {
		return nil, sql.ErrNoRows
	}
	return f.student, nil
}

func (f *fakeCredentialRepo) FindAccountByUsername(ctx context.Context, username string) (*models.AdminAccount, error) {
	if f.account == nil {
		return nil, sql.ErrNoRows
	}
	return f.account, nil
}

func (f *fakeCredentialRepo) ListAssignedCourses(ctx context.Context, accountID string) ([]string, error) {
	return f.courses, nil
}

type fakeAudit struct{ events []models.AuditEvent }

func (f *fakeAudit) Emit(event models.AuditEvent) { f.events = append(f.events, event) }

func newTestAuthService(repo *fakeCredentialRepo) *service.AuthService {
	return service.NewAuthService(repo, service.DerivedSecretVerifier{Suffix: "ucu"}, &fakeAudit{}, nil, zap.NewNop(), service.AuthConfig{
		Secret:        "test-secret",
		AccessExpiry:  time.Hour,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "analytics-api-test",
	})
}

func performLogin(t *testing.T, handler *AuthHandler, payload map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Login(c)
	return rec
}

func TestLoginEndpointStudentSuccess(t *testing.T) {
	repo := &fakeCredentialRepo{student: &models.Student{
		StudentID:    "S0001",
		AccessNumber: "A12345",
		FirstName:    "Grace",
		LastName:     "Akello",
	}}
	handler := NewAuthHandler(newTestAuthService(repo))

	rec := performLogin(t, handler, map[string]string{"identifier": "A12345", "password": "A12345@ucu"})
	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, models.RoleStudent, envelope.Data.Role)
	assert.NotEmpty(t, envelope.Data.AccessToken)
}

func TestLoginEndpointInvalidCredentials(t *testing.T) {
	handler := NewAuthHandler(newTestAuthService(&fakeCredentialRepo{}))

	rec := performLogin(t, handler, map[string]string{"identifier": "A12345", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var envelope struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "INVALID_CREDENTIALS", envelope.Error.Code)
	// The body never reveals which lookup failed.
	assert.NotContains(t, envelope.Error.Message, "student")
	assert.NotContains(t, envelope.Error.Message, "account")
}

func TestLoginEndpointMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAuthHandler(newTestAuthService(&fakeCredentialRepo{}))

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte("{")))

	handler.Login(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRefreshEndpoint(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := &fakeCredentialRepo{student: &models.Student{StudentID: "S0001", AccessNumber: "A12345"}}
	svc := newTestAuthService(repo)
	handler := NewAuthHandler(svc)

	login, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "A12345", Secret: "A12345@ucu"})
	require.NoError(t, err)

	body, err := json.Marshal(map[string]string{"refresh_token": login.RefreshToken})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/auth/refresh", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.Refresh(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	var envelope struct {
		Data models.RefreshTokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.AccessToken)
}
