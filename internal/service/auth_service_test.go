package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ucu-dw/ucu-analytics-api/internal/models"
	appErrors "github.com/ucu-dw/ucu-analytics-api/pkg/errors"
)

type mockCredentialRepo struct {
	student        *models.Student
	studentErr     error
	account        *models.AdminAccount
	accountErr     error
	courses        []string
	coursesErr     error
	accountLookups int
}

func (m *mockCredentialRepo) FindStudentByAccessNumber(ctx context.Context, accessNumber string) (*models.Student, error) {
	if m.studentErr != nil {
		return nil, m.studentErr
	}
	if m.student == nil || m.student.AccessNumber != accessNumber {
		return nil, sql.ErrNoRows
	}
	return m.student, nil
}

func (m *mockCredentialRepo) FindAccountByUsername(ctx context.Context, username string) (*models.AdminAccount, error) {
	m.accountLookups++
	if m.accountErr != nil {
		return nil, m.accountErr
	}
	if m.account == nil {
		return nil, sql.ErrNoRows
	}
	return m.account, nil
}

func (m *mockCredentialRepo) ListAssignedCourses(ctx context.Context, accountID string) ([]string, error) {
	if m.coursesErr != nil {
		return nil, m.coursesErr
	}
	return m.courses, nil
}

type mockAudit struct {
	mu     sync.Mutex
	events []models.AuditEvent
}

func (m *mockAudit) Emit(event models.AuditEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
}

func (m *mockAudit) last(t *testing.T) models.AuditEvent {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	require.NotEmpty(t, m.events)
	return m.events[len(m.events)-1]
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		Secret:        "test-secret",
		AccessExpiry:  time.Hour,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "analytics-api-test",
	}
}

func newTestAuthService(repo *mockCredentialRepo, audit *mockAudit) *AuthService {
	return NewAuthService(repo, DerivedSecretVerifier{Suffix: "ucu"}, audit, nil, zap.NewNop(), testAuthConfig())
}

func TestLoginStudentSuccess(t *testing.T) {
	repo := &mockCredentialRepo{student: &models.Student{
		StudentID:    "S0001",
		AccessNumber: "A12345",
		FirstName:    "Grace",
		LastName:     "Akello",
	}}
	audit := &mockAudit{}
	svc := newTestAuthService(repo, audit)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "a12345", Secret: "A12345@ucu"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, resp.Role)
	assert.Equal(t, "A12345", resp.Principal.AccessNumber)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)

	claims, err := svc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, claims.Bundle.Role)
	assert.Equal(t, "S0001", claims.Bundle.PrincipalID)

	event := audit.last(t)
	assert.Equal(t, models.AuditActionLogin, event.Action)
	assert.Equal(t, models.AuditOutcomeSuccess, event.Outcome)
}

func TestLoginStudentWrongSecretNoFallthrough(t *testing.T) {
	repo := &mockCredentialRepo{student: &models.Student{StudentID: "S0001", AccessNumber: "A12345"}}
	audit := &mockAudit{}
	svc := newTestAuthService(repo, audit)

	_, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "A12345", Secret: "wrong"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
	// The account table is never consulted for access-number identifiers.
	assert.Zero(t, repo.accountLookups)

	event := audit.last(t)
	assert.Equal(t, models.AuditOutcomeFailure, event.Outcome)
	assert.NotContains(t, event.Reason, "wrong")
}

func TestLoginStudentStoreUnavailable(t *testing.T) {
	repo := &mockCredentialRepo{studentErr: errors.New("connection refused")}
	svc := newTestAuthService(repo, &mockAudit{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "A12345", Secret: "A12345@ucu"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUpstreamUnavailable.Code, appErr.Code)
}

func TestLoginAccountSuccess(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	facultyID := int64(4)
	repo := &mockCredentialRepo{account: &models.AdminAccount{
		ID:           "u-1",
		Username:     "dean.science",
		PasswordHash: string(hash),
		FullName:     "Dr. Okello",
		Role:         models.RoleDean,
		FacultyID:    &facultyID,
		Active:       true,
	}}
	svc := newTestAuthService(repo, &mockAudit{})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "dean.science", Secret: "s3cret-pass"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleDean, resp.Role)

	claims, err := svc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	require.NotNil(t, claims.Bundle.FacultyID)
	assert.Equal(t, facultyID, *claims.Bundle.FacultyID)
}

func TestLoginAccountEmptyHashRejected(t *testing.T) {
	repo := &mockCredentialRepo{account: &models.AdminAccount{
		ID:       "u-1",
		Username: "broken.account",
		Role:     models.RoleAnalyst,
		Active:   true,
	}}
	svc := newTestAuthService(repo, &mockAudit{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "broken.account", Secret: "anything"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestLoginAccountUnknownRoleRejected(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &mockCredentialRepo{account: &models.AdminAccount{
		ID:           "u-1",
		Username:     "odd.role",
		PasswordHash: string(hash),
		Role:         models.Role("superuser"),
		Active:       true,
	}}
	svc := newTestAuthService(repo, &mockAudit{})

	_, err = svc.Login(context.Background(), models.LoginRequest{Identifier: "odd.role", Secret: "s3cret-pass"})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErr.Code)
}

func TestLoginStaffLoadsAssignedCourses(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	facultyID := int64(1)
	departmentID := int64(7)
	repo := &mockCredentialRepo{
		account: &models.AdminAccount{
			ID:           "u-2",
			Username:     "staff.cs",
			PasswordHash: string(hash),
			Role:         models.RoleStaff,
			FacultyID:    &facultyID,
			DepartmentID: &departmentID,
			Active:       true,
		},
		courses: []string{"CSC101", "CSC205"},
	}
	svc := newTestAuthService(repo, &mockAudit{})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "staff.cs", Secret: "s3cret-pass"})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, []string{"CSC101", "CSC205"}, claims.Bundle.AssignedCourses)
}

func TestRefreshReusesFrozenClaims(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	facultyID := int64(4)
	repo := &mockCredentialRepo{account: &models.AdminAccount{
		ID:           "u-1",
		Username:     "dean.science",
		PasswordHash: string(hash),
		Role:         models.RoleDean,
		FacultyID:    &facultyID,
		Active:       true,
	}}
	svc := newTestAuthService(repo, &mockAudit{})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "dean.science", Secret: "s3cret-pass"})
	require.NoError(t, err)

	// Mutate the stored account after login; the refresh must not see it.
	otherFaculty := int64(9)
	repo.account.FacultyID = &otherFaculty
	repo.account.Role = models.RoleAnalyst

	refreshed, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: resp.RefreshToken})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(refreshed.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleDean, claims.Bundle.Role)
	require.NotNil(t, claims.Bundle.FacultyID)
	assert.Equal(t, facultyID, *claims.Bundle.FacultyID)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	repo := &mockCredentialRepo{student: &models.Student{StudentID: "S0001", AccessNumber: "A12345"}}
	svc := newTestAuthService(repo, &mockAudit{})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "A12345", Secret: "A12345@ucu"})
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: resp.AccessToken})
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErr.Code)
}

func TestLoginUnscopedRoleOmitsAttachments(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	facultyID := int64(4)
	departmentID := int64(7)
	// Stray attachments on an analyst row must not leak into the bundle; the
	// scoping engine only reads them for dean, hod, and staff.
	repo := &mockCredentialRepo{account: &models.AdminAccount{
		ID:           "u-9",
		Username:     "analyst.one",
		PasswordHash: string(hash),
		Role:         models.RoleAnalyst,
		FacultyID:    &facultyID,
		DepartmentID: &departmentID,
		Active:       true,
	}}
	svc := newTestAuthService(repo, &mockAudit{})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "analyst.one", Secret: "s3cret-pass"})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAnalyst, claims.Bundle.Role)
	assert.Nil(t, claims.Bundle.FacultyID)
	assert.Nil(t, claims.Bundle.DepartmentID)
}

func TestLogoutEmitsAuditEvent(t *testing.T) {
	repo := &mockCredentialRepo{student: &models.Student{StudentID: "S0001", AccessNumber: "A12345"}}
	audit := &mockAudit{}
	svc := newTestAuthService(repo, audit)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "A12345", Secret: "A12345@ucu"})
	require.NoError(t, err)

	claims, err := svc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)

	svc.Logout(claims, "10.0.0.7")

	event := audit.last(t)
	assert.Equal(t, models.AuditActionLogout, event.Action)
	assert.Equal(t, "A12345", event.Username)
	assert.Equal(t, models.AuditOutcomeSuccess, event.Outcome)
	assert.Equal(t, "10.0.0.7", event.IPAddress)
}

func TestValidateAccessTokenRejectsRefreshToken(t *testing.T) {
	repo := &mockCredentialRepo{student: &models.Student{StudentID: "S0001", AccessNumber: "A12345"}}
	svc := newTestAuthService(repo, &mockAudit{})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Identifier: "A12345", Secret: "A12345@ucu"})
	require.NoError(t, err)

	_, err = svc.ValidateAccessToken(resp.RefreshToken)
	assert.Error(t, err)
}
