package service

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ucu-dw/ucu-analytics-api/internal/models"
	appErrors "github.com/ucu-dw/ucu-analytics-api/pkg/errors"
)

type authCredentialRepository interface {
	FindStudentByAccessNumber(ctx context.Context, accessNumber string) (*models.Student, error)
	FindAccountByUsername(ctx context.Context, username string) (*models.AdminAccount, error)
	ListAssignedCourses(ctx context.Context, accountID string) ([]string, error)
}

type auditEmitter interface {
	Emit(event models.AuditEvent)
}

// StudentSecretVerifier checks a student secret against the institution's
// scheme. The interface exists so the derived-secret scheme can be swapped
// for a directory-backed one without touching the login flow.
type StudentSecretVerifier interface {
	Verify(accessNumber, secret string) bool
}

// DerivedSecretVerifier implements the institutional derived-secret scheme:
// the student secret is the access number followed by "@" and the
// institution suffix.
type DerivedSecretVerifier struct {
	Suffix string
}

// Verify reports whether the presented secret matches the derived form.
func (v DerivedSecretVerifier) Verify(accessNumber, secret string) bool {
	expected := fmt.Sprintf("%s@%s", accessNumber, v.Suffix)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(secret)) == 1
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

// AuthService authenticates principals and issues claim-bearing tokens.
type AuthService struct {
	repo      authCredentialRepository
	verifier  StudentSecretVerifier
	audit     auditEmitter
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(repo authCredentialRepository, verifier StudentSecretVerifier, audit auditEmitter, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{repo: repo, verifier: verifier, audit: audit, validator: validate, logger: logger, config: config}
}

// Login authenticates by identifier shape: an access number authenticates a
// student against the warehouse, anything else an administrative account.
// The branch is chosen once; a failed student login never falls through to
// the account table.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	if models.IsAccessNumber(req.Identifier) {
		return s.loginStudent(ctx, models.NormalizeAccessNumber(req.Identifier), req)
	}
	return s.loginAccount(ctx, req)
}

func (s *AuthService) loginStudent(ctx context.Context, accessNumber string, req models.LoginRequest) (*models.LoginResponse, error) {
	student, err := s.findStudent(ctx, accessNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.auditLogin(accessNumber, string(models.RoleStudent), req.IP, "unknown access number")
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, appErrors.ErrInvalidCredentials.Message)
		}
		s.auditLogin(accessNumber, string(models.RoleStudent), req.IP, "credential store unavailable")
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, appErrors.ErrUpstreamUnavailable.Message)
	}

	if !s.verifier.Verify(student.AccessNumber, req.Secret) {
		s.auditLogin(accessNumber, string(models.RoleStudent), req.IP, "secret mismatch")
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, appErrors.ErrInvalidCredentials.Message)
	}

	bundle := models.ClaimsBundle{
		Role:         models.RoleStudent,
		PrincipalID:  student.StudentID,
		DisplayName:  student.DisplayName(),
		AccessNumber: student.AccessNumber,
	}

	resp, err := s.issueTokenPair(bundle)
	if err != nil {
		return nil, err
	}
	resp.Principal = models.PrincipalSummary{
		ID:           student.StudentID,
		Username:     student.AccessNumber,
		Role:         models.RoleStudent,
		DisplayName:  student.DisplayName(),
		AccessNumber: student.AccessNumber,
	}

	s.audit.Emit(models.AuditEvent{
		Username:  student.AccessNumber,
		RoleName:  string(models.RoleStudent),
		Action:    models.AuditActionLogin,
		Resource:  "auth",
		Outcome:   models.AuditOutcomeSuccess,
		IPAddress: req.IP,
	})
	return resp, nil
}

func (s *AuthService) loginAccount(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	account, err := s.findAccount(ctx, req.Identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.auditLogin(req.Identifier, "", req.IP, "unknown username")
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, appErrors.ErrInvalidCredentials.Message)
		}
		s.auditLogin(req.Identifier, "", req.IP, "credential store unavailable")
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, appErrors.ErrUpstreamUnavailable.Message)
	}

	if account.PasswordHash == "" {
		s.logger.Warn("account has no password hash", zap.String("username", account.Username))
		s.auditLogin(account.Username, string(account.Role), req.IP, "no password hash")
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, appErrors.ErrInvalidCredentials.Message)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Secret)); err != nil {
		s.auditLogin(account.Username, string(account.Role), req.IP, "password mismatch")
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, appErrors.ErrInvalidCredentials.Message)
	}

	role, err := models.ParseRole(string(account.Role))
	if err != nil {
		// A stored role outside the catalogue is a data defect; fail the
		// login rather than downgrade to a broader or narrower scope.
		s.logger.Error("account has unrecognised role", zap.String("username", account.Username), zap.String("role", string(account.Role)))
		s.auditLogin(account.Username, string(account.Role), req.IP, "unrecognised role")
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, appErrors.ErrInvalidCredentials.Message)
	}

	bundle := models.ClaimsBundle{
		Role:        role,
		PrincipalID: account.ID,
		DisplayName: account.FullName,
	}

	// Attachments only enter the bundle for the roles the scoping engine
	// reads them for; unscoped roles carry none.
	switch role {
	case models.RoleDean:
		bundle.FacultyID = account.FacultyID
	case models.RoleHOD:
		bundle.DepartmentID = account.DepartmentID
	case models.RoleStaff:
		bundle.FacultyID = account.FacultyID
		bundle.DepartmentID = account.DepartmentID
	}

	if role == models.RoleStaff {
		courses, err := s.repo.ListAssignedCourses(ctx, account.ID)
		if err != nil {
			s.auditLogin(account.Username, string(role), req.IP, "course assignments unavailable")
			return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, appErrors.ErrUpstreamUnavailable.Message)
		}
		bundle.AssignedCourses = courses
	}

	resp, err := s.issueTokenPair(bundle)
	if err != nil {
		return nil, err
	}
	resp.Principal = models.PrincipalSummary{
		ID:           account.ID,
		Username:     account.Username,
		Role:         role,
		DisplayName:  account.FullName,
		FacultyID:    account.FacultyID,
		DepartmentID: account.DepartmentID,
	}

	s.audit.Emit(models.AuditEvent{
		Username:  account.Username,
		RoleName:  string(role),
		Action:    models.AuditActionLogin,
		Resource:  "auth",
		Outcome:   models.AuditOutcomeSuccess,
		IPAddress: req.IP,
	})
	return resp, nil
}

// Refresh issues a new access token from a refresh token. The claims bundle
// embedded at login is reused verbatim; account changes made since then do
// not alter the refreshed token.
func (s *AuthService) Refresh(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid refresh payload")
	}

	claims, err := s.parseToken(req.RefreshToken)
	if err != nil || claims.TokenType != models.TokenTypeRefresh {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid refresh token")
	}

	now := time.Now().UTC()
	accessToken, err := s.signToken(claims.Bundle, models.TokenTypeAccess, now, s.config.AccessExpiry)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	s.audit.Emit(models.AuditEvent{
		Username:  principalName(claims.Bundle),
		RoleName:  string(claims.Bundle.Role),
		Action:    models.AuditActionTokenRefresh,
		Resource:  "auth",
		Outcome:   models.AuditOutcomeSuccess,
		IPAddress: req.IP,
	})

	return &models.RefreshTokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.config.AccessExpiry.Seconds()),
		IssuedAt:    now,
	}, nil
}

// ValidateAccessToken parses and validates a bearer token for middleware.
// Logout records the end of a session. Tokens are stateless and stay valid
// until expiry; the call exists for the audit trail.
func (s *AuthService) Logout(claims *models.TokenClaims, ip string) {
	s.audit.Emit(models.AuditEvent{
		Username:  principalName(claims.Bundle),
		RoleName:  string(claims.Bundle.Role),
		Action:    models.AuditActionLogout,
		Resource:  "auth",
		Outcome:   models.AuditOutcomeSuccess,
		IPAddress: ip,
	})
}

func (s *AuthService) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	claims, err := s.parseToken(tokenString)
	if err != nil || claims.TokenType != models.TokenTypeAccess {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	return claims, nil
}

func (s *AuthService) issueTokenPair(bundle models.ClaimsBundle) (*models.LoginResponse, error) {
	now := time.Now().UTC()

	accessToken, err := s.signToken(bundle, models.TokenTypeAccess, now, s.config.AccessExpiry)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}
	refreshToken, err := s.signToken(bundle, models.TokenTypeRefresh, now, s.config.RefreshExpiry)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create refresh token")
	}

	return &models.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.config.AccessExpiry.Seconds()),
		Role:         bundle.Role,
		IssuedAt:     now,
	}, nil
}

func (s *AuthService) signToken(bundle models.ClaimsBundle, tokenType string, issuedAt time.Time, expiry time.Duration) (string, error) {
	claims := models.TokenClaims{
		Bundle:    bundle,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   bundle.PrincipalID,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

func (s *AuthService) parseToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

// findStudent retries once on transient failure; lookups are idempotent.
func (s *AuthService) findStudent(ctx context.Context, accessNumber string) (*models.Student, error) {
	student, err := s.repo.FindStudentByAccessNumber(ctx, accessNumber)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		student, err = s.repo.FindStudentByAccessNumber(ctx, accessNumber)
	}
	return student, err
}

func (s *AuthService) findAccount(ctx context.Context, username string) (*models.AdminAccount, error) {
	account, err := s.repo.FindAccountByUsername(ctx, username)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		account, err = s.repo.FindAccountByUsername(ctx, username)
	}
	return account, err
}

func (s *AuthService) auditLogin(username, roleName, ip, reason string) {
	s.audit.Emit(models.AuditEvent{
		Username:  username,
		RoleName:  roleName,
		Action:    models.AuditActionLogin,
		Resource:  "auth",
		Outcome:   models.AuditOutcomeFailure,
		Reason:    reason,
		IPAddress: ip,
	})
}

func principalName(bundle models.ClaimsBundle) string {
	if bundle.AccessNumber != "" {
		return bundle.AccessNumber
	}
	return bundle.PrincipalID
}
