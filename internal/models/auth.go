package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type discriminators embedded in signed tokens.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// ClaimsBundle is the immutable attribute snapshot minted at authentication
// time. Downstream scoping trusts it for the token's validity window; a role
// or attachment change only takes effect after re-authentication.
type ClaimsBundle struct {
	Role            Role     `json:"role"`
	PrincipalID     string   `json:"principal_id"`
	DisplayName     string   `json:"display_name"`
	AccessNumber    string   `json:"access_number,omitempty"`
	FacultyID       *int64   `json:"faculty_id,omitempty"`
	DepartmentID    *int64   `json:"department_id,omitempty"`
	AssignedCourses []string `json:"assigned_courses,omitempty"`
}

// TokenClaims is the JWT payload for access and refresh tokens. Both carry
// the full bundle so a refresh can re-issue access tokens without touching
// the credential store.
type TokenClaims struct {
	Bundle    ClaimsBundle `json:"bundle"`
	TokenType string       `json:"token_type"`
	jwt.RegisteredClaims
}

// LoginRequest holds credentials for authenticating a principal. Identifier
// is either an access number or an administrative username.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Secret     string `json:"password" validate:"required"`
	IP         string `json:"-"`
	UserAgent  string `json:"-"`
}

// PrincipalSummary describes the authenticated principal in responses.
type PrincipalSummary struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Role         Role   `json:"role"`
	DisplayName  string `json:"display_name"`
	AccessNumber string `json:"access_number,omitempty"`
	FacultyID    *int64 `json:"faculty_id,omitempty"`
	DepartmentID *int64 `json:"department_id,omitempty"`
}

// LoginResponse returns the issued token pair and principal info.
type LoginResponse struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	ExpiresIn    int64            `json:"expires_in"`
	Role         Role             `json:"role"`
	Principal    PrincipalSummary `json:"user"`
	IssuedAt     time.Time        `json:"issued_at"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshTokenResponse returns the refreshed access token. The claims inside
// are the ones frozen at the original login.
type RefreshTokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
}
