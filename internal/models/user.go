package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the platform roles enforced by RBAC.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleInstructor UserRole = "INSTRUCTOR"
	RoleStudent    UserRole = "STUDENT"
	RoleAnalyst    UserRole = "ANALYST"
)

// JWTClaims carries the authenticated identity issued by the external auth
// service. The core only consumes these claims; it never mints tokens.
type JWTClaims struct {
	UserID string   `json:"user_id"`
	Role   UserRole `json:"role"`
	Email  string   `json:"email"`
	jwt.RegisteredClaims
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
