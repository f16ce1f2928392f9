package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles issued by the surrounding platform.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleTeacher UserRole = "TEACHER"
	RoleStudent UserRole = "STUDENT"
)

// JWTClaims carries the platform-issued identity attached to each request.
// Identity management itself lives outside this service; handlers only read
// the subject and role and thread them into services as explicit arguments.
type JWTClaims struct {
	UserID string   `json:"sub"`
	Role   UserRole `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the claims carry administrative privileges.
func (c *JWTClaims) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// UserProfile stores per-user preferences owned by the platform that this
// service reads, currently just the preferred timezone.
type UserProfile struct {
	UserID   string `db:"user_id" json:"user_id"`
	Timezone string `db:"timezone" json:"timezone"`
}
