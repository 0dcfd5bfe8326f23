package auth

// Role define los roles conocidos del sistema.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// Claims representa la información extraída del token.
type Claims struct {
	UserID string
	Email  string
	Role   Role
}

// IsAdmin indica si el usuario tiene rol administrativo.
// Solo los admins disparan el envío automático de correos.
func (c Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}
