package domain

// Identity is a resolved session: who the connection speaks for. It is
// established by the session layer before the websocket upgrade and
// never re-validated by the core.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// Roles known to the HTTP layer.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)
