package auth

const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// User is the authenticated caller capability. It is passed explicitly
// into every service operation; there is no ambient current-user state.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
	Tour  string `json:"tour,omitempty"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// userRecord is the slice of the stored user document auth cares about.
type userRecord struct {
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	Tour         string `json:"tour"`
	PasswordHash string `json:"password_hash"`
}

type refreshRecord struct {
	UserID    string `json:"user_id"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}
