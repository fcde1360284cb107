package auth

import "github.com/grantdesk/grantdesk/internal/shared"

// User is the account the backend returns at login.
type User struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Role               string `json:"role"`
	MustChangePassword bool   `json:"must_change_password"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type otpResponse struct {
	ResetToken string `json:"reset_token"`
}

// Identity binds u to the bearer token for the session.
func (u User) Identity(token string) shared.Identity {
	return shared.Identity{
		UserID:             u.ID,
		Name:               u.Name,
		Email:              u.Email,
		Role:               u.Role,
		Token:              token,
		MustChangePassword: u.MustChangePassword,
	}
}
