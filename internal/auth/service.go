package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/grantdesk/grantdesk/internal/backend"
	"github.com/grantdesk/grantdesk/internal/shared"
)

// ErrInvalidCredentials is returned when the backend rejects a login.
var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// ErrInvalidCode is returned when an OTP or reset token is rejected.
var ErrInvalidCode = errors.New("auth: invalid or expired code")

// Backend is the part of the REST client used by the auth flows.
type Backend interface {
	Create(ctx context.Context, token, path string, body, out any) error
}

// Service wraps the backend authentication endpoints.
type Service struct {
	backend Backend
}

// NewService constructs a new Service.
func NewService(be Backend) *Service {
	return &Service{backend: be}
}

// Login exchanges credentials for a bearer token and the user record.
func (s *Service) Login(ctx context.Context, email, password string) (shared.Identity, error) {
	var resp loginResponse
	err := s.backend.Create(ctx, "", "/auth/login", map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		if rejected(err) {
			return shared.Identity{}, ErrInvalidCredentials
		}
		return shared.Identity{}, fmt.Errorf("auth: login: %w", err)
	}
	if resp.Token == "" {
		return shared.Identity{}, fmt.Errorf("auth: login: response carried no token")
	}
	return resp.User.Identity(resp.Token), nil
}

// ChangePassword performs the forced password change for a signed in user.
func (s *Service) ChangePassword(ctx context.Context, token, current, next string) error {
	err := s.backend.Create(ctx, token, "/auth/change-password", map[string]string{"current_password": current, "new_password": next}, nil)
	if err != nil {
		return fmt.Errorf("auth: change password: %w", err)
	}
	return nil
}

// Recover asks the backend to send a one-time password to email.
func (s *Service) Recover(ctx context.Context, email string) error {
	if err := s.backend.Create(ctx, "", "/auth/recover", map[string]string{"email": email}, nil); err != nil {
		return fmt.Errorf("auth: recover: %w", err)
	}
	return nil
}

// VerifyOTP trades the emailed code for a password reset token.
func (s *Service) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	var resp otpResponse
	err := s.backend.Create(ctx, "", "/auth/verify-otp", map[string]string{"email": email, "code": code}, &resp)
	if err != nil {
		if rejected(err) {
			return "", ErrInvalidCode
		}
		return "", fmt.Errorf("auth: verify otp: %w", err)
	}
	if resp.ResetToken == "" {
		return "", ErrInvalidCode
	}
	return resp.ResetToken, nil
}

// ResetPassword sets a new password using a reset token.
func (s *Service) ResetPassword(ctx context.Context, resetToken, password string) error {
	err := s.backend.Create(ctx, "", "/auth/reset-password", map[string]string{"reset_token": resetToken, "password": password}, nil)
	if err != nil {
		if rejected(err) {
			return ErrInvalidCode
		}
		return fmt.Errorf("auth: reset password: %w", err)
	}
	return nil
}

// Logout revokes the token on the backend. Failures are not fatal to the
// local sign out.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.backend.Create(ctx, token, "/auth/logout", struct{}{}, nil)
}

func rejected(err error) bool {
	switch backend.StatusOf(err) {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusUnprocessableEntity:
		return true
	}
	return false
}
