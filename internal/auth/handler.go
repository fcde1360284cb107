package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/grantdesk/grantdesk/internal/backend"
	"github.com/grantdesk/grantdesk/internal/shared"
	"github.com/grantdesk/grantdesk/internal/view"
)

// Session keys carrying the password recovery flow between screens.
const (
	recoverEmailKey = "auth_recover_email"
	resetTokenKey   = "auth_reset_token"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	view.Responder
	service        *Service
	sessionManager *shared.SessionManager
	validator      *shared.Validator
}

// NewHandler constructs a Handler instance.
func NewHandler(rs view.Responder, service *Service, sessions *shared.SessionManager, v *shared.Validator) *Handler {
	return &Handler{
		Responder:      rs,
		service:        service,
		sessionManager: sessions,
		validator:      v,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/password", h.showChangePassword)
	r.Post("/password", h.handleChangePassword)
	r.Get("/recover", h.showRecover)
	r.Post("/recover", h.handleRecover)
	r.Get("/verify-otp", h.showVerify)
	r.Post("/verify-otp", h.handleVerify)
	r.Get("/reset", h.showReset)
	r.Post("/reset", h.handleReset)
}

type loginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

type changeForm struct {
	Current  string `form:"current_password" validate:"required"`
	Password string `form:"password" validate:"required,min=8,nefield=Current"`
	Confirm  string `form:"confirm" validate:"required,eqfield=Password"`
}

type recoverForm struct {
	Email string `form:"email" validate:"required,email"`
}

type otpForm struct {
	Code string `form:"code" validate:"required,numeric,len=6"`
}

type resetForm struct {
	Password string `form:"password" validate:"required,min=8"`
	Confirm  string `form:"confirm" validate:"required,eqfield=Password"`
}

type pageData struct {
	Email  string
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess.Token() != "" {
		http.Redirect(w, r, landing(sess), http.StatusSeeOther)
		return
	}
	h.Render(w, r, http.StatusOK, "pages/auth/login.html", "Sign in", pageData{})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	data := pageData{Email: form.Email}
	if errs := h.validate(form); errs != nil {
		data.Errors = errs
		h.Render(w, r, http.StatusBadRequest, "pages/auth/login.html", "Sign in", data)
		return
	}

	identity, err := h.service.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		status := http.StatusBadRequest
		msg := "Invalid email or password."
		if !errors.Is(err, ErrInvalidCredentials) {
			h.Logger.Warn("login failed", slog.Any("error", err))
			status = http.StatusBadGateway
			msg = backend.Humanize(err)
		}
		data.Errors = map[string]string{"general": msg}
		h.Render(w, r, status, "pages/auth/login.html", "Sign in", data)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.Logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	sess.SetIdentity(identity)
	if h.CSRF != nil {
		if _, err := h.CSRF.Rotate(r.Context(), sess); err != nil {
			h.Logger.Warn("rotate csrf", slog.Any("error", err))
		}
	}
	if !identity.MustChangePassword {
		sess.AddFlash(shared.FlashMessage{Kind: shared.FlashSuccess, Message: "Welcome back, " + identity.Name + "."})
	}
	http.Redirect(w, r, landing(sess), http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.Logout(r.Context(), sess.Token()); err != nil {
			h.Logger.Debug("backend logout", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h *Handler) showChangePassword(w http.ResponseWriter, r *http.Request) {
	if shared.SessionFromContext(r.Context()).Token() == "" {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	h.Render(w, r, http.StatusOK, "pages/auth/password.html", "Change password", pageData{})
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess.Token() == "" {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := changeForm{
		Current:  r.PostFormValue("current_password"),
		Password: r.PostFormValue("password"),
		Confirm:  r.PostFormValue("confirm"),
	}
	if errs := h.validate(form); errs != nil {
		h.Render(w, r, http.StatusUnprocessableEntity, "pages/auth/password.html", "Change password", pageData{Errors: errs})
		return
	}
	if err := h.service.ChangePassword(r.Context(), sess.Token(), form.Current, form.Password); err != nil {
		if errors.Is(err, shared.ErrUnauthenticated) {
			sess.ClearIdentity()
			h.RedirectWithFlash(w, r, "/auth/login", shared.FlashError, shared.UserSafeMessage(err))
			return
		}
		h.Render(w, r, failureStatus(err), "pages/auth/password.html", "Change password",
			pageData{Errors: map[string]string{"general": backend.Humanize(err)}})
		return
	}
	sess.MarkPasswordChanged()
	h.RedirectWithFlash(w, r, "/", shared.FlashSuccess, "Your password was changed.")
}

func (h *Handler) showRecover(w http.ResponseWriter, r *http.Request) {
	h.Render(w, r, http.StatusOK, "pages/auth/recover.html", "Recover password", pageData{})
}

func (h *Handler) handleRecover(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := recoverForm{Email: strings.TrimSpace(r.PostFormValue("email"))}
	if errs := h.validate(form); errs != nil {
		h.Render(w, r, http.StatusUnprocessableEntity, "pages/auth/recover.html", "Recover password", pageData{Email: form.Email, Errors: errs})
		return
	}
	if err := h.service.Recover(r.Context(), form.Email); err != nil {
		h.Logger.Warn("recover password", slog.Any("error", err))
		h.Render(w, r, failureStatus(err), "pages/auth/recover.html", "Recover password",
			pageData{Email: form.Email, Errors: map[string]string{"general": backend.Humanize(err)}})
		return
	}
	sess := shared.SessionFromContext(r.Context())
	sess.Set(recoverEmailKey, form.Email)
	sess.Delete(resetTokenKey)
	h.RedirectWithFlash(w, r, "/auth/verify-otp", shared.FlashInfo, "We sent a verification code to "+form.Email+".")
}

func (h *Handler) showVerify(w http.ResponseWriter, r *http.Request) {
	email := shared.SessionFromContext(r.Context()).Get(recoverEmailKey)
	if email == "" {
		http.Redirect(w, r, "/auth/recover", http.StatusSeeOther)
		return
	}
	h.Render(w, r, http.StatusOK, "pages/auth/verify.html", "Verify code", pageData{Email: email})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	email := sess.Get(recoverEmailKey)
	if email == "" {
		http.Redirect(w, r, "/auth/recover", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := otpForm{Code: strings.TrimSpace(r.PostFormValue("code"))}
	if errs := h.validate(form); errs != nil {
		h.Render(w, r, http.StatusUnprocessableEntity, "pages/auth/verify.html", "Verify code", pageData{Email: email, Errors: errs})
		return
	}
	resetToken, err := h.service.VerifyOTP(r.Context(), email, form.Code)
	if err != nil {
		msg := "The code is invalid or has expired."
		if !errors.Is(err, ErrInvalidCode) {
			h.Logger.Warn("verify otp", slog.Any("error", err))
			msg = backend.Humanize(err)
		}
		h.Render(w, r, failureStatus(err), "pages/auth/verify.html", "Verify code",
			pageData{Email: email, Errors: map[string]string{"code": msg}})
		return
	}
	sess.Set(resetTokenKey, resetToken)
	http.Redirect(w, r, "/auth/reset", http.StatusSeeOther)
}

func (h *Handler) showReset(w http.ResponseWriter, r *http.Request) {
	if shared.SessionFromContext(r.Context()).Get(resetTokenKey) == "" {
		http.Redirect(w, r, "/auth/recover", http.StatusSeeOther)
		return
	}
	h.Render(w, r, http.StatusOK, "pages/auth/reset.html", "Choose a new password", pageData{})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	resetToken := sess.Get(resetTokenKey)
	if resetToken == "" {
		http.Redirect(w, r, "/auth/recover", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := resetForm{Password: r.PostFormValue("password"), Confirm: r.PostFormValue("confirm")}
	if errs := h.validate(form); errs != nil {
		h.Render(w, r, http.StatusUnprocessableEntity, "pages/auth/reset.html", "Choose a new password", pageData{Errors: errs})
		return
	}
	if err := h.service.ResetPassword(r.Context(), resetToken, form.Password); err != nil {
		if errors.Is(err, ErrInvalidCode) {
			sess.Delete(resetTokenKey)
			h.RedirectWithFlash(w, r, "/auth/recover", shared.FlashError, "The reset link expired. Request a new code.")
			return
		}
		h.Logger.Warn("reset password", slog.Any("error", err))
		h.Render(w, r, failureStatus(err), "pages/auth/reset.html", "Choose a new password",
			pageData{Errors: map[string]string{"general": backend.Humanize(err)}})
		return
	}
	sess.Delete(resetTokenKey)
	sess.Delete(recoverEmailKey)
	h.RedirectWithFlash(w, r, "/auth/login", shared.FlashSuccess, "Your password was reset. Sign in with the new one.")
}

func (h *Handler) validate(form any) map[string]string {
	err := h.validator.Struct(form)
	if err == nil {
		return nil
	}
	var verr *shared.ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	h.Logger.Error("validate form", slog.Any("error", err))
	return map[string]string{"general": shared.GenericErrorMessage}
}

func landing(sess *shared.Session) string {
	if sess.Identity().MustChangePassword {
		return "/auth/password"
	}
	return "/"
}

func failureStatus(err error) int {
	if status := backend.StatusOf(err); status >= http.StatusBadRequest {
		return status
	}
	if errors.Is(err, ErrInvalidCode) || errors.Is(err, ErrInvalidCredentials) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}
