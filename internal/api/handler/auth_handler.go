package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/account-service/internal/core/ports"
)

// AuthHandler serves the unauthenticated account lifecycle endpoints plus the
// caller's own profile and password change.
//
// Domain errors are returned untouched so the central error handler can map
// their kind to a status code.
type AuthHandler struct {
	service ports.AccountService
}

func NewAuthHandler(service ports.AccountService) *AuthHandler {
	return &AuthHandler{service: service}
}

// Register creates an inactive account and queues its activation email.
//
// @Summary      Register a new user
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      registerRequest  true  "Registration details"
// @Success      201   {object}  userEnvelope
// @Failure      400   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.service.Register(c.Request().Context(), ports.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, userEnvelope{
		Message: "User created successfully. Please check your email to activate your account.",
		User:    user,
	})
}

// Activate consumes an activation token.
//
// @Summary      Activate an account
// @Tags         auth
// @Produce      json
// @Param        token  path      string  true  "Activation token"
// @Success      200    {object}  userEnvelope
// @Failure      400    {object}  errorResponse
// @Router       /auth/activate/{token} [get]
func (h *AuthHandler) Activate(c echo.Context) error {
	user, err := h.service.Activate(c.Request().Context(), c.Param("token"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userEnvelope{
		Message: "Account activated successfully. You can now log in.",
		User:    user,
	})
}

// ResendActivation issues a fresh activation token for a pending account.
//
// @Summary      Resend the activation email
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Account email"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Router       /auth/resend-activation [post]
func (h *AuthHandler) ResendActivation(c echo.Context) error {
	var req emailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.service.ResendActivation(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{
		Message: "If the account exists and is not yet active, a new activation link will be sent.",
	})
}

// Login exchanges credentials for a session token.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.service.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, loginResponse{
		Message: "Login successful",
		Token:   res.Token,
		User: loginUser{
			ID:    res.User.ID,
			Email: res.User.Email,
			Name:  res.User.Name,
			Role:  res.User.Role,
		},
	})
}

// ForgotPassword starts a password reset. The response never reveals whether
// the email is registered.
//
// @Summary      Request a password reset code
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      emailRequest  true  "Account email"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Router       /auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req emailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.service.ForgotPassword(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{
		Message: "If the email exists, a password reset link will be sent.",
	})
}

// ResetPassword consumes a reset code and sets a new password.
//
// @Summary      Reset a password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      resetPasswordRequest  true  "Reset code and new password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Router       /auth/reset-password [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	err := h.service.ResetPassword(c.Request().Context(), ports.ResetPasswordInput{
		Code:            req.Code,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, messageResponse{
		Message: "Password has been reset successfully. You can now log in with your new password.",
	})
}

// ChangePassword replaces the caller's password after verifying the old one.
//
// @Summary      Change the current password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      changePasswordRequest  true  "Old and new password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /auth/change-password [post]
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	err = h.service.ChangePassword(c.Request().Context(), actor, ports.ChangePasswordInput{
		OldPassword: req.OldPassword,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, messageResponse{Message: "Password changed successfully"})
}

// Profile returns the caller's own record.
//
// @Summary      Current user profile
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.PublicUser
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /auth/profile [get]
func (h *AuthHandler) Profile(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	user, err := h.service.GetUser(c.Request().Context(), actor, actor.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}
