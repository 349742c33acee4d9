package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/99minutos/account-service/internal/core/ports"
)

const (
	HeaderTotalUsers = "X-Total-Users"
	HeaderPage       = "X-Page"
	HeaderLimit      = "X-Limit"
	HeaderTotalPages = "X-Total-Pages"
)

// UserHandler serves the /users resource.
type UserHandler struct {
	service ports.AccountService
}

func NewUserHandler(service ports.AccountService) *UserHandler {
	return &UserHandler{service: service}
}

// queryInt parses an integer query parameter; anything unparsable yields 0 and
// the service substitutes its default.
func queryInt(c echo.Context, name string) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return n
}

// List handles GET /users.
//
// @Summary      List users
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        search  query     string  false  "Case-insensitive substring of name or email"
// @Param        page    query     int     false  "Page number (1-based)"
// @Param        limit   query     int     false  "Page size"
// @Success      200     {object}  listUsersResponse
// @Failure      401     {object}  errorResponse
// @Failure      403     {object}  errorResponse
// @Router       /users [get]
func (h *UserHandler) List(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	res, err := h.service.ListUsers(c.Request().Context(), actor, ports.ListUsersInput{
		Search: c.QueryParam("search"),
		Page:   queryInt(c, "page"),
		Limit:  queryInt(c, "limit"),
	})
	if err != nil {
		return err
	}

	p := res.Pagination
	hdr := c.Response().Header()
	hdr.Set(HeaderTotalUsers, strconv.FormatInt(p.TotalUsers, 10))
	hdr.Set(HeaderPage, strconv.Itoa(p.CurrentPage))
	hdr.Set(HeaderLimit, strconv.Itoa(p.Limit))
	hdr.Set(HeaderTotalPages, strconv.Itoa(p.TotalPages))

	return c.JSON(http.StatusOK, listUsersResponse{Users: res.Users, Pagination: p})
}

// Get handles GET /users/:id.
//
// @Summary      Get a user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  domain.PublicUser
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /users/{id} [get]
func (h *UserHandler) Get(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	user, err := h.service.GetUser(c.Request().Context(), actor, c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// Update handles PUT /users/:id.
//
// @Summary      Update a user
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string             true  "User ID"
// @Param        body  body      updateUserRequest  true  "Fields to change"
// @Success      200   {object}  userEnvelope
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /users/{id} [put]
func (h *UserHandler) Update(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	var req updateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.service.UpdateUser(c.Request().Context(), actor, c.Param("id"), req.toPatch())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, userEnvelope{Message: "User updated successfully", User: user})
}

// Delete handles DELETE /users/:id.
//
// @Summary      Delete a user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  messageResponse
// @Failure      400  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /users/{id} [delete]
func (h *UserHandler) Delete(c echo.Context) error {
	actor, err := ctxIdentity(c)
	if err != nil {
		return err
	}

	if err := h.service.DeleteUser(c.Request().Context(), actor, c.Param("id")); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "User deleted successfully"})
}
