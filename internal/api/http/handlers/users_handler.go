package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/telecomx/user-service/internal/api/dto"
	"github.com/telecomx/user-service/internal/service"
	apperrors "github.com/telecomx/user-service/pkg/util"
)

// UsersHandler exposes the user lifecycle endpoints.
type UsersHandler struct {
	users *service.UserService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(userService *service.UserService) *UsersHandler {
	return &UsersHandler{users: userService}
}

// Create handles POST /users.
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]any{"body": err.Error()})
	}

	user, err := h.users.Create(c.UserContext(), req.ToInput())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(user)
}

// List handles GET /users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	query, err := parseListQuery(c)
	if err != nil {
		return err
	}

	users, err := h.users.List(c.UserContext(), query.ToInput())
	if err != nil {
		return err
	}
	return c.JSON(users)
}

// GetByEmail handles GET /users/:id, where the segment is an email address.
func (h *UsersHandler) GetByEmail(c *fiber.Ctx) error {
	email, err := pathParam(c, "id")
	if err != nil {
		return err
	}

	user, err := h.users.GetByEmail(c.UserContext(), email)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// Update handles PUT /users/:id.
func (h *UsersHandler) Update(c *fiber.Ctx) error {
	userID, err := pathParam(c, "id")
	if err != nil {
		return err
	}

	var req dto.UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", map[string]any{"body": err.Error()})
	}

	user, err := h.users.Update(c.UserContext(), userID, req.ToPatch())
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// Suspend handles POST /users/:id/suspend.
func (h *UsersHandler) Suspend(c *fiber.Ctx) error {
	userID, err := pathParam(c, "id")
	if err != nil {
		return err
	}

	user, err := h.users.Suspend(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// Reactivate handles POST /users/:id/reactivate.
func (h *UsersHandler) Reactivate(c *fiber.Ctx) error {
	userID, err := pathParam(c, "id")
	if err != nil {
		return err
	}

	user, err := h.users.Reactivate(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// Delete handles DELETE /users/:id.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	userID, err := pathParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.users.Delete(c.UserContext(), userID); err != nil {
		return err
	}
	return c.JSON(dto.OKResponse{OK: true})
}

// pathParam returns a route parameter with percent-encoding removed, so
// "a%40x.com" and "a@x.com" address the same user.
func pathParam(c *fiber.Ctx, key string) (string, error) {
	raw := c.Params(key)
	val, err := url.PathUnescape(raw)
	if err != nil {
		return "", apperrors.NewBadRequest("malformed path parameter " + key)
	}
	return val, nil
}

func parseListQuery(c *fiber.Ctx) (dto.UserListQuery, error) {
	query := dto.UserListQuery{Query: c.Query("q")}

	var err error
	if query.Page, err = parsePositiveInt(c, "page", service.DefaultPage); err != nil {
		return query, err
	}
	if query.Limit, err = parsePositiveInt(c, "limit", service.DefaultLimit); err != nil {
		return query, err
	}
	return query, nil
}

func parsePositiveInt(c *fiber.Ctx, key string, defaultVal int) (int, error) {
	val := c.Query(key)
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 1 {
		return 0, apperrors.NewValidationError(key+" must be a positive integer", map[string]any{key: val})
	}
	return parsed, nil
}
