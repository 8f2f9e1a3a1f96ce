package dto

import (
	"github.com/telecomx/user-service/internal/domain"
	"github.com/telecomx/user-service/internal/service"
)

// CreateUserRequest payload for POST /users.
type CreateUserRequest struct {
	Name    string         `json:"name"`
	Email   string         `json:"email"`
	Address domain.Address `json:"address"`
	Phone   domain.Phone   `json:"phone"`
}

// ToInput maps the request onto the service input.
func (r CreateUserRequest) ToInput() service.CreateUserInput {
	return service.CreateUserInput{
		Name:    r.Name,
		Email:   r.Email,
		Address: r.Address,
		Phone:   r.Phone,
	}
}

// UpdateUserRequest payload for PUT /users/:id. Only these fields are
// updatable; anything else in the body is ignored.
type UpdateUserRequest struct {
	Name    *string              `json:"name"`
	Email   *string              `json:"email"`
	Address *domain.AddressPatch `json:"address"`
	Phone   *domain.PhonePatch   `json:"phone"`
}

// ToPatch maps the request onto a domain patch.
func (r UpdateUserRequest) ToPatch() domain.UserPatch {
	return domain.UserPatch{
		Name:    r.Name,
		Email:   r.Email,
		Address: r.Address,
		Phone:   r.Phone,
	}
}

// UserListQuery captures GET /users filters.
type UserListQuery struct {
	Query string
	Page  int
	Limit int
}

// ToInput maps the query onto the service input.
func (q UserListQuery) ToInput() service.ListUsersInput {
	return service.ListUsersInput{Query: q.Query, Page: q.Page, Limit: q.Limit}
}

// OKResponse acknowledges operations without a body.
type OKResponse struct {
	OK bool `json:"ok"`
}
