package service

import (
	"context"
	"errors"
	"math"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"

	"github.com/telecomx/user-service/internal/domain"
	"github.com/telecomx/user-service/internal/events"
	"github.com/telecomx/user-service/internal/identity"
	"github.com/telecomx/user-service/internal/repository"
	apperrors "github.com/telecomx/user-service/pkg/util"
)

const (
	DefaultPage  = 1
	DefaultLimit = 50

	conflictMessage = "name or email already in use by an active user"
)

// UserService coordinates the user lifecycle: every successful mutation is
// persisted first and then handed to the emitter.
type UserService struct {
	users   repository.UserRepository
	ids     *identity.Allocator
	emitter events.Emitter
	logger  *zap.Logger
	now     func() time.Time
}

// UserDependencies bundles collaborators for the user service.
type UserDependencies struct {
	UserRepo  repository.UserRepository
	Allocator *identity.Allocator
	Emitter   events.Emitter
	Logger    *zap.Logger
}

// CreateUserInput describes user creation payload.
type CreateUserInput struct {
	Name    string
	Email   string
	Address domain.Address
	Phone   domain.Phone
}

// Validate performs presence checks. A phone number is present when its
// text is non-empty, so "0" is accepted.
func (in CreateUserInput) Validate() error {
	return validation.Errors{
		"name":              validation.Validate(in.Name, validation.Required),
		"email":             validation.Validate(in.Email, validation.Required),
		"address.address":   validation.Validate(in.Address.Address, validation.Required),
		"phone.phoneNumber": validation.Validate(string(in.Phone.PhoneNumber), validation.Required),
	}.Filter()
}

// ListUsersInput describes list filters. Page is 1-based.
type ListUsersInput struct {
	Query string
	Page  int
	Limit int
}

// NewUserService constructs the service.
func NewUserService(deps UserDependencies) *UserService {
	return &UserService{
		users:   deps.UserRepo,
		ids:     deps.Allocator,
		emitter: deps.Emitter,
		logger:  deps.Logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Create registers a new active user.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	if err := input.Validate(); err != nil {
		return nil, validationError(err)
	}
	if err := s.ensureUnique(ctx, input.Name, input.Email, ""); err != nil {
		return nil, err
	}

	userID, err := s.ids.NextID(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		UserID:    userID,
		Name:      input.Name,
		Email:     input.Email,
		Address:   input.Address,
		Phone:     input.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created", zap.String("user_id", user.UserID))
	s.emitter.Publish(ctx, user.UserID, events.EventCustomerCreated, *user)
	return user, nil
}

// Update applies a partial update to a non-deleted user.
func (s *UserService) Update(ctx context.Context, userID string, patch domain.UserPatch) (*domain.User, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	user, err := s.findMutable(ctx, userID)
	if err != nil {
		return nil, err
	}

	name, email := deref(patch.Name), deref(patch.Email)
	if name != "" || email != "" {
		if err := s.ensureUnique(ctx, name, email, userID); err != nil {
			return nil, err
		}
	}

	if err := user.ApplyPatch(patch, s.now()); err != nil {
		return nil, transitionError(userID, err)
	}
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user updated", zap.String("user_id", user.UserID))
	s.emitter.Publish(ctx, user.UserID, events.EventCustomerUpdated, events.UserUpdatedPayload{
		UserID:    user.UserID,
		UserPatch: patch,
	})
	return user, nil
}

// Suspend marks a user suspended. Repeating it writes and emits again.
func (s *UserService) Suspend(ctx context.Context, userID string) (*domain.User, error) {
	return s.transition(ctx, userID, events.EventCustomerSuspended, (*domain.User).Suspend)
}

// Reactivate clears the suspended flag. Repeating it writes and emits again.
func (s *UserService) Reactivate(ctx context.Context, userID string) (*domain.User, error) {
	return s.transition(ctx, userID, events.EventCustomerReactivated, (*domain.User).Reactivate)
}

// Delete logically deletes a user.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	_, err := s.transition(ctx, userID, events.EventCustomerDeleted, (*domain.User).MarkDeleted)
	return err
}

// List returns active users matching the optional query, paginated.
func (s *UserService) List(ctx context.Context, input ListUsersInput) ([]domain.User, error) {
	if input.Page == 0 {
		input.Page = DefaultPage
	}
	if input.Limit == 0 {
		input.Limit = DefaultLimit
	}
	if input.Page < 1 || input.Limit < 1 {
		return nil, apperrors.NewValidationError("page and limit must be positive integers", map[string]any{
			"page":  input.Page,
			"limit": input.Limit,
		})
	}
	if input.Page-1 > math.MaxInt/input.Limit {
		return nil, apperrors.NewValidationError("page is out of range for the given limit", map[string]any{
			"page":  input.Page,
			"limit": input.Limit,
		})
	}

	return s.users.Search(ctx, repository.UserFilter{
		Query:  input.Query,
		Offset: (input.Page - 1) * input.Limit,
		Limit:  input.Limit,
	})
}

// GetByEmail returns the active user holding email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, apperrors.NewNotFound("user", map[string]any{"email": email})
	}
	return user, err
}

func (s *UserService) transition(ctx context.Context, userID string, eventType events.EventType, apply func(*domain.User, time.Time) error) (*domain.User, error) {
	user, err := s.findMutable(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := apply(user, s.now()); err != nil {
		return nil, transitionError(userID, err)
	}
	if err := s.save(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user state changed",
		zap.String("user_id", user.UserID),
		zap.String("state", string(user.State())))
	s.emitter.Publish(ctx, user.UserID, eventType, events.UserRefPayload{UserID: user.UserID})
	return user, nil
}

// findMutable loads a user that may still transition. Missing and deleted
// users are both reported as not found.
func (s *UserService) findMutable(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.FindByUserID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, notFound(userID)
	}
	if err != nil {
		return nil, err
	}
	if user.Deleted {
		return nil, notFound(userID)
	}
	return user, nil
}

func (s *UserService) ensureUnique(ctx context.Context, name, email, excludeUserID string) error {
	existing, err := s.users.FindActiveByNameOrEmail(ctx, name, email, excludeUserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	details := map[string]any{}
	if name != "" && existing.Name == name {
		details["name"] = name
	}
	if email != "" && existing.Email == email {
		details["email"] = email
	}
	return apperrors.NewConflict(conflictMessage, details)
}

// save maps a store-level uniqueness rejection, raised when two writers
// pass the read-side check concurrently, to the same conflict.
func (s *UserService) save(ctx context.Context, user *domain.User) error {
	err := s.users.Save(ctx, user)
	if errors.Is(err, domain.ErrDuplicateUser) {
		return apperrors.NewConflict(conflictMessage, nil)
	}
	return err
}

func validatePatch(patch domain.UserPatch) error {
	errs := validation.Errors{}
	if patch.Address != nil && patch.Address.Address != nil {
		errs["address.address"] = validation.Validate(*patch.Address.Address, validation.Required)
	}
	if patch.Phone != nil && patch.Phone.PhoneNumber != nil {
		errs["phone.phoneNumber"] = validation.Validate(string(*patch.Phone.PhoneNumber), validation.Required)
	}
	if err := errs.Filter(); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) error {
	details := map[string]any{}
	var errs validation.Errors
	if errors.As(err, &errs) {
		for field, fieldErr := range errs {
			details[field] = fieldErr.Error()
		}
	}
	return apperrors.NewValidationError(err.Error(), details)
}

func transitionError(userID string, err error) error {
	if errors.Is(err, domain.ErrUserDeleted) {
		return notFound(userID)
	}
	return err
}

func notFound(userID string) error {
	return apperrors.NewNotFound("user", map[string]any{"userId": userID})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
