package service

import (
	"context"
	"fmt"

	"github.com/alexedwards/argon2id"
	"github.com/diagnosis/hotel-bookings/pkg/auth"
	"github.com/diagnosis/hotel-bookings/pkg/config"
	"github.com/diagnosis/hotel-bookings/pkg/logger"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/policy"
	"github.com/diagnosis/hotel-bookings/services/bookings/internal/repository"
)

type AccountService interface {
	Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	// Identity reloads the user behind a token so role and activation
	// changes apply to tokens that are already issued.
	Identity(ctx context.Context, userID int64) (domain.Identity, error)
	Profile(ctx context.Context, actor domain.Identity) (*domain.User, error)
	ListUsers(ctx context.Context, actor domain.Identity, limit, offset int) ([]domain.User, error)
	SetRole(ctx context.Context, actor domain.Identity, userID int64, role domain.Role) error
	SetActive(ctx context.Context, actor domain.Identity, userID int64, active bool) error
}

type accountService struct {
	store  repository.Store
	config *config.Config
}

func NewAccountService(store repository.Store, cfg *config.Config) AccountService {
	return &accountService{store: store, config: cfg}
}

func (s *accountService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.User, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.Users().FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrEmailTaken
	}

	hash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.store.Users().Create(ctx, &domain.User{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		IsActive:     true,
	})
	if err != nil {
		return nil, keepDomain(err, "failed to create user")
	}

	logger.InfoContext(ctx, "User registered", "user_id", user.ID)
	return user, nil
}

func (s *accountService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	user, err := s.store.Users().FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUnauthenticated
	}

	match, err := argon2id.ComparePasswordAndHash(req.Password, user.PasswordHash)
	if err != nil || !match {
		return nil, domain.ErrUnauthenticated
	}
	if !user.IsActive {
		return nil, forbidden("account is deactivated")
	}

	ttl := s.config.Auth.AccessTokenTTL
	token, err := auth.NewAccessToken(auth.TokenSubject{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.DisplayName(),
		Role:      string(user.Role),
		Superuser: user.IsSuperuser,
	}, s.config.Auth.JWTSecret, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &domain.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
		User:        user,
	}, nil
}

func (s *accountService) Identity(ctx context.Context, userID int64) (domain.Identity, error) {
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return domain.Anonymous(), fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return domain.Anonymous(), domain.ErrUnauthenticated
	}
	return user.Identity(), nil
}

func (s *accountService) Profile(ctx context.Context, actor domain.Identity) (*domain.User, error) {
	if err := policy.Check(actor, policy.OpViewProfile); err != nil {
		return nil, err
	}
	user, err := s.store.Users().FindByID(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, notFound("user")
	}
	return user, nil
}

func (s *accountService) ListUsers(ctx context.Context, actor domain.Identity, limit, offset int) ([]domain.User, error) {
	if err := policy.Check(actor, policy.OpManageUsers); err != nil {
		return nil, err
	}
	return s.store.Users().List(ctx, limit, offset)
}

func (s *accountService) SetRole(ctx context.Context, actor domain.Identity, userID int64, role domain.Role) error {
	if err := policy.Check(actor, policy.OpManageUsers); err != nil {
		return err
	}
	parsed, ok := domain.ParseRole(string(role))
	if !ok {
		return domain.NewValidationError("role", "must be user, staff or admin")
	}
	role = parsed
	if userID == actor.UserID {
		return domain.NewValidationError("user_id", "you cannot change your own role")
	}
	if err := s.store.Users().UpdateRole(ctx, userID, role); err != nil {
		return keepDomain(err, "failed to update role")
	}
	logger.InfoContext(ctx, "User role changed", "target_user_id", userID, "role", role)
	return nil
}

func (s *accountService) SetActive(ctx context.Context, actor domain.Identity, userID int64, active bool) error {
	if err := policy.Check(actor, policy.OpManageUsers); err != nil {
		return err
	}
	if userID == actor.UserID {
		return domain.NewValidationError("user_id", "you cannot change your own activation")
	}
	if err := s.store.Users().SetActive(ctx, userID, active); err != nil {
		return keepDomain(err, "failed to update user")
	}
	logger.InfoContext(ctx, "User activation changed", "target_user_id", userID, "active", active)
	return nil
}
