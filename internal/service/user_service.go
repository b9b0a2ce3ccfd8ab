package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"procurement/internal/model"
	"procurement/internal/repository"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// --- DTOs ---

type CreateUserRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"required"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

type UserResponse struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	IsActive    bool      `json:"is_active"`
	LastLoginAt string    `json:"last_login_at,omitempty"`
	CreatedAt   string    `json:"created_at"`
}

// MeResponse is the caller together with the permission codes of their role.
type MeResponse struct {
	UserResponse
	Permissions []string `json:"permissions"`
}

// --- Interface ---

type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	GetUserByID(ctx context.Context, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, offset, limit int) ([]UserResponse, int64, error)
	EnsureAdmin(ctx context.Context, email, password string) (bool, error)
}

type userService struct {
	repo   repository.UserRepository
	roles  repository.RoleRepository
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewUserService(repo repository.UserRepository, roles repository.RoleRepository, secret []byte, ttl time.Duration) UserService {
	return &userService{
		repo:   repo,
		roles:  roles,
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
	}
}

func mapToResponse(user *model.User) UserResponse {
	resp := UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
	if user.LastLoginAt != nil {
		resp.LastLoginAt = user.LastLoginAt.Format(time.RFC3339)
	}
	return resp
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	if _, err := s.roles.FindByName(ctx, req.Role); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRole, req.Role)
		}
		return nil, fmt.Errorf("failed to fetch role: %w", err)
	}

	if _, err := s.repo.GetByUsername(ctx, req.Username); err == nil {
		return nil, ErrUserExists
	}
	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrUserExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username: req.Username,
		Email:    req.Email,
		Password: string(hashed),
		Role:     req.Role,
		IsActive: true,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	resp := mapToResponse(user)
	return &resp, nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	// deactivated accounts look the same as a wrong password
	if !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	token, err := IssueToken(s.secret, user.ID.String(), user.Role, s.ttl, now)
	if err != nil {
		return nil, err
	}
	if err := s.repo.RecordLogin(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	user.LastLoginAt = &now

	return &TokenResponse{Token: token, ExpiresAt: now.Add(s.ttl), User: mapToResponse(user)}, nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*UserResponse, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, ErrUserNotFound
	}
	resp := mapToResponse(user)
	return &resp, nil
}

func (s *userService) ListUsers(ctx context.Context, offset, limit int) ([]UserResponse, int64, error) {
	users, total, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	res := make([]UserResponse, 0, len(users))
	for i := range users {
		res = append(res, mapToResponse(&users[i]))
	}
	return res, total, nil
}

// EnsureAdmin creates the first admin account on an empty database.
// It reports whether a user was created.
func (s *userService) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	count, err := s.repo.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	_, err = s.CreateUser(ctx, CreateUserRequest{
		Username: "admin",
		Email:    email,
		Password: password,
		Role:     "admin",
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
