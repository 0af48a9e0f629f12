package identity

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/redcell/inventory-engine/ledger"
)

// =============================================================================
// SERVICE - Registration, login, lookup
// =============================================================================

// Service handles registration and credential verification.
type Service struct {
	Store  Store
	Tokens *TokenService
}

func NewService(store Store, tokens *TokenService) *Service {
	return &Service{Store: store, Tokens: tokens}
}

// RegisterParams carries a registration request.
type RegisterParams struct {
	Role     Role
	Name     string
	Email    string
	Password string
	Phone    string
	Address  string
}

// Register creates a user with a bcrypt-hashed password.
func (s *Service) Register(ctx context.Context, p RegisterParams) (User, error) {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))

	if !p.Role.Valid() {
		return User{}, &ledger.ValidationError{Field: "role", Message: "must be admin, organisation, donor or hospital"}
	}
	if p.Name == "" {
		return User{}, &ledger.ValidationError{Field: "name", Message: "is required"}
	}
	if p.Email == "" || !strings.Contains(p.Email, "@") {
		return User{}, &ledger.ValidationError{Field: "email", Message: "must be a valid email address"}
	}
	if len(p.Password) < 6 {
		return User{}, &ledger.ValidationError{Field: "password", Message: "must be at least 6 characters"}
	}

	existing, err := s.Store.UserByEmail(ctx, p.Email)
	if err != nil {
		return User{}, err
	}
	if existing != nil {
		return User{}, &ledger.ValidationError{Field: "email", Message: "is already registered"}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	return s.Store.CreateUser(ctx, User{
		Role:         p.Role,
		Name:         p.Name,
		Email:        p.Email,
		PasswordHash: string(hash),
		Phone:        p.Phone,
		Address:      p.Address,
	})
}

// Login verifies credentials and issues an access token.
// Bad email and bad password return the same error so the endpoint does
// not leak which accounts exist.
func (s *Service) Login(ctx context.Context, email, password string) (string, User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.Store.UserByEmail(ctx, email)
	if err != nil {
		return "", User{}, err
	}
	if user == nil {
		return "", User{}, fmt.Errorf("invalid credentials: %w", ledger.ErrUnauthenticated)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", User{}, fmt.Errorf("invalid credentials: %w", ledger.ErrUnauthenticated)
	}

	token, err := s.Tokens.Issue(*user)
	if err != nil {
		return "", User{}, err
	}
	return token, *user, nil
}

// ByID resolves a user or returns NotFoundError.
func (s *Service) ByID(ctx context.Context, id string) (User, error) {
	user, err := s.Store.UserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if user == nil {
		return User{}, &ledger.NotFoundError{Kind: "user", Ref: id}
	}
	return *user, nil
}

// ByEmail resolves a user or returns NotFoundError.
func (s *Service) ByEmail(ctx context.Context, email string) (User, error) {
	user, err := s.Store.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return User{}, err
	}
	if user == nil {
		return User{}, &ledger.NotFoundError{Kind: "user", Ref: email}
	}
	return *user, nil
}
