// internal/membership/implementation.go
package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var (
	// ErrNotFound is returned when the referenced member does not exist.
	ErrNotFound = errors.New("member not found")
	// ErrEmailTaken is returned when registering with an email that is
	// already in use.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned on a failed login. Deliberately
	// vague about whether the email or the password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRateLimited is returned when too many auth attempts arrive.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrInvalidRole is returned for roles other than MEMBER or LIBRARIAN.
	ErrInvalidRole = errors.New("invalid role")
)

// service implements the Service interface.
type service struct {
	store       Store
	tokens      *TokenIssuer
	rateLimiter *rate.Limiter
}

// NewService creates a new membership service instance.
func NewService(store Store, tokens *TokenIssuer) Service {
	return &service{
		store:       store,
		tokens:      tokens,
		rateLimiter: rate.NewLimiter(rate.Every(time.Minute), 5), // 5 auth attempts per minute
	}
}

// Register creates a new member with a salted password hash. An empty role
// defaults to MEMBER.
func (s *service) Register(ctx context.Context, name, email, password, role string) (*Member, error) {
	if !s.rateLimiter.Allow() {
		return nil, ErrRateLimited
	}
	if name == "" || email == "" || password == "" {
		return nil, fmt.Errorf("name, email and password are required")
	}

	if role == "" {
		role = RoleMember
	}
	if role != RoleMember && role != RoleLibrarian {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}

	existing, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get member by email: %w", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: %s", ErrEmailTaken, email)
	}

	passwordHash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	member := &Member{
		ID:    uuid.New(),
		Name:  name,
		Email: email,
		Role:  role,
	}
	credential := &Credential{
		MemberID:     member.ID,
		PasswordHash: passwordHash,
		Salt:         salt,
	}

	if err := s.store.Save(ctx, member, credential); err != nil {
		return nil, fmt.Errorf("save member: %w", err)
	}

	return member, nil
}

// Authenticate verifies a member's credentials and returns the member
// together with a signed bearer token.
func (s *service) Authenticate(ctx context.Context, email, password string) (*Member, string, error) {
	if !s.rateLimiter.Allow() {
		return nil, "", ErrRateLimited
	}

	member, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("get member by email: %w", err)
	}
	if member == nil {
		return nil, "", ErrInvalidCredentials
	}

	credential, err := s.store.Credential(ctx, member.ID)
	if err != nil {
		return nil, "", fmt.Errorf("get credential: %w", err)
	}
	if credential == nil {
		return nil, "", ErrInvalidCredentials
	}

	ok, err := verifyPassword(password, credential.Salt, credential.PasswordHash)
	if err != nil {
		return nil, "", fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(member)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	return member, token, nil
}

// GetMember retrieves a member by their ID.
func (s *service) GetMember(ctx context.Context, id uuid.UUID) (*Member, error) {
	member, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	if member == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return member, nil
}
