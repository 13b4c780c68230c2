package users

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/platinummonkey/sprintflow/pkg/apperr"
	"github.com/platinummonkey/sprintflow/pkg/audit"
	"github.com/platinummonkey/sprintflow/pkg/auth"
	"github.com/platinummonkey/sprintflow/pkg/rbac"
)

const invalidCredentials = "Invalid credentials"

// Service registers users and logs them in
type Service struct {
	repo        Repository
	resolver    *rbac.Resolver
	tokens      *auth.TokenManager
	auditLogger audit.Logger
}

// Option configures a Service
type Option func(*Service)

// WithAuditLogger records registrations and logins
func WithAuditLogger(l audit.Logger) Option {
	return func(s *Service) { s.auditLogger = l }
}

// NewService creates a user service. Login embeds the permissions resolver
// computes for the user's roles into the issued token.
func NewService(repo Repository, resolver *rbac.Resolver, tokens *auth.TokenManager, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		resolver:    resolver,
		tokens:      tokens,
		auditLogger: audit.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a user. Users without roles get DefaultRole.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, apperr.BadRequest("a valid email is required")
	}
	if name == "" {
		return nil, apperr.BadRequest("name is required")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		if len(in.Password) < auth.MinPasswordLength {
			return nil, apperr.BadRequest("%s", err.Error())
		}
		return nil, err
	}

	roles := in.Roles
	if len(roles) == 0 {
		roles = []string{DefaultRole}
	}

	user := &User{Email: email, Name: name, Roles: roles, PasswordHash: hash}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.record(ctx, audit.EventTypeAuthRegister, audit.EventStatusSuccess, user.ID, map[string]interface{}{
		"email": user.Email,
	})
	return user, nil
}

// Login checks credentials and issues a token carrying the user's roles and
// resolved permissions
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || in.Password == "" {
		return nil, apperr.BadRequest("email and password required")
	}

	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, apperr.ErrNotFound) {
		s.record(ctx, audit.EventTypeAuthLoginFailed, audit.EventStatusFailure, "", map[string]interface{}{"email": email})
		return nil, apperr.Unauthenticated(invalidCredentials)
	}
	if err != nil {
		return nil, err
	}

	if err := auth.CheckPassword(user.PasswordHash, in.Password); err != nil {
		s.record(ctx, audit.EventTypeAuthLoginFailed, audit.EventStatusFailure, user.ID, map[string]interface{}{"email": email})
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, apperr.Unauthenticated(invalidCredentials)
		}
		return nil, err
	}

	token, expiresAt, err := s.IssueToken(ctx, user)
	if err != nil {
		return nil, err
	}

	s.record(ctx, audit.EventTypeAuthLogin, audit.EventStatusSuccess, user.ID, nil)
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// IssueToken signs a session token for user with its current permissions
func (s *Service) IssueToken(ctx context.Context, user *User) (string, time.Time, error) {
	principal := &auth.Principal{UserID: user.ID, Email: user.Email, Roles: user.Roles}

	perms, err := s.resolver.Resolve(ctx, principal)
	if err != nil {
		return "", time.Time{}, apperr.Internal("failed to resolve permissions", err)
	}
	principal.Permissions = perms.Strings()

	return s.tokens.Issue(principal)
}

func (s *Service) record(ctx context.Context, eventType audit.EventType, status audit.EventStatus, userID string, metadata map[string]interface{}) {
	event := audit.NewEvent(ctx, eventType, status)
	event.ResourceType = audit.ResourceTypeUser
	event.ResourceID = userID
	if userID != "" {
		event.UserID = userID
	}
	for k, v := range metadata {
		event.Metadata[k] = v
	}
	audit.Record(ctx, s.auditLogger, event)
}
