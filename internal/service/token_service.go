package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Skotchmaster/language_school/internal/hash"
	"github.com/Skotchmaster/language_school/internal/logging"
	"github.com/Skotchmaster/language_school/internal/models"
	"github.com/Skotchmaster/language_school/internal/mykafka"
	"github.com/Skotchmaster/language_school/internal/repo"
	"github.com/Skotchmaster/language_school/internal/tokens"
)

const (
	lookupTimeout  = 5 * time.Second
	publishTimeout = 5 * time.Second
)

type UserStore interface {
	CreateUserWithProfile(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

type AuthService struct {
	Users     UserStore
	Tokens    *tokens.Codec
	Publisher mykafka.Publisher
}

type UserView struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Email string      `json:"email"`
	Role  models.Role `json:"role"`
}

type AuthResult struct {
	User  UserView `json:"user"`
	Token string   `json:"token"`
}

func ViewOf(u *models.User) UserView {
	return UserView{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

func (s *AuthService) IssueFor(u *models.User) (*AuthResult, error) {
	token, err := s.Tokens.Issue(u.ID, u.Email, u.Role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: ViewOf(u), Token: token}, nil
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	role, err := in.validate()
	if err != nil {
		return nil, err
	}

	pwHash, err := hash.HashPassword(in.Password)
	if err != nil {
		l.Error("register_error", "status", 500, "reason", "cannot hash the password", "error", err)
		return nil, err
	}
	user := &models.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: pwHash,
		Role:         role,
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	if err := s.Users.CreateUserWithProfile(ctx, user); err != nil {
		if errors.Is(err, repo.ErrEmailTaken) {
			l.Warn("register_failed", "status", 400, "reason", "user_exists")
			return nil, err
		}
		l.Error("register_failed", "status", 500, "reason", "db_error", "error", err)
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.publish(ctx, user.ID, map[string]any{
		"type":   "user_registered",
		"userID": user.ID,
		"email":  user.Email,
		"role":   user.Role,
	})
	l.Info("register_success", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Refresh re-issues a token for caller-supplied identity after checking it against the stored user.
func (s *AuthService) Refresh(ctx context.Context, in RefreshInput) (string, error) {
	role, err := in.validate()
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()
	user, err := s.Users.GetUserByID(ctx, in.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", repo.ErrInvalidCredentials
		}
		return "", err
	}
	if user.Email != repo.NormalizeEmail(in.Email) || user.Role != role {
		return "", repo.ErrInvalidCredentials
	}
	return s.Tokens.Issue(user.ID, user.Email, user.Role)
}

func (s *AuthService) LoggedIn(ctx context.Context, u *models.User) {
	s.publish(ctx, u.ID, map[string]any{
		"type":   "user_logged_in",
		"userID": u.ID,
		"role":   u.Role,
	})
}

func (s *AuthService) publish(ctx context.Context, key string, event map[string]any) {
	if s.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.Publisher.PublishEvent(ctx, mykafka.TopicUserEvents, key, event); err != nil {
		logging.FromContext(ctx).Error("kafka_publish_failed", "topic", mykafka.TopicUserEvents, "error", err)
	}
}
