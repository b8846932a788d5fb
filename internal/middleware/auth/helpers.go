package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/language_school/internal/models"
	"github.com/Skotchmaster/language_school/internal/repo"
)

const (
	identityKey = "auth_identity"
	profilesKey = "auth_profiles"

	DefaultLookupTimeout = 5 * time.Second
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrProfileNotFound = errors.New("profile not found")
)

type Source string

const (
	SourceToken   Source = "token"
	SourceSession Source = "session"
)

type Identity struct {
	UserID string      `json:"id"`
	Email  string      `json:"email,omitempty"`
	Role   models.Role `json:"role"`
	Source Source      `json:"source"`
}

type ProfileStore interface {
	AdminProfileByUser(ctx context.Context, userID string) (*models.AdminProfile, error)
	TeacherProfileByUser(ctx context.Context, userID string) (*models.TeacherProfile, error)
	StudentProfileByUser(ctx context.Context, userID string) (*models.StudentProfile, error)
}

type lazy[T any] struct {
	once sync.Once
	v    *T
	err  error
}

func (l *lazy[T]) get(load func() (*T, error)) (*T, error) {
	l.once.Do(func() { l.v, l.err = load() })
	return l.v, l.err
}

// Profiles memoizes role profile lookups for a single request.
type Profiles struct {
	c        echo.Context
	store    ProfileStore
	timeout  time.Duration
	identity *Identity

	admin   lazy[models.AdminProfile]
	teacher lazy[models.TeacherProfile]
	student lazy[models.StudentProfile]
}

func (p *Profiles) Admin() (*models.AdminProfile, error) {
	return p.admin.get(func() (*models.AdminProfile, error) {
		return lookup(p, models.RoleAdmin, p.store.AdminProfileByUser)
	})
}

func (p *Profiles) Teacher() (*models.TeacherProfile, error) {
	return p.teacher.get(func() (*models.TeacherProfile, error) {
		return lookup(p, models.RoleTeacher, p.store.TeacherProfileByUser)
	})
}

func (p *Profiles) Student() (*models.StudentProfile, error) {
	return p.student.get(func() (*models.StudentProfile, error) {
		return lookup(p, models.RoleStudent, p.store.StudentProfileByUser)
	})
}

func lookup[T any](p *Profiles, role models.Role, find func(context.Context, string) (*T, error)) (*T, error) {
	if p.identity == nil {
		return nil, ErrUnauthenticated
	}
	if p.identity.Role != role {
		return nil, ErrProfileNotFound
	}
	ctx, cancel := context.WithTimeout(p.c.Request().Context(), p.timeout)
	defer cancel()

	v, err := find(ctx, p.identity.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	return v, err
}

func IdentityFrom(c echo.Context) (*Identity, bool) {
	id, ok := c.Get(identityKey).(*Identity)
	return id, ok && id != nil
}

// ProfilesFrom never returns nil; without a resolved identity every lookup fails with ErrUnauthenticated.
func ProfilesFrom(c echo.Context) *Profiles {
	if p, ok := c.Get(profilesKey).(*Profiles); ok && p != nil {
		return p
	}
	return &Profiles{c: c}
}

func AdminProfileID(c echo.Context) (uint, error) {
	p, err := ProfilesFrom(c).Admin()
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

func TeacherProfileID(c echo.Context) (uint, error) {
	p, err := ProfilesFrom(c).Teacher()
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

func StudentProfileID(c echo.Context) (uint, error) {
	p, err := ProfilesFrom(c).Student()
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}
