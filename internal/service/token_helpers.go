package service

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/Skotchmaster/language_school/internal/models"
)

var ErrValidation = errors.New("validation error")

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (in *RegisterInput) validate() (models.Role, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return "", fmt.Errorf("%w: Name, email and password are required", ErrValidation)
	}
	// Only a bare address is accepted: display names and comments would end up in the stored email.
	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Name != "" || addr.Address != in.Email {
		return "", fmt.Errorf("%w: Invalid email address", ErrValidation)
	}
	in.Email = addr.Address
	role, ok := models.ParseRole(in.Role)
	if !ok {
		return "", fmt.Errorf("%w: Invalid role", ErrValidation)
	}
	return role, nil
}

type RefreshInput struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

func (in *RefreshInput) validate() (models.Role, error) {
	if strings.TrimSpace(in.UserID) == "" || strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.Role) == "" {
		return "", fmt.Errorf("%w: Missing required fields", ErrValidation)
	}
	role, ok := models.ParseRole(in.Role)
	if !ok {
		return "", fmt.Errorf("%w: Invalid role", ErrValidation)
	}
	return role, nil
}

// Message strips the sentinel prefix so the text can be shown to clients.
func Message(err error) string {
	return strings.TrimPrefix(err.Error(), ErrValidation.Error()+": ")
}
