package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/Skotchmaster/language_school/internal/models"
)

func (r *GormRepo) AdminProfileByUser(ctx context.Context, userID string) (*models.AdminProfile, error) {
	var p models.AdminProfile
	if err := r.profileByUser(ctx, userID, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormRepo) TeacherProfileByUser(ctx context.Context, userID string) (*models.TeacherProfile, error) {
	var p models.TeacherProfile
	if err := r.profileByUser(ctx, userID, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormRepo) StudentProfileByUser(ctx context.Context, userID string) (*models.StudentProfile, error) {
	var p models.StudentProfile
	if err := r.profileByUser(ctx, userID, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormRepo) profileByUser(ctx context.Context, userID string, dst any) error {
	if err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(dst).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// ProfileFor returns whichever profile row belongs to the user's role.
func (r *GormRepo) ProfileFor(ctx context.Context, u *models.User) (any, error) {
	switch u.Role {
	case models.RoleAdmin:
		return r.AdminProfileByUser(ctx, u.ID)
	case models.RoleTeacher:
		return r.TeacherProfileByUser(ctx, u.ID)
	case models.RoleStudent:
		return r.StudentProfileByUser(ctx, u.ID)
	}
	return nil, ErrNotFound
}
