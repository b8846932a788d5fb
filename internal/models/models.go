package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleTeacher Role = "TEACHER"
	RoleStudent Role = "STUDENT"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// ParseRole accepts any casing; an empty string maps to STUDENT.
func ParseRole(s string) (Role, bool) {
	if strings.TrimSpace(s) == "" {
		return RoleStudent, true
	}
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

type User struct {
	ID           string    `gorm:"primaryKey;size:36"       json:"id"`
	Email        string    `gorm:"uniqueIndex;not null"     json:"email"`
	PasswordHash string    `gorm:"not null"                 json:"-"`
	Name         string    `gorm:"not null"                 json:"name"`
	Role         Role      `gorm:"not null;size:16"         json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

type AdminProfile struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"        json:"id"`
	UserID    string    `gorm:"uniqueIndex;not null;size:36"    json:"user_id"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

type TeacherProfile struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"        json:"id"`
	UserID    string    `gorm:"uniqueIndex;not null;size:36"    json:"user_id"`
	Bio       string    `json:"bio"`
	Phone     string    `json:"phone"`
	Languages string    `json:"languages"`
	CreatedAt time.Time `json:"created_at"`
}

type StudentProfile struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"        json:"id"`
	UserID    string    `gorm:"uniqueIndex;not null;size:36"    json:"user_id"`
	Phone     string    `json:"phone"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

type Session struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"index;not null;size:36"`
	Role      Role      `gorm:"not null;size:16"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}

type Course struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title            string    `gorm:"not null"                 json:"title"`
	Description      string    `json:"description"`
	Language         string    `gorm:"index;size:8"             json:"language"`
	Level            string    `gorm:"index;size:8"             json:"level"`
	Price            float64   `json:"price"`
	TeacherID        *uint     `gorm:"index"                    json:"teacher_id,omitempty"`
	CreatedByAdminID uint      `gorm:"not null"                 json:"created_by_admin_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Enrollment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"                   json:"id"`
	CourseID  uint      `gorm:"uniqueIndex:idx_course_student;not null"    json:"course_id"`
	StudentID uint      `gorm:"uniqueIndex:idx_course_student;not null"    json:"student_id"`
	Course    *Course   `gorm:"foreignKey:CourseID"                        json:"course,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type BlogPost struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Slug          string    `gorm:"uniqueIndex;not null"     json:"slug"`
	Title         string    `gorm:"not null"                 json:"title"`
	Content       string    `json:"content"`
	Language      string    `gorm:"size:8"                   json:"language"`
	Published     bool      `gorm:"default:false"            json:"published"`
	AuthorAdminID uint      `gorm:"not null"                 json:"author_admin_id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

type HeroSlide struct {
	ID               uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Title            string `gorm:"not null"                 json:"title"`
	Subtitle         string `json:"subtitle"`
	ImageURL         string `json:"image_url"`
	LinkURL          string `json:"link_url"`
	Position         int    `gorm:"index"                    json:"position"`
	Active           bool   `json:"active"`
	CreatedByAdminID uint   `gorm:"not null"                 json:"created_by_admin_id"`
}

type Statistic struct {
	ID               uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Key              string    `gorm:"uniqueIndex;not null"     json:"key"`
	Label            string    `json:"label"`
	Value            int64     `json:"value"`
	UpdatedByAdminID uint      `json:"updated_by_admin_id"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func All() []any {
	return []any{
		&User{}, &AdminProfile{}, &TeacherProfile{}, &StudentProfile{}, &Session{},
		&Course{}, &Enrollment{}, &BlogPost{}, &HeroSlide{}, &Statistic{},
	}
}
