package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type HealthVertical struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Slug      string    `gorm:"column:slug;not null;uniqueIndex"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

type Questionnaire struct {
	ID               uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	HealthVerticalID uuid.UUID `gorm:"column:health_vertical_id;type:uuid;not null;index"`
	Title            string    `gorm:"column:title;not null"`
	Version          int       `gorm:"column:version;not null;default:1"`
	IsActive         bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime"`
}

type Question struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	QuestionnaireID uuid.UUID      `gorm:"column:questionnaire_id;type:uuid;not null;index"`
	Code            string         `gorm:"column:code;not null"`
	Text            string         `gorm:"column:text;not null"`
	Type            string         `gorm:"column:type;not null"`
	Position        int            `gorm:"column:position;not null"`
	Options         datatypes.JSON `gorm:"column:options;type:jsonb"`
}

// UserResponse holds the latest answers a user gave to a questionnaire.
type UserResponse struct {
	ID              uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          uuid.UUID      `gorm:"column:user_id;type:uuid;not null"`
	QuestionnaireID uuid.UUID      `gorm:"column:questionnaire_id;type:uuid;not null"`
	Responses       datatypes.JSON `gorm:"column:responses;type:jsonb;not null"`
	SubmittedAt     time.Time      `gorm:"column:submitted_at;not null"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// QuestionnaireUpload records a photo stored in object storage earlier in the quiz.
type QuestionnaireUpload struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       *uuid.UUID `gorm:"column:user_id;type:uuid"`
	QuestionCode string     `gorm:"column:question_code;not null"`
	FileName     string     `gorm:"column:file_name;not null"`
	ContentType  string     `gorm:"column:content_type;not null"`
	ObjectKey    string     `gorm:"column:object_key;not null"`
	SizeBytes    int        `gorm:"column:size_bytes;not null"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
}
