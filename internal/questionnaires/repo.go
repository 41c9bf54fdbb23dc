package questionnaires

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/internal/repo"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository struct {
	repo.Base
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// ActiveForVertical returns the newest active questionnaire of a health vertical with its ordered questions.
func (r *Repository) ActiveForVertical(ctx context.Context, slug string) (*models.Questionnaire, []models.Question, error) {
	var questionnaire models.Questionnaire
	err := r.DB(ctx).
		Joins("JOIN health_verticals hv ON hv.id = questionnaires.health_vertical_id").
		Where("hv.slug = ? AND questionnaires.is_active = ?", slug, true).
		Order("questionnaires.version DESC").
		First(&questionnaire).Error
	if err != nil {
		return nil, nil, err
	}

	var questions []models.Question
	if err := r.DB(ctx).
		Where("questionnaire_id = ?", questionnaire.ID).
		Order("position ASC").
		Find(&questions).Error; err != nil {
		return nil, nil, err
	}
	return &questionnaire, questions, nil
}

func (r *Repository) FindVerticalBySlug(ctx context.Context, slug string) (*models.HealthVertical, error) {
	var vertical models.HealthVertical
	if err := r.DB(ctx).Where("slug = ?", slug).First(&vertical).Error; err != nil {
		return nil, err
	}
	return &vertical, nil
}

// SaveResponses keeps one row per (user, questionnaire); the latest submission wins.
func (r *Repository) SaveResponses(ctx context.Context, userID, questionnaireID uuid.UUID, responses datatypes.JSON) error {
	now := time.Now().UTC()
	row := models.UserResponse{
		ID:              uuid.New(),
		UserID:          userID,
		QuestionnaireID: questionnaireID,
		Responses:       responses,
		SubmittedAt:     now,
		UpdatedAt:       now,
	}
	return r.DB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "questionnaire_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"responses", "submitted_at", "updated_at"}),
	}).Create(&row).Error
}

func (r *Repository) FindResponses(ctx context.Context, userID, questionnaireID uuid.UUID) (*models.UserResponse, error) {
	var row models.UserResponse
	if err := r.DB(ctx).
		Where("user_id = ? AND questionnaire_id = ?", userID, questionnaireID).
		First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) CreateUpload(ctx context.Context, upload *models.QuestionnaireUpload) error {
	if upload.ID == uuid.Nil {
		upload.ID = uuid.New()
	}
	return r.DB(ctx).Create(upload).Error
}

func (r *Repository) FindUpload(ctx context.Context, id uuid.UUID) (*models.QuestionnaireUpload, error) {
	var upload models.QuestionnaireUpload
	if err := r.DB(ctx).First(&upload, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &upload, nil
}
