package questionnaires

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	"github.com/vitalcart/storefront-backend/pkg/emed"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"github.com/vitalcart/storefront-backend/pkg/types"
	"gorm.io/datatypes"
)

type submitter interface {
	SubmitQuestionnaireAndCart(ctx context.Context, patientID string, photos []emed.Photo, submission emed.Submission, cart []emed.CartItem) error
}

type store interface {
	uploadFinder
	ActiveForVertical(ctx context.Context, slug string) (*models.Questionnaire, []models.Question, error)
	SaveResponses(ctx context.Context, userID, questionnaireID uuid.UUID, responses datatypes.JSON) error
}

// SubmitRequest carries one intake submission for a patient.
type SubmitRequest struct {
	PatientID    string
	VerticalSlug string
	Answers      []Answer
	Cart         []emed.CartItem
}

// Relay forwards quiz answers, photos and cart lines to the clinical system.
type Relay struct {
	clinical submitter
	store    store
	objects  objectReader
	logg     *logger.Logger
}

// NewRelay builds the relay. A nil objects reader leaves stored references unresolved.
func NewRelay(clinical submitter, store store, objects objectReader, logg *logger.Logger) (*Relay, error) {
	if clinical == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "clinical client required")
	}
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "questionnaire store required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Relay{clinical: clinical, store: store, objects: objects, logg: logg}, nil
}

// Submit never fails past its boundary; the returned Outcome says what happened.
func (r *Relay) Submit(ctx context.Context, req SubmitRequest) types.Outcome {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"patient_id":    req.PatientID,
		"vertical_slug": req.VerticalSlug,
	})
	if req.PatientID == "" {
		return types.Skipped("no patient id")
	}
	if err := ctx.Err(); err != nil {
		return types.Failed(err)
	}

	submission := emed.Submission{}
	photos := []emed.Photo{}
	for _, answer := range req.Answers {
		if !answer.IsImage() {
			submission.Answers = append(submission.Answers, emed.Answer{QuestionCode: answer.QuestionCode, Value: answer.Value})
			continue
		}
		photo, err := toPhoto(ctx, r.store, r.objects, answer.QuestionCode, answer.Image)
		if err != nil {
			if errors.Is(err, errUnresolved) {
				r.logg.Warn(r.logg.WithFields(ctx, map[string]any{"question_code": answer.QuestionCode, "reason": err.Error()}), "skipping unresolved image reference")
				continue
			}
			r.logg.Warn(r.logg.WithFields(ctx, map[string]any{"question_code": answer.QuestionCode, "reason": err.Error()}), "skipping unusable image")
			continue
		}
		photos = append(photos, photo)
	}

	if req.VerticalSlug != "" {
		questionnaire, questions, err := r.store.ActiveForVertical(ctx, req.VerticalSlug)
		if err != nil {
			r.logg.Warn(ctx, "questionnaire definition not found, submitting answers without questions")
		} else {
			submission.QuestionnaireID = questionnaire.ID.String()
			for _, q := range questions {
				submission.Questions = append(submission.Questions, emed.Question{Code: q.Code, Text: q.Text, Type: q.Type})
			}
		}
	}

	if err := r.clinical.SubmitQuestionnaireAndCart(ctx, req.PatientID, photos, submission, req.Cart); err != nil {
		r.logg.Error(ctx, "questionnaire relay failed", err)
		return types.Failed(err)
	}
	r.logg.Info(r.logg.WithField(ctx, "photos", len(photos)), "questionnaire relayed")
	return types.Succeeded()
}

// SaveResponses stores the raw answers against the vertical's active questionnaire.
func (r *Relay) SaveResponses(ctx context.Context, userID uuid.UUID, verticalSlug string, raw datatypes.JSON) types.Outcome {
	if len(raw) == 0 {
		return types.Skipped("no quiz responses")
	}
	questionnaire, _, err := r.store.ActiveForVertical(ctx, verticalSlug)
	if err != nil {
		r.logg.Error(r.logg.WithField(ctx, "vertical_slug", verticalSlug), "questionnaire lookup failed", err)
		return types.Failed(err)
	}
	if err := r.store.SaveResponses(ctx, userID, questionnaire.ID, raw); err != nil {
		r.logg.Error(r.logg.WithUserID(ctx, userID.String()), "save quiz responses failed", err)
		return types.Failed(err)
	}
	return types.Succeeded()
}
