package questionnaires

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/logger"
)

const defaultUploadPrefix = "questionnaire-uploads"

type uploadStore interface {
	CreateUpload(ctx context.Context, upload *models.QuestionnaireUpload) error
}

type objectWriter interface {
	Put(ctx context.Context, object, contentType string, data []byte) error
	Delete(ctx context.Context, object string) error
}

// Upload is the stored photo the quiz later references by id.
type Upload struct {
	ID           uuid.UUID `json:"uploadId"`
	QuestionCode string    `json:"questionCode"`
	FileName     string    `json:"fileName"`
	ContentType  string    `json:"contentType"`
	SizeBytes    int       `json:"sizeBytes"`
}

// UploadService writes intake photos to the bucket and records them for later reference.
type UploadService struct {
	store   uploadStore
	objects objectWriter
	prefix  string
	logg    *logger.Logger
}

func NewUploadService(store uploadStore, objects objectWriter, prefix string, logg *logger.Logger) (*UploadService, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "upload store required")
	}
	if objects == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "object storage required")
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = defaultUploadPrefix
	}
	return &UploadService{store: store, objects: objects, prefix: prefix, logg: logg}, nil
}

// Store sniffs the content and, when it is an image within MaxImageBytes, writes the
// object first and the metadata row second. A failed row insert removes the object.
func (s *UploadService) Store(ctx context.Context, userID *uuid.UUID, questionCode, fileName string, data []byte) (*Upload, error) {
	questionCode = strings.TrimSpace(questionCode)
	if questionCode == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "question code is required").WithDetails(map[string]string{"questionCode": "is required"})
	}
	name := strings.TrimSpace(fileName)
	if name == "" {
		name = questionCode
	}

	photo, err := buildPhoto(questionCode, name, data)
	if err != nil {
		switch {
		case errors.Is(err, errNotImage):
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file must be an image").WithDetails(map[string]string{"file": "must be an image"})
		case errors.Is(err, errImageTooLarge):
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file is too large").WithDetails(map[string]any{"file": "too large", "maxBytes": MaxImageBytes})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid image")
	}

	id := uuid.New()
	key := s.objectKey(id, photo.FileName)
	if err := s.objects.Put(ctx, key, photo.ContentType, photo.Data); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to store upload")
	}

	upload := &models.QuestionnaireUpload{
		ID:           id,
		UserID:       userID,
		QuestionCode: photo.QuestionCode,
		FileName:     photo.FileName,
		ContentType:  photo.ContentType,
		ObjectKey:    key,
		SizeBytes:    len(photo.Data),
	}
	if err := s.store.CreateUpload(ctx, upload); err != nil {
		if delErr := s.objects.Delete(context.WithoutCancel(ctx), key); delErr != nil && s.logg != nil {
			s.logg.Error(s.logg.WithField(ctx, "object_key", key), "orphaned upload object", delErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "failed to record upload")
	}
	return &Upload{
		ID:           upload.ID,
		QuestionCode: upload.QuestionCode,
		FileName:     upload.FileName,
		ContentType:  upload.ContentType,
		SizeBytes:    upload.SizeBytes,
	}, nil
}

func (s *UploadService) objectKey(id uuid.UUID, fileName string) string {
	return path.Join(s.prefix, id.String(), sanitizeObjectName(fileName))
}

func sanitizeObjectName(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "photo"
	}
	return cleaned
}
