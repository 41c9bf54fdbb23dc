package questionnaires

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	"github.com/vitalcart/storefront-backend/pkg/emed"
)

// MaxImageBytes caps a single intake photo.
const MaxImageBytes = 10 << 20

var (
	errNotImage      = errors.New("content is not an image")
	errImageTooLarge = fmt.Errorf("image exceeds %d bytes", MaxImageBytes)
	errUnresolved    = errors.New("stored reference not found")
)

type uploadFinder interface {
	FindUpload(ctx context.Context, id uuid.UUID) (*models.QuestionnaireUpload, error)
}

type objectReader interface {
	Get(ctx context.Context, object string) ([]byte, error)
}

// toPhoto converts an image answer into a transport-ready photo. errUnresolved marks
// references that should be skipped rather than failing the submission.
func toPhoto(ctx context.Context, uploads uploadFinder, objects objectReader, code string, input ImageInput) (emed.Photo, error) {
	switch img := input.(type) {
	case DataURI:
		data, err := decodeDataURI(img.Raw)
		if err != nil {
			return emed.Photo{}, err
		}
		return buildPhoto(code, code, data)
	case FileRef:
		name := img.Name
		if name == "" {
			name = code
		}
		return buildPhoto(code, name, img.Data)
	case StoredReference:
		if !img.Resolvable() || uploads == nil || objects == nil {
			return emed.Photo{}, errUnresolved
		}
		upload, err := uploads.FindUpload(ctx, img.UploadID)
		if err != nil || upload == nil {
			return emed.Photo{}, errUnresolved
		}
		data, err := objects.Get(ctx, upload.ObjectKey)
		if err != nil {
			return emed.Photo{}, fmt.Errorf("%w: %v", errUnresolved, err)
		}
		return buildPhoto(code, upload.FileName, data)
	default:
		return emed.Photo{}, fmt.Errorf("unsupported image input %T", input)
	}
}

func buildPhoto(code, name string, data []byte) (emed.Photo, error) {
	if len(data) == 0 {
		return emed.Photo{}, errNotImage
	}
	if len(data) > MaxImageBytes {
		return emed.Photo{}, errImageTooLarge
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return emed.Photo{}, errNotImage
	}
	if !strings.Contains(name, ".") {
		name += mt.Extension()
	}
	return emed.Photo{
		QuestionCode: code,
		FileName:     name,
		ContentType:  mt.String(),
		Data:         data,
	}, nil
}

func decodeDataURI(raw string) ([]byte, error) {
	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		return nil, errors.New("not a data uri")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errors.New("malformed data uri")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, errors.New("data uri must be base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data uri: %w", err)
	}
	return data, nil
}
