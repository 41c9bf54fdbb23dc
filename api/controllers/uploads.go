package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/vitalcart/storefront-backend/api/middleware"
	"github.com/vitalcart/storefront-backend/api/responses"
	"github.com/vitalcart/storefront-backend/api/validators"
	"github.com/vitalcart/storefront-backend/internal/questionnaires"
	pkgerrors "github.com/vitalcart/storefront-backend/pkg/errors"
	"github.com/vitalcart/storefront-backend/pkg/logger"
)

const (
	uploadFormOverhead = 1 << 20
	maxFileNameLength  = 120
)

type PhotoUploader interface {
	Store(ctx context.Context, userID *uuid.UUID, questionCode, fileName string, data []byte) (*questionnaires.Upload, error)
}

// QuestionnaireUpload stores an intake photo from a multipart form with
// fields "questionCode" and "file". The quiz then answers with the returned uploadId.
func QuestionnaireUpload(svc PhotoUploader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "upload service unavailable"))
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, questionnaires.MaxImageBytes+uploadFormOverhead)
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "file is too large"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "file is required").WithDetails(map[string]string{"file": "is required"}))
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read upload"))
			return
		}

		upload, err := svc.Store(
			r.Context(),
			middleware.UserUUIDFromContext(r.Context()),
			validators.CleanText(r.FormValue("questionCode"), 64),
			validators.CleanText(header.Filename, maxFileNameLength),
			data,
		)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, upload)
	}
}
