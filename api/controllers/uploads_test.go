package controllers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/vitalcart/storefront-backend/internal/questionnaires"
)

type stubUploader struct {
	code string
	name string
	size int
}

func (s *stubUploader) Store(ctx context.Context, userID *uuid.UUID, questionCode, fileName string, data []byte) (*questionnaires.Upload, error) {
	s.code = questionCode
	s.name = fileName
	s.size = len(data)
	return &questionnaires.Upload{ID: uuid.New(), QuestionCode: questionCode, FileName: fileName}, nil
}

func TestQuestionnaireUpload(t *testing.T) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("questionCode", " scalp_photo "); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := form.CreateFormFile("file", "scalp.png")
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	part.Write([]byte{0x89, 'P', 'N', 'G'})
	form.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/questionnaires/uploads", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	svc := &stubUploader{}
	QuestionnaireUpload(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.code != "scalp_photo" || svc.name != "scalp.png" || svc.size != 4 {
		t.Fatalf("unexpected store call %+v", svc)
	}
}

func TestQuestionnaireUploadRequiresFile(t *testing.T) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	form.WriteField("questionCode", "scalp_photo")
	form.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/questionnaires/uploads", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	rec := httptest.NewRecorder()
	QuestionnaireUpload(&stubUploader{}, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
