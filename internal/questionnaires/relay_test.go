package questionnaires

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalcart/storefront-backend/internal/repo/repotest"
	"github.com/vitalcart/storefront-backend/pkg/db/models"
	"github.com/vitalcart/storefront-backend/pkg/emed"
	"github.com/vitalcart/storefront-backend/pkg/enums"
	"github.com/vitalcart/storefront-backend/pkg/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type stubClinical struct {
	err        error
	calls      int
	photos     []emed.Photo
	submission emed.Submission
}

func (s *stubClinical) SubmitQuestionnaireAndCart(ctx context.Context, patientID string, photos []emed.Photo, submission emed.Submission, cart []emed.CartItem) error {
	s.calls++
	s.photos = photos
	s.submission = submission
	return s.err
}

type memoryObjects struct {
	data map[string][]byte
	puts int
	err  error
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{data: map[string][]byte{}}
}

func (m *memoryObjects) Put(ctx context.Context, object, contentType string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.puts++
	m.data[object] = data
	return nil
}

func (m *memoryObjects) Get(ctx context.Context, object string) ([]byte, error) {
	data, ok := m.data[object]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (m *memoryObjects) Delete(ctx context.Context, object string) error {
	delete(m.data, object)
	return nil
}

func seedQuestionnaire(t *testing.T, conn *gorm.DB) (*Repository, uuid.UUID) {
	t.Helper()
	vertical := models.HealthVertical{ID: uuid.New(), Slug: "hair-loss", Name: "Hair Loss"}
	require.NoError(t, conn.Create(&vertical).Error)
	older := models.Questionnaire{ID: uuid.New(), HealthVerticalID: vertical.ID, Title: "Hair v1", Version: 1, IsActive: true}
	newer := models.Questionnaire{ID: uuid.New(), HealthVerticalID: vertical.ID, Title: "Hair v2", Version: 2, IsActive: true}
	require.NoError(t, conn.Create(&older).Error)
	require.NoError(t, conn.Create(&newer).Error)
	require.NoError(t, conn.Create(&[]models.Question{
		{ID: uuid.New(), QuestionnaireID: newer.ID, Code: "scalp_photo", Text: "Upload a photo of your scalp", Type: "image", Position: 2},
		{ID: uuid.New(), QuestionnaireID: newer.ID, Code: "age_range", Text: "How old are you?", Type: "choice", Position: 1},
	}).Error)
	return NewRepository(conn), newer.ID
}

func newTestRelay(t *testing.T, clinical submitter, st store) *Relay {
	t.Helper()
	return newTestRelayWithObjects(t, clinical, st, newMemoryObjects())
}

func newTestRelayWithObjects(t *testing.T, clinical submitter, st store, objects objectReader) *Relay {
	t.Helper()
	relay, err := NewRelay(clinical, st, objects, logger.New(logger.Options{ServiceName: "relay-test", Output: io.Discard}))
	require.NoError(t, err)
	return relay
}

func TestRelaySubmitsPhotosAnswersAndQuestions(t *testing.T) {
	conn := repotest.NewDB(t)
	repo, questionnaireID := seedQuestionnaire(t, conn)
	clinical := &stubClinical{}
	relay := newTestRelay(t, clinical, repo)

	outcome := relay.Submit(context.Background(), SubmitRequest{
		PatientID:    "pat-1",
		VerticalSlug: "hair-loss",
		Answers: []Answer{
			{QuestionCode: "age_range", Value: "25-34"},
			{QuestionCode: "scalp_photo", Image: DataURI{Raw: "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)}},
			{QuestionCode: "front_photo", Image: StoredReference{UploadID: uuid.New()}},
			{QuestionCode: "side_photo", Image: StoredReference{Ref: "ref-lost-123"}},
			{QuestionCode: "text_as_photo", Image: FileRef{Name: "notes.txt", Data: []byte("plain text")}},
		},
	})

	assert.True(t, outcome.OK())
	require.Equal(t, 1, clinical.calls)
	require.Len(t, clinical.photos, 1)
	assert.Equal(t, "image/png", clinical.photos[0].ContentType)
	assert.Equal(t, "scalp_photo.png", clinical.photos[0].FileName)
	assert.Equal(t, questionnaireID.String(), clinical.submission.QuestionnaireID)
	require.Len(t, clinical.submission.Questions, 2)
	assert.Equal(t, "age_range", clinical.submission.Questions[0].Code)
	require.Len(t, clinical.submission.Answers, 1)
}

func TestRelayResolvesStoredReferences(t *testing.T) {
	conn := repotest.NewDB(t)
	repo, _ := seedQuestionnaire(t, conn)
	objects := newMemoryObjects()
	objects.data["questionnaire-uploads/front.png"] = pngBytes
	upload := &models.QuestionnaireUpload{QuestionCode: "front_photo", FileName: "front.png", ContentType: "image/png", ObjectKey: "questionnaire-uploads/front.png", SizeBytes: len(pngBytes)}
	require.NoError(t, repo.CreateUpload(context.Background(), upload))
	missing := &models.QuestionnaireUpload{QuestionCode: "side_photo", FileName: "side.png", ContentType: "image/png", ObjectKey: "questionnaire-uploads/side.png", SizeBytes: len(pngBytes)}
	require.NoError(t, repo.CreateUpload(context.Background(), missing))

	clinical := &stubClinical{}
	relay := newTestRelayWithObjects(t, clinical, repo, objects)
	outcome := relay.Submit(context.Background(), SubmitRequest{
		PatientID: "pat-1",
		Answers: []Answer{
			{QuestionCode: "front_photo", Image: StoredReference{UploadID: upload.ID}},
			{QuestionCode: "side_photo", Image: StoredReference{UploadID: missing.ID}},
		},
	})

	assert.True(t, outcome.OK())
	require.Len(t, clinical.photos, 1)
	assert.Equal(t, "front.png", clinical.photos[0].FileName)
}

func TestRelaySubmitsAnswersDespiteLostReference(t *testing.T) {
	conn := repotest.NewDB(t)
	repo, _ := seedQuestionnaire(t, conn)
	clinical := &stubClinical{}
	relay := newTestRelay(t, clinical, repo)

	answers, err := DecodeAnswers([]byte(`{"age_range":"25-34","symptoms":"hair loss","scalp_photo":{"type":"image_reference","uploadId":"ref-lost-123"}}`))
	require.NoError(t, err)

	outcome := relay.Submit(context.Background(), SubmitRequest{PatientID: "pat-1", VerticalSlug: "hair-loss", Answers: answers})

	assert.True(t, outcome.OK())
	require.Equal(t, 1, clinical.calls)
	assert.Empty(t, clinical.photos)
	require.Len(t, clinical.submission.Answers, 2)
	assert.Equal(t, "age_range", clinical.submission.Answers[0].QuestionCode)
}

func TestRelayNeverFailsPastBoundary(t *testing.T) {
	conn := repotest.NewDB(t)
	repo, _ := seedQuestionnaire(t, conn)
	relay := newTestRelay(t, &stubClinical{err: errors.New("emed down")}, repo)

	outcome := relay.Submit(context.Background(), SubmitRequest{PatientID: "pat-1", VerticalSlug: "unknown"})
	assert.Equal(t, enums.IntegrationFailed, outcome.Status)
	assert.Contains(t, outcome.Error, "emed down")

	skipped := relay.Submit(context.Background(), SubmitRequest{})
	assert.Equal(t, enums.IntegrationSkipped, skipped.Status)
}

func TestSaveResponsesLatestWins(t *testing.T) {
	conn := repotest.NewDB(t)
	repo, questionnaireID := seedQuestionnaire(t, conn)
	relay := newTestRelay(t, &stubClinical{}, repo)
	ctx := context.Background()
	userID := uuid.New()

	require.True(t, relay.SaveResponses(ctx, userID, "hair-loss", datatypes.JSON(`{"age_range":"18-24"}`)).OK())
	require.True(t, relay.SaveResponses(ctx, userID, "hair-loss", datatypes.JSON(`{"age_range":"25-34"}`)).OK())

	var count int64
	require.NoError(t, conn.Model(&models.UserResponse{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	stored, err := repo.FindResponses(ctx, userID, questionnaireID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"age_range":"25-34"}`, string(stored.Responses))

	assert.Equal(t, enums.IntegrationFailed, relay.SaveResponses(ctx, userID, "missing", datatypes.JSON(`{}`)).Status)
	assert.Equal(t, enums.IntegrationSkipped, relay.SaveResponses(ctx, userID, "hair-loss", nil).Status)
}
