package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/intake-processor/internal/models"
	"github.com/feichai0017/intake-processor/internal/schema"
	"github.com/feichai0017/intake-processor/internal/service/intake"
	"github.com/feichai0017/intake-processor/pkg/logger"
	"github.com/feichai0017/intake-processor/pkg/storage"
)

type stubService struct {
	result   *intake.Result
	err      error
	lastReq  *intake.Request
	patients []models.PatientRecord
	answers  *storage.ArchivedAnswers
	catalog  *schema.Catalog
}

func (s *stubService) Process(ctx context.Context, req *intake.Request) (*intake.Result, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	res := *s.result
	res.Profile = req.Profile
	res.Document = models.NewDocument(res.ID, req.Filename, models.MediaKindPDF, req.ContentType, req.Data)
	return &res, nil
}

func (s *stubService) ListPatients(ctx context.Context) ([]models.PatientRecord, error) {
	return s.patients, s.err
}

func (s *stubService) GetAnswers(ctx context.Context, id string) (*storage.ArchivedAnswers, error) {
	if s.answers == nil {
		return nil, intake.ErrArchiveDisabled
	}
	return s.answers, nil
}

func (s *stubService) Schema(p schema.Profile) (*schema.Registry, error) {
	return s.catalog.Get(p)
}

func (s *stubService) Close() error { return nil }

func newRouter(t *testing.T, svc *stubService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cat, err := schema.LoadCatalog()
	require.NoError(t, err)
	svc.catalog = cat

	h := NewHandlers(svc, logger.NewTestLogger())
	r := gin.New()
	r.POST("/parse-pdf", h.Intake.ParsePDF)
	r.POST("/parse-audio-for-questions", h.Intake.ParseAudioForQuestions)
	r.POST("/api/v1/intake/:profile", h.Intake.Process)
	r.GET("/api/v1/intake/:id/answers", h.Intake.GetAnswers)
	r.GET("/api/v1/schema/:profile", h.Intake.GetSchema)
	r.GET("/patients", h.Intake.ListPatients)
	r.GET("/", h.Intake.Health)
	return r
}

func upload(t *testing.T, path, filename string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	r := newRouter(t, &stubService{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Backend is working!", decode(t, rec)["message"])
}

func TestParsePDF_LegacyShape(t *testing.T) {
	svc := &stubService{result: &intake.Result{
		ID: "id-1",
		Answers: models.AnswerSet{
			models.LegacyPatientName:      "Jane Doe",
			models.LegacyDateOfBirth:      "Unknown",
			models.LegacyPrimaryDiagnosis: "asthma",
		},
	}}
	r := newRouter(t, svc)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, upload(t, "/parse-pdf", "intake.pdf", []byte("%PDF-1.4")))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	data := body["extracted_data"].(map[string]any)
	assert.Equal(t, "Jane Doe", data["patient_name"])
	assert.Equal(t, schema.ProfileLegacy, svc.lastReq.Profile)
	assert.Equal(t, models.MediaKindPDF, svc.lastReq.Kind)
	assert.Equal(t, "intake.pdf", svc.lastReq.Filename)
}

func TestParseAudioForQuestions_Kind(t *testing.T) {
	svc := &stubService{result: &intake.Result{Answers: models.AnswerSet{"a": "b"}}}
	r := newRouter(t, svc)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, upload(t, "/parse-audio-for-questions", "visit.mp3", []byte("ID3")))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec), "extracted_answers")
	assert.Equal(t, schema.ProfileMinimal, svc.lastReq.Profile)
	assert.Equal(t, models.MediaKindAudio, svc.lastReq.Kind)
}

func TestMissingFileField(t *testing.T) {
	r := newRouter(t, &stubService{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/parse-pdf", nil)
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(models.KindInputValidation), decode(t, rec)["error"])
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"validation", models.NewError(models.KindInputValidation, nil, "empty file"), http.StatusBadRequest, string(models.KindInputValidation)},
		{"unsupported media", models.NewError(models.KindInputValidation, models.ErrUnsupportedMedia, "bad type"), http.StatusUnsupportedMediaType, string(models.KindInputValidation)},
		{"extraction", models.NewError(models.KindExtraction, nil, "no text"), http.StatusUnprocessableEntity, string(models.KindExtraction)},
		{"transcription", models.NewError(models.KindTranscription, nil, "no text"), http.StatusUnprocessableEntity, string(models.KindTranscription)},
		{"completion", models.NewError(models.KindSchemaExtraction, nil, "provider down"), http.StatusBadGateway, string(models.KindSchemaExtraction)},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(t, &stubService{err: tt.err})
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, upload(t, "/parse-pdf", "intake.pdf", []byte("%PDF-1.4")))

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, tt.kind, body["error"])
			assert.NotEmpty(t, body["message"])
		})
	}
}

func TestProcess_V1(t *testing.T) {
	svc := &stubService{result: &intake.Result{
		ID:      "id-2",
		Source:  "native_pdf",
		Answers: models.AnswerSet{"demographics.age": 42.0, "demographics.gender": "Female"},
		Elapsed: 3 * time.Millisecond,
	}}
	r := newRouter(t, svc)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, upload(t, "/api/v1/intake/intake?nested=true", "form.pdf", []byte("%PDF-1.4")))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "id-2", body["id"])
	assert.Equal(t, string(schema.ProfileFull), body["profile"])
	nested := body["nested"].(map[string]any)
	assert.Contains(t, nested, "demographics")
	assert.Equal(t, models.MediaKindUnknown, svc.lastReq.Kind)
}

func TestProcess_UnknownProfile(t *testing.T) {
	r := newRouter(t, &stubService{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, upload(t, "/api/v1/intake/bogus", "form.pdf", []byte("%PDF-1.4")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAnswers(t *testing.T) {
	id := "3f1c9a52-7a0e-4d4b-9d7a-2b1f0c9e8d11"

	r := newRouter(t, &stubService{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/intake/not-a-uuid/answers", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/intake/"+id+"/answers", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	r = newRouter(t, &stubService{answers: &storage.ArchivedAnswers{ID: id, Answers: models.AnswerSet{"x": "y"}}})
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/intake/"+id+"/answers", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), id)
	assert.Equal(t, id, decode(t, rec)["id"])
}

func TestGetSchema(t *testing.T) {
	r := newRouter(t, &stubService{})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/schema/legacy", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	fields := decode(t, rec)["fields"].([]any)
	assert.Len(t, fields, 3)
}

func TestListPatients(t *testing.T) {
	r := newRouter(t, &stubService{patients: []models.PatientRecord{{ID: "b"}, {ID: "a"}}})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/patients", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Len(t, body["patients"], 2)
}
