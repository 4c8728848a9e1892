package intake

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/intake-processor/internal/agent"
	"github.com/feichai0017/intake-processor/internal/llm"
	"github.com/feichai0017/intake-processor/internal/models"
	"github.com/feichai0017/intake-processor/internal/normalize"
	"github.com/feichai0017/intake-processor/internal/repository"
	"github.com/feichai0017/intake-processor/internal/schema"
	"github.com/feichai0017/intake-processor/internal/synonym"
	"github.com/feichai0017/intake-processor/pkg/logger"
	"github.com/feichai0017/intake-processor/pkg/storage"
	"github.com/feichai0017/intake-processor/pkg/storage/memory"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n%%EOF\n")

type stubExtractor struct {
	text  string
	err   error
	calls int32
}

func (s *stubExtractor) Extract(ctx context.Context, src io.ReadSeeker) (*agent.CascadeResult, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.err != nil {
		return &agent.CascadeResult{}, s.err
	}
	return &agent.CascadeResult{Text: s.text, Strategy: "native_pdf"}, nil
}

type stubTranscriber struct {
	text string
	err  error
}

func (s *stubTranscriber) Transcribe(ctx context.Context, doc *models.Document, hint string) (string, error) {
	return s.text, s.err
}

type stubCompletion struct {
	out   string
	calls int32
}

func (s *stubCompletion) Complete(ctx context.Context, instruction string) (string, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.out, nil
}

type failingStore struct{ repository.RecordStore }

func (failingStore) Save(ctx context.Context, r models.PatientRecord) error {
	return errors.New("disk full")
}

type fixture struct {
	svc        *IntakeService
	extractor  *stubExtractor
	completion *stubCompletion
	records    repository.RecordStore
	archive    *memory.MemoryStorage
	log        *logger.TestLogger
}

func newFixture(t *testing.T, completionOut string, records repository.RecordStore) *fixture {
	t.Helper()
	log := logger.NewTestLogger()
	catalog, err := schema.LoadCatalog()
	require.NoError(t, err)
	resolver, err := synonym.Default()
	require.NoError(t, err)

	if records == nil {
		records = repository.NewMemoryStore()
	}
	f := &fixture{
		extractor:  &stubExtractor{text: "Patient: Jane Doe"},
		completion: &stubCompletion{out: completionOut},
		records:    records,
		archive:    memory.NewMemoryStorage(),
		log:        log,
	}
	f.svc, err = NewService(Dependencies{
		Extractor:   f.extractor,
		Transcriber: &stubTranscriber{text: "I have mild headaches"},
		Engine:      llm.NewEngine(f.completion, resolver, log),
		Normalizer:  normalize.NewNormalizer(resolver, log),
		Records:     records,
		Archive:     storage.NewArchive(f.archive, log),
		Catalog:     catalog,
	}, log)
	require.NoError(t, err)
	return f
}

const legacyOut = `{"patient_name": "Jane Doe", "date_of_birth": "1980-01-02", "primary_diagnosis": "asthma"}`

func TestProcess_LegacySavesPatientRecord(t *testing.T) {
	f := newFixture(t, legacyOut, nil)
	ctx := context.Background()

	res, err := f.svc.Process(ctx, &Request{
		Filename: "intake.pdf",
		Data:     pdfBytes,
		Profile:  schema.ProfileLegacy,
		Kind:     models.MediaKindPDF,
	})
	require.NoError(t, err)

	assert.Equal(t, "native_pdf", res.Source)
	assert.Equal(t, "Jane Doe", res.Answers.String(models.LegacyPatientName))
	assert.Len(t, res.Answers, 3)

	patients, err := f.svc.ListPatients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, res.ID, patients[0].ID)
	assert.Equal(t, "asthma", patients[0].PrimaryDiagnosis)

	archived, err := f.svc.GetAnswers(ctx, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", archived.Answers.String(models.LegacyPatientName))
}

func TestProcess_ExtractionFailureSkipsCompletion(t *testing.T) {
	f := newFixture(t, legacyOut, nil)
	f.extractor.err = models.NewError(models.KindExtraction, nil, "no strategy produced text")

	_, err := f.svc.Process(context.Background(), &Request{
		Filename: "scan.pdf",
		Data:     pdfBytes,
		Profile:  schema.ProfileMinimal,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrExtractionFailure)
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.completion.calls))
}

func TestProcess_NonJSONCompletionYieldsAllUnknown(t *testing.T) {
	f := newFixture(t, "I'm sorry, I can't help with that.", nil)

	res, err := f.svc.Process(context.Background(), &Request{
		Filename: "intake.pdf",
		Data:     pdfBytes,
		Profile:  schema.ProfileMinimal,
	})
	require.NoError(t, err)

	reg, err := f.svc.Schema(schema.ProfileMinimal)
	require.NoError(t, err)
	assert.Len(t, res.Answers, reg.Len())
	for path, v := range res.Answers {
		assert.Equal(t, models.Unknown, v, path)
	}
	assert.Zero(t, res.Answers.Resolved())
}

func TestProcess_PersistenceFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, legacyOut, failingStore{repository.NewMemoryStore()})

	res, err := f.svc.Process(context.Background(), &Request{
		Filename: "intake.pdf",
		Data:     pdfBytes,
		Profile:  schema.ProfileLegacy,
	})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", res.Answers.String(models.LegacyPatientName))
	assert.True(t, f.log.HasMessage("ERROR", "Patient record not saved"))
}

func TestProcess_RejectsUnsupportedUpload(t *testing.T) {
	f := newFixture(t, legacyOut, nil)

	_, err := f.svc.Process(context.Background(), &Request{
		Filename: "notes.docx",
		Data:     []byte("hello"),
		Profile:  schema.ProfileMinimal,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInputValidation)
	assert.ErrorIs(t, err, models.ErrUnsupportedMedia)
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.extractor.calls))
}

func TestProcess_RejectsWrongKindForEndpoint(t *testing.T) {
	f := newFixture(t, legacyOut, nil)

	_, err := f.svc.Process(context.Background(), &Request{
		Filename: "visit.mp3",
		Data:     []byte("ID3 audio"),
		Profile:  schema.ProfileLegacy,
		Kind:     models.MediaKindPDF,
	})
	assert.ErrorIs(t, err, models.ErrUnsupportedMedia)
}

func TestProcess_AudioUsesTranscription(t *testing.T) {
	f := newFixture(t, `{}`, nil)

	res, err := f.svc.Process(context.Background(), &Request{
		Filename: "visit.mp3",
		Data:     []byte("ID3 audio"),
		Profile:  schema.ProfileMinimal,
	})
	require.NoError(t, err)
	assert.Equal(t, SourceTranscription, res.Source)
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.extractor.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.completion.calls))

	// minimal profile never touches the patient store
	patients, err := f.svc.ListPatients(context.Background())
	require.NoError(t, err)
	assert.Empty(t, patients)
}

func TestProcess_TranscriptionFailure(t *testing.T) {
	f := newFixture(t, `{}`, nil)
	f.svc.deps.Transcriber = &stubTranscriber{
		err: models.NewError(models.KindTranscription, nil, "empty transcript"),
	}

	_, err := f.svc.Process(context.Background(), &Request{
		Filename: "visit.wav",
		Data:     []byte("RIFF"),
		Profile:  schema.ProfileMinimal,
	})
	assert.ErrorIs(t, err, models.ErrTranscriptionFailure)
	assert.Equal(t, int32(0), atomic.LoadInt32(&f.completion.calls))
}

func TestGetAnswers_ArchiveDisabled(t *testing.T) {
	f := newFixture(t, `{}`, nil)
	f.svc.deps.Archive = nil

	_, err := f.svc.GetAnswers(context.Background(), "c0ffee00-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrArchiveDisabled)
}

func TestNewService_MissingCollaborator(t *testing.T) {
	_, err := NewService(Dependencies{}, logger.NewTestLogger())
	assert.Error(t, err)
}

func TestCleanupArchive(t *testing.T) {
	f := newFixture(t, legacyOut, nil)
	ctx := context.Background()

	_, err := f.svc.Process(ctx, &Request{Filename: "intake.pdf", Data: pdfBytes, Profile: schema.ProfileLegacy})
	require.NoError(t, err)
	assert.Equal(t, 2, f.archive.Len())

	require.NoError(t, f.svc.CleanupArchive(ctx, time.Hour))
	assert.Equal(t, 2, f.archive.Len())

	// non-positive retention keeps everything
	require.NoError(t, f.svc.CleanupArchive(ctx, -time.Hour))
	assert.Equal(t, 2, f.archive.Len())

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, f.svc.CleanupArchive(ctx, time.Millisecond))
	assert.Zero(t, f.archive.Len())

	f.svc.deps.Archive = nil
	assert.NoError(t, f.svc.CleanupArchive(ctx, time.Hour))
}
