package intake

import (
	"context"
	"io"
	"time"

	"github.com/feichai0017/intake-processor/internal/agent"
	"github.com/feichai0017/intake-processor/internal/models"
	"github.com/feichai0017/intake-processor/internal/schema"
	"github.com/feichai0017/intake-processor/pkg/storage"
)

// IntakeProcessor 入院文档处理服务
type IntakeProcessor interface {
	Process(ctx context.Context, req *Request) (*Result, error)
	ListPatients(ctx context.Context) ([]models.PatientRecord, error)
	GetAnswers(ctx context.Context, id string) (*storage.ArchivedAnswers, error)
	Schema(profile schema.Profile) (*schema.Registry, error)
	Close() error
}

// Request is one uploaded document and the profile to extract.
type Request struct {
	Filename    string
	ContentType string
	Data        []byte
	Profile     schema.Profile
	// Kind restricts the upload to one media kind when set.
	Kind models.MediaKind
}

// Result is the complete answer set plus how it was obtained.
type Result struct {
	ID       string                     `json:"id"`
	Profile  schema.Profile             `json:"profile"`
	Document *models.Document           `json:"document"`
	Source   string                     `json:"source"`
	Attempts []models.ExtractionAttempt `json:"attempts,omitempty"`
	Answers  models.AnswerSet           `json:"answers"`
	Elapsed  time.Duration              `json:"elapsed"`
}

// SourceTranscription names the text source of audio uploads.
const SourceTranscription = "transcription"

// TextExtractor recovers text from a document stream.
type TextExtractor interface {
	Extract(ctx context.Context, src io.ReadSeeker) (*agent.CascadeResult, error)
}

// Transcriber recovers text from an audio document.
type Transcriber interface {
	Transcribe(ctx context.Context, doc *models.Document, filenameHint string) (string, error)
}

// FieldExtractor maps text to a raw record for a registry.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, text string, reg *schema.Registry) (models.RawRecord, error)
}

// Reconciler completes a raw record against a registry.
type Reconciler interface {
	Reconcile(ctx context.Context, raw models.RawRecord, reg *schema.Registry) models.AnswerSet
}
