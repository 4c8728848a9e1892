package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/intake-processor/internal/models"
	"github.com/feichai0017/intake-processor/pkg/logger"
)

// ArchivedAnswers is the JSON stored under answers/<id>.json.
type ArchivedAnswers struct {
	ID        string           `json:"id"`
	Profile   string           `json:"profile"`
	Filename  string           `json:"filename"`
	Answers   models.AnswerSet `json:"answers"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Archive 归档上传文档及其解析结果
type Archive struct {
	store  Storage
	logger logger.Logger
}

func NewArchive(store Storage, log logger.Logger) *Archive {
	return &Archive{store: store, logger: log.Named("archive")}
}

func DocumentKey(id, ext string) string {
	return "documents/" + id + ext
}

func AnswersKey(id string) string {
	return "answers/" + id + ".json"
}

// SaveDocument stores the uploaded bytes.
func (a *Archive) SaveDocument(ctx context.Context, doc *models.Document) error {
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := a.store.Store(ctx, DocumentKey(doc.ID, doc.Ext()), doc.Open(), doc.Size, contentType)
	return err
}

// SaveAnswers stores the answer set for a request.
func (a *Archive) SaveAnswers(ctx context.Context, rec ArchivedAnswers) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal answers: %w", err)
	}
	_, err = a.store.Store(ctx, AnswersKey(rec.ID), bytes.NewReader(data), int64(len(data)), "application/json")
	return err
}

// LoadAnswers reads back an archived answer set. id must be a UUID.
func (a *Archive) LoadAnswers(ctx context.Context, id string) (*ArchivedAnswers, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("invalid answer set id %q: %w", id, err)
	}
	rc, err := a.store.Get(ctx, AnswersKey(id))
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read answers: %w", err)
	}
	var rec ArchivedAnswers
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode answers: %w", err)
	}
	return &rec, nil
}

// Cleanup removes objects older than retention.
func (a *Archive) Cleanup(ctx context.Context, retention time.Duration) error {
	threshold := time.Now().Add(-retention)
	a.logger.Info("Cleaning up archive", logger.Time("threshold", threshold))
	return a.store.CleanupBefore(ctx, threshold)
}
