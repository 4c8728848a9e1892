package models

import (
	"bytes"
	"path/filepath"
	"strings"
	"time"
)

// MediaKind 上传文件的媒体类别
type MediaKind string

const (
	MediaKindUnknown MediaKind = ""
	MediaKindPDF     MediaKind = "pdf"
	MediaKindAudio   MediaKind = "audio"
)

// Document is an uploaded intake document. The bytes are owned by the
// request that created it and never mutated.
type Document struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	Kind        MediaKind `json:"kind"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int64     `json:"size"`
	ReceivedAt  time.Time `json:"receivedAt"`

	data []byte
}

// NewDocument 创建文档
func NewDocument(id, filename string, kind MediaKind, contentType string, data []byte) *Document {
	return &Document{
		ID:          id,
		Filename:    filename,
		Kind:        kind,
		ContentType: contentType,
		Size:        int64(len(data)),
		ReceivedAt:  time.Now().UTC(),
		data:        data,
	}
}

// Open returns a fresh reader positioned at the start of the document.
func (d *Document) Open() *bytes.Reader {
	return bytes.NewReader(d.data)
}

// Bytes exposes the raw buffer. Callers must not modify it.
func (d *Document) Bytes() []byte {
	return d.data
}

// Ext returns the lower-cased filename suffix, including the dot.
func (d *Document) Ext() string {
	return strings.ToLower(filepath.Ext(d.Filename))
}

// ExtractionAttempt 记录一次级联策略的结果
type ExtractionAttempt struct {
	Strategy  string        `json:"strategy"`
	Text      string        `json:"text,omitempty"`
	Succeeded bool          `json:"succeeded"`
	Err       error         `json:"-"`
	Elapsed   time.Duration `json:"elapsed"`
}
