package converters

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/feichai0017/intake-processor/internal/models"
)

// ProcessedDocument 定义处理后的文档结构
type ProcessedDocument struct {
	ID          string           `json:"id"`
	Profile     string           `json:"profile"`
	Status      string           `json:"status"`
	Answers     models.AnswerSet `json:"answers"`
	Nested      map[string]any   `json:"nested,omitempty"`
	Metadata    DocumentMetadata `json:"metadata"`
	ProcessedAt time.Time        `json:"processedAt"`
}

// DocumentMetadata 定义文档元数据
type DocumentMetadata struct {
	FileName     string   `json:"fileName"`
	FileType     string   `json:"fileType"`
	FileSize     int64    `json:"fileSize"`
	Sections     []string `json:"sections"`
	Fields       int      `json:"fields"`
	Resolved     int      `json:"resolved"`
	Source       string   `json:"source"`
	ProcessingMs int64    `json:"processingMs"`
}

// JSONConverter 将 AnswerSet 转换为对外文档
type JSONConverter struct {
	nested bool
}

// NewJSONConverter returns a converter; with nested set the output also
// carries the answers as a section/field tree.
func NewJSONConverter(nested bool) *JSONConverter {
	return &JSONConverter{nested: nested}
}

func (c *JSONConverter) Convert(doc *models.Document, profile string, answers models.AnswerSet, source string, elapsed time.Duration) (*ProcessedDocument, error) {
	if doc == nil {
		return nil, fmt.Errorf("no document to convert")
	}
	if len(answers) == 0 {
		return nil, fmt.Errorf("no answers to convert")
	}

	out := &ProcessedDocument{
		ID:          doc.ID,
		Profile:     profile,
		Status:      "completed",
		Answers:     answers,
		ProcessedAt: time.Now().UTC(),
		Metadata: DocumentMetadata{
			FileName:     doc.Filename,
			FileType:     string(doc.Kind),
			FileSize:     doc.Size,
			Sections:     Sections(answers),
			Fields:       len(answers),
			Resolved:     answers.Resolved(),
			Source:       source,
			ProcessingMs: elapsed.Milliseconds(),
		},
	}
	if c.nested {
		out.Nested = Nest(answers)
	}
	return out, nil
}

// Nest turns dotted paths into a tree: {"a.b": 1} -> {"a": {"b": 1}}.
// A value and a subtree under the same prefix keep the value.
func Nest(answers models.AnswerSet) map[string]any {
	root := make(map[string]any)
	for _, path := range answers.Keys() {
		parts := strings.Split(path, ".")
		node := root
		ok := true
		for _, p := range parts[:len(parts)-1] {
			child, exists := node[p]
			if !exists {
				m := make(map[string]any)
				node[p] = m
				node = m
				continue
			}
			m, isMap := child.(map[string]any)
			if !isMap {
				ok = false
				break
			}
			node = m
		}
		if ok {
			if _, exists := node[parts[len(parts)-1]]; !exists {
				node[parts[len(parts)-1]] = answers[path]
			}
		}
	}
	return root
}

// Sections returns the distinct first path segments, sorted.
func Sections(answers models.AnswerSet) []string {
	seen := make(map[string]bool)
	out := make([]string, 0)
	for path := range answers {
		if i := strings.IndexByte(path, '.'); i > 0 && !seen[path[:i]] {
			seen[path[:i]] = true
			out = append(out, path[:i])
		}
	}
	sort.Strings(out)
	return out
}

// ToPatientRecord projects a legacy-profile AnswerSet.
func ToPatientRecord(id string, answers models.AnswerSet, at time.Time) models.PatientRecord {
	return models.PatientRecord{
		ID:               id,
		Name:             answers.String(models.LegacyPatientName),
		DateOfBirth:      answers.String(models.LegacyDateOfBirth),
		PrimaryDiagnosis: answers.String(models.LegacyPrimaryDiagnosis),
		CreatedAt:        at.UTC(),
	}
}
