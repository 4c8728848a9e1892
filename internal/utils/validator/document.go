// internal/utils/validator/document.go
package validator

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/feichai0017/intake-processor/internal/agent"
	"github.com/feichai0017/intake-processor/internal/models"
	"github.com/feichai0017/intake-processor/pkg/logger"
)

// DocumentValidator 上传文件验证器
type DocumentValidator struct {
	logger logger.Logger
	config *ValidatorConfig
}

// ValidatorConfig 验证器配置
type ValidatorConfig struct {
	MaxFileSize int64                          // 最大文件大小（字节）
	SniffTypes  map[models.MediaKind][]string // 按媒体类别要求的内容嗅探结果
}

// ValidationResult 验证结果
type ValidationResult struct {
	IsValid  bool              `json:"isValid"`
	Errors   []ValidationError `json:"errors,omitempty"`
	FileInfo FileInfo          `json:"fileInfo"`
}

// ValidationError 验证错误
type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

const (
	CodeEmptyFile       = "EMPTY_FILE"
	CodeFileTooLarge    = "FILE_TOO_LARGE"
	CodeInvalidFileType = "INVALID_FILE_TYPE"
	CodeInvalidMimeType = "INVALID_MIME_TYPE"
)

// FileInfo 文件信息
type FileInfo struct {
	Filename     string           `json:"filename"`
	Size         int64            `json:"size"`
	DeclaredType string           `json:"declaredType,omitempty"`
	MimeType     string           `json:"mimeType"`
	Extension    string           `json:"extension"`
	Kind         models.MediaKind `json:"kind"`
	Hash         string           `json:"hash"`
}

func DefaultConfig() *ValidatorConfig {
	return &ValidatorConfig{
		MaxFileSize: 50 * 1024 * 1024, // 50MB
		SniffTypes: map[models.MediaKind][]string{
			models.MediaKindPDF: {"application/pdf"},
		},
	}
}

// NewDocumentValidator 创建新的文档验证器
func NewDocumentValidator(log logger.Logger, config *ValidatorConfig) *DocumentValidator {
	if config == nil {
		config = DefaultConfig()
	}
	return &DocumentValidator{
		logger: log.Named("validator"),
		config: config,
	}
}

// Validate checks an upload before any extraction is attempted.
func (v *DocumentValidator) Validate(filename, declaredType string, data []byte) *ValidationResult {
	result := &ValidationResult{
		IsValid: true,
		FileInfo: FileInfo{
			Filename:     filename,
			Size:         int64(len(data)),
			DeclaredType: declaredType,
			Extension:    strings.ToLower(filepath.Ext(filename)),
			Kind:         agent.DetectMediaKind(filename, declaredType),
			Hash:         hashOf(data),
		},
	}

	// 基本验证
	if errs := v.performBasicValidation(result.FileInfo); len(errs) > 0 {
		result.IsValid = false
		result.Errors = append(result.Errors, errs...)
	}

	// MIME类型验证
	result.FileInfo.MimeType = mimetype.Detect(data).String()
	if errs := v.validateMimeType(data, result.FileInfo); len(errs) > 0 {
		result.IsValid = false
		result.Errors = append(result.Errors, errs...)
	}

	if !result.IsValid {
		v.logger.Warn("Upload rejected",
			logger.String("filename", filename),
			logger.String("mimeType", result.FileInfo.MimeType),
			logger.Any("errors", result.Errors),
		)
	}
	return result
}

// Err converts a failed result into an input validation error. An
// unrecognized type is wrapped around models.ErrUnsupportedMedia.
func (r *ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	var msgs []string
	var cause error
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
		if e.Code == CodeInvalidFileType || e.Code == CodeInvalidMimeType {
			cause = models.ErrUnsupportedMedia
		}
	}
	return models.NewError(models.KindInputValidation, cause, "%s", strings.Join(msgs, "; "))
}

// 基本验证
func (v *DocumentValidator) performBasicValidation(info FileInfo) []ValidationError {
	var errors []ValidationError

	if info.Size == 0 {
		errors = append(errors, ValidationError{
			Code:    CodeEmptyFile,
			Message: "File is empty",
			Field:   "size",
		})
	}

	// 检查文件大小
	if v.config.MaxFileSize > 0 && info.Size > v.config.MaxFileSize {
		errors = append(errors, ValidationError{
			Code:    CodeFileTooLarge,
			Message: fmt.Sprintf("File size exceeds maximum limit of %d bytes", v.config.MaxFileSize),
			Field:   "size",
		})
	}

	// 检查文件类型
	if info.Kind == models.MediaKindUnknown {
		name := info.Extension
		if name == "" {
			name = info.DeclaredType
		}
		errors = append(errors, ValidationError{
			Code:    CodeInvalidFileType,
			Message: fmt.Sprintf("Unsupported file type %q", name),
			Field:   "extension",
		})
	}

	return errors
}

// MIME类型验证
func (v *DocumentValidator) validateMimeType(data []byte, info FileInfo) []ValidationError {
	allowed, ok := v.config.SniffTypes[info.Kind]
	if !ok || len(data) == 0 {
		return nil
	}

	detected := mimetype.Detect(data)
	for _, mime := range allowed {
		if detected.Is(mime) {
			return nil
		}
	}
	return []ValidationError{{
		Code:    CodeInvalidMimeType,
		Message: fmt.Sprintf("Content of %s does not look like %s (detected %s)", info.Filename, strings.Join(allowed, ", "), detected.String()),
		Field:   "mimeType",
	}}
}

// 计算文件哈希
func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
