package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/intake-processor/internal/models"
	"github.com/feichai0017/intake-processor/pkg/logger"
)

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")

func TestValidate(t *testing.T) {
	v := NewDocumentValidator(logger.NewTestLogger(), &ValidatorConfig{
		MaxFileSize: 1024,
		SniffTypes:  DefaultConfig().SniffTypes,
	})

	tests := []struct {
		name         string
		filename     string
		declaredType string
		data         []byte
		wantValid    bool
		wantKind     models.MediaKind
		wantCode     string
	}{
		{"pdf", "intake.pdf", "", pdfBytes, true, models.MediaKindPDF, ""},
		{"pdf by content type", "upload", "application/pdf", pdfBytes, true, models.MediaKindPDF, ""},
		{"audio is not sniffed", "memo.m4a", "", []byte("opaque audio"), true, models.MediaKindAudio, ""},
		{"text renamed to pdf", "intake.pdf", "", []byte("just some text"), false, models.MediaKindPDF, CodeInvalidMimeType},
		{"unsupported suffix", "notes.docx", "", []byte("PK"), false, models.MediaKindUnknown, CodeInvalidFileType},
		{"empty", "intake.pdf", "", nil, false, models.MediaKindPDF, CodeEmptyFile},
		{"too large", "memo.mp3", "", make([]byte, 2048), false, models.MediaKindAudio, CodeFileTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.filename, tt.declaredType, tt.data)
			assert.Equal(t, tt.wantValid, res.IsValid)
			assert.Equal(t, tt.wantKind, res.FileInfo.Kind)
			if tt.wantCode != "" {
				require.NotEmpty(t, res.Errors)
				assert.Equal(t, tt.wantCode, res.Errors[0].Code)
			}
		})
	}
}

func TestValidationResultErr(t *testing.T) {
	v := NewDocumentValidator(logger.NewTestLogger(), nil)

	ok := v.Validate("intake.pdf", "", pdfBytes)
	assert.NoError(t, ok.Err())
	assert.Len(t, ok.FileInfo.Hash, 64)

	unsupported := v.Validate("photo.heic", "", []byte("x")).Err()
	assert.ErrorIs(t, unsupported, models.ErrInputValidation)
	assert.ErrorIs(t, unsupported, models.ErrUnsupportedMedia)

	empty := v.Validate("memo.wav", "", nil).Err()
	assert.ErrorIs(t, empty, models.ErrInputValidation)
	assert.NotErrorIs(t, empty, models.ErrUnsupportedMedia)
}
