package audio

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/feichai0017/intake-processor/internal/models"
	"github.com/feichai0017/intake-processor/pkg/logger"
)

// SpeechToText 语音转文字服务接口
type SpeechToText interface {
	Transcribe(ctx context.Context, data []byte, filename, contentType string) (string, error)
}

const defaultContentType = "audio/mpeg"

var extToContentType = map[string]string{
	".mp4": "audio/mp4",
	".m4a": "audio/mp4",
	".mp3": "audio/mpeg",
	".wav": "audio/wav",
}

// ContentTypeFor maps a filename suffix to the content-type hint sent to
// the speech-to-text service.
func ContentTypeFor(filename string) string {
	if ct, ok := extToContentType[strings.ToLower(filepath.Ext(filename))]; ok {
		return ct
	}
	return defaultContentType
}

// hintFor picks the content-type hint for name. A declared audio type is
// used when name has no suffix to go on.
func hintFor(name, declared string) string {
	if filepath.Ext(name) == "" {
		mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]))
		if strings.HasPrefix(mediaType, "audio/") || mediaType == "video/mp4" {
			return mediaType
		}
	}
	return ContentTypeFor(name)
}

// Transcriber turns an audio document into text. It does not retry.
type Transcriber struct {
	stt    SpeechToText
	logger logger.Logger
}

func NewTranscriber(stt SpeechToText, log logger.Logger) *Transcriber {
	return &Transcriber{stt: stt, logger: log.Named("transcriber")}
}

// Transcribe sends the whole buffer to the speech-to-text service.
// filenameHint overrides doc.Filename when set.
func (t *Transcriber) Transcribe(ctx context.Context, doc *models.Document, filenameHint string) (string, error) {
	log := logger.FromContext(ctx, t.logger)

	name := filenameHint
	if name == "" {
		name = doc.Filename
	}
	contentType := hintFor(name, doc.ContentType)

	log.Info("Transcribing audio",
		logger.String("filename", name),
		logger.String("contentType", contentType),
		logger.Int64("size", doc.Size),
	)

	text, err := t.stt.Transcribe(ctx, doc.Bytes(), name, contentType)
	if err != nil {
		log.Error("Speech-to-text failed", logger.Error(err))
		return "", models.NewError(models.KindTranscription, err, "speech-to-text service failed")
	}
	if strings.TrimSpace(text) == "" {
		return "", models.NewError(models.KindTranscription, nil, "speech-to-text returned no text")
	}

	log.Info("Transcription finished", logger.Int("chars", len(text)))
	return text, nil
}
