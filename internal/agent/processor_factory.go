package agent

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	cfg "github.com/feichai0017/intake-processor/config"
	"github.com/feichai0017/intake-processor/internal/agent/audio"
	"github.com/feichai0017/intake-processor/internal/agent/document"
	"github.com/feichai0017/intake-processor/internal/agent/document/image"
	"github.com/feichai0017/intake-processor/internal/agent/document/pdf"
	"github.com/feichai0017/intake-processor/internal/models"
	"github.com/feichai0017/intake-processor/pkg/logger"
)

// 扩展名到媒体类别的映射
var extToKind = map[string]models.MediaKind{
	".pdf": models.MediaKindPDF,
	".mp3": models.MediaKindAudio,
	".wav": models.MediaKindAudio,
	".m4a": models.MediaKindAudio,
	".mp4": models.MediaKindAudio,
	".ogg": models.MediaKindAudio,
}

var mimeToKind = map[string]models.MediaKind{
	"application/pdf": models.MediaKindPDF,
	"audio/mpeg":      models.MediaKindAudio,
	"audio/mp3":       models.MediaKindAudio,
	"audio/wav":       models.MediaKindAudio,
	"audio/x-wav":     models.MediaKindAudio,
	"audio/wave":      models.MediaKindAudio,
	"audio/mp4":       models.MediaKindAudio,
	"audio/x-m4a":     models.MediaKindAudio,
	"audio/ogg":       models.MediaKindAudio,
	"video/mp4":       models.MediaKindAudio,
}

// DetectMediaKind classifies an upload by filename suffix, falling back to
// the declared content type when the suffix is missing.
func DetectMediaKind(filename, contentType string) models.MediaKind {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext != "" {
		return extToKind[ext]
	}
	mediaType := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	return mimeToKind[mediaType]
}

// SupportedExtensions lists the accepted suffixes for kind.
func SupportedExtensions(kind models.MediaKind) []string {
	var out []string
	for _, ext := range []string{".pdf", ".mp3", ".wav", ".m4a", ".mp4", ".ogg"} {
		if extToKind[ext] == kind {
			out = append(out, ext)
		}
	}
	return out
}

// ProcessorFactory builds the text extraction cascade and the transcriber
// once per process.
type ProcessorFactory struct {
	cascade     *Cascade
	transcriber *audio.Transcriber
	whisper     *audio.WhisperClient
	logger      logger.Logger
}

func NewProcessorFactory(ctx context.Context, log logger.Logger) (*ProcessorFactory, error) {
	ocrCfg := cfg.GetOCRConfig()

	// 初始化 PDF 处理器
	strategies := []document.Processor{pdf.NewProcessor(log, ocrCfg.MaxWorkers)}

	rasterizer := image.NewPdftoppmRasterizer(image.NewExecRunner(log), ocrCfg.PdftoppmPath, ocrCfg.DPI, 0)

	// 初始化本地 OCR 处理器
	var pre *image.PreprocessConfig
	if ocrCfg.Preprocess {
		pre = image.DefaultPreprocessConfig()
	}
	recognizer := image.NewTesseractRecognizer(strings.Split(ocrCfg.Language, "+")...)
	localOCR, err := image.NewProcessor(log, rasterizer, recognizer, pre, ocrCfg.MaxWorkers)
	if err != nil {
		return nil, fmt.Errorf("failed to create local OCR processor: %w", err)
	}
	strategies = append(strategies, localOCR)

	// 初始化 Textract 处理器
	if ocrCfg.CloudEnabled {
		textractCfg := cfg.GetTextractConfig()
		cloudOCR, err := image.NewTextractProcessor(ctx, &image.TextractConfig{
			Region:        textractCfg.Region,
			Endpoint:      textractCfg.Endpoint,
			AccessKey:     textractCfg.AccessKey,
			SecretKey:     textractCfg.SecretKey,
			MinConfidence: float32(textractCfg.MinConfidence),
		}, rasterizer, log)
		if err != nil {
			log.Warn("Cloud OCR disabled", logger.Error(err))
		} else {
			strategies = append(strategies, cloudOCR)
		}
	}

	llmCfg := cfg.GetLLMConfig()
	whisper := audio.NewWhisperClient(&audio.WhisperConfig{
		BaseURL: llmCfg.OpenAIBaseURL,
		APIKey:  llmCfg.OpenAIAPIKey,
		Model:   llmCfg.TranscribeModel,
		Timeout: llmCfg.Timeout,
	})

	f := &ProcessorFactory{
		cascade:     NewCascade(log, strategies...),
		transcriber: audio.NewTranscriber(whisper, log),
		whisper:     whisper,
		logger:      log,
	}
	log.Info("Processors ready", logger.Strings("strategies", f.cascade.Strategies()))
	return f, nil
}

func (f *ProcessorFactory) Cascade() *Cascade {
	return f.cascade
}

func (f *ProcessorFactory) Transcriber() *audio.Transcriber {
	return f.transcriber
}

func (f *ProcessorFactory) Close() error {
	_ = f.whisper.Close()
	return f.cascade.Close()
}
