package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/otiai10/gosseract/v2"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/intake-processor/internal/agent/document"
	"github.com/feichai0017/intake-processor/pkg/logger"
)

// Recognizer turns one page image into text.
type Recognizer interface {
	Recognize(img []byte) (string, error)
}

// TesseractRecognizer runs tesseract through gosseract. A new client is
// created per page so pages can be recognized in parallel.
type TesseractRecognizer struct {
	languages   []string
	pageSegMode gosseract.PageSegMode
}

func NewTesseractRecognizer(languages ...string) *TesseractRecognizer {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &TesseractRecognizer{languages: languages, pageSegMode: gosseract.PSM_AUTO}
}

func (t *TesseractRecognizer) Recognize(img []byte) (string, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(t.languages...); err != nil {
		return "", fmt.Errorf("failed to set language: %w", err)
	}
	if err := client.SetPageSegMode(t.pageSegMode); err != nil {
		return "", fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(img); err != nil {
		return "", fmt.Errorf("failed to set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("failed to get text: %w", err)
	}
	return text, nil
}

// Processor 本地光栅化 OCR：逐页渲染、预处理、识别
type Processor struct {
	logger        logger.Logger
	rasterizer    Rasterizer
	recognizer    Recognizer
	preprocessors []ImagePreprocessor
	maxWorkers    int
}

func NewProcessor(log logger.Logger, rasterizer Rasterizer, recognizer Recognizer, pre *PreprocessConfig, maxWorkers int) (*Processor, error) {
	if log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if rasterizer == nil || recognizer == nil {
		return nil, fmt.Errorf("rasterizer and recognizer are required")
	}
	if maxWorkers <= 0 {
		maxWorkers = 2
	}
	return &Processor{
		logger:        log.Named("local_ocr"),
		rasterizer:    rasterizer,
		recognizer:    recognizer,
		preprocessors: NewPipeline(pre),
		maxWorkers:    maxWorkers,
	}, nil
}

func (p *Processor) Name() string { return "local_ocr" }

func (p *Processor) Read(ctx context.Context, file io.Reader) (string, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}

	images, err := p.rasterizer.Rasterize(ctx, data)
	if err != nil {
		return "", fmt.Errorf("failed to rasterize document: %w", err)
	}

	pages := make([]string, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxWorkers)
	for i, img := range images {
		pageNum, img := i+1, img
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pages[pageNum-1] = p.recognizePage(pageNum, img)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	p.logger.Debug("Local OCR finished", logger.Int("pages", len(images)))
	return document.JoinPages(pages), nil
}

// recognizePage returns "" when the page cannot be read.
func (p *Processor) recognizePage(pageNum int, img []byte) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Warn("Page OCR panicked", logger.Int("page", pageNum), logger.Any("panic", rec))
			text = ""
		}
	}()

	prepared, err := p.applyPreprocessing(img)
	if err != nil {
		p.logger.Warn("Preprocessing failed, using raw page",
			logger.Int("page", pageNum),
			logger.Error(err),
		)
		prepared = img
	}

	text, err = p.recognizer.Recognize(prepared)
	if err != nil {
		p.logger.Warn("Page OCR failed", logger.Int("page", pageNum), logger.Error(err))
		return ""
	}
	return text
}

// 图像预处理
func (p *Processor) applyPreprocessing(data []byte) ([]byte, error) {
	if len(p.preprocessors) == 0 {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	for _, pre := range p.preprocessors {
		img, err = pre.Process(img)
		if err != nil {
			return nil, fmt.Errorf("preprocessing failed: %w", err)
		}
		if img == nil {
			return nil, fmt.Errorf("preprocessor returned nil image")
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *Processor) Close() error {
	return nil
}
