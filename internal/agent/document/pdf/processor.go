package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/intake-processor/internal/agent/document"
	"github.com/feichai0017/intake-processor/pkg/logger"
)

// Processor reads the embedded text layer of a PDF.
type Processor struct {
	logger     logger.Logger
	maxWorkers int
}

func NewProcessor(log logger.Logger, maxWorkers int) *Processor {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	return &Processor{
		logger:     log.Named("native"),
		maxWorkers: maxWorkers,
	}
}

func (p *Processor) Name() string { return "native_text" }

// Read 读取每一页的文本层，按页序拼接
func (p *Processor) Read(ctx context.Context, file io.Reader) (string, error) {
	content, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}

	reader := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}

	numPages := pdfReader.NumPage()
	pages := make([]string, numPages)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxWorkers)
	for i := 1; i <= numPages; i++ {
		pageNum := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pages[pageNum-1] = p.pageText(pdfReader, pageNum)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	p.logger.Debug("Native text extracted", logger.Int("pages", numPages))
	return document.JoinPages(pages), nil
}

// pageText returns "" for pages that are missing or cannot be decoded.
func (p *Processor) pageText(r *pdf.Reader, pageNum int) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Warn("Page text decoding panicked",
				logger.Int("page", pageNum),
				logger.Any("panic", rec),
			)
			text = ""
		}
	}()

	page := r.Page(pageNum)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		p.logger.Warn("Failed to get text from page",
			logger.Int("page", pageNum),
			logger.Error(err),
		)
		return ""
	}
	return text
}

func (p *Processor) Close() error {
	return nil
}
