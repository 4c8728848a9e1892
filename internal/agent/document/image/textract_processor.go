package image

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	"github.com/feichai0017/intake-processor/internal/agent/document"
	"github.com/feichai0017/intake-processor/pkg/logger"
)

// textractAPI is the subset of the Textract client we call.
type textractAPI interface {
	DetectDocumentText(ctx context.Context, params *textract.DetectDocumentTextInput, optFns ...func(*textract.Options)) (*textract.DetectDocumentTextOutput, error)
}

// TextractProcessor is the cloud OCR strategy. Any collaborator failure
// yields an empty result so the cascade can carry on.
type TextractProcessor struct {
	client     textractAPI
	rasterizer Rasterizer
	logger     logger.Logger
	config     *TextractConfig
}

type TextractConfig struct {
	Region        string
	Endpoint      string
	AccessKey     string
	SecretKey     string
	MinConfidence float32
}

func NewTextractProcessor(ctx context.Context, cfg *TextractConfig, rasterizer Rasterizer, log logger.Logger) (*TextractProcessor, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	// load aws config
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	client := textract.NewFromConfig(awsCfg, func(o *textract.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return newTextractProcessor(client, cfg, rasterizer, log), nil
}

func newTextractProcessor(client textractAPI, cfg *TextractConfig, rasterizer Rasterizer, log logger.Logger) *TextractProcessor {
	return &TextractProcessor{
		client:     client,
		rasterizer: rasterizer,
		logger:     log.Named("cloud_ocr"),
		config:     cfg,
	}
}

func (p *TextractProcessor) Name() string { return "cloud_ocr" }

func (p *TextractProcessor) Read(ctx context.Context, reader io.Reader) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		p.logger.Warn("Failed to read document", logger.Error(err))
		return "", nil
	}

	// DetectDocumentText only takes single-page PDFs inline, so pages are
	// rendered first and the whole document is the fallback.
	var images [][]byte
	if p.rasterizer != nil {
		images, err = p.rasterizer.Rasterize(ctx, data)
		if err != nil {
			p.logger.Warn("Rasterization failed, sending whole document", logger.Error(err))
			images = nil
		}
	}
	if len(images) == 0 {
		images = [][]byte{data}
	}

	pages := make([]string, 0, len(images))
	for i, img := range images {
		result, err := p.client.DetectDocumentText(ctx, &textract.DetectDocumentTextInput{
			Document: &types.Document{Bytes: img},
		})
		if err != nil {
			p.logger.Warn("Textract call failed",
				logger.Int("page", i+1),
				logger.Error(err),
			)
			return "", nil
		}
		pages = append(pages, strings.Join(p.processBlocks(result.Blocks), "\n"))
	}

	return document.JoinPages(pages), nil
}

func (p *TextractProcessor) Close() error {
	// textract client doesn't need special cleanup
	return nil
}

// helper method: keep LINE blocks in reading order
func (p *TextractProcessor) processBlocks(blocks []types.Block) []string {
	var texts []string
	for _, block := range blocks {
		if block.BlockType != types.BlockTypeLine || block.Text == nil {
			continue
		}
		if block.Confidence != nil && *block.Confidence < p.config.MinConfidence {
			continue
		}
		texts = append(texts, *block.Text)
	}
	return texts
}
