package agent

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/feichai0017/intake-processor/internal/agent/document"
	"github.com/feichai0017/intake-processor/internal/models"
	"github.com/feichai0017/intake-processor/pkg/logger"
)

// Cascade tries text extraction strategies cheapest first and stops at the
// first one that yields non-blank text.
type Cascade struct {
	strategies []document.Processor
	logger     logger.Logger
}

// CascadeResult is the accepted text plus every attempt made to get it.
type CascadeResult struct {
	Text     string
	Strategy string
	Attempts []models.ExtractionAttempt
}

func NewCascade(log logger.Logger, strategies ...document.Processor) *Cascade {
	return &Cascade{
		strategies: strategies,
		logger:     log.Named("cascade"),
	}
}

// Strategies returns the strategy names in evaluation order.
func (c *Cascade) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}

// Extract runs the strategies in order against src. The stream is rewound
// before every strategy. A strategy error or panic counts as an empty result.
// When every strategy comes back empty the error is ErrExtractionFailure.
func (c *Cascade) Extract(ctx context.Context, src io.ReadSeeker) (*CascadeResult, error) {
	log := logger.FromContext(ctx, c.logger)
	result := &CascadeResult{Attempts: make([]models.ExtractionAttempt, 0, len(c.strategies))}

	for _, s := range c.strategies {
		attempt := c.attempt(ctx, s, src)
		result.Attempts = append(result.Attempts, attempt)

		if attempt.Err != nil {
			log.Warn("Extraction strategy failed",
				logger.String("strategy", attempt.Strategy),
				logger.Duration("elapsed", attempt.Elapsed),
				logger.Error(attempt.Err),
			)
			continue
		}
		if !attempt.Succeeded {
			log.Info("Extraction strategy returned no text",
				logger.String("strategy", attempt.Strategy),
				logger.Duration("elapsed", attempt.Elapsed),
			)
			continue
		}

		log.Info("Extraction strategy succeeded",
			logger.String("strategy", attempt.Strategy),
			logger.Int("chars", len(attempt.Text)),
			logger.Duration("elapsed", attempt.Elapsed),
		)
		result.Text = attempt.Text
		result.Strategy = attempt.Strategy
		return result, nil
	}

	return result, models.NewError(models.KindExtraction, nil,
		"no text could be recovered from the document after %d strategies", len(c.strategies))
}

func (c *Cascade) attempt(ctx context.Context, s document.Processor, src io.ReadSeeker) (attempt models.ExtractionAttempt) {
	attempt.Strategy = s.Name()
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			attempt.Text = ""
			attempt.Succeeded = false
			attempt.Err = fmt.Errorf("strategy %s panicked: %v", attempt.Strategy, rec)
		}
		attempt.Elapsed = time.Since(start)
	}()

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		attempt.Err = fmt.Errorf("failed to rewind document: %w", err)
		return attempt
	}

	text, err := s.Read(ctx, src)
	if err != nil {
		attempt.Err = err
		return attempt
	}
	if strings.TrimSpace(text) == "" {
		return attempt
	}
	attempt.Text = text
	attempt.Succeeded = true
	return attempt
}

// Close releases every strategy.
func (c *Cascade) Close() error {
	var firstErr error
	for _, s := range c.strategies {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
