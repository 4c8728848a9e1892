package image

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/feichai0017/intake-processor/pkg/logger"
)

// Rasterizer renders every page of a PDF to a PNG, in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdf []byte) ([][]byte, error)
}

// Runner lets us stub external commands in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

type execRunner struct {
	logger logger.Logger
}

func NewExecRunner(log logger.Logger) Runner {
	return &execRunner{logger: log}
}

func (r *execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb

	err := cmd.Run()
	if err != nil {
		r.logger.Error("Command failed",
			logger.String("cmd", name),
			logger.String("args", strings.Join(args, " ")),
			logger.Duration("elapsed", time.Since(start)),
			logger.String("stderr", truncate(errb.String(), 8<<10)),
			logger.Error(err),
		)
	} else {
		r.logger.Debug("Command finished",
			logger.String("cmd", name),
			logger.Duration("elapsed", time.Since(start)),
			logger.Int("stdout_bytes", out.Len()),
		)
	}
	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

// PdftoppmRasterizer shells out to poppler's pdftoppm.
type PdftoppmRasterizer struct {
	runner   Runner
	binary   string
	dpi      int
	maxPages int
}

func NewPdftoppmRasterizer(runner Runner, binary string, dpi, maxPages int) *PdftoppmRasterizer {
	if binary == "" {
		binary = "pdftoppm"
	}
	if dpi <= 0 {
		dpi = 300
	}
	return &PdftoppmRasterizer{runner: runner, binary: binary, dpi: dpi, maxPages: maxPages}
}

var pageSuffix = regexp.MustCompile(`-(\d+)\.png$`)

func (r *PdftoppmRasterizer) Rasterize(ctx context.Context, pdf []byte) ([][]byte, error) {
	tmpDir, err := os.MkdirTemp("", "intake-pages-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	in := filepath.Join(tmpDir, "input.pdf")
	if err := os.WriteFile(in, pdf, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write pdf: %w", err)
	}

	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	prefix := filepath.Join(tmpDir, "page")
	if _, errb, err := r.runner.Run(ctx, r.binary, "-r", strconv.Itoa(r.dpi), "-png", in, prefix); err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, truncate(string(errb), 512))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	if len(matches) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no images")
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageNumber(matches[i]) < pageNumber(matches[j])
	})
	if r.maxPages > 0 && len(matches) > r.maxPages {
		matches = matches[:r.maxPages]
	}

	pages := make([][]byte, 0, len(matches))
	for _, m := range matches {
		b, err := os.ReadFile(m)
		if err != nil {
			return nil, fmt.Errorf("failed to read rendered page: %w", err)
		}
		pages = append(pages, b)
	}
	return pages, nil
}

func pageNumber(path string) int {
	m := pageSuffix.FindStringSubmatch(path)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}
