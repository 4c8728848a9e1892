package document

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Processor 文本提取策略接口
//
// Read returns the plain text found in the document, or "" when the strategy
// found none. The reader is always positioned at the start of the document.
type Processor interface {
	// Name 策略名称，用于日志和 ExtractionAttempt
	Name() string

	// Read 读取文档并返回纯文本
	Read(ctx context.Context, r io.Reader) (string, error)

	// Close 清理资源
	Close() error
}

// JoinPages concatenates page texts in page order, each preceded by a
// "--- Page N ---" marker. It returns "" when no page carries text.
func JoinPages(pages []string) string {
	blank := true
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			blank = false
			break
		}
	}
	if blank {
		return ""
	}

	var b strings.Builder
	for i, p := range pages {
		fmt.Fprintf(&b, "--- Page %d ---\n%s\n", i+1, p)
	}
	return strings.TrimSpace(b.String())
}
