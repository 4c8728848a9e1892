// Package normalize reconciles untrusted completion output with a schema
// profile.
package normalize

import (
	"context"

	"github.com/feichai0017/intake-processor/internal/models"
	"github.com/feichai0017/intake-processor/internal/schema"
	"github.com/feichai0017/intake-processor/internal/synonym"
	"github.com/feichai0017/intake-processor/pkg/logger"
)

// Normalizer 将原始记录对齐到完整的 schema
type Normalizer struct {
	resolver *synonym.Resolver
	logger   logger.Logger
}

func NewNormalizer(resolver *synonym.Resolver, log logger.Logger) *Normalizer {
	return &Normalizer{resolver: resolver, logger: log.Named("normalizer")}
}

// Reconcile returns an AnswerSet whose keys are exactly reg's paths. Present
// values go through the resolver; missing ones become Unknown. Keys outside
// reg are ignored.
func (n *Normalizer) Reconcile(ctx context.Context, raw models.RawRecord, reg *schema.Registry) models.AnswerSet {
	out := make(models.AnswerSet, reg.Len())
	missing := 0
	for _, f := range reg.Fields() {
		v, ok := raw[f.Path]
		if !ok {
			out[f.Path] = models.Unknown
			missing++
			continue
		}
		out[f.Path] = n.resolver.Normalize(v, f)
	}

	extra := 0
	for k := range raw {
		if _, ok := reg.Lookup(k); !ok {
			extra++
		}
	}

	logger.FromContext(ctx, n.logger).Info("Answers reconciled",
		logger.String("profile", reg.Name()),
		logger.Int("fields", reg.Len()),
		logger.Int("resolved", out.Resolved()),
		logger.Int("missing", missing),
		logger.Int("ignored", extra),
	)
	return out
}
