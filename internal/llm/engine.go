package llm

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/feichai0017/intake-processor/internal/models"
	"github.com/feichai0017/intake-processor/internal/schema"
	"github.com/feichai0017/intake-processor/internal/synonym"
	"github.com/feichai0017/intake-processor/pkg/logger"
)

// Engine turns plain text into a raw record for a schema profile with one
// completion call. Unparseable output is not an error: the engine falls
// back to the registry defaults.
type Engine struct {
	completion TextCompletionService
	resolver   *synonym.Resolver
	logger     logger.Logger

	schemas sync.Map // *schema.Registry -> *jsonschema.Schema
}

func NewEngine(completion TextCompletionService, resolver *synonym.Resolver, log logger.Logger) *Engine {
	return &Engine{
		completion: completion,
		resolver:   resolver,
		logger:     log.Named("engine"),
	}
}

// ExtractFields asks the completion service for every field of reg.
func (e *Engine) ExtractFields(ctx context.Context, text string, reg *schema.Registry) (models.RawRecord, error) {
	log := logger.FromContext(ctx, e.logger).With(logger.String("profile", reg.Name()))

	instruction := BuildInstruction(text, reg, e.resolver.Describe(reg))

	start := time.Now()
	out, err := e.completion.Complete(ctx, instruction)
	if err != nil {
		log.Error("Completion service failed",
			logger.Duration("elapsed", time.Since(start)),
			logger.Error(err),
		)
		return nil, models.NewError(models.KindSchemaExtraction, err, "completion service failed for profile %s", reg.Name())
	}
	log.Debug("Completion received",
		logger.Duration("elapsed", time.Since(start)),
		logger.Int("chars", len(out)),
	)

	raw, err := e.parse(log, out, reg)
	if err != nil {
		log.Warn("Completion output unusable, falling back to defaults",
			logger.Error(err),
			logger.String("output", truncate(out, 512)),
		)
		return reg.Defaults(), nil
	}
	return raw, nil
}

func (e *Engine) parse(log logger.Logger, out string, reg *schema.Registry) (models.RawRecord, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(extractJSON(out)), &obj); err != nil {
		return nil, models.NewError(models.KindSchemaParse, err, "completion output is not a JSON object")
	}
	if obj == nil {
		return nil, models.NewError(models.KindSchemaParse, nil, "completion output is null")
	}

	raw := make(models.RawRecord, len(obj))
	flatten("", obj, raw)

	sch, err := e.schemaFor(reg)
	if err != nil {
		log.Warn("Record schema unavailable, skipping validation", logger.Error(err))
		return raw, nil
	}
	if err := sch.Validate(map[string]any(raw)); err != nil {
		dropped := invalidKeys(err)
		for _, k := range dropped {
			delete(raw, k)
		}
		log.Warn("Dropped fields with invalid values", logger.Strings("fields", dropped))
	}
	return raw, nil
}

func (e *Engine) schemaFor(reg *schema.Registry) (*jsonschema.Schema, error) {
	if v, ok := e.schemas.Load(reg); ok {
		return v.(*jsonschema.Schema), nil
	}
	sch, err := compileSchema(reg)
	if err != nil {
		return nil, err
	}
	e.schemas.Store(reg, sch)
	return sch, nil
}

var fencePattern = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

// extractJSON strips markdown fences and any prose around the outermost
// object.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if m := fencePattern.FindStringSubmatch(s); m != nil {
		s = strings.TrimSpace(m[1])
	}
	if !strings.HasPrefix(s, "{") {
		i, j := strings.Index(s, "{"), strings.LastIndex(s, "}")
		if i >= 0 && j > i {
			s = s[i : j+1]
		}
	}
	return s
}

// flatten writes nested objects as dotted keys. Keys are visited in sorted
// order and literal keys are written after nested ones, so "a.b" beats
// {"a": {"b": ...}} regardless of map order.
func flatten(prefix string, in map[string]any, out models.RawRecord) {
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	join := func(k string) string {
		if prefix == "" {
			return k
		}
		return prefix + "." + k
	}
	for _, k := range keys {
		if nested, ok := in[k].(map[string]any); ok && len(nested) > 0 {
			flatten(join(k), nested, out)
		}
	}
	for _, k := range keys {
		if nested, ok := in[k].(map[string]any); ok && len(nested) > 0 {
			continue
		}
		out[join(k)] = in[k]
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
