package intake

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	cfg "github.com/feichai0017/intake-processor/config"
	"github.com/feichai0017/intake-processor/internal/agent"
	"github.com/feichai0017/intake-processor/internal/llm"
	"github.com/feichai0017/intake-processor/internal/models"
	"github.com/feichai0017/intake-processor/internal/normalize"
	"github.com/feichai0017/intake-processor/internal/repository"
	"github.com/feichai0017/intake-processor/internal/schema"
	"github.com/feichai0017/intake-processor/internal/synonym"
	"github.com/feichai0017/intake-processor/internal/utils/validator"
	"github.com/feichai0017/intake-processor/pkg/converters"
	"github.com/feichai0017/intake-processor/pkg/logger"
	"github.com/feichai0017/intake-processor/pkg/storage"
)

// Dependencies holds every collaborator the pipeline calls. It is built
// once per process and shared read-only by all requests.
type Dependencies struct {
	Extractor   TextExtractor
	Transcriber Transcriber
	Engine      FieldExtractor
	Normalizer  Reconciler
	Records     repository.RecordStore
	Archive     *storage.Archive // nil disables archiving
	Validator   *validator.DocumentValidator
	Catalog     *schema.Catalog
}

type IntakeService struct {
	deps    Dependencies
	logger  logger.Logger
	closers []func() error
	now     func() time.Time
}

func NewService(deps Dependencies, log logger.Logger) (*IntakeService, error) {
	if deps.Extractor == nil || deps.Transcriber == nil || deps.Engine == nil ||
		deps.Normalizer == nil || deps.Records == nil || deps.Catalog == nil {
		return nil, fmt.Errorf("intake service: missing collaborator")
	}
	if deps.Validator == nil {
		deps.Validator = validator.NewDocumentValidator(log, nil)
	}
	return &IntakeService{
		deps:   deps,
		logger: log.Named("intake"),
		now:    time.Now,
	}, nil
}

// GetService builds every collaborator from configuration.
func GetService(ctx context.Context, log logger.Logger) (*IntakeService, error) {
	catalog, err := schema.LoadCatalog()
	if err != nil {
		return nil, fmt.Errorf("failed to load schema profiles: %w", err)
	}
	resolver, err := synonym.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load synonym tables: %w", err)
	}

	// 初始化处理器工厂
	factory, err := agent.NewProcessorFactory(ctx, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize processor factory: %w", err)
	}

	llmCfg := cfg.GetLLMConfig()
	completion, err := llm.NewCompletionService(llm.ProviderConfig{
		Provider:       llmCfg.Provider,
		OpenAIBaseURL:  llmCfg.OpenAIBaseURL,
		OpenAIAPIKey:   llmCfg.OpenAIAPIKey,
		OpenAIModel:    llmCfg.OpenAIModel,
		OllamaEndpoint: llmCfg.OllamaEndpoint,
		OllamaModel:    llmCfg.OllamaModel,
		Timeout:        llmCfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize completion service: %w", err)
	}

	storeCfg := cfg.GetStoreConfig()
	records, err := repository.NewRecordStore(ctx, repository.StoreConfig{
		Kind:          storeCfg.Kind,
		SQLitePath:    storeCfg.SQLitePath,
		RedisAddr:     storeCfg.RedisAddr,
		RedisPassword: storeCfg.RedisPassword,
		RedisDB:       storeCfg.RedisDB,
		RedisKey:      storeCfg.RedisKey,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize record store: %w", err)
	}

	appCfg := cfg.GetAppConfig()

	// 初始化归档存储
	var archive *storage.Archive
	store, err := storage.NewStorage(ctx, storage.StorageType(appCfg.ArchiveStorage), log)
	if err != nil {
		log.Warn("Archive disabled", logger.Error(err))
	} else if store != nil {
		archive = storage.NewArchive(store, log)
	}

	svc, err := NewService(Dependencies{
		Extractor:   factory.Cascade(),
		Transcriber: factory.Transcriber(),
		Engine:      llm.NewEngine(completion, resolver, log),
		Normalizer:  normalize.NewNormalizer(resolver, log),
		Records:     records,
		Archive:     archive,
		Validator: validator.NewDocumentValidator(log, &validator.ValidatorConfig{
			MaxFileSize: appCfg.MaxUploadBytes,
			SniffTypes:  validator.DefaultConfig().SniffTypes,
		}),
		Catalog: catalog,
	}, log)
	if err != nil {
		return nil, err
	}
	svc.closers = append(svc.closers, factory.Close, records.Close)
	return svc, nil
}

// Process runs validation, text recovery, field extraction and
// normalization in order. Any text recovered yields a complete answer set.
func (s *IntakeService) Process(ctx context.Context, req *Request) (*Result, error) {
	start := s.now()
	id := uuid.NewString()
	log := logger.FromContext(ctx, s.logger).With(
		logger.String("documentId", id),
		logger.String("profile", string(req.Profile)),
	)

	log.Info("Starting intake processing",
		logger.String("filename", req.Filename),
		logger.Int("size", len(req.Data)),
	)

	// 验证文件
	check := s.deps.Validator.Validate(req.Filename, req.ContentType, req.Data)
	if err := check.Err(); err != nil {
		return nil, err
	}
	kind := check.FileInfo.Kind
	if req.Kind != models.MediaKindUnknown && kind != req.Kind {
		return nil, models.NewError(models.KindInputValidation, models.ErrUnsupportedMedia,
			"expected a %s upload, got %s", req.Kind, kind)
	}

	reg, err := s.deps.Catalog.Get(req.Profile)
	if err != nil {
		return nil, models.NewError(models.KindInputValidation, err, "unknown schema profile")
	}

	doc := models.NewDocument(id, req.Filename, kind, req.ContentType, req.Data)
	result := &Result{ID: id, Profile: req.Profile, Document: doc}

	// 提取文本
	var text string
	switch kind {
	case models.MediaKindPDF:
		extracted, err := s.deps.Extractor.Extract(ctx, doc.Open())
		if extracted != nil {
			result.Attempts = extracted.Attempts
		}
		if err != nil {
			log.Error("Text extraction failed", logger.Error(err))
			return nil, err
		}
		text, result.Source = extracted.Text, extracted.Strategy
	case models.MediaKindAudio:
		text, err = s.deps.Transcriber.Transcribe(ctx, doc, req.Filename)
		if err != nil {
			return nil, err
		}
		result.Source = SourceTranscription
	default:
		return nil, models.NewError(models.KindInputValidation, models.ErrUnsupportedMedia, "unsupported media kind %q", kind)
	}

	// 字段抽取
	raw, err := s.deps.Engine.ExtractFields(ctx, text, reg)
	if err != nil {
		return nil, err
	}

	// 归一化
	result.Answers = s.deps.Normalizer.Reconcile(ctx, raw, reg)
	result.Elapsed = s.now().Sub(start)

	s.persist(ctx, log, result)

	log.Info("Intake processing completed",
		logger.String("source", result.Source),
		logger.Int("resolved", result.Answers.Resolved()),
		logger.Int("fields", len(result.Answers)),
		logger.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

// persist performs the side effects of a request. Failures are logged and
// never reach the caller.
func (s *IntakeService) persist(ctx context.Context, log logger.Logger, result *Result) {
	if result.Profile == schema.ProfileLegacy {
		record := converters.ToPatientRecord(result.ID, result.Answers, s.now())
		if err := s.deps.Records.Save(ctx, record); err != nil {
			perr := models.NewError(models.KindPersistence, err, "failed to save patient record")
			log.Error("Patient record not saved", logger.Error(perr))
		}
	}

	if s.deps.Archive == nil {
		return
	}
	if err := s.deps.Archive.SaveDocument(ctx, result.Document); err != nil {
		log.Error("Document not archived", logger.Error(models.NewError(models.KindPersistence, err, "archive")))
	}
	err := s.deps.Archive.SaveAnswers(ctx, storage.ArchivedAnswers{
		ID:        result.ID,
		Profile:   string(result.Profile),
		Filename:  result.Document.Filename,
		Answers:   result.Answers,
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		log.Error("Answers not archived", logger.Error(models.NewError(models.KindPersistence, err, "archive")))
	}
}

func (s *IntakeService) ListPatients(ctx context.Context) ([]models.PatientRecord, error) {
	records, err := s.deps.Records.ListAll(ctx)
	if err != nil {
		return nil, models.NewError(models.KindPersistence, err, "failed to list patients")
	}
	if records == nil {
		records = []models.PatientRecord{}
	}
	return records, nil
}

// ErrArchiveDisabled is returned by GetAnswers when no archive is configured.
var ErrArchiveDisabled = fmt.Errorf("answer archive is disabled")

func (s *IntakeService) GetAnswers(ctx context.Context, id string) (*storage.ArchivedAnswers, error) {
	if s.deps.Archive == nil {
		return nil, ErrArchiveDisabled
	}
	return s.deps.Archive.LoadAnswers(ctx, id)
}

func (s *IntakeService) Schema(profile schema.Profile) (*schema.Registry, error) {
	return s.deps.Catalog.Get(profile)
}

func (s *IntakeService) Close() error {
	var firstErr error
	for _, c := range s.closers {
		if err := c(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CleanupArchive removes archived objects older than retention. It is a
// no-op without an archive.
func (s *IntakeService) CleanupArchive(ctx context.Context, retention time.Duration) error {
	if s.deps.Archive == nil || retention <= 0 {
		return nil
	}
	return s.deps.Archive.Cleanup(ctx, retention)
}
