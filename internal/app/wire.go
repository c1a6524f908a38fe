// Package app assembles the components every binary shares from config.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/suPer8Hu/persona-chat/internal/ai"
	"github.com/suPer8Hu/persona-chat/internal/chat"
	"github.com/suPer8Hu/persona-chat/internal/config"
	"github.com/suPer8Hu/persona-chat/internal/grounding"
	"github.com/suPer8Hu/persona-chat/internal/persona"
	"github.com/suPer8Hu/persona-chat/internal/store/redisstore"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewRegistry registers every provider the config can name.
func NewRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()

	reg.Register("gemini", func(ctx context.Context, model string, s ai.Settings) (ai.Provider, error) {
		return ai.NewGeminiProvider(ctx, cfg.GeminiAPIKey, orDefault(model, cfg.GeminiModel), s)
	})
	reg.Register("ollama", func(ctx context.Context, model string, s ai.Settings) (ai.Provider, error) {
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, orDefault(model, cfg.OllamaModel), s), nil
	})
	reg.Register("openrouter", func(ctx context.Context, model string, s ai.Settings) (ai.Provider, error) {
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey,
			orDefault(model, cfg.OpenRouterModel), cfg.OpenRouterSiteURL, cfg.OpenRouterAppName, s), nil
	})

	reg.RegisterEmbedder("gemini", func(ctx context.Context, model string) (ai.Embedder, error) {
		return ai.NewGeminiEmbedder(ctx, cfg.GeminiAPIKey, model)
	})
	reg.RegisterEmbedder("ollama", func(ctx context.Context, model string) (ai.Embedder, error) {
		return ai.NewOllamaEmbedder(cfg.OllamaBaseURL, model), nil
	})
	return reg
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func NewObjectStore(ctx context.Context, cfg config.Config) (grounding.ObjectStore, error) {
	switch cfg.ObjectStore {
	case "s3":
		return grounding.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region)
	case "", "fs":
		return grounding.NewFSStore(cfg.ObjectStoreRoot), nil
	default:
		return nil, fmt.Errorf("unsupported OBJECT_STORE=%q", cfg.ObjectStore)
	}
}

// Core is the wired chat core.
type Core struct {
	Loader      *grounding.Loader
	Service     *chat.Service
	Suggestions *chat.Suggestions
	Translator  *persona.Translator
	Exporter    *chat.Exporter
	Redis       *redisstore.Store
}

// CoreOptions carries the optional backends a binary may add.
type CoreOptions struct {
	Publisher chat.JobPublisher
	Exports   chat.ExportPublisher
}

func NewCore(ctx context.Context, cfg config.Config, gdb *gorm.DB, log *zap.Logger, opts CoreOptions) (*Core, error) {
	reg := NewRegistry(cfg)

	response, err := reg.Get(ctx, cfg.AIProvider, "", ai.Settings{
		Temperature: ai.Float32(cfg.ResponseTemperature),
		MaxTokens:   cfg.ResponseMaxTokens,
	})
	if err != nil {
		return nil, err
	}
	// reformulation and translation should not wander
	precise, err := reg.Get(ctx, cfg.AIProvider, "", ai.Settings{
		Temperature: ai.Float32(0),
		MaxTokens:   cfg.ResponseMaxTokens,
	})
	if err != nil {
		return nil, err
	}
	questions, err := reg.Get(ctx, cfg.AIProvider, "", ai.Settings{
		Temperature: ai.Float32(cfg.QuestionsTemperature),
		MaxTokens:   cfg.QuestionsMaxTokens,
	})
	if err != nil {
		return nil, err
	}
	embedder, err := reg.Embedder(ctx, cfg.EmbeddingProvider, cfg.EmbeddingModel)
	if err != nil {
		return nil, err
	}

	store, err := NewObjectStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	loader := grounding.NewLoader(store, grounding.LoaderConfig{
		Prefix:    cfg.GroundingPrefix,
		CacheDir:  cfg.GroundingCacheDir,
		RetryBase: cfg.GroundingRetryBase,
	}, log.Named("grounding"))
	retriever := grounding.NewRetriever(loader, embedder, cfg.RetrievalTopK, cfg.RetrievalMode, cfg.RetrievalTimeout, log.Named("retriever"))

	core := &Core{
		Loader:     loader,
		Translator: persona.NewTranslator(precise, cfg.OrganizationName, cfg.LLMTimeout),
	}

	var (
		locker chat.Locker = chat.NewKeyedMutex()
		cache  chat.SuggestionCache
	)
	if cfg.RedisAddr != "" {
		core.Redis = redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := core.Redis.Ping(ctx); err != nil {
			return nil, err
		}
		cache = redisstore.NewSuggestionCache(core.Redis, cfg.SuggestionCacheTTL)
		if cfg.SessionLockBackend == "redis" {
			locker = redisstore.NewLocker(core.Redis, cfg.SessionLockTTL, log.Named("lock"))
		}
	}

	repo := chat.NewRepo(gdb)
	core.Exporter = chat.NewExporter(repo, store, cfg.TranscriptsPrefix, log.Named("export"))
	core.Service = chat.NewService(chat.Deps{
		Repo:         repo,
		Grounding:    loader,
		Reformulator: persona.NewReformulator(precise, cfg.LLMTimeout),
		Retriever:    retriever,
		Generator:    persona.NewGenerator(response, cfg.OrganizationName, cfg.LLMTimeout),
		Locker:       locker,
		Translator:   core.Translator,
		Publisher:    opts.Publisher,
		Exports:      opts.Exports,
		Log:          log.Named("chat"),
	}, chat.Options{
		OrganizationName:  cfg.OrganizationName,
		ContextWindowSize: cfg.ChatContextWindowSize,
		PrimaryLanguage:   cfg.PrimaryLanguage,
		SecondaryLanguage: cfg.SecondaryLanguage,
		TranslateMessages: cfg.TranslationEnabled,
	})
	core.Suggestions = chat.NewSuggestions(core.Service,
		persona.NewSuggester(questions, cfg.OrganizationName, cfg.LLMTimeout),
		cache, cfg.NextQuestionCount, log.Named("suggestions"))
	return core, nil
}

func (c *Core) Close() error {
	if c.Redis != nil {
		return c.Redis.Close()
	}
	return nil
}
