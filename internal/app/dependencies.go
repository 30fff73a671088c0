// Package app wires configuration into the services shared by the server and the CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/audit"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/config"
	dbRedis "github.com/hareshsuppiah/sport-science-ai-chat/internal/db/redis"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/metrics"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/repository/chatlog"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/repository/embcache"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/session"
	openaiTransport "github.com/hareshsuppiah/sport-science-ai-chat/internal/transport/openai"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/transport/pinecone"
	chatuc "github.com/hareshsuppiah/sport-science-ai-chat/internal/usecase/chat"
	embeddinguc "github.com/hareshsuppiah/sport-science-ai-chat/internal/usecase/embedding"
	healthuc "github.com/hareshsuppiah/sport-science-ai-chat/internal/usecase/health"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/usecase/retrieval"
)

const embeddingProvider = "openai"

// Dependencies holds everything built from one Config.
type Dependencies struct {
	Config config.Config
	Logger *zap.Logger

	// Optional infrastructure. Nil when disabled.
	Cache     *dbRedis.Store
	ChatLogDB *sql.DB
	ChatLog   *chatlog.Repository
	Audit     *audit.Logger

	Embedders map[string]*embeddinguc.InstrumentedEmbedder // by model
	Indexes   map[string]*pinecone.Client                  // by index name
	Completer *openaiTransport.Completer

	Chat     *chatuc.Service
	Sessions *session.Registry
	Health   *healthuc.Service
}

// NewDependencies builds the full graph. Cache and chat log connections are opened only
// when enabled; a failure to reach an enabled one is returned.
func NewDependencies(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Dependencies, error) {
	metrics.Register()

	d := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Embedders: make(map[string]*embeddinguc.InstrumentedEmbedder),
		Indexes:   make(map[string]*pinecone.Client),
	}

	if err := d.initCache(ctx); err != nil {
		d.Close(0)
		return nil, fmt.Errorf("init cache: %w", err)
	}
	if err := d.initChatLog(ctx); err != nil {
		d.Close(0)
		return nil, fmt.Errorf("init chat log: %w", err)
	}

	personas := orderedPersonas(cfg)
	pipelines := make([]chatuc.Pipeline, 0, len(personas))
	for _, p := range personas {
		pipelines = append(pipelines, chatuc.Pipeline{
			Persona:   p,
			Retriever: retrieval.New(d.embedder(p.EmbeddingModel), d.index(p.Index), retrieval.ParamsFor(p)),
		})
	}

	d.Completer = openaiTransport.NewCompleter(&openaiTransport.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Timeout: time.Duration(cfg.OpenAI.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	var sink chatuc.AuditSink = audit.Nop{}
	if d.Audit != nil {
		sink = d.Audit
	}

	d.Chat = chatuc.New(chatuc.Options{
		Pipelines:     pipelines,
		Completer:     d.Completer,
		Audit:         sink,
		Preflight:     cfg.MissingCredentials,
		TurnTimeout:   cfg.TurnTimeout(),
		HistoryWindow: cfg.Chat.HistoryWindow,
		Logger:        logger,
	})

	d.Sessions = session.NewRegistry(session.Options{
		TTL:            cfg.SessionTTL(),
		MemoryCapacity: cfg.Chat.MemoryCapacity,
		Logger:         logger,
	})

	d.initHealth()

	logger.Info("Dependencies initialized",
		zap.Int("personas", len(pipelines)),
		zap.Int("embedders", len(d.Embedders)),
		zap.Int("indexes", len(d.Indexes)),
		zap.Bool("cache", d.Cache != nil),
		zap.Bool("audit", d.Audit != nil),
	)
	return d, nil
}

// Close stops the audit workers, waiting up to timeout for queued entries, then
// releases connections.
func (d *Dependencies) Close(timeout time.Duration) {
	if d.Audit != nil {
		if err := d.Audit.Stop(timeout); err != nil {
			d.Logger.Warn("Chat log queue not drained", zap.Error(err))
		}
	}
	if d.ChatLogDB != nil {
		if err := d.ChatLogDB.Close(); err != nil {
			d.Logger.Warn("Closing chat log database", zap.Error(err))
		}
	}
	if d.Cache != nil {
		d.Cache.Close()
	}
}

// Index returns the vector index client for name, creating it on first use.
func (d *Dependencies) Index(name string) *pinecone.Client { return d.index(name) }

// Embedder returns the instrumented embedder for model, creating it on first use.
func (d *Dependencies) Embedder(model string) *embeddinguc.InstrumentedEmbedder {
	return d.embedder(model)
}

func (d *Dependencies) initCache(ctx context.Context) error {
	c := d.Config.Cache
	if !c.Enabled {
		return nil
	}
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:        c.Addrs,
		Username:     c.Username,
		Password:     c.Password,
		DB:           c.DB,
		WriteTimeout: time.Duration(c.WriteTimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return err
	}
	d.Cache = store
	if err := store.WaitForReady(ctx, time.Duration(c.ReadinessTimeout)*time.Second); err != nil {
		return err
	}
	d.Logger.Info("Connected to embedding cache", zap.Strings("addrs", c.Addrs))
	return nil
}

func (d *Dependencies) initChatLog(ctx context.Context) error {
	a := d.Config.Audit
	if !a.Enabled {
		return nil
	}
	if a.DSN == "" {
		return errors.New("audit.dsn is required when audit is enabled")
	}

	db, err := chatlog.Open(ctx, a.DSN)
	if err != nil {
		return err
	}
	d.ChatLogDB = db
	d.ChatLog = chatlog.New(db, a.Table, d.Logger)
	if err := d.ChatLog.EnsureSchema(ctx); err != nil {
		return err
	}

	d.Audit = audit.New(d.ChatLog, audit.Config{
		BufferSize:   a.BufferSize,
		Workers:      a.Workers,
		WriteTimeout: time.Duration(a.WriteTimeoutSec) * time.Second,
	}, d.Logger)
	if err := d.Audit.Start(); err != nil {
		return err
	}
	d.Logger.Info("Chat log enabled", zap.String("table", a.Table))
	return nil
}

func (d *Dependencies) initHealth() {
	d.Health = healthuc.New(0, d.Logger)
	d.Health.Add("configuration", healthuc.CheckerFunc(func(context.Context) error {
		return d.Config.MissingCredentials()
	}))
	if d.Cache != nil {
		d.Health.Add("cache", d.Cache)
	}
	if d.ChatLog != nil {
		d.Health.Add("chat_log", healthuc.CheckerFunc(d.ChatLog.Ping))
	}
	d.Health.Add("embedding", d.embedder(d.Config.OpenAI.EmbeddingModel))
	d.Health.Add("vector_index", d.index(d.Config.VectorIndex.Name))
}

func (d *Dependencies) embedder(model string) *embeddinguc.InstrumentedEmbedder {
	if e, ok := d.Embedders[model]; ok {
		return e
	}
	e := NewEmbedder(d.Config, model, d.Cache, d.Logger)
	d.Embedders[model] = e
	return e
}

func (d *Dependencies) index(name string) *pinecone.Client {
	if c, ok := d.Indexes[name]; ok {
		return c
	}
	c := NewIndexClient(d.Config, name, d.Logger)
	d.Indexes[name] = c
	return c
}

// NewEmbedder assembles the decorator chain: OpenAI -> Cached -> Instrumented.
// cache may be nil.
func NewEmbedder(
	cfg config.Config, model string, cache *dbRedis.Store, logger *zap.Logger,
) *embeddinguc.InstrumentedEmbedder {
	o := cfg.OpenAI

	var inner domain.Embedder = openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:   o.APIKey,
		BaseURL:  o.BaseURL,
		Model:    model,
		Provider: embeddingProvider,
		Timeout:  time.Duration(o.TimeoutSec) * time.Second,
		Logger:   logger,
	})
	if cache != nil {
		inner = embcache.New(inner, cache, embcache.Options{
			Model:      model,
			TTL:        time.Duration(cfg.Cache.TTLSec) * time.Second,
			CacheTotal: metrics.EmbeddingCacheTotal,
		}, logger)
	}

	return embeddinguc.NewInstrumentedEmbedder(inner, embeddinguc.Options{
		Provider:     embeddingProvider,
		Model:        model,
		MaxBatchSize: o.MaxBatchSize,
		KeepNewlines: o.KeepNewlines,
	}, logger)
}

// NewIndexClient creates a client for one index. Host and pinned dimension apply to the
// configured default index only.
func NewIndexClient(cfg config.Config, name string, logger *zap.Logger) *pinecone.Client {
	v := cfg.VectorIndex

	pc := pinecone.Config{
		APIKey:          v.APIKey,
		Index:           name,
		ControlPlaneURL: v.ControlPlaneURL,
		Timeout:         time.Duration(v.TimeoutSec) * time.Second,
		Logger:          logger,
	}
	if name == v.Name {
		pc.Host = v.Host
		pc.Dimension = v.Dimension
	}
	return pinecone.New(pc)
}

// orderedPersonas puts the default persona first so it serves unqualified queries.
func orderedPersonas(cfg config.Config) []domain.Persona {
	list := cfg.PersonaList()
	for i, p := range list {
		if p.ID == config.DefaultPersona && i > 0 {
			out := make([]domain.Persona, 0, len(list))
			out = append(out, p)
			out = append(out, list[:i]...)
			return append(out, list[i+1:]...)
		}
	}
	return list
}
