package container

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/duetapp/duet-sync/internal/config"
	"github.com/duetapp/duet-sync/internal/delivery/http"
	"github.com/duetapp/duet-sync/internal/delivery/http/handler"
	"github.com/duetapp/duet-sync/internal/delivery/http/middleware"
	"github.com/duetapp/duet-sync/internal/docstore"
	"github.com/duetapp/duet-sync/internal/infrastructure/database"
	"github.com/duetapp/duet-sync/internal/infrastructure/gemini"
	"github.com/duetapp/duet-sync/internal/infrastructure/server"
	"github.com/duetapp/duet-sync/internal/infrastructure/storage"
	"github.com/duetapp/duet-sync/internal/usecase/access"
	"github.com/duetapp/duet-sync/internal/usecase/chat"
	"github.com/duetapp/duet-sync/internal/usecase/identity"
	"github.com/duetapp/duet-sync/internal/usecase/presence"
	"github.com/duetapp/duet-sync/internal/usecase/profile"
	"github.com/duetapp/duet-sync/internal/usecase/stats"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	DB     *sqlx.DB
	Redis  *redis.Client
	Store  *docstore.PostgresStore
	Server *server.Server
	Gemini *gemini.GeminiClient

	log zerolog.Logger
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	// Initialize database
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Initialize Redis; presence degrades to the document store without it
	redisClient, err := database.NewRedisClient(&cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, presence fast path disabled")
		redisClient = nil
	}

	// Initialize document store
	store, err := docstore.NewPostgresStore(db, cfg.Database.GetDSN(), log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize document store: %w", err)
	}

	// Initialize Gemini client
	geminiClient, err := gemini.NewGeminiClient(cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
	}

	// Initialize object storage
	s3Storage, err := storage.NewS3Storage(&cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}

	// Initialize use cases
	policy := access.NewPolicy()
	tracker := presence.NewTracker(store, redisClient, log)
	resolver := identity.NewResolver(store, tracker, cfg.Admin, cfg.JWT.AccessSecret, log)
	aggregator := stats.NewAggregator(store, cfg.Stats, log)
	engine := chat.NewEngine(store, s3Storage, geminiClient, aggregator, policy, log)
	profileUseCase := profile.NewProfileUseCase(store, s3Storage, policy, log)

	// Initialize handlers
	profileHandler := handler.NewProfileHandler(profileUseCase)
	chatHandler := handler.NewChatHandler(engine, aggregator)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(resolver)

	// Initialize router
	router := http.NewRouter(
		profileHandler,
		chatHandler,
		authMiddleware,
	)

	// Setup routes
	ginRouter := router.Setup()

	// Initialize server
	srv := server.NewServer(&cfg.Server, ginRouter, log)

	return &Container{
		Config: cfg,
		DB:     db,
		Redis:  redisClient,
		Store:  store,
		Server: srv,
		Gemini: geminiClient,
		log:    log,
	}, nil
}

// Close closes all connections
func (c *Container) Close() error {
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			c.log.Warn().Err(err).Msg("error closing document store listener")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.log.Warn().Err(err).Msg("error closing redis")
		}
	}

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}

	return nil
}
