package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/kapu/blockext-go/internal/classifier"
	"github.com/kapu/blockext-go/internal/config"
	"github.com/kapu/blockext-go/internal/constants"
	"github.com/kapu/blockext-go/internal/dataset"
	"github.com/kapu/blockext-go/internal/events"
	"github.com/kapu/blockext-go/internal/extension/objectdetect"
	"github.com/kapu/blockext-go/internal/extension/textclassify"
	"github.com/kapu/blockext-go/internal/host"
	"github.com/kapu/blockext-go/internal/playback"
	"github.com/kapu/blockext-go/internal/sentiment"
	"github.com/kapu/blockext-go/internal/service/ai"
	"github.com/kapu/blockext-go/internal/service/cache"
	"github.com/kapu/blockext-go/internal/service/database"
	"github.com/kapu/blockext-go/internal/service/remote"
	"github.com/kapu/blockext-go/internal/util"
	"go.uber.org/zap"
)

// Container holds the assembled extension runtime.
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	Bus          *events.Bus
	HostClient   *host.Client
	HostEvents   *host.EventStream
	TextClassify *textclassify.Extension
	ObjectDetect *objectdetect.Extension

	closers      []func()
	shutdownOnce sync.Once
}

// Build assembles all services. Optional stores (redis, postgres) are only
// connected when enabled; a failure to reach an enabled store fails the build.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (container *Container, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var closers []func()
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	}()

	// Host surfaces
	bus := events.NewBus(logger)
	closers = append(closers, bus.Close)

	hostClient := host.NewClient(cfg.Host.BaseURL, logger)
	hostWS := host.NewEventStream(cfg.Host.WSURL,
		constants.WebSocketConfig.MaxReconnectAttempts,
		constants.WebSocketConfig.ReconnectDelay,
		logger,
	)
	hostWS.OnEvent(func(ev events.Event) {
		if err := bus.Publish(context.Background(), ev); err != nil {
			logger.Warn("Failed to publish host event", zap.String("event", ev.Name().String()), zap.Error(err))
		}
	})

	audio := host.NewAudio(hostClient, logger)
	detachAudio, err := audio.Attach(bus)
	if err != nil {
		return nil, fmt.Errorf("failed to attach audio engine: %w", err)
	}
	closers = append(closers, detachAudio)

	// Optional stores
	var (
		translationCache remote.TranslationCache
		datasetStore     textclassify.DatasetStore
	)

	if cfg.Redis.Enabled {
		cacheSvc, cacheErr := cache.NewCacheService(cache.CacheConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if cacheErr != nil {
			return nil, fmt.Errorf("failed to create cache service: %w", cacheErr)
		}
		closers = append(closers, func() {
			_ = cacheSvc.Close()
		})
		translationCache = cache.NewTranslationCache(cacheSvc)
		datasetStore = cache.NewDatasetStore(cacheSvc)
	}

	if cfg.Postgres.Enabled {
		postgresSvc, pgErr := database.NewPostgresService(database.PostgresConfig{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			Database: cfg.Postgres.Database,
		}, logger)
		if pgErr != nil {
			return nil, fmt.Errorf("failed to create postgres service: %w", pgErr)
		}
		closers = append(closers, func() {
			_ = postgresSvc.Close()
		})
		// Postgres wins over the redis snapshot when both are enabled.
		datasetStore = database.NewDatasetStore(database.NewExampleRepository(postgresSvc, logger))
	}

	// AI stack
	modelManager, err := ai.NewModelManager(ctx, ai.ModelManagerConfig{
		GeminiAPIKey:       cfg.Gemini.APIKey,
		OpenAIAPIKey:       cfg.OpenAI.APIKey,
		DefaultGeminiModel: cfg.Gemini.ChatModel,
		DefaultOpenAIModel: "gpt-5-mini",
		EnableFallback:     cfg.OpenAI.EnableFallback,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model manager: %w", err)
	}

	remoteOpts := []remote.Option{
		remote.WithTranslationFallback(ai.NewTranslator(modelManager, logger)),
	}
	if translationCache != nil {
		remoteOpts = append(remoteOpts, remote.WithTranslationCache(translationCache))
	}
	remoteClient := remote.NewClient(remote.Config{
		TranslateURL:     cfg.Translate.ServerURL,
		SynthesisURL:     cfg.Synthesis.ServerURL,
		TranslateTimeout: cfg.Translate.Timeout,
		SynthesisTimeout: cfg.Synthesis.Timeout,
		MaxSpeechRunes:   constants.RemoteConfig.MaxSpeechRunes,
		Breaker: util.CircuitBreakerConfig{
			FailureThreshold: constants.CircuitBreakerConfig.FailureThreshold,
			ResetTimeout:     constants.CircuitBreakerConfig.ResetTimeout,
		},
		RateLimitTimeout: constants.CircuitBreakerConfig.RateLimitTimeout,
	}, logger, remoteOpts...)

	// Classifier pipeline
	datasetMgr := dataset.NewManager(logger)
	loader := classifier.NewLoader(
		ai.EmbedderLoader(modelManager, cfg.Gemini.EmbedModel, constants.TrainingConfig.EmbeddingDim, logger),
		logger,
	)
	coordinator := classifier.NewCoordinator(loader, datasetMgr, classifier.CoordinatorConfig{
		Train: classifier.TrainConfig{
			LearningRate:    constants.TrainingConfig.LearningRate,
			Epochs:          constants.TrainingConfig.Epochs,
			BatchSize:       constants.TrainingConfig.BatchSize,
			ValidationSplit: constants.TrainingConfig.ValidationSplit,
			Patience:        constants.TrainingConfig.Patience,
		},
		EmbedBatchSize: constants.TrainingConfig.EmbedBatchSize,
		EmbedWorkers:   constants.TrainingConfig.EmbedWorkers,
	}, logger)

	textExt, err := textclassify.New(&textclassify.Dependencies{
		Bus:        bus,
		Host:       hostClient,
		Remote:     remoteClient,
		Audio:      audio,
		Playback:   playback.NewManager(logger),
		Dataset:    datasetMgr,
		Classifier: coordinator,
		Toxicity:   ai.NewToxicityClassifier(modelManager, logger),
		Sentiment:  sentiment.NewAnalyzer(),
		Store:      datasetStore,
		ProjectID:  cfg.Extension.ProjectID,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create text classification extension: %w", err)
	}
	closers = append(closers, textExt.Close)

	objectExt, err := objectdetect.New(&objectdetect.Dependencies{
		Bus:  bus,
		Host: hostClient,
		LoadDetector: func(ctx context.Context) (objectdetect.Detector, error) {
			if !hostClient.Ping(ctx) {
				return nil, fmt.Errorf("host detector unreachable at %s", cfg.Host.BaseURL)
			}
			return hostClient, nil
		},
		Config: objectdetect.Config{
			Width:    cfg.Sampling.Width,
			Height:   cfg.Sampling.Height,
			MinDelay: cfg.Sampling.MinDelay,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object detection extension: %w", err)
	}
	closers = append(closers, objectExt.Close)

	logger.Info("Extension services assembled",
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("postgres", cfg.Postgres.Enabled),
		zap.String("project", cfg.Extension.ProjectID),
	)

	return &Container{
		Config:       cfg,
		Logger:       logger,
		Bus:          bus,
		HostClient:   hostClient,
		HostEvents:   hostWS,
		TextClassify: textExt,
		ObjectDetect: objectExt,
		closers:      closers,
	}, nil
}

// Start connects to the host event stream, starts frame sampling and blocks
// until ctx is done.
func (c *Container) Start(ctx context.Context) error {
	if err := c.HostEvents.Connect(ctx); err != nil {
		c.Logger.Warn("Initial host connection failed, retrying in background", zap.Error(err))
	}
	if err := c.ObjectDetect.Start(ctx); err != nil {
		return fmt.Errorf("failed to start sampling: %w", err)
	}

	c.Logger.Info("Extension runtime started")
	<-ctx.Done()
	return nil
}

// Shutdown disconnects from the host and releases every service in reverse
// construction order.
func (c *Container) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.shutdownOnce.Do(func() {
			if err := c.HostEvents.Disconnect(); err != nil {
				c.Logger.Warn("Failed to close host event stream", zap.Error(err))
			}
			c.HostEvents.RemoveAllListeners()
			for i := len(c.closers) - 1; i >= 0; i-- {
				c.closers[i]()
			}
		})
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
