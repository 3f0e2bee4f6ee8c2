package cli

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tereo-quiz-service/internal/app"
	"tereo-quiz-service/internal/config"
	"tereo-quiz-service/internal/infra/collector"
	"tereo-quiz-service/internal/infra/memory"
	"tereo-quiz-service/internal/infra/postgres"
	redisinfra "tereo-quiz-service/internal/infra/redis"
)

// deps is the wired service graph shared by the start and play commands.
type deps struct {
	service  *app.QuizService
	supply   app.QuestionSupply
	recorder app.MistakeReporter
	closers  []func()
}

func (d *deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// buildDeps picks Postgres and Redis when configured and falls back to memory otherwise.
func buildDeps(ctx context.Context, cfg config.Config, logger *zap.Logger) (*deps, error) {
	d := &deps{}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		d.closers = append(d.closers, func() { _ = redisClient.Close() })
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.Close()
			return nil, err
		}
		d.closers = append(d.closers, pool.Close)
	}

	var loader memory.WordLoader = memory.NewStaticWordLoader(starterWords())
	if pool != nil {
		store := postgres.NewWordStore(pool)
		seeded, err := store.SeedIfEmpty(ctx, starterWords())
		if err != nil {
			d.Close()
			return nil, err
		}
		if seeded > 0 {
			logger.Info("seeded vocabulary", zap.Int("words", seeded))
		}
		loader = store
	}

	vocabTTL := config.TTLDuration(cfg.Vocab.TTL, 10*time.Minute)
	var words app.WordRepository
	if redisClient != nil {
		words = redisinfra.NewWordRepository(redisClient, loader, vocabTTL, logger)
	} else {
		words = memory.NewWordRepository(loader, vocabTTL)
	}

	var mistakes interface {
		app.MistakeRepository
		app.MistakeReporter
	}
	if pool != nil {
		mistakes = postgres.NewMistakeStore(pool)
	} else {
		mistakes = memory.NewMistakeStore(words)
	}
	d.recorder = mistakes

	var sessions app.SessionRepository
	var stats app.StatsStore
	if redisClient != nil {
		sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
		stats = redisinfra.NewStatsStore(redisClient)
	} else {
		sessions = memory.NewSessionStore()
		stats = memory.NewStatsStore()
	}

	reporter := app.MultiReporter{mistakes}
	if cfg.Collector.URL != "" {
		timeout := config.TTLDuration(cfg.Collector.Timeout, 5*time.Second)
		reporter = append(reporter, collector.NewClient(cfg.Collector.URL, timeout))
	}

	svcCfg := serviceConfig(cfg)
	builder := app.NewQuestionBuilder(words, mistakes, svcCfg.QuestionLimit)
	d.supply = builder
	d.service = app.NewQuizService(sessions, builder, stats, svcCfg,
		app.WithReporter(reporter),
		app.WithServiceLogger(logger),
	)
	return d, nil
}

func serviceConfig(cfg config.Config) app.ServiceConfig {
	def := app.DefaultServiceConfig()
	return app.ServiceConfig{
		Session: app.SessionConfig{
			QuestionSeconds: cfg.Session.QuestionSeconds,
			TickInterval:    config.TTLDuration(cfg.Session.Tick, def.Session.TickInterval),
			FeedbackDelay:   config.TTLDuration(cfg.Session.FeedbackDelay, def.Session.FeedbackDelay),
		},
		QuestionLimit: cfg.Session.QuestionLimit,
		ReportTimeout: config.TTLDuration(cfg.Session.ReportTimeout, def.ReportTimeout),
	}
}
