package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/guildwarden/warden/automod/action"
	"github.com/guildwarden/warden/automod/cachestore"
	"github.com/guildwarden/warden/automod/consumer"
	"github.com/guildwarden/warden/automod/countstore"
	"github.com/guildwarden/warden/automod/engine"
	"github.com/guildwarden/warden/automod/guildconfig"
	"github.com/guildwarden/warden/automod/rulestore"
	"github.com/guildwarden/warden/automod/scheduler"
	"github.com/guildwarden/warden/automod/wordlist"
	"github.com/guildwarden/warden/util"
	"github.com/guildwarden/warden/util/cliutil"

	"github.com/gammazero/workerpool"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// rule sets are re-read from the backing store at most this often
const ruleSetCacheTTL = 30 * time.Second

type Server struct {
	logger    *slog.Logger
	engine    *engine.Engine
	scheduler *scheduler.Scheduler
	consumer  *consumer.AMQPConsumer

	configs   *guildconfig.Cache
	wordLists *wordlist.Store
	rules     *rulestore.CachedStore
	discord   *action.DiscordSink

	admin       *echo.Echo
	adminListen string
}

type Config struct {
	AMQPURL          string
	Exchange         string
	Queue            string
	RoutingKey       string
	Prefetch         int
	DatabaseURL      string
	MaxDBConnections int
	RedisURL         string
	RulesFileJSON    string
	WordListsJSON    string
	DiscordToken     string
	WebhookURL       string
	WebhookToken     string
	WebhookRateLimit float64
	SlackWebhookURL  string
	DryRun           bool
	Parallelism      int
	DispatchWorkers  int
	AdminListen      string
	AdminToken       string
	Logger           *slog.Logger
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	var configStore guildconfig.Store
	var ruleStore rulestore.Store
	if config.DatabaseURL != "" {
		db, err := cliutil.SetupDatabase(config.DatabaseURL, config.MaxDBConnections)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		gcs := guildconfig.NewGormStore(db)
		if err := gcs.Migrate(); err != nil {
			return nil, fmt.Errorf("migrating guild configs: %w", err)
		}
		configStore = gcs
		rss := rulestore.NewGormStore(db)
		if err := rss.Migrate(); err != nil {
			return nil, fmt.Errorf("migrating rule sets: %w", err)
		}
		ruleStore = rss
	} else {
		logger.Warn("no database configured, guild configs will not persist")
		configStore = guildconfig.NewMemStore()
	}

	if config.RulesFileJSON != "" {
		mem := rulestore.NewMemStore()
		if err := mem.LoadFromFileJSON(config.RulesFileJSON); err != nil {
			return nil, fmt.Errorf("loading rule sets: %w", err)
		}
		logger.Info("loaded rule sets from JSON", "path", config.RulesFileJSON)
		ruleStore = mem
	}
	if ruleStore == nil {
		return nil, errors.New("no rule set source: configure a database or a rules file")
	}

	wordLists := wordlist.NewStore()
	if config.WordListsJSON != "" {
		if err := wordLists.LoadFromFileJSON(config.WordListsJSON); err != nil {
			return nil, fmt.Errorf("loading word lists: %w", err)
		}
		logger.Info("loaded word lists from JSON", "path", config.WordListsJSON)
	}

	var counters countstore.CountStore
	var cache cachestore.CacheStore
	if config.RedisURL != "" {
		cnt, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis countstore: %w", err)
		}
		counters = cnt

		csh, err := cachestore.NewRedisCacheStore(config.RedisURL, ruleSetCacheTTL)
		if err != nil {
			return nil, fmt.Errorf("initializing redis cachestore: %w", err)
		}
		cache = csh
	} else {
		counters = countstore.NewMemCountStore()
		cache = cachestore.NewMemCacheStore(5_000, ruleSetCacheTTL)
	}
	rules := rulestore.NewCachedStore(ruleStore, cache, logger)

	sink, discord, err := buildSink(config, counters, logger)
	if err != nil {
		return nil, err
	}

	workers := config.DispatchWorkers
	if workers <= 0 {
		workers = 1
	}
	configs := guildconfig.NewCache(configStore, logger)
	eng := &engine.Engine{
		Logger:     logger,
		Configs:    configs,
		WordLists:  wordLists,
		Rules:      rules,
		Counters:   counters,
		Sink:       sink,
		Dispatcher: workerpool.New(workers),
	}

	sched := scheduler.NewScheduler(config.Parallelism, "warden", logger, eng.ProcessEvent)

	s := &Server{
		logger:    logger,
		engine:    eng,
		scheduler: sched,
		consumer: &consumer.AMQPConsumer{
			URL:        config.AMQPURL,
			Exchange:   config.Exchange,
			Queue:      config.Queue,
			RoutingKey: config.RoutingKey,
			Prefetch:   config.Prefetch,
			Logger:     logger,
			Processor:  sched,
		},
		configs:     configs,
		wordLists:   wordLists,
		rules:       rules,
		discord:     discord,
		adminListen: config.AdminListen,
	}
	s.admin = s.newAdmin(config.AdminToken)

	return s, nil
}

// buildSink combines every configured action sink behind a DedupeSink. The Discord sink is also returned, so that its pending undo timers can be stopped on shutdown.
func buildSink(config Config, counters countstore.CountStore, logger *slog.Logger) (action.Sink, *action.DiscordSink, error) {
	if config.DryRun {
		logger.Info("dry run: actions will only be logged")
		return action.LogSink{Logger: logger}, nil, nil
	}

	var sinks action.MultiSink
	var discord *action.DiscordSink
	if config.DiscordToken != "" {
		ds, err := action.NewDiscordSink(config.DiscordToken, nil, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("creating discord session: %w", err)
		}
		discord = ds
		sinks = append(sinks, ds)
	}
	if config.WebhookURL != "" {
		rps := config.WebhookRateLimit
		if rps <= 0 {
			rps = 20
		}
		ws := action.NewWebhookSink(config.WebhookURL, util.RobustHTTPClient(logger), rps, int(rps))
		ws.Token = config.WebhookToken
		sinks = append(sinks, ws)
	}
	if config.SlackWebhookURL != "" {
		sinks = append(sinks, &action.SlackSink{WebhookURL: config.SlackWebhookURL})
	}
	if len(sinks) == 0 {
		logger.Warn("no action sink configured, actions will only be logged")
		sinks = append(sinks, action.LogSink{Logger: logger})
	}

	return &action.DedupeSink{Inner: sinks, Counts: counters, Logger: logger}, discord, nil
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

// Run consumes events until ctx is done or the consumer fails, then drains in-flight work: queued events first, then action dispatches.
func (s *Server) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.consumer.Run(gctx)
	})

	if s.adminListen != "" {
		httpd := &http.Server{
			Addr:         s.adminListen,
			Handler:      s.admin,
			ReadTimeout:  time.Minute,
			WriteTimeout: time.Minute,
		}
		g.Go(func() error {
			s.logger.Info("starting admin server", "bind", s.adminListen)
			if err := httpd.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpd.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()

	s.logger.Info("draining scheduled events")
	s.scheduler.Shutdown()
	s.logger.Info("draining action dispatches")
	s.engine.Shutdown()
	if s.discord != nil {
		if n := s.discord.Pending(); n > 0 {
			s.logger.Warn("dropping pending timed action reversals", "count", n)
		}
		s.discord.Close()
	}
	return err
}
