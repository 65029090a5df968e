package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"neuro-triage/internal/agent"
	"neuro-triage/internal/assessment"
	"neuro-triage/internal/beds"
	"neuro-triage/internal/config"
	"neuro-triage/internal/platform/database"
	"neuro-triage/internal/platform/logger"
	"neuro-triage/internal/platform/mqtt"
	"neuro-triage/internal/platform/telegram"
	"neuro-triage/internal/report"
	"neuro-triage/internal/session"
	"neuro-triage/internal/soap"
	"neuro-triage/internal/triage"
	"neuro-triage/internal/web"
	"neuro-triage/migrations"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not configured yet.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "neuro-triage")
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("Server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	// 1. Infrastructure
	repo := openRepository(ctx, cfg, log)
	captureStore := openCaptureStore(ctx, cfg, log)

	var publisher beds.Publisher
	if cfg.MQTT.Broker != "" {
		mq, err := mqtt.NewPublisher(mqtt.Config{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID,
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Topic:    cfg.MQTT.Topic,
			QoS:      1,
		})
		if err != nil {
			log.Warn("MQTT unavailable, bed board will not be published", zap.Error(err))
		} else {
			defer mq.Close()
			publisher = beds.PublisherFunc(func(ctx context.Context, r beds.Readout) error {
				return mq.PublishJSON(ctx, r)
			})
			log.Info("Publishing bed board", zap.String("broker", cfg.MQTT.Broker), zap.String("topic", cfg.MQTT.Topic))
		}
	}

	// 2. Clients
	var stt agent.STTClient
	switch cfg.STT.Provider {
	case config.STTProviderOpenAI:
		stt = agent.NewOpenAITranscriber(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
	default:
		stt = agent.NewWhisperClient(cfg.STT.URL, cfg.STT.Timeout)
	}
	log.Info("Speech-to-text configured", zap.String("provider", cfg.STT.Provider))

	var extractor soap.Extractor = agent.NewLexiconExtractor()
	if cfg.OpenAI.APIKey != "" {
		extractor = agent.NewOpenAIExtractor(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
		log.Info("Entity extraction via OpenAI", zap.String("model", cfg.OpenAI.Model))
	}

	var tgClient report.TelegramClient
	if cfg.Telegram.Token != "" {
		tgClient = telegram.NewClient(cfg.Telegram.Token, cfg.Telegram.BaseURL)
		if cfg.Telegram.DoctorChatID == 0 {
			log.Warn("DOCTOR_CHAT_ID is not set or invalid. Urgent alerts will not be sent.")
		}
	}

	// 3. Core
	engine := triage.NewEngine(
		triage.NewClassifier(cfg.Triage.UrgentOnsetHours, cfg.Triage.SemiUrgentOnsetHours),
		nil,
	)
	if cfg.Triage.RulesPath != "" {
		rules, err := triage.LoadRules(cfg.Triage.RulesPath)
		if err != nil {
			return err
		}
		if err := engine.SetRules(rules); err != nil {
			return err
		}
		log.Info("Loaded rule table", zap.String("path", cfg.Triage.RulesPath), zap.Int("categories", len(rules.Categories)))
		if err := triage.WatchRules(ctx, cfg.Triage.RulesPath, engine, log); err != nil {
			return err
		}
	}

	// 4. Services
	reportSvc := report.NewService(tgClient, cfg.Telegram.DoctorChatID, cfg.Report.FontPath, log)
	var notifier assessment.Notifier
	if tgClient != nil {
		notifier = reportSvc
	}
	assessmentSvc := assessment.NewService(engine, soap.NewSynthesizer(extractor, log), repo, notifier, log)
	defer assessmentSvc.Wait()

	speech := agent.NewSpeech(agent.NewTranscoder(), stt, log)
	captures := session.NewService(captureStore, log)
	poller := beds.NewPoller(beds.NewRandomSource(nil), beds.Config{
		Total:        cfg.Beds.Total,
		LowThreshold: cfg.Beds.LowThreshold,
		Interval:     cfg.Beds.RefreshInterval,
	}, publisher, log)
	go poller.Run(ctx)

	pages, err := web.NewHandler(assessmentSvc, speech, poller, log)
	if err != nil {
		return err
	}
	assessmentHandler := assessment.NewHandler(assessmentSvc, reportSvc, reportSvc, log)
	api := web.NewAPI(speech, captures, poller, log)

	// 5. Router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	web.RegisterRoutes(r, pages)
	r.Route("/api", func(r chi.Router) {
		web.RegisterAPIRoutes(r, api)
		assessment.RegisterRoutes(r, assessmentHandler)
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openRepository falls back to memory when Postgres is not configured or not
// reachable, so the demo still runs.
func openRepository(ctx context.Context, cfg *config.Config, log *zap.Logger) assessment.Repository {
	if cfg.Database.URL == "" {
		log.Info("DATABASE_URL not set, assessments are kept in memory")
		return assessment.NewMemoryRepository(0)
	}

	db, err := database.Open(ctx, cfg.Database.URL, log)
	if err != nil {
		log.Warn("Could not connect to database, assessments are kept in memory", zap.Error(err))
		return assessment.NewMemoryRepository(0)
	}
	if err := database.Migrate(db, migrations.FS, log); err != nil {
		log.Warn("Migrations failed, assessments are kept in memory", zap.Error(err))
		db.Close()
		return assessment.NewMemoryRepository(0)
	}
	log.Info("Connected to database")
	return assessment.NewRepository(db)
}

func openCaptureStore(ctx context.Context, cfg *config.Config, log *zap.Logger) session.Store {
	if cfg.Redis.Addr == "" {
		return session.NewMemoryStore()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("Redis unavailable, capture sessions are kept in memory", zap.Error(err))
		client.Close()
		return session.NewMemoryStore()
	}
	log.Info("Capture sessions stored in Redis", zap.String("addr", cfg.Redis.Addr))
	return session.NewRedisStore(client, cfg.Redis.SessionTTL)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization")
		if r.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(w, r)
	})
}
