package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/persona-chat/internal/app"
	"github.com/suPer8Hu/persona-chat/internal/auth"
	"github.com/suPer8Hu/persona-chat/internal/chat"
	"github.com/suPer8Hu/persona-chat/internal/config"
	"github.com/suPer8Hu/persona-chat/internal/db"
	"github.com/suPer8Hu/persona-chat/internal/httpapi"
	"github.com/suPer8Hu/persona-chat/internal/httpapi/handlers"
	"github.com/suPer8Hu/persona-chat/internal/logging"
	"github.com/suPer8Hu/persona-chat/internal/store/rabbitmq"
	"github.com/suPer8Hu/persona-chat/internal/students"
	"go.uber.org/zap"
)

func main() {
	seedStudents := flag.String("seed-students", "", "JSON file of student profiles to upsert before serving")
	flag.Parse()

	cfg := config.Load()

	log, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	if err := db.Migrate(gdb, &chat.Session{}, &chat.Message{}, &students.Profile{}); err != nil {
		log.Fatal("db migrate", zap.Error(err))
	}

	studentRepo := students.NewRepo(gdb)
	if *seedStudents != "" {
		if err := seed(studentRepo, *seedStudents, log); err != nil {
			log.Fatal("seed students", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts app.CoreOptions
	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatal("rabbit publisher", zap.Error(err))
		}
		defer pub.Close()
		opts.Publisher = pub
		opts.Exports = pub
	}

	core, err := app.NewCore(ctx, cfg, gdb, log, opts)
	if err != nil {
		log.Fatal("wire core", zap.Error(err))
	}
	defer core.Close()

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	h := &handlers.Handler{
		ChatSvc:      core.Service,
		Suggestions:  core.Suggestions,
		Students:     studentRepo,
		Grounding:    core.Loader,
		Translator:   core.Translator,
		ProfileCount: cfg.StudentProfilesCount,
		Log:          log.Named("http"),
	}
	router := httpapi.NewRouter(h, httpapi.RouterConfig{
		Keys:      auth.NewKeyChecker(cfg.APIKey, cfg.APIKeyHash),
		JWTSecret: cfg.APIKey,
		Log:       log.Named("http"),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server started", zap.String("addr", srv.Addr), zap.String("ai_provider", cfg.AIProvider))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}

func seed(repo *students.Repo, path string, log *zap.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	profiles, err := students.LoadProfiles(f)
	if err != nil {
		return err
	}
	n, err := repo.Seed(context.Background(), profiles)
	if err != nil {
		if !errors.Is(err, students.ErrInvalidProfile) {
			return err
		}
		// invalid rows are skipped, the rest is stored
		log.Warn("some student profiles were rejected", zap.Error(err))
	}
	log.Info("student profiles seeded", zap.Int("stored", n), zap.Int("total", len(profiles)))
	return nil
}
