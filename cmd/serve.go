package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-co-op/gocron"
	"github.com/spf13/cobra"

	"github.com/divitutor/backend/internal/answers"
	"github.com/divitutor/backend/internal/api"
	"github.com/divitutor/backend/internal/chat"
	"github.com/divitutor/backend/internal/config"
	"github.com/divitutor/backend/internal/llm"
	"github.com/divitutor/backend/internal/logger"
	"github.com/divitutor/backend/internal/mastery"
	"github.com/divitutor/backend/internal/progress"
	"github.com/divitutor/backend/internal/questions"
	"github.com/divitutor/backend/internal/sandbox"
	"github.com/divitutor/backend/internal/storage"
	"github.com/divitutor/backend/internal/store"
	"github.com/divitutor/backend/internal/topics"
	"github.com/divitutor/backend/internal/users"
	"github.com/divitutor/backend/internal/video"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.HTTPAddr = addr
	}
	if dsn, _ := cmd.Flags().GetString("db"); dsn != "" {
		cfg.DatabaseDSN = dsn
	}

	log, err := logger.New(cfg.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	if cfg.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := cmd.Context()

	st, err := store.Open(cfg.DatabaseDSN, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	provider, err := llm.NewProvider(ctx, cfg.LLM, log)
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}
	codeProvider, err := llm.NewProviderWithModel(ctx, cfg.LLM, cfg.VideoCodeModel, log)
	if err != nil {
		return fmt.Errorf("llm code provider: %w", err)
	}

	sb, err := sandbox.New(log, cfg.Sandbox)
	if err != nil {
		log.Warn("sandbox client unavailable, video generation will fail", "error", err)
		sb = nil
	}
	objStore, err := storage.New(log, cfg.Storage)
	if err != nil {
		log.Warn("storage client unavailable, video generation will fail", "error", err)
		objStore = nil
	}

	catalog := topics.Default()

	progressSvc := progress.NewService(st.Progress(), st.Mastery(), catalog, log)
	masterySvc := mastery.NewService(st.Mastery(), catalog, log)
	questionSvc := questions.NewService(progressSvc, masterySvc, st.Questions(), st.Attempts(), st.Sessions(), catalog, log)
	answerSvc := answers.NewService(progressSvc, masterySvc, st.Questions(), st.Attempts(), st.Sessions(), provider, log)
	chatSvc := chat.NewService(st.Sessions(), st.Messages(), progressSvc, masterySvc, provider, log)
	videoSvc := video.NewService(st.Videos(), st.Sessions(), st.Questions(), st.Attempts(), provider, codeProvider, sb, objStore, log)
	userSvc := users.NewService(st.Users(), log)

	handlers := api.NewHandlers(chatSvc, questionSvc, answerSvc, videoSvc, userSvc, progressSvc, masterySvc, cfg.WebhookSecret, log)
	router := api.NewRouter(handlers, log, cfg.CORSOrigins)

	// Daily storage sweep for stale rendered videos.
	scheduler := gocron.NewScheduler(time.UTC)
	if _, err := scheduler.Every(1).Day().At("03:00").Do(func() {
		if _, err := videoSvc.CleanupOld(context.Background()); err != nil {
			log.Warn("scheduled video cleanup failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}
	scheduler.StartAsync()
	defer scheduler.Stop()

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr, "mode", cfg.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	videoSvc.Wait()
	return nil
}
