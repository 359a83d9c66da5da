package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/recloned/adcloner/internal/api"
	"github.com/recloned/adcloner/internal/config"
	"github.com/recloned/adcloner/internal/db"
	"github.com/recloned/adcloner/internal/pipeline"
	"github.com/recloned/adcloner/internal/queue"
	"github.com/recloned/adcloner/internal/services"
	"github.com/recloned/adcloner/internal/storage"
	"github.com/recloned/adcloner/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	database, err := db.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	q, err := queue.New(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer q.Close()

	store := storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseVideoBucket, cfg.SupabaseImageBucket)

	gemini := services.NewGeminiService(cfg.GeminiKey, cfg.GeminiModel)
	wavespeed := services.NewWaveSpeedService(cfg.WaveSpeedAPIKey)
	kie := services.NewKieService(cfg.KieAPIKey, wavespeed)

	analysisStage := pipeline.NewAnalysisStage(database, gemini)
	imageStage := pipeline.NewImageStage(database, wavespeed)
	videoStage := pipeline.NewVideoStage(database, wavespeed)
	musicStage := pipeline.NewMusicStage(database, kie)

	orchestrator := pipeline.NewOrchestrator(database, analysisStage, imageStage, videoStage, musicStage, pipeline.Options{
		ScenePacing:  time.Duration(cfg.ScenePacingSeconds) * time.Second,
		PollInterval: time.Duration(cfg.PollIntervalSecs) * time.Second,
		SettleWait:   time.Duration(cfg.ImageSettleSecs) * time.Second,
		TaskTimeout:  time.Duration(cfg.TaskTimeoutSecs) * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerDone := make(chan struct{})
	if cfg.WorkerEnabled {
		w := worker.New(q, orchestrator, cfg.MaxConcurrentRuns)
		go func() {
			defer close(workerDone)
			w.Start(ctx)
		}()
	} else {
		close(workerDone)
	}

	allowedOrigins := []string{"*"}
	if cfg.CorsAllowedOrigins != "" {
		allowedOrigins = strings.Split(cfg.CorsAllowedOrigins, ",")
	}

	handler := api.NewHandler(database, q, store, imageStage, videoStage, musicStage)
	router := api.NewRouter(handler, cfg.BackendAPIKey, allowedOrigins)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	go func() {
		log.Printf("[Server] Listening on :%s (worker=%v)", cfg.APIPort, cfg.WorkerEnabled)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("[Server] Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[Server] Shutdown error: %v", err)
	}

	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Println("[Server] Timed out waiting for worker")
	}

	log.Println("[Server] Stopped")
}
