package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/mattn/go-sqlite3"

	"github.com/companionlabs/backend/internal/config"
	"github.com/companionlabs/backend/internal/handler"
	"github.com/companionlabs/backend/internal/model/account"
	"github.com/companionlabs/backend/internal/model/persona"
	"github.com/companionlabs/backend/internal/service/ai"
	"github.com/companionlabs/backend/internal/service/chat"
	"github.com/companionlabs/backend/internal/service/image"
	"github.com/companionlabs/backend/internal/service/media"
	"github.com/companionlabs/backend/internal/service/notify"
	"github.com/companionlabs/backend/internal/service/room"
	"github.com/companionlabs/backend/internal/service/speech"
	"github.com/companionlabs/backend/internal/store/messagelog"
	"github.com/companionlabs/backend/internal/store/quota"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	db, err := openDatabase(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	messageLog, err := messagelog.NewSQLite(db)
	if err != nil {
		log.Fatalf("failed to initialize message log: %v", err)
	}
	meter, err := quota.NewSQLiteMeter(db)
	if err != nil {
		log.Fatalf("failed to initialize quota meter: %v", err)
	}

	personaStore := persona.NewMemoryStore(persona.Seed())
	directory := seedDirectory()

	aiSvc, err := ai.NewService(ctx, cfg.AI)
	if err != nil {
		log.Fatalf("failed to initialize text generation: %v", err)
	}

	var imageGen image.Generator
	if cfg.Image.Enabled() {
		imageGen = image.NewClient(image.Config{
			TextToImageURL:  cfg.Image.TextToImageURL,
			ImageToImageURL: cfg.Image.ImageToImageURL,
			APIKey:          cfg.Image.APIKey,
			Timeout:         cfg.Image.Timeout,
		})
		log.Println("image generation enabled")
	} else {
		log.Println("image provider not configured, image actions will fail over")
	}

	var tts speech.Synthesizer
	voiceEnabled := cfg.Chat.VoiceEnabled && cfg.Speech.Enabled()
	if voiceEnabled {
		tts = speech.NewClient(speech.Config{
			BaseURL:   cfg.Speech.BaseURL,
			APIKey:    cfg.Speech.APIKey,
			Model:     cfg.Speech.Model,
			ChunkSize: cfg.Speech.ChunkSize,
			Timeout:   cfg.Speech.Timeout,
		})
		log.Println("voice streaming enabled")
	} else {
		log.Println("speech provider not configured, replies will be text only")
	}

	mediaStore := media.NewHTTPStore(media.Config{
		UploadBaseURL: cfg.Media.UploadBaseURL,
		PublicBaseURL: cfg.Media.PublicBaseURL,
		Timeout:       cfg.Media.Timeout,
	})

	trigger := notify.NewHTTPTrigger(notify.Config{
		PushURL:       cfg.Notify.PushURL,
		EvaluationURL: cfg.Notify.EvaluationURL,
		Timeout:       cfg.Notify.Timeout,
	})

	chatSvc := chat.NewService(chat.Deps{
		Log:       messageLog,
		Meter:     meter,
		Registry:  room.NewRegistry(trigger),
		Hub:       room.NewHub(),
		Directory: directory,
		Personas:  personaStore,
		TextGen:   aiSvc,
		Detector:  aiSvc,
		ImageGen:  imageGen,
		Media:     mediaStore,
		TTS:       tts,
		Notifier:  trigger,
	}, chat.Options{
		MaxPromptTokens: cfg.Chat.MaxPromptTokens,
		MinPromptTurns:  cfg.Chat.MinPromptTurns,
		HistoryLimit:    cfg.Chat.HistoryLimit,
		ReplayLimit:     cfg.Chat.ReplayLimit,
		VoiceEnabled:    voiceEnabled,
	})

	router := handler.NewRouter(personaStore, chatSvc)

	startServer(ctx, cfg.Server, router)
}

func openDatabase(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// SQLite serializes writers; a single connection avoids lock churn.
	db.SetMaxOpenConns(1)
	return db, db.Ping()
}

// seedDirectory loads the development identity fixtures. Deployments swap
// this for the identity service client.
func seedDirectory() *account.MemoryDirectory {
	directory := account.NewMemoryDirectory()

	group := account.BillingGroup{
		ID:           "family-demo",
		PeriodAnchor: time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC),
		LearnerIDs:   []string{"demo-learner"},
		GuardianIDs:  []string{"demo-guardian"},
	}
	directory.PutBillingGroup(group)

	directory.PutChatter(account.Chatter{
		ID:              "demo-learner",
		Username:        "demo-learner",
		DisplayName:     "Alex",
		DisplayLanguage: "en",
		ChatLanguages:   []string{"en", "es"},
		DateOfBirth:     time.Date(2014, time.June, 1, 0, 0, 0, 0, time.UTC),
		BillingGroupID:  group.ID,
	}, account.Package{
		ID:                   "family-plus",
		AllowedRequest:       30,
		ImageGenerationLimit: 50,
	})

	directory.PutChatter(account.Chatter{
		ID:              "demo-guardian",
		Username:        "demo-guardian",
		DisplayName:     "Sam",
		DisplayLanguage: "en",
		BillingGroupID:  group.ID,
	}, account.Package{
		ID:                   "family-plus",
		AllowedRequest:       account.Unlimited,
		ImageGenerationLimit: 50,
	})

	return directory
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("companion backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
