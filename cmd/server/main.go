package main

import (
	"context"
	"encoding/hex"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/huddle-chat/huddle/internal/config"
	httpHandler "github.com/huddle-chat/huddle/internal/delivery/http"
	"github.com/huddle-chat/huddle/internal/delivery/ws"
	"github.com/huddle-chat/huddle/internal/middleware"
	"github.com/huddle-chat/huddle/internal/session"
	"github.com/huddle-chat/huddle/internal/storage"
)

func main() {
	// Load .env file (ignore error if not exists, e.g. in production)
	_ = godotenv.Load()

	cfg := config.LoadFromEnv()

	log := setupLogger(cfg.LogLevel)

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open store failed")
	}
	defer store.Close()

	sessions := session.NewManager(sessionKeys(log, cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := ws.NewHub(log, store, cfg.AwayTimeout)
	go hub.Run(ctx)

	handler := httpHandler.NewHandler(log, cfg, hub, store, sessions)

	// Create server with timeouts. The websocket endpoint needs an
	// unlimited write window, so WriteTimeout stays unset.
	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     middleware.SecurityHeaders(handler.Routes()),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("huddle running")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server exited gracefully")
}

func setupLogger(level string) zerolog.Logger {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(parsed).
		With().Timestamp().Logger()
}

// sessionKeys decodes the configured cookie keys, generating throwaway
// ones when unset. Generated keys mean sessions do not survive a
// restart, acceptable for development only.
func sessionKeys(log zerolog.Logger, cfg *config.Config) ([]byte, []byte, time.Duration) {
	hashKey, err := hex.DecodeString(cfg.SessionHashKey)
	if err != nil || len(hashKey) == 0 {
		log.Warn().Msg("SESSION_HASH_KEY unset, generating ephemeral key")
		hashKey = securecookie.GenerateRandomKey(32)
	}
	blockKey, err := hex.DecodeString(cfg.SessionBlockKey)
	if err != nil || len(blockKey) == 0 {
		log.Warn().Msg("SESSION_BLOCK_KEY unset, generating ephemeral key")
		blockKey = securecookie.GenerateRandomKey(32)
	}
	return hashKey, blockKey, cfg.SessionTTL
}
