package main

import (
	"context"
	"encoding/base64"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"pocketsocrates/core"
	"pocketsocrates/factories"
	"pocketsocrates/store"
	"pocketsocrates/transports/websocket"
)

func main() {
	var settingsPath string
	flag.StringVar(&settingsPath, "settings", "", "path to a settings.json file (defaults to SETTINGS_PATH or ./settings.json)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := godotenv.Load(".env.local"); err != nil {
		core.GetLogger().With(map[string]any{"error": err}).Warn("No .env.local file found or failed to load")
	}

	settings, apiKeys := loadSettingsFromEnv(settingsPath)
	logger := core.GetLogger().With(map[string]any{"component": "server"})

	var db *store.DB
	if settings.Store.SQLitePath != "" {
		var err error
		db, err = store.OpenDB(ctx, settings.Store.SQLitePath)
		if err != nil {
			logger.With(map[string]any{"path": settings.Store.SQLitePath, "error": err}).Fatalf("failed to open session database")
		}
		defer db.Close()
	} else {
		logger.Warn("no sqlite_path configured, sessions will not survive restarts")
	}

	provider := websocket.NewProvider(settings.Server, logger)
	pipeline := factories.NewPipeline(settings, apiKeys, db, logger)

	if err := pipeline.Serve(provider, ctx); err != nil {
		logger.With(map[string]any{"error": err}).Error("server stopped")
	}

	core.GetLogger().Info("Shutting down...")
}

// loadSettingsFromEnv loads SettingsConfig from a file or the SETTINGS_JSON_B64
// env var, and API keys from env vars.
func loadSettingsFromEnv(settingsPath string) (factories.SettingsConfig, factories.APIKeys) {
	var settings factories.SettingsConfig
	var err error

	if b64 := os.Getenv("SETTINGS_JSON_B64"); b64 != "" {
		data, decErr := base64.StdEncoding.DecodeString(b64)
		if decErr != nil {
			core.GetLogger().With(map[string]any{"error": decErr}).Error("failed to decode SETTINGS_JSON_B64")
			settings = factories.DefaultSettingsConfig()
		} else {
			settings, err = factories.SettingsConfigFromJSON(data)
			if err != nil {
				core.GetLogger().With(map[string]any{"error": err}).Error("failed to parse SETTINGS_JSON_B64")
				settings = factories.DefaultSettingsConfig()
			} else {
				core.GetLogger().Info("loaded settings from SETTINGS_JSON_B64")
			}
		}
	} else {
		if settingsPath == "" {
			settingsPath = getEnv("SETTINGS_PATH", "./settings.json")
		}
		settings, err = factories.SettingsConfigFromFile(settingsPath)
		if err != nil {
			core.GetLogger().With(map[string]any{"path": settingsPath, "error": err}).Warn("failed to load settings, using defaults")
			settings = factories.DefaultSettingsConfig()
		}
	}

	apiKeys := factories.APIKeys{
		Deepgram:   getEnv("DEEPGRAM_API_KEY", ""),
		OpenRouter: getEnv("OPENROUTER_API_KEY", ""),
		ElevenLabs: getEnv("ELEVENLABS_API_KEY", ""),
	}

	return settings, apiKeys
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
