package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/snaka/mioportal/internal/adapters/cache"
	chainstore "github.com/snaka/mioportal/internal/adapters/credstore/chain"
	"github.com/snaka/mioportal/internal/adapters/history"
	"github.com/snaka/mioportal/internal/adapters/notify"
	"github.com/snaka/mioportal/internal/adapters/snapshot"
	"github.com/snaka/mioportal/internal/application"
	"github.com/snaka/mioportal/internal/mio"
	"github.com/snaka/mioportal/internal/ports"
)

const (
	configName = "config"
	configType = "toml"
	configDir  = "mioportal"

	envMioID       = "MIO_ID"
	envMioPassword = "MIO_PASSWORD"
)

type app struct {
	client    *mio.Client
	refresh   *application.RefreshService
	credStore ports.CredentialStore
	cache     ports.PayloadCache
	history   ports.HistoryLog
	now       func() time.Time
}

func wireApp() (*app, error) {
	// A .env beside the binary is a convenience for widget scripts; a
	// missing file is the normal case.
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	stateDir := cfg.GetString("state.dir")
	baseURL := cfg.GetString("portal.base_url")

	jar, err := mio.NewFileJar(filepath.Join(stateDir, "cookies.json"), baseURL)
	if err != nil {
		return nil, fmt.Errorf("wire cookie jar: %w", err)
	}

	client, err := mio.New(mio.Options{
		BaseURL:             baseURL,
		HTTPClient:          &http.Client{Jar: jar},
		UserAgent:           cfg.GetString("portal.user_agent"),
		SessionExpiredCodes: cfg.GetStringSlice("portal.session_expired_codes"),
	})
	if err != nil {
		return nil, fmt.Errorf("wire portal client: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	credStore, err := chainstore.NewPassFirstWithFileFallback(
		filepath.Join(stateDir, "credentials"),
		filepath.Join(homeDir, ".mio-credentials.json"),
	)
	if err != nil {
		return nil, fmt.Errorf("wire credential store chain: %w", err)
	}

	payloadCache := cache.NewFileCache(stateDir)
	historyLog := history.NewFileLog(stateDir)

	refresh := application.NewRefreshService(
		client,
		credStore,
		payloadCache,
		snapshot.NewFileStore(stateDir),
		historyLog,
		notify.NewDesktopNotifier(stateDir),
		ports.SystemClock{},
		application.Config{
			MonthlyThresholdGB: cfg.GetFloat64("thresholds.monthly_gb"),
			DailyThresholdMB:   cfg.GetFloat64("thresholds.daily_mb"),
			SuccessTTL:         cfg.GetDuration("widget.success_ttl"),
		},
	)

	return &app{
		client:    client,
		refresh:   refresh,
		credStore: credStore,
		cache:     payloadCache,
		history:   historyLog,
		now:       time.Now,
	}, nil
}

func loadConfig() (*viper.Viper, error) {
	cfg := viper.New()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	cfg.SetConfigName(configName)
	cfg.SetConfigType(configType)
	cfg.AddConfigPath(filepath.Join(homeDir, ".config", configDir))

	cfg.SetDefault("portal.base_url", mio.DefaultBaseURL)
	cfg.SetDefault("portal.user_agent", "")
	cfg.SetDefault("portal.session_expired_codes", []string{})
	cfg.SetDefault("state.dir", filepath.Join(homeDir, ".local", "share", configDir))
	cfg.SetDefault("thresholds.monthly_gb", 0.0)
	cfg.SetDefault("thresholds.daily_mb", 0.0)
	cfg.SetDefault("widget.success_ttl", time.Hour)

	cfg.SetEnvPrefix("MIOPORTAL")
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	if err := cfg.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
