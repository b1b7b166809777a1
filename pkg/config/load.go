package config

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ErrInvalid is returned by Load and Validate for inconsistent settings.
var ErrInvalid = errors.New("invalid configuration")

// Load reads configuration from the environment. Each path in envFilePath is
// searched for upwards from the working directory and the first one found is
// loaded; with no paths a .env in the working directory is tried.
func Load(envFilePath ...string) (*App, error) {
	logger := slog.Default()
	logger.Info("Loading environment variables")

	if len(envFilePath) == 0 {
		logger.Debug("No environment file specified, trying default .env")
		if err := godotenv.Load(); err != nil {
			logger.Warn("No .env file found in current directory")
		}
		return loadFromEnv()
	}

	for _, path := range envFilePath {
		foundPath, err := FindEnvFile(path)
		if err != nil {
			logger.Debug("Environment file not found", "path", path, "error", err)
			continue
		}
		if err := godotenv.Load(foundPath); err != nil {
			logger.Error("Failed to load environment file", "path", foundPath, "error", err)
			continue
		}
		logger.Info("Loaded environment file", "path", foundPath)
		return loadFromEnv()
	}

	logger.Info("No valid environment files found, using process environment")
	return loadFromEnv()
}

func loadFromEnv() (*App, error) {
	var cfg App
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Default().Info("App config loaded",
		"env", cfg.Env,
		"workers", cfg.Bank.Workers,
		"persistence", cfg.Persistence.Provider,
		"snapshot_path", cfg.Snapshot.Path,
		"db", maskValue(cfg.DB.Url),
		"db_driver", cfg.DB.Driver,
		"cache", cfg.Cache.Provider,
		"redis", maskValue(cfg.Redis.URL),
		"notify_stream", cfg.Notify.RedisStream,
	)
	return &cfg, nil
}

// Validate checks settings envconfig cannot express.
func (a *App) Validate() error {
	switch a.Persistence.Provider {
	case ProviderSnapshot:
		if a.Snapshot.Path == "" {
			return fmt.Errorf("%w: SNAPSHOT_PATH is required", ErrInvalid)
		}
	case ProviderRelational:
		if a.DB.Url == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for the relational provider", ErrInvalid)
		}
		if a.DB.Driver != "pgx" && a.DB.Driver != "postgres" {
			return fmt.Errorf("%w: unknown DATABASE_DRIVER %q", ErrInvalid, a.DB.Driver)
		}
	default:
		return fmt.Errorf("%w: unknown PERSISTENCE_PROVIDER %q", ErrInvalid, a.Persistence.Provider)
	}
	switch a.Cache.Provider {
	case CacheNone, CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("%w: unknown CACHE_PROVIDER %q", ErrInvalid, a.Cache.Provider)
	}
	if a.Bank.IDMin <= 0 || a.Bank.IDMax < a.Bank.IDMin {
		return fmt.Errorf("%w: BANK_ID_MIN/BANK_ID_MAX [%d, %d]", ErrInvalid, a.Bank.IDMin, a.Bank.IDMax)
	}
	return nil
}

func maskValue(key string) string {
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}
