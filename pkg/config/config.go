// Package config loads the process configuration from the environment,
// optionally seeded from a .env file.
package config

import (
	"time"
)

// Persistence providers.
const (
	ProviderSnapshot   = "snapshot"
	ProviderRelational = "relational"
)

// Cache providers.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Log struct {
	Level      int    `envconfig:"LEVEL" default:"0"`
	Format     string `envconfig:"FORMAT" default:"text"`
	TimeFormat string `envconfig:"TIME_FORMAT" default:"2006-01-02 15:04:05"`
	Prefix     string `envconfig:"PREFIX" default:"[bankcore]"`
}

type Server struct {
	Scheme string `envconfig:"SCHEME" default:"http"`
	Host   string `envconfig:"HOST" default:"localhost"`
	Port   int    `envconfig:"PORT" default:"3000"`
}

type RateLimit struct {
	MaxRequests int           `envconfig:"MAX_REQUESTS" default:"100"`
	Window      time.Duration `envconfig:"WINDOW" default:"1m"`
}

// Bank tunes the orchestrator.
type Bank struct {
	Workers       int           `envconfig:"WORKERS" default:"4"`
	ShutdownGrace time.Duration `envconfig:"SHUTDOWN_GRACE" default:"10s"`
	IDMin         int64         `envconfig:"ID_MIN" default:"10000000"`
	IDMax         int64         `envconfig:"ID_MAX" default:"99999999"`
}

type Persistence struct {
	Provider string `envconfig:"PROVIDER" default:"snapshot"`
}

type Snapshot struct {
	Path        string        `envconfig:"PATH" default:"data/ledger.properties"`
	LockTimeout time.Duration `envconfig:"LOCK_TIMEOUT" default:"5s"`
}

type DB struct {
	Url            string        `envconfig:"URL"`
	Driver         string        `envconfig:"DRIVER" default:"pgx"`
	PoolSize       int           `envconfig:"POOL_SIZE" default:"10"`
	AcquireTimeout time.Duration `envconfig:"ACQUIRE_TIMEOUT" default:"5s"`
	AutoMigrate    bool          `envconfig:"AUTO_MIGRATE" default:"true"`
	LogSQL         bool          `envconfig:"LOG_SQL" default:"false"`
}

type Cache struct {
	Provider string        `envconfig:"PROVIDER" default:"none"`
	TTL      time.Duration `envconfig:"TTL" default:"5m"`
}

type Redis struct {
	URL          string        `envconfig:"URL" default:"redis://localhost:6379/0"`
	KeyPrefix    string        `envconfig:"KEY_PREFIX" default:"bankcore:"`
	PoolSize     int           `envconfig:"POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
}

// Notify selects where bank events go besides the log.
type Notify struct {
	// RedisStream enables the Redis stream publisher when set.
	RedisStream string `envconfig:"REDIS_STREAM"`
	LogEvents   bool   `envconfig:"LOG_EVENTS" default:"true"`
}

type App struct {
	Env         string       `envconfig:"APP_ENV" default:"development"`
	Server      *Server      `envconfig:"SERVER"`
	RateLimit   *RateLimit   `envconfig:"RATE_LIMIT"`
	Log         *Log         `envconfig:"LOG"`
	Bank        *Bank        `envconfig:"BANK"`
	Persistence *Persistence `envconfig:"PERSISTENCE"`
	Snapshot    *Snapshot    `envconfig:"SNAPSHOT"`
	DB          *DB          `envconfig:"DATABASE"`
	Cache       *Cache       `envconfig:"CACHE"`
	Redis       *Redis       `envconfig:"REDIS"`
	Notify      *Notify      `envconfig:"NOTIFY"`
}
