package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as database/sql driver

	"docanalysis-backend/internal/shared/telemetry"
)

// Role selects pool defaults for the kind of process opening the database.
type Role string

const (
	// RoleServer is a long-running process: cmd/api or cmd/worker.
	RoleServer Role = "server"
	// RoleLambda is one of many concurrent Lambda execution environments, each
	// of which should hold very few connections.
	RoleLambda Role = "lambda"
	// RoleMigrate is the one-shot migration CLI.
	RoleMigrate Role = "migrate"
)

// Options controls the pool and the initial connectivity check.
type Options struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

var roleDefaults = map[Role]Options{
	RoleServer: {
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxIdleTime: 2 * time.Minute,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
	},
	RoleLambda: {
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxIdleTime: 30 * time.Second,
		ConnMaxLifetime: 15 * time.Minute,
		PingTimeout:     3 * time.Second,
	},
	RoleMigrate: {
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		PingTimeout:     5 * time.Second,
	},
}

var (
	openDB      = sql.Open
	singletonMu sync.Mutex
	singletonDB *sql.DB
)

// IsLambdaRuntime reports whether the process runs inside AWS Lambda.
func IsLambdaRuntime() bool {
	return strings.TrimSpace(os.Getenv("AWS_LAMBDA_FUNCTION_NAME")) != ""
}

// RuntimeRole is RoleLambda inside Lambda and RoleServer elsewhere.
func RuntimeRole() Role {
	if IsLambdaRuntime() {
		return RoleLambda
	}
	return RoleServer
}

// DefaultOptions returns the pool defaults for role. Unknown roles get the
// server defaults.
func DefaultOptions(role Role) Options {
	if opts, ok := roleDefaults[role]; ok {
		return opts
	}
	return roleDefaults[RoleServer]
}

// OptionsFromEnv overrides defaults with DB_* env vars if present.
func OptionsFromEnv(defaults Options) Options {
	opts := defaults
	for key, dst := range map[string]*int{
		"DB_MAX_OPEN_CONNS": &opts.MaxOpenConns,
		"DB_MAX_IDLE_CONNS": &opts.MaxIdleConns,
	} {
		if v, ok := readEnvInt(key); ok {
			*dst = v
		}
	}
	for key, dst := range map[string]*time.Duration{
		"DB_CONN_MAX_LIFETIME":  &opts.ConnMaxLifetime,
		"DB_CONN_MAX_IDLE_TIME": &opts.ConnMaxIdleTime,
		"DB_PING_TIMEOUT":       &opts.PingTimeout,
	} {
		if v, ok := readEnvDuration(key); ok {
			*dst = v
		}
	}
	return opts
}

// Open connects to the process-data database with the pool sized for role.
// Lambda environments share one *sql.DB across invocations.
func Open(ctx context.Context, databaseURL string, role Role) (*sql.DB, error) {
	opts := OptionsFromEnv(DefaultOptions(role))
	var (
		sqlDB *sql.DB
		err   error
	)
	if role == RoleLambda {
		sqlDB, err = GetSingleton(ctx, databaseURL, opts)
	} else {
		sqlDB, err = Connect(ctx, databaseURL, opts)
	}
	if err != nil {
		return nil, err
	}

	stats := PoolStats(sqlDB)
	telemetry.Info("db.open", map[string]any{
		"role":     string(role),
		"open":     stats.Open,
		"idle":     stats.Idle,
		"max_open": stats.MaxOpen,
	})
	return sqlDB, nil
}

// Connect opens a *sql.DB for databaseURL and pings it.
func Connect(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	sqlDB, err := openDB("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	applyOptions(sqlDB, opts)

	if err := Ping(ctx, sqlDB, opts.PingTimeout); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return sqlDB, nil
}

// GetSingleton returns the process-wide *sql.DB, connecting on first use. A
// failed connect is retried by the next caller.
func GetSingleton(ctx context.Context, databaseURL string, opts Options) (*sql.DB, error) {
	singletonMu.Lock()
	defer singletonMu.Unlock()
	if singletonDB != nil {
		return singletonDB, nil
	}

	sqlDB, err := Connect(ctx, databaseURL, opts)
	if err != nil {
		return nil, err
	}
	singletonDB = sqlDB
	telemetry.Info("db.singleton.init", map[string]any{"max_open": opts.MaxOpenConns})
	return sqlDB, nil
}

// Ping checks connectivity, giving up after timeout (5s when unset).
func Ping(ctx context.Context, sqlDB *sql.DB, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Pool is a snapshot of connection pool usage.
type Pool struct {
	Open      int   `json:"open"`
	InUse     int   `json:"inUse"`
	Idle      int   `json:"idle"`
	WaitCount int64 `json:"waitCount"`
	MaxOpen   int   `json:"maxOpen"`
}

// PoolStats snapshots sqlDB's pool.
func PoolStats(sqlDB *sql.DB) Pool {
	s := sqlDB.Stats()
	return Pool{
		Open:      s.OpenConnections,
		InUse:     s.InUse,
		Idle:      s.Idle,
		WaitCount: s.WaitCount,
		MaxOpen:   s.MaxOpenConnections,
	}
}

func applyOptions(sqlDB *sql.DB, opts Options) {
	server := roleDefaults[RoleServer]
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = server.MaxOpenConns
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = server.MaxIdleConns
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = server.ConnMaxLifetime
	}
	sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(opts.ConnMaxLifetime)
	if opts.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	}
}

func readEnvInt(key string) (int, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		telemetry.Warn("db.env.invalid", map[string]any{"key": key, "error": err})
		return 0, false
	}
	return val, true
}

func readEnvDuration(key string) (time.Duration, bool) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return 0, false
	}
	val, err := time.ParseDuration(raw)
	if err != nil {
		telemetry.Warn("db.env.invalid", map[string]any{"key": key, "error": err})
		return 0, false
	}
	return val, true
}
