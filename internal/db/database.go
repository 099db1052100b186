package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jcastroba/red-simpatizantes/internal/config"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Repository errors
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Force IPv4 dialing for lib/pq connections via a custom Dialer
type ipv4Dialer struct{}

func (ipv4Dialer) Dial(network, address string) (net.Conn, error) {
	return (&net.Dialer{}).Dial("tcp4", address)
}

func (ipv4Dialer) DialTimeout(network, address string, timeout time.Duration) (net.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return (&net.Dialer{}).DialContext(ctx, "tcp4", address)
}

// Database represents the database connection
type Database struct {
	DB     *sql.DB
	logger *zap.Logger
}

// NewFromDB wraps an existing handle (tests use sqlmock)
func NewFromDB(sqlDB *sql.DB, logger *zap.Logger) *Database {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Database{DB: sqlDB, logger: logger}
}

// NewDatabase creates a new database connection with retry logic for serverless databases
func NewDatabase(cfg config.DatabaseConfig, logger *zap.Logger) (*Database, error) {
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = 1
	}
	delay := cfg.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}
	return NewDatabaseWithRetry(cfg, logger, retries, delay)
}

// NewDatabaseWithRetry opens the pool with exponential backoff between attempts
func NewDatabaseWithRetry(cfg config.DatabaseConfig, logger *zap.Logger, maxRetries int, initialDelay time.Duration) (*Database, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	connStr := connectionString(cfg)
	log := logger.With(zap.String("driver", cfg.Driver), zap.String("host", displayHost(cfg)), zap.String("dbname", cfg.Name))

	var sqlDB *sql.DB
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		log.Info("connecting to database", zap.Int("attempt", attempt), zap.Int("max_attempts", maxRetries))

		sqlDB, lastErr = open(cfg, connStr)
		if lastErr == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			lastErr = sqlDB.PingContext(ctx)
			cancel()
			if lastErr == nil {
				log.Info("database connection established", zap.Int("attempt", attempt))
				break
			}
			lastErr = fmt.Errorf("failed to ping database: %w", lastErr)
			sqlDB.Close()
			sqlDB = nil
		}

		log.Warn("database connection failed", zap.Int("attempt", attempt), zap.Error(lastErr))
		if attempt < maxRetries {
			// Exponential backoff: 1s, 2s, 4s, 8s, ...
			wait := initialDelay * time.Duration(1<<(attempt-1))
			log.Info("retrying database connection", zap.Duration("wait", wait))
			time.Sleep(wait)
		}
	}

	if sqlDB == nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, lastErr)
	}

	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Database{DB: sqlDB, logger: logger}, nil
}

func open(cfg config.DatabaseConfig, connStr string) (*sql.DB, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		connector, err := pq.NewConnector(connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to build pq connector: %w", err)
		}
		connector.Dialer(ipv4Dialer{})
		return sql.OpenDB(connector), nil
	case config.DriverPgx, "":
		connConfig, err := pgx.ParseConfig(connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse database config: %w", err)
		}
		// Simple protocol (no prepared statements) keeps transaction poolers happy
		connConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
		origHost := connConfig.Host
		connConfig.DialFunc = func(ctx context.Context, network, address string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(address)
			if err != nil || host == "" || port == "" {
				host = origHost
				port = "5432"
			}
			ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err == nil {
				for _, ipa := range ips {
					if ipv4 := ipa.IP.To4(); ipv4 != nil {
						return (&net.Dialer{}).DialContext(ctx, "tcp4", net.JoinHostPort(ipv4.String(), port))
					}
				}
			}
			return (&net.Dialer{}).DialContext(ctx, "tcp", address)
		}
		return stdlib.OpenDB(*connConfig), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// connectionString prefers DATABASE_URL; falls back to DB_* settings
func connectionString(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	if cfg.Password == "" {
		return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Name, cfg.SSLMode)
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)
}

func displayHost(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		return "(from DATABASE_URL)"
	}
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}

// Health checks if the database connection is healthy
func (d *Database) Health(ctx context.Context) error {
	return d.DB.PingContext(ctx)
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS departments (
		id   BIGSERIAL PRIMARY KEY,
		name VARCHAR(100) NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS municipalities (
		id            BIGSERIAL PRIMARY KEY,
		department_id BIGINT       NOT NULL REFERENCES departments(id) ON DELETE CASCADE,
		name          VARCHAR(100) NOT NULL,
		UNIQUE (department_id, name)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_municipalities_department ON municipalities (department_id)`,
	`CREATE TABLE IF NOT EXISTS sympathizers (
		id            BIGSERIAL PRIMARY KEY,
		cedula        VARCHAR(20)  NOT NULL UNIQUE,
		nombres       VARCHAR(100) NOT NULL,
		apellidos     VARCHAR(100) NOT NULL,
		email         VARCHAR(254),
		phone         VARCHAR(15)  NOT NULL DEFAULT '',
		sexo          CHAR(1)      NOT NULL DEFAULT 'O' CHECK (sexo IN ('M', 'F', 'O')),
		referrer_id   BIGINT REFERENCES sympathizers(id) ON DELETE SET NULL,
		referral_code CHAR(8)      NOT NULL UNIQUE,
		link_enabled  BOOLEAN      NOT NULL DEFAULT TRUE,
		is_suspended  BOOLEAN      NOT NULL DEFAULT FALSE,
		network_name  VARCHAR(100),
		created_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
		activated_at  TIMESTAMPTZ,
		updated_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
		department_id BIGINT REFERENCES departments(id) ON DELETE SET NULL,
		municipio_id  BIGINT REFERENCES municipalities(id) ON DELETE SET NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sympathizers_referrer ON sympathizers (referrer_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sympathizers_created_at ON sympathizers (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_sympathizers_names ON sympathizers (nombres, apellidos)`,
	`CREATE INDEX IF NOT EXISTS idx_sympathizers_email ON sympathizers (email)`,
	`CREATE TABLE IF NOT EXISTS level_labels (
		id         BIGSERIAL PRIMARY KEY,
		owner_id   BIGINT       NOT NULL REFERENCES sympathizers(id) ON DELETE CASCADE,
		level      INTEGER      NOT NULL CHECK (level >= 0),
		name       VARCHAR(100) NOT NULL,
		updated_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
		UNIQUE (owner_id, level)
	)`,
}

// InitSchema creates the tables and indexes if they do not exist (idempotent)
func (d *Database) InitSchema(ctx context.Context) error {
	for i, stmt := range schemaStatements {
		if _, err := d.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	d.logger.Info("database schema verified", zap.Int("statements", len(schemaStatements)))
	return nil
}

// isUniqueViolation recognises SQLSTATE 23505 from either driver
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
