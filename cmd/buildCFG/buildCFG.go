package buildCFG

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
)

type ServerConfig struct {
	Port        string
	Mode        string
	FrontendDir string
}

type DBConfig struct {
	MasterDSN          string
	SlaveDSNs          []string
	Options            *dbpg.Options
	MigrationsDir      string
	RollbackOnShutdown bool
}

type RabbitConfig struct {
	Enabled  bool
	Url      string
	Exchange string
	Queue    string
}

type StorageConfig struct {
	URL          string
	APIKey       string
	ProofBucket  string
	QRISBucket   string
	CacheControl string
	Timeout      time.Duration
}

type AuthConfig struct {
	JWTSecret         string
	TokenTTL          time.Duration
	MaxFailedLogins   int
	LockoutWindow     time.Duration
	BootstrapUsername string
	BootstrapPassword string
}

type RegistrationConfig struct {
	MaxUploadBytes      int64
	EnforceQuota        bool
	CleanupDelaySeconds int
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	AdminTo  []string
}

func BuildServerConfig(cfg *config.Config, log *zerolog.Logger) ServerConfig {
	port := cfg.GetString("server.port")
	if port == "" {
		port = "8080"
		log.Warn().Msg("server.port is not set, falling back to 8080")
	}
	return ServerConfig{
		Port:        port,
		Mode:        cfg.GetString("server.mode"),
		FrontendDir: cfg.GetString("server.frontend_dir"),
	}
}

func BuildDBConfig(cfg *config.Config, log *zerolog.Logger) (DBConfig, error) {
	master := cfg.GetString("database.master_dsn")
	if master == "" {
		return DBConfig{}, errors.New("database.master_dsn is required")
	}

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.GetInt("database.max_open_conns"),
		MaxIdleConns:    cfg.GetInt("database.max_idle_conns"),
		ConnMaxLifetime: cfg.GetDuration("database.conn_max_lifetime"),
	}
	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = 5
	}

	migrations := cfg.GetString("database.migrations_dir")
	if migrations == "" {
		migrations = "migrations/postgres"
	}

	slaves := cfg.GetStringSlice("database.slave_dsns")
	log.Debug().Int("slaves", len(slaves)).Int("max_open", opts.MaxOpenConns).Msg("database config built")

	return DBConfig{
		MasterDSN:          master,
		SlaveDSNs:          slaves,
		Options:            opts,
		MigrationsDir:      migrations,
		RollbackOnShutdown: cfg.GetBool("database.rollback_on_shutdown"),
	}, nil
}

func BuildRabbitConfig(cfg *config.Config, log *zerolog.Logger) (RabbitConfig, error) {
	rc := RabbitConfig{
		Enabled:  cfg.GetBool("rabbitmq.enabled"),
		Url:      cfg.GetString("rabbitmq.url"),
		Exchange: cfg.GetString("rabbitmq.exchange"),
		Queue:    cfg.GetString("rabbitmq.queue"),
	}
	if !rc.Enabled {
		log.Info().Msg("rabbitmq disabled, background tasks run inline")
		return rc, nil
	}
	if rc.Url == "" {
		return rc, errors.New("rabbitmq.url is required when rabbitmq is enabled")
	}
	if rc.Exchange == "" {
		rc.Exchange = "regportal.tasks"
	}
	if rc.Queue == "" {
		rc.Queue = "regportal.tasks"
	}
	return rc, nil
}

// BuildStorageConfig prefers the service-role key and falls back to the anon key.
func BuildStorageConfig(cfg *config.Config, log *zerolog.Logger) StorageConfig {
	key := cfg.GetString("supabase.service_key")
	if key == "" {
		key = cfg.GetString("supabase.anon_key")
		if key != "" {
			log.Warn().Msg("supabase.service_key is not set, using anon key for storage")
		}
	}

	sc := StorageConfig{
		URL:          strings.TrimRight(cfg.GetString("supabase.url"), "/"),
		APIKey:       key,
		ProofBucket:  cfg.GetString("supabase.proof_bucket"),
		QRISBucket:   cfg.GetString("supabase.qris_bucket"),
		CacheControl: cfg.GetString("supabase.cache_control"),
		Timeout:      cfg.GetDuration("supabase.timeout"),
	}
	if sc.ProofBucket == "" {
		sc.ProofBucket = "payment-proofs"
	}
	if sc.QRISBucket == "" {
		sc.QRISBucket = "qris-images"
	}
	return sc
}

func BuildAuthConfig(cfg *config.Config, log *zerolog.Logger) (AuthConfig, error) {
	ac := AuthConfig{
		JWTSecret:         cfg.GetString("auth.jwt_secret"),
		TokenTTL:          cfg.GetDuration("auth.token_ttl"),
		MaxFailedLogins:   cfg.GetInt("auth.max_failed_logins"),
		LockoutWindow:     cfg.GetDuration("auth.lockout_window"),
		BootstrapUsername: cfg.GetString("auth.bootstrap_username"),
		BootstrapPassword: cfg.GetString("auth.bootstrap_password"),
	}
	if ac.JWTSecret == "" {
		return ac, errors.New("auth.jwt_secret is required")
	}
	if len(ac.JWTSecret) < 32 {
		log.Warn().Int("length", len(ac.JWTSecret)).Msg("auth.jwt_secret is shorter than 32 bytes")
	}
	return ac, nil
}

func BuildRegistrationConfig(cfg *config.Config) RegistrationConfig {
	return RegistrationConfig{
		MaxUploadBytes:      int64(cfg.GetInt("upload.max_bytes")),
		EnforceQuota:        cfg.GetBool("registration.enforce_quota"),
		CleanupDelaySeconds: cfg.GetInt("registration.cleanup_delay_seconds"),
	}
}

func BuildSMTPConfig(cfg *config.Config) SMTPConfig {
	return SMTPConfig{
		Host:     cfg.GetString("smtp.host"),
		Port:     cfg.GetInt("smtp.port"),
		Username: cfg.GetString("smtp.username"),
		Password: cfg.GetString("smtp.password"),
		From:     cfg.GetString("smtp.from"),
		AdminTo:  cfg.GetStringSlice("smtp.admin_to"),
	}
}

func (s SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
