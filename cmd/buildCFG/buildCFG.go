package buildCFG

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
)

type ServerConfig struct {
	Port      string
	RateLimit int
	RateBurst int
}

type RabbitConfig struct {
	Url      string
	Exchange string
	Queue    string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	Password string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type PaymentsConfig struct {
	// ChangeWindow is how long a payment stays deletable without an
	// admin override.
	ChangeWindow time.Duration
}

func duration(cfg *config.Config, key string, fallback time.Duration) time.Duration {
	raw := cfg.GetString(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func BuildServerConfig(cfg *config.Config, log *zerolog.Logger) *ServerConfig {
	port := cfg.GetString("server.port")
	if port == "" {
		port = "8080"
		log.Warn().Msg("server.port not set, defaulting to 8080")
	}
	return &ServerConfig{
		Port:      port,
		RateLimit: cfg.GetInt("server.rate_limit"),
		RateBurst: cfg.GetInt("server.rate_burst"),
	}
}

func BuildDBConfig(cfg *config.Config, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	host := cfg.GetString("database.host")
	port := cfg.GetString("database.port")
	user := cfg.GetString("database.user")
	password := cfg.GetString("database.password")
	name := cfg.GetString("database.name")
	if host == "" || name == "" {
		return "", nil, nil, fmt.Errorf("database host and name must be configured")
	}

	masterDSN := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, password, host, port, name)

	// comma-separated host:port pairs
	var slaveDSNs []string
	for _, slave := range strings.Split(cfg.GetString("database.slaves"), ",") {
		slave = strings.TrimSpace(slave)
		if slave == "" {
			continue
		}
		slaveDSNs = append(slaveDSNs, fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
			user, password, slave, name))
	}

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.GetInt("database.max_open_conns"),
		MaxIdleConns:    cfg.GetInt("database.max_idle_conns"),
		ConnMaxLifetime: duration(cfg, "database.conn_max_lifetime", 5*time.Minute),
	}

	log.Info().Msgf("DB config built for %s:%s/%s (%d slaves)", host, port, name, len(slaveDSNs))
	return masterDSN, slaveDSNs, opts, nil
}

func BuildRabbitConfig(cfg *config.Config, log *zerolog.Logger) (*RabbitConfig, error) {
	url := cfg.GetString("rabbit.url")
	if url == "" {
		return nil, fmt.Errorf("rabbit.url must be configured")
	}
	rc := &RabbitConfig{
		Url:      url,
		Exchange: cfg.GetString("rabbit.exchange"),
		Queue:    cfg.GetString("rabbit.queue"),
	}
	if rc.Exchange == "" {
		rc.Exchange = "notifications.delayed"
	}
	if rc.Queue == "" {
		rc.Queue = "notifications"
	}
	log.Info().Msgf("Rabbit config built (exchange=%s, queue=%s)", rc.Exchange, rc.Queue)
	return rc, nil
}

func BuildRedisConfig(cfg *config.Config, log *zerolog.Logger) *RedisConfig {
	rc := &RedisConfig{
		Addr:     cfg.GetString("redis.addr"),
		Password: cfg.GetString("redis.password"),
		DB:       cfg.GetInt("redis.db"),
		TTL:      duration(cfg, "redis.ttl", 30*time.Second),
	}
	if rc.Addr == "" {
		log.Warn().Msg("redis.addr not set, event listing cache disabled")
	}
	return rc
}

func BuildSMTPConfig(cfg *config.Config, log *zerolog.Logger) (*SMTPConfig, error) {
	sc := &SMTPConfig{
		Host:     cfg.GetString("smtp.host"),
		Port:     cfg.GetString("smtp.port"),
		From:     cfg.GetString("smtp.from"),
		Password: cfg.GetString("smtp.password"),
	}
	if sc.Host == "" || sc.From == "" {
		return nil, fmt.Errorf("smtp.host and smtp.from must be configured")
	}
	if sc.Port == "" {
		sc.Port = "587"
	}
	log.Info().Msgf("SMTP config built for %s:%s", sc.Host, sc.Port)
	return sc, nil
}

func BuildAuthConfig(cfg *config.Config, log *zerolog.Logger) (*AuthConfig, error) {
	secret := cfg.GetString("auth.jwt_secret")
	if secret == "" {
		return nil, fmt.Errorf("auth.jwt_secret must be configured")
	}
	ttl := duration(cfg, "auth.token_ttl", 24*time.Hour)
	log.Info().Msgf("Auth config built (token ttl %s)", ttl)
	return &AuthConfig{JWTSecret: secret, TokenTTL: ttl}, nil
}

func BuildPaymentsConfig(cfg *config.Config) *PaymentsConfig {
	return &PaymentsConfig{ChangeWindow: duration(cfg, "payments.change_window", 24*time.Hour)}
}
