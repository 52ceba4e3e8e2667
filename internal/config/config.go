package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 3000
	defaultEnv        = "development"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0

	defaultIdentityCookie = "privy-id-token"
	defaultIdentityIssuer = "privy.io"
	defaultChainType      = "solana"

	defaultLedgerURL       = "https://mainnet.helius-rpc.com/"
	defaultLedgerTimeout   = 10 * time.Second
	defaultLedgerPageLimit = 1000
	defaultLedgerMaxPages  = 5

	defaultGateThreshold = "1"
	defaultSignedURLTTL  = 10 * time.Minute

	defaultRateLimitMax    = 50
	defaultRateLimitWindow = time.Second
	defaultReconcileEvery  = time.Hour
	defaultLogLevel        = "info"
)

// AppConfig holds runtime startup configuration loaded from YAML and the environment.
type AppConfig struct {
	Port           int                `yaml:"port"`
	Env            string             `yaml:"env"`
	RedisURL       string             `yaml:"redis_url"`
	Redis          RedisRuntimeConfig `yaml:"redis"`
	AllowedOrigins []string           `yaml:"allowed_origins"`
	Timezone       string             `yaml:"timezone"`
	Log            LogConfig          `yaml:"log"`
	Sentry         SentryConfig       `yaml:"sentry"`
	Identity       IdentityConfig     `yaml:"identity"`
	Ledger         LedgerConfig       `yaml:"ledger"`
	TokenGate      TokenGateConfig    `yaml:"token_gate"`
	Blob           BlobConfig         `yaml:"blob"`
	RateLimit      RateLimitConfig    `yaml:"rate_limit"`
	Reconcile      ReconcileConfig    `yaml:"reconcile"`
}

type RedisRuntimeConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       int               `yaml:"db"`
	TLS      bool              `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

type LogConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"`
}

type SentryConfig struct {
	DSN     string `yaml:"dsn"`
	Release string `yaml:"release"`
}

// IdentityConfig describes how identity tokens are verified.
type IdentityConfig struct {
	CookieName          string `yaml:"cookie_name"`
	AppID               string `yaml:"app_id"`
	VerificationKey     string `yaml:"verification_key"`
	VerificationKeyFile string `yaml:"verification_key_file"`
	Issuer              string `yaml:"issuer"`
	ChainType           string `yaml:"chain_type"`
}

// LedgerConfig points at the asset ledger RPC.
type LedgerConfig struct {
	RPCURL    string        `yaml:"rpc_url"`
	APIKey    string        `yaml:"api_key"`
	Timeout   time.Duration `yaml:"timeout"`
	PageLimit int           `yaml:"page_limit"`
	MaxPages  int           `yaml:"max_pages"`
}

type TokenGateConfig struct {
	DefaultThreshold string        `yaml:"default_threshold"`
	SignedURLTTL     time.Duration `yaml:"signed_url_ttl"`
}

// BlobConfig is the S3-compatible bucket holding private content.
type BlobConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyleAccess bool   `yaml:"path_style_access"`
	CustomDomain    string `yaml:"custom_domain"`
}

type RateLimitConfig struct {
	Max    int           `yaml:"max"`
	Window time.Duration `yaml:"window"`
}

type ReconcileConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type rawAppConfig struct {
	Port               int                `yaml:"port"`
	Env                string             `yaml:"env"`
	NodeEnv            string             `yaml:"node_env"`
	RedisURL           string             `yaml:"redis_url"`
	KVURL              string             `yaml:"kv_url"`
	Redis              rawRedisConfig     `yaml:"redis"`
	RedisHost          string             `yaml:"redis_host"`
	RedisPort          int                `yaml:"redis_port"`
	RedisPassword      string             `yaml:"redis_password"`
	RedisDB            *int               `yaml:"redis_db"`
	AllowedOrigins     []string           `yaml:"allowed_origins"`
	CORSAllowedOrigins []string           `yaml:"cors_allowed_origins"`
	Timezone           string             `yaml:"timezone"`
	TZ                 string             `yaml:"tz"`
	Log                LogConfig          `yaml:"log"`
	LogDir             string             `yaml:"log_dir"`
	LogLevel           string             `yaml:"log_level"`
	Sentry             SentryConfig       `yaml:"sentry"`
	SentryDSN          string             `yaml:"sentry_dsn"`
	Identity           IdentityConfig     `yaml:"identity"`
	PrivyAppID         string             `yaml:"privy_app_id"`
	Ledger             rawLedgerConfig    `yaml:"ledger"`
	HeliusAPIKey       string             `yaml:"helius_api_key"`
	TokenGate          rawTokenGateConfig `yaml:"token_gate"`
	Blob               rawBlobConfig      `yaml:"blob"`
	S3                 rawBlobConfig      `yaml:"s3"`
	RateLimit          rawRateLimitConfig `yaml:"rate_limit"`
	Reconcile          rawReconcileConfig `yaml:"reconcile"`
}

type rawRedisConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       *int              `yaml:"db"`
	TLS      *bool             `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

type rawLedgerConfig struct {
	RPCURL    string         `yaml:"rpc_url"`
	APIKey    string         `yaml:"api_key"`
	Timeout   *time.Duration `yaml:"timeout"`
	PageLimit int            `yaml:"page_limit"`
	MaxPages  int            `yaml:"max_pages"`
}

type rawTokenGateConfig struct {
	DefaultThreshold string         `yaml:"default_threshold"`
	SignedURLTTL     *time.Duration `yaml:"signed_url_ttl"`
}

type rawBlobConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	PathStyleAccess *bool  `yaml:"path_style_access"`
	CustomDomain    string `yaml:"custom_domain"`
}

type rawRateLimitConfig struct {
	Max    *int           `yaml:"max"`
	Window *time.Duration `yaml:"window"`
}

type rawReconcileConfig struct {
	Interval *time.Duration `yaml:"interval"`
}

// Load reads the YAML file at configPath, then applies environment overrides.
// A missing file at the default path is not an error.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	cfg := defaultAppConfig()
	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		decoder := yaml.NewDecoder(bytes.NewReader(content))
		decoder.KnownFields(true)
		raw := rawAppConfig{}
		if err := decoder.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
		applyRawAppConfig(&cfg, raw)
	case errors.Is(err, fs.ErrNotExist) && path == DefaultConfigPath:
	default:
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	applyEnv(&cfg, os.Getenv)
	if err := finalize(&cfg); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	cfg := AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Redis: RedisRuntimeConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Log: LogConfig{Level: defaultLogLevel},
		Identity: IdentityConfig{
			CookieName: defaultIdentityCookie,
			Issuer:     defaultIdentityIssuer,
			ChainType:  defaultChainType,
		},
		Ledger: LedgerConfig{
			RPCURL:    defaultLedgerURL,
			Timeout:   defaultLedgerTimeout,
			PageLimit: defaultLedgerPageLimit,
			MaxPages:  defaultLedgerMaxPages,
		},
		TokenGate: TokenGateConfig{
			DefaultThreshold: defaultGateThreshold,
			SignedURLTTL:     defaultSignedURLTTL,
		},
		RateLimit: RateLimitConfig{Max: defaultRateLimitMax, Window: defaultRateLimitWindow},
		Reconcile: ReconcileConfig{Interval: defaultReconcileEvery},
	}
	cfg.RedisURL = cfg.Redis.URLValue()
	return cfg
}

func applyRawAppConfig(cfg *AppConfig, raw rawAppConfig) {
	if raw.Port != 0 {
		cfg.Port = raw.Port
	}
	if v := strings.TrimSpace(raw.Env); v != "" {
		cfg.Env = v
	}
	if v := strings.TrimSpace(raw.NodeEnv); v != "" {
		cfg.Env = v
	}
	cfg.Redis = applyRawRedisConfig(cfg.Redis, raw)

	switch {
	case raw.AllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.AllowedOrigins)
	case raw.CORSAllowedOrigins != nil:
		cfg.AllowedOrigins = normalizeOrigins(raw.CORSAllowedOrigins)
	}
	if v := strings.TrimSpace(raw.Timezone); v != "" {
		cfg.Timezone = v
	}
	if v := strings.TrimSpace(raw.TZ); v != "" {
		cfg.Timezone = v
	}

	setString(&cfg.Log.Dir, raw.Log.Dir, raw.LogDir)
	setString(&cfg.Log.Level, raw.Log.Level, raw.LogLevel)
	setString(&cfg.Sentry.DSN, raw.Sentry.DSN, raw.SentryDSN)
	setString(&cfg.Sentry.Release, raw.Sentry.Release)

	id := &cfg.Identity
	setString(&id.CookieName, raw.Identity.CookieName)
	setString(&id.AppID, raw.Identity.AppID, raw.PrivyAppID)
	setString(&id.VerificationKey, raw.Identity.VerificationKey)
	setString(&id.VerificationKeyFile, raw.Identity.VerificationKeyFile)
	setString(&id.Issuer, raw.Identity.Issuer)
	setString(&id.ChainType, raw.Identity.ChainType)

	setString(&cfg.Ledger.RPCURL, raw.Ledger.RPCURL)
	setString(&cfg.Ledger.APIKey, raw.Ledger.APIKey, raw.HeliusAPIKey)
	if raw.Ledger.Timeout != nil {
		cfg.Ledger.Timeout = *raw.Ledger.Timeout
	}
	if raw.Ledger.PageLimit != 0 {
		cfg.Ledger.PageLimit = raw.Ledger.PageLimit
	}
	if raw.Ledger.MaxPages != 0 {
		cfg.Ledger.MaxPages = raw.Ledger.MaxPages
	}

	setString(&cfg.TokenGate.DefaultThreshold, raw.TokenGate.DefaultThreshold)
	if raw.TokenGate.SignedURLTTL != nil {
		cfg.TokenGate.SignedURLTTL = *raw.TokenGate.SignedURLTTL
	}

	cfg.Blob = applyRawBlobConfig(cfg.Blob, raw.S3)
	cfg.Blob = applyRawBlobConfig(cfg.Blob, raw.Blob)

	if raw.RateLimit.Max != nil {
		cfg.RateLimit.Max = *raw.RateLimit.Max
	}
	if raw.RateLimit.Window != nil {
		cfg.RateLimit.Window = *raw.RateLimit.Window
	}
	if raw.Reconcile.Interval != nil {
		cfg.Reconcile.Interval = *raw.Reconcile.Interval
	}
}

func applyRawRedisConfig(current RedisRuntimeConfig, raw rawAppConfig) RedisRuntimeConfig {
	cfg := current
	setString(&cfg.URL, raw.Redis.URL, raw.RedisURL, raw.KVURL)
	setString(&cfg.Host, raw.Redis.Host, raw.RedisHost)
	setString(&cfg.Username, raw.Redis.Username)
	setString(&cfg.Password, raw.Redis.Password, raw.RedisPassword)
	setString(&cfg.Scheme, raw.Redis.Scheme)
	if raw.Redis.Port != 0 {
		cfg.Port = raw.Redis.Port
	}
	if raw.RedisPort != 0 {
		cfg.Port = raw.RedisPort
	}
	if raw.Redis.DB != nil {
		cfg.DB = *raw.Redis.DB
	}
	if raw.RedisDB != nil {
		cfg.DB = *raw.RedisDB
	}
	if raw.Redis.TLS != nil {
		cfg.TLS = *raw.Redis.TLS
	}
	if raw.Redis.Params != nil {
		cfg.Params = raw.Redis.Params
	}
	return cfg
}

func applyRawBlobConfig(cfg BlobConfig, raw rawBlobConfig) BlobConfig {
	setString(&cfg.Endpoint, raw.Endpoint)
	setString(&cfg.Bucket, raw.Bucket)
	setString(&cfg.Region, raw.Region)
	setString(&cfg.AccessKeyID, raw.AccessKeyID)
	setString(&cfg.SecretAccessKey, raw.SecretAccessKey)
	setString(&cfg.CustomDomain, raw.CustomDomain)
	if raw.PathStyleAccess != nil {
		cfg.PathStyleAccess = *raw.PathStyleAccess
	}
	return cfg
}

// applyEnv overlays secrets and deployment settings from the environment.
func applyEnv(cfg *AppConfig, getenv func(string) string) {
	env := func(keys ...string) string {
		for _, k := range keys {
			if v := strings.TrimSpace(getenv(k)); v != "" {
				return v
			}
		}
		return ""
	}

	if v := env("PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Port = port
		}
	}
	setString(&cfg.Env, env("APP_ENV", "NODE_ENV"))
	setString(&cfg.Redis.URL, env("REDIS_URL", "KV_URL"))
	setString(&cfg.Log.Dir, env("LOG_DIR"))
	setString(&cfg.Log.Level, env("LOG_LEVEL"))
	setString(&cfg.Sentry.DSN, env("SENTRY_DSN"))
	setString(&cfg.Identity.AppID, env("PRIVY_APP_ID", "NEXT_PUBLIC_PRIVY_APP_ID"))
	setString(&cfg.Identity.VerificationKey, env("PRIVY_VERIFICATION_KEY"))
	setString(&cfg.Ledger.RPCURL, env("LEDGER_RPC_URL"))
	setString(&cfg.Ledger.APIKey, env("HELIUS_API_KEY", "NEXT_PUBLIC_HELIUS_API_KEY"))
	setString(&cfg.Blob.Endpoint, env("S3_ENDPOINT"))
	setString(&cfg.Blob.Bucket, env("S3_BUCKET"))
	setString(&cfg.Blob.Region, env("S3_REGION", "AWS_REGION"))
	setString(&cfg.Blob.AccessKeyID, env("S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"))
	setString(&cfg.Blob.SecretAccessKey, env("S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"))
}

func finalize(cfg *AppConfig) error {
	cfg.Env = normalizeEnv(cfg.Env)
	cfg.Redis = normalizeRedisConfig(cfg.Redis)
	cfg.RedisURL = cfg.Redis.URLValue()
	cfg.Identity = normalizeIdentityConfig(cfg.Identity)
	cfg.Ledger = normalizeLedgerConfig(cfg.Ledger)
	cfg.Blob = normalizeBlobConfig(cfg.Blob)
	cfg.Log.Dir = strings.TrimSpace(cfg.Log.Dir)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = defaultLogLevel
	}
	if strings.TrimSpace(cfg.TokenGate.DefaultThreshold) == "" {
		cfg.TokenGate.DefaultThreshold = defaultGateThreshold
	}
	if cfg.TokenGate.SignedURLTTL <= 0 {
		cfg.TokenGate.SignedURLTTL = defaultSignedURLTTL
	}
	if cfg.RateLimit.Window <= 0 {
		cfg.RateLimit.Window = defaultRateLimitWindow
	}

	if cfg.Identity.VerificationKey == "" && cfg.Identity.VerificationKeyFile != "" {
		key, err := os.ReadFile(cfg.Identity.VerificationKeyFile)
		if err != nil {
			return fmt.Errorf("read identity.verification_key_file: %w", err)
		}
		cfg.Identity.VerificationKey = strings.TrimSpace(string(key))
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", cfg.Port)
	}
	if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", cfg.Redis.Port)
	}
	if cfg.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", cfg.Redis.DB)
	}
	if cfg.RateLimit.Max < 0 {
		return fmt.Errorf("invalid rate_limit.max %d, expected >= 0", cfg.RateLimit.Max)
	}
	if cfg.Reconcile.Interval < 0 {
		return fmt.Errorf("invalid reconcile.interval %s", cfg.Reconcile.Interval)
	}
	return nil
}

// setString assigns the last non-blank candidate to dst.
func setString(dst *string, candidates ...string) {
	for _, c := range candidates {
		if v := strings.TrimSpace(c); v != "" {
			*dst = v
		}
	}
}

func (c *AppConfig) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// LogDir returns the resolved log directory, or "" when file logging is off.
func (c *AppConfig) LogDir() string {
	if c.Log.Dir == "" {
		return ""
	}
	return ResolveRuntimePath(c.Log.Dir, "logs")
}
