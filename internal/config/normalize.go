package config

import (
	"net"
	neturl "net/url"
	"sort"
	"strconv"
	"strings"
)

func normalizeRedisConfig(cfg RedisRuntimeConfig) RedisRuntimeConfig {
	cfg.URL = normalizeRedisRawURL(cfg.URL)
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.Password = strings.TrimSpace(cfg.Password)
	cfg.Scheme = strings.ToLower(strings.TrimSpace(cfg.Scheme))

	if cfg.Host == "" && cfg.URL == "" {
		cfg.Host = defaultRedisHost
	}
	if cfg.Port == 0 {
		cfg.Port = defaultRedisPort
	}
	if cfg.Scheme == "" {
		if cfg.TLS {
			cfg.Scheme = "rediss"
		} else {
			cfg.Scheme = "redis"
		}
	}
	if cfg.Params != nil {
		cfg.Params = copyStringMap(cfg.Params)
	}
	return cfg
}

func normalizeRedisRawURL(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "redis://") || strings.HasPrefix(trimmed, "rediss://") {
		return trimmed
	}
	return "redis://" + trimmed
}

// URLValue returns the connection URL, building one from the discrete fields
// when no explicit url is configured.
func (c RedisRuntimeConfig) URLValue() string {
	if u := normalizeRedisRawURL(c.URL); u != "" {
		return u
	}

	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = defaultRedisHost
	}
	port := c.Port
	if port == 0 {
		port = defaultRedisPort
	}
	db := c.DB
	if db < 0 {
		db = defaultRedisDB
	}
	scheme := c.Scheme
	if scheme != "redis" && scheme != "rediss" {
		scheme = "redis"
		if c.TLS {
			scheme = "rediss"
		}
	}

	u := &neturl.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + strconv.Itoa(db),
	}
	switch {
	case c.Username != "" && c.Password != "":
		u.User = neturl.UserPassword(c.Username, c.Password)
	case c.Username != "":
		u.User = neturl.User(c.Username)
	case c.Password != "":
		u.User = neturl.UserPassword("", c.Password)
	}

	if len(c.Params) > 0 {
		keys := make([]string, 0, len(c.Params))
		for k := range c.Params {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		query := neturl.Values{}
		for _, k := range keys {
			query.Set(k, c.Params[k])
		}
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func normalizeIdentityConfig(cfg IdentityConfig) IdentityConfig {
	cfg.CookieName = strings.TrimSpace(cfg.CookieName)
	cfg.AppID = strings.TrimSpace(cfg.AppID)
	cfg.VerificationKey = strings.TrimSpace(cfg.VerificationKey)
	cfg.VerificationKeyFile = strings.TrimSpace(cfg.VerificationKeyFile)
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)
	cfg.ChainType = strings.ToLower(strings.TrimSpace(cfg.ChainType))
	if cfg.CookieName == "" {
		cfg.CookieName = defaultIdentityCookie
	}
	if cfg.Issuer == "" {
		cfg.Issuer = defaultIdentityIssuer
	}
	if cfg.VerificationKeyFile != "" {
		cfg.VerificationKeyFile = ResolveRuntimePath(cfg.VerificationKeyFile, "")
	}
	return cfg
}

func normalizeLedgerConfig(cfg LedgerConfig) LedgerConfig {
	cfg.RPCURL = strings.TrimSpace(cfg.RPCURL)
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.RPCURL == "" {
		cfg.RPCURL = defaultLedgerURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultLedgerTimeout
	}
	if cfg.PageLimit <= 0 || cfg.PageLimit > defaultLedgerPageLimit {
		cfg.PageLimit = defaultLedgerPageLimit
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultLedgerMaxPages
	}
	return cfg
}

// Endpoint returns the RPC URL with the api-key query parameter applied.
func (c LedgerConfig) Endpoint() string {
	if c.APIKey == "" {
		return c.RPCURL
	}
	u, err := neturl.Parse(c.RPCURL)
	if err != nil {
		return c.RPCURL
	}
	q := u.Query()
	q.Set("api-key", c.APIKey)
	u.RawQuery = q.Encode()
	return u.String()
}

func normalizeBlobConfig(cfg BlobConfig) BlobConfig {
	cfg.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	cfg.Bucket = strings.TrimSpace(cfg.Bucket)
	cfg.Region = strings.TrimSpace(cfg.Region)
	cfg.AccessKeyID = strings.TrimSpace(cfg.AccessKeyID)
	cfg.SecretAccessKey = strings.TrimSpace(cfg.SecretAccessKey)
	cfg.CustomDomain = strings.TrimRight(strings.TrimSpace(cfg.CustomDomain), "/")
	if cfg.Region == "" {
		cfg.Region = "auto"
	}
	return cfg
}

// Enabled reports whether enough is configured to sign blob URLs.
func (c BlobConfig) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != "" && c.SecretAccessKey != ""
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(env string) string {
	trimmed := strings.ToLower(strings.TrimSpace(env))
	if trimmed == "" {
		return defaultEnv
	}
	return trimmed
}

func copyStringMap(input map[string]string) map[string]string {
	if input == nil {
		return nil
	}
	out := make(map[string]string, len(input))
	for key, value := range input {
		k := strings.TrimSpace(key)
		v := strings.TrimSpace(value)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}
