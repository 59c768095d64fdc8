package container

import (
	"fmt"
	"strings"
	"time"

	"github.com/serroba/associates-api/internal/associates"
	"github.com/serroba/associates-api/internal/ratelimit"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Options is the service configuration. Every option can also be set with a
// SERVICE_ prefixed environment variable, e.g. SERVICE_BACKEND=redis.
type Options struct {
	Port        int    `default:"8888"           help:"Port to listen on"                                 short:"p"`
	Backend     string `default:"memory"         help:"Document store: memory, redis, postgres or sqlite" short:"b"`
	RedisAddr   string `default:"localhost:6379" help:"Redis server address"                              short:"r"`
	DatabaseURL string `default:""               help:"PostgreSQL connection URL"                         short:"d"`
	SQLitePath  string `default:"associates.db"  help:"SQLite database file"`
	CacheTTL    string `default:"0s"             help:"Redis snapshot cache TTL, 0 disables the cache"`
	Collection  string `default:"people"         help:"Collection of the associates document"`
	DocumentID  string `default:"associates"     help:"ID of the associates document"`

	RateLimitStore string `default:"memory" help:"Rate limit counters: memory or redis"`
	GlobalMax      int    `default:"100"    help:"Requests per client per global window"`
	GlobalWindow   string `default:"15m"    help:"Global rate limit window"`
	StrictMax      int    `default:"10"     help:"Adds and deletes per client per strict window"`
	StrictWindow   string `default:"5m"     help:"Strict rate limit window"`
	LikeMax        int    `default:"30"     help:"Updates per client per like window"`
	LikeWindow     string `default:"1m"     help:"Like rate limit window"`
	TrustProxy     bool   `default:"false"  help:"Use X-Forwarded-For / X-Real-IP as client address"`

	AllowedOrigins string `default:"http://localhost:3000,https://reinisvaravs.com" help:"Comma separated CORS origins"`
	StaticDir      string `default:""                                              help:"Directory of the web front end served at /"`
	Events         bool   `default:"true"                                          help:"Publish change events to Redis streams"`
	LogFormat      string `default:"console"                                       help:"Log format: console or json"                short:"l"`
}

// DocumentKey returns the key of the associates document.
func (o *Options) DocumentKey() associates.DocumentKey {
	return associates.DocumentKey{Collection: o.Collection, ID: o.DocumentID}
}

// Origins returns the CORS allow-list.
func (o *Options) Origins() []string {
	var origins []string

	for _, origin := range strings.Split(o.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}

	return origins
}

// CacheDuration parses CacheTTL.
func (o *Options) CacheDuration() (time.Duration, error) {
	return parseDuration("cache-ttl", o.CacheTTL)
}

// PolicyConfig builds the rate limit configuration.
func (o *Options) PolicyConfig() (ratelimit.PolicyConfig, error) {
	cfg := ratelimit.PolicyConfig{
		GlobalMax: int64(o.GlobalMax),
		StrictMax: int64(o.StrictMax),
		LikeMax:   int64(o.LikeMax),
	}

	var err error

	if cfg.GlobalWindow, err = parseDuration("global-window", o.GlobalWindow); err != nil {
		return cfg, err
	}

	if cfg.StrictWindow, err = parseDuration("strict-window", o.StrictWindow); err != nil {
		return cfg, err
	}

	if cfg.LikeWindow, err = parseDuration("like-window", o.LikeWindow); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func parseDuration(name, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}

	return d, nil
}
