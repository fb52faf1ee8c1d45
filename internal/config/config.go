// Package config handles application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"offerwatch/internal/fetcher"
)

// Delivery channels.
const (
	ChannelLog      = "log"
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
	ChannelQueue    = "queue"
)

// Config holds the application configuration.
type Config struct {
	DatabasePath string
	LogLevel     string
	LogFormat    string

	SourceBaseURL    string
	UserAgent        string
	Categories       []string
	ListingTypes     []string
	FetchRetries     uint64
	FetchBackoff     time.Duration
	FetchRate        float64
	FetchTimeout     time.Duration
	IngestParallel   int
	MaxPages         int
	IngestInterval   time.Duration
	MatchInterval    time.Duration
	MatchPageSize    int
	MatchRefine      bool
	MatchParallel    int
	NotifyEmpty      bool
	Channel          string
	DispatchRetries  uint64
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	SMTPFrom         string
	TelegramBotToken string
	AMQPURL          string
	AMQPExchange     string
	AMQPRoutingKey   string
}

var (
	defaultCategories = []string{
		"mieszkanie", "kawalerka", "dom", "inwestycja", "pokoj",
		"dzialka", "lokal", "haleimagazyny", "garaz",
	}
	defaultListingTypes = []string{"wynajem", "sprzedaz"}
)

// Load reads configuration from environment variables. Values from the
// given dotenv files (or ./.env when none are given) fill in variables that
// are not already set. A missing dotenv file is not an error.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}

	r := reader{}
	cfg := &Config{
		DatabasePath:     r.str("DATABASE_PATH", "./data/offers.db"),
		LogLevel:         r.str("LOG_LEVEL", "info"),
		LogFormat:        r.str("LOG_FORMAT", "text"),
		SourceBaseURL:    r.str("SOURCE_BASE_URL", "https://www.otodom.pl"),
		UserAgent:        r.str("USER_AGENT", fetcher.DefaultUserAgent),
		Categories:       r.list("CATEGORIES", defaultCategories),
		ListingTypes:     r.list("LISTING_TYPES", defaultListingTypes),
		FetchRetries:     r.unsigned("FETCH_RETRIES", 3),
		FetchBackoff:     r.duration("FETCH_BACKOFF", time.Second),
		FetchRate:        r.number("FETCH_RATE", 1),
		FetchTimeout:     r.duration("FETCH_TIMEOUT", 30*time.Second),
		IngestParallel:   r.integer("INGEST_PARALLELISM", 4),
		MaxPages:         r.integer("MAX_PAGES", 0),
		IngestInterval:   r.duration("INGEST_INTERVAL", 6*time.Hour),
		MatchInterval:    r.duration("MATCH_INTERVAL", time.Hour),
		MatchPageSize:    r.integer("MATCH_PAGE_SIZE", 100),
		MatchRefine:      r.flag("MATCH_REFINE", true),
		MatchParallel:    r.integer("MATCH_PARALLELISM", 4),
		NotifyEmpty:      r.flag("NOTIFY_EMPTY", false),
		Channel:          strings.ToLower(r.str("CHANNEL", ChannelLog)),
		DispatchRetries:  r.unsigned("DISPATCH_RETRIES", 2),
		SMTPHost:         r.str("SMTP_HOST", ""),
		SMTPPort:         r.integer("SMTP_PORT", 587),
		SMTPUsername:     r.str("SMTP_USERNAME", ""),
		SMTPPassword:     r.str("SMTP_PASSWORD", ""),
		SMTPFrom:         r.str("SMTP_FROM", ""),
		TelegramBotToken: r.str("TELEGRAM_BOT_TOKEN", ""),
		AMQPURL:          r.str("AMQP_URL", ""),
		AMQPExchange:     r.str("AMQP_EXCHANGE", ""),
		AMQPRoutingKey:   r.str("AMQP_ROUTING_KEY", "notifications"),
	}
	if r.err != nil {
		return nil, r.err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Categories) == 0 {
		return fmt.Errorf("CATEGORIES must not be empty")
	}
	if len(c.ListingTypes) == 0 {
		return fmt.Errorf("LISTING_TYPES must not be empty")
	}
	if c.FetchRate < 0 {
		return fmt.Errorf("FETCH_RATE must not be negative")
	}

	switch c.Channel {
	case ChannelLog:
	case ChannelEmail:
		if c.SMTPHost == "" || c.SMTPFrom == "" {
			return fmt.Errorf("SMTP_HOST and SMTP_FROM are required for channel %q", c.Channel)
		}
	case ChannelTelegram:
		if c.TelegramBotToken == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN is required for channel %q", c.Channel)
		}
	case ChannelQueue:
		if c.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL is required for channel %q", c.Channel)
		}
	default:
		return fmt.Errorf("unknown CHANNEL %q", c.Channel)
	}
	return nil
}

// reader parses variables and keeps the first error.
type reader struct {
	err error
}

func (r *reader) lookup(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func (r *reader) fail(key, raw string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
}

func (r *reader) str(key, def string) string {
	if v, ok := r.lookup(key); ok {
		return v
	}
	return def
}

func (r *reader) list(key string, def []string) []string {
	raw, ok := r.lookup(key)
	if !ok {
		return append([]string(nil), def...)
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (r *reader) integer(key string, def int) int {
	raw, ok := r.lookup(key)
	if !ok {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		r.fail(key, raw, err)
		return def
	}
	if v < 0 {
		r.fail(key, raw, errors.New("must not be negative"))
		return def
	}
	return v
}

func (r *reader) unsigned(key string, def uint64) uint64 {
	raw, ok := r.lookup(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		r.fail(key, raw, err)
		return def
	}
	return v
}

func (r *reader) number(key string, def float64) float64 {
	raw, ok := r.lookup(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		r.fail(key, raw, err)
		return def
	}
	return v
}

func (r *reader) flag(key string, def bool) bool {
	raw, ok := r.lookup(key)
	if !ok {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		r.fail(key, raw, err)
		return def
	}
	return v
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	raw, ok := r.lookup(key)
	if !ok {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		r.fail(key, raw, err)
		return def
	}
	if v <= 0 {
		r.fail(key, raw, errors.New("must be positive"))
		return def
	}
	return v
}
