package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/newsherald.db" description:"Path to the SQLite database file"`

	// Application configuration
	ConfigDir    string `long:"config-dir" env:"CONFIG_DIR" default:"./categories" description:"Directory containing category definition files"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	DiscordToken string `long:"discord-token" env:"DISCORD_TOKEN" description:"Discord bot token (required)" required:"true"`

	// Poller configuration
	FloodCeiling int `long:"flood-ceiling" env:"FLOOD_CEILING" default:"10" description:"Max new items per poll cycle before sends are suppressed"`

	// Dispatcher configuration
	Concurrency       int `long:"concurrency" env:"CONCURRENCY" default:"8" description:"Max concurrent job executions"`
	MaxAttempts       int `long:"max-attempts" env:"MAX_ATTEMPTS" default:"3" description:"Delivery attempts per job before it is failed"`
	RatePerWindow     int `long:"rate-per-window" env:"RATE_PER_WINDOW" default:"5" description:"Max sends per destination per rate window"`
	RateWindowSeconds int `long:"rate-window" env:"RATE_WINDOW_SECONDS" default:"60" description:"Per-destination rate window in seconds"`
	GlobalRatePerSec  int `long:"global-rate" env:"GLOBAL_RATE_PER_SEC" default:"25" description:"Global send smoothing rate per second"`
	FastTickMS        int `long:"fast-tick" env:"FAST_TICK_MS" default:"500" description:"Dispatcher tick in milliseconds while work is pending"`
	SlowTickSeconds   int `long:"slow-tick" env:"SLOW_TICK_SECONDS" default:"5" description:"Dispatcher tick in seconds while idle"`
	StaleAfterMinutes int `long:"stale-after" env:"STALE_AFTER_MINUTES" default:"10" description:"Minutes before a claimed job is considered abandoned"`
	RetentionHours    int `long:"retention" env:"RETENTION_HOURS" default:"72" description:"Hours to keep terminal jobs before purging"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"NewsHerald/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"Asia/Tokyo" description:"Timezone the source publishes dates in"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		ConfigDir:         raw.ConfigDir,
		Port:              raw.Port,
		APIAccessKey:      raw.APIAccessKey,
		DiscordToken:      raw.DiscordToken,
		FloodCeiling:      raw.FloodCeiling,
		Concurrency:       raw.Concurrency,
		MaxAttempts:       raw.MaxAttempts,
		RatePerWindow:     raw.RatePerWindow,
		RateWindowSeconds: raw.RateWindowSeconds,
		GlobalRatePerSec:  raw.GlobalRatePerSec,
		FastTickMS:        raw.FastTickMS,
		SlowTickSeconds:   raw.SlowTickSeconds,
		StaleAfterMinutes: raw.StaleAfterMinutes,
		RetentionHours:    raw.RetentionHours,
		UserAgent:         raw.UserAgent,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Location resolves the configured source timezone, falling back to UTC on an
// unknown name.
func (c *Cfg) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using UTC: %v\n", c.Timezone, err)
		return time.UTC
	}
	return loc
}
