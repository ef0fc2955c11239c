package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port     int
	LogLevel string
	Env      string

	// Database
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis config
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// SQS delivery queue, empty means deliveries run in-process
	AWSRegion   string
	SQSQueueURL string

	// Shared secret for the token protected action endpoints
	ActionAPISecret string

	// Web push
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string
	PushMaxAttempts int
	PushLang        string
	PushTextDir     string

	// Platform credentials
	TwitchClientID  string
	DiscordBotToken string
	DiscordGuildID  string
	YouTubeAPIKey   string

	// Site
	SiteTimezone string
	ShortBaseURL string
	BaseURL      string

	// Operator alerts (shoutrrr URL), empty disables alerts
	AlertURL string

	// Cron specs for the background jobs, empty disables a job
	ScheduleGenerate string
	ScheduleTwitch   string
	ScheduleDiscord  string

	WorkerPollInterval time.Duration
	WorkerBatchSize    int
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:     8080,
		LogLevel: "info",
		Env:      "development",

		DBHost:    "localhost",
		DBPort:    5432,
		DBUser:    "sanctuary",
		DBName:    "sanctuary",
		DBSSLMode: "disable",

		RedisHost: "localhost",
		RedisPort: 6379,

		AWSRegion: "us-east-1",

		VAPIDSubject:    "mailto:contact@example.org",
		PushMaxAttempts: 5,
		PushLang:        "en",
		PushTextDir:     "ltr",

		SiteTimezone: "America/Chicago",
		ShortBaseURL: "https://alveus.gg",
		BaseURL:      "https://www.alveussanctuary.org",

		ScheduleGenerate: "0 3 15 * *",
		ScheduleTwitch:   "*/30 * * * *",
		ScheduleDiscord:  "15 */2 * * *",

		WorkerPollInterval: 30 * time.Second,
		WorkerBatchSize:    25,
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT: %w", err)
		}
		cfg.Port = p
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if env := os.Getenv("ENV"); env != "" {
		cfg.Env = env
	}

	// Database config
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.DBHost = host
	}

	if port := os.Getenv("DB_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid DB_PORT: %w", err)
		}
		cfg.DBPort = p
	}

	if user := os.Getenv("DB_USER"); user != "" {
		cfg.DBUser = user
	}

	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.DBPassword = password
	}

	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.DBName = dbname
	}

	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		cfg.DBSSLMode = sslmode
	}

	// Redis config
	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.RedisHost = host
	}

	if port := os.Getenv("REDIS_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
		}
		cfg.RedisPort = p
	}

	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.RedisPassword = password
	}

	if db := os.Getenv("REDIS_DB"); db != "" {
		d, err := strconv.Atoi(db)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		cfg.RedisDB = d
	}

	if region := os.Getenv("AWS_REGION"); region != "" {
		cfg.AWSRegion = region
	}

	if url := os.Getenv("SQS_QUEUE_URL"); url != "" {
		cfg.SQSQueueURL = url
	}

	cfg.ActionAPISecret = os.Getenv("ACTION_API_SECRET")

	// Web push
	cfg.VAPIDPublicKey = os.Getenv("VAPID_PUBLIC_KEY")
	cfg.VAPIDPrivateKey = os.Getenv("VAPID_PRIVATE_KEY")

	if subject := os.Getenv("VAPID_SUBJECT"); subject != "" {
		cfg.VAPIDSubject = subject
	}

	if attempts := os.Getenv("PUSH_MAX_ATTEMPTS"); attempts != "" {
		a, err := strconv.Atoi(attempts)
		if err != nil {
			return nil, fmt.Errorf("invalid PUSH_MAX_ATTEMPTS: %w", err)
		}
		if a < 1 {
			return nil, fmt.Errorf("invalid PUSH_MAX_ATTEMPTS: must be at least 1, got %d", a)
		}
		cfg.PushMaxAttempts = a
	}

	if lang := os.Getenv("PUSH_LANG"); lang != "" {
		cfg.PushLang = lang
	}

	if dir := os.Getenv("PUSH_TEXT_DIR"); dir != "" {
		if dir != "ltr" && dir != "rtl" && dir != "auto" {
			return nil, fmt.Errorf("invalid PUSH_TEXT_DIR: %q", dir)
		}
		cfg.PushTextDir = dir
	}

	// Platforms
	cfg.TwitchClientID = os.Getenv("TWITCH_CLIENT_ID")
	cfg.DiscordBotToken = os.Getenv("DISCORD_BOT_TOKEN")
	cfg.DiscordGuildID = os.Getenv("DISCORD_GUILD_ID")
	cfg.YouTubeAPIKey = os.Getenv("YOUTUBE_API_KEY")

	if tz := os.Getenv("SITE_TIMEZONE"); tz != "" {
		cfg.SiteTimezone = tz
	}
	if _, err := time.LoadLocation(cfg.SiteTimezone); err != nil {
		return nil, fmt.Errorf("invalid SITE_TIMEZONE: %w", err)
	}

	if url := os.Getenv("SHORT_BASE_URL"); url != "" {
		cfg.ShortBaseURL = url
	}

	if url := os.Getenv("BASE_URL"); url != "" {
		cfg.BaseURL = url
	}

	cfg.AlertURL = os.Getenv("ALERT_URL")

	// Jobs: set to "-" to disable
	cfg.ScheduleGenerate = cronSpec("SCHEDULE_GENERATE", cfg.ScheduleGenerate)
	cfg.ScheduleTwitch = cronSpec("SCHEDULE_TWITCH", cfg.ScheduleTwitch)
	cfg.ScheduleDiscord = cronSpec("SCHEDULE_DISCORD", cfg.ScheduleDiscord)

	if interval := os.Getenv("WORKER_POLL_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err != nil {
			return nil, fmt.Errorf("invalid WORKER_POLL_INTERVAL: %w", err)
		}
		cfg.WorkerPollInterval = d
	}

	if size := os.Getenv("WORKER_BATCH_SIZE"); size != "" {
		s, err := strconv.Atoi(size)
		if err != nil {
			return nil, fmt.Errorf("invalid WORKER_BATCH_SIZE: %w", err)
		}
		cfg.WorkerBatchSize = s
	}

	return cfg, nil
}

// Location returns the organization's time zone. Load has already validated it.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.SiteTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func cronSpec(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	if v == "-" {
		return ""
	}
	return v
}
