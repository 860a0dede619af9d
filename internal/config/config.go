package config

import (
	"errors"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// BrowserConfig controls the authenticated fetch session.
type BrowserConfig struct {
	// ControlURL points at an already running browser (e.g. a dockerized
	// chromium). Empty means launch a local headless instance.
	ControlURL    string `yaml:"controlURL"`
	Headless      bool   `yaml:"headless"`
	UserAgent     string `yaml:"userAgent"`
	AuthStatePath string `yaml:"authStatePath"`
	LoginURL      string `yaml:"loginURL"`
	// PostLoginURLSubstring is the URL fragment that marks a completed
	// login navigation (e.g. "/overview").
	PostLoginURLSubstring string `yaml:"postLoginURLSubstring"`
	PagePoolSize          int    `yaml:"pagePoolSize"`
	FetchTimeoutMs        int    `yaml:"fetchTimeoutMs"`
	LoginTimeoutMs        int    `yaml:"loginTimeoutMs"`
}

func (b BrowserConfig) FetchTimeout() time.Duration {
	if b.FetchTimeoutMs <= 0 {
		return 45 * time.Second
	}
	return time.Duration(b.FetchTimeoutMs) * time.Millisecond
}

func (b BrowserConfig) LoginTimeout() time.Duration {
	if b.LoginTimeoutMs <= 0 {
		return 90 * time.Second
	}
	return time.Duration(b.LoginTimeoutMs) * time.Millisecond
}

type RobotsConfig struct {
	Respect   bool   `yaml:"respect"`
	UserAgent string `yaml:"userAgent"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// CrawlerConfig controls the batch orchestrator and the pre-filter.
type CrawlerConfig struct {
	// Concurrency is the worker pool width. Kept conservative by default
	// to respect the AI API's and the target site's rate limits.
	Concurrency int `yaml:"concurrency"`
	// Keywords is the inclusion list for the cheap pre-filter; a job whose
	// title and description contain none of them is stored rejected
	// without an AI call.
	Keywords   []string `yaml:"keywords"`
	PromptPath string   `yaml:"promptPath"`
	CVPath     string   `yaml:"cvPath"`
}

func (c CrawlerConfig) PoolSize() int {
	if c.Concurrency <= 0 {
		return 2
	}
	return c.Concurrency
}

type AIConfig struct {
	BaseURL     string `yaml:"baseURL"`
	Model       string `yaml:"model"`
	TimeoutMs   int    `yaml:"timeoutMs"`
	MaxAttempts int    `yaml:"maxAttempts"`
	BackoffMs   int    `yaml:"backoffMs"`
}

func (a AIConfig) Timeout() time.Duration {
	if a.TimeoutMs <= 0 {
		return 3 * time.Minute
	}
	return time.Duration(a.TimeoutMs) * time.Millisecond
}

func (a AIConfig) Backoff() time.Duration {
	if a.BackoffMs <= 0 {
		return 2 * time.Second
	}
	return time.Duration(a.BackoffMs) * time.Millisecond
}

// RetentionConfig bounds database growth. Rejected jobs and run
// summaries are working data, not an archive; both get a TTL.
type RetentionConfig struct {
	Enabled         bool `yaml:"enabled"`
	RejectedDays    int  `yaml:"rejectedDays"`
	RunsDays        int  `yaml:"runsDays"`
	IntervalMinutes int  `yaml:"intervalMinutes"`
}

func (r RetentionConfig) Interval() time.Duration {
	if r.IntervalMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(r.IntervalMinutes) * time.Minute
}

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Browser   BrowserConfig   `yaml:"browser"`
	Robots    RobotsConfig    `yaml:"robots"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Crawler   CrawlerConfig   `yaml:"crawler"`
	AI        AIConfig        `yaml:"ai"`
	Retention RetentionConfig `yaml:"retention"`
}

func Load(path string) *Config {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		log.Fatalf("failed to decode config: %v", err)
	}

	return &cfg
}

// Credentials holds secrets that never live in the config file.
type Credentials struct {
	LoginEmail    string
	LoginPassword string
	AIAPIKey      string
}

// CredentialsFromEnv reads the login and API secrets from the
// environment. Missing values are a configuration error surfaced before
// any fetch attempt is made.
func CredentialsFromEnv() (Credentials, error) {
	creds := Credentials{
		LoginEmail:    os.Getenv("JOBSIFT_LOGIN_EMAIL"),
		LoginPassword: os.Getenv("JOBSIFT_LOGIN_PASSWORD"),
		AIAPIKey:      os.Getenv("OPENAI_API_KEY"),
	}

	if creds.LoginEmail == "" || creds.LoginPassword == "" {
		return Credentials{}, errors.New("JOBSIFT_LOGIN_EMAIL and JOBSIFT_LOGIN_PASSWORD must be set")
	}
	if creds.AIAPIKey == "" {
		return Credentials{}, errors.New("OPENAI_API_KEY must be set")
	}

	return creds, nil
}
