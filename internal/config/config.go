package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete application configuration. Values come from an
// optional YAML file, overridden by environment variables.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Retry    RetryConfig    `yaml:"retry"`
	Feedback FeedbackConfig `yaml:"feedback"`
	SFTP     SFTPConfig     `yaml:"sftp"`
}

// APIConfig describes the LMS endpoint and the pacing of calls to it.
type APIConfig struct {
	BaseURL      string `yaml:"base_url"`
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	PageSize int `yaml:"page_size"`

	// Inter-page delays throttle the remote API.
	CoursePageDelay  time.Duration `yaml:"course_page_delay"`
	SessionPageDelay time.Duration `yaml:"session_page_delay"`

	// Pacing between processed courses / feedback records.
	CoursePacing  time.Duration `yaml:"course_pacing"`
	FeedbackDelay time.Duration `yaml:"feedback_delay"`

	Timeout time.Duration `yaml:"timeout"`
}

// RetryConfig makes the HTTP retry policy explicit. MaxAttempts 1 keeps
// the historical fail-fast behavior.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// FeedbackConfig drives the feedback-survey publishing mode.
type FeedbackConfig struct {
	FormURL           string `yaml:"form_url"`
	CourseNameFieldID string `yaml:"course_name_field_id"`
	CourseIDFieldID   string `yaml:"course_id_field_id"`
	SectionName       string `yaml:"section_name"`
	SectionIconURL    string `yaml:"section_icon_url"`
	MaterialName      string `yaml:"material_name"`
	// MaterialText is the rich-text template; {link} is substituted
	// with the generated survey URL.
	MaterialText string `yaml:"material_text"`
}

// SFTPConfig describes the optional upload drop for exported workbooks.
type SFTPConfig struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	User                  string `yaml:"user"`
	Pass                  string `yaml:"pass"`
	RemoteDir             string `yaml:"remote_dir"`
	InsecureIgnoreHostKey bool   `yaml:"insecure_ignore_host_key"`
}

const defaultMaterialText = `Уважаемые студенты!<br><br>
Просим вас принять участие в опросе по нашей дисциплине.<br>
Ваше мнение очень важно для улучшения качества обучения и организации учебного процесса.<br><br>
Ссылка на обратную связь по дисциплине: <a href="{link}" target="_blank">ссылка</a><br><br>
Заранее благодарим за вашу активность!`

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL:          "https://apk.vevo.ru/endpoint/v1",
			TokenURL:         "https://apk.vevo.ru/oauth/token",
			PageSize:         100,
			CoursePageDelay:  500 * time.Millisecond,
			SessionPageDelay: 200 * time.Millisecond,
			CoursePacing:     200 * time.Millisecond,
			FeedbackDelay:    500 * time.Millisecond,
			Timeout:          2 * time.Minute,
		},
		Retry: RetryConfig{
			MaxAttempts: 1,
			BaseDelay:   700 * time.Millisecond,
			MaxDelay:    30 * time.Second,
		},
		Feedback: FeedbackConfig{
			FormURL:           "https://forms.yandex.ru/cloud/6743cc36c417f388901ebaf6/",
			CourseNameFieldID: "answer_long_text_64154736",
			CourseIDFieldID:   "answer_long_text_70163274",
			SectionName:       "Обратная связь",
			SectionIconURL:    "https://i.ibb.co/dmK60K4/feedback.png",
			MaterialName:      "Обратная связь по дисциплине",
			MaterialText:      defaultMaterialText,
		},
		SFTP: SFTPConfig{
			Port:      22,
			RemoteDir: "/",
		},
	}
}

// Load reads path (when it exists) over Defaults and applies env
// overrides. A missing file is not an error: the tool is usable with
// env vars alone.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		content, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(content, &cfg); err != nil {
				return cfg, fmt.Errorf("config: parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.API.BaseURL = getenv("LMS_BASE_URL", cfg.API.BaseURL)
	cfg.API.TokenURL = getenv("LMS_TOKEN_URL", cfg.API.TokenURL)
	cfg.API.ClientID = getenv("LMS_CLIENT_ID", cfg.API.ClientID)
	cfg.API.ClientSecret = getenv("LMS_CLIENT_SECRET", cfg.API.ClientSecret)
	cfg.API.PageSize = getenvInt("LMS_PAGE_SIZE", cfg.API.PageSize)
	cfg.Retry.MaxAttempts = getenvInt("LMS_RETRY_MAX_ATTEMPTS", cfg.Retry.MaxAttempts)

	cfg.SFTP.Host = getenv("SFTP_HOST", cfg.SFTP.Host)
	cfg.SFTP.Port = getenvInt("SFTP_PORT", cfg.SFTP.Port)
	cfg.SFTP.User = getenv("SFTP_USER", cfg.SFTP.User)
	cfg.SFTP.Pass = getenv("SFTP_PASS", cfg.SFTP.Pass)
	cfg.SFTP.RemoteDir = getenv("SFTP_DIR", cfg.SFTP.RemoteDir)
}

// Validate checks the fields every API-touching command needs.
func (c Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("config: api.base_url is required")
	}
	if c.API.TokenURL == "" {
		return fmt.Errorf("config: api.token_url is required")
	}
	if c.API.ClientID == "" || c.API.ClientSecret == "" {
		return fmt.Errorf("config: api.client_id and api.client_secret are required (or LMS_CLIENT_ID / LMS_CLIENT_SECRET)")
	}
	if c.API.PageSize <= 0 {
		return fmt.Errorf("config: api.page_size must be positive")
	}
	if c.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("config: retry.max_attempts must be at least 1")
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
