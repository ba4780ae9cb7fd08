package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type MeetingApp struct {
	BundleID string `toml:"bundle_id"`
	Name     string `toml:"name"`
}

type Config struct {
	DataDir  string `toml:"data_dir"`
	LogLevel string `toml:"log_level"`

	Detector struct {
		PollSchedule  string       `toml:"poll_schedule"`
		SnoozeTTLSecs int          `toml:"snooze_ttl_secs"`
		MeetingApps   []MeetingApp `toml:"meeting_apps"`
		TitlePatterns []string     `toml:"title_patterns"`
		// ObserverCommand overrides the platform default app sampler. The
		// command must print a JSON array of app samples.
		ObserverCommand []string `toml:"observer_command"`
	} `toml:"detector"`

	Transcription struct {
		WhisperBin              string `toml:"whisper_bin"`
		ModelPath               string `toml:"model_path"`
		Language                string `toml:"language"`
		ChunkSecs               int    `toml:"chunk_secs"`
		SegmentUpdateThreshold  int    `toml:"segment_update_threshold"`
		LiveMinutes             bool   `toml:"live_minutes"`
		LiveMinutesIntervalSecs int    `toml:"live_minutes_interval_secs"`
	} `toml:"transcription"`

	Audio struct {
		FFmpegBin   string `toml:"ffmpeg_bin"`
		InputFormat string `toml:"input_format"`
		InputDevice string `toml:"input_device"`
		SampleRate  int    `toml:"sample_rate"`
		Channels    int    `toml:"channels"`
	} `toml:"audio"`

	LLM struct {
		BaseURL            string  `toml:"base_url"`
		APIKey             string  `toml:"api_key"`
		Model              string  `toml:"model"`
		MaxTokens          int     `toml:"max_tokens"`
		Temperature        float32 `toml:"temperature"`
		MaxContextTokens   int     `toml:"max_context_tokens"`
		OutputReserve      int     `toml:"output_reserve"`
		RequestTimeoutSecs int     `toml:"request_timeout_secs"`
	} `toml:"llm"`

	Telegram struct {
		Token  string `toml:"token"`
		ChatID int64  `toml:"chat_id"`
	} `toml:"telegram"`

	Export struct {
		MarkdownDir string `toml:"markdown_dir"`
	} `toml:"export"`

	HTTP struct {
		Enabled bool   `toml:"enabled"`
		Listen  string `toml:"listen"`
	} `toml:"http"`
}

// DefaultMeetingApps is the built-in set of recognized meeting applications.
var DefaultMeetingApps = []MeetingApp{
	{BundleID: "us.zoom.xos", Name: "Zoom"},
	{BundleID: "com.microsoft.teams2", Name: "Microsoft Teams"},
	{BundleID: "Cisco-Systems.Spark", Name: "Webex"},
	{BundleID: "com.tinyspeck.slackmacgap", Name: "Slack"},
	{BundleID: "com.google.Chrome", Name: "Google Chrome"},
	{BundleID: "com.apple.Safari", Name: "Safari"},
}

// DefaultTitlePatterns match window titles that indicate an in-progress
// meeting (joined URLs, huddles, in-call titles).
var DefaultTitlePatterns = []string{
	`meet\.google\.com`,
	`zoom\.us/j/`,
	`Zoom Meeting`,
	`teams\.microsoft\.com`,
	`Microsoft Teams meeting`,
	`\.webex\.com`,
	`Huddle`,
}

// Load reads the TOML config at path, writing defaults on first run and
// applying environment overrides last.
func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:  filepath.Join(os.Getenv("HOME"), ".meetscribe"),
		LogLevel: "info",
	}
	cfg.Detector.PollSchedule = "@every 10s"
	cfg.Detector.SnoozeTTLSecs = 300
	cfg.Detector.MeetingApps = DefaultMeetingApps
	cfg.Detector.TitlePatterns = DefaultTitlePatterns
	cfg.Transcription.WhisperBin = "whisper-cli"
	cfg.Transcription.ModelPath = filepath.Join(os.Getenv("HOME"), ".meetscribe", "models", "ggml-base.en.bin")
	cfg.Transcription.Language = "en"
	cfg.Transcription.ChunkSecs = 15
	cfg.Transcription.SegmentUpdateThreshold = 3
	cfg.Transcription.LiveMinutes = true
	cfg.Transcription.LiveMinutesIntervalSecs = 60
	cfg.Audio.FFmpegBin = "ffmpeg"
	cfg.Audio.SampleRate = 16000
	cfg.Audio.Channels = 1
	cfg.LLM.BaseURL = "https://api.openai.com/v1"
	cfg.LLM.Model = "gpt-4o-mini"
	cfg.LLM.MaxTokens = 2000
	cfg.LLM.Temperature = 0.3
	cfg.LLM.MaxContextTokens = 128000
	cfg.LLM.OutputReserve = 4096
	cfg.LLM.RequestTimeoutSecs = 60
	cfg.HTTP.Enabled = true
	cfg.HTTP.Listen = "127.0.0.1:8790"

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("decode config: %w", err)
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if tgToken := os.Getenv("TELEGRAM_BOT_TOKEN"); tgToken != "" {
		cfg.Telegram.Token = tgToken
	}
	if dataDir := os.Getenv("MEETSCRIBE_DATA_DIR"); dataDir != "" {
		cfg.DataDir = dataDir
	}

	if cfg.Export.MarkdownDir == "" {
		cfg.Export.MarkdownDir = filepath.Join(cfg.DataDir, "meetings")
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	return Save(path, cfg)
}

// Save writes the config as TOML using an atomic temp-file + rename.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
