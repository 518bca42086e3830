package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

type Config struct {
	DataDir       string `json:"data_dir"`
	LogLevel      string `json:"log_level"`
	MaxConcurrent int    `json:"max_concurrent"`
	CatalogPath   string `json:"catalog_path"`
	Telegram      struct {
		Token    string  `json:"token"`
		AdminIDs []int64 `json:"admin_ids"`
	} `json:"telegram"`
	Destinations struct {
		Category  string `json:"category"`
		ReportLog string `json:"report_log"`
		ErrorLog  string `json:"error_log"`
	} `json:"destinations"`
	Timing struct {
		ChoiceWaitSeconds int    `json:"choice_wait_seconds"`
		TextWaitSeconds   int    `json:"text_wait_seconds"`
		GraceSeconds      int    `json:"grace_seconds"`
		SweepSchedule     string `json:"sweep_schedule"`
	} `json:"timing"`
	HTTP struct {
		Enabled bool   `json:"enabled"`
		Listen  string `json:"listen"`
	} `json:"http"`
}

func Load(path string) (*Config, error) {
	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:       filepath.Join(os.Getenv("HOME"), ".relatobot"),
		LogLevel:      "info",
		MaxConcurrent: 10,
	}
	cfg.CatalogPath = filepath.Join(cfg.DataDir, "questions.json")
	cfg.Timing.ChoiceWaitSeconds = 180
	cfg.Timing.TextWaitSeconds = 600
	cfg.Timing.GraceSeconds = 10
	cfg.Timing.SweepSchedule = "@every 5m"
	cfg.HTTP.Listen = "127.0.0.1:8765"

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}
	if category := os.Getenv("REPORT_CATEGORY"); category != "" {
		cfg.Destinations.Category = category
	}
	if reportLog := os.Getenv("REPORT_LOG_CHANNEL"); reportLog != "" {
		cfg.Destinations.ReportLog = reportLog
	}
	if errorLog := os.Getenv("ERROR_LOG_CHANNEL"); errorLog != "" {
		cfg.Destinations.ErrorLog = errorLog
	}
	if catalogPath := os.Getenv("CATALOG_PATH"); catalogPath != "" {
		cfg.CatalogPath = catalogPath
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}
