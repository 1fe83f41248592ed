package server

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/SurinSeong/seasonal-ai-backend/internal/openai"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	defaultHost           = "localhost"
	defaultPort           = 8000
	defaultPollIntervalMs = 1000
	defaultLogLevel       = "info"
)

type config struct {
	OpenAIToken    string   `json:"openaiToken"`
	OpenAIBaseURL  string   `json:"openaiBaseURL,omitempty"`
	AssistantID    string   `json:"assistantID"`
	Model          string   `json:"model,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty"`
	MaxRetries     *int     `json:"maxRetries,omitempty"`
	Host           string   `json:"host,omitempty"`
	Port           int      `json:"port,omitempty"`
	PollIntervalMs int      `json:"pollIntervalMs,omitempty"`
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
	LogLevel       string   `json:"logLevel,omitempty"`
}

// DefaultConfigPath is ~/.config/seasonal-ai.json, or empty when the home
// directory cannot be determined.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warnf("Failed to get home directory: %v", err)
		return ""
	}
	return filepath.Join(homeDir, ".config", "seasonal-ai.json")
}

func readConfigFile(path string, config *config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, config); err != nil {
		return errors.Wrapf(err, "failed to parse config file %s", path)
	}
	return nil
}

func applyEnv(config *config) error {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		config.OpenAIToken = v
	}
	if v := os.Getenv("OPENAI_ASSISTANT_ID"); v != "" {
		config.AssistantID = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		config.Model = v
	}
	if v := os.Getenv("SEASONAL_AI_HOST"); v != "" {
		config.Host = v
	}
	if v := os.Getenv("SEASONAL_AI_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "invalid SEASONAL_AI_PORT %q", v)
		}
		config.Port = port
	}
	return nil
}

// loadConfig reads .env, then the JSON file at path, then the environment.
// A missing file at the default path is not an error; a missing file at an
// explicitly given path is.
func loadConfig(path string) (*config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(err, "failed to load .env")
	}

	var config config

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	if path != "" {
		err := readConfigFile(path, &config)
		switch {
		case err == nil:
			log.Printf("loaded config from %s", path)
		case !explicit && errors.Is(err, fs.ErrNotExist):
		default:
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	if err := applyEnv(&config); err != nil {
		return nil, err
	}

	if config.Host == "" {
		config.Host = defaultHost
	}
	if config.Port == 0 {
		config.Port = defaultPort
	}
	if config.Port < 0 || config.Port > 65535 {
		return nil, errors.Errorf("port %d out of range", config.Port)
	}
	if config.Model == "" {
		config.Model = openai.DefaultModel
	}
	if config.PollIntervalMs <= 0 {
		config.PollIntervalMs = defaultPollIntervalMs
	}
	if len(config.AllowedOrigins) == 0 {
		config.AllowedOrigins = []string{"*"}
	}
	if config.LogLevel == "" {
		config.LogLevel = defaultLogLevel
	}
	if _, err := log.ParseLevel(config.LogLevel); err != nil {
		return nil, errors.Wrap(err, "invalid logLevel")
	}

	return &config, nil
}

func (config *config) addr() string {
	return config.Host + ":" + strconv.Itoa(config.Port)
}

func (config *config) pollInterval() time.Duration {
	return time.Duration(config.PollIntervalMs) * time.Millisecond
}

func (config *config) openaiConfig() openai.Config {
	return openai.Config{
		APIKey:      config.OpenAIToken,
		BaseURL:     config.OpenAIBaseURL,
		Model:       config.Model,
		Temperature: config.Temperature,
		MaxRetries:  config.MaxRetries,
	}
}
