package config

import (
	"net"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

var v *viper.Viper

// Init initializes the viper instance
func Init() {
	v = viper.New()
	bindEnv(v)
}

// Viper returns the viper instance
func Viper() *viper.Viper {
	if v == nil {
		Init()
	}
	return v
}

// apiKeyPlaceholder is shipped in sample configs and never a usable key.
const apiKeyPlaceholder = "YOUR_API_KEY_HERE"

// bindEnv maps the documented environment variables onto config keys.
func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("server.http.host", "MKBI_HOST")
	_ = v.BindEnv("server.http.port", "MKBI_PORT")
	_ = v.BindEnv("server.token", "MKBI_TOKEN")
	_ = v.BindEnv("llm.api_key", "LLM_API_KEY", "OPENAI_API_KEY")
}

// Server configuration
type Server struct {
	HTTP  HTTPConfig `mapstructure:"http" yaml:"http"`
	GRPC  GRPCConfig `mapstructure:"grpc" yaml:"grpc"`
	Token string     `mapstructure:"token" yaml:"token"` // Bearer token; empty disables auth
}

type HTTPConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// Addr returns host:port for net.Listen.
func (c HTTPConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

type GRPCConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// Log configuration
type Log struct {
	Level string `mapstructure:"level" yaml:"level"`
	Path  string `mapstructure:"path" yaml:"path"`
	Debug bool   `mapstructure:"debug" yaml:"debug"`
	Trace string `mapstructure:"trace" yaml:"trace"` // minimal, standard, detailed
}

// LLM configuration
type LLM struct {
	Provider string `mapstructure:"provider" yaml:"provider"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
	Model    string `mapstructure:"model" yaml:"model"`
	URL      string `mapstructure:"url" yaml:"url"` // Custom LLM service URL
}

// Sampling holds per-stage generation parameters.
type Sampling struct {
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	TopP        float64 `mapstructure:"top_p" yaml:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// Execution configuration
type Execution struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// Skills configuration
type Skills struct {
	Dir     string `mapstructure:"dir" yaml:"dir"`
	Default string `mapstructure:"default" yaml:"default"`
}

// Config represents the application configuration
type Config struct {
	Server      Server    `mapstructure:"server" yaml:"server"`
	Log         Log       `mapstructure:"log" yaml:"log"`
	LLM         LLM       `mapstructure:"llm" yaml:"llm"`
	Interpreter Sampling  `mapstructure:"interpreter" yaml:"interpreter"`
	Fabricator  Sampling  `mapstructure:"fabricator" yaml:"fabricator"`
	Execution   Execution `mapstructure:"execution" yaml:"execution"`
	Skills      Skills    `mapstructure:"skills" yaml:"skills"`
}

// LoadConfig loads configuration from viper
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := Viper().Unmarshal(cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.HTTP.Host == "" {
		cfg.Server.HTTP.Host = "0.0.0.0"
	}
	if cfg.Server.HTTP.Port == 0 {
		cfg.Server.HTTP.Port = 8000
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "INFO"
	}
	if cfg.Log.Path == "" {
		cfg.Log.Path = "./log"
	}
	if cfg.Log.Trace == "" {
		cfg.Log.Trace = "standard"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.APIKey == apiKeyPlaceholder {
		cfg.LLM.APIKey = ""
	}

	// Sampling keys are only defaulted when absent; 0 is a legal temperature.
	if !Viper().IsSet("interpreter.temperature") {
		cfg.Interpreter.Temperature = 0.7
	}
	if !Viper().IsSet("interpreter.top_p") {
		cfg.Interpreter.TopP = 1.0
	}
	if !Viper().IsSet("fabricator.temperature") {
		cfg.Fabricator.Temperature = 0.2
	}
	if !Viper().IsSet("fabricator.top_p") {
		cfg.Fabricator.TopP = 1.0
	}

	// A bare number is read as seconds, matching timeout: 30 in older configs.
	if secs, err := strconv.Atoi(Viper().GetString("execution.timeout")); err == nil {
		cfg.Execution.Timeout = time.Duration(secs) * time.Second
	}
	if cfg.Execution.Timeout <= 0 {
		cfg.Execution.Timeout = 30 * time.Second
	}
	if cfg.Skills.Dir == "" {
		cfg.Skills.Dir = "./skills"
	}
	if cfg.Skills.Default == "" {
		cfg.Skills.Default = "bash"
	}
}
