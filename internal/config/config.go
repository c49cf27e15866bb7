package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeServer = "server"
	ModeStdio  = "stdio"
	ModeQueue  = "queue"

	// Backend constants
	BackendPDFTK  = "pdftk"
	BackendPDFCPU = "pdfcpu"

	// Default values
	DefaultPort          = 4567
	DefaultHost          = "127.0.0.1"
	DefaultLogLevel      = "info"
	DefaultTemplate      = "sf2809.pdf"
	DefaultMappings      = "sf2809_mappings.json"
	DefaultBackend       = BackendPDFTK
	DefaultPDFTK         = "pdftk"
	DefaultFillTimeout   = 30 * time.Second
	DefaultMaxBodySize   = 1 << 20          // 1MiB
	DefaultMaxOutputSize = 50 * 1024 * 1024 // 50MB
	DefaultAllowOrigin   = "*"
	DefaultBrokers       = "localhost:9092"
	DefaultRequestTopic  = "sf2809.fill.request"
	DefaultResponseTopic = "sf2809.fill.response"

	// Directory permissions
	DefaultDirPerm = 0o750

	envPrefix = "SF2809"
)

// Config holds all configuration for the SF2809 filler
type Config struct {
	// Server configuration
	Mode        string // "server", "stdio" or "queue"
	Host        string
	Port        int
	AllowOrigin string
	MaxBodySize int64

	// Form configuration
	Template      string
	Mappings      string
	WorkDir       string // transient documents served over HTTP or the queue
	OutputDir     string // documents kept for MCP clients
	Backend       string
	PDFTK         string
	FillTimeout   time.Duration
	MaxOutputSize int64

	// Queue configuration
	Brokers       []string
	RequestTopic  string
	ResponseTopic string

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:          ModeServer,
		Host:          DefaultHost,
		Port:          DefaultPort,
		AllowOrigin:   DefaultAllowOrigin,
		MaxBodySize:   DefaultMaxBodySize,
		Template:      DefaultTemplate,
		Mappings:      DefaultMappings,
		WorkDir:       filepath.Join(os.TempDir(), "sf2809"),
		OutputDir:     currentDir,
		Backend:       DefaultBackend,
		PDFTK:         DefaultPDFTK,
		FillTimeout:   DefaultFillTimeout,
		MaxOutputSize: DefaultMaxOutputSize,
		Brokers:       []string{DefaultBrokers},
		RequestTopic:  DefaultRequestTopic,
		ResponseTopic: DefaultResponseTopic,
		Version:       "1.0.0",
		ServerName:    "sf2809-filler",
		LogLevel:      DefaultLogLevel,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	populateConfigFromViper(cfg)

	for _, p := range []*string{&cfg.WorkDir, &cfg.OutputDir} {
		if *p == "" {
			continue
		}
		if expanded, err := filepath.Abs(*p); err == nil {
			*p = expanded
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix(envPrefix)
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("host", cfg.Host)
	viper.SetDefault("port", cfg.Port)
	viper.SetDefault("alloworigin", cfg.AllowOrigin)
	viper.SetDefault("maxbodysize", cfg.MaxBodySize)
	viper.SetDefault("template", cfg.Template)
	viper.SetDefault("mappings", cfg.Mappings)
	viper.SetDefault("workdir", cfg.WorkDir)
	viper.SetDefault("outputdir", cfg.OutputDir)
	viper.SetDefault("backend", cfg.Backend)
	viper.SetDefault("pdftk", cfg.PDFTK)
	viper.SetDefault("filltimeout", cfg.FillTimeout)
	viper.SetDefault("maxoutputsize", cfg.MaxOutputSize)
	viper.SetDefault("brokers", strings.Join(cfg.Brokers, ","))
	viper.SetDefault("requesttopic", cfg.RequestTopic)
	viper.SetDefault("responsetopic", cfg.ResponseTopic)
	viper.SetDefault("loglevel", cfg.LogLevel)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'server' for HTTP, 'stdio' for MCP standard I/O, 'queue' for Kafka")
	pflag.String("host", cfg.Host, "Server host address (server mode only)")
	pflag.Int("port", cfg.Port, "Server port (server mode only)")
	pflag.String("alloworigin", cfg.AllowOrigin, "Access-Control-Allow-Origin value (server mode only)")
	pflag.Int64("maxbodysize", cfg.MaxBodySize, "Maximum request body size in bytes")
	pflag.String("template", cfg.Template, "Path to the SF2809 template PDF")
	pflag.String("mappings", cfg.Mappings, "Path to the field mapping table (json or yaml)")
	pflag.String("workdir", cfg.WorkDir, "Directory for transient filled documents")
	pflag.String("outputdir", cfg.OutputDir, "Directory filled documents are kept in (stdio mode only)")
	pflag.String("backend", cfg.Backend, "Fill backend: 'pdftk' or 'pdfcpu'")
	pflag.String("pdftk", cfg.PDFTK, "pdftk binary name or path")
	pflag.Duration("filltimeout", cfg.FillTimeout, "Maximum duration of one fill")
	pflag.Int64("maxoutputsize", cfg.MaxOutputSize, "Maximum size of a filled document in bytes")
	pflag.String("brokers", strings.Join(cfg.Brokers, ","), "Comma separated Kafka brokers (queue mode only)")
	pflag.String("requesttopic", cfg.RequestTopic, "Topic fill requests are consumed from (queue mode only)")
	pflag.String("responsetopic", cfg.ResponseTopic, "Topic fill responses are published to (queue mode only)")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	for _, name := range []string{
		"mode", "host", "port", "alloworigin", "maxbodysize",
		"template", "mappings", "workdir", "outputdir", "backend", "pdftk", "filltimeout", "maxoutputsize",
		"brokers", "requesttopic", "responsetopic", "loglevel",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nSF2809 filler - fills the SF2809 health benefits election form\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                                          # HTTP server on 127.0.0.1:4567\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --backend=pdfcpu                         # fill without pdftk\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio --outputdir=/srv/filled     # MCP server\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=queue --brokers=kafka:9092        # Kafka worker\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  SF2809_MODE         Run mode\n")
		fmt.Fprintf(os.Stderr, "  SF2809_PORT         Server port\n")
		fmt.Fprintf(os.Stderr, "  SF2809_TEMPLATE     Template path\n")
		fmt.Fprintf(os.Stderr, "  SF2809_MAPPINGS     Mapping table path\n")
		fmt.Fprintf(os.Stderr, "  SF2809_BACKEND      Fill backend\n")
		fmt.Fprintf(os.Stderr, "  SF2809_FILLTIMEOUT  Fill timeout\n")
		fmt.Fprintf(os.Stderr, "  SF2809_LOGLEVEL     Log level\n")
		fmt.Fprintf(os.Stderr, "  Every other flag is read from SF2809_<FLAG> as well.\n")
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.Host = viper.GetString("host")
	cfg.Port = viper.GetInt("port")
	cfg.AllowOrigin = viper.GetString("alloworigin")
	cfg.MaxBodySize = viper.GetInt64("maxbodysize")
	cfg.Template = viper.GetString("template")
	cfg.Mappings = viper.GetString("mappings")
	cfg.WorkDir = viper.GetString("workdir")
	cfg.OutputDir = viper.GetString("outputdir")
	cfg.Backend = viper.GetString("backend")
	cfg.PDFTK = viper.GetString("pdftk")
	cfg.FillTimeout = viper.GetDuration("filltimeout")
	cfg.MaxOutputSize = viper.GetInt64("maxoutputsize")
	cfg.Brokers = splitList(viper.GetString("brokers"))
	cfg.RequestTopic = viper.GetString("requesttopic")
	cfg.ResponseTopic = viper.GetString("responsetopic")
	cfg.LogLevel = viper.GetString("loglevel")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeServer, ModeStdio, ModeQueue:
	default:
		return errors.New("mode must be one of 'server', 'stdio' or 'queue'")
	}

	if c.Mode == ModeServer && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.Backend != BackendPDFTK && c.Backend != BackendPDFCPU {
		return fmt.Errorf("invalid backend: %s (must be one of: pdftk, pdfcpu)", c.Backend)
	}
	if c.Backend == BackendPDFTK && c.PDFTK == "" {
		return errors.New("pdftk binary cannot be empty")
	}

	if c.Template == "" {
		return errors.New("template path cannot be empty")
	}
	if c.Mappings == "" {
		return errors.New("mappings path cannot be empty")
	}

	if c.FillTimeout <= 0 {
		return errors.New("fill timeout must be positive")
	}
	if c.MaxBodySize <= 0 {
		return errors.New("maximum body size must be positive")
	}
	if c.MaxOutputSize <= 0 {
		return errors.New("maximum output size must be positive")
	}

	if c.Mode == ModeQueue {
		if len(c.Brokers) == 0 {
			return errors.New("at least one broker is required in queue mode")
		}
		if c.RequestTopic == "" || c.ResponseTopic == "" {
			return errors.New("request and response topics are required in queue mode")
		}
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	dirs := map[string]string{"work": c.WorkDir}
	if c.Mode == ModeStdio {
		dirs["output"] = c.OutputDir
	}
	for name, dir := range dirs {
		if err := ensureDir(name, dir); err != nil {
			return err
		}
	}

	return nil
}

func ensureDir(name, dir string) error {
	if dir == "" {
		return fmt.Errorf("%s directory cannot be empty", name)
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create %s directory %s: %w", name, dir, err)
		}
	} else if err != nil {
		return fmt.Errorf("cannot access %s directory %s: %w", name, dir, err)
	}
	return nil
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, Template: %s, Mappings: %s, Backend: %s, "+
		"FillTimeout: %s, LogLevel: %s}",
		c.Mode, c.Host, c.Port, c.Template, c.Mappings, c.Backend, c.FillTimeout, c.LogLevel)
}

// IsServerMode returns true if the filler is running as an HTTP server
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if the filler is running as an MCP stdio server
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

// IsQueueMode returns true if the filler is consuming fill requests from Kafka
func (c *Config) IsQueueMode() bool {
	return c.Mode == ModeQueue
}
