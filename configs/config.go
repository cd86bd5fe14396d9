package configs

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/i2y/mcptrace/internal/domain"
	"github.com/i2y/mcptrace/internal/usecase"
)

const envPrefix = "mcptrace"

// Upstream declares where a configured tool forwards its calls.
type Upstream struct {
	Type string `yaml:"type"` // "http" or "grpc"

	// HTTP upstreams.
	Host        string   `yaml:"host,omitempty"`
	Method      string   `yaml:"method,omitempty"`
	Path        string   `yaml:"path,omitempty"`
	QueryParams []string `yaml:"query_params,omitempty"`
	BodyParam   string   `yaml:"body_param,omitempty"`
	ContentType string   `yaml:"content_type,omitempty"`

	// gRPC upstreams (server reflection required).
	Target     string `yaml:"target,omitempty"`
	Service    string `yaml:"service,omitempty"`
	GRPCMethod string `yaml:"grpc_method,omitempty"`

	// Headers are sent as HTTP headers or gRPC metadata.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// ToolDeclaration is one upstream-backed tool from the config file.
type ToolDeclaration struct {
	Name        string                 `yaml:"name"`
	Description string                 `yaml:"description"`
	InputSchema domain.JSONSchemaProps `yaml:"input_schema"`
	Upstream    Upstream               `yaml:"upstream"`
}

// Descriptor returns the tool descriptor served to clients. A declaration
// without a schema accepts any object.
func (d ToolDeclaration) Descriptor() domain.Tool {
	schema := d.InputSchema
	if schema.Type == "" {
		schema.Type = "object"
	}
	return domain.Tool{Name: d.Name, Description: d.Description, InputSchema: schema}
}

// Invocation returns the details the invoker router needs for this tool.
func (d ToolDeclaration) Invocation() usecase.InvocationDetails {
	u := d.Upstream
	return usecase.InvocationDetails{
		Type:         strings.ToLower(u.Type),
		Host:         u.Host,
		HTTPMethod:   strings.ToUpper(u.Method),
		HTTPPath:     u.Path,
		QueryParams:  u.QueryParams,
		HeaderParams: u.Headers,
		BodyParam:    u.BodyParam,
		ContentType:  u.ContentType,
		GRPCTarget:   u.Target,
		GRPCService:  u.Service,
		GRPCMethod:   u.GRPCMethod,
	}
}

// Validate checks that the declaration names everything its upstream kind needs.
func (d ToolDeclaration) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("tool declaration without name")
	}
	u := d.Upstream
	switch strings.ToLower(u.Type) {
	case usecase.UpstreamHTTP, "":
		if u.Host == "" || u.Method == "" {
			return fmt.Errorf("tool %s: http upstream requires host and method", d.Name)
		}
	case usecase.UpstreamGRPC:
		if u.Target == "" || u.Service == "" || u.GRPCMethod == "" {
			return fmt.Errorf("tool %s: grpc upstream requires target, service and grpc_method", d.Name)
		}
	default:
		return fmt.Errorf("tool %s: %w: %q", d.Name, usecase.ErrUnsupportedUpstreamKind, u.Type)
	}
	return nil
}

// FileConfig defines the structure loaded from the YAML configuration file.
type FileConfig struct {
	Tools []ToolDeclaration `yaml:"tools"`
}

// Config holds the final application configuration, merged from file and environment variables.
// Fields are loaded from environment variables with the prefix "MCPTRACE_".
type Config struct {
	// Optional YAML file declaring upstream-backed tools.
	ConfigFilePath string `envconfig:"CONFIG_FILE"`

	// File-loaded fields
	Tools []ToolDeclaration `ignored:"true"`

	// Server
	ListenAddr         string        `envconfig:"LISTEN_ADDR" default:":8080"`
	ServerName         string        `envconfig:"SERVER_NAME" default:"mcptrace"`
	ServerVersion      string        `envconfig:"SERVER_VERSION" default:"0.1.0"`
	ProtocolVersions   []string      `envconfig:"PROTOCOL_VERSIONS" default:"2025-06-18,2025-03-26"`
	RequireSession     bool          `envconfig:"REQUIRE_SESSION" default:"true"`
	ServerReadTimeout  time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"5s"`
	ServerWriteTimeout time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ServerIdleTimeout  time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout    time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`

	// Client and upstream calls
	Endpoint          string        `envconfig:"ENDPOINT" default:"http://localhost:8080/mcp"`
	HTTPClientTimeout time.Duration `envconfig:"HTTP_CLIENT_TIMEOUT" default:"30s"`

	// Tracing
	TraceDSN                 string `envconfig:"TRACE_DSN" default:"file:mcptrace.db"`
	OtelExporterOtlpEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelExporterOtlpInsecure bool   `envconfig:"OTEL_EXPORTER_OTLP_INSECURE" default:"true"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// ParsedLogLevel returns the slog.Level based on the configured LogLevel string.
func (c *Config) ParsedLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Load reads environment variables, then the YAML file they point to (if any).
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if len(cfg.ProtocolVersions) == 0 {
		return nil, fmt.Errorf("at least one protocol version must be configured")
	}

	if cfg.ConfigFilePath == "" {
		return &cfg, nil
	}
	fileCfg, err := LoadFile(cfg.ConfigFilePath)
	if err != nil {
		return nil, err
	}
	cfg.Tools = fileCfg.Tools
	return &cfg, nil
}

// LoadFile parses and validates a YAML config file.
func LoadFile(path string) (*FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}
	var fileCfg FileConfig
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config file '%s': %w", path, err)
	}

	seen := make(map[string]bool, len(fileCfg.Tools))
	for _, decl := range fileCfg.Tools {
		if err := decl.Validate(); err != nil {
			return nil, fmt.Errorf("config file '%s': %w", path, err)
		}
		if seen[decl.Name] {
			return nil, fmt.Errorf("config file '%s': tool %s declared twice", path, decl.Name)
		}
		seen[decl.Name] = true
	}
	return &fileCfg, nil
}
