package core

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator"
	"gopkg.in/yaml.v3"

	"github.com/jo-hoe/cdbgen/internal/backend/cdb"
	"github.com/jo-hoe/cdbgen/internal/backend/dispatch"
	"github.com/jo-hoe/cdbgen/internal/backend/tool"
)

// HandlerConfig represents a layer handler selection with its parameters
type HandlerConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:",inline"`
}

type Database struct {
	Type             string `yaml:"type" validate:"omitempty,oneof=sqlite"`
	ConnectionString string `yaml:"connectionString"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

type ToolsConfig struct {
	// Directory holds cdb-inject and gdaladdo.
	Directory string `yaml:"directory"`
	// ForceExe appends .exe to the tool names on every platform.
	ForceExe bool          `yaml:"forceExe"`
	Timeout  time.Duration `yaml:"timeout" validate:"gte=0"`
}

type OutputConfig struct {
	// Directory is the CDB datastore written by the tools.
	Directory string `yaml:"directory"`
	// Create initialises a new datastore before the first insert.
	Create bool `yaml:"create"`
}

type OverviewsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Resampling string `yaml:"resampling" validate:"omitempty,oneof=nearest average gauss cubic cubicspline lanczos average_magphase mode"`
	LodMin     int    `yaml:"lodMin"`
	LodMax     *int   `yaml:"lodMax"`
	Levels     []int  `yaml:"levels" validate:"dive,gt=1"`
}

type ProjectConfig struct {
	// File is a YAML project document listing layers.
	File string `yaml:"file"`
	// Scan lists directories whose raster and vector files become layers.
	Scan    []string `yaml:"scan"`
	Workers int      `yaml:"workers" validate:"gte=0"`
}

type RedisConfig struct {
	// Address enables progress publishing when set.
	Address string `yaml:"address"`
	Channel string `yaml:"channel"`
	History int64  `yaml:"history" validate:"gte=0"`
}

type ServiceConfig struct {
	Port           int             `yaml:"port" validate:"gte=0,lte=65535"`
	ThumbnailWidth int             `yaml:"thumbnailWidth" validate:"gte=0,lte=4096"`
	Database       Database        `yaml:"database"`
	Log            LogConfig       `yaml:"log"`
	Tools          ToolsConfig     `yaml:"tools"`
	Output         OutputConfig    `yaml:"output"`
	Overviews      OverviewsConfig `yaml:"overviews"`
	Project        ProjectConfig   `yaml:"project"`
	Redis          RedisConfig     `yaml:"redis"`
	Handlers       []HandlerConfig `yaml:"handlers"`
}

const (
	defaultPort             = 8080
	defaultThumbnailWidth   = 256
	defaultDatabaseType     = "sqlite"
	defaultConnectionString = ":memory:"
	defaultLogLevel         = "info"
	defaultLogFormat        = "text"
	defaultToolTimeout      = 2 * time.Hour
	defaultResampling       = "average"
	defaultRedisChannel     = "cdbgen:progress"
)

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *ServiceConfig {
	config := &ServiceConfig{}
	config.applyDefaults(nil)
	return config
}

// LoadConfig loads configuration from the specified YAML file
func LoadConfig(configPath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", configPath, err)
	}
	return config, nil
}

// ParseConfig parses, defaults and validates a YAML configuration document.
func ParseConfig(data []byte) (*ServiceConfig, error) {
	var config ServiceConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var raw struct {
		Overviews struct {
			LodMin *int `yaml:"lodMin"`
		} `yaml:"overviews"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.applyDefaults(raw.Overviews.LodMin)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// applyDefaults fills unset fields. lodMin is passed separately because
// zero is a valid level of detail.
func (c *ServiceConfig) applyDefaults(lodMin *int) {
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.ThumbnailWidth == 0 {
		c.ThumbnailWidth = defaultThumbnailWidth
	}
	if c.Database.Type == "" {
		c.Database.Type = defaultDatabaseType
	}
	if c.Database.ConnectionString == "" {
		c.Database.ConnectionString = defaultConnectionString
	}
	if c.Log.Level == "" {
		c.Log.Level = defaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = defaultLogFormat
	}
	if c.Tools.Timeout == 0 {
		c.Tools.Timeout = defaultToolTimeout
	}
	if c.Overviews.Resampling == "" {
		c.Overviews.Resampling = defaultResampling
	}
	if lodMin == nil {
		c.Overviews.LodMin = cdb.MinLod
	}
	if c.Redis.Channel == "" {
		c.Redis.Channel = defaultRedisChannel
	}
}

// Validate checks struct constraints and cross-field rules.
func (c *ServiceConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Overviews.LodMin < cdb.MinLod || c.Overviews.LodMin > cdb.MaxLod {
		return fmt.Errorf("invalid configuration: overviews.lodMin %d outside [%d, %d]", c.Overviews.LodMin, cdb.MinLod, cdb.MaxLod)
	}
	if lodMax := c.Overviews.LodMax; lodMax != nil && (*lodMax < c.Overviews.LodMin || *lodMax > cdb.MaxLod) {
		return fmt.Errorf("invalid configuration: overviews.lodMax %d outside [%d, %d]", *lodMax, c.Overviews.LodMin, cdb.MaxLod)
	}
	if err := validateHandlers(c.Handlers); err != nil {
		return fmt.Errorf("invalid handler configuration: %w", err)
	}
	return nil
}

// validateHandlers ensures all handler configurations have required fields
func validateHandlers(handlers []HandlerConfig) error {
	seenNames := make(map[string]bool)

	for i, handler := range handlers {
		if handler.Name == "" {
			return fmt.Errorf("handler at index %d has empty name", i)
		}
		if seenNames[handler.Name] {
			return fmt.Errorf("duplicate handler name: %s", handler.Name)
		}
		seenNames[handler.Name] = true

		if !dispatch.DefaultRegistry.IsRegistered(handler.Name) {
			return fmt.Errorf("unknown handler %q (available: %v)", handler.Name, dispatch.DefaultRegistry.GetRegisteredNames())
		}
	}

	return nil
}

// dispatchOptions translates the configuration into dispatcher options.
func (c *ServiceConfig) dispatchOptions() dispatch.Options {
	handlers := make([]dispatch.HandlerConfig, 0, len(c.Handlers))
	for _, handler := range c.Handlers {
		handlers = append(handlers, dispatch.HandlerConfig{Name: handler.Name, Params: handler.Params})
	}
	return dispatch.Options{
		ForceExeSuffix:  c.Tools.ForceExe,
		CreateDatastore: c.Output.Create,
		Overviews: dispatch.OverviewConfig{
			Enabled: c.Overviews.Enabled,
			OverviewOptions: tool.OverviewOptions{
				Resampling: c.Overviews.Resampling,
				LodMin:     c.Overviews.LodMin,
				LodMax:     c.Overviews.LodMax,
				Levels:     c.Overviews.Levels,
			},
		},
		Handlers: handlers,
	}
}
