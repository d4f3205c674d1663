package config

// Config represents the main openbridge configuration
type Config struct {
	// SpecPath is a description file or a directory of description files
	SpecPath string `json:"spec_path" mapstructure:"spec_path"`

	// EnvFile is the line-oriented KEY=value credential file
	EnvFile string `json:"env_file" mapstructure:"env_file"`

	// ToolPrefix is prepended to tool names by the protocol adapter and
	// stripped again by the batch entry point
	ToolPrefix string `json:"tool_prefix" mapstructure:"tool_prefix"`

	// Servers maps API namespaces to explicit base-URL overrides
	Servers map[string]string `json:"servers" mapstructure:"servers"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		SpecPath:   ".",
		EnvFile:    ".env",
		Servers:    map[string]string{},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Redaction: true,
		},
	}
}
