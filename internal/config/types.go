package config

// Config represents the complete installer configuration.
// It is built once at startup and passed by value to every stage.
type Config struct {
	ScratchDir string         `yaml:"scratch_dir"`
	OS         OSConfig       `yaml:"os"`
	Hardware   HardwareConfig `yaml:"hardware"`
	GPU        GPUConfig      `yaml:"gpu"`
	NPU        NPUConfig      `yaml:"npu"`
	Verify     VerifyConfig   `yaml:"verify"`
	Logging    LoggingConfig  `yaml:"logging"`
	Metrics    MetricsConfig  `yaml:"metrics"`
	HTTP       HTTPConfig     `yaml:"http"`
}

// OSConfig controls the advisory distribution check
type OSConfig struct {
	ExpectedToken string `yaml:"expected_token"`
	ReleaseFile   string `yaml:"release_file"`
}

// HardwareConfig controls the advisory hardware-presence check
type HardwareConfig struct {
	Keywords []string `yaml:"keywords"`
	SysfsDRM string   `yaml:"sysfs_drm"`
}

// GPUConfig describes the GPU driver repository, packages and access group
type GPUConfig struct {
	Repository string   `yaml:"repository"`
	Packages   []string `yaml:"packages"`
	Group      string   `yaml:"group"`
}

// NPUConfig describes the NPU driver release archive and its installer
type NPUConfig struct {
	Dependencies  []string `yaml:"dependencies"`
	Release       string   `yaml:"release"`
	BaseURL       string   `yaml:"base_url"`
	ArchiveURL    string   `yaml:"archive_url"`
	ArchiveFormat string   `yaml:"archive_format"`
	Installer     string   `yaml:"installer"`
	InstallerArgs []string `yaml:"installer_args"`
	SHA256        string   `yaml:"sha256"`
}

// ToolCheck names a diagnostic CLI tool and the arguments used to probe it
type ToolCheck struct {
	Name string   `yaml:"name"`
	Args []string `yaml:"args"`
}

// VerifyConfig lists the post-install probes
type VerifyConfig struct {
	Tools        []ToolCheck `yaml:"tools"`
	KernelModule string      `yaml:"kernel_module"`
	DeviceNode   string      `yaml:"device_node"`
	ModulesFile  string      `yaml:"modules_file"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// MetricsConfig represents the run history log and the optional
// node_exporter textfile export
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
	History  string `yaml:"history"`
}

// HTTPConfig represents download client settings
type HTTPConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

func (e ValidationError) Error() string {
	return e.Path + ": " + e.Message
}
