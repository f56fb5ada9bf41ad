// Package config loads and validates the YAML configuration that seeds the
// sensor registry, transport client, alarm criteria, and webhook notifier.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is the top-level typed configuration tree, unmarshalled
// directly from YAML.
type AppConfig struct {
	PlotWindowSeconds int              `yaml:"plot_window_seconds"`
	Sensors           SensorsConfig    `yaml:"sensors"`
	Transport         TransportConfig  `yaml:"transport"`
	Alarms            AlarmsConfig     `yaml:"alarms"`
	Webhook           WebhookConfig    `yaml:"webhook"`
}

// SensorsConfig lists every scalar sensor and its alarm limits.
type SensorsConfig struct {
	ScalarConfigs []ScalarSensorConfig `yaml:"scalar_configs"`
}

// ScalarSensorConfig is one entry of sensors.scalar_configs.
type ScalarSensorConfig struct {
	Name      string  `yaml:"name"`
	Units     string  `yaml:"units"`
	LowLimit  float64 `yaml:"low_limit"`
	HighLimit float64 `yaml:"high_limit"`
}

// TransportConfig configures the NDJSON TCP client.
type TransportConfig struct {
	Host            string  `yaml:"host"`
	Port            int     `yaml:"port"`
	TimeoutS        float64 `yaml:"timeout_s"`
	ReconnectDelayS float64 `yaml:"reconnect_delay_s"`
}

// AlarmsConfig configures the engine tolerance and the optional criteria.
type AlarmsConfig struct {
	ValueEps          float64                  `yaml:"value_eps"`
	EnableScalarLimits bool                    `yaml:"enable_scalar_limits"`
	TempDiff          *TempDiffConfig          `yaml:"temp_diff"`
	FtirPeakShift     *FtirPeakShiftConfig     `yaml:"ftir_peak_shift"`
}

// TempDiffConfig configures TempDiffCriterion.
type TempDiffConfig struct {
	SensorLower string  `yaml:"sensor_lower"`
	SensorUpper string  `yaml:"sensor_upper"`
	MaxDelta    float64 `yaml:"max_delta"`
}

// FtirPeakShiftConfig configures FtirPeakShiftCriterion.
type FtirPeakShiftConfig struct {
	SensorName         string    `yaml:"sensor_name"`
	ExpectedPeaksNm    []float64 `yaml:"expected_peaks_nm"`
	MaxAllowedShiftNm  []float64 `yaml:"max_allowed_shift_nm"`
	SearchWindowNm     float64   `yaml:"search_window_nm"`
	RequireLengthMatch bool      `yaml:"require_length_match"`

	// AxisNm overrides the instrument's default descending wavelength axis.
	// Leave empty to use alarm.DefaultFtirAxis.
	AxisNm []float64 `yaml:"axis_nm"`
}

// WebhookConfig configures outbound alarm delivery.
type WebhookConfig struct {
	URL        string  `yaml:"url"`
	AuthHeader string  `yaml:"auth_header"`
	TimeoutS   float64 `yaml:"timeout_s"`
	VerifyTLS  bool    `yaml:"verify_tls"`
}

// Load resolves the config file path (explicit path, then
// SENSORWATCH_CONFIG env var, then config.yaml next to the executable,
// then in the working directory), parses it as YAML, applies defaults,
// and validates the result.
func Load(explicitPath string) (*AppConfig, error) {
	path, err := resolvePath(explicitPath)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return &cfg, nil
}

func resolvePath(explicitPath string) (string, error) {
	if explicitPath != "" {
		return explicitPath, nil
	}
	if env := os.Getenv("SENSORWATCH_CONFIG"); env != "" {
		return env, nil
	}
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml", nil
	}
	return "", fmt.Errorf("config: no config path given and no config.yaml found in executable directory or working directory")
}

// ApplyDefaults fills in sensible defaults for every optional field, one
// helper per subsystem.
func (c *AppConfig) ApplyDefaults() {
	if c == nil {
		return
	}
	c.applySensorDefaults()
	c.applyTransportDefaults()
	c.applyAlarmDefaults()
	c.applyWebhookDefaults()
}

func (c *AppConfig) applySensorDefaults() {
	if len(c.Sensors.ScalarConfigs) == 0 {
		c.Sensors.ScalarConfigs = DefaultScalarSensorConfigs()
	}
}

func (c *AppConfig) applyTransportDefaults() {
	if c.Transport.Host == "" {
		c.Transport.Host = "127.0.0.1"
	}
	if c.Transport.Port == 0 {
		c.Transport.Port = 9000
	}
	if c.Transport.TimeoutS == 0 {
		c.Transport.TimeoutS = 3.0
	}
	if c.Transport.ReconnectDelayS == 0 {
		c.Transport.ReconnectDelayS = 2.0
	}
}

func (c *AppConfig) applyAlarmDefaults() {
	if c.Alarms.ValueEps == 0 {
		c.Alarms.ValueEps = 0.5
	}
	if c.Alarms.FtirPeakShift != nil && c.Alarms.FtirPeakShift.SearchWindowNm == 0 {
		c.Alarms.FtirPeakShift.SearchWindowNm = 12.0
	}
	if c.Alarms.TempDiff != nil && c.Alarms.TempDiff.MaxDelta == 0 {
		c.Alarms.TempDiff.MaxDelta = 3.0
	}
}

func (c *AppConfig) applyWebhookDefaults() {
	if c.Webhook.TimeoutS == 0 {
		c.Webhook.TimeoutS = 2.0
	}
}

// DefaultScalarSensorConfigs mirrors the original deployment's hardcoded
// sensor registry, used when the YAML config omits sensors.scalar_configs.
func DefaultScalarSensorConfigs() []ScalarSensorConfig {
	return []ScalarSensorConfig{
		{Name: "TempLowerMSP", Units: "C", LowLimit: 10, HighLimit: 80},
		{Name: "TempUpperMSP", Units: "C", LowLimit: 10, HighLimit: 80},
		{Name: "Pressure", Units: "bar", LowLimit: 1.0, HighLimit: 10.0},
		{Name: "Vibration", Units: "mm/s", LowLimit: 0.0, HighLimit: 8.0},
	}
}

// Validate performs comprehensive validation of the configuration tree,
// delegating to one helper per subsystem.
func (c *AppConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("config: configuration cannot be nil")
	}
	if err := c.validateSensors(); err != nil {
		return fmt.Errorf("sensors: %w", err)
	}
	if err := c.validateTransport(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	if err := c.validateAlarms(); err != nil {
		return fmt.Errorf("alarms: %w", err)
	}
	if err := c.validateWebhook(); err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	return nil
}

func (c *AppConfig) validateSensors() error {
	seen := make(map[string]bool, len(c.Sensors.ScalarConfigs))
	for _, s := range c.Sensors.ScalarConfigs {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("scalar sensor config missing name")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate scalar sensor config name %q", s.Name)
		}
		seen[s.Name] = true
		if s.LowLimit > s.HighLimit {
			return fmt.Errorf("sensor %q: low_limit (%v) exceeds high_limit (%v)", s.Name, s.LowLimit, s.HighLimit)
		}
	}
	return nil
}

func (c *AppConfig) validateTransport() error {
	if strings.TrimSpace(c.Transport.Host) == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if c.Transport.Port <= 0 || c.Transport.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Transport.Port)
	}
	if c.Transport.TimeoutS <= 0 {
		return fmt.Errorf("timeout_s must be positive: %v", c.Transport.TimeoutS)
	}
	if c.Transport.ReconnectDelayS <= 0 {
		return fmt.Errorf("reconnect_delay_s must be positive: %v", c.Transport.ReconnectDelayS)
	}
	return nil
}

func (c *AppConfig) validateAlarms() error {
	if c.Alarms.ValueEps < 0 {
		return fmt.Errorf("value_eps cannot be negative: %v", c.Alarms.ValueEps)
	}
	if td := c.Alarms.TempDiff; td != nil {
		if td.SensorLower == "" || td.SensorUpper == "" {
			return fmt.Errorf("temp_diff: sensor_lower and sensor_upper are required")
		}
		if td.MaxDelta <= 0 {
			return fmt.Errorf("temp_diff: max_delta must be positive: %v", td.MaxDelta)
		}
	}
	if ftir := c.Alarms.FtirPeakShift; ftir != nil {
		if ftir.SensorName == "" {
			return fmt.Errorf("ftir_peak_shift: sensor_name is required")
		}
		if len(ftir.ExpectedPeaksNm) != len(ftir.MaxAllowedShiftNm) {
			return fmt.Errorf("ftir_peak_shift: expected_peaks_nm (%d) and max_allowed_shift_nm (%d) length mismatch", len(ftir.ExpectedPeaksNm), len(ftir.MaxAllowedShiftNm))
		}
		if ftir.SearchWindowNm <= 0 {
			return fmt.Errorf("ftir_peak_shift: search_window_nm must be positive: %v", ftir.SearchWindowNm)
		}
		if len(ftir.AxisNm) > 0 && ftir.RequireLengthMatch {
			for _, nm := range ftir.AxisNm {
				if nm <= 0 {
					return fmt.Errorf("ftir_peak_shift: axis_nm entries must be positive wavelengths")
				}
			}
		}
	}
	return nil
}

func (c *AppConfig) validateWebhook() error {
	if strings.TrimSpace(c.Webhook.URL) == "" {
		return fmt.Errorf("url is required")
	}
	if c.Webhook.TimeoutS <= 0 {
		return fmt.Errorf("timeout_s must be positive: %v", c.Webhook.TimeoutS)
	}
	return nil
}
