// Package config loads energy-life settings from a YAML file and ENERGYLIFE_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/awaistahir/energy-life/internal/engine"
	"github.com/spf13/viper"
)

const envPrefix = "ENERGYLIFE"

// Config is the resolved runtime configuration
type Config struct {
	DBPath     string
	Port       int
	LogLevel   string
	Heuristics engine.Heuristics
	// Tariff holds setting-key overrides layered over the stored tariff settings
	Tariff map[string]string
}

// Dir is the default configuration and data directory
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".energylife"
	}
	return filepath.Join(home, ".energylife")
}

// Load reads cfgFile, or config.yaml from Dir when cfgFile is empty. A missing
// default file is not an error; a missing explicit file is.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(Dir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{
		DBPath:   v.GetString("db"),
		Port:     v.GetInt("port"),
		LogLevel: v.GetString("log_level"),
		Tariff:   make(map[string]string),
	}
	// Unmarshal walks every known key, so nested env overrides are included
	var nested struct {
		Heuristics engine.Heuristics `mapstructure:"heuristics"`
	}
	if err := v.Unmarshal(&nested); err != nil {
		return nil, fmt.Errorf("decoding heuristics: %w", err)
	}
	cfg.Heuristics = nested.Heuristics
	for _, k := range engine.SettingKeys {
		key := "tariff." + k
		if v.IsSet(key) {
			cfg.Tariff[k] = v.GetString(key)
		}
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db", filepath.Join(Dir(), "energylife.db"))
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	h := engine.DefaultHeuristics()
	for key, val := range map[string]any{
		"solar_yield_kwh_per_kw": h.SolarYieldKWhPerKW,
		"solar_self_consumption": h.SolarSelfConsumption,
		"advisor_kwh_per_kw":     h.AdvisorKWhPerKW,
		"advisor_max_kw":         h.AdvisorMaxKW,
		"condo_on_peak_share":    *h.CondoOnPeakShare,
		"house_on_peak_share":    *h.HouseOnPeakShare,
		"days_per_month":         h.DaysPerMonth,
		"weeks_per_month":        h.WeeksPerMonth,
		"baseline_kwh_per_day":   h.BaselineKWhPerDay,
		"max_messages":           h.MaxMessages,
	} {
		v.SetDefault("heuristics."+key, val)
	}

	// tariff overrides have no defaults; bind them so env vars are seen
	for _, k := range engine.SettingKeys {
		_ = v.BindEnv("tariff." + k)
	}
}

// ApplyTariff layers the configured overrides onto t
func (c *Config) ApplyTariff(t engine.TariffSettings) engine.TariffSettings {
	if len(c.Tariff) > 0 {
		t.Apply(c.Tariff)
	}
	return t
}
