package config

import (
	"fmt"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Sim    SimConfig    `mapstructure:"sim"`
	Client ClientConfig `mapstructure:"client"`
}

type ServerConfig struct {
	Name             string `mapstructure:"name"`
	Listen           string `mapstructure:"listen"`
	TickRate         int    `mapstructure:"tick_rate"`
	Version          string `mapstructure:"version"`
	DisconnectPolicy string `mapstructure:"disconnect_policy"`
}

type SimConfig struct {
	MoveSpeed       float64 `mapstructure:"move_speed"`
	LookSensitivity float64 `mapstructure:"look_sensitivity"`
}

type ClientConfig struct {
	PredictionDepth    int     `mapstructure:"prediction_depth"`
	CorrectionWindowMs int     `mapstructure:"correction_window_ms"`
	ToleranceUnits     float64 `mapstructure:"tolerance_units"`
	InputLead          int     `mapstructure:"input_lead"`
	PlayerName         string  `mapstructure:"player_name"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "netplay host")
	v.SetDefault("server.listen", ":7777")
	v.SetDefault("server.tick_rate", 60)
	v.SetDefault("server.version", "1")
	v.SetDefault("server.disconnect_policy", "despawn")

	v.SetDefault("sim.move_speed", 15.0)
	v.SetDefault("sim.look_sensitivity", 2.0)

	v.SetDefault("client.prediction_depth", 128)
	v.SetDefault("client.correction_window_ms", 100)
	v.SetDefault("client.tolerance_units", 0.001)
	v.SetDefault("client.input_lead", 2)
	v.SetDefault("client.player_name", "player")
}

// Load reads the named YAML file, or defaults when path is empty. Missing
// keys fall back to defaults either way.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}
