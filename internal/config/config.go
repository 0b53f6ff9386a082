// Package config handles viewer configuration loading and management.
package config

// Config holds all viewer settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Data     DataConfig     `yaml:"data"`
	Game     GameConfig     `yaml:"game"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
	FPSLimit   int  `yaml:"fps_limit"`
}

// DataConfig holds game data file paths.
type DataConfig struct {
	MapNX string `yaml:"map_nx"` // Path to the Map.nx container
	Watch bool   `yaml:"watch"`  // Reload the map when the container changes
}

// GameConfig holds viewer behaviour.
type GameConfig struct {
	StartMap      string `yaml:"start_map"` // Empty picks a random map
	CameraSpeed   int    `yaml:"camera_speed"`
	ShowFootholds bool   `yaml:"show_footholds"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
			FPSLimit:   0,
		},
		Data: DataConfig{
			MapNX: "Map.nx",
		},
		Game: GameConfig{
			StartMap:    "",
			CameraSpeed: 4,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
