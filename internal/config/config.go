package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Point is a configured world position in degrees.
type Point struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

// ViewRadius is the number of cells rendered around the player on each axis.
type ViewRadius struct {
	Lat int32 `yaml:"lat"`
	Lng int32 `yaml:"lng"`
}

// Game holds all configuration for the game.
type Game struct {
	// Logging
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	// Grid
	Origin   Point   `yaml:"origin"`
	CellSize float64 `yaml:"cell_size"` // degrees

	// Generation
	Seed             string   `yaml:"seed"`
	SpawnProbability float64  `yaml:"spawn_probability"`
	TokenValues      []uint32 `yaml:"token_values"`

	// Rules
	Start             Point      `yaml:"start"`
	InteractionRadius int64      `yaml:"interaction_radius"` // cells, Chebyshev
	VictoryThreshold  uint32     `yaml:"victory_threshold"`
	ViewRadius        ViewRadius `yaml:"view_radius"`

	Persistence Persistence `yaml:"persistence"`
	Movement    Movement    `yaml:"movement"`

	Sound bool `yaml:"sound"`
}

// Persistence backends.
const (
	BackendNone     = "none"
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Persistence selects where snapshots are written.
type Persistence struct {
	Backend      string         `yaml:"backend"`
	File         string         `yaml:"file"`
	Database     DatabaseConfig `yaml:"database"`
	WriteTimeout time.Duration  `yaml:"write_timeout"` // per-save deadline (default: 2s)
}

// Movement sources.
const (
	SourceButtons     = "buttons"
	SourceGeolocation = "geolocation"
)

// Movement selects the initial movement source.
type Movement struct {
	Source       string        `yaml:"source"`
	Feed         string        `yaml:"feed"` // geolocation readings, one "lat,lng" per line
	PollInterval time.Duration `yaml:"poll_interval"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// DefaultGame returns Game config with sensible defaults.
func DefaultGame() Game {
	return Game{
		LogLevel:          "info",
		LogFile:           "gridmerge.log",
		Origin:            Point{Lat: 0, Lng: 0}, // Null Island
		CellSize:          1e-4,
		Seed:              "gridmerge",
		SpawnProbability:  0.10,
		TokenValues:       []uint32{1, 2, 4, 8, 16},
		Start:             Point{Lat: 36.98949379578401, Lng: -122.06277128548504},
		InteractionRadius: 8,
		VictoryThreshold:  2048,
		ViewRadius:        ViewRadius{Lat: 8, Lng: 16},
		Persistence: Persistence{
			Backend:      BackendFile,
			File:         "gridmerge-save.yaml",
			WriteTimeout: 2 * time.Second,
			Database: DatabaseConfig{
				Host:     "127.0.0.1",
				Port:     5432,
				User:     "gridmerge",
				Password: "gridmerge",
				DBName:   "gridmerge",
				SSLMode:  "disable",
			},
		},
		Movement: Movement{
			Source:       SourceButtons,
			PollInterval: time.Second,
		},
		Sound: true,
	}
}

// Validate rejects configurations the game cannot run with.
func (g Game) Validate() error {
	var errs []error

	if !(g.CellSize > 0) {
		errs = append(errs, fmt.Errorf("cell_size must be positive, got %v", g.CellSize))
	}
	if !(g.SpawnProbability >= 0 && g.SpawnProbability <= 1) {
		errs = append(errs, fmt.Errorf("spawn_probability must be within [0, 1], got %v", g.SpawnProbability))
	}
	if len(g.TokenValues) == 0 {
		errs = append(errs, errors.New("token_values must not be empty"))
	}
	for _, v := range g.TokenValues {
		if v == 0 || v&(v-1) != 0 {
			errs = append(errs, fmt.Errorf("token value %d is not a power of two", v))
		}
	}
	if g.VictoryThreshold == 0 {
		errs = append(errs, errors.New("victory_threshold must be positive"))
	}
	if g.InteractionRadius < 0 {
		errs = append(errs, fmt.Errorf("interaction_radius must not be negative, got %d", g.InteractionRadius))
	}
	if g.ViewRadius.Lat < 0 || g.ViewRadius.Lng < 0 {
		errs = append(errs, fmt.Errorf("view_radius must not be negative, got %+v", g.ViewRadius))
	}

	switch g.Persistence.Backend {
	case BackendNone:
	case BackendPostgres:
		if g.Persistence.WriteTimeout <= 0 {
			errs = append(errs, fmt.Errorf("persistence.write_timeout must be positive, got %v", g.Persistence.WriteTimeout))
		}
	case BackendFile:
		if g.Persistence.File == "" {
			errs = append(errs, errors.New("persistence.file is required for the file backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown persistence backend %q", g.Persistence.Backend))
	}

	switch g.Movement.Source {
	case SourceButtons, SourceGeolocation:
	default:
		errs = append(errs, fmt.Errorf("unknown movement source %q", g.Movement.Source))
	}
	if g.Movement.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("movement.poll_interval must be positive, got %v", g.Movement.PollInterval))
	}

	return errors.Join(errs...)
}

// LoadGame loads game config from a YAML file.
// If the file doesn't exist, returns defaults.
func LoadGame(path string) (Game, error) {
	cfg := DefaultGame()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("validating config %s: %w", path, err)
	}

	return cfg, nil
}
