package config

import (
	"time"

	"github.com/kalambet/rankd/internal/scoring"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Scoring ScoringConfig
}

type ServerConfig struct {
	Port int
	// AuthToken protects the HTTP API. Empty disables authentication,
	// which is the expected mode for localhost-only deployments.
	AuthToken string
}

type StorageConfig struct {
	DataDir string
}

// ScoringConfig mirrors scoring.Coefficients in config-file-friendly units
// (durations in days).
type ScoringConfig struct {
	Alpha float64
	Beta  float64
	Gamma float64
	Delta float64

	A1 float64
	A2 float64
	A3 float64
	A4 float64
	A5 float64
	A6 float64

	HalfLifeDays        float64
	RecencyHalfLifeDays float64
	SimilarityThreshold float64
	TransferLimit       int
	MinDwellSamples     int

	CrossWorkspace bool
}

func defaults() Config {
	sc := scoring.Defaults()
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Scoring: ScoringConfig{
			Alpha: sc.Alpha,
			Beta:  sc.Beta,
			Gamma: sc.Gamma,
			Delta: sc.Delta,

			A1: sc.A1,
			A2: sc.A2,
			A3: sc.A3,
			A4: sc.A4,
			A5: sc.A5,
			A6: sc.A6,

			HalfLifeDays:        sc.HalfLife.Hours() / 24,
			RecencyHalfLifeDays: sc.RecencyHalfLife.Hours() / 24,
			SimilarityThreshold: sc.SimilarityThreshold,
			TransferLimit:       sc.TransferLimit,
			MinDwellSamples:     sc.MinDwellSamples,
		},
	}
}

// Load reads configuration from the platform-native backend and applies
// environment overrides.
//
// On macOS the backend is UserDefaults (domain: com.rankd.app).
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/rankd/config.json.
//
// Environment variables (RANKD_*) override backend values on all platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Coefficients converts the scoring section into the engine's calibration.
func (c Config) Coefficients() scoring.Coefficients {
	day := 24 * time.Hour
	return scoring.Coefficients{
		Alpha: c.Scoring.Alpha,
		Beta:  c.Scoring.Beta,
		Gamma: c.Scoring.Gamma,
		Delta: c.Scoring.Delta,

		A1: c.Scoring.A1,
		A2: c.Scoring.A2,
		A3: c.Scoring.A3,
		A4: c.Scoring.A4,
		A5: c.Scoring.A5,
		A6: c.Scoring.A6,

		HalfLife:            time.Duration(c.Scoring.HalfLifeDays * float64(day)),
		RecencyHalfLife:     time.Duration(c.Scoring.RecencyHalfLifeDays * float64(day)),
		SimilarityThreshold: c.Scoring.SimilarityThreshold,
		TransferLimit:       c.Scoring.TransferLimit,
		MinDwellSamples:     c.Scoring.MinDwellSamples,
	}
}
