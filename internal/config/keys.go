package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "RANKD_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.auth_token", typ: kString, env: "RANKD_AUTH_TOKEN", secret: true,
		apply:   func(cfg *Config, v any) { cfg.Server.AuthToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.AuthToken },
	},
	{
		key: "storage.data_dir", typ: kString, env: "RANKD_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "scoring.alpha", typ: kFloat, env: "RANKD_SCORING_ALPHA",
		apply:   func(cfg *Config, v any) { cfg.Scoring.Alpha = v.(float64) },
		extract: func(cfg Config) any { return cfg.Scoring.Alpha },
	},
	{
		key: "scoring.beta", typ: kFloat, env: "RANKD_SCORING_BETA",
		apply:   func(cfg *Config, v any) { cfg.Scoring.Beta = v.(float64) },
		extract: func(cfg Config) any { return cfg.Scoring.Beta },
	},
	{
		key: "scoring.gamma", typ: kFloat, env: "RANKD_SCORING_GAMMA",
		apply:   func(cfg *Config, v any) { cfg.Scoring.Gamma = v.(float64) },
		extract: func(cfg Config) any { return cfg.Scoring.Gamma },
	},
	{
		key: "scoring.delta", typ: kFloat, env: "RANKD_SCORING_DELTA",
		apply:   func(cfg *Config, v any) { cfg.Scoring.Delta = v.(float64) },
		extract: func(cfg Config) any { return cfg.Scoring.Delta },
	},
	{
		key: "scoring.a1", typ: kFloat, env: "RANKD_SCORING_A1",
		apply:   func(cfg *Config, v any) { cfg.Scoring.A1 = v.(float64) },
		extract: func(cfg Config) any { return cfg.Scoring.A1 },
	},
	{
		key: "scoring.a2", typ: kFloat, env: "RANKD_SCORING_A2",
		apply:   func(cfg *Config, v any) { cfg.Scoring.A2 = v.(float64) },
		extract: func(cfg Config) any { return cfg.Scoring.A2 },
	},
	{
		key: "scoring.a3", typ: kFloat, env: "RANKD_SCORING_A3",
		apply:   func(cfg *Config, v any) { cfg.Scoring.A3 = v.(float64) },
		extract: func(cfg Config) any { return cfg.Scoring.A3 },
	},
	{
		key: "scoring.a4", typ: kFloat, env: "RANKD_SCORING_A4",
		apply:   func(cfg *Config, v any) { cfg.Scoring.A4 = v.(float64) },
		extract: func(cfg Config) any { return cfg.Scoring.A4 },
	},
	{
		key: "scoring.a5", typ: kFloat, env: "RANKD_SCORING_A5",
		apply:   func(cfg *Config, v any) { cfg.Scoring.A5 = v.(float64) },
		extract: func(cfg Config) any { return cfg.Scoring.A5 },
	},
	{
		key: "scoring.a6", typ: kFloat, env: "RANKD_SCORING_A6",
		apply:   func(cfg *Config, v any) { cfg.Scoring.A6 = v.(float64) },
		extract: func(cfg Config) any { return cfg.Scoring.A6 },
	},
	{
		key: "scoring.half_life_days", typ: kFloat, env: "RANKD_SCORING_HALF_LIFE_DAYS",
		apply:   func(cfg *Config, v any) { cfg.Scoring.HalfLifeDays = v.(float64) },
		extract: func(cfg Config) any { return cfg.Scoring.HalfLifeDays },
	},
	{
		key: "scoring.recency_half_life_days", typ: kFloat, env: "RANKD_SCORING_RECENCY_HALF_LIFE_DAYS",
		apply:   func(cfg *Config, v any) { cfg.Scoring.RecencyHalfLifeDays = v.(float64) },
		extract: func(cfg Config) any { return cfg.Scoring.RecencyHalfLifeDays },
	},
	{
		key: "scoring.similarity_threshold", typ: kFloat, env: "RANKD_SCORING_SIMILARITY_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Scoring.SimilarityThreshold = v.(float64) },
		extract: func(cfg Config) any { return cfg.Scoring.SimilarityThreshold },
	},
	{
		key: "scoring.transfer_limit", typ: kInt, env: "RANKD_SCORING_TRANSFER_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Scoring.TransferLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Scoring.TransferLimit },
	},
	{
		key: "scoring.min_dwell_samples", typ: kInt, env: "RANKD_SCORING_MIN_DWELL_SAMPLES",
		apply:   func(cfg *Config, v any) { cfg.Scoring.MinDwellSamples = v.(int) },
		extract: func(cfg Config) any { return cfg.Scoring.MinDwellSamples },
	},
	{
		key: "scoring.cross_workspace", typ: kBool, env: "RANKD_SCORING_CROSS_WORKSPACE",
		apply:   func(cfg *Config, v any) { cfg.Scoring.CrossWorkspace = v.(bool) },
		extract: func(cfg Config) any { return cfg.Scoring.CrossWorkspace },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kFloat:
			v, ok, err := b.GetFloat(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetBool(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
