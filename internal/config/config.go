// Package config loads a TOML run configuration for a hypergraph
// contagion simulation, grounded on EvoEpiConfig's
// parse-then-Validate pattern in evoepi_config.go and
// evoepi_config_loader.go, with environment overrides following
// bbak-mcs-mcp's internal/config.Load.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	hypercontagion "github.com/nwlandry/hypercontagion"
)

// RunConfig is the top-level TOML document describing one simulation
// run. TOML tables cannot key on integers, so Tau is read as a string-
// keyed map and converted to the int-keyed map the drivers expect by
// TauBySize.
type RunConfig struct {
	Mode string `toml:"mode"` // "gillespie", "event_driven", or "discrete"

	HypergraphPath string `toml:"hypergraph_path"`
	Instances      int    `toml:"instances"`    // number of independent realizations to run; defaults to 1
	Compartments   string `toml:"compartments"` // "sir" or "sis"; defaults to "sir"

	Tau          map[string]float64 `toml:"tau"`
	Gamma        float64            `toml:"gamma"`
	KernelName   string             `toml:"kernel"`
	KernelTheta  float64            `toml:"kernel_theta"` // only used by the threshold kernel

	InitialInfecteds []string `toml:"initial_infecteds"`
	Rho              *float64 `toml:"rho"`

	TMin float64 `toml:"t_min"`
	TMax float64 `toml:"t_max"`
	Dt   float64 `toml:"dt"` // only used by the discrete-time driver

	Seed *int64 `toml:"seed"`

	EventLogPath string `toml:"event_log_path"`
	MetricsAddr  string `toml:"metrics_addr"`
	LogPath      string `toml:"log_path"`
	Verbose      bool   `toml:"verbose"`

	validated bool
}

// LoadRunConfig reads and validates a TOML run configuration. Before
// decoding, it loads a .env file from the working directory if present,
// following godotenv's conventional silent-skip-if-missing behavior, so
// the HYPERCONTAGION_SEED, HYPERCONTAGION_EVENT_LOG_PATH and
// HYPERCONTAGION_LOG_PATH overrides can be set there rather than in the
// TOML file itself.
func LoadRunConfig(path string) (*RunConfig, error) {
	_ = godotenv.Load()

	var cfg RunConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, errors.Wrapf(err, "decoding run configuration %s", path)
	}
	applyEnvOverrides(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *RunConfig) {
	if v, ok := os.LookupEnv("HYPERCONTAGION_SEED"); ok {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Seed = &seed
		}
	}
	if v, ok := os.LookupEnv("HYPERCONTAGION_EVENT_LOG_PATH"); ok {
		cfg.EventLogPath = v
	}
	if v, ok := os.LookupEnv("HYPERCONTAGION_LOG_PATH"); ok {
		cfg.LogPath = v
	}
}

// Validate checks cross-field constraints the way
// EvoEpiConfig.Validate checks its model sections, failing fast on the
// same conflicts the drivers themselves would reject so a bad run
// configuration is caught before any simulation state is built.
func (c *RunConfig) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "gillespie", "event_driven", "discrete":
	default:
		return errors.Errorf("hypercontagion: unrecognized mode %q, want gillespie, event_driven, or discrete", c.Mode)
	}
	switch strings.ToLower(c.Compartments) {
	case "", "sir", "sis":
	default:
		return errors.Errorf("hypercontagion: unrecognized compartments %q, want sir or sis", c.Compartments)
	}
	if c.Gamma < 0 {
		return errors.Wrap(hypercontagion.ErrNegativeRate, "gamma")
	}
	for size, rate := range c.Tau {
		if rate < 0 {
			return errors.Wrapf(hypercontagion.ErrNegativeRate, "tau[%s]", size)
		}
	}
	if len(c.InitialInfecteds) > 0 && c.Rho != nil {
		return hypercontagion.ErrConflictingInitialCondition
	}
	if c.Rho != nil && (*c.Rho < 0 || *c.Rho > 1) {
		return hypercontagion.ErrInvalidRho
	}
	if c.TMax < c.TMin {
		return errors.Errorf("hypercontagion: t_max (%f) must be >= t_min (%f)", c.TMax, c.TMin)
	}
	if strings.EqualFold(c.Mode, "discrete") && c.Dt < 0 {
		return errors.New("hypercontagion: dt must be non-negative")
	}
	c.validated = true
	return nil
}

// NumInstances returns the number of independent realizations to run,
// following EvoEpiConfig.NumInstances's meaning in evoepi_config.go.
// A configuration that omits instances runs exactly once.
func (c *RunConfig) NumInstances() int {
	if c.Instances <= 0 {
		return 1
	}
	return c.Instances
}

// TauBySize converts the TOML string-keyed tau table into the int-keyed
// map the drivers take, e.g. {"2" = 0.1, "3" = 0.05} -> {2: 0.1, 3: 0.05}.
func (c *RunConfig) TauBySize() (map[int]float64, error) {
	out := make(map[int]float64, len(c.Tau))
	for key, rate := range c.Tau {
		size, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, errors.Wrapf(err, "parsing tau key %q as a hyperedge size", key)
		}
		out[size] = rate
	}
	return out, nil
}

// BuildKernel maps KernelName to one of the package's exported
// contagion kernel constructors.
func (c *RunConfig) BuildKernel() (hypercontagion.ContagionKernel, error) {
	switch strings.ToLower(c.KernelName) {
	case "", "collective":
		return hypercontagion.Collective, nil
	case "individual":
		return hypercontagion.Individual, nil
	case "majority_vote":
		return hypercontagion.MajorityVote, nil
	case "size_dependent":
		return hypercontagion.SizeDependent, nil
	case "threshold":
		return hypercontagion.Threshold(c.KernelTheta), nil
	default:
		return nil, errors.Errorf("hypercontagion: unrecognized kernel %q", c.KernelName)
	}
}
