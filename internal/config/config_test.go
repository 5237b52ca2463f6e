package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "run.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("writing fixture config: %v", err)
	}
	return path
}

func TestLoadRunConfig_ValidGillespieConfig(t *testing.T) {
	path := writeConfig(t, `
mode = "gillespie"
gamma = 0.1
kernel = "collective"
t_min = 0
t_max = 10
initial_infecteds = ["a", "b"]

[tau]
2 = 0.2
3 = 0.05
`)
	cfg, err := LoadRunConfig(path)
	if err != nil {
		t.Fatalf("unexpected error loading config: %v", err)
	}
	if cfg.Mode != "gillespie" {
		t.Errorf("expected mode gillespie, got %s", cfg.Mode)
	}
	tau, err := cfg.TauBySize()
	if err != nil {
		t.Fatalf("unexpected error converting tau: %v", err)
	}
	if tau[2] != 0.2 || tau[3] != 0.05 {
		t.Errorf("expected tau {2:0.2, 3:0.05}, got %v", tau)
	}
}

func TestLoadRunConfig_RejectsUnknownMode(t *testing.T) {
	path := writeConfig(t, `mode = "bogus"`)
	if _, err := LoadRunConfig(path); err == nil {
		t.Errorf("expected an error loading a config with an unrecognized mode, got none")
	}
}

func TestLoadRunConfig_RejectsConflictingInitialCondition(t *testing.T) {
	path := writeConfig(t, `
mode = "discrete"
initial_infecteds = ["a"]
rho = 0.1
`)
	if _, err := LoadRunConfig(path); err == nil {
		t.Errorf("expected an error loading a config with both rho and initial_infecteds set, got none")
	}
}

func TestLoadRunConfig_RejectsNegativeGamma(t *testing.T) {
	path := writeConfig(t, `
mode = "discrete"
gamma = -1
`)
	if _, err := LoadRunConfig(path); err == nil {
		t.Errorf("expected an error loading a config with a negative gamma, got none")
	}
}

func TestRunConfig_BuildKernelDefaultsToCollective(t *testing.T) {
	cfg := &RunConfig{}
	kernel, err := cfg.BuildKernel()
	if err != nil {
		t.Fatalf("unexpected error building the default kernel: %v", err)
	}
	if kernel == nil {
		t.Errorf("expected a non-nil default kernel")
	}
}

func TestRunConfig_BuildKernelRejectsUnknownName(t *testing.T) {
	cfg := &RunConfig{KernelName: "not_a_kernel"}
	if _, err := cfg.BuildKernel(); err == nil {
		t.Errorf("expected an error building an unrecognized kernel, got none")
	}
}

func TestRunConfig_TauBySizeRejectsNonIntegerKey(t *testing.T) {
	cfg := &RunConfig{Tau: map[string]float64{"not_a_size": 0.1}}
	if _, err := cfg.TauBySize(); err == nil {
		t.Errorf("expected an error converting a non-integer tau key, got none")
	}
}

func TestRunConfig_NumInstancesDefaultsToOne(t *testing.T) {
	cfg := &RunConfig{}
	if n := cfg.NumInstances(); n != 1 {
		t.Errorf("expected a default of 1 instance, got %d", n)
	}
	cfg.Instances = 5
	if n := cfg.NumInstances(); n != 5 {
		t.Errorf("expected 5 instances, got %d", n)
	}
}

func TestLoadRunConfig_RejectsUnknownCompartments(t *testing.T) {
	path := writeConfig(t, `
mode = "gillespie"
compartments = "seir"
`)
	if _, err := LoadRunConfig(path); err == nil {
		t.Errorf("expected an error loading a config with an unrecognized compartments value, got none")
	}
}
