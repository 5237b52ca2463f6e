package obslog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func TestInit_DefaultLevelIsInfo(t *testing.T) {
	logger := Init(Options{})
	if logger.GetLevel() != zerolog.InfoLevel {
		t.Errorf("expected default log level Info, got %s", logger.GetLevel())
	}
}

func TestInit_VerboseEnablesDebugLevel(t *testing.T) {
	logger := Init(Options{Verbose: true})
	if logger.GetLevel() != zerolog.DebugLevel {
		t.Errorf("expected verbose log level Debug, got %s", logger.GetLevel())
	}
}

func TestInit_WritesToRotatingFileWhenLogFileSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	logger := Init(Options{LogFile: path})
	logger.Info().Str("run_id", "abc").Msg("run started")

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected a log file to be created at %s: %v", path, err)
	}
}
