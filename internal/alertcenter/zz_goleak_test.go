package alertcenter

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/tkoskin/headsup/internal/conf"
)

// TestMain verifies no goroutines are leaked after tests in this package complete.
func TestMain(m *testing.M) {
	// Pin settings so logger construction never reads config from disk.
	settings := &conf.Settings{}
	settings.Main.Name = "HeadsUp"
	settings.Main.Log = conf.LogConfig{Rotation: conf.RotationSize}
	conf.SetSettings(settings)

	goleak.VerifyTestMain(m,
		// Ignore testing framework goroutines
		goleak.IgnoreTopFunction("testing.(*T).Run"),
		goleak.IgnoreTopFunction("runtime.gopark"),
		// Lumberjack logger rotation goroutine from file logging
		goleak.IgnoreTopFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"),
	)
}
