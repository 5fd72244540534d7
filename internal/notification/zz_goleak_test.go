package notification

import (
	"testing"

	"go.uber.org/goleak"

	"github.com/tkoskin/headsup/internal/conf"
)

func TestMain(m *testing.M) {
	// Pin settings so logger construction never reads config from disk.
	settings := &conf.Settings{}
	settings.Main.Name = "HeadsUp"
	settings.Main.Log = conf.LogConfig{Rotation: conf.RotationSize}
	conf.SetSettings(settings)

	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("testing.(*T).Run"),
		goleak.IgnoreTopFunction("runtime.gopark"),
		goleak.IgnoreTopFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"),
	)
}
