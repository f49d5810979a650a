package transcoder

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"sync"

	"vidproc/logger"
	"vidproc/models"
)

// Engine turns the video at input into output according to profile.
// Implementations do not retry and do not inspect the files.
type Engine interface {
	Transform(ctx context.Context, input, output string, profile models.TranscodeProfile) error
}

// EngineFunc adapts a plain function to Engine.
type EngineFunc func(ctx context.Context, input, output string, profile models.TranscodeProfile) error

func (f EngineFunc) Transform(ctx context.Context, input, output string, profile models.TranscodeProfile) error {
	return f(ctx, input, output, profile)
}

var (
	registry   = map[string]Engine{}
	registryMu sync.RWMutex
)

// Register adds an engine if the command it shells out to exists, logs status.
// An empty cmdName registers unconditionally.
func Register(name, cmdName string, engine Engine) bool {
	if cmdName != "" {
		if _, err := exec.LookPath(cmdName); err != nil {
			logger.Warnf("engine [%s] skipped: command '%s' not found in PATH", name, cmdName)
			return false
		}
	}
	registryMu.Lock()
	registry[name] = engine
	registryMu.Unlock()
	logger.Debugf("engine [%s] registered (command: %s)", name, cmdName)
	return true
}

// Get looks an engine up by name.
func Get(name string) (Engine, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := registry[name]
	return e, ok
}

// Names lists the registered engines, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RegisterDefaults registers the ffmpeg engine (when ffmpegBin resolves) and
// the always-available copy engine.
func RegisterDefaults(ffmpegBin string) {
	Register("ffmpeg", ffmpegBin, NewFFmpeg(ffmpegBin))
	Register("copy", "", EngineFunc(Copy))
}

// Resolve returns the engine called name or an error listing what is available.
func Resolve(name string) (Engine, error) {
	if e, ok := Get(name); ok {
		return e, nil
	}
	return nil, fmt.Errorf("transcode engine %q not available (registered: %v)", name, Names())
}
