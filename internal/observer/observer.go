// Package observer samples running applications by shelling out to a
// platform command that prints a JSON array of samples. On macOS the default
// is an osascript JXA snippet; other platforms configure their own command.
// Sampling failures are heuristic misses, never fatal.
package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"

	"github.com/user/meetscribe/internal/types"
)

// darwinScript lists running applications with their bundle id, frontmost
// flag, and best-effort front window title.
const darwinScript = `
const se = Application("System Events");
const out = [];
se.processes.whose({backgroundOnly: false})().forEach(p => {
	let title = "";
	try { title = p.windows[0].title(); } catch (e) {}
	let bundle = "";
	try { bundle = p.bundleIdentifier(); } catch (e) {}
	out.push({bundle_id: bundle, name: p.name(), window_title: title, foreground: p.frontmost()});
});
JSON.stringify(out);
`

// Observer runs the sampler command on demand.
type Observer struct {
	command []string
	logger  *slog.Logger
}

var _ types.AppObserver = (*Observer)(nil)

// New creates an observer. An empty command selects the platform default;
// there is no default off macOS and Sample returns an error until one is
// configured.
func New(command []string, logger *slog.Logger) *Observer {
	if len(command) == 0 && runtime.GOOS == "darwin" {
		command = []string{"osascript", "-l", "JavaScript", "-e", darwinScript}
	}
	return &Observer{command: command, logger: logger}
}

// Sample runs the command and parses its JSON output.
func (o *Observer) Sample(ctx context.Context) ([]types.AppSample, error) {
	if len(o.command) == 0 {
		return nil, fmt.Errorf("no sampler command configured for %s", runtime.GOOS)
	}
	cmd := exec.CommandContext(ctx, o.command[0], o.command[1:]...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("sampler command failed: %w", err)
	}
	return parseSamples(out)
}

func parseSamples(data []byte) ([]types.AppSample, error) {
	var samples []types.AppSample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, fmt.Errorf("parse sampler output: %w", err)
	}
	return samples, nil
}
