package automation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/platinummonkey/sprintflow/pkg/observability"
	"gopkg.in/yaml.v3"
)

// RuleFile is the on-disk rule document. JSON files parse too.
type RuleFile struct {
	// IncludeDefaults keeps the built-in rules alongside the file's rules
	IncludeDefaults bool   `yaml:"include_defaults"`
	Rules           []Rule `yaml:"rules"`
}

// LoadRulesFile reads and validates a rule file
func LoadRulesFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return ParseRules(data)
}

// ParseRules decodes a YAML or JSON rule document
func ParseRules(data []byte) ([]Rule, error) {
	var file RuleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	var rules []Rule
	if file.IncludeDefaults {
		rules = append(rules, DefaultRules()...)
	}
	rules = append(rules, file.Rules...)

	for i := range rules {
		if err := rules[i].Compile(); err != nil {
			return nil, err
		}
	}
	return rules, nil
}

// LoadFile installs the rules from path
func (e *Engine) LoadFile(path string) error {
	rules, err := LoadRulesFile(path)
	if err != nil {
		return err
	}
	return e.SetRules(rules)
}

// reloadDebounce coalesces the burst of events editors produce on save
const reloadDebounce = 200 * time.Millisecond

// Watch reloads path into the engine whenever it changes until ctx is done.
// A file that fails to parse is logged and the previous rules stay active.
// The parent directory is watched so atomic rename-on-save is seen.
func (e *Engine) Watch(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve rules path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	logger := observability.FromContext(ctx).WithFields(map[string]interface{}{
		"component": "automation",
		"path":      abs,
	})

	go func() {
		defer watcher.Close()

		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(reloadDebounce)
				} else {
					timer.Reset(reloadDebounce)
				}
				fire = timer.C

			case <-fire:
				fire = nil
				if err := e.LoadFile(abs); err != nil {
					logger.WithError(err).Warn("failed to reload automation rules, keeping previous set")
					continue
				}
				logger.Infof("reloaded %d automation rules", len(e.Rules()))

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("rules watcher error")
			}
		}
	}()

	return nil
}
