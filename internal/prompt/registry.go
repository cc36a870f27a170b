package prompt

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/webpilot/internal/errdefs"
	"github.com/haasonsaas/webpilot/internal/observability"
)

// Registry holds the prompt templates. Built-ins are always present;
// override files shadow them by name and drop back out when removed.
type Registry struct {
	overrideDir   string
	logger        *observability.Logger
	watchDebounce time.Duration

	mu        sync.RWMutex
	templates map[string]Template

	watchMu     sync.Mutex
	watcher     *fsnotify.Watcher
	watchCancel context.CancelFunc
	watchWg     sync.WaitGroup
}

// RegistryOptions configures the registry.
type RegistryOptions struct {
	// OverrideDir is an optional directory of *.yaml template files that
	// shadow built-ins by name.
	OverrideDir string
	// WatchDebounce collapses bursts of file events into one reload.
	// Zero means 250ms.
	WatchDebounce time.Duration
	Logger        *observability.Logger
}

// NewRegistry builds a registry seeded with the built-in templates and any
// overrides found in opts.OverrideDir.
func NewRegistry(opts RegistryOptions) (*Registry, error) {
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.LogConfig{})
	}
	if opts.WatchDebounce <= 0 {
		opts.WatchDebounce = 250 * time.Millisecond
	}
	r := &Registry{
		overrideDir:   opts.OverrideDir,
		logger:        opts.Logger,
		watchDebounce: opts.WatchDebounce,
		templates:     make(map[string]Template),
	}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload rebuilds the template set from built-ins plus override files.
func (r *Registry) Reload() error {
	merged := make(map[string]Template)
	for _, tmpl := range builtins() {
		merged[tmpl.Name] = tmpl
	}

	if r.overrideDir != "" {
		overrides, err := loadOverrides(r.overrideDir)
		if err != nil {
			return err
		}
		for name, tmpl := range overrides {
			merged[name] = tmpl
		}
	}

	r.mu.Lock()
	r.templates = merged
	r.mu.Unlock()
	return nil
}

// Get returns a template by name.
func (r *Registry) Get(name string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tmpl, found := r.templates[name]
	return tmpl, found
}

// Names returns all template names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Register adds or replaces a template at runtime.
func (r *Registry) Register(tmpl Template) error {
	if tmpl.Name == "" {
		return errdefs.Configuration("prompts.template", "template name is required")
	}
	if tmpl.User == "" {
		return errdefs.Configuration("prompts.template", fmt.Sprintf("template %q has no user prompt", tmpl.Name))
	}
	r.mu.Lock()
	r.templates[tmpl.Name] = tmpl
	r.mu.Unlock()
	return nil
}

// Watch reloads the registry whenever the override directory changes.
// Reload errors keep the previous template set. No-op without an override
// directory.
func (r *Registry) Watch(ctx context.Context) error {
	if r.overrideDir == "" {
		return nil
	}

	r.watchMu.Lock()
	if r.watcher != nil {
		r.watchMu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		r.watchMu.Unlock()
		return err
	}
	if err := watcher.Add(r.overrideDir); err != nil {
		_ = watcher.Close()
		r.watchMu.Unlock()
		return err
	}
	r.watcher = watcher
	watchCtx, cancel := context.WithCancel(ctx)
	r.watchCancel = cancel
	r.watchMu.Unlock()

	r.watchWg.Add(1)
	go r.watchLoop(watchCtx, watcher)
	return nil
}

// Close stops the watcher if one is running.
func (r *Registry) Close() error {
	r.watchMu.Lock()
	if r.watchCancel != nil {
		r.watchCancel()
		r.watchCancel = nil
	}
	watcher := r.watcher
	r.watcher = nil
	r.watchMu.Unlock()

	if watcher != nil {
		_ = watcher.Close()
	}
	r.watchWg.Wait()
	return nil
}

func (r *Registry) watchLoop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer r.watchWg.Done()

	// Editors fire bursts of events per save; collapse them.
	var mu sync.Mutex
	var timer *time.Timer
	scheduleReload := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(r.watchDebounce, func() {
			if err := r.Reload(); err != nil {
				r.logger.Warn(ctx, "template reload failed", "error", err)
				return
			}
			r.logger.Info(ctx, "templates reloaded", "dir", r.overrideDir)
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case event, open := <-watcher.Events:
			if !open {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				scheduleReload()
			}
		case err, open := <-watcher.Errors:
			if !open {
				return
			}
			r.logger.Warn(ctx, "template watch error", "error", err)
		}
	}
}

func loadOverrides(dir string) (map[string]Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errdefs.Configuration("prompts.template_dir", fmt.Sprintf("read %s: %v", dir, err))
	}

	overrides := make(map[string]Template)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errdefs.Configuration("prompts.template_dir", fmt.Sprintf("read %s: %v", path, err))
		}

		var tmpl Template
		if err := yaml.Unmarshal(raw, &tmpl); err != nil {
			return nil, errdefs.Configuration("prompts.template_dir", fmt.Sprintf("parse %s: %v", path, err))
		}
		if tmpl.Name == "" {
			tmpl.Name = strings.TrimSuffix(entry.Name(), ext)
		}
		if tmpl.User == "" {
			return nil, errdefs.Configuration("prompts.template_dir", fmt.Sprintf("template %s has no user prompt", path))
		}
		overrides[tmpl.Name] = tmpl
	}
	return overrides, nil
}
