package plugin

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/simcore/internal/core/entity"
	"github.com/zeusync/simcore/internal/core/ids"
	"github.com/zeusync/simcore/internal/core/observability/log"
)

const moduleExt = ".so"

// Loader owns every registered factory and tracks which component types it
// has activated in the entity manager.
//
// Factory and activation state is touched only from the tick thread; module
// opening in LoadPluginsInDir fans out to worker goroutines but the merge runs
// on the caller.
type Loader struct {
	manager     *entity.Manager
	opener      Opener
	logger      log.Log
	concurrency int

	factories map[ids.StringID]Factory
	active    map[ids.StringID]struct{}
	// activation order, used to tear down in reverse
	activeOrder []ids.StringID
}

type Option func(*Loader)

// WithOpener replaces the native module opener.
func WithOpener(o Opener) Option {
	return func(l *Loader) { l.opener = o }
}

// WithConcurrency bounds how many modules are opened at once.
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

func NewLoader(m *entity.Manager, logger log.Log, opts ...Option) *Loader {
	l := &Loader{
		manager:     m,
		opener:      NativeOpener{},
		logger:      logger.With(log.String("system", "plugin")),
		concurrency: 4,
		factories:   make(map[ids.StringID]Factory),
		active:      make(map[ids.StringID]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type moduleResult struct {
	path      string
	factories []Factory
	err       error
}

// LoadPluginsInDir opens every module in dir and merges the factories they
// export, in file name order. A module that fails to open or lacks the entry
// point is skipped; its error is logged and joined into the returned error.
// The count of merged factories is returned either way.
func (l *Loader) LoadPluginsInDir(ctx context.Context, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, errors.Wrapf(err, "read plugin dir %s", dir)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), moduleExt) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	results := make([]moduleResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			factories, err := l.openModule(path)
			results[i] = moduleResult{path: path, factories: factories, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, errors.Wrap(err, "load plugins")
	}

	var all error
	merged := 0
	for _, r := range results {
		if r.err != nil {
			l.logger.Error("skipping plugin module", log.String("path", r.path), log.Error(r.err))
			all = stderrors.Join(all, r.err)
			continue
		}
		for _, f := range r.factories {
			if f == nil {
				continue
			}
			l.AddFactory(f)
			merged++
		}
		l.logger.Info("plugin module loaded", log.String("path", r.path), log.Int("factories", len(r.factories)))
	}
	return merged, all
}

func (l *Loader) openModule(path string) ([]Factory, error) {
	mod, err := l.opener.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	sym, err := mod.Lookup(EntryPoint)
	if err != nil {
		return nil, errors.Wrapf(ErrNoEntryPoint, "%s: %v", path, err)
	}

	var entry EntryFunc
	switch fn := sym.(type) {
	case func(*[]Factory):
		entry = fn
	case *func(*[]Factory):
		entry = *fn
	default:
		return nil, errors.Wrapf(ErrNoEntryPoint, "%s: symbol has type %T", path, sym)
	}

	var factories []Factory
	entry(&factories)
	return factories, nil
}

// AddFactory registers f under its component type. A later registration for
// the same type replaces the earlier one.
func (l *Loader) AddFactory(f Factory) {
	t := f.Type()
	if prev, ok := l.factories[t]; ok {
		l.logger.Warn("replacing plugin factory",
			log.String("type", t.String()),
			log.String("previous", prev.Name()),
			log.String("factory", f.Name()))
	}
	l.factories[t] = f
}

func (l *Loader) FactoryExists(componentType ids.StringID) bool {
	_, ok := l.factories[componentType]
	return ok
}

// Factory returns the factory registered for componentType.
func (l *Loader) Factory(componentType ids.StringID) (Factory, bool) {
	f, ok := l.factories[componentType]
	return f, ok
}

// Factories lists registered factories sorted by component type name.
func (l *Loader) Factories() []Factory {
	out := make([]Factory, 0, len(l.factories))
	for _, f := range l.factories {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type().String() < out[j].Type().String() })
	return out
}

func (l *Loader) State(componentType ids.StringID) State {
	if _, ok := l.active[componentType]; ok {
		return StateActive
	}
	if _, ok := l.factories[componentType]; ok {
		return StateFactoryRegistered
	}
	return StateUnregistered
}

// StartEntitySystem builds the system for componentType and registers it with
// the manager. Starting an active type, or one whose system was registered
// with the manager by other means, succeeds without doing anything.
func (l *Loader) StartEntitySystem(componentType ids.StringID) error {
	if _, ok := l.active[componentType]; ok {
		return nil
	}
	f, ok := l.factories[componentType]
	if !ok {
		l.logger.Error("no factory for component type", log.String("type", componentType.String()))
		return errors.Wrapf(ErrFactoryNotFound, "%s", componentType)
	}
	if l.manager.HasEntitySystem(componentType) {
		l.logger.Debug("entity system already registered", log.String("type", componentType.String()))
		return nil
	}

	sys, err := f.Create(l.manager)
	if err != nil {
		return errors.Wrapf(err, "create %s from %s", componentType, f.Name())
	}
	if sys.ComponentType() != componentType {
		return errors.Wrapf(ErrTypeMismatch, "%s built %s", f.Name(), sys.ComponentType())
	}
	if err = l.manager.AddEntitySystem(sys); err != nil {
		return err
	}

	l.active[componentType] = struct{}{}
	l.activeOrder = append(l.activeOrder, componentType)
	l.logger.Info("entity system started",
		log.String("type", componentType.String()),
		log.String("factory", f.Name()),
		log.String("version", f.Version()))
	return nil
}

// StartEntitySystems starts each type in order, continuing past failures.
func (l *Loader) StartEntitySystems(componentTypes ...ids.StringID) error {
	var all error
	for _, t := range componentTypes {
		if err := l.StartEntitySystem(t); err != nil {
			all = stderrors.Join(all, err)
		}
	}
	return all
}

// ActiveSystems lists the component types this loader activated, in
// activation order.
func (l *Loader) ActiveSystems() []ids.StringID {
	return append([]ids.StringID(nil), l.activeOrder...)
}

// UnloadAllPlugins removes every active system from the manager, then releases
// every factory. Dynamic modules stay mapped: the Go runtime cannot unload them.
func (l *Loader) UnloadAllPlugins() error {
	var all error
	for i := len(l.activeOrder) - 1; i >= 0; i-- {
		t := l.activeOrder[i]
		if !l.manager.HasEntitySystem(t) {
			continue
		}
		if err := l.manager.RemoveEntitySystem(t); err != nil {
			all = stderrors.Join(all, err)
		}
	}
	l.active = make(map[ids.StringID]struct{})
	l.activeOrder = nil
	l.factories = make(map[ids.StringID]Factory)
	l.logger.Info("plugins unloaded")
	return all
}
