package config

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/dmerejkowsky/libqi/pkg/logging"
	"github.com/dmerejkowsky/libqi/pkg/signal"
	"github.com/dmerejkowsky/libqi/pkg/signature"
	"github.com/dmerejkowsky/libqi/pkg/value"
)

// Watcher re-parses a config file whenever it changes and announces the
// new configuration through a qi signal, so in-process subscribers get
// reloads the same way they get any other event.
type Watcher struct {
	path    string
	fsw     *fsnotify.Watcher
	changed *signal.Signal
	log     *logging.Logger
	stop    chan struct{}
	done    chan struct{}

	current NodeConfig
}

// Watch starts watching path. The emitted signal carries the config file
// path as its single string parameter; subscribers re-Load on delivery.
func Watch(path string, log *logging.Logger) (*Watcher, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors replace files instead of writing in
	// place, which drops the watch on the file itself.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}
	if log == nil {
		log = logging.Default()
	}
	w := &Watcher{
		path:    path,
		fsw:     fsw,
		changed: signal.New(signature.FromKind(signature.KindString)),
		log:     log,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		current: cfg,
	}
	go w.run()
	return w, nil
}

// Config returns the configuration loaded at start.
func (w *Watcher) Config() NodeConfig { return w.current }

// Changed returns the signal triggered on every successful reload.
func (w *Watcher) Changed() *signal.Signal { return w.changed }

// Close stops the watcher.
func (w *Watcher) Close() {
	close(w.stop)
	w.fsw.Close()
	<-w.done
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if _, err := Load(w.path); err != nil {
				w.log.Warn("config", "ignoring invalid config reload", map[string]interface{}{
					"path": w.path, "error": err.Error(),
				})
				continue
			}
			w.changed.Trigger([]value.Value{value.String(w.path)})
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("config", "watch error", map[string]interface{}{"error": err.Error()})
		}
	}
}
