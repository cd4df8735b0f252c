// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// Reloads the config file into a ConfigStore when it changes on disk.

package control

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/momentics/hioload-ev/internal/log"
)

// Watcher follows one config file.
type Watcher struct {
	path  string
	store *ConfigStore
	fw    *fsnotify.Watcher
	done  chan struct{}
	wg    sync.WaitGroup
	log   zerolog.Logger
	once  sync.Once
}

// WatchConfig starts watching path. The parent directory is watched so that
// editors replacing the file by rename are noticed.
func WatchConfig(path string, store *ConfigStore) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, err
	}
	w := &Watcher{
		path:  abs,
		store: store,
		fw:    fw,
		done:  make(chan struct{}),
		log:   log.WithComponent("control").With().Str("config", abs).Logger(),
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("config watcher error")
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadConfig(w.path)
	if err != nil {
		// keep the previous snapshot on a half-written or invalid file
		w.log.Warn().Err(err).Msg("config reload rejected")
		return
	}
	w.log.Info().Msg("config reloaded")
	w.store.SetConfig(cfg)
}

// Close stops the watcher and waits for its goroutine.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.fw.Close()
		w.wg.Wait()
	})
	return err
}
