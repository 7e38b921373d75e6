package filerepo

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Watch calls onChange whenever the token file is written, replaced or
// removed. Changes made through this repo are reported too; callers compare
// against the token they hold. The returned stop function blocks until the
// watching goroutine has exited.
func (r *FileRepo) Watch(onChange func()) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create watcher")
	}
	// Watch the directory: Set replaces the file via rename, which drops a
	// watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		_ = watcher.Close()
		return nil, errors.Wrap(err, "failed to add token directory to watcher")
	}

	stop := make(chan struct{})
	done := make(chan error)
	go func() {
		errs := watcher.Errors
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					done <- nil
					return
				}
				if filepath.Clean(event.Name) != r.path {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
					event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					onChange()
				}
			case err, ok := <-errs:
				if !ok {
					errs = nil
					continue
				}
				log.Err(err).Str("path", r.path).Msg("Token file watcher error")
			case <-stop:
				done <- watcher.Close()
				return
			}
		}
	}()

	var stopped bool
	return func() error {
		if stopped {
			return nil
		}
		stopped = true
		close(stop)
		return <-done
	}, nil
}
