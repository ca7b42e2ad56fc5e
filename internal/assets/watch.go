package assets

import (
	"context"
	"log"

	"github.com/fsnotify/fsnotify"
)

// Watch evicts cached addresses whose files under the loader's root change,
// so the next Acquire reloads them. onChange, if set, is called with each
// changed address after the eviction, whether or not it was cached.
// It blocks until ctx is cancelled.
func Watch(ctx context.Context, dir *DirLoader, cache *Cache, onChange func(address string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir.Root()); err != nil {
		return err
	}
	log.Printf("assets: watching %s", dir.Root())

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if address, ok := dir.AddressFor(ev.Name); ok {
				cache.Evict(address)
				if onChange != nil {
					onChange(address)
				}
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("assets: watcher error: %v", err)
		}
	}
}
