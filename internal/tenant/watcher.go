package tenant

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watch reloads tenants when their config files change on disk. Rapid
// successive writes (editors, rsync) are debounced per file. Blocks until
// ctx is canceled.
func (r *Registry) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(r.dir); err != nil {
		return err
	}
	log.Info().Str("dir", r.dir).Msg("Tenant config watcher started")

	const debounce = 500 * time.Millisecond
	lastSeen := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Tenant config watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Remove) {
				continue
			}
			name := filepath.Base(event.Name)
			if !strings.HasSuffix(name, ".json") {
				continue
			}
			id := strings.TrimSuffix(name, ".json")

			if event.Op.Has(fsnotify.Remove) {
				r.Invalidate(id)
				log.Info().Str("tenant", id).Msg("Tenant config removed")
				continue
			}

			now := time.Now()
			if now.Sub(lastSeen[id]) < debounce {
				continue
			}
			lastSeen[id] = now

			if _, err := r.Reload(ctx, id); err != nil {
				log.Warn().Err(err).Str("tenant", id).Msg("Tenant reload failed, previous config stays live")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("Tenant config watcher error")
		}
	}
}
