package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/bkmeta/internal/httpserver/deps"
	"github.com/MrSnakeDoc/bkmeta/internal/logger"
)

// trigger sends on ch without blocking. A nil channel never fires.
func trigger(ch chan struct{}) bool {
	if ch == nil {
		return false
	}
	select {
	case ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Reload triggers a manual bookmark reload and a cloud sync
func Reload(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bookmarksTriggered := trigger(d.BookmarkReloadTrigger)
		if bookmarksTriggered {
			d.Logger.Info("manual bookmarks reload triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
		} else if d.BookmarkReloadTrigger != nil {
			d.Logger.Warn("bookmarks reload already in progress",
				logger.String("remote_ip", r.RemoteAddr))
		}

		cloudTriggered := trigger(d.CloudSyncTrigger)
		if cloudTriggered {
			d.Logger.Info("manual cloud sync triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
		} else if d.CloudSyncTrigger != nil {
			d.Logger.Warn("cloud sync already in progress",
				logger.String("remote_ip", r.RemoteAddr))
		}

		if bookmarksTriggered || cloudTriggered {
			w.WriteHeader(http.StatusAccepted)
			if _, err := w.Write([]byte("✅ Reload triggered successfully\n")); err != nil {
				d.Logger.Debug("failed to write response", logger.Error(err))
			}
			return
		}
		w.WriteHeader(http.StatusTooManyRequests)
		if _, err := w.Write([]byte("⏳ Reload already in progress, please wait\n")); err != nil {
			d.Logger.Debug("failed to write response", logger.Error(err))
		}
	}
}
