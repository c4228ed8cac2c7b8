package fmclient

import (
	"context"
	"net/http"

	"github.com/fivetwenty-io/fmdata/pkg/fmdata"
)

// EndSession wraps a handler so the Data API session is closed once the
// handler returns. Clients that cache their session are left logged in.
func EndSession(client fmdata.SessionClient, logger fmdata.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = fmdata.NopLogger{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)

			if client.SessionCached() {
				return
			}

			// The request context may already be cancelled by the time the handler returns.
			err := client.Disconnect(context.WithoutCancel(r.Context()))
			if err != nil {
				logger.Warn("failed to end FileMaker session", map[string]interface{}{
					"path":  r.URL.Path,
					"error": err.Error(),
				})
			}
		})
	}
}
