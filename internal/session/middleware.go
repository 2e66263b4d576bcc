package session

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/hanko-field/storefront/internal/cart"
	"github.com/hanko-field/storefront/internal/platform/httpx"
	"github.com/hanko-field/storefront/internal/platform/observability"
	"github.com/hanko-field/storefront/internal/platform/requestctx"
)

type workspaceContextKey struct{}

// WithWorkspace stores ws on the context.
func WithWorkspace(ctx context.Context, ws *Workspace) context.Context {
	return context.WithValue(ctx, workspaceContextKey{}, ws)
}

// WorkspaceFromContext returns the workspace placed by Middleware.
func WorkspaceFromContext(ctx context.Context) (*Workspace, bool) {
	ws, ok := ctx.Value(workspaceContextKey{}).(*Workspace)
	return ws, ok && ws != nil
}

// Middleware resolves the shopper's session cookie, locks the matching workspace for the
// duration of the request and exposes it (and its cart) on the request context.
func Middleware(manager *Manager, registry *Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := requestctx.Logger(ctx)

			data, fresh := manager.Load(r)
			if fresh {
				if err := manager.Save(w, data); err != nil {
					logger.Error("session cookie save failed", zap.Error(err))
					httpx.WriteError(ctx, w, httpx.NewError("session_unavailable", "session could not be started", http.StatusInternalServerError))
					return
				}
			}

			ws, release, err := registry.Acquire(ctx, data.ID)
			if err != nil {
				logger.Error("workspace unavailable", zap.Error(err))
				httpx.WriteError(ctx, w, httpx.NewError("session_unavailable", "session could not be loaded", http.StatusInternalServerError))
				return
			}
			defer release()

			logger = logger.With(zap.String("session_id", observability.SanitizeSessionID(data.ID)))
			ctx = requestctx.WithLogger(ctx, logger)
			ctx = requestctx.WithSessionID(ctx, data.ID)
			ctx = WithWorkspace(ctx, ws)
			ctx = cart.WithStore(ctx, ws.Cart())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
