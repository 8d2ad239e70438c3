package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/taleforge/taleforge/internal/domain"
	domainerrors "github.com/taleforge/taleforge/internal/errors"
	"github.com/taleforge/taleforge/internal/service"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// viewerKey is the context key for the authenticated user.
const viewerKey ctxKey = "viewer"

// setViewer stores the authenticated user in context.
func setViewer(ctx context.Context, u domain.UserSummary) context.Context {
	return context.WithValue(ctx, viewerKey, &u)
}

// viewerFrom returns the authenticated user, or nil for anonymous requests.
func viewerFrom(ctx context.Context) *domain.UserSummary {
	u, _ := ctx.Value(viewerKey).(*domain.UserSummary)
	return u
}

// requireViewer returns the authenticated user or a 401.
func requireViewer(ctx context.Context) (*domain.UserSummary, error) {
	u := viewerFrom(ctx)
	if u == nil {
		return nil, domainerrors.Unauthorized("authentication required")
	}
	return u, nil
}

// authMiddleware validates Bearer tokens and stores the user in context.
// Requests without a valid token continue anonymously; operations that need a
// user reject them through requireViewer.
func authMiddleware(auth *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			user, err := auth.Verify(r.Context(), token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(setViewer(r.Context(), user)))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
