package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/pluto-hub/plutohub/internal/account"
	"github.com/pluto-hub/plutohub/internal/apperr"
	"github.com/pluto-hub/plutohub/internal/catalog"
	"github.com/pluto-hub/plutohub/internal/token"
	"github.com/pluto-hub/plutohub/pkg/identity"
)

type contextKey string

const (
	ctxKeyExternalAuthID contextKey = "pluto.externalAuthId"
	ctxKeyGameID         contextKey = "pluto.gameId"
)

// PlutoBearerMiddleware resolves the caller's bearer token against the
// external identity provider, mirrors a never-seen external auth id into
// a local user row (first contact onboarding), and stores the external
// auth id in the request context for handlers to resolve into a user.
func PlutoBearerMiddleware(identityClient *identity.Client, accounts account.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				writeAppError(w, apperr.Unauthorized("missing or invalid Authorization header"))
				return
			}

			result, err := identityClient.VerifyBearer(r.Context(), parts[1])
			if err != nil {
				writeAppError(w, apperr.InvalidToken("bearer token does not verify"))
				return
			}

			if _, err := accounts.CreateIfAbsent(r.Context(), result.ExternalAuthID, result.DisplayName); err != nil {
				writeAppError(w, apperr.Internal("account onboarding failed"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyExternalAuthID, result.ExternalAuthID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// PlutoGameMACMiddleware verifies the X-Game-Id / X-Pluto-Signature pair
// a game backend must present on contract-execution calls: the
// signature is a keyed MAC over the literal request body bytes, using
// the secret registered for that game in the catalog.
func PlutoGameMACMiddleware(cat catalog.Store) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gameID := r.Header.Get("X-Game-Id")
			sig := r.Header.Get("X-Pluto-Signature")
			if gameID == "" || sig == "" {
				writeAppError(w, apperr.Unauthorized("missing or invalid Authorization header"))
				return
			}

			g, err := cat.FindGameByID(r.Context(), gameID)
			if err != nil {
				writeAppError(w, apperr.InvalidSignature("game signature does not verify"))
				return
			}
			if !g.IsActive {
				writeAppError(w, apperr.GameNotActive(gameID))
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				writeAppError(w, apperr.Validation("unreadable request body", nil))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			if !token.VerifyGameMAC([]byte(g.ClientSecret), body, sig) {
				writeAppError(w, apperr.InvalidSignature("game signature does not verify"))
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyGameID, gameID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func externalAuthIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKeyExternalAuthID).(string)
	return v, ok
}
