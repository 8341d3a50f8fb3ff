package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// contextKey keeps the user id out of reach of other packages' context values.
type contextKey string

const (
	userIDKey contextKey = "userID"
	slotKey   contextKey = "callerSlot"
)

var errNoBearer = errors.New("auth: no bearer token")

// UnauthorizedMessage is shown whenever a request needs a user and has none.
const UnauthorizedMessage = "Access unauthorized."

// RequireAuth rejects requests without a valid "Authorization: Bearer" token
// with a 401 JSON body. Accepted requests carry the user id in their context.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := extractUserID(r, tokens)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="warbler"`)
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "unauthorized",
					"message": UnauthorizedMessage,
				})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// OptionalAuth attaches the user id when a valid token is present and lets
// anonymous requests through untouched.
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if userID, err := extractUserID(r, tokens); err == nil {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithUserID returns a copy of ctx carrying userID. The session gate uses it
// too, so handlers read the caller the same way for cookie and bearer auth.
// It also records userID in the slot TrackCaller installed, if any.
func WithUserID(ctx context.Context, userID string) context.Context {
	if slot, ok := ctx.Value(slotKey).(*string); ok {
		*slot = userID
	}
	return context.WithValue(ctx, userIDKey, userID)
}

// TrackCaller installs a slot that later WithUserID calls on derived
// contexts write to. Outer middleware uses the returned func to learn the
// caller after the handler chain has run; it returns "" for anonymous
// requests.
func TrackCaller(ctx context.Context) (context.Context, func() string) {
	slot := new(string)
	return context.WithValue(ctx, slotKey, slot), func() string { return *slot }
}

// UserIDFromContext returns the authenticated user's id, or ("", false) for
// an anonymous request.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// BearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func extractUserID(r *http.Request, tokens *TokenService) (string, error) {
	token, ok := BearerToken(r)
	if !ok {
		return "", errNoBearer
	}
	return tokens.Validate(token)
}
