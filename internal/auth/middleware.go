package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"

	"ms-grouporder/internal/apperr"
	"ms-grouporder/internal/logger"
	"ms-grouporder/internal/utils"
)

type contextKey string

const userIDKey contextKey = "user_id"

// Verifier validates a bearer token and returns its subject.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (string, error)
}

// OIDCVerifier checks tokens against an OpenID Connect issuer.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, issuer string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	// SkipClientIDCheck → tokens from any client of the realm are accepted
	v := provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	return &OIDCVerifier{verifier: v}, nil
}

func (o *OIDCVerifier) Verify(ctx context.Context, rawToken string) (string, error) {
	idToken, err := o.verifier.Verify(ctx, rawToken)
	if err != nil {
		return "", err
	}
	var claims struct {
		Sub string `json:"sub"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return "", fmt.Errorf("failed to parse claims: %w", err)
	}
	if claims.Sub == "" {
		return "", fmt.Errorf("subject claim missing")
	}
	return claims.Sub, nil
}

// Middleware authenticates the request and stores the caller's user ID in
// the request context.
func Middleware(v Verifier, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				log.LogSecurity("AUTH_MISSING", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteError(w, "Authentication required", apperr.New(apperr.KindUnauthenticated, "%v", err))
				return
			}

			userID, err := v.Verify(r.Context(), rawToken)
			if err != nil {
				log.LogSecurity("AUTH_INVALID", fmt.Sprintf("%s %s: %v", r.Method, r.URL.Path, err))
				utils.WriteError(w, "Authentication required", apperr.New(apperr.KindUnauthenticated, "invalid token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

// UserID returns the authenticated caller, or "" outside the middleware.
func UserID(ctx context.Context) string {
	if uid, ok := ctx.Value(userIDKey).(string); ok {
		return uid
	}
	return ""
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// RequireUser returns the caller's user ID, answering 401 when the request
// was not authenticated.
func RequireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid := UserID(r.Context())
	if uid == "" {
		utils.WriteError(w, "Authentication required", apperr.ErrUnauthenticated)
		return "", false
	}
	return uid, true
}
