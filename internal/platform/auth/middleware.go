package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UserRoleKey contextKey = "user_role"
	TokenIDKey  contextKey = "token_id"
	TokenExpKey contextKey = "token_exp"
)

// Account is the stored state of the user behind a token.
type Account struct {
	Role   string
	Active bool
}

// AccountLookup loads the current account for a token subject. A deleted
// user is reported as an inactive Account, not an error. The stored role
// replaces the token's role claim, so role changes apply to tokens already
// issued.
type AccountLookup func(ctx context.Context, userID uuid.UUID) (Account, error)

type JWTConfig struct {
	Tokens      *TokenIssuer
	Revocations RevocationStore
	Accounts    AccountLookup
}

func JWTMiddleware(cfg JWTConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, err := bearerToken(c.Request())
			if err != nil {
				return err
			}

			claims, err := cfg.Tokens.Parse(raw)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			ctx := c.Request().Context()

			if cfg.Revocations != nil {
				revoked, err := cfg.Revocations.IsRevoked(ctx, claims.ID)
				if err != nil {
					return err
				}
				if revoked {
					return echo.NewHTTPError(http.StatusUnauthorized, "token has been revoked")
				}
			}

			userID := uuid.MustParse(claims.Subject)
			role := claims.Role
			if cfg.Accounts != nil {
				acct, err := cfg.Accounts(ctx, userID)
				if err != nil {
					return err
				}
				if !acct.Active {
					return echo.NewHTTPError(http.StatusUnauthorized, "Account is deactivated. Please contact support.")
				}
				role = acct.Role
			}

			ctx = context.WithValue(ctx, UserIDKey, userID)
			ctx = context.WithValue(ctx, UserRoleKey, role)
			ctx = context.WithValue(ctx, TokenIDKey, claims.ID)
			ctx = context.WithValue(ctx, TokenExpKey, claims.ExpiresAt.Time)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// bearerToken reads the Authorization header. WebSocket handshakes from a
// browser cannot set headers, so upgrade requests may pass ?token= instead.
func bearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
				return t, nil
			}
		}
		return "", echo.NewHTTPError(http.StatusUnauthorized, "Not authorized to access this route")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
	}
	return strings.TrimSpace(parts[1]), nil
}

// WithUser returns ctx carrying an authenticated identity. Used by handlers
// in tests and by the CLI.
func WithUser(ctx context.Context, userID uuid.UUID, role string) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserRoleKey, role)
}

func UserIDFromContext(ctx context.Context) uuid.UUID {
	uid, _ := ctx.Value(UserIDKey).(uuid.UUID)
	return uid
}

func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}

// TokenFromContext returns the JTI and expiry of the presented token.
func TokenFromContext(ctx context.Context) (string, time.Time) {
	jti, _ := ctx.Value(TokenIDKey).(string)
	exp, _ := ctx.Value(TokenExpKey).(time.Time)
	return jti, exp
}
