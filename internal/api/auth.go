package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"marketplace/internal/config"
	"marketplace/internal/logging"
	"marketplace/internal/services"
	"marketplace/internal/store"
)

type userContextKey struct{}

// UserLookup loads the account named by a token subject.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (*store.User, error)
}

// IssueToken signs an HS256 bearer token for userID.
func IssueToken(cfg *config.Config, userID int64, now time.Time) (string, error) {
	secret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if secret == "" {
		return "", services.Wrap(services.ErrConfiguration, "api", "issue token", "auth.jwt_secret is not set", nil)
	}
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		Issuer:    cfg.Auth.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(cfg.TokenTTL())),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

type authenticator struct {
	secret []byte
	issuer string
	users  UserLookup
	logger *slog.Logger
}

func newAuthenticator(cfg *config.Config, users UserLookup, logger *slog.Logger) *authenticator {
	return &authenticator{
		secret: []byte(strings.TrimSpace(cfg.Auth.JWTSecret)),
		issuer: cfg.Auth.Issuer,
		users:  users,
		logger: logger,
	}
}

// middleware attaches the bearer token's user to the request. Requests
// without a token continue anonymously; a bad token is rejected.
func (a *authenticator) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		scheme, raw, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid authorization header"})
			return
		}
		user, err := a.authenticate(r.Context(), strings.TrimSpace(raw))
		if err != nil {
			logging.WithContext(r.Context(), a.logger).Warn("token rejected",
				logging.String("path", r.URL.Path),
				logging.Error(err),
			)
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
			return
		}
		ctx := context.WithValue(r.Context(), userContextKey{}, user)
		ctx = services.WithUserID(ctx, user.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *authenticator) authenticate(ctx context.Context, raw string) (*store.User, error) {
	if len(a.secret) == 0 {
		return nil, errors.New("token signing secret not configured")
	}
	claims := &jwt.RegisteredClaims{}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...); err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, errors.New("token subject is not a user id")
	}
	user, err := a.users.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// userFrom returns the authenticated user, or nil for anonymous requests.
func userFrom(ctx context.Context) *store.User {
	user, _ := ctx.Value(userContextKey{}).(*store.User)
	return user
}
