package httpadapter

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ownerContextKey struct{}

var errInvalidToken = errors.New("invalid token")

// tokenVerifier checks HS256 bearer tokens. The subject claim is the owner id.
type tokenVerifier struct {
	secret []byte
	issuer string
}

func newTokenVerifier(secret, issuer string) *tokenVerifier {
	return &tokenVerifier{
		secret: []byte(strings.TrimSpace(secret)),
		issuer: strings.TrimSpace(issuer),
	}
}

func (v *tokenVerifier) ownerID(tokenStr string) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("token secret is not configured")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	tok, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	}, opts...)
	if err != nil || !tok.Valid {
		return "", errInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", errInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", errors.New("no subject")
	}
	return strings.TrimSpace(sub), nil
}

func bearerToken(headerValue string) (string, bool) {
	headerValue = strings.TrimSpace(headerValue)
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(headerValue, bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(headerValue, bearerPrefix))
	return token, token != ""
}

// authMiddleware rejects requests without a valid bearer token and stores
// the owner id in the request context.
func (rt *Router) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeUnauthorized(w)
			return
		}
		owner, err := rt.auth.ownerID(raw)
		if err != nil {
			writeUnauthorized(w)
			return
		}
		ctx := context.WithValue(r.Context(), ownerContextKey{}, owner)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeUnauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"error":    "not authorized",
		"category": categoryUnauthorized,
	})
}

func ownerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerContextKey{}).(string)
	return owner
}
