package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/MS0C54073/CarWashApp-sub000/globals"
	"github.com/MS0C54073/CarWashApp-sub000/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// JWT claims
type Claims struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Auth validates bearer tokens signed with a shared HMAC secret. Token
// issuance lives in the account service.
type Auth struct {
	secret []byte
}

func NewAuth(secret string) *Auth {
	return &Auth{secret: []byte(secret)}
}

func (a *Auth) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
	}
	return a.secret, nil
}

// ValidateJWT parses a raw token (without the "Bearer " prefix).
func (a *Auth) ValidateJWT(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("invalid token")
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, a.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("unauthorized: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("unauthorized: invalid token")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("unauthorized: missing user id")
	}
	if _, ok := models.ParseRole(claims.Role); !ok {
		return nil, fmt.Errorf("unauthorized: unknown role %q", claims.Role)
	}
	return claims, nil
}

// Authenticate requires a valid bearer token and stores the user id and role
// in the request context. Websocket upgrades may pass the token as the
// "token" query parameter since browsers cannot set headers on them.
func (a *Auth) Authenticate(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		var tokenString string
		header := r.Header.Get("Authorization")
		switch {
		case header != "":
			if !strings.HasPrefix(header, "Bearer ") || len(header) < 8 {
				http.Error(w, "Invalid token format", http.StatusUnauthorized)
				return
			}
			tokenString = header[7:]
		case websocket.IsWebSocketUpgrade(r):
			tokenString = r.URL.Query().Get("token")
		}
		if tokenString == "" {
			http.Error(w, "Missing token", http.StatusUnauthorized)
			return
		}

		claims, err := a.ValidateJWT(tokenString)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), globals.UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, globals.RoleKey, models.Role(claims.Role))
		next(w, r.WithContext(ctx), ps)
	}
}

// RequireRoles rejects authenticated requests whose role is not listed.
// It must run inside Authenticate.
func RequireRoles(roles ...models.Role) func(httprouter.Handle) httprouter.Handle {
	allowed := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			role, _ := r.Context().Value(globals.RoleKey).(models.Role)
			if !allowed[role] {
				http.Error(w, "not authorized", http.StatusForbidden)
				return
			}
			next(w, r, ps)
		}
	}
}

// ActorFromContext returns the authenticated identity, if any.
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	userID, _ := ctx.Value(globals.UserIDKey).(string)
	role, _ := ctx.Value(globals.RoleKey).(models.Role)
	if userID == "" || role == "" {
		return models.Actor{}, false
	}
	return models.Actor{UserID: userID, Role: role}, true
}
