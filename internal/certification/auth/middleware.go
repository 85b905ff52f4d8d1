package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gartstein/certify/internal/certification/models"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
)

type contextKey string

const actorContextKey contextKey = "actor"

// protectedPrefix covers every workflow route; health and metrics stay open.
const protectedPrefix = "/v1/"

// HTTPMiddleware authenticates workflow requests with a Bearer token and
// stores the caller in the request context.
func HTTPMiddleware(next http.Handler, jwtSecret string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isProtectedRequest(r) {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, err := extractTokenFromHeader(r)
		if err != nil {
			writeUnauthenticated(w, err.Error())
			return
		}

		actor, err := validateToken(tokenString, jwtSecret)
		if err != nil {
			writeUnauthenticated(w, "invalid token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// writeUnauthenticated renders a 401 in the same google.rpc.Status shape the
// gateway uses for every other error.
func writeUnauthenticated(w http.ResponseWriter, msg string) {
	st := status.New(codes.Unauthenticated, msg)
	if detailed, err := st.WithDetails(&errdetails.ErrorInfo{Reason: "unauthenticated", Domain: "certification"}); err == nil {
		st = detailed
	}
	body, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(st.Proto())
	if err != nil {
		http.Error(w, msg, http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write(body)
}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey, actor)
}

// ActorFromContext returns the authenticated caller, if any.
func ActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(models.Actor)
	return actor, ok
}

func extractTokenFromHeader(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", fmt.Errorf("authorization header required")
	}

	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", fmt.Errorf("invalid authorization format")
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if tokenString == "" {
		return "", fmt.Errorf("invalid authorization format")
	}

	return tokenString, nil
}

func isProtectedRequest(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, protectedPrefix)
}
