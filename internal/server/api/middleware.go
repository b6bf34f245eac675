package api

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/devicebind/devicebind/internal/server/services"
	"github.com/devicebind/devicebind/pkg/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const (
	userClaimsKey  contextKey = "userClaims"
	macVerifiedKey contextKey = "macVerified"
)

// Verifier is the slice of the binding service the enforcement gate needs.
type Verifier interface {
	Verify(ctx context.Context, userID uuid.UUID, ipAddress, userAgent string) services.VerificationResult
}

// AuthMiddleware requires a valid bearer token and stores its claims in the
// request context. Used on routes that always need an identity.
func AuthMiddleware(secrets ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := decodeBearer(r, secrets)
			if claims == nil {
				respondErrorJSON(w, http.StatusUnauthorized, "missing or invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), userClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func decodeBearer(r *http.Request, secrets []string) *utils.Claims {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil
	}
	claims, err := utils.DecodeToken(parts[1], secrets...)
	if err != nil {
		return nil
	}
	return claims
}

func GetUserClaims(r *http.Request) *utils.Claims {
	claims, ok := r.Context().Value(userClaimsKey).(*utils.Claims)
	if !ok {
		return nil
	}
	return claims
}

// MACVerified reports whether the enforcement gate verified this request.
func MACVerified(r *http.Request) bool {
	verified, ok := r.Context().Value(macVerifiedKey).(bool)
	return ok && verified
}

// AdminAuth guards the operator surface with a shared admin token carried
// in the X-Admin-Token header. The password is bcrypt-hashed once at
// startup; requests compare against the hash.
type AdminAuth struct {
	passwordHash []byte
}

func NewAdminAuth(adminPassword string) (*AdminAuth, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &AdminAuth{passwordHash: hash}, nil
}

func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Admin-Token")
		if token == "" {
			respondErrorJSON(w, http.StatusUnauthorized, "missing admin token")
			return
		}
		if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(token)); err != nil {
			respondErrorJSON(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Token")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// VerificationGate enforces device verification on sensitive routes. Per
// request it decides whether verification applies, resolves the caller's
// identity, runs the verification engine and translates the outcome into
// allow or deny. Failure details stay in the audit log; callers only see a
// generic message.
type VerificationGate struct {
	verifier          Verifier
	sensitivePrefixes []string
	jwtSecrets        []string

	// Sandboxed execution classes get a blanket bypass: the captured
	// address there identifies the sandbox, not the user's device.
	serverless func() bool
}

func NewVerificationGate(verifier Verifier, sensitivePrefixes, jwtSecrets []string) *VerificationGate {
	return &VerificationGate{
		verifier:          verifier,
		sensitivePrefixes: sensitivePrefixes,
		jwtSecrets:        jwtSecrets,
		serverless:        services.IsServerlessEnvironment,
	}
}

func (g *VerificationGate) isSensitive(path string) bool {
	for _, prefix := range g.sensitivePrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (g *VerificationGate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.serverless() {
			next.ServeHTTP(w, r)
			return
		}
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		if !g.isSensitive(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		// No resolvable identity: verification cannot run; authorization
		// for the route itself is the downstream handler's problem.
		claims := GetUserClaims(r)
		if claims == nil {
			claims = decodeBearer(r, g.jwtSecrets)
		}
		if claims == nil {
			next.ServeHTTP(w, r)
			return
		}
		userID, ok := claims.SubjectUserID()
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		result := g.verify(r, userID)

		if result.Reason == services.ReasonVerificationError {
			respondDetail(w, http.StatusInternalServerError, "Verification service error")
			return
		}
		if !result.Verified {
			log.Printf("MAC verification failed for user %s on %s: %s", userID, r.URL.Path, result.Reason)
			respondDetail(w, http.StatusForbidden, "Device verification failed. Please log in again.")
			return
		}

		ctx := context.WithValue(r.Context(), macVerifiedKey, true)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// verify calls the engine, converting a panic into a service-error result
// so a fault in the verification path can never crash the request pipeline
// unreported.
func (g *VerificationGate) verify(r *http.Request, userID uuid.UUID) (result services.VerificationResult) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("Panic in MAC verification for user %s: %v", userID, rec)
			result = services.VerificationResult{
				Verified: false,
				Reason:   services.ReasonVerificationError,
				Message:  "An error occurred during MAC verification",
			}
		}
	}()
	return g.verifier.Verify(r.Context(), userID, clientIP(r), r.UserAgent())
}
