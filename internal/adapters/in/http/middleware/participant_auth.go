// internal/adapters/in/http/middleware/participant_auth.go
package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
)

// FirebaseAuthClient は firebase auth クライアントのエイリアス。
// RouterDeps などからは *middleware.FirebaseAuthClient 型で受けられます。
type FirebaseAuthClient = fbauth.Client

type ctxKey struct{ name string }

var (
	ctxKeyUID   = ctxKey{name: "uid"}
	ctxKeyEmail = ctxKey{name: "email"}
)

// ParticipantAuthMiddleware verifies the Firebase ID token of the mint
// participant and stores uid/email in context.
// 参加資格そのもの（ホワイトリスト登録）はオーケストレーター側で
// ウォレットアドレス基準に判定するため、ここでは認証のみを行います。
type ParticipantAuthMiddleware struct {
	FirebaseAuth *FirebaseAuthClient
}

func (m *ParticipantAuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil || m.FirebaseAuth == nil {
			http.Error(w, "auth middleware not initialized", http.StatusServiceUnavailable)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "unauthorized: missing bearer token", http.StatusUnauthorized)
			return
		}

		idToken := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if idToken == "" {
			http.Error(w, "unauthorized: empty bearer token", http.StatusUnauthorized)
			return
		}

		// Firebase ID トークン検証
		token, err := m.FirebaseAuth.VerifyIDToken(r.Context(), idToken)
		if err != nil {
			log.Printf("[participant_auth] token verification failed: %v", err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		uid := strings.TrimSpace(token.UID)
		if uid == "" {
			http.Error(w, "invalid uid in token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyUID, uid)

		if emailRaw, ok := token.Claims["email"]; ok {
			if emailStr, ok2 := emailRaw.(string); ok2 {
				emailStr = strings.TrimSpace(emailStr)
				if emailStr != "" {
					ctx = context.WithValue(ctx, ctxKeyEmail, emailStr)
				}
			}
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UIDFromContext は認証済みリクエストの uid を返します。
func UIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKeyUID).(string); ok {
		return v
	}
	return ""
}
