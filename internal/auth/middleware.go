package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"gorm.io/gorm"

	"brokerportal/internal/models"
	"brokerportal/internal/portal"
)

// SessionExpiredMessage is the user-facing text for an inactivity logout.
const SessionExpiredMessage = "Your session has expired due to inactivity. Please log in again."

// JWTAuth verifies the bearer token, runs the session activity guard, and
// rejects principals that have been deactivated since login. On every
// allowed request the session's activity timestamp is advanced.
func JWTAuth(db *gorm.DB, guard *portal.SessionGuard, secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}
			claims, err := Verify(secret, strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			if claims.JTI == "" {
				http.Error(w, "session not found", http.StatusUnauthorized)
				return
			}
			if _, err := guard.Touch(r.Context(), claims.JTI, time.Now()); err != nil {
				switch {
				case errors.Is(err, portal.ErrSessionExpired):
					http.Error(w, SessionExpiredMessage, http.StatusUnauthorized)
				case errors.Is(err, portal.ErrNotFound):
					http.Error(w, "session not found", http.StatusUnauthorized)
				default:
					http.Error(w, "session check failed", http.StatusInternalServerError)
				}
				return
			}
			var active int64
			if err := db.WithContext(r.Context()).Model(&models.Customer{}).
				Where("id = ? AND status = ?", claims.CustomerID, true).
				Count(&active).Error; err != nil || active == 0 {
				http.Error(w, "account disabled", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !FromContext(r.Context()).HasRole(role) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
