package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"brokerportal/internal/auth"
	"brokerportal/internal/config"
	"brokerportal/internal/metrics"
	"brokerportal/internal/models"
	"brokerportal/internal/portal"
)

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func Login(db *gorm.DB, lg *zap.SugaredLogger, guard *portal.SessionGuard, audit *portal.Recorder, cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req loginReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		email := strings.TrimSpace(strings.ToLower(req.Email))
		meta := requestMeta(r)

		var c models.Customer
		err := db.Preload("Roles").First(&c, "LOWER(email) = ?", email).Error
		if err != nil || auth.CheckPassword(c.PasswordHash, req.Password) != nil || !c.Status {
			metrics.LoginAttempts.WithLabelValues("failed").Inc()
			entry := portal.Entry{
				Action:        portal.ActionLoginFailed,
				Description:   "login failed for " + email,
				Success:       false,
				FailureReason: "invalid credentials",
				IPAddress:     meta.IPAddress,
			}
			if err == nil {
				entry.CustomerID = &c.ID
				if !c.Status {
					entry.FailureReason = "account inactive"
				}
			}
			audit.Record(r.Context(), entry)
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}

		jti := uuid.NewString()
		now := time.Now()
		if err := guard.Create(r.Context(), c.ID, jti, now.Add(cfg.JWTTTL), now); err != nil {
			lg.Errorw("session create failed", "error", err)
			http.Error(w, "login failed", http.StatusInternalServerError)
			return
		}
		var roleNames []string
		for _, role := range c.Roles {
			roleNames = append(roleNames, role.Name)
		}
		tok, err := auth.Sign([]byte(cfg.JWTSecret), c.ID, roleNames, jti, cfg.JWTTTL)
		if err != nil {
			http.Error(w, "token error", http.StatusInternalServerError)
			return
		}
		metrics.LoginAttempts.WithLabelValues("success").Inc()
		audit.Record(r.Context(), portal.Entry{
			CustomerID:  &c.ID,
			Action:      portal.ActionLogin,
			Description: "logged in",
			Success:     true,
			IPAddress:   meta.IPAddress,
			SessionID:   jti,
		})
		respondJSON(w, map[string]any{
			"token":                tok,
			"must_change_password": c.MustChangePassword,
		})
	}
}

func Logout(guard *portal.SessionGuard, audit *portal.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.FromContext(r.Context())
		if err := guard.Revoke(r.Context(), claims.JTI, time.Now()); err != nil {
			writeErr(w, err)
			return
		}
		meta := requestMeta(r)
		audit.Record(r.Context(), portal.Entry{
			CustomerID:  &claims.CustomerID,
			Action:      portal.ActionLogout,
			Description: "logged out",
			Success:     true,
			IPAddress:   meta.IPAddress,
			SessionID:   claims.JTI,
		})
		respondJSON(w, map[string]any{"ok": true})
	}
}

type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func ChangePassword(db *gorm.DB, lg *zap.SugaredLogger, audit *portal.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req changePasswordReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.NewPassword) < 8 {
			http.Error(w, "new password must be at least 8 characters", http.StatusBadRequest)
			return
		}
		c, err := principal(r, db)
		if err != nil {
			writeErr(w, err)
			return
		}
		if auth.CheckPassword(c.PasswordHash, req.CurrentPassword) != nil {
			http.Error(w, "current password incorrect", http.StatusUnauthorized)
			return
		}
		hash, err := auth.HashPassword(req.NewPassword)
		if err != nil {
			http.Error(w, "hash error", http.StatusInternalServerError)
			return
		}
		if err := db.Model(&c).Updates(map[string]any{
			"password_hash":        hash,
			"must_change_password": false,
		}).Error; err != nil {
			lg.Errorw("password update failed", "customer", c.ID, "error", err)
			http.Error(w, "update failed", http.StatusInternalServerError)
			return
		}
		meta := requestMeta(r)
		audit.Record(r.Context(), portal.Entry{
			CustomerID:  &c.ID,
			Action:      portal.ActionPasswordChanged,
			Description: "password changed",
			Success:     true,
			IPAddress:   meta.IPAddress,
			SessionID:   meta.SessionID,
		})
		respondJSON(w, map[string]any{"ok": true})
	}
}

func Me(db *gorm.DB, family *portal.FamilyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := principal(r, db)
		if err != nil {
			writeErr(w, err)
			return
		}
		resp := map[string]any{
			"id":                   c.ID,
			"name":                 c.Name,
			"email":                c.Email,
			"status":               c.Status,
			"must_change_password": c.MustChangePassword,
			"roles":                c.Roles,
		}
		if m, err := family.MembershipOf(r.Context(), c.ID); err == nil && m != nil {
			resp["family"] = map[string]any{
				"group_id":     m.GroupID,
				"is_head":      m.IsHead,
				"group_active": m.GroupActive,
			}
		}
		respondJSON(w, resp)
	}
}
