package portal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"brokerportal/internal/metrics"
	"brokerportal/internal/models"
)

// SessionGuard tracks per-session activity and forces logout after the
// inactivity timeout. Comparison is strictly greater-than against wall-clock
// time since the last recorded activity.
type SessionGuard struct {
	db      *gorm.DB
	audit   *Recorder
	Timeout time.Duration
}

func NewSessionGuard(db *gorm.DB, audit *Recorder, timeout time.Duration) *SessionGuard {
	return &SessionGuard{db: db, audit: audit, Timeout: timeout}
}

// Create opens a session at login time.
func (g *SessionGuard) Create(ctx context.Context, customerID uint, jti string, expiresAt, now time.Time) error {
	s := models.PortalSession{
		JTI:            jti,
		CustomerID:     customerID,
		ExpiresAt:      expiresAt,
		LastActivityAt: now,
		CreatedAt:      now,
	}
	if err := g.db.WithContext(ctx).Create(&s).Error; err != nil {
		return fmt.Errorf("session create: %w", err)
	}
	return nil
}

// Touch is called on every authenticated request. An expired or revoked
// session returns ErrSessionExpired; otherwise the activity timestamp is
// unconditionally advanced to now. That advance is the only mutation on the
// active path, and last-write-wins between concurrent requests is fine
// because the timestamp only ever moves forward.
func (g *SessionGuard) Touch(ctx context.Context, jti string, now time.Time) (*models.PortalSession, error) {
	var s models.PortalSession
	err := g.db.WithContext(ctx).First(&s, "jti = ?", jti).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session lookup: %w", err)
	}
	if s.RevokedAt != nil || now.After(s.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	inactive := now.Sub(s.LastActivityAt)
	if inactive > g.Timeout {
		if err := g.Revoke(ctx, jti, now); err != nil {
			return nil, err
		}
		metrics.SessionTimeouts.Inc()
		g.audit.Record(ctx, Entry{
			CustomerID:    &s.CustomerID,
			Action:        ActionSessionTimeout,
			Description:   "session expired due to inactivity",
			Success:       false,
			FailureReason: "inactivity timeout exceeded",
			SessionID:     jti,
			Metadata: models.Metadata{
				"timeout_minutes":           int(g.Timeout.Minutes()),
				"inactive_duration_minutes": int(inactive.Minutes()),
			},
		})
		return nil, ErrSessionExpired
	}
	if err := g.db.WithContext(ctx).Model(&models.PortalSession{}).
		Where("jti = ?", jti).
		Update("last_activity_at", now).Error; err != nil {
		return nil, fmt.Errorf("session touch: %w", err)
	}
	s.LastActivityAt = now
	return &s, nil
}

// Revoke invalidates the session identifier.
func (g *SessionGuard) Revoke(ctx context.Context, jti string, now time.Time) error {
	if err := g.db.WithContext(ctx).Model(&models.PortalSession{}).
		Where("jti = ?", jti).
		Update("revoked_at", now).Error; err != nil {
		return fmt.Errorf("session revoke: %w", err)
	}
	return nil
}
