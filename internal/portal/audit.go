package portal

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"brokerportal/internal/models"
)

// Audit actions. The log is append-only: rows are inserted once and never
// touched again by any portal-facing operation.
const (
	ActionLogin               = "login"
	ActionLoginFailed         = "login_failed"
	ActionLogout              = "logout"
	ActionViewPolicyDetail    = "view_policy_detail"
	ActionDownloadPolicy      = "download_policy"
	ActionListPolicies        = "list_policies"
	ActionViewFamily          = "view_family"
	ActionSQLInjectionAttempt = "sql_injection_attempt"
	ActionPathTraversal       = "path_traversal_attempt"
	ActionSessionTimeout      = "session_timeout"
	ActionPasswordChanged     = "password_changed"
	ActionProfileUpdated      = "profile_updated"
)

// Entry is one access decision or security event to be recorded.
type Entry struct {
	CustomerID    *uint
	Action        string
	Description   string
	Success       bool
	FailureReason string
	ResourceType  string
	ResourceID    *uint
	IPAddress     string
	SessionID     string
	Metadata      models.Metadata
}

// Recorder appends audit rows. A failed insert is logged and swallowed so
// auditing never takes down the request path it observes.
type Recorder struct {
	db *gorm.DB
	lg *zap.SugaredLogger
}

func NewRecorder(db *gorm.DB, lg *zap.SugaredLogger) *Recorder {
	return &Recorder{db: db, lg: lg}
}

func (r *Recorder) Record(ctx context.Context, e Entry) {
	row := models.CustomerAuditLog{
		CustomerID:  e.CustomerID,
		Action:      e.Action,
		Description: e.Description,
		Success:     e.Success,
		IPAddress:   e.IPAddress,
		SessionID:   e.SessionID,
		Metadata:    e.Metadata,
		CreatedAt:   time.Now(),
	}
	if e.FailureReason != "" {
		row.FailureReason = &e.FailureReason
	}
	if e.ResourceType != "" {
		row.ResourceType = &e.ResourceType
	}
	row.ResourceID = e.ResourceID
	if row.Metadata == nil {
		row.Metadata = models.Metadata{}
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		r.lg.Errorw("audit insert failed", "action", e.Action, "error", err)
	}
}
