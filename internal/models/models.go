package models

import (
	"time"

	"gorm.io/gorm"
)

type Role struct {
	ID   uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name string `gorm:"uniqueIndex;not null" json:"name"`
}

// Customer is a portal principal. Admin staff share this table and are
// distinguished by the Administrator role.
type Customer struct {
	ID                 uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name               string         `gorm:"not null" json:"name"`
	Email              string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash       string         `gorm:"not null" json:"-"`
	Status             bool           `gorm:"not null;default:true" json:"status"`
	FamilyGroupID      *uint          `gorm:"index" json:"family_group_id,omitempty"`
	MustChangePassword bool           `gorm:"not null;default:false" json:"must_change_password"`
	EmailVerifiedAt    *time.Time     `json:"email_verified_at,omitempty"`
	Roles              []Role         `gorm:"many2many:customer_roles" json:"roles,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

type FamilyGroup struct {
	ID           uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string    `gorm:"not null" json:"name"`
	Status       bool      `gorm:"not null;default:true" json:"status"`
	FamilyHeadID *uint     `gorm:"index" json:"family_head_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FamilyMembership records a customer's role inside a group. Rows are
// deactivated on removal, never deleted, so history survives for audit.
type FamilyMembership struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FamilyGroupID uint      `gorm:"index;not null" json:"family_group_id"`
	CustomerID    uint      `gorm:"index;not null" json:"customer_id"`
	Relationship  string    `gorm:"size:30;not null;default:member" json:"relationship"`
	IsHead        bool      `gorm:"not null;default:false" json:"is_head"`
	Status        bool      `gorm:"not null;default:true" json:"status"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	FamilyGroup FamilyGroup `gorm:"foreignKey:FamilyGroupID" json:"-"`
	Customer    Customer    `gorm:"foreignKey:CustomerID" json:"-"`
}

// CustomerInsurance is a policy owned by exactly one customer. Ownership
// never transfers implicitly.
type CustomerInsurance struct {
	ID                 uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerID         uint      `gorm:"index;not null" json:"customer_id"`
	PolicyNo           string    `gorm:"uniqueIndex;not null" json:"policy_no"`
	RegistrationNo     string    `json:"registration_no"`
	StartDate          time.Time `json:"start_date"`
	ExpiredDate        time.Time `json:"expired_date"`
	PolicyDocumentPath *string   `json:"policy_document_path,omitempty"`
	Status             bool      `gorm:"not null;default:true" json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`

	Customer Customer `gorm:"foreignKey:CustomerID" json:"-"`
}

// CustomerAuditLog is append-only. No portal-facing operation updates or
// deletes rows.
type CustomerAuditLog struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerID    *uint     `gorm:"index" json:"customer_id,omitempty"`
	Action        string    `gorm:"size:64;index;not null" json:"action"`
	Description   string    `json:"description"`
	Success       bool      `gorm:"not null" json:"success"`
	FailureReason *string   `json:"failure_reason,omitempty"`
	ResourceType  *string   `gorm:"size:64" json:"resource_type,omitempty"`
	ResourceID    *uint     `json:"resource_id,omitempty"`
	IPAddress     string    `gorm:"size:45" json:"ip_address"`
	SessionID     string    `gorm:"size:64" json:"session_id"`
	Metadata      Metadata  `json:"metadata"`
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
}

type PortalSession struct {
	JTI            string     `gorm:"primaryKey;size:64" json:"jti"`
	CustomerID     uint       `gorm:"index;not null" json:"customer_id"`
	ExpiresAt      time.Time  `gorm:"not null" json:"expires_at"`
	LastActivityAt time.Time  `gorm:"not null" json:"last_activity_at"`
	RevokedAt      *time.Time `json:"revoked_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
