package handlers

import (
	"net/http"

	"gorm.io/gorm"

	"brokerportal/internal/auth"
	"brokerportal/internal/models"
)

// MyLogs returns recent audit entries. Customers see their own trail;
// Administrators can pass ?all=1 for the most recent entries for everyone.
func MyLogs(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all := r.URL.Query().Get("all") == "1"
		var logs []models.CustomerAuditLog
		if all && auth.FromContext(r.Context()).HasRole("Administrator") {
			_ = db.Order("created_at desc").Limit(200).Find(&logs).Error
		} else {
			uid := auth.CustomerID(r.Context())
			_ = db.Where("customer_id = ?", uid).Order("created_at desc").Limit(200).Find(&logs).Error
		}
		respondJSON(w, logs)
	}
}
