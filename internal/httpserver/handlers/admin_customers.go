package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"brokerportal/internal/auth"
	"brokerportal/internal/models"
)

type createCustomerReq struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Roles    []string `json:"roles,omitempty"`
}

func ListCustomers(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var customers []models.Customer
		q := db.Preload("Roles").Order("id")
		if search := strings.TrimSpace(r.URL.Query().Get("q")); search != "" {
			q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?",
				"%"+strings.ToLower(search)+"%", "%"+strings.ToLower(search)+"%")
		}
		if err := q.Limit(500).Find(&customers).Error; err != nil {
			lg.Errorw("customer list failed", "error", err)
			http.Error(w, "list failed", http.StatusInternalServerError)
			return
		}
		respondJSON(w, customers)
	}
}

func CreateCustomer(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCustomerReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.Email = strings.TrimSpace(strings.ToLower(req.Email))
		if req.Email == "" || req.Password == "" || req.Name == "" {
			http.Error(w, "name, email and password required", http.StatusBadRequest)
			return
		}
		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			http.Error(w, "hash error", http.StatusInternalServerError)
			return
		}
		c := models.Customer{
			Name:               req.Name,
			Email:              req.Email,
			PasswordHash:       hash,
			Status:             true,
			MustChangePassword: true,
		}
		if len(req.Roles) > 0 {
			var roles []models.Role
			if err := db.Where("name IN ?", req.Roles).Find(&roles).Error; err == nil {
				c.Roles = roles
			}
		}
		if err := db.Create(&c).Error; err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		lg.Infow("customer created", "id", c.ID, "email", c.Email)
		respondJSON(w, c)
	}
}

type updateCustomerReq struct {
	Name   *string `json:"name,omitempty"`
	Status *bool   `json:"status,omitempty"`
}

func UpdateCustomer(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			writeErr(w, err)
			return
		}
		var req updateCustomerReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		updates := map[string]any{}
		if req.Name != nil {
			updates["name"] = *req.Name
		}
		if req.Status != nil {
			updates["status"] = *req.Status
		}
		if len(updates) == 0 {
			http.Error(w, "nothing to update", http.StatusBadRequest)
			return
		}
		res := db.Model(&models.Customer{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			http.Error(w, res.Error.Error(), http.StatusBadRequest)
			return
		}
		if res.RowsAffected == 0 {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		respondJSON(w, map[string]any{"ok": true})
	}
}

// DeleteCustomer soft-deletes; the row survives for the audit trail.
func DeleteCustomer(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			writeErr(w, err)
			return
		}
		res := db.Delete(&models.Customer{}, id)
		if res.Error != nil {
			http.Error(w, res.Error.Error(), http.StatusInternalServerError)
			return
		}
		if res.RowsAffected == 0 {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		lg.Infow("customer soft-deleted", "id", id)
		respondJSON(w, map[string]any{"ok": true})
	}
}

type createPolicyReq struct {
	PolicyNo           string  `json:"policy_no"`
	RegistrationNo     string  `json:"registration_no"`
	StartDate          string  `json:"start_date"`
	ExpiredDate        string  `json:"expired_date"`
	PolicyDocumentPath *string `json:"policy_document_path,omitempty"`
}

func CreatePolicy(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := idParam(r, "id")
		if err != nil {
			writeErr(w, err)
			return
		}
		var req createPolicyReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.PolicyNo == "" {
			http.Error(w, "policy_no required", http.StatusBadRequest)
			return
		}
		var owner models.Customer
		if err := db.First(&owner, customerID).Error; err != nil {
			http.Error(w, "customer not found", http.StatusNotFound)
			return
		}
		start, _ := time.Parse("2006-01-02", req.StartDate)
		expired, _ := time.Parse("2006-01-02", req.ExpiredDate)
		p := models.CustomerInsurance{
			CustomerID:         owner.ID,
			PolicyNo:           req.PolicyNo,
			RegistrationNo:     req.RegistrationNo,
			StartDate:          start,
			ExpiredDate:        expired,
			PolicyDocumentPath: req.PolicyDocumentPath,
			Status:             true,
		}
		if err := db.Create(&p).Error; err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		lg.Infow("policy created", "id", p.ID, "policy_no", p.PolicyNo, "customer", owner.ID)
		respondJSON(w, p)
	}
}

type updatePolicyReq struct {
	RegistrationNo     *string `json:"registration_no,omitempty"`
	ExpiredDate        *string `json:"expired_date,omitempty"`
	PolicyDocumentPath *string `json:"policy_document_path,omitempty"`
	Status             *bool   `json:"status,omitempty"`
}

func UpdatePolicy(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "id")
		if err != nil {
			writeErr(w, err)
			return
		}
		var req updatePolicyReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		updates := map[string]any{}
		if req.RegistrationNo != nil {
			updates["registration_no"] = *req.RegistrationNo
		}
		if req.ExpiredDate != nil {
			if d, err := time.Parse("2006-01-02", *req.ExpiredDate); err == nil {
				updates["expired_date"] = d
			}
		}
		if req.PolicyDocumentPath != nil {
			updates["policy_document_path"] = *req.PolicyDocumentPath
		}
		if req.Status != nil {
			updates["status"] = *req.Status
		}
		if len(updates) == 0 {
			http.Error(w, "nothing to update", http.StatusBadRequest)
			return
		}
		res := db.Model(&models.CustomerInsurance{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			http.Error(w, res.Error.Error(), http.StatusBadRequest)
			return
		}
		if res.RowsAffected == 0 {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		respondJSON(w, map[string]any{"ok": true})
	}
}
