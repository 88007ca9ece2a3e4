package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"brokerportal/internal/models"
	"brokerportal/internal/portal"
)

type createGroupReq struct {
	Name string `json:"name"`
}

func CreateFamilyGroup(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createGroupReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		g := models.FamilyGroup{Name: req.Name, Status: true}
		if err := db.Create(&g).Error; err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		lg.Infow("family group created", "id", g.ID, "name", g.Name)
		respondJSON(w, g)
	}
}

type addMemberReq struct {
	CustomerID   uint   `json:"customer_id"`
	Relationship string `json:"relationship"`
	IsHead       bool   `json:"is_head"`
}

// AddFamilyMember validates the group id before any lookup, adds the member,
// and transfers headship atomically when requested.
func AddFamilyMember(db *gorm.DB, lg *zap.SugaredLogger, family *portal.FamilyStore, audit *portal.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gid, err := validateGroupParam(r, db, audit)
		if err != nil {
			writeErr(w, err)
			return
		}
		var req addMemberReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.CustomerID == 0 {
			http.Error(w, "customer_id required", http.StatusBadRequest)
			return
		}
		relationship := req.Relationship
		if relationship == "" {
			relationship = "member"
		}
		if err := family.AddMember(r.Context(), gid, req.CustomerID, relationship); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.IsHead {
			if err := family.TransferHead(r.Context(), gid, req.CustomerID); err != nil {
				writeErr(w, err)
				return
			}
		}
		lg.Infow("family member added", "group", gid.Value(), "customer", req.CustomerID, "head", req.IsHead)
		respondJSON(w, map[string]any{"ok": true})
	}
}

type transferHeadReq struct {
	CustomerID uint `json:"customer_id"`
}

func TransferFamilyHead(db *gorm.DB, lg *zap.SugaredLogger, family *portal.FamilyStore, audit *portal.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gid, err := validateGroupParam(r, db, audit)
		if err != nil {
			writeErr(w, err)
			return
		}
		var req transferHeadReq
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := family.TransferHead(r.Context(), gid, req.CustomerID); err != nil {
			writeErr(w, err)
			return
		}
		lg.Infow("family head transferred", "group", gid.Value(), "new_head", req.CustomerID)
		respondJSON(w, map[string]any{"ok": true})
	}
}

func RemoveFamilyMember(db *gorm.DB, lg *zap.SugaredLogger, family *portal.FamilyStore, audit *portal.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gid, err := validateGroupParam(r, db, audit)
		if err != nil {
			writeErr(w, err)
			return
		}
		customerID, err := idParam(r, "customer_id")
		if err != nil {
			writeErr(w, err)
			return
		}
		if err := family.DeactivateMember(r.Context(), gid, customerID); err != nil {
			writeErr(w, err)
			return
		}
		lg.Infow("family member deactivated", "group", gid.Value(), "customer", customerID)
		respondJSON(w, map[string]any{"ok": true})
	}
}

type updateGroupReq struct {
	Name   *string `json:"name,omitempty"`
	Status *bool   `json:"status,omitempty"`
}

func UpdateFamilyGroup(db *gorm.DB, lg *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Deactivation must work on an already-inactive group, so this
		// endpoint parses the id without the active-group validation.
		id, err := idParam(r, "id")
		if err != nil {
			writeErr(w, err)
			return
		}
		var req updateGroupReq
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
		res := db.Model(&models.FamilyGroup{}).Where("id = ?", id).Updates(updates)
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

// validateGroupParam runs the hard input-validation contract on the group id
// route parameter. A malformed id is audited as a possible injection probe.
func validateGroupParam(r *http.Request, db *gorm.DB, audit *portal.Recorder) (portal.GroupID, error) {
	raw := chi.URLParam(r, "id")
	gid, err := portal.ValidateGroupID(r.Context(), db, raw)
	if err != nil {
		// Non-numeric input gets the injection-attempt action; a dangling
		// but well-formed id is still invalid, just not probe-shaped.
		action := portal.ActionSQLInjectionAttempt
		description := "malformed family group id"
		if _, parseErr := portal.ValidateRawGroupID(raw); parseErr == nil {
			action = portal.ActionViewFamily
			description = "dangling family group id"
		}
		meta := requestMeta(r)
		audit.Record(r.Context(), portal.Entry{
			Action:        action,
			Description:   description,
			Success:       false,
			FailureReason: "invalid family group id",
			ResourceType:  "family_group",
			IPAddress:     meta.IPAddress,
			SessionID:     meta.SessionID,
			Metadata: models.Metadata{
				"security_violation": "invalid_group_id",
				"attempted_value":    raw,
			},
		})
		return portal.GroupID{}, err
	}
	return gid, nil
}
