package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"brokerportal/internal/portal"
)

func ListPolicies(db *gorm.DB, svc *portal.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := principal(r, db)
		if err != nil {
			writeErr(w, err)
			return
		}
		includeFamily := r.URL.Query().Get("family") == "1"
		policies, err := svc.Policies(r.Context(), c, includeFamily, requestMeta(r))
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, policies)
	}
}

func PolicyDetail(db *gorm.DB, svc *portal.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := principal(r, db)
		if err != nil {
			writeErr(w, err)
			return
		}
		id, err := idParam(r, "id")
		if err != nil {
			writeErr(w, err)
			return
		}
		policy, err := svc.PolicyDetail(r.Context(), c, id, requestMeta(r))
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, policy)
	}
}

// DownloadPolicy streams the policy document as an opaque octet-stream. The
// content type is deliberately not taken from the stored file.
func DownloadPolicy(db *gorm.DB, lg *zap.SugaredLogger, svc *portal.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := principal(r, db)
		if err != nil {
			writeErr(w, err)
			return
		}
		id, err := idParam(r, "id")
		if err != nil {
			writeErr(w, err)
			return
		}
		path, filename, err := svc.DownloadPolicy(r.Context(), c, id, requestMeta(r))
		if err != nil {
			var gateErr *portal.GateError
			if errors.As(err, &gateErr) && gateErr.Tag == portal.ViolationOutsideRoot {
				http.Error(w, msgAccessDeniedPath, http.StatusForbidden)
				return
			}
			writeErr(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		http.ServeFile(w, r, path)
		lg.Debugw("policy document served", "customer", c.ID, "policy", id)
	}
}

func FamilyOverview(db *gorm.DB, svc *portal.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := principal(r, db)
		if err != nil {
			writeErr(w, err)
			return
		}
		group, roster, err := svc.FamilyOverview(r.Context(), c, requestMeta(r))
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, map[string]any{"group": group, "members": roster})
	}
}

func MemberDetail(db *gorm.DB, svc *portal.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := principal(r, db)
		if err != nil {
			writeErr(w, err)
			return
		}
		id, err := idParam(r, "id")
		if err != nil {
			writeErr(w, err)
			return
		}
		target, err := svc.MemberDetail(r.Context(), c, id, requestMeta(r))
		if err != nil {
			writeErr(w, err)
			return
		}
		respondJSON(w, map[string]any{
			"id":     target.ID,
			"name":   target.Name,
			"email":  target.Email,
			"status": target.Status,
		})
	}
}
