package handlers

import (
	"errors"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"brokerportal/internal/auth"
	"brokerportal/internal/models"
	"brokerportal/internal/portal"
	"brokerportal/internal/util"
)

// Gate rejection messages surfaced to the portal user. Internal detail never
// reaches the response body.
const (
	msgInvalidDocumentPath = "Invalid policy document path."
	msgAccessDeniedPath    = "Access denied. Invalid file path."
	msgPDFOnly             = "Only PDF documents can be downloaded."
)

func principal(r *http.Request, db *gorm.DB) (models.Customer, error) {
	var c models.Customer
	err := db.WithContext(r.Context()).Preload("Roles").First(&c, auth.CustomerID(r.Context())).Error
	return c, err
}

func requestMeta(r *http.Request) portal.RequestMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return portal.RequestMeta{
		IPAddress: ip,
		SessionID: auth.FromContext(r.Context()).JTI,
	}
}

func idParam(r *http.Request, name string) (uint, error) {
	return util.ParseID(chi.URLParam(r, name))
}

// writeErr maps portal error kinds onto HTTP statuses. 403 bodies stay
// generic so a deny never reveals whether the target exists.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, portal.ErrUnauthorized):
		http.Error(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, portal.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, portal.ErrInvalidGroupID), errors.Is(err, util.ErrBadID):
		http.Error(w, "invalid request", http.StatusBadRequest)
	case errors.Is(err, portal.ErrInvalidFileType):
		http.Error(w, msgPDFOnly, http.StatusForbidden)
	case errors.Is(err, portal.ErrInvalidPath):
		http.Error(w, msgInvalidDocumentPath, http.StatusForbidden)
	case errors.Is(err, portal.ErrSessionExpired):
		http.Error(w, auth.SessionExpiredMessage, http.StatusUnauthorized)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
