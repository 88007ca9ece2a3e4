package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"brokerportal/internal/auth"
	"brokerportal/internal/config"
	"brokerportal/internal/httpserver/handlers"
	"brokerportal/internal/portal"
)

func NewRouter(db *gorm.DB, lg *zap.SugaredLogger, cfg config.Config, gate *portal.Gate) http.Handler {
	audit := portal.NewRecorder(db, lg)
	guard := portal.NewSessionGuard(db, audit, cfg.SessionIdleTimeout)
	family := portal.NewFamilyStore(db)
	svc := portal.NewService(db, family, gate, audit)

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)
	r.Use(securityHeaders)

	r.Post("/v1/auth/login", handlers.Login(db, lg, guard, audit, cfg))

	r.Group(func(protected chi.Router) {
		protected.Use(auth.JWTAuth(db, guard, []byte(cfg.JWTSecret)))
		protected.Get("/v1/me", handlers.Me(db, family))
		protected.Post("/v1/auth/logout", handlers.Logout(guard, audit))
		protected.Post("/v1/auth/password", handlers.ChangePassword(db, lg, audit))

		protected.Get("/v1/portal/policies", handlers.ListPolicies(db, svc))
		protected.Get("/v1/portal/policies/{id}", handlers.PolicyDetail(db, svc))
		protected.Get("/v1/portal/policies/{id}/download", handlers.DownloadPolicy(db, lg, svc))
		protected.Get("/v1/portal/family", handlers.FamilyOverview(db, svc))
		protected.Get("/v1/portal/family/members/{id}", handlers.MemberDetail(db, svc))
		protected.Get("/v1/logs", handlers.MyLogs(db))

		protected.Group(func(admin chi.Router) {
			admin.Use(auth.RequireRole("Administrator"))
			admin.Get("/v1/admin/customers", handlers.ListCustomers(db, lg))
			admin.Post("/v1/admin/customers", handlers.CreateCustomer(db, lg))
			admin.Patch("/v1/admin/customers/{id}", handlers.UpdateCustomer(db, lg))
			admin.Delete("/v1/admin/customers/{id}", handlers.DeleteCustomer(db, lg))
			admin.Post("/v1/admin/customers/{id}/policies", handlers.CreatePolicy(db, lg))
			admin.Patch("/v1/admin/policies/{id}", handlers.UpdatePolicy(db, lg))
			admin.Post("/v1/admin/family-groups", handlers.CreateFamilyGroup(db, lg))
			admin.Patch("/v1/admin/family-groups/{id}", handlers.UpdateFamilyGroup(db, lg))
			admin.Post("/v1/admin/family-groups/{id}/members", handlers.AddFamilyMember(db, lg, family, audit))
			admin.Delete("/v1/admin/family-groups/{id}/members/{customer_id}", handlers.RemoveFamilyMember(db, lg, family, audit))
			admin.Post("/v1/admin/family-groups/{id}/head", handlers.TransferFamilyHead(db, lg, family, audit))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}
