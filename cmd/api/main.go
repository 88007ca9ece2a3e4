package main

import (
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"brokerportal/internal/auth"
	"brokerportal/internal/config"
	"brokerportal/internal/httpserver"
	"brokerportal/internal/logger"
	"brokerportal/internal/models"
	"brokerportal/internal/portal"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	lg := logger.New(cfg.LogLevel)
	defer lg.Sync()

	db, err := openDB(cfg)
	if err != nil {
		lg.Fatalw("db connect failed", "error", err)
	}
	if err := db.AutoMigrate(
		&models.Role{},
		&models.Customer{},
		&models.FamilyGroup{},
		&models.FamilyMembership{},
		&models.CustomerInsurance{},
		&models.CustomerAuditLog{},
		&models.PortalSession{},
	); err != nil {
		lg.Fatalw("automigrate failed", "error", err)
	}
	seedDefaultAdmin(db, lg)

	if err := os.MkdirAll(cfg.PolicyDocsRoot, 0o750); err != nil {
		lg.Fatalw("policy docs root", "path", cfg.PolicyDocsRoot, "error", err)
	}
	gate, err := portal.NewGate(cfg.PolicyDocsRoot)
	if err != nil {
		lg.Fatalw("path gate init failed", "error", err)
	}

	router := httpserver.NewRouter(db, lg, cfg, gate)
	lg.Infow("listening", "port", cfg.HTTPPort, "docs_root", gate.Root(),
		"session_idle_timeout", cfg.SessionIdleTimeout.String())
	if err := http.ListenAndServe(":"+cfg.HTTPPort, router); err != nil {
		log.Fatal(err)
	}
}

func openDB(cfg config.Config) (*gorm.DB, error) {
	if cfg.DBDriver == "sqlite" {
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "brokerportal.db"
		}
		return gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	}
	return gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
}

func seedDefaultAdmin(db *gorm.DB, lg *zap.SugaredLogger) {
	for _, name := range []string{"Administrator", "Customer"} {
		var role models.Role
		_ = db.Where(models.Role{Name: name}).FirstOrCreate(&role).Error
	}
	var count int64
	db.Model(&models.Customer{}).Where("LOWER(email) = ?", "admin@brokerportal.local").Count(&count)
	if count > 0 {
		return
	}
	hash, _ := auth.HashPassword("changeme")
	admin := models.Customer{
		Name:               "Portal Admin",
		Email:              strings.ToLower("admin@brokerportal.local"),
		PasswordHash:       hash,
		Status:             true,
		MustChangePassword: true,
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}
	if err := db.Create(&admin).Error; err == nil {
		var adminRole models.Role
		if err := db.First(&adminRole, "name = ?", "Administrator").Error; err == nil {
			_ = db.Model(&admin).Association("Roles").Append(&adminRole)
		}
	}
	lg.Infow("seeded default admin", "email", admin.Email)
}
