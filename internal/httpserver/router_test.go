package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"brokerportal/internal/auth"
	"brokerportal/internal/config"
	"brokerportal/internal/models"
	"brokerportal/internal/portal"
)

type testEnv struct {
	db     *gorm.DB
	router http.Handler
	root   string
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Role{}, &models.Customer{}, &models.FamilyGroup{},
		&models.FamilyMembership{}, &models.CustomerInsurance{},
		&models.CustomerAuditLog{}, &models.PortalSession{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "policies"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	gate, err := portal.NewGate(root)
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	cfg := config.Config{
		JWTSecret:          "test-secret",
		JWTTTL:             time.Hour,
		SessionIdleTimeout: 60 * time.Minute,
		PolicyDocsRoot:     root,
	}
	return &testEnv{
		db:     db,
		router: NewRouter(db, zap.NewNop().Sugar(), cfg, gate),
		root:   root,
	}
}

func (e *testEnv) seedCustomer(t *testing.T, name, password string, roles ...string) models.Customer {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	c := models.Customer{Name: name, Email: name + "@test.local", PasswordHash: hash, Status: true}
	if err := e.db.Create(&c).Error; err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
	for _, roleName := range roles {
		var role models.Role
		if err := e.db.Where(models.Role{Name: roleName}).FirstOrCreate(&role).Error; err != nil {
			t.Fatalf("role %s: %v", roleName, err)
		}
		if err := e.db.Model(&c).Association("Roles").Append(&role); err != nil {
			t.Fatalf("attach role: %v", err)
		}
	}
	return c
}

func (e *testEnv) seedSmithFamily(t *testing.T) (alice, bob models.Customer, pol100, pol200 models.CustomerInsurance) {
	t.Helper()
	alice = e.seedCustomer(t, "alice", "alice-pass")
	bob = e.seedCustomer(t, "bob", "bob-pass")
	group := models.FamilyGroup{Name: "Smith", Status: true, FamilyHeadID: &alice.ID}
	if err := e.db.Create(&group).Error; err != nil {
		t.Fatalf("group: %v", err)
	}
	for _, m := range []models.FamilyMembership{
		{FamilyGroupID: group.ID, CustomerID: alice.ID, Relationship: "head", IsHead: true, Status: true},
		{FamilyGroupID: group.ID, CustomerID: bob.ID, Relationship: "spouse", Status: true},
	} {
		if err := e.db.Create(&m).Error; err != nil {
			t.Fatalf("membership: %v", err)
		}
	}
	e.db.Model(&models.Customer{}).Where("id IN ?", []uint{alice.ID, bob.ID}).Update("family_group_id", group.ID)

	docPath := "policies/pol-100.pdf"
	if err := os.WriteFile(filepath.Join(e.root, docPath), []byte("%PDF-1.4 pol-100"), 0o640); err != nil {
		t.Fatalf("doc: %v", err)
	}
	pol100 = models.CustomerInsurance{CustomerID: bob.ID, PolicyNo: "POL-100", Status: true, PolicyDocumentPath: &docPath}
	pol200 = models.CustomerInsurance{CustomerID: alice.ID, PolicyNo: "POL-200", Status: true}
	for _, p := range []*models.CustomerInsurance{&pol100, &pol200} {
		if err := e.db.Create(p).Error; err != nil {
			t.Fatalf("policy: %v", err)
		}
	}
	return alice, bob, pol100, pol200
}

func (e *testEnv) login(t *testing.T, email, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(body))
	e.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d: %s", email, rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("login decode: %v", err)
	}
	return resp.Token
}

func (e *testEnv) get(t *testing.T, token, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) lastAudit(t *testing.T, action string) models.CustomerAuditLog {
	t.Helper()
	var row models.CustomerAuditLog
	if err := e.db.Where("action = ?", action).Order("id desc").First(&row).Error; err != nil {
		t.Fatalf("audit row for %s missing: %v", action, err)
	}
	return row
}

func TestFamilyVisibilityEndToEnd(t *testing.T) {
	env := setupEnv(t)
	_, _, pol100, pol200 := env.seedSmithFamily(t)

	aliceTok := env.login(t, "alice@test.local", "alice-pass")
	bobTok := env.login(t, "bob@test.local", "bob-pass")

	// Head Alice reads member Bob's policy.
	rec := env.get(t, aliceTok, fmt.Sprintf("/v1/portal/policies/%d", pol100.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("head detail: status %d: %s", rec.Code, rec.Body.String())
	}
	row := env.lastAudit(t, portal.ActionViewPolicyDetail)
	if !row.Success {
		t.Errorf("head detail audit success = false")
	}

	// Member Bob may not read head Alice's policy.
	rec = env.get(t, bobTok, fmt.Sprintf("/v1/portal/policies/%d", pol200.ID))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("member cross-read: status %d, want 403", rec.Code)
	}
	row = env.lastAudit(t, portal.ActionViewPolicyDetail)
	if row.Success {
		t.Error("deny audit marked success")
	}
	if row.FailureReason == nil || *row.FailureReason != "Unauthorized access attempt" {
		t.Errorf("failure_reason = %v, want Unauthorized access attempt", row.FailureReason)
	}
	if row.Metadata["security_violation"] == nil {
		t.Errorf("deny audit missing security_violation tag: %v", row.Metadata)
	}

	// Family listing: head sees both policies, member only their own.
	rec = env.get(t, aliceTok, "/v1/portal/policies?family=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("head list: status %d", rec.Code)
	}
	var headList []models.CustomerInsurance
	if err := json.Unmarshal(rec.Body.Bytes(), &headList); err != nil {
		t.Fatalf("head list decode: %v", err)
	}
	if len(headList) != 2 {
		t.Errorf("head family list = %d policies, want 2", len(headList))
	}
	rec = env.get(t, bobTok, "/v1/portal/policies?family=1")
	var memberList []models.CustomerInsurance
	if err := json.Unmarshal(rec.Body.Bytes(), &memberList); err != nil {
		t.Fatalf("member list decode: %v", err)
	}
	if len(memberList) != 1 || memberList[0].PolicyNo != "POL-100" {
		t.Errorf("member family list = %+v, want only POL-100", memberList)
	}
}

func TestPolicyDownloadEndToEnd(t *testing.T) {
	env := setupEnv(t)
	_, _, pol100, _ := env.seedSmithFamily(t)

	bobTok := env.login(t, "bob@test.local", "bob-pass")
	rec := env.get(t, bobTok, fmt.Sprintf("/v1/portal/policies/%d/download", pol100.ID))
	if rec.Code != http.StatusOK {
		t.Fatalf("download: status %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/octet-stream" {
		t.Errorf("content type = %q, want octet-stream", ct)
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Errorf("unexpected body prefix: %q", rec.Body.String())
	}

	// A stored traversal path is rejected and audited with the raw path.
	evil := "../../etc/passwd"
	env.db.Model(&models.CustomerInsurance{}).Where("id = ?", pol100.ID).
		Update("policy_document_path", evil)
	rec = env.get(t, bobTok, fmt.Sprintf("/v1/portal/policies/%d/download", pol100.ID))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("traversal download: status %d, want 403", rec.Code)
	}
	row := env.lastAudit(t, portal.ActionPathTraversal)
	if row.Metadata["attempted_path"] != evil {
		t.Errorf("attempted_path = %v, want %q", row.Metadata["attempted_path"], evil)
	}

	// Non-PDF documents are refused with the specific message.
	txt := "policies/notes.txt"
	if err := os.WriteFile(filepath.Join(env.root, txt), []byte("plain"), 0o640); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	env.db.Model(&models.CustomerInsurance{}).Where("id = ?", pol100.ID).
		Update("policy_document_path", txt)
	rec = env.get(t, bobTok, fmt.Sprintf("/v1/portal/policies/%d/download", pol100.ID))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("txt download: status %d, want 403", rec.Code)
	}
	if got := rec.Body.String(); got != "Only PDF documents can be downloaded.\n" {
		t.Errorf("txt download body = %q", got)
	}
}

func TestLoginAuditAndFailure(t *testing.T) {
	env := setupEnv(t)
	env.seedCustomer(t, "alice", "alice-pass")

	body, _ := json.Marshal(map[string]string{"email": "alice@test.local", "password": "wrong"})
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/auth/login", bytes.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: status %d, want 401", rec.Code)
	}
	row := env.lastAudit(t, portal.ActionLoginFailed)
	if row.Success {
		t.Error("failed login audited as success")
	}

	env.login(t, "alice@test.local", "alice-pass")
	row = env.lastAudit(t, portal.ActionLogin)
	if !row.Success {
		t.Error("successful login audited as failure")
	}
}

func TestSessionTimeoutEndToEnd(t *testing.T) {
	env := setupEnv(t)
	env.seedCustomer(t, "alice", "alice-pass")
	tok := env.login(t, "alice@test.local", "alice-pass")

	// An in-window request succeeds and refreshes activity.
	if rec := env.get(t, tok, "/v1/me"); rec.Code != http.StatusOK {
		t.Fatalf("me: status %d", rec.Code)
	}

	// Push last activity 61 minutes into the past.
	stale := time.Now().Add(-61 * time.Minute)
	env.db.Model(&models.PortalSession{}).Where("1 = 1").Update("last_activity_at", stale)

	rec := env.get(t, tok, "/v1/me")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("stale session: status %d, want 401", rec.Code)
	}
	if got := rec.Body.String(); got != auth.SessionExpiredMessage+"\n" {
		t.Errorf("timeout body = %q", got)
	}
	row := env.lastAudit(t, portal.ActionSessionTimeout)
	if row.Success {
		t.Error("timeout audited as success")
	}

	// The session was revoked, so the token stays dead.
	if rec := env.get(t, tok, "/v1/me"); rec.Code != http.StatusUnauthorized {
		t.Errorf("revoked session answered %d", rec.Code)
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	env := setupEnv(t)
	env.seedCustomer(t, "alice", "alice-pass")
	tok := env.login(t, "alice@test.local", "alice-pass")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: status %d", rec.Code)
	}
	if rec := env.get(t, tok, "/v1/me"); rec.Code != http.StatusUnauthorized {
		t.Errorf("post-logout request answered %d, want 401", rec.Code)
	}
}

func TestAdminSurfaceRoleGated(t *testing.T) {
	env := setupEnv(t)
	env.seedCustomer(t, "alice", "alice-pass")
	env.seedCustomer(t, "root", "root-pass", "Administrator")

	aliceTok := env.login(t, "alice@test.local", "alice-pass")
	adminTok := env.login(t, "root@test.local", "root-pass")

	// Non-admin is refused.
	if rec := env.get(t, aliceTok, "/v1/admin/customers"); rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin list: status %d, want 403", rec.Code)
	}

	// Admin creates a group and adds a member; a malformed group id in the
	// route is rejected and audited.
	body, _ := json.Marshal(map[string]string{"name": "Jones"})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/family-groups", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+adminTok)
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("create group: status %d: %s", rec.Code, rec.Body.String())
	}
	var group models.FamilyGroup
	if err := json.Unmarshal(rec.Body.Bytes(), &group); err != nil {
		t.Fatalf("group decode: %v", err)
	}

	body, _ = json.Marshal(map[string]any{"customer_id": 1, "relationship": "head", "is_head": true})
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost,
		fmt.Sprintf("/v1/admin/family-groups/%d/members", group.ID), bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+adminTok)
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("add member: status %d: %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost,
		"/v1/admin/family-groups/1%20OR%201=1/members", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+adminTok)
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("injection-shaped group id: status %d, want 400", rec.Code)
	}
	row := env.lastAudit(t, portal.ActionSQLInjectionAttempt)
	if row.Metadata["attempted_value"] == nil {
		t.Errorf("attempted value not preserved: %v", row.Metadata)
	}
}
