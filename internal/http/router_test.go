package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pqrs_dashboard/backend/internal/auth"
	"github.com/pqrs_dashboard/backend/internal/config"
	"github.com/pqrs_dashboard/backend/internal/files"
	"github.com/pqrs_dashboard/backend/internal/http/middleware"
	"github.com/pqrs_dashboard/backend/internal/memstore"
	"github.com/pqrs_dashboard/backend/internal/models"
	"github.com/pqrs_dashboard/backend/internal/service"
	"github.com/pqrs_dashboard/backend/internal/store"
)

type testServer struct {
	t         *testing.T
	r         *gin.Engine
	store     *memstore.Store
	uploadDir string
}

func strPtr(s string) *string { return &s }

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := memstore.New()
	now := time.Date(2024, 3, 1, 15, 0, 0, 0, time.UTC)
	var seq int64
	deps := service.Deps{
		Store:      s,
		NotifyMode: service.NotifyOutbox,
		PublicURL:  "https://pqrs.test",
		Now:        func() time.Time { return now },
		NewID:      func() string { return fmt.Sprintf("id-%d", atomic.AddInt64(&seq, 1)) },
		Logger:     zerolog.Nop(),
	}

	hash, err := auth.HashPassword("secret1")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ctx := context.Background()
	err = s.WithTx(ctx, func(q store.Queries) error {
		if err := q.InsertEntity(ctx, models.Entity{ID: "ent-acme", Name: "Acme", Email: "contacto@acme.test"},
			models.EntityConsecutive{ID: "cons-acme", Code: "ACM", Consecutive: 1}); err != nil {
			return err
		}
		if err := q.InsertEntity(ctx, models.Entity{ID: "ent-other", Name: "Otra", Email: "otra@otra.test"},
			models.EntityConsecutive{ID: "cons-other", Code: "OTR", Consecutive: 1}); err != nil {
			return err
		}
		if err := q.InsertDepartment(ctx, models.Department{ID: "dept-legal", Name: "Legal", EntityID: "ent-acme"},
			models.PQRConfig{ID: "cfg-legal", MaxResponseTime: 10}); err != nil {
			return err
		}
		for _, u := range []models.User{
			{ID: "user-root", Email: "root@acme.test", FirstName: "Root", Role: models.RoleSuperAdmin, EntityID: "ent-acme"},
			{ID: "user-admin", Email: "admin@acme.test", FirstName: "Ada", Role: models.RoleAdmin, EntityID: "ent-acme"},
			{ID: "user-legal", Email: "lucia@acme.test", FirstName: "Lucía", Role: models.RoleEmployee, EntityID: "ent-acme", DepartmentID: strPtr("dept-legal")},
			{ID: "user-client", Email: "carla@mail.test", FirstName: "Carla", Role: models.RoleClient, EntityID: "ent-acme"},
		} {
			u.PasswordHash = hash
			u.IsActive = true
			u.CreatedAt = now
			if err := q.InsertUser(ctx, u); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	uploadDir := t.TempDir()
	local, err := files.NewLocal(uploadDir, FilesPrefix)
	if err != nil {
		t.Fatalf("files: %v", err)
	}
	lifecycle := &service.Lifecycle{Deps: deps}
	cfg := config.Config{
		CORSAllowed:     "*",
		RequestTimeout:  5 * time.Second,
		MaxUploadSizeMB: 5,
		UploadDir:       uploadDir,
	}
	r := Router(cfg, Services{
		Store:     s,
		Lifecycle: lifecycle,
		Intake:    &service.Intake{Deps: deps},
		Directory: &service.Directory{Deps: deps, DefaultMaxResponseDays: 15},
		Dashboard: &service.Dashboard{Lifecycle: lifecycle},
		Files:     local,
		Tokens:    auth.NewTokens("test-secret", time.Hour),
	}, zerolog.Nop())
	return &testServer{t: t, r: r, store: s, uploadDir: uploadDir}
}

func (s *testServer) do(method, path, token string, body any, header map[string]string) *httptest.ResponseRecorder {
	s.t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			s.t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(email string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": "secret1"}, nil)
	if w.Code != http.StatusOK {
		s.t.Fatalf("login %s: %d %s", email, w.Code, w.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	decode(s.t, w, &resp)
	return resp.Token
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decode(t, w, &env)
	return env.Error.Code
}

func (s *testServer) createPQR(token string) models.PQRS {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/pqr", token, map[string]any{
		"type":         "complaint",
		"departmentId": "dept-legal",
		"subject":      "Alumbrado",
		"description":  "Poste dañado",
		"customFields": []map[string]any{{"name": "Barrio", "value": "Centro", "required": true}},
	}, nil)
	if w.Code != http.StatusCreated {
		s.t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var p models.PQRS
	decode(s.t, w, &p)
	return p
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/healthz", "", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "admin@acme.test", "password": "nope"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if code := errorCode(t, w); code != "UNAUTHORIZED" {
		t.Fatalf("unexpected code %q", code)
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/api/pqr", "", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestClientFilesButCannotManage(t *testing.T) {
	s := newTestServer(t)
	client := s.login("carla@mail.test")

	p := s.createPQR(client)
	if p.ConsecutiveCode != "ACM-20240301-1" {
		t.Fatalf("unexpected code %q", p.ConsecutiveCode)
	}
	if p.Status != models.StatusPending {
		t.Fatalf("expected PENDING, got %s", p.Status)
	}
	want := time.Date(2024, 3, 11, 15, 0, 0, 0, time.UTC)
	if !p.DueDate.Equal(want) {
		t.Fatalf("expected due %s, got %s", want, p.DueDate)
	}
	if len(s.store.Notifications()) != 2 {
		t.Fatalf("expected entity and creator notifications, got %d", len(s.store.Notifications()))
	}

	w := s.do(http.MethodGet, "/api/pqr", client, nil, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestTransitionFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin@acme.test")
	p := s.createPQR(admin)
	path := "/api/pqr/" + p.ID + "/status"

	w := s.do(http.MethodPatch, path, admin, map[string]string{"status": "RESOLVED", "comment": "Reparado"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("transition: %d %s", w.Code, w.Body.String())
	}
	var res struct {
		PQR     models.PQRS               `json:"pqr"`
		History models.StatusHistoryEntry `json:"history"`
	}
	decode(t, w, &res)
	if res.PQR.Status != models.StatusResolved {
		t.Fatalf("expected RESOLVED, got %s", res.PQR.Status)
	}
	if res.History.Status != models.StatusResolved || res.History.Comment != "Reparado" {
		t.Fatalf("unexpected history entry %+v", res.History)
	}
	if res.History.UserID == nil || *res.History.UserID != "user-admin" || res.History.UserName != "Ada" {
		t.Fatalf("history entry should name its author, got %+v", res.History)
	}

	w = s.do(http.MethodPatch, path, admin, map[string]string{"status": "RESOLVED"}, nil)
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "STATUS_UNCHANGED" {
		t.Fatalf("expected STATUS_UNCHANGED, got %d %s", w.Code, w.Body.String())
	}

	w = s.do(http.MethodPatch, path, admin, map[string]string{"status": "ARCHIVED"}, nil)
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "INVALID_STATUS" {
		t.Fatalf("expected INVALID_STATUS, got %d %s", w.Code, w.Body.String())
	}

	w = s.do(http.MethodPatch, "/api/pqr/missing/status", admin, map[string]string{"status": "CLOSED"}, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = s.do(http.MethodGet, path, admin, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("history: %d", w.Code)
	}
	var history []models.StatusHistoryEntry
	decode(t, w, &history)
	if len(history) != 2 || history[0].Status != models.StatusResolved {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestAssignFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin@acme.test")
	p := s.createPQR(admin)
	path := "/api/pqr/" + p.ID + "/assign"

	w := s.do(http.MethodPatch, path, admin, map[string]any{}, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing assignedToId, got %d", w.Code)
	}

	w = s.do(http.MethodPatch, path, admin, map[string]any{"assignedToId": "user-legal"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("assign: %d %s", w.Code, w.Body.String())
	}
	var got models.PQRS
	decode(t, w, &got)
	if got.Status != models.StatusInProgress || got.AssignedToID == nil || *got.AssignedToID != "user-legal" {
		t.Fatalf("unexpected assignment %+v", got)
	}

	w = s.do(http.MethodPatch, path, admin, map[string]any{"assignedToId": nil}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unassign: %d %s", w.Code, w.Body.String())
	}
	decode(t, w, &got)
	if got.Status != models.StatusPending || got.AssignedToID != nil {
		t.Fatalf("unexpected unassignment %+v", got)
	}
}

func TestEntityHeaderScope(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin@acme.test")
	root := s.login("root@acme.test")
	other := map[string]string{middleware.EntityHeader: "ent-other"}

	w := s.do(http.MethodGet, "/api/pqr", admin, nil, other)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for admin switching entity, got %d", w.Code)
	}

	s.createPQR(root)
	w = s.do(http.MethodGet, "/api/pqr", root, nil, other)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var items []models.PQRS
	decode(t, w, &items)
	if len(items) != 0 {
		t.Fatalf("expected other entity to have no requests, got %d", len(items))
	}

	w = s.do(http.MethodGet, "/api/entities", admin, nil, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for admin listing entities, got %d", w.Code)
	}
}

func (s *testServer) postMultipart(token, data string, uploads map[string]string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("data", data); err != nil {
		s.t.Fatalf("write field: %v", err)
	}
	for name, content := range uploads {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			s.t.Fatalf("create file: %v", err)
		}
		part.Write([]byte(content))
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/pqr", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.r.ServeHTTP(w, req)
	return w
}

func (s *testServer) uploadCount() int {
	s.t.Helper()
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		s.t.Fatalf("read upload dir: %v", err)
	}
	return len(entries)
}

func TestCreateMultipartWithUpload(t *testing.T) {
	s := newTestServer(t)
	client := s.login("carla@mail.test")

	data := `{"type":"PETITION","departmentId":"dept-legal","subject":"Certificado","description":"Solicito copia"}`
	w := s.postMultipart(client, data, map[string]string{"nota.txt": "hola"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	var p models.PQRS
	decode(t, w, &p)
	if len(p.Attachments) != 1 {
		t.Fatalf("expected 1 attachment, got %d", len(p.Attachments))
	}
	a := p.Attachments[0]
	if a.Name != "nota.txt" || a.Size != 4 || !strings.HasPrefix(a.URL, FilesPrefix+"/") {
		t.Fatalf("unexpected attachment %+v", a)
	}
	if n := s.uploadCount(); n != 1 {
		t.Fatalf("expected 1 stored upload, got %d", n)
	}

	w = s.do(http.MethodGet, a.URL, "", nil, nil)
	if w.Code != http.StatusOK || w.Body.String() != "hola" {
		t.Fatalf("serve upload: %d %q", w.Code, w.Body.String())
	}
}

func TestCreateMultipartFailureRemovesUploads(t *testing.T) {
	s := newTestServer(t)
	client := s.login("carla@mail.test")

	data := `{"type":"PETITION","departmentId":"missing","subject":"Certificado","description":"Solicito copia"}`
	w := s.postMultipart(client, data, map[string]string{"a.txt": "uno", "b.pdf": "dos"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown department, got %d %s", w.Code, w.Body.String())
	}
	if n := s.uploadCount(); n != 0 {
		t.Fatalf("failed create left %d files on disk", n)
	}

	data = `{"type":"NOPE","departmentId":"dept-legal"}`
	w = s.postMultipart(client, data, map[string]string{"c.txt": "tres"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad type, got %d %s", w.Code, w.Body.String())
	}
	if n := s.uploadCount(); n != 0 {
		t.Fatalf("rejected create left %d files on disk", n)
	}
}

func TestCommentsFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.login("admin@acme.test")
	employee := s.login("lucia@acme.test")
	client := s.login("carla@mail.test")
	p := s.createPQR(client)
	path := "/api/pqr/" + p.ID + "/comments"

	w := s.do(http.MethodPost, path, employee, map[string]string{"text": "Estamos revisando"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("comment: %d %s", w.Code, w.Body.String())
	}
	var created models.PQRComment
	decode(t, w, &created)
	if created.Text != "Estamos revisando" || created.User == nil || created.User.FirstName != "Lucía" {
		t.Fatalf("unexpected comment %+v", created)
	}

	w = s.do(http.MethodPost, path, admin, map[string]string{"text": "Respuesta final"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("second comment: %d %s", w.Code, w.Body.String())
	}

	w = s.do(http.MethodGet, path, admin, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}
	var comments []models.PQRComment
	decode(t, w, &comments)
	if len(comments) != 2 || comments[0].Text != "Estamos revisando" || comments[1].Text != "Respuesta final" {
		t.Fatalf("unexpected comments %+v", comments)
	}

	w = s.do(http.MethodPost, path, admin, map[string]string{"text": ""}, nil)
	if w.Code != http.StatusBadRequest || errorCode(t, w) != "VALIDATION_ERROR" {
		t.Fatalf("expected VALIDATION_ERROR, got %d %s", w.Code, w.Body.String())
	}
	w = s.do(http.MethodGet, "/api/pqr/missing/comments", admin, nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	w = s.do(http.MethodPost, path, client, map[string]string{"text": "hola"}, nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for client, got %d", w.Code)
	}
}

func TestStatsAndMe(t *testing.T) {
	s := newTestServer(t)
	employee := s.login("lucia@acme.test")
	admin := s.login("admin@acme.test")
	s.createPQR(admin)

	w := s.do(http.MethodGet, "/api/pqr/stats", employee, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats: %d %s", w.Code, w.Body.String())
	}
	var stats models.DashboardStats
	decode(t, w, &stats)
	if stats.Total != 1 || stats.ByStatus[models.StatusPending] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}

	w = s.do(http.MethodGet, "/api/me", employee, nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me: %d", w.Code)
	}
	var me struct {
		EntityID     string   `json:"entityId"`
		Capabilities []string `json:"capabilities"`
	}
	decode(t, w, &me)
	if me.EntityID != "ent-acme" || len(me.Capabilities) != 3 {
		t.Fatalf("unexpected me %+v", me)
	}

	w = s.do(http.MethodGet, "/api/pqr?startDate=yesterday", admin, nil, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", w.Code)
	}
}

func TestCreateEntityRejectsTakenCode(t *testing.T) {
	s := newTestServer(t)
	root := s.login("root@acme.test")

	w := s.do(http.MethodPost, "/api/entities", root, map[string]any{"name": "Acme Norte", "code": "acm"}, nil)
	if w.Code != http.StatusConflict || errorCode(t, w) != "CONFLICT" {
		t.Fatalf("expected 409 CONFLICT, got %d %s", w.Code, w.Body.String())
	}

	w = s.do(http.MethodPost, "/api/entities", root, map[string]any{"name": "Norte", "code": "NTE"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create entity: %d %s", w.Code, w.Body.String())
	}
}
