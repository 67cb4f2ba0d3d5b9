package httpserver

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-units"
	"go.uber.org/zap"

	"github.com/robotsunny/private-app-store/internal/auth"
	"github.com/robotsunny/private-app-store/internal/models"
	"github.com/robotsunny/private-app-store/internal/storage"
	"github.com/robotsunny/private-app-store/internal/store"
	"github.com/robotsunny/private-app-store/internal/upload"
)

type testEnv struct {
	router     http.Handler
	store      *store.GormStore
	tokens     *auth.TokenService
	storageDir string
	admin      string // bearer tokens
	user       string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := store.Open("", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	st, err := store.NewGormStore(db)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	storageDir := t.TempDir()
	files, err := storage.NewFileStore(storageDir)
	if err != nil {
		t.Fatalf("file store: %v", err)
	}

	tokens := auth.NewTokenService("test-secret", time.Hour)
	lg := zap.NewNop().Sugar()

	env := &testEnv{
		store:      st,
		tokens:     tokens,
		storageDir: storageDir,
	}
	env.router = NewRouter(Deps{
		Store:          st,
		Files:          files,
		Tokens:         tokens,
		Validator:      upload.NewValidator(upload.DefaultPolicy(), lg),
		MaxUploadBytes: 200 * units.MiB,
		Lg:             lg,
	})

	env.admin = env.seedUser(t, "admin@example.com", models.RoleAdmin)
	env.user = env.seedUser(t, "user@example.com", models.RoleUser)
	return env
}

func (e *testEnv) seedUser(t *testing.T, email, role string) string {
	t.Helper()
	hash, err := auth.HashPassword("admin123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := models.User{Name: "Seed", Email: email, PasswordHash: hash, Role: role}
	if err := e.store.CreateUser(&u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	tok, err := e.tokens.Sign(u)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return tok
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}

// multipartUpload builds the form the upload route expects.
func multipartUpload(t *testing.T, fileName string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("appFile", fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func apkContent(n int) []byte {
	b := bytes.Repeat([]byte{0x7F}, n)
	b[0], b[1] = 0x50, 0x4B
	return b
}

func androidFields() map[string]string {
	return map[string]string{
		"name":     "Test App",
		"version":  "1.0.0",
		"platform": "android",
		"bundleId": "com.x.y",
	}
}

func (e *testEnv) upload(t *testing.T, token, fileName string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartUpload(t, fileName, content, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/uploads/upload", body)
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return e.do(t, req)
}

// leftovers reports stray files: spooled temps and promoted blobs.
func (e *testEnv) leftovers(t *testing.T) (temps, blobs int) {
	t.Helper()
	entries, err := os.ReadDir(e.storageDir)
	if err != nil {
		t.Fatalf("read storage dir: %v", err)
	}
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		blobs++
	}
	tmpEntries, err := os.ReadDir(filepath.Join(e.storageDir, "tmp"))
	if err != nil {
		t.Fatalf("read tmp dir: %v", err)
	}
	return len(tmpEntries), blobs
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)

	reg := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"name":"New Dev","email":"new@example.com","password":"pw12345"}`))
	rec := env.do(t, reg)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["token"] == "" || body["token"] == nil {
		t.Fatal("register must return a token")
	}
	user := body["user"].(map[string]any)
	if user["role"] != models.RoleUser {
		t.Fatalf("registered role = %v, want user", user["role"])
	}
	if _, leaked := user["passwordHash"]; leaked {
		t.Fatal("password hash must not appear in responses")
	}

	dup := httptest.NewRequest(http.MethodPost, "/api/auth/register",
		strings.NewReader(`{"email":"new@example.com","password":"pw12345"}`))
	if rec := env.do(t, dup); rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate register = %d", rec.Code)
	}

	login := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"new@example.com","password":"pw12345"}`))
	if rec := env.do(t, login); rec.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", rec.Code, rec.Body.String())
	}

	bad := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"new@example.com","password":"wrong"}`))
	if rec := env.do(t, bad); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d", rec.Code)
	}
}

func TestUploadPrivilegeGate(t *testing.T) {
	env := newTestEnv(t)
	content := apkContent(2 * units.MiB)

	if rec := env.upload(t, "", "app.apk", content, androidFields()); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous upload = %d, want 401", rec.Code)
	}
	if rec := env.upload(t, env.user, "app.apk", content, androidFields()); rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin upload = %d, want 403", rec.Code)
	}

	// neither attempt may leave a record or a file behind
	apps, _ := env.store.ListApps(store.AppFilter{IncludeInactive: true})
	if len(apps) != 0 {
		t.Fatalf("gate must keep the validator untouched, found %d apps", len(apps))
	}
	temps, blobs := env.leftovers(t)
	if temps != 0 || blobs != 0 {
		t.Fatalf("leftover files: %d temps, %d blobs", temps, blobs)
	}
}

func TestUploadAndDownloadRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	content := apkContent(5 * units.MiB)

	rec := env.upload(t, env.admin, "app.apk", content, androidFields())
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	data := body["data"].(map[string]any)

	sum := sha256.Sum256(content)
	if data["checksum"] != hex.EncodeToString(sum[:]) {
		t.Fatalf("checksum = %v, want %s", data["checksum"], hex.EncodeToString(sum[:]))
	}
	if data["fileSize"].(float64) != 5.0 {
		t.Fatalf("fileSize = %v, want 5.0", data["fileSize"])
	}
	if data["minOsVersion"] != "8.0" {
		t.Fatalf("minOsVersion = %v", data["minOsVersion"])
	}
	appID := int(data["id"].(float64))

	// catalog lists it
	list := env.do(t, httptest.NewRequest(http.MethodGet, "/api/apps", nil))
	if list.Code != http.StatusOK || !strings.Contains(list.Body.String(), `"Test App"`) {
		t.Fatalf("catalog = %d: %s", list.Code, list.Body.String())
	}
	detail := env.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/apps/%d", appID), nil))
	if detail.Code != http.StatusOK {
		t.Fatalf("detail = %d", detail.Code)
	}

	// repeated downloads are byte-identical and match the upload
	var first []byte
	for i := 0; i < 2; i++ {
		dl := env.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/uploads/download/%d", appID), nil))
		if dl.Code != http.StatusOK {
			t.Fatalf("download = %d", dl.Code)
		}
		if cd := dl.Header().Get("Content-Disposition"); !strings.Contains(cd, `"app.apk"`) {
			t.Fatalf("content disposition = %q", cd)
		}
		got, _ := io.ReadAll(dl.Body)
		if !bytes.Equal(got, content) {
			t.Fatal("downloaded bytes differ from upload")
		}
		if i == 0 {
			first = got
		} else if !bytes.Equal(first, got) {
			t.Fatal("downloads are not idempotent")
		}
	}

	// checksum reproducible from the stored file alone
	app, ok, err := env.store.AppByID(uint(appID))
	if err != nil || !ok {
		t.Fatalf("app lookup: ok=%v err=%v", ok, err)
	}
	onDisk, err := os.ReadFile(filepath.Join(env.storageDir, app.FileName))
	if err != nil {
		t.Fatalf("read stored blob: %v", err)
	}
	diskSum := sha256.Sum256(onDisk)
	if hex.EncodeToString(diskSum[:]) != app.Checksum {
		t.Fatal("stored checksum does not match stored bytes")
	}

	temps, blobs := env.leftovers(t)
	if temps != 0 || blobs != 1 {
		t.Fatalf("storage state: %d temps, %d blobs", temps, blobs)
	}
}

func TestUploadRejectionsLeaveNoPartialArtifact(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name     string
		fileName string
		content  []byte
		fields   map[string]string
		contains string
	}{
		{
			name:     "extension platform mismatch",
			fileName: "app.ipa",
			content:  apkContent(2 * units.MiB),
			fields:   androidFields(),
			contains: "doesn't match platform",
		},
		{
			name:     "missing metadata",
			fileName: "app.apk",
			content:  apkContent(2 * units.MiB),
			fields:   map[string]string{"platform": "android"},
			contains: "required",
		},
		{
			name:     "file too small",
			fileName: "app.apk",
			content:  apkContent(500 * units.KiB),
			fields:   androidFields(),
			contains: "0.49 MB",
		},
		{
			name:     "bad container signature",
			fileName: "app.apk",
			content:  bytes.Repeat([]byte("x"), 2*units.MiB),
			fields:   androidFields(),
			contains: "ZIP",
		},
		{
			name:     "deny-listed filename",
			fileName: "test-malware.apk",
			content:  apkContent(2 * units.MiB),
			fields:   androidFields(),
			contains: "security",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := env.upload(t, env.admin, c.fileName, c.content, c.fields)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			if !strings.Contains(strings.ToLower(rec.Body.String()), strings.ToLower(c.contains)) {
				t.Fatalf("body %q should mention %q", rec.Body.String(), c.contains)
			}

			apps, _ := env.store.ListApps(store.AppFilter{IncludeInactive: true})
			if len(apps) != 0 {
				t.Fatalf("no record may exist after a rejection, found %d", len(apps))
			}
			temps, blobs := env.leftovers(t)
			if temps != 0 || blobs != 0 {
				t.Fatalf("leftover files after rejection: %d temps, %d blobs", temps, blobs)
			}
		})
	}
}

func TestDownloadNotFoundCases(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/uploads/download/999", nil)); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id = %d, want 404", rec.Code)
	}

	// inactive record
	inactive := models.App{Name: "Hidden", Platform: models.PlatformAndroid, BundleID: "com.x", DeveloperID: 1, FileName: "gone.apk", Checksum: "c", IsActive: false}
	if err := env.store.CreateApp(&inactive); err != nil {
		t.Fatalf("create: %v", err)
	}
	rec := env.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/uploads/download/%d", inactive.ID), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("inactive = %d, want 404", rec.Code)
	}

	// active record whose blob is missing
	orphan := models.App{Name: "Orphan", Platform: models.PlatformAndroid, BundleID: "com.x", DeveloperID: 1, FileName: "missing.apk", Checksum: "c", IsActive: true}
	if err := env.store.CreateApp(&orphan); err != nil {
		t.Fatalf("create: %v", err)
	}
	rec = env.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/uploads/download/%d", orphan.ID), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing blob = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "File not found") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestInactiveAppsHiddenFromCatalog(t *testing.T) {
	env := newTestEnv(t)
	hidden := models.App{Name: "Hidden", Platform: models.PlatformIOS, BundleID: "com.x", DeveloperID: 1, FileName: "f.ipa", Checksum: "c", IsActive: false}
	if err := env.store.CreateApp(&hidden); err != nil {
		t.Fatalf("create: %v", err)
	}

	list := env.do(t, httptest.NewRequest(http.MethodGet, "/api/apps", nil))
	if strings.Contains(list.Body.String(), "Hidden") {
		t.Fatal("inactive apps must not appear in the catalog")
	}
	detail := env.do(t, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/apps/%d", hidden.ID), nil))
	if detail.Code != http.StatusNotFound {
		t.Fatalf("inactive detail = %d, want 404", detail.Code)
	}
}

func TestStatsSummarizesOwnApps(t *testing.T) {
	env := newTestEnv(t)

	rec := env.upload(t, env.admin, "app.apk", apkContent(2*units.MiB), androidFields())
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload = %d: %s", rec.Code, rec.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/api/uploads/stats", nil)
	req.Header.Set("Authorization", "Bearer "+env.admin)
	rec = env.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("stats = %d: %s", rec.Code, rec.Body.String())
	}
	data := decodeBody(t, rec)["data"].(map[string]any)
	if data["totalApps"].(float64) != 1 || data["androidApps"].(float64) != 1 || data["iosApps"].(float64) != 0 {
		t.Fatalf("stats = %v", data)
	}

	// other users see their own, empty, summary
	req = httptest.NewRequest(http.MethodGet, "/api/uploads/stats", nil)
	req.Header.Set("Authorization", "Bearer "+env.user)
	rec = env.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("user stats = %d", rec.Code)
	}
	data = decodeBody(t, rec)["data"].(map[string]any)
	if data["totalApps"].(float64) != 0 {
		t.Fatalf("user stats = %v", data)
	}
}

func TestAuditTrailRecordsRequests(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, httptest.NewRequest(http.MethodGet, "/api/apps", nil))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/audit", nil)
	req.Header.Set("Authorization", "Bearer "+env.admin)
	rec := env.do(t, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("audit list = %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "/api/apps") {
		t.Fatalf("audit trail should contain the catalog request: %s", rec.Body.String())
	}

	// the audit endpoint is admin-only
	req = httptest.NewRequest(http.MethodGet, "/api/admin/audit", nil)
	req.Header.Set("Authorization", "Bearer "+env.user)
	if rec := env.do(t, req); rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin audit list = %d, want 403", rec.Code)
	}
}
