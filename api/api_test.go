package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rpupo63/portfolio-backend/auth"
	"github.com/rpupo63/portfolio-backend/config"
	"github.com/rpupo63/portfolio-backend/database"
	"github.com/rpupo63/portfolio-backend/images"
	"github.com/rpupo63/portfolio-backend/models"
)

const testAdminKey = "correct horse battery staple"

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testEnv struct {
	server    *httptest.Server
	uploadDir string
}

type testClient struct {
	env    *testEnv
	client *http.Client
	token  string
}

func newTestEnv(t *testing.T, adminKey string, tweak ...func(*config.Settings)) *testEnv {
	t.Helper()
	dir := t.TempDir()

	backend, err := database.NewFileBackend(filepath.Join(dir, "site-config.json"))
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	db := database.New(database.NewDocumentStore(backend))
	t.Cleanup(func() { db.Close() })

	uploadDir := filepath.Join(dir, "uploads")
	uploads, err := images.NewDiskUploads(uploadDir, "")
	if err != nil {
		t.Fatalf("NewDiskUploads: %v", err)
	}

	keys, err := auth.DeriveKeys(testSecret)
	if err != nil {
		t.Fatalf("DeriveKeys: %v", err)
	}
	services := Services{
		Gate:    auth.NewGate(auth.NewCookieStore(time.Hour, false, keys.SessionKeyPairs()...), adminKey, time.Hour),
		CSRF:    auth.NewCSRFGuard(keys.CSRF),
		Guard:   images.NewUploadGuard(),
		Uploads: uploads,
	}
	settings := config.Settings{
		AllowedOrigins: []string{"http://localhost:3000"},
		LoginRateLimit: 100,
		UploadTimeout:  5 * time.Second,
	}
	for _, fn := range tweak {
		fn(&settings)
	}

	server := httptest.NewServer(newRouter(db, services, withSettings(settings), withStartupTime(time.Now())))
	t.Cleanup(server.Close)
	return &testEnv{server: server, uploadDir: uploadDir}
}

// newClient returns a browser-like client holding its own cookies and CSRF token.
func (e *testEnv) newClient(t *testing.T) *testClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	c := &testClient{env: e, client: &http.Client{Jar: jar}}
	c.refreshToken(t)
	return c
}

func (c *testClient) refreshToken(t *testing.T) {
	t.Helper()
	resp := c.do(t, http.MethodGet, "/api/csrf-token", nil, "", false)
	var body CSRFTokenResponse
	decode(t, resp, http.StatusOK, &body)
	if body.Token == "" {
		t.Fatal("empty csrf token")
	}
	c.token = body.Token
}

func (c *testClient) do(t *testing.T, method, target string, body io.Reader, contentType string, withToken bool) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, c.env.server.URL+target, body)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if withToken {
		req.Header.Set(auth.CSRFHeaderName, c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (c *testClient) postJSON(t *testing.T, method, target string, payload any) *http.Response {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return c.do(t, method, target, bytes.NewReader(data), "application/json", true)
}

func (c *testClient) login(t *testing.T, key string) *http.Response {
	t.Helper()
	return c.postJSON(t, http.MethodPost, "/api/admin/login", LoginRequest{Key: key})
}

func decode(t *testing.T, resp *http.Response, wantStatus int, out any) {
	t.Helper()
	if resp.StatusCode != wantStatus {
		data, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: status = %d, want %d, body %s", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, wantStatus, data)
	}
	if out == nil {
		return
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func expectError(t *testing.T, resp *http.Response, wantStatus int, wantCode string) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	decode(t, resp, wantStatus, &body)
	if body.Code != wantCode || body.Status != "error" {
		t.Fatalf("error body = %+v, want code %q", body, wantCode)
	}
	return body
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for x := 0; x < 16; x++ {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

type filePart struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func multipartBody(t *testing.T, fields map[string]string, file *filePart) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+file.field+`"; filename="`+file.filename+`"`)
		h.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		if _, err := part.Write(file.data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestMutationsRequireSessionThenCSRF(t *testing.T) {
	env := newTestEnv(t, testAdminKey)

	anonymous := env.newClient(t)
	admin := env.newClient(t)
	decode(t, admin.login(t, testAdminKey), http.StatusOK, nil)

	created := struct{ ID string }{}
	decode(t, admin.postJSON(t, http.MethodPost, "/api/projects", map[string]any{
		"title": "Seed", "description": "d",
	}), http.StatusCreated, &created)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/profile"},
		{http.MethodPost, "/api/projects"},
		{http.MethodPatch, "/api/projects/" + created.ID},
		{http.MethodDelete, "/api/projects/" + created.ID},
		{http.MethodPost, "/api/projects/upload-image"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			// Unauthenticated requests fail before CSRF is looked at.
			expectError(t, anonymous.do(t, rt.method, rt.path, strings.NewReader("{}"), "application/json", true),
				http.StatusUnauthorized, "unauthorized")
			expectError(t, anonymous.do(t, rt.method, rt.path, strings.NewReader("{}"), "application/json", false),
				http.StatusUnauthorized, "unauthorized")

			// Authenticated without the header token.
			expectError(t, admin.do(t, rt.method, rt.path, strings.NewReader("{}"), "application/json", false),
				http.StatusForbidden, "csrf_rejected")
		})
	}

	// A token from another session is not accepted.
	foreign := admin.token
	admin.token = anonymous.token
	expectError(t, admin.postJSON(t, http.MethodPost, "/api/projects", map[string]any{"title": "x", "description": "y"}),
		http.StatusForbidden, "csrf_rejected")
	admin.token = foreign

	var list []models.Project
	decode(t, anonymous.do(t, http.MethodGet, "/api/projects", nil, "", false), http.StatusOK, &list)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("rejected mutations must not change state, got %+v", list)
	}
}

func TestAdminLoginLifecycle(t *testing.T) {
	env := newTestEnv(t, testAdminKey)
	c := env.newClient(t)

	var status AdminStatusResponse
	decode(t, c.do(t, http.MethodGet, "/api/admin/status", nil, "", false), http.StatusOK, &status)
	if status.Authenticated || !status.Configured {
		t.Fatalf("unexpected initial status %+v", status)
	}

	// Login is a mutation too.
	expectError(t, c.do(t, http.MethodPost, "/api/admin/login", strings.NewReader(`{"key":"`+testAdminKey+`"}`), "application/json", false),
		http.StatusForbidden, "csrf_rejected")

	body := expectError(t, c.login(t, "wrong"), http.StatusUnauthorized, "unauthorized")
	if strings.Contains(body.Error, testAdminKey) {
		t.Fatalf("error body leaks the admin key: %+v", body)
	}

	var ok SuccessResponse
	decode(t, c.login(t, testAdminKey), http.StatusOK, &ok)
	if !ok.Success {
		t.Fatal("login did not report success")
	}

	decode(t, c.do(t, http.MethodGet, "/api/admin/status", nil, "", false), http.StatusOK, &status)
	if !status.Authenticated {
		t.Fatal("expected authenticated after login")
	}

	decode(t, c.do(t, http.MethodPost, "/api/admin/logout", nil, "", true), http.StatusOK, &ok)

	decode(t, c.do(t, http.MethodGet, "/api/admin/status", nil, "", false), http.StatusOK, &status)
	if status.Authenticated {
		t.Fatal("expected logged out")
	}

	c.refreshToken(t)
	expectError(t, c.postJSON(t, http.MethodPost, "/api/projects", map[string]any{"title": "t", "description": "d"}),
		http.StatusUnauthorized, "unauthorized")
}

func TestLoginWithoutAdminKeyConfigured(t *testing.T) {
	env := newTestEnv(t, "")
	c := env.newClient(t)

	var status AdminStatusResponse
	decode(t, c.do(t, http.MethodGet, "/api/admin/status", nil, "", false), http.StatusOK, &status)
	if status.Configured {
		t.Fatal("expected unconfigured admin")
	}
	expectError(t, c.login(t, ""), http.StatusForbidden, "admin_not_configured")
}

func TestLoginIsRateLimited(t *testing.T) {
	env := newTestEnv(t, testAdminKey, func(s *config.Settings) { s.LoginRateLimit = 2 })
	c := env.newClient(t)

	expectError(t, c.login(t, "nope"), http.StatusUnauthorized, "unauthorized")
	expectError(t, c.login(t, "nope"), http.StatusUnauthorized, "unauthorized")
	expectError(t, c.login(t, testAdminKey), http.StatusTooManyRequests, "rate_limited")
}

func TestProjectLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t, testAdminKey)
	c := env.newClient(t)
	decode(t, c.login(t, testAdminKey), http.StatusOK, nil)

	var created models.Project
	decode(t, c.postJSON(t, http.MethodPost, "/api/projects", map[string]any{
		"title":       "Portfolio",
		"description": "Personal site",
		"tags":        "go, web ,",
		"order":       "2.9",
		"liveUrl":     "https://example.com",
	}), http.StatusCreated, &created)
	if created.ID == "" || created.Order != 2 || len(created.Tags) != 2 {
		t.Fatalf("unexpected created project %+v", created)
	}

	var second models.Project
	decode(t, c.postJSON(t, http.MethodPost, "/api/projects", map[string]any{
		"title": "First", "description": "d", "order": 0,
	}), http.StatusCreated, &second)

	expectError(t, c.postJSON(t, http.MethodPost, "/api/projects", map[string]any{
		"title": "Bad", "description": "d", "order": -1,
	}), http.StatusBadRequest, "invalid_argument")

	var patched models.Project
	decode(t, c.postJSON(t, http.MethodPatch, "/api/projects/"+created.ID, map[string]any{
		"title": "Renamed",
	}), http.StatusOK, &patched)
	if patched.Title != "Renamed" || patched.Description != "Personal site" || patched.LiveURL == nil {
		t.Fatalf("patch should merge, got %+v", patched)
	}

	var list []models.Project
	decode(t, c.do(t, http.MethodGet, "/api/projects", nil, "", false), http.StatusOK, &list)
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != created.ID {
		t.Fatalf("list not sorted by order: %+v", list)
	}

	var got models.Project
	decode(t, c.do(t, http.MethodGet, "/api/projects/"+created.ID, nil, "", false), http.StatusOK, &got)
	if got.Title != "Renamed" {
		t.Fatalf("get returned %+v", got)
	}

	var ok SuccessResponse
	decode(t, c.do(t, http.MethodDelete, "/api/projects/"+created.ID, nil, "", true), http.StatusOK, &ok)
	expectError(t, c.do(t, http.MethodGet, "/api/projects/"+created.ID, nil, "", false), http.StatusNotFound, "not_found")
	expectError(t, c.do(t, http.MethodDelete, "/api/projects/"+created.ID, nil, "", true), http.StatusNotFound, "not_found")
	expectError(t, c.postJSON(t, http.MethodPatch, "/api/projects/"+created.ID, map[string]any{"title": "x"}), http.StatusNotFound, "not_found")
}

func TestMalformedJSONIsRejected(t *testing.T) {
	env := newTestEnv(t, testAdminKey)
	c := env.newClient(t)
	decode(t, c.login(t, testAdminKey), http.StatusOK, nil)

	body := expectError(t, c.do(t, http.MethodPost, "/api/projects", strings.NewReader("{not json"), "application/json", true),
		http.StatusBadRequest, "invalid_argument")
	if body.Field != "payload" {
		t.Fatalf("field = %q", body.Field)
	}
}

func TestProfileImageUploadAndReplacement(t *testing.T) {
	env := newTestEnv(t, testAdminKey)
	c := env.newClient(t)
	decode(t, c.login(t, testAdminKey), http.StatusOK, nil)

	expectError(t, c.do(t, http.MethodGet, "/api/profile", nil, "", false), http.StatusNotFound, "not_found")

	body, contentType := multipartBody(t, map[string]string{
		"name":   "Ada",
		"title":  "Engineer",
		"github": "https://github.com/ada",
	}, &filePart{field: "profileImage", filename: "me.png", contentType: "image/png", data: pngBytes(t)})

	var first models.Profile
	decode(t, c.do(t, http.MethodPost, "/api/profile", body, contentType, true), http.StatusOK, &first)
	if first.ProfileImage == nil || !strings.HasPrefix(*first.ProfileImage, "/data/uploads/profile-") {
		t.Fatalf("expected stored upload path, got %v", first.ProfileImage)
	}
	storedFile := filepath.Join(env.uploadDir, path.Base(*first.ProfileImage))
	if _, err := os.Stat(storedFile); err != nil {
		t.Fatalf("uploaded file missing: %v", err)
	}

	resp := c.do(t, http.MethodGet, *first.ProfileImage, nil, "", false)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("static upload: status %d type %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	// An invalid explicit URL fails without touching the stored profile.
	body, contentType = multipartBody(t, map[string]string{
		"name":            "Ada",
		"profileImageUrl": "ftp://example.com/me.png",
	}, nil)
	expectError(t, c.do(t, http.MethodPost, "/api/profile", body, contentType, true), http.StatusBadRequest, "invalid_argument")

	// Without a new image the existing one is kept.
	var kept models.Profile
	decode(t, c.postJSON(t, http.MethodPost, "/api/profile", map[string]any{"name": "Ada L."}), http.StatusOK, &kept)
	if kept.ID != first.ID || kept.ProfileImage == nil || *kept.ProfileImage != *first.ProfileImage {
		t.Fatalf("existing image should be kept, got %+v", kept)
	}
	if kept.Github != nil {
		t.Fatalf("profile upsert is a full replace, github = %v", *kept.Github)
	}

	// An explicit URL beats a file sent in the same request and replaces the old upload.
	body, contentType = multipartBody(t, map[string]string{
		"name":            "Ada",
		"profileImageUrl": "https://cdn.example.com/ada.png",
	}, &filePart{field: "profileImage", filename: "me.png", contentType: "image/png", data: pngBytes(t)})
	var replaced models.Profile
	decode(t, c.do(t, http.MethodPost, "/api/profile", body, contentType, true), http.StatusOK, &replaced)
	if replaced.ProfileImage == nil || *replaced.ProfileImage != "https://cdn.example.com/ada.png" {
		t.Fatalf("explicit URL should win, got %v", replaced.ProfileImage)
	}
	if _, err := os.Stat(storedFile); !os.IsNotExist(err) {
		t.Fatalf("replaced upload should be removed, stat err = %v", err)
	}
	entries, err := os.ReadDir(env.uploadDir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("file sent alongside an explicit URL should not be stored, found %d entries", len(entries))
	}

	var site SiteConfigResponse
	decode(t, c.do(t, http.MethodGet, "/api/config", nil, "", false), http.StatusOK, &site)
	if site.Profile == nil || site.Profile.Name != "Ada" || site.ProjectCount != 0 {
		t.Fatalf("unexpected site config %+v", site)
	}
}

func TestProfileRejectsBadUpload(t *testing.T) {
	env := newTestEnv(t, testAdminKey)
	c := env.newClient(t)
	decode(t, c.login(t, testAdminKey), http.StatusOK, nil)

	body, contentType := multipartBody(t, map[string]string{"name": "Ada"},
		&filePart{field: "profileImage", filename: "tool.exe", contentType: "application/octet-stream", data: []byte("MZ\x90\x00")})
	expectError(t, c.do(t, http.MethodPost, "/api/profile", body, contentType, true), http.StatusUnsupportedMediaType, "payload_rejected")

	expectError(t, c.do(t, http.MethodGet, "/api/profile", nil, "", false), http.StatusNotFound, "not_found")
}

func TestUploadProjectImage(t *testing.T) {
	env := newTestEnv(t, testAdminKey)
	c := env.newClient(t)
	decode(t, c.login(t, testAdminKey), http.StatusOK, nil)

	data := pngBytes(t)
	body, contentType := multipartBody(t, nil, &filePart{field: "image", filename: "shot.png", contentType: "image/png", data: data})
	var out ImageDataResponse
	decode(t, c.do(t, http.MethodPost, "/api/projects/upload-image", body, contentType, true), http.StatusOK, &out)
	if out.ImageData != images.EncodeDataURI("image/png", data) {
		t.Fatalf("unexpected data URI prefix %q", out.ImageData[:min(len(out.ImageData), 40)])
	}

	cases := []struct {
		name   string
		file   filePart
		status int
		field  string
	}{
		{
			name:   "too large",
			file:   filePart{field: "image", filename: "big.png", contentType: "image/png", data: make([]byte, images.MaxUploadBytes+1)},
			status: http.StatusRequestEntityTooLarge,
			field:  "size",
		},
		{
			name:   "executable",
			file:   filePart{field: "image", filename: "run.exe", contentType: "application/x-msdownload", data: []byte("MZ")},
			status: http.StatusUnsupportedMediaType,
			field:  "type",
		},
		{
			name:   "html disguised as png",
			file:   filePart{field: "image", filename: "x.png", contentType: "image/png", data: []byte("<html><script>alert(1)</script></html>")},
			status: http.StatusUnsupportedMediaType,
			field:  "content",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			file := tc.file
			body, contentType := multipartBody(t, nil, &file)
			got := expectError(t, c.do(t, http.MethodPost, "/api/projects/upload-image", body, contentType, true), tc.status, "payload_rejected")
			if got.Field != tc.field {
				t.Fatalf("field = %q, want %q", got.Field, tc.field)
			}
		})
	}

	body, contentType = multipartBody(t, map[string]string{"other": "x"}, nil)
	expectError(t, c.do(t, http.MethodPost, "/api/projects/upload-image", body, contentType, true), http.StatusBadRequest, "invalid_argument")
}

func TestResponsesCarryCSRFAndSecurityHeaders(t *testing.T) {
	env := newTestEnv(t, testAdminKey)
	c := env.newClient(t)

	resp := c.do(t, http.MethodGet, "/api/projects", nil, "", false)
	if resp.Header.Get(auth.CSRFHeaderName) != c.token {
		t.Fatalf("expected the session's token to be re-used, got %q want %q", resp.Header.Get(auth.CSRFHeaderName), c.token)
	}
	if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing nosniff header")
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("content type = %q", ct)
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, testAdminKey)

	preflight := func(origin string) *http.Response {
		req, _ := http.NewRequest(http.MethodOptions, env.server.URL+"/api/projects", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "content-type,x-csrf-token")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("preflight: %v", err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	resp := preflight("http://localhost:3000")
	if resp.Header.Get("Access-Control-Allow-Origin") != "http://localhost:3000" ||
		resp.Header.Get("Access-Control-Allow-Credentials") != "true" {
		t.Fatalf("allowed origin not granted: %v", resp.Header)
	}

	expectError(t, preflight("https://evil.example"), http.StatusForbidden, "cors_blocked")
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, testAdminKey, func(s *config.Settings) { s.MetricsEnabled = true })

	var health HealthResponse
	resp, err := http.Get(env.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	defer resp.Body.Close()
	decode(t, resp, http.StatusOK, &health)
	if health.Status != "ok" {
		t.Fatalf("health = %+v", health)
	}

	metrics, err := http.Get(env.server.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer metrics.Body.Close()
	data, _ := io.ReadAll(metrics.Body)
	if !strings.Contains(string(data), `portfolio_http_requests_total{method="GET",path="/healthz",status="200"}`) {
		t.Fatalf("request metric missing from /metrics output")
	}
}
