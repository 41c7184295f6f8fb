package server

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"chatvault/internal/servicetoken"
	"chatvault/pkg/domain"
	"chatvault/pkg/storage"
	"chatvault/pkg/store"
	"chatvault/services/importer/internal/app"
)

const testTranscript = "[01.02.2023, 09:15:00] Alice: Hello\nworld\n" +
	"[01.02.2023, 09:16:00] Bob: ok\n"

type stubQueue struct {
	jobs []string
}

func (q *stubQueue) Enqueue(_ context.Context, jobID string) error {
	q.jobs = append(q.jobs, jobID)
	return nil
}

type testEnv struct {
	server *httptest.Server
	app    *app.App
	queue  *stubQueue
	token  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pubPath := filepath.Join(t.TempDir(), "public.pem")
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile(pubPath, pubPEM, 0o600); err != nil {
		t.Fatalf("write public key: %v", err)
	}

	signer, err := servicetoken.NewSigner("gateway", "test-key", key, time.Minute)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	token, err := signer.Sign("importer")
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	queue := &stubQueue{}
	core := app.New(app.Config{BatchSize: 10}, store.NewMemoryStore(), storage.NewMemoryObjectStore(), queue)

	srv, err := New(Config{
		App:                      core,
		InternalJWTPublicKeyPath: pubPath,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, app: core, queue: queue, token: token}
}

func (e *testEnv) do(t *testing.T, method, path, contentType string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func multipartBody(t *testing.T, fields map[string]string, filename string, fileData []byte) (string, []byte) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(fileData); err != nil {
		t.Fatalf("write file part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return mw.FormDataContentType(), buf.Bytes()
}

func TestHealthzUnauthenticated(t *testing.T) {
	e := newTestEnv(t)
	resp, err := http.Get(e.server.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	e := newTestEnv(t)
	resp, err := http.Get(e.server.URL + "/import/jobs")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAuthRejectsBadToken(t *testing.T) {
	e := newTestEnv(t)
	req, _ := http.NewRequest(http.MethodGet, e.server.URL+"/import/jobs", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := e.server.Client().Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestChunkedImportFlow(t *testing.T) {
	e := newTestEnv(t)

	body, _ := json.Marshal(map[string]any{
		"filename":    "WhatsApp Chat with Alice.txt",
		"fileSize":    len(testTranscript),
		"totalChunks": 2,
	})
	resp := e.do(t, http.MethodPost, "/import/init", "application/json", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("init status = %d, want 201", resp.StatusCode)
	}
	job := decodeJSON[domain.ImportJob](t, resp)
	if job.Status != domain.JobUploading {
		t.Fatalf("status = %s, want uploading", job.Status)
	}

	half := len(testTranscript) / 2
	parts := []string{testTranscript[:half], testTranscript[half:]}
	for i, part := range parts {
		ct, mp := multipartBody(t, map[string]string{
			"jobId":       job.ID,
			"chunkNumber": strconv.Itoa(i),
		}, "chunk", []byte(part))
		resp := e.do(t, http.MethodPost, "/import/chunks", ct, mp)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("chunk %d status = %d, want 200", i, resp.StatusCode)
		}
		job = decodeJSON[domain.ImportJob](t, resp)
	}
	if job.Status != domain.JobPending {
		t.Fatalf("status = %s, want pending after last chunk", job.Status)
	}

	body, _ = json.Marshal(map[string]string{"jobId": job.ID})
	resp = e.do(t, http.MethodPost, "/import/start", "application/json", body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("start status = %d, want 202", resp.StatusCode)
	}
	if len(e.queue.jobs) != 1 || e.queue.jobs[0] != job.ID {
		t.Fatalf("enqueued = %v", e.queue.jobs)
	}

	resp = e.do(t, http.MethodGet, "/import/jobs/"+job.ID+"/progress", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("progress status = %d, want 200", resp.StatusCode)
	}
	progress := decodeJSON[app.Progress](t, resp)
	if progress.Percent != 50 {
		t.Fatalf("percent = %d, want 50 for pending", progress.Percent)
	}
}

func TestSimpleUploadAndReadSurface(t *testing.T) {
	e := newTestEnv(t)

	ct, mp := multipartBody(t, nil, "WhatsApp Chat with Alice.txt", []byte(testTranscript))
	resp := e.do(t, http.MethodPost, "/import/simple", ct, mp)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("simple status = %d, want 201", resp.StatusCode)
	}
	job := decodeJSON[domain.ImportJob](t, resp)
	if job.Status != domain.JobPending {
		t.Fatalf("status = %s, want pending", job.Status)
	}

	// Run the worker inline to populate the read surface.
	if err := e.app.ProcessImport(context.Background(), job.ID); err != nil {
		t.Fatalf("ProcessImport: %v", err)
	}

	resp = e.do(t, http.MethodGet, "/conversations", "", nil)
	convs := decodeJSON[[]domain.Conversation](t, resp)
	if len(convs) != 1 || convs[0].Name != "Alice" {
		t.Fatalf("conversations = %+v", convs)
	}

	resp = e.do(t, http.MethodGet, "/conversations/"+convs[0].ID+"/messages", "", nil)
	msgs := decodeJSON[[]domain.Message](t, resp)
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[0].Content != "Hello\nworld" {
		t.Fatalf("content = %q", msgs[0].Content)
	}

	resp = e.do(t, http.MethodDelete, "/conversations/"+convs[0].ID, "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", resp.StatusCode)
	}
	resp = e.do(t, http.MethodGet, "/conversations/"+convs[0].ID, "", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get deleted status = %d, want 404", resp.StatusCode)
	}
}

func TestImportStartConflict(t *testing.T) {
	e := newTestEnv(t)

	body, _ := json.Marshal(map[string]any{"filename": "chat.txt", "fileSize": 10, "totalChunks": 2})
	resp := e.do(t, http.MethodPost, "/import/init", "application/json", body)
	job := decodeJSON[domain.ImportJob](t, resp)

	body, _ = json.Marshal(map[string]string{"jobId": job.ID})
	resp = e.do(t, http.MethodPost, "/import/start", "application/json", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409 for uploading job", resp.StatusCode)
	}
}

func TestJobNotFound(t *testing.T) {
	e := newTestEnv(t)
	resp := e.do(t, http.MethodGet, "/import/jobs/does-not-exist", "", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestMediaRedirect(t *testing.T) {
	e := newTestEnv(t)

	var zipBuf bytes.Buffer
	zw := zip.NewWriter(&zipBuf)
	for name, content := range map[string]string{
		"WhatsApp Chat with Alice.txt": "[01.02.2023, 09:16:00] Bob: \u200e<attached: IMG-001-WA0001.jpg>\n",
		"IMG-001-WA0001.jpg":           "jpegbytes",
	} {
		fw, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	ct, mp := multipartBody(t, nil, "export.zip", zipBuf.Bytes())
	resp := e.do(t, http.MethodPost, "/import/simple", ct, mp)
	job := decodeJSON[domain.ImportJob](t, resp)
	if err := e.app.ProcessImport(context.Background(), job.ID); err != nil {
		t.Fatalf("ProcessImport: %v", err)
	}
	job2, err := e.app.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}

	media, err := e.app.ListMedia(context.Background(), job2.ConversationID)
	if err != nil || len(media) != 1 {
		t.Fatalf("media = %v err = %v", media, err)
	}

	client := e.server.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	req, _ := http.NewRequest(http.MethodGet, e.server.URL+"/media/"+media[0].ID, nil)
	req.Header.Set("Authorization", "Bearer "+e.token)
	redirect, err := client.Do(req)
	if err != nil {
		t.Fatalf("GET /media: %v", err)
	}
	defer redirect.Body.Close()
	if redirect.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want 307", redirect.StatusCode)
	}
	if loc := redirect.Header.Get("Location"); !strings.Contains(loc, media[0].OriginalFilename) {
		t.Fatalf("location = %q", loc)
	}
}
