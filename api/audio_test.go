package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/skillsenselab/dialtone/api"
	"github.com/skillsenselab/dialtone/asr"
	"github.com/skillsenselab/dialtone/audio"
	apperrors "github.com/skillsenselab/dialtone/errors"
	"github.com/skillsenselab/dialtone/logger"
	"github.com/skillsenselab/dialtone/transcribe"
	"github.com/skillsenselab/dialtone/upload"
)

type stubConverter struct{}

func (stubConverter) Probe(context.Context, string) (*audio.Info, error) {
	return &audio.Info{Duration: 2.5, Format: "wav", Codec: "pcm_s16le", SampleRate: 16000, Channels: 1}, nil
}

func (stubConverter) Decide(info *audio.Info) audio.Decision {
	return audio.Decision{
		ConversionRequired: false,
		TargetSampleRate:   audio.TargetSampleRate,
		TargetChannels:     audio.TargetChannels,
		TargetFormat:       audio.TargetFormat,
		Info:               info,
	}
}

func (stubConverter) Convert(_ context.Context, path string) (string, error) {
	return filepath.Join(filepath.Dir(path), "converted_out.wav"), nil
}

type stubManager struct {
	result  *asr.Result
	err     error
	loadErr error
}

func (m *stubManager) EnsureLoaded(context.Context) error { return m.loadErr }

func (m *stubManager) Transcribe(context.Context, string, string) (*asr.Result, error) {
	return m.result, m.err
}

func (m *stubManager) Info() asr.Info {
	return asr.Info{State: asr.StateReady, Loaded: true, Size: "base", Device: "cpu", ComputeType: "int8"}
}

func logProb(v float64) *float64 { return &v }

// newTestRouter wires a real upload service and pipeline (with a stubbed
// model) behind the API, backed by a temp dir.
func newTestRouter(t *testing.T, manager transcribe.ModelManager) (*gin.Engine, *upload.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewDefault("test")
	uploads, err := upload.NewService(upload.Config{Dir: t.TempDir(), MaxSize: "10MB"}, log)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	cfg := transcribe.Config{MaxConcurrent: 2, TimeoutSeconds: 30}
	pipeline := transcribe.NewPipeline(cfg, uploads, stubConverter{}, manager, log)

	r := gin.New()
	api.NewAudioAPI(uploads, pipeline, log).RegisterRoutes(r)
	return r, uploads
}

func readyManager() *stubManager {
	return &stubManager{
		result: &asr.Result{
			Text:     " hello world ",
			Language: "en",
			Duration: 2.5,
			Segments: []asr.Segment{{End: 2.5, Text: "hello world", AvgLogProb: logProb(-0.2)}},
		},
	}
}

func postMultipart(t *testing.T, r http.Handler, filename, contentType string, payload []byte) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{`form-data; name="file"; filename="` + filename + `"`}
	h["Content-Type"] = []string{contentType}
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write part: %v", err)
	}
	_ = w.Close()

	req := httptest.NewRequest("POST", "/api/v1/audio/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeData(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not valid JSON: %v\n%s", err, rr.Body.String())
	}
	return body.Data
}

func decodeErrorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body apperrors.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("error response is not valid JSON: %v\n%s", err, rr.Body.String())
	}
	return string(body.Error.Code)
}

func TestUploadThenTranscribe(t *testing.T) {
	r, _ := newTestRouter(t, readyManager())

	rr := postMultipart(t, r, "note.wav", "audio/wav", []byte("RIFF fake"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	uploadID, _ := decodeData(t, rr)["id"].(string)
	if uploadID == "" {
		t.Fatal("upload response has no id")
	}

	payload := `{"upload_id":"` + uploadID + `","language":"en"}`
	req := httptest.NewRequest("POST", "/api/v1/audio/transcribe", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("transcribe: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	data := decodeData(t, rr)
	if data["text"] != "hello world" {
		t.Fatalf("unexpected text: %v", data["text"])
	}
	if data["language"] != "en" {
		t.Fatalf("unexpected language: %v", data["language"])
	}
	if conf, _ := data["confidence"].(float64); conf != 0.8 {
		t.Fatalf("expected confidence 0.8, got %v", data["confidence"])
	}
}

func TestUploadMissingFile(t *testing.T) {
	r, _ := newTestRouter(t, readyManager())

	req := httptest.NewRequest("POST", "/api/v1/audio/upload", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if code := decodeErrorCode(t, rr); code != string(apperrors.ErrCodeMissingFile) {
		t.Fatalf("expected MISSING_FILE, got %s", code)
	}
}

func TestUploadUnsupportedType(t *testing.T) {
	r, _ := newTestRouter(t, readyManager())

	rr := postMultipart(t, r, "doc.pdf", "application/pdf", []byte("%PDF"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := decodeErrorCode(t, rr); code != string(apperrors.ErrCodeUnsupportedFormat) {
		t.Fatalf("expected UNSUPPORTED_FORMAT, got %s", code)
	}
}

func TestTranscribeMalformedJSON(t *testing.T) {
	r, _ := newTestRouter(t, readyManager())

	req := httptest.NewRequest("POST", "/api/v1/audio/transcribe", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if code := decodeErrorCode(t, rr); code != string(apperrors.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %s", code)
	}
}

func TestTranscribeRejectsNonUUID(t *testing.T) {
	r, _ := newTestRouter(t, readyManager())

	req := httptest.NewRequest("POST", "/api/v1/audio/transcribe",
		strings.NewReader(`{"upload_id":"../../etc/passwd"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := decodeErrorCode(t, rr); code != string(apperrors.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %s", code)
	}
}

func TestTranscribeUnknownUpload(t *testing.T) {
	r, _ := newTestRouter(t, readyManager())

	req := httptest.NewRequest("POST", "/api/v1/audio/transcribe",
		strings.NewReader(`{"upload_id":"6b1e2a43-9f6e-4f3a-8f68-0f1f2a3b4c5d"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rr.Code, rr.Body.String())
	}
	if code := decodeErrorCode(t, rr); code != string(apperrors.ErrCodeUploadNotFound) {
		t.Fatalf("expected UPLOAD_NOT_FOUND, got %s", code)
	}
}

func TestStatusUnknownJob(t *testing.T) {
	r, _ := newTestRouter(t, readyManager())

	req := httptest.NewRequest("GET", "/api/v1/audio/transcriptions/nope", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if code := decodeErrorCode(t, rr); code != string(apperrors.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %s", code)
	}
}

func TestCancelUnknownJob(t *testing.T) {
	r, _ := newTestRouter(t, readyManager())

	req := httptest.NewRequest("DELETE", "/api/v1/audio/transcriptions/nope", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	data := decodeData(t, rr)
	if cancelled, _ := data["cancelled"].(bool); cancelled {
		t.Fatal("expected cancelled=false for unknown job")
	}
}

func TestServiceStatus(t *testing.T) {
	r, _ := newTestRouter(t, readyManager())

	req := httptest.NewRequest("GET", "/api/v1/audio/status", http.NoBody)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	data := decodeData(t, rr)
	if mc, _ := data["max_concurrent"].(float64); mc != 2 {
		t.Fatalf("expected max_concurrent 2, got %v", data["max_concurrent"])
	}
	model, _ := data["model"].(map[string]any)
	if model == nil || model["state"] != "ready" {
		t.Fatalf("unexpected model info: %v", data["model"])
	}
}
