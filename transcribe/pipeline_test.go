package transcribe

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skillsenselab/dialtone/asr"
	"github.com/skillsenselab/dialtone/audio"
	apperrors "github.com/skillsenselab/dialtone/errors"
)

type fakeResolver struct {
	paths map[string]string
}

func (r *fakeResolver) Resolve(uploadID string) (string, error) {
	path, ok := r.paths[uploadID]
	if !ok {
		return "", apperrors.UploadNotFound(uploadID)
	}
	return path, nil
}

type fakeConverter struct {
	info     *audio.Info
	probeErr error

	mu        sync.Mutex
	converted []string
}

func (c *fakeConverter) Probe(context.Context, string) (*audio.Info, error) {
	if c.probeErr != nil {
		return nil, c.probeErr
	}
	return c.info, nil
}

func (c *fakeConverter) Decide(info *audio.Info) audio.Decision {
	d := audio.Decision{
		ConversionRequired: true,
		TargetSampleRate:   audio.TargetSampleRate,
		TargetChannels:     audio.TargetChannels,
		TargetFormat:       audio.TargetFormat,
		Info:               info,
	}
	if info != nil && info.Format == "wav" && info.SampleRate == 16000 && info.Channels == 1 {
		d.ConversionRequired = false
	}
	return d
}

func (c *fakeConverter) Convert(_ context.Context, path string) (string, error) {
	out := filepath.Join(filepath.Dir(path), "converted_out.wav")
	if err := os.WriteFile(out, []byte("RIFF"), 0o644); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.converted = append(c.converted, out)
	c.mu.Unlock()
	return out, nil
}

func (c *fakeConverter) convertedPaths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.converted...)
}

type fakeManager struct {
	result    *asr.Result
	err       error
	loadErr   error
	block     chan struct{} // when set, Transcribe waits here or for ctx
	running   atomic.Int32
	maxSeen   atomic.Int32
	calls atomic.Int32
}

func (m *fakeManager) EnsureLoaded(context.Context) error { return m.loadErr }

func (m *fakeManager) Transcribe(ctx context.Context, _, _ string) (*asr.Result, error) {
	m.calls.Add(1)
	cur := m.running.Add(1)
	for {
		prev := m.maxSeen.Load()
		if cur <= prev || m.maxSeen.CompareAndSwap(prev, cur) {
			break
		}
	}
	defer m.running.Add(-1)

	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

func (m *fakeManager) Info() asr.Info {
	return asr.Info{State: asr.StateReady, Loaded: true, Size: "base"}
}

func canonicalInfo() *audio.Info {
	return &audio.Info{Format: "wav", SampleRate: 16000, Channels: 1, Duration: 4.5}
}

func newTestPipeline(t *testing.T, cfg Config, res *fakeResolver, conv *fakeConverter, mgr *fakeManager) *Pipeline {
	t.Helper()
	cfg.ApplyDefaults()
	return NewPipeline(cfg, res, conv, mgr, nil)
}

func uploadFixture(t *testing.T, id string) (*fakeResolver, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "audio.m4a")
	if err := os.WriteFile(path, []byte("fake"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return &fakeResolver{paths: map[string]string{id: path}}, path
}

func TestTranscribeUploadSuccess(t *testing.T) {
	res, _ := uploadFixture(t, "up1")
	conv := &fakeConverter{info: canonicalInfo()}
	mgr := &fakeManager{result: &asr.Result{
		Text:     "  hello world  ",
		Language: "en",
		Duration: 4.4,
		Segments: []asr.Segment{{Text: "hello world", AvgLogProb: fp(-0.2)}},
	}}
	p := newTestPipeline(t, Config{MaxConcurrent: 2, TimeoutSeconds: 30}, res, conv, mgr)

	out, err := p.TranscribeUpload(context.Background(), "up1", "")
	if err != nil {
		t.Fatalf("TranscribeUpload failed: %v", err)
	}
	if out.Text != "hello world" {
		t.Errorf("expected trimmed text, got %q", out.Text)
	}
	if out.Language != "en" {
		t.Errorf("expected language en, got %s", out.Language)
	}
	if out.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %v", out.Confidence)
	}
	if out.Duration != 4.5 {
		t.Errorf("expected probed duration 4.5, got %v", out.Duration)
	}
	if out.ProcessingTime < 0 {
		t.Errorf("negative processing time %v", out.ProcessingTime)
	}
	if len(conv.convertedPaths()) != 0 {
		t.Error("canonical asset should not be converted")
	}
	if _, err := p.GetStatus("up1"); apperrors.CodeOf(err) != apperrors.ErrCodeNotFound {
		t.Error("job should leave the registry after completion")
	}
}

func TestTranscribeUploadConvertsNonCanonicalAsset(t *testing.T) {
	res, _ := uploadFixture(t, "abc123")
	conv := &fakeConverter{info: &audio.Info{
		Format: "mov", Codec: "aac", SampleRate: 44100, Channels: 2, Duration: 12.3,
	}}
	mgr := &fakeManager{result: &asr.Result{Text: "note to self", Language: "en", Duration: 12.2}}
	p := newTestPipeline(t, Config{MaxConcurrent: 2, TimeoutSeconds: 30}, res, conv, mgr)

	out, err := p.TranscribeUpload(context.Background(), "abc123", "")
	if err != nil {
		t.Fatalf("TranscribeUpload failed: %v", err)
	}
	if out.Duration != 12.3 {
		t.Errorf("expected originally probed duration 12.3, got %v", out.Duration)
	}
	paths := conv.convertedPaths()
	if len(paths) != 1 {
		t.Fatalf("expected exactly one conversion, got %d", len(paths))
	}
	if _, err := os.Stat(paths[0]); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("converted file should be deleted after the job, stat: %v", err)
	}
}

func TestProbeFailureAssumesConversion(t *testing.T) {
	res, _ := uploadFixture(t, "up1")
	conv := &fakeConverter{probeErr: errors.New("ffprobe exploded")}
	mgr := &fakeManager{result: &asr.Result{Text: "ok", Duration: 2.0}}
	p := newTestPipeline(t, Config{MaxConcurrent: 1, TimeoutSeconds: 30}, res, conv, mgr)

	out, err := p.TranscribeUpload(context.Background(), "up1", "")
	if err != nil {
		t.Fatalf("TranscribeUpload failed: %v", err)
	}
	if len(conv.convertedPaths()) != 1 {
		t.Error("probe failure should fail safe into conversion")
	}
	// No probe metadata, so the engine-reported duration is used.
	if out.Duration != 2.0 {
		t.Errorf("expected engine duration 2.0, got %v", out.Duration)
	}
}

func TestUnknownUpload(t *testing.T) {
	p := newTestPipeline(t, Config{}, &fakeResolver{paths: map[string]string{}}, &fakeConverter{}, &fakeManager{})

	_, err := p.TranscribeUpload(context.Background(), "nope", "")
	if apperrors.CodeOf(err) != apperrors.ErrCodeUploadNotFound {
		t.Errorf("expected UPLOAD_NOT_FOUND, got %v", err)
	}
	if st := p.ServiceStatus(); st.ActiveCount != 0 {
		t.Errorf("registry should be empty, got %d active", st.ActiveCount)
	}
}

func TestConcurrencyBound(t *testing.T) {
	const jobs = 6
	const k = 2

	res := &fakeResolver{paths: map[string]string{}}
	dir := t.TempDir()
	ids := make([]string, jobs)
	for i := range ids {
		ids[i] = string(rune('a' + i))
		path := filepath.Join(dir, ids[i]+".wav")
		if err := os.WriteFile(path, []byte("fake"), 0o644); err != nil {
			t.Fatalf("write fixture: %v", err)
		}
		res.paths[ids[i]] = path
	}

	block := make(chan struct{})
	mgr := &fakeManager{result: &asr.Result{Text: "ok"}, block: block}
	p := newTestPipeline(t, Config{MaxConcurrent: k, TimeoutSeconds: 30}, res, &fakeConverter{info: canonicalInfo()}, mgr)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := p.TranscribeUpload(context.Background(), id, ""); err != nil {
				t.Errorf("job %s failed: %v", id, err)
			}
		}(id)
	}

	// Let jobs pile up against the semaphore, then release them.
	time.Sleep(50 * time.Millisecond)
	close(block)
	wg.Wait()

	if got := mgr.maxSeen.Load(); got > k {
		t.Errorf("observed %d concurrent inferences, bound is %d", got, k)
	}
	if got := mgr.calls.Load(); got != jobs {
		t.Errorf("expected %d inference calls, got %d", jobs, got)
	}
	if st := p.ServiceStatus(); st.ActiveCount != 0 {
		t.Errorf("registry should drain, got %d active", st.ActiveCount)
	}
}

func TestTimeout(t *testing.T) {
	res, _ := uploadFixture(t, "slow")
	mgr := &fakeManager{block: make(chan struct{})} // never released
	p := newTestPipeline(t, Config{MaxConcurrent: 1, TimeoutSeconds: 1}, res, &fakeConverter{info: canonicalInfo()}, mgr)

	start := time.Now()
	_, err := p.TranscribeUpload(context.Background(), "slow", "")
	elapsed := time.Since(start)

	if apperrors.CodeOf(err) != apperrors.ErrCodeTranscriptionTimeout {
		t.Fatalf("expected TRANSCRIPTION_TIMEOUT, got %v", err)
	}
	if elapsed > 2*time.Second {
		t.Errorf("timeout took %v, budget was 1s", elapsed)
	}
	if _, err := p.GetStatus("slow"); apperrors.CodeOf(err) != apperrors.ErrCodeNotFound {
		t.Error("timed-out job should leave the registry immediately")
	}
}

func TestCancelInFlight(t *testing.T) {
	res, _ := uploadFixture(t, "up1")
	mgr := &fakeManager{block: make(chan struct{})}
	p := newTestPipeline(t, Config{MaxConcurrent: 1, TimeoutSeconds: 30}, res, &fakeConverter{info: canonicalInfo()}, mgr)

	errCh := make(chan error, 1)
	go func() {
		_, err := p.TranscribeUpload(context.Background(), "up1", "")
		errCh <- err
	}()

	// Wait until the job is registered and running.
	deadline := time.After(2 * time.Second)
	for {
		if st, err := p.GetStatus("up1"); err == nil && st.Status == StatusRunning {
			break
		}
		select {
		case <-deadline:
			t.Fatal("job never reached running state")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if !p.Cancel("up1") {
		t.Fatal("expected cancel of in-flight job to be accepted")
	}
	err := <-errCh
	if apperrors.CodeOf(err) != apperrors.ErrCodeCancelled {
		t.Errorf("expected CANCELLED, got %v", err)
	}
	if p.Cancel("up1") {
		t.Error("cancel after completion should be rejected")
	}
}

func TestCancelUnknownJob(t *testing.T) {
	p := newTestPipeline(t, Config{}, &fakeResolver{}, &fakeConverter{}, &fakeManager{})
	if p.Cancel("never-submitted") {
		t.Error("cancel of unknown job should return false")
	}
}

func TestCleanupOnInferenceFailure(t *testing.T) {
	res, _ := uploadFixture(t, "up1")
	conv := &fakeConverter{info: &audio.Info{Format: "mov", SampleRate: 44100, Channels: 2}}
	mgr := &fakeManager{err: errors.New("decoder blew up")}
	p := newTestPipeline(t, Config{MaxConcurrent: 1, TimeoutSeconds: 30}, res, conv, mgr)

	_, err := p.TranscribeUpload(context.Background(), "up1", "")
	if apperrors.CodeOf(err) != apperrors.ErrCodeTranscriptionError {
		t.Fatalf("expected TRANSCRIPTION_ERROR, got %v", err)
	}
	paths := conv.convertedPaths()
	if len(paths) != 1 {
		t.Fatalf("expected one conversion, got %d", len(paths))
	}
	if _, statErr := os.Stat(paths[0]); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("converted file should be deleted on the failure path")
	}
}

func TestModelLoadFailurePropagates(t *testing.T) {
	res, _ := uploadFixture(t, "up1")
	mgr := &fakeManager{loadErr: apperrors.ModelLoadError(errors.New("weights corrupt"))}
	p := newTestPipeline(t, Config{MaxConcurrent: 1, TimeoutSeconds: 30}, res, &fakeConverter{info: canonicalInfo()}, mgr)

	_, err := p.TranscribeUpload(context.Background(), "up1", "")
	if apperrors.CodeOf(err) != apperrors.ErrCodeModelLoadError {
		t.Errorf("expected MODEL_LOAD_ERROR, got %v", err)
	}
}

func TestDuplicateSubmissionRejected(t *testing.T) {
	res, _ := uploadFixture(t, "up1")
	mgr := &fakeManager{block: make(chan struct{})}
	p := newTestPipeline(t, Config{MaxConcurrent: 1, TimeoutSeconds: 30}, res, &fakeConverter{info: canonicalInfo()}, mgr)

	go p.TranscribeUpload(context.Background(), "up1", "") //nolint:errcheck

	deadline := time.After(2 * time.Second)
	for {
		if _, err := p.GetStatus("up1"); err == nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("first job never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}

	_, err := p.TranscribeUpload(context.Background(), "up1", "")
	if apperrors.CodeOf(err) != apperrors.ErrCodeInvalidInput {
		t.Errorf("expected INVALID_INPUT for duplicate submission, got %v", err)
	}
	p.Cancel("up1")
}

func TestServiceStatus(t *testing.T) {
	res, _ := uploadFixture(t, "up1")
	mgr := &fakeManager{block: make(chan struct{})}
	p := newTestPipeline(t, Config{MaxConcurrent: 3, TimeoutSeconds: 120}, res, &fakeConverter{info: canonicalInfo()}, mgr)

	st := p.ServiceStatus()
	if st.MaxConcurrent != 3 || st.TimeoutSeconds != 120 {
		t.Errorf("unexpected capacity config: %+v", st)
	}
	if st.ActiveCount != 0 {
		t.Errorf("expected no active jobs, got %d", st.ActiveCount)
	}
	if st.Model.State != asr.StateReady {
		t.Errorf("expected model info passthrough, got %+v", st.Model)
	}

	go p.TranscribeUpload(context.Background(), "up1", "") //nolint:errcheck
	deadline := time.After(2 * time.Second)
	for p.ServiceStatus().ActiveCount == 0 {
		select {
		case <-deadline:
			t.Fatal("job never became active")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if st := p.ServiceStatus(); st.ActiveCount != 1 || st.ActiveJobs[0] != "up1" {
		t.Errorf("expected up1 active, got %+v", st)
	}
	p.Cancel("up1")
}