package objectdetect

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kapu/blockext-go/internal/domain"
	"github.com/kapu/blockext-go/internal/events"
	"go.uber.org/zap"
)

type videoCall struct {
	enabled bool
	mirror  bool
}

type fakeHost struct {
	mu          sync.Mutex
	frame       *domain.Frame
	video       []videoCall
	ghosts      []float64
	peripherals []bool
}

func (f *fakeHost) GetFrame(context.Context, string, int, int) (*domain.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame, nil
}

func (f *fakeHost) EnableVideo(_ context.Context, mirror bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.video = append(f.video, videoCall{enabled: true, mirror: mirror})
	return nil
}

func (f *fakeHost) DisableVideo(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.video = append(f.video, videoCall{})
	return nil
}

func (f *fakeHost) SetPreviewGhost(_ context.Context, transparency float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ghosts = append(f.ghosts, transparency)
	return nil
}

func (f *fakeHost) SetPeripheralConnected(_ context.Context, _ string, connected bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.peripherals = append(f.peripherals, connected)
	return nil
}

func (f *fakeHost) lastPeripheral() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peripherals[len(f.peripherals)-1]
}

type fakeDetector struct {
	detections []domain.Detection
	maxSeen    int
	scoreSeen  float64
}

func (d *fakeDetector) Detect(_ context.Context, _ *domain.Frame, maxDetections int, minScore float64) ([]domain.Detection, error) {
	d.maxSeen = maxDetections
	d.scoreSeen = minScore
	return d.detections, nil
}

func newTestExtension(t *testing.T, h *fakeHost, load DetectorLoadFunc) *Extension {
	t.Helper()
	ext, err := New(&Dependencies{
		Bus:          events.NewBus(zap.NewNop()),
		Host:         h,
		LoadDetector: load,
		Config:       Config{Width: 480, Height: 360, MinDelay: time.Millisecond},
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("new extension: %v", err)
	}
	t.Cleanup(ext.Close)
	return ext
}

func startAndWaitForFrame(t *testing.T, ext *Extension) {
	t.Helper()
	if err := ext.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for ext.Loop().Frame() == nil {
		select {
		case <-deadline:
			t.Fatalf("no frame sampled")
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestDetectVideoReporters(t *testing.T) {
	h := &fakeHost{frame: &domain.Frame{Format: "image-data", Width: 480, Height: 360}}
	detector := &fakeDetector{detections: []domain.Detection{
		{Class: "cat", Score: 0.9, BBox: domain.BoundingBox{300, 100, 50, 40}},
		{Class: "dog", Score: 0.8, BBox: domain.BoundingBox{10, 20, 30, 40}},
	}}
	ext := newTestExtension(t, h, func(context.Context) (Detector, error) { return detector, nil })

	if ext.IsConnected() || ext.ObjectName(1) != "아직 인식되지 않음" {
		t.Fatalf("expected no predictions before detection")
	}

	startAndWaitForFrame(t, ext)
	ext.SetDetectValue(55)
	ext.DetectVideo(context.Background())

	if detector.maxSeen != 2 || detector.scoreSeen != 0.55 {
		t.Fatalf("unexpected detector arguments max=%d score=%v", detector.maxSeen, detector.scoreSeen)
	}
	if !ext.IsConnected() || !h.lastPeripheral() {
		t.Fatalf("expected connected status after detections")
	}
	if ext.ObjectAmount() != 2 || ext.ObjectName(2) != "dog" || ext.ObjectName(3) != "아직 인식되지 않음" {
		t.Fatalf("unexpected names")
	}

	tests := []struct {
		info domain.ObjectInfo
		want float64
	}{
		{domain.InfoAccuracy, 0.9},
		{domain.InfoXPosition, 60},
		{domain.InfoYPosition, 80},
		{domain.InfoWidth, 50},
		{domain.InfoHeight, 40},
	}
	for _, tt := range tests {
		if got := ext.ObjectInfo(1, tt.info); got != tt.want {
			t.Fatalf("ObjectInfo(1, %s) = %v, want %v", tt.info, got, tt.want)
		}
	}
	if ext.ObjectInfo(5, domain.InfoAccuracy) != 0 {
		t.Fatalf("missing detection must report 0")
	}

	if ext.ClassAmount("cat") != 1 || ext.ClassNumber(1, "dog") != 2 || ext.ClassNumber(2, "dog") != 0 {
		t.Fatalf("unexpected class reporters")
	}
	if !ext.ObjectExists("dog") || ext.ObjectExists("bird") {
		t.Fatalf("unexpected existence")
	}

	detector.detections = nil
	ext.DetectVideo(context.Background())
	if h.lastPeripheral() || ext.ObjectAmount() != 0 || !ext.IsConnected() {
		t.Fatalf("expected disconnected status with an empty detection")
	}
}

func TestDetectVideoWithoutFrame(t *testing.T) {
	loads := 0
	ext := newTestExtension(t, &fakeHost{}, func(context.Context) (Detector, error) {
		loads++
		return &fakeDetector{}, nil
	})

	ext.DetectVideo(context.Background())
	if loads != 0 || ext.IsConnected() {
		t.Fatalf("no frame must mean no detection")
	}
}

func TestDetectorLoadsOnce(t *testing.T) {
	var loads atomic.Int64
	release := make(chan struct{})
	ext := newTestExtension(t, &fakeHost{}, func(context.Context) (Detector, error) {
		loads.Add(1)
		<-release
		return &fakeDetector{}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = ext.ensureDetector(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if _, err := ext.ensureDetector(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loads.Load() != 1 {
		t.Fatalf("expected a single load, got %d", loads.Load())
	}
}

func TestDetectorLoadRetriesAfterFailure(t *testing.T) {
	attempts := 0
	ext := newTestExtension(t, &fakeHost{}, func(context.Context) (Detector, error) {
		attempts++
		if attempts == 1 {
			return nil, errors.New("offline")
		}
		return &fakeDetector{}, nil
	})

	if _, err := ext.ensureDetector(context.Background()); err == nil {
		t.Fatalf("expected first load to fail")
	}
	if _, err := ext.ensureDetector(context.Background()); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
}

func TestVideoStateLivesOnStage(t *testing.T) {
	h := &fakeHost{}
	bus := events.NewBus(zap.NewNop())
	ext, err := New(&Dependencies{
		Bus:          bus,
		Host:         h,
		LoadDetector: func(context.Context) (Detector, error) { return &fakeDetector{}, nil },
	})
	if err != nil {
		t.Fatalf("new extension: %v", err)
	}
	defer ext.Close()

	if ext.VideoState() != domain.VideoOff || ext.Transparency() != 50 {
		t.Fatalf("expected off/50 without a stage")
	}

	_ = bus.Publish(context.Background(), events.ProjectLoaded{Targets: []domain.Target{
		{ID: "stage", IsStage: true},
		{ID: "sprite"},
	}})
	if len(h.video) != 1 || !h.video[0].enabled || !h.video[0].mirror || h.ghosts[0] != 50 {
		t.Fatalf("expected defaults re-applied on load, video=%+v ghosts=%v", h.video, h.ghosts)
	}

	ext.VideoToggle(context.Background(), domain.VideoOnFlipped)
	ext.SetVideoTransparency(context.Background(), 20)
	if ext.VideoState() != domain.VideoOnFlipped || ext.Transparency() != 20 {
		t.Fatalf("stage record not updated")
	}
	if last := h.video[len(h.video)-1]; !last.enabled || last.mirror {
		t.Fatalf("on-flipped must enable without mirroring, got %+v", last)
	}

	ext.VideoToggle(context.Background(), domain.VideoOff)
	if last := h.video[len(h.video)-1]; last.enabled {
		t.Fatalf("off must disable video")
	}

	ext.VideoToggle(context.Background(), "sideways")
	if ext.VideoState() != domain.VideoOff {
		t.Fatalf("unknown state must be ignored")
	}

	ext.ProjectStarted(context.Background())
	if h.ghosts[len(h.ghosts)-1] != 20 {
		t.Fatalf("expected transparency re-applied")
	}
}

func TestProjectRunStartClearsPredictions(t *testing.T) {
	h := &fakeHost{frame: &domain.Frame{Format: "image-data", Width: 480, Height: 360}}
	detector := &fakeDetector{detections: []domain.Detection{{Class: "cat", Score: 0.9}}}
	bus := events.NewBus(zap.NewNop())
	ext, err := New(&Dependencies{
		Bus:          bus,
		Host:         h,
		LoadDetector: func(context.Context) (Detector, error) { return detector, nil },
		Config:       Config{Width: 480, Height: 360, MinDelay: time.Millisecond},
	})
	if err != nil {
		t.Fatalf("new extension: %v", err)
	}
	t.Cleanup(ext.Close)

	startAndWaitForFrame(t, ext)
	ext.DetectVideo(context.Background())
	if ext.ObjectAmount() != 1 {
		t.Fatalf("expected one detection, got %d", ext.ObjectAmount())
	}

	if err := bus.Publish(context.Background(), events.ProjectRunStart{}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if ext.IsConnected() || ext.ObjectAmount() != 0 {
		t.Fatalf("expected detections cleared on run start")
	}
}

func TestDetectorLoadOutlivesCancelledCaller(t *testing.T) {
	h := &fakeHost{frame: &domain.Frame{Format: "image-data", Width: 480, Height: 360}}
	var loads atomic.Int64
	ext := newTestExtension(t, h, func(ctx context.Context) (Detector, error) {
		loads.Add(1)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &fakeDetector{}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ext.ensureDetector(ctx); err != nil {
		t.Fatalf("expected load to ignore caller cancellation, got %v", err)
	}
	if _, err := ext.ensureDetector(context.Background()); err != nil {
		t.Fatalf("expected cached detector, got %v", err)
	}
	if loads.Load() != 1 {
		t.Fatalf("expected a single load, got %d", loads.Load())
	}
}
