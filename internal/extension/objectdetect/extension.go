package objectdetect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kapu/blockext-go/internal/constants"
	"github.com/kapu/blockext-go/internal/domain"
	"github.com/kapu/blockext-go/internal/events"
	"github.com/kapu/blockext-go/internal/sampling"
	"github.com/kapu/blockext-go/internal/state"
	"github.com/kapu/blockext-go/internal/util"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ExtensionID names the extension when reporting peripheral status.
const ExtensionID = "objectDetecting"

// Detector finds objects in one frame.
type Detector interface {
	Detect(ctx context.Context, frame *domain.Frame, maxDetections int, minScore float64) ([]domain.Detection, error)
}

// DetectorLoadFunc prepares the detector. It is called until it succeeds once.
type DetectorLoadFunc func(ctx context.Context) (Detector, error)

// Host is the video device and peripheral status surface of the host.
type Host interface {
	sampling.FrameSource
	EnableVideo(ctx context.Context, mirror bool) error
	DisableVideo(ctx context.Context) error
	SetPreviewGhost(ctx context.Context, transparency float64) error
	SetPeripheralConnected(ctx context.Context, extensionID string, connected bool) error
}

type Config struct {
	Width    int
	Height   int
	MinDelay time.Duration
	Clock    util.Clock
}

type Dependencies struct {
	Bus          *events.Bus
	Host         Host
	LoadDetector DetectorLoadFunc
	Config       Config
	Logger       *zap.Logger
}

// StageState is the video record kept on the stage target.
type StageState struct {
	VideoState   domain.VideoState
	Transparency float64
}

// Extension samples host video and answers object detection blocks.
type Extension struct {
	host   Host
	load   DetectorLoadFunc
	cfg    Config
	logger *zap.Logger

	loop   *sampling.Loop
	stages *state.Store[StageState]

	loadGroup singleflight.Group
	detector  Detector

	mu          sync.RWMutex
	stage       domain.TargetID
	threshold   float64
	predictions []domain.Detection
	unsubscribe []func()
}

func New(deps *Dependencies) (*Extension, error) {
	if deps == nil || deps.Bus == nil || deps.Host == nil || deps.LoadDetector == nil {
		return nil, fmt.Errorf("bus, host and detector loader are required")
	}

	cfg := deps.Config
	if cfg.Width <= 0 {
		cfg.Width = constants.SamplingConfig.Width
	}
	if cfg.Height <= 0 {
		cfg.Height = constants.SamplingConfig.Height
	}

	logger := util.OrNop(deps.Logger).With(zap.String("extension", ExtensionID))
	e := &Extension{
		host:   deps.Host,
		load:   deps.LoadDetector,
		cfg:    cfg,
		logger: logger,
		loop: sampling.NewLoop(deps.Host, sampling.Config{
			Format:       constants.SamplingConfig.FrameFormat,
			Width:        cfg.Width,
			Height:       cfg.Height,
			DelayDivisor: constants.SamplingConfig.DelayDivisor,
			MinDelay:     cfg.MinDelay,
			Clock:        cfg.Clock,
		}, logger),
		stages: state.NewStore(func() StageState {
			return StageState{
				VideoState:   domain.VideoOn,
				Transparency: constants.DetectionConfig.DefaultTransparency,
			}
		}, nil),
		threshold: constants.DetectionConfig.DefaultThreshold,
	}

	onLoaded, err := events.On(deps.Bus, e.onProjectLoaded)
	if err != nil {
		return nil, fmt.Errorf("subscribe project loaded: %w", err)
	}
	onCreated, err := events.On(deps.Bus, e.onTargetCreated)
	if err != nil {
		onLoaded()
		return nil, fmt.Errorf("subscribe target created: %w", err)
	}
	onRunStart, err := events.On(deps.Bus, e.onProjectRunStart)
	if err != nil {
		onLoaded()
		onCreated()
		return nil, fmt.Errorf("subscribe project run start: %w", err)
	}
	e.unsubscribe = []func(){onLoaded, onCreated, onRunStart}
	return e, nil
}

// Start reports the extension as connected and starts sampling frames.
func (e *Extension) Start(ctx context.Context) error {
	if err := e.host.SetPeripheralConnected(ctx, ExtensionID, true); err != nil {
		e.logger.Warn("Failed to report peripheral status", zap.Error(err))
	}
	return e.loop.Start(ctx)
}

// Close stops sampling and unsubscribes from the bus.
func (e *Extension) Close() {
	e.mu.Lock()
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	e.loop.Stop()
}

func (e *Extension) Loop() *sampling.Loop {
	return e.loop
}

func (e *Extension) onProjectLoaded(ctx context.Context, ev events.ProjectLoaded) {
	e.mu.Lock()
	e.stage = ""
	for _, target := range ev.Targets {
		if target.IsStage {
			e.stage = target.ID
			break
		}
	}
	e.mu.Unlock()

	e.ProjectStarted(ctx)
}

// onProjectRunStart drops the previous run's detections so reporters answer
// as undetected until the next detection.
func (e *Extension) onProjectRunStart(context.Context, events.ProjectRunStart) {
	e.mu.Lock()
	e.predictions = nil
	e.mu.Unlock()
}

func (e *Extension) onTargetCreated(_ context.Context, ev events.TargetCreated) {
	if !ev.Target.IsStage {
		return
	}
	e.mu.Lock()
	if e.stage == "" {
		e.stage = ev.Target.ID
	}
	e.mu.Unlock()
}

// ProjectStarted re-applies the stage's transparency and video state.
func (e *Extension) ProjectStarted(ctx context.Context) {
	e.SetVideoTransparency(ctx, e.Transparency())
	e.VideoToggle(ctx, e.VideoState())
}

func (e *Extension) stageTarget() (domain.TargetID, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stage, e.stage != ""
}

// VideoState is the stage's video state, off while no stage is known.
func (e *Extension) VideoState() domain.VideoState {
	stage, ok := e.stageTarget()
	if !ok {
		return domain.VideoOff
	}
	return e.stages.Snapshot(stage).VideoState
}

// Transparency is the stage's preview transparency, 50 while no stage is known.
func (e *Extension) Transparency() float64 {
	stage, ok := e.stageTarget()
	if !ok {
		return constants.DetectionConfig.DefaultTransparency
	}
	return e.stages.Snapshot(stage).Transparency
}

// VideoToggle turns the video device off, or on with mirroring for VideoOn.
func (e *Extension) VideoToggle(ctx context.Context, videoState domain.VideoState) {
	if !videoState.IsValid() {
		e.logger.Warn("Ignoring unknown video state", zap.String("state", string(videoState)))
		return
	}
	if stage, ok := e.stageTarget(); ok {
		e.stages.Update(stage, func(s *StageState) {
			s.VideoState = videoState
		})
	}

	var err error
	if videoState == domain.VideoOff {
		err = e.host.DisableVideo(ctx)
	} else {
		err = e.host.EnableVideo(ctx, videoState == domain.VideoOn)
	}
	if err != nil {
		e.logger.Warn("Failed to switch video", zap.String("state", string(videoState)), zap.Error(err))
	}
}

func (e *Extension) SetVideoTransparency(ctx context.Context, transparency float64) {
	if stage, ok := e.stageTarget(); ok {
		e.stages.Update(stage, func(s *StageState) {
			s.Transparency = transparency
		})
	}
	if err := e.host.SetPreviewGhost(ctx, transparency); err != nil {
		e.logger.Warn("Failed to set preview transparency", zap.Error(err))
	}
}

func (e *Extension) ensureDetector(ctx context.Context) (Detector, error) {
	e.mu.RLock()
	detector := e.detector
	e.mu.RUnlock()
	if detector != nil {
		return detector, nil
	}

	v, err, _ := e.loadGroup.Do("detector", func() (any, error) {
		e.mu.RLock()
		existing := e.detector
		e.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		e.logger.Info("Loading object detector")
		loaded, err := e.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		e.mu.Lock()
		e.detector = loaded
		e.mu.Unlock()
		e.logger.Info("Object detector loaded")
		return loaded, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}
	return v.(Detector), nil
}
