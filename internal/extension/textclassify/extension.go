package textclassify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kapu/blockext-go/internal/classifier"
	"github.com/kapu/blockext-go/internal/constants"
	"github.com/kapu/blockext-go/internal/dataset"
	"github.com/kapu/blockext-go/internal/domain"
	"github.com/kapu/blockext-go/internal/events"
	"github.com/kapu/blockext-go/internal/host"
	"github.com/kapu/blockext-go/internal/playback"
	"github.com/kapu/blockext-go/internal/sentiment"
	"github.com/kapu/blockext-go/internal/service/remote"
	"github.com/kapu/blockext-go/internal/state"
	"github.com/kapu/blockext-go/internal/util"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"
)

// ExportFileName is the document name handed to the host on export.
const ExportFileName = "classifier-info.json"

// Host is the subset of host callbacks the extension drives.
type Host interface {
	Say(ctx context.Context, target domain.TargetID, mode host.SayMode, text string) error
	RequestToolboxUpdate(ctx context.Context) error
	SaveDocument(ctx context.Context, name string, content []byte) error
	AudioStatus(ctx context.Context) (host.AudioStatus, error)
	RecognizeSpeech(ctx context.Context) (string, error)
}

// Remote translates block input and synthesizes speech. Failures come back
// as empty values.
type Remote interface {
	Translate(ctx context.Context, text, language string) string
	Synthesize(ctx context.Context, req remote.SynthesisRequest) []byte
}

// SoundDecoder turns synthesized audio into a playable host sound.
type SoundDecoder interface {
	DecodeSoundPlayer(ctx context.Context, audio []byte, volume, playbackRate float64) (*host.SoundPlayer, error)
}

// ToxicityModel scores text against the toxicity labels.
type ToxicityModel interface {
	Load(ctx context.Context)
	Confidence(ctx context.Context, text, label string, positive bool) int
}

// DatasetStore persists project datasets outside the host.
type DatasetStore interface {
	Save(ctx context.Context, projectID string, data domain.ModelData) error
	Load(ctx context.Context, projectID string) (*domain.ModelData, error)
}

type Dependencies struct {
	Bus        *events.Bus
	Host       Host
	Remote     Remote
	Audio      SoundDecoder
	Playback   *playback.Manager
	Dataset    *dataset.Manager
	Classifier *classifier.Coordinator
	Toxicity   ToxicityModel
	Sentiment  *sentiment.Analyzer
	Store      DatasetStore
	ProjectID  string
	Clock      util.Clock
	Logger     *zap.Logger
}

// VoiceState is the per-target speech record.
type VoiceState struct {
	VoiceID domain.VoiceID
}

// Extension is the text classification and speech block set.
type Extension struct {
	host       Host
	remote     Remote
	audio      SoundDecoder
	playback   *playback.Manager
	dataset    *dataset.Manager
	classifier *classifier.Coordinator
	toxicity   ToxicityModel
	sentiment  *sentiment.Analyzer
	store      DatasetStore
	clock      util.Clock
	logger     *zap.Logger

	voices *state.Store[VoiceState]

	ctx    context.Context
	cancel context.CancelFunc
	tasks  conc.WaitGroup

	mu          sync.Mutex
	projectID   string
	sayTarget   domain.TargetID
	recognized  string
	loudness    float64
	loudnessAt  time.Time
	stepTime    time.Duration
	unsubscribe []func()
}

// New builds the extension, subscribes it to the bus and starts loading the
// toxicity model in the background.
func New(deps *Dependencies) (*Extension, error) {
	if deps == nil {
		return nil, fmt.Errorf("dependencies must not be nil")
	}
	if deps.Bus == nil || deps.Host == nil || deps.Dataset == nil || deps.Classifier == nil {
		return nil, fmt.Errorf("bus, host, dataset and classifier are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Extension{
		host:       deps.Host,
		remote:     deps.Remote,
		audio:      deps.Audio,
		playback:   deps.Playback,
		dataset:    deps.Dataset,
		classifier: deps.Classifier,
		toxicity:   deps.Toxicity,
		sentiment:  deps.Sentiment,
		store:      deps.Store,
		clock:      deps.Clock,
		logger:     util.OrNop(deps.Logger).With(zap.String("extension", "textclassify")),
		voices: state.NewStore(func() VoiceState {
			return VoiceState{VoiceID: domain.DefaultVoice}
		}, nil),
		ctx:       ctx,
		cancel:    cancel,
		projectID: deps.ProjectID,
		loudness:  -1,
	}
	if e.clock == nil {
		e.clock = util.SystemClock
	}
	if e.playback == nil {
		e.playback = playback.NewManager(e.logger)
	}
	if e.sentiment == nil {
		e.sentiment = sentiment.NewAnalyzer()
	}

	if err := e.subscribe(deps.Bus); err != nil {
		e.Close()
		return nil, err
	}

	if e.toxicity != nil {
		e.tasks.Go(func() {
			e.toxicity.Load(e.ctx)
		})
	}
	return e, nil
}

func (e *Extension) subscribe(bus *events.Bus) error {
	subscriptions := []func() (func(), error){
		func() (func(), error) { return events.On(bus, e.onProjectLoaded) },
		func() (func(), error) { return events.On(bus, e.onStopAll) },
		func() (func(), error) { return events.On(bus, e.onTargetCreated) },
		func() (func(), error) { return events.On(bus, e.onTargetDisposed) },
		func() (func(), error) { return events.On(bus, e.onLabelAdded) },
		func() (func(), error) { return events.On(bus, e.onLabelRenamed) },
		func() (func(), error) { return events.On(bus, e.onLabelDeleted) },
		func() (func(), error) { return events.On(bus, e.onExamplesAdded) },
		func() (func(), error) { return events.On(bus, e.onExampleDeleted) },
		func() (func(), error) { return events.On(bus, e.onExportRequested) },
		func() (func(), error) { return events.On(bus, e.onImportRequested) },
		func() (func(), error) { return events.On(bus, e.onClearAllLabels) },
		func() (func(), error) { return events.On(bus, e.onBuildRequested) },
	}

	for _, subscribe := range subscriptions {
		unsubscribe, err := subscribe()
		if err != nil {
			return fmt.Errorf("subscribe text classification handlers: %w", err)
		}
		e.mu.Lock()
		e.unsubscribe = append(e.unsubscribe, unsubscribe)
		e.mu.Unlock()
	}
	return nil
}

// Close unsubscribes from the bus, stops speech and waits for background
// builds to finish.
func (e *Extension) Close() {
	e.mu.Lock()
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	e.playback.StopAll()
	e.cancel()
	e.tasks.Wait()
}

// Wait blocks until background builds and loads have finished.
func (e *Extension) Wait() {
	e.tasks.Wait()
}

func (e *Extension) onProjectLoaded(ctx context.Context, ev events.ProjectLoaded) {
	e.mu.Lock()
	if ev.ProjectID != "" {
		e.projectID = ev.ProjectID
	}
	e.sayTarget = ""
	for _, target := range ev.Targets {
		if !target.IsStage {
			e.sayTarget = target.ID
			break
		}
	}
	projectID := e.projectID
	e.mu.Unlock()

	e.clearLocal(ctx)

	data := ev.ModelData
	if data == nil && e.store != nil {
		stored, err := e.store.Load(ctx, projectID)
		if err != nil {
			e.logger.Warn("Failed to load stored dataset", zap.String("project", projectID), zap.Error(err))
		}
		data = stored
	}
	if data != nil {
		e.dataset.LoadModelData(*data)
	}
	e.refreshToolbox(ctx)
	e.buildAsync()
}

// clearLocal drops the label list and the trained model.
func (e *Extension) clearLocal(ctx context.Context) {
	e.dataset.ClearAll()
	e.classifier.Reset()
	e.refreshToolbox(ctx)
}

func (e *Extension) onStopAll(_ context.Context, _ events.StopAll) {
	e.playback.StopAll()
}

func (e *Extension) onTargetCreated(_ context.Context, ev events.TargetCreated) {
	e.voices.OnTargetCreated(ev.Target.ID, ev.Source)

	e.mu.Lock()
	if e.sayTarget == "" && !ev.Target.IsStage {
		e.sayTarget = ev.Target.ID
	}
	e.mu.Unlock()
}

func (e *Extension) onTargetDisposed(_ context.Context, ev events.TargetDisposed) {
	e.voices.Forget(ev.TargetID)
}

func (e *Extension) onLabelAdded(ctx context.Context, ev events.LabelAdded) {
	if err := e.dataset.NewLabel(ev.Label); err != nil {
		e.logger.Warn("Rejected new label", zap.String("label", ev.Label), zap.Error(err))
		return
	}
	e.refreshToolbox(ctx)
}

func (e *Extension) onLabelRenamed(ctx context.Context, ev events.LabelRenamed) {
	if err := e.dataset.RenameLabel(ev.OldName, ev.NewName); err != nil {
		e.logger.Warn("Rejected label rename",
			zap.String("old", ev.OldName),
			zap.String("new", ev.NewName),
			zap.Error(err),
		)
		return
	}
	e.refreshToolbox(ctx)
}

func (e *Extension) onLabelDeleted(ctx context.Context, ev events.LabelDeleted) {
	if e.dataset.ClearAllWithLabel(ev.Label) {
		e.refreshToolbox(ctx)
	}
}

func (e *Extension) onExamplesAdded(_ context.Context, ev events.ExamplesAdded) {
	added, err := e.dataset.NewExamples(ev.Examples, ev.Label)
	if err != nil {
		e.logger.Warn("Rejected examples", zap.String("label", ev.Label), zap.Error(err))
		return
	}
	e.logger.Debug("Examples added", zap.String("label", ev.Label), zap.Int("added", added))
}

func (e *Extension) onExampleDeleted(_ context.Context, ev events.ExampleDeleted) {
	if _, err := e.dataset.DeleteExample(ev.Label, ev.Index); err != nil {
		e.logger.Warn("Failed to delete example",
			zap.String("label", ev.Label),
			zap.Int("index", ev.Index),
			zap.Error(err),
		)
	}
}

func (e *Extension) onExportRequested(ctx context.Context, _ events.ExportRequested) {
	if _, err := e.Export(ctx); err != nil {
		e.logger.Warn("Classifier export failed", zap.Error(err))
	}
}

// Export serializes the canonical dataset, hands it to the host as a
// document and writes it through the dataset store when one is configured.
func (e *Extension) Export(ctx context.Context) ([]byte, error) {
	doc, err := e.dataset.Export()
	if err != nil {
		return nil, err
	}
	if err := e.host.SaveDocument(ctx, ExportFileName, doc); err != nil {
		return doc, fmt.Errorf("save export document: %w", err)
	}

	if e.store != nil {
		e.mu.Lock()
		projectID := e.projectID
		e.mu.Unlock()
		if err := e.store.Save(ctx, projectID, e.dataset.ModelData()); err != nil {
			e.logger.Warn("Failed to persist dataset", zap.String("project", projectID), zap.Error(err))
		}
	}

	e.logger.Info("Classifier exported", zap.Int("bytes", len(doc)))
	return doc, nil
}

func (e *Extension) onImportRequested(ctx context.Context, ev events.ImportRequested) {
	if err := e.dataset.Import([]byte(ev.Document)); err != nil {
		return
	}
	e.classifier.Reset()
	e.refreshToolbox(ctx)
	e.buildAsync()
}

func (e *Extension) onClearAllLabels(ctx context.Context, ev events.ClearAllLabelsRequested) {
	if !ev.Confirmed || e.dataset.IsEmpty() {
		return
	}
	for _, label := range e.dataset.Labels() {
		e.dataset.ClearAllWithLabel(label)
	}
	e.refreshToolbox(ctx)
}

func (e *Extension) onBuildRequested(_ context.Context, _ events.BuildRequested) {
	e.buildAsync()
}

func (e *Extension) buildAsync() {
	e.tasks.Go(func() {
		if _, err := e.Build(e.ctx); err != nil {
			e.logger.Warn("Classifier build failed", zap.Error(err))
		}
	})
}

// Build retrains the classifier from the current dataset. The speaking
// sprite shows a thought bubble while the model trains.
func (e *Extension) Build(ctx context.Context) (classifier.BuildResult, error) {
	if len(e.dataset.RealLabels()) < 2 {
		return e.classifier.Build(ctx)
	}

	e.say(ctx, host.SayModeThink, constants.ClassifierMessages.Loading)
	result, err := e.classifier.Build(ctx)
	if err != nil {
		return result, err
	}
	if result.Status == classifier.BuildTrained {
		e.say(ctx, host.SayModeSay, constants.ClassifierMessages.Ready)
	}
	return result, nil
}

func (e *Extension) say(ctx context.Context, mode host.SayMode, text string) {
	e.mu.Lock()
	target := e.sayTarget
	e.mu.Unlock()
	if target == "" {
		return
	}
	if err := e.host.Say(ctx, target, mode, text); err != nil {
		e.logger.Warn("Failed to show model status", zap.String("target", target.String()), zap.Error(err))
	}
}

func (e *Extension) refreshToolbox(ctx context.Context) {
	if err := e.host.RequestToolboxUpdate(ctx); err != nil {
		e.logger.Warn("Failed to refresh toolbox", zap.Error(err))
	}
}
