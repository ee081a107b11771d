package textclassify

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"github.com/kapu/blockext-go/internal/classifier"
	"github.com/kapu/blockext-go/internal/constants"
	"github.com/kapu/blockext-go/internal/domain"
	"github.com/kapu/blockext-go/internal/service/remote"
	"github.com/kapu/blockext-go/internal/util"
	"go.uber.org/zap"
)

// Labels returns the label list for block menus. It holds the empty label
// while no real label exists.
func (e *Extension) Labels() []string {
	return e.dataset.Labels()
}

// Voice returns the voice currently set for target.
func (e *Extension) Voice(target domain.TargetID) domain.Voice {
	voice, ok := domain.FindVoice(e.voices.Snapshot(target).VoiceID)
	if !ok {
		voice, _ = domain.FindVoice(domain.DefaultVoice)
	}
	return voice
}

// SetVoice accepts a voice id or a 1-based voice number. Numbers wrap around
// the voice table; unknown ids are ignored.
func (e *Extension) SetVoice(target domain.TargetID, voice string) {
	id := domain.VoiceID(voice)
	if n, err := strconv.Atoi(strings.TrimSpace(voice)); err == nil {
		id = domain.Voices[util.WrapClamp(n-1, 0, len(domain.Voices)-1)].ID
	}
	if _, ok := domain.FindVoice(id); !ok {
		return
	}
	e.voices.Update(target, func(s *VoiceState) {
		s.VoiceID = id
	})
}

// SpeakText synthesizes text in the target's voice and returns once the
// sound stops. Synthesis or decode failures return immediately.
func (e *Extension) SpeakText(ctx context.Context, target domain.TargetID, text string) {
	if e.remote == nil || e.audio == nil {
		return
	}
	voice := e.Voice(target)

	audio := e.remote.Synthesize(ctx, remote.SynthesisRequest{
		Locale: constants.RemoteConfig.SynthesisLocale,
		Gender: string(voice.Gender),
		Text:   text,
	})
	if len(audio) == 0 {
		return
	}

	player, err := e.audio.DecodeSoundPlayer(ctx, audio, constants.SpeechConfig.Volume, voice.PlaybackRate)
	if err != nil {
		e.logger.Warn("Failed to decode speech", zap.Error(err))
		return
	}
	if err := e.playback.Play(ctx, player); err != nil {
		e.logger.Warn("Speech playback ended early", zap.String("sound_id", player.ID()), zap.Error(err))
	}
}

// AskSpeechRecognition speaks prompt, then waits for the host recognizer and
// keeps its transcript.
func (e *Extension) AskSpeechRecognition(ctx context.Context, target domain.TargetID, prompt string) {
	e.SpeakText(ctx, target, prompt)

	transcript, err := e.host.RecognizeSpeech(ctx)
	if err != nil {
		e.logger.Warn("Speech recognition failed", zap.Error(err))
		return
	}
	if transcript == "" {
		return
	}
	e.mu.Lock()
	e.recognized = transcript
	e.mu.Unlock()
}

func (e *Extension) RecognizedSpeech() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recognized
}

// Loudness returns the microphone level, measured at most once per host
// step. It is -1 without an audio engine or a running step.
func (e *Extension) Loudness(ctx context.Context) float64 {
	now := e.clock.Now()

	e.mu.Lock()
	if !e.loudnessAt.IsZero() && now.Sub(e.loudnessAt) < e.stepTime {
		cached := e.loudness
		e.mu.Unlock()
		return cached
	}
	e.mu.Unlock()

	status, err := e.host.AudioStatus(ctx)
	if err != nil {
		e.logger.Debug("Audio status unavailable", zap.Error(err))
		return -1
	}
	if status.Loudness == nil || status.StepTimeMsec == nil {
		return -1
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.loudness = *status.Loudness
	e.loudnessAt = now
	e.stepTime = time.Duration(*status.StepTimeMsec * float64(time.Millisecond))
	return e.loudness
}

func (e *Extension) HeardSound(ctx context.Context, threshold float64) bool {
	return e.Loudness(ctx) > threshold
}

// ModelPrediction translates text to English and returns the predicted
// label. Without labels it returns the no-classes message; before the first
// build or on failure it returns "".
func (e *Extension) ModelPrediction(ctx context.Context, text string) string {
	if e.dataset.IsEmpty() {
		return constants.ClassifierMessages.NoClasses
	}
	prediction, ok := e.predict(ctx, text)
	if !ok {
		return ""
	}
	return prediction.Label
}

// ModelConfidence returns the confidence of the predicted label, 0 when
// nothing could be predicted.
func (e *Extension) ModelConfidence(ctx context.Context, text string) float64 {
	prediction, ok := e.predict(ctx, text)
	if !ok {
		return 0
	}
	return prediction.Confidence
}

func (e *Extension) IfTextMatchesClass(ctx context.Context, text, class string) bool {
	if e.dataset.IsEmpty() {
		return false
	}
	prediction, ok := e.predict(ctx, text)
	return ok && prediction.Label == class
}

func (e *Extension) predict(ctx context.Context, text string) (classifier.Prediction, bool) {
	input := text
	if e.remote != nil {
		if translated := e.remote.Translate(ctx, text, "en"); translated != "" {
			input = translated
		}
	}

	prediction, err := e.classifier.Predict(ctx, input)
	if err != nil {
		if !stderrors.Is(err, classifier.ErrNotTrained) {
			e.logger.Warn("Prediction failed", zap.Error(err))
		}
		return classifier.Prediction{}, false
	}
	return prediction, true
}

// IsExample reports whether text is one of label's examples, ignoring case.
func (e *Extension) IsExample(text, label string) bool {
	if e.dataset.IsEmpty() {
		return false
	}
	return e.dataset.IsExample(text, label)
}

// ToxicityConfidence returns the rounded percent probability that text is
// (positive) or is not (negative) in the toxicity label.
func (e *Extension) ToxicityConfidence(ctx context.Context, text, label string, positive bool) int {
	if e.toxicity == nil || text == "" || label == "" {
		return 0
	}
	return e.toxicity.Confidence(ctx, text, label, positive)
}

// SentimentScore is the comparative lexicon score of text.
func (e *Extension) SentimentScore(text string) float64 {
	return e.sentiment.Analyze(text).Comparative
}
