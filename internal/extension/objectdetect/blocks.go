package objectdetect

import (
	"context"

	"github.com/kapu/blockext-go/internal/constants"
	"github.com/kapu/blockext-go/internal/domain"
	"go.uber.org/zap"
)

// SetDetectValue sets the minimum detection score from a percentage.
func (e *Extension) SetDetectValue(percent float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.threshold = percent / 100
}

func (e *Extension) Threshold() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.threshold
}

// DetectVideo runs the detector on the latest sampled frame and keeps the
// result. Without a frame it does nothing. The peripheral is reported
// connected while at least one object is visible.
func (e *Extension) DetectVideo(ctx context.Context) {
	frame := e.loop.Frame()
	if frame == nil {
		return
	}

	detector, err := e.ensureDetector(ctx)
	if err != nil {
		e.logger.Warn("Object detector unavailable", zap.Error(err))
		return
	}

	detections, err := detector.Detect(ctx, frame, constants.DetectionConfig.MaxDetections, e.Threshold())
	if err != nil {
		e.logger.Warn("Object detection failed", zap.Error(err))
		return
	}
	if detections == nil {
		detections = []domain.Detection{}
	}

	e.mu.Lock()
	e.predictions = detections
	e.mu.Unlock()

	e.logger.Debug("Objects detected", zap.Int("count", len(detections)))
	if err := e.host.SetPeripheralConnected(ctx, ExtensionID, len(detections) > 0); err != nil {
		e.logger.Warn("Failed to report peripheral status", zap.Error(err))
	}
}

// IsConnected reports whether a detection has run.
func (e *Extension) IsConnected() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.predictions != nil
}

func (e *Extension) Predictions() []domain.Detection {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]domain.Detection(nil), e.predictions...)
}

// at returns the 1-based order-th detection.
func (e *Extension) at(order int) (domain.Detection, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if order < 1 || order > len(e.predictions) {
		return domain.Detection{}, false
	}
	return e.predictions[order-1], true
}

func (e *Extension) ObjectAmount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.predictions)
}

func (e *Extension) ObjectName(order int) string {
	detection, ok := e.at(order)
	if !ok {
		return constants.ClassifierMessages.NotRecognize
	}
	return detection.Class
}

// ObjectInfo reports one property of the order-th detection. Positions are
// relative to the frame center with y pointing up.
func (e *Extension) ObjectInfo(order int, info domain.ObjectInfo) float64 {
	detection, ok := e.at(order)
	if !ok {
		return 0
	}
	switch info {
	case domain.InfoAccuracy:
		return detection.Score
	case domain.InfoXPosition:
		return detection.BBox[0] - float64(e.cfg.Width)/2
	case domain.InfoYPosition:
		return float64(e.cfg.Height)/2 - detection.BBox[1]
	case domain.InfoWidth:
		return detection.BBox[2]
	case domain.InfoHeight:
		return detection.BBox[3]
	default:
		return 0
	}
}

func (e *Extension) ClassAmount(class string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	amount := 0
	for _, d := range e.predictions {
		if d.Class == class {
			amount++
		}
	}
	return amount
}

// ClassNumber returns the 1-based position of the order-th detection of
// class, or 0.
func (e *Extension) ClassNumber(order int, class string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	seen := 0
	for i, d := range e.predictions {
		if d.Class != class {
			continue
		}
		seen++
		if seen == order {
			return i + 1
		}
	}
	return 0
}

func (e *Extension) ObjectExists(class string) bool {
	return e.ClassAmount(class) > 0
}
