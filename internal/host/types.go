package host

import "github.com/kapu/blockext-go/internal/domain"

// SayMode selects the speech bubble style.
type SayMode string

const (
	SayModeSay   SayMode = "say"
	SayModeThink SayMode = "think"
)

type SayRequest struct {
	TargetID domain.TargetID `json:"target_id"`
	Mode     SayMode         `json:"mode"`
	Text     string          `json:"text"`
}

type DocumentRequest struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

type VideoRequest struct {
	Enabled bool `json:"enabled"`
	Mirror  bool `json:"mirror"`
}

type PreviewGhostRequest struct {
	Transparency float64 `json:"transparency"`
}

type PeripheralRequest struct {
	ExtensionID string `json:"extension_id"`
	Connected   bool   `json:"connected"`
}

type DecodeSoundResponse struct {
	SoundID string `json:"sound_id"`
}

type PlaySoundRequest struct {
	Volume       float64 `json:"volume"`
	PlaybackRate float64 `json:"playback_rate"`
}

// AudioStatus is nil-valued when the host has no audio engine or no running step.
type AudioStatus struct {
	Loudness     *float64 `json:"loudness"`
	StepTimeMsec *float64 `json:"step_time_ms"`
}

type RecognitionResponse struct {
	Transcript string `json:"transcript"`
}

type DetectRequest struct {
	Frame         *domain.Frame `json:"frame"`
	MaxDetections int           `json:"max_detections"`
	MinScore      float64       `json:"min_score"`
}

type DetectResponse struct {
	Detections []domain.Detection `json:"detections"`
}

type WebSocketState string

const (
	WSStateConnecting   WebSocketState = "CONNECTING"
	WSStateConnected    WebSocketState = "CONNECTED"
	WSStateDisconnected WebSocketState = "DISCONNECTED"
	WSStateReconnecting WebSocketState = "RECONNECTING"
	WSStateFailed       WebSocketState = "FAILED"
)

func (s WebSocketState) String() string {
	return string(s)
}
