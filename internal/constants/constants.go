package constants

import "time"

var CacheTTL = struct {
	Translation     time.Duration
	DatasetSnapshot time.Duration
}{
	Translation:     24 * time.Hour,     // 번역 결과 L2 캐시
	DatasetSnapshot: 30 * 24 * time.Hour, // 프로젝트 데이터셋 스냅샷
}

var WebSocketConfig = struct {
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
}{
	MaxReconnectAttempts: 5,
	ReconnectDelay:       5 * time.Second,
}

var RedisConfig = struct {
	ReadyTimeout time.Duration
}{
	ReadyTimeout: 5 * time.Second,
}

var RemoteConfig = struct {
	TranslateTimeout time.Duration
	SynthesisTimeout time.Duration
	SynthesisLocale  string
	MaxSpeechRunes   int
}{
	TranslateTimeout: 10 * time.Second,
	SynthesisTimeout: 10 * time.Second,
	SynthesisLocale:  "en-US",
	MaxSpeechRunes:   128,
}

var CircuitBreakerConfig = struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	RateLimitTimeout    time.Duration
	HealthCheckInterval time.Duration
	HealthCheckTimeout  time.Duration
}{
	FailureThreshold:    3,                // 3회 연속 실패 시 Circuit OPEN
	ResetTimeout:        30 * time.Second, // 기본 재시도 대기 시간
	RateLimitTimeout:    10 * time.Minute, // 429 전용 타임아웃
	HealthCheckInterval: 1 * time.Minute,
	HealthCheckTimeout:  10 * time.Second,
}

var TrainingConfig = struct {
	EmbeddingDim    int
	LearningRate    float64
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	Patience        int
	EmbedBatchSize  int
	EmbedWorkers    int
}{
	EmbeddingDim:    512,
	LearningRate:    0.06,
	Epochs:          100,
	BatchSize:       4,
	ValidationSplit: 0.15,
	Patience:        50,
	EmbedBatchSize:  32, // 임베딩 요청 1회당 문장 수
	EmbedWorkers:    4,
}

var ClassifierMessages = struct {
	NoClasses    string
	Loading      string
	Ready        string
	NotRecognize string
}{
	NoClasses:    "No classes inputted",
	Loading:      "wait .. loading model",
	Ready:        "The model is ready",
	NotRecognize: "아직 인식되지 않음",
}

var ToxicityConfig = struct {
	Threshold float64
	Labels    []string
}{
	Threshold: 0.1,
	Labels: []string{
		"toxicity",
		"severe_toxicity",
		"identity_attack",
		"insult",
		"threat",
		"obscene",
	},
}

var SpeechConfig = struct {
	Volume float64
}{
	Volume: 250,
}

var SamplingConfig = struct {
	Width        int
	Height       int
	FrameFormat  string
	DelayDivisor int
}{
	Width:        480,
	Height:       360,
	FrameFormat:  "image-data",
	DelayDivisor: 4,
}

var DetectionConfig = struct {
	DefaultThreshold    float64
	MaxDetections       int
	DefaultTransparency float64
}{
	DefaultThreshold:    0.7,
	MaxDetections:       2,
	DefaultTransparency: 50,
}

var AIInputLimits = struct {
	MaxQueryLength int
}{
	MaxQueryLength: 500,
}
