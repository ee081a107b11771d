package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kapu/blockext-go/internal/util"
	"github.com/kapu/blockext-go/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// TranslationCache is an optional shared cache consulted before the network.
type TranslationCache interface {
	GetTranslation(ctx context.Context, text, language string) (string, bool, error)
	SetTranslation(ctx context.Context, text, language, translated string) error
}

// TranslationFallback is asked when the translate service fails.
type TranslationFallback interface {
	Translate(ctx context.Context, text, language string) (string, error)
}

type Config struct {
	TranslateURL     string
	SynthesisURL     string
	TranslateTimeout time.Duration
	SynthesisTimeout time.Duration
	MaxSpeechRunes   int
	Breaker          util.CircuitBreakerConfig
	RateLimitTimeout time.Duration
}

type Option func(*Client)

func WithTranslationCache(cache TranslationCache) Option {
	return func(c *Client) { c.cache = cache }
}

func WithTranslationFallback(fallback TranslationFallback) Option {
	return func(c *Client) { c.fallback = fallback }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// Client calls the translate and speech synthesis services. Failures are
// logged and turned into empty results; callers never see an error.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      TranslationCache
	fallback   TranslationFallback

	translateBreaker *util.CircuitBreaker
	synthBreaker     *util.CircuitBreaker

	group     singleflight.Group
	lastTrans lastSlot[string]
	lastSynth lastSlot[[]byte]

	requests atomic.Int64
	logger   *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	logger = util.OrNop(logger)
	if cfg.MaxSpeechRunes <= 0 {
		cfg.MaxSpeechRunes = 128
	}

	translateBreaker := cfg.Breaker
	translateBreaker.Name = "translate"
	synthBreaker := cfg.Breaker
	synthBreaker.Name = "synthesis"

	c := &Client{
		cfg:              cfg,
		httpClient:       &http.Client{},
		translateBreaker: util.NewCircuitBreaker(translateBreaker, logger),
		synthBreaker:     util.NewCircuitBreaker(synthBreaker, logger),
		logger:           logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Requests counts HTTP requests issued to either service.
func (c *Client) Requests() int64 {
	return c.requests.Load()
}

// Translate returns text translated into language, or "" on any failure.
// Concurrent calls with the same arguments share one request.
func (c *Client) Translate(ctx context.Context, text, language string) string {
	key := translateKey(text, language)
	if result, ok := c.lastTrans.get(key); ok {
		return result
	}

	ch := c.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.TranslateTimeout)
		defer cancel()
		return c.translate(callCtx, text, language)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			c.logger.Warn("Translation failed",
				zap.String("language", language),
				zap.Int("text_len", len(text)),
				zap.Error(res.Err),
			)
			return ""
		}
		translated := res.Val.(string)
		c.lastTrans.set(key, translated)
		return translated
	case <-ctx.Done():
		return ""
	}
}

func (c *Client) translate(ctx context.Context, text, language string) (string, error) {
	if c.cache != nil {
		if cached, ok, err := c.cache.GetTranslation(ctx, text, language); err != nil {
			c.logger.Debug("Translation cache read failed", zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	translated, err := c.translateRemote(ctx, text, language)
	if err != nil {
		if c.fallback == nil {
			return "", err
		}
		c.logger.Info("Translate service failed, using fallback", zap.Error(err))
		translated, err = c.fallback.Translate(ctx, text, language)
		if err != nil {
			return "", fmt.Errorf("translation fallback: %w", err)
		}
	}

	if c.cache != nil {
		if err := c.cache.SetTranslation(ctx, text, language, translated); err != nil {
			c.logger.Debug("Translation cache write failed", zap.Error(err))
		}
	}
	return translated, nil
}

func (c *Client) translateRemote(ctx context.Context, text, language string) (string, error) {
	if !c.translateBreaker.CanExecute() {
		return "", errors.NewServiceError("translate service unavailable", "translate", "translate", nil)
	}

	query := url.Values{}
	query.Set("language", language)
	query.Set("text", text)
	endpoint := strings.TrimRight(c.cfg.TranslateURL, "/") + "/translate?" + query.Encode()

	var resp translateResponse
	if err := c.doJSON(ctx, endpoint, &resp); err != nil {
		c.recordFailure(c.translateBreaker, err)
		return "", err
	}
	c.translateBreaker.RecordSuccess()
	return resp.Result, nil
}

type translateResponse struct {
	Result string `json:"result"`
}

// SynthesisRequest describes one speech clip.
type SynthesisRequest struct {
	Locale string
	Gender string
	Text   string
}

// Synthesize returns encoded audio for req, or nil on any failure. Text is
// cut to the configured number of runes.
func (c *Client) Synthesize(ctx context.Context, req SynthesisRequest) []byte {
	req.Text = util.TruncateRunes(req.Text, c.cfg.MaxSpeechRunes)
	key := "synth|" + req.Locale + "|" + req.Gender + "|" + req.Text

	if audio, ok := c.lastSynth.get(key); ok {
		return audio
	}

	ch := c.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.SynthesisTimeout)
		defer cancel()
		return c.synthesize(callCtx, req)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			c.logger.Warn("Speech synthesis failed",
				zap.String("gender", req.Gender),
				zap.Error(res.Err),
			)
			return nil
		}
		audio := res.Val.([]byte)
		c.lastSynth.set(key, audio)
		return audio
	case <-ctx.Done():
		return nil
	}
}

func (c *Client) synthesize(ctx context.Context, req SynthesisRequest) ([]byte, error) {
	if !c.synthBreaker.CanExecute() {
		return nil, errors.NewServiceError("synthesis service unavailable", "synthesis", "synthesize", nil)
	}

	query := url.Values{}
	query.Set("locale", req.Locale)
	query.Set("gender", req.Gender)
	query.Set("text", req.Text)
	endpoint := strings.TrimRight(c.cfg.SynthesisURL, "/") + "/synth?" + query.Encode()

	body, err := c.doRequest(ctx, endpoint)
	if err != nil {
		c.recordFailure(c.synthBreaker, err)
		return nil, err
	}
	c.synthBreaker.RecordSuccess()
	return body, nil
}

func (c *Client) recordFailure(breaker *util.CircuitBreaker, err error) {
	if errors.StatusOf(err) == http.StatusTooManyRequests {
		breaker.RecordFailure(c.cfg.RateLimitTimeout)
		return
	}
	breaker.RecordFailure(0)
}

func translateKey(text, language string) string {
	return "translate|" + language + "|" + text
}

func (c *Client) doRequest(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.NewAPIError("failed to create request", 500, map[string]any{
			"url": endpoint,
		}).WithCause(err)
	}

	c.requests.Add(1)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewAPIError("request failed", 500, map[string]any{
			"url": endpoint,
		}).WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewAPIError("failed to read response", 500, map[string]any{
			"url": endpoint,
		}).WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewAPIError(
			fmt.Sprintf("remote service error: %s", resp.Status),
			resp.StatusCode,
			map[string]any{
				"url":  endpoint,
				"body": util.TruncateString(string(body), 200),
			},
		)
	}
	return body, nil
}
