package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kapu/blockext-go/internal/domain"
	"github.com/kapu/blockext-go/internal/util"
	"github.com/kapu/blockext-go/pkg/errors"
	"go.uber.org/zap"
)

// Client calls the host runtime's callback API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// longClient has no timeout; speech recognition waits on the user.
	longClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		longClient: &http.Client{},
		logger:     util.OrNop(logger),
	}
}

// Say shows a speech or thought bubble on target.
func (c *Client) Say(ctx context.Context, target domain.TargetID, mode SayMode, text string) error {
	req := SayRequest{TargetID: target, Mode: mode, Text: text}
	if err := c.doRequest(ctx, http.MethodPost, "/targets/say", req, nil); err != nil {
		c.logger.Error("Failed to say", zap.Error(err), zap.String("target", target.String()))
		return err
	}
	return nil
}

// RequestToolboxUpdate asks the editor to re-read extension menus.
func (c *Client) RequestToolboxUpdate(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodPost, "/toolbox/refresh", nil, nil); err != nil {
		c.logger.Error("Failed to request toolbox update", zap.Error(err))
		return err
	}
	return nil
}

// SaveDocument hands a file to the editor for download.
func (c *Client) SaveDocument(ctx context.Context, name string, content []byte) error {
	req := DocumentRequest{Name: name, ContentType: "text/json;charset=utf-8", Content: string(content)}
	if err := c.doRequest(ctx, http.MethodPost, "/documents", req, nil); err != nil {
		c.logger.Error("Failed to save document", zap.Error(err), zap.String("name", name))
		return err
	}
	return nil
}

func (c *Client) EnableVideo(ctx context.Context, mirror bool) error {
	return c.doRequest(ctx, http.MethodPost, "/video", VideoRequest{Enabled: true, Mirror: mirror}, nil)
}

func (c *Client) DisableVideo(ctx context.Context) error {
	return c.doRequest(ctx, http.MethodPost, "/video", VideoRequest{Enabled: false}, nil)
}

func (c *Client) SetPreviewGhost(ctx context.Context, transparency float64) error {
	return c.doRequest(ctx, http.MethodPost, "/video/ghost", PreviewGhostRequest{Transparency: transparency}, nil)
}

func (c *Client) SetPeripheralConnected(ctx context.Context, extensionID string, connected bool) error {
	return c.doRequest(ctx, http.MethodPost, "/peripherals", PeripheralRequest{ExtensionID: extensionID, Connected: connected}, nil)
}

// GetFrame returns the latest video frame, or nil when the host has none yet.
func (c *Client) GetFrame(ctx context.Context, format string, width, height int) (*domain.Frame, error) {
	query := url.Values{}
	query.Set("format", format)
	query.Set("width", strconv.Itoa(width))
	query.Set("height", strconv.Itoa(height))

	resp, err := c.send(ctx, c.httpClient, http.MethodGet, "/video/frame?"+query.Encode(), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	var frame domain.Frame
	if err := json.NewDecoder(resp.Body).Decode(&frame); err != nil {
		return nil, errors.NewAPIError("failed to decode frame", 500, map[string]any{
			"path": "/video/frame",
		}).WithCause(err)
	}
	return &frame, nil
}

// DecodeSound uploads synthesized audio and returns the host's sound id.
func (c *Client) DecodeSound(ctx context.Context, audio []byte) (string, error) {
	resp, err := c.send(ctx, c.httpClient, http.MethodPost, "/audio/sounds", bytes.NewReader(audio), "application/octet-stream")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded DecodeSoundResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", errors.NewAPIError("failed to decode sound response", 500, map[string]any{
			"path": "/audio/sounds",
		}).WithCause(err)
	}
	if decoded.SoundID == "" {
		return "", errors.NewAPIError("host returned empty sound id", 502, nil)
	}
	return decoded.SoundID, nil
}

func (c *Client) PlaySound(ctx context.Context, soundID string, volume, playbackRate float64) error {
	path := "/audio/sounds/" + url.PathEscape(soundID) + "/play"
	return c.doRequest(ctx, http.MethodPost, path, PlaySoundRequest{Volume: volume, PlaybackRate: playbackRate}, nil)
}

func (c *Client) StopSound(ctx context.Context, soundID string) error {
	path := "/audio/sounds/" + url.PathEscape(soundID) + "/stop"
	return c.doRequest(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) AudioStatus(ctx context.Context) (AudioStatus, error) {
	var status AudioStatus
	if err := c.doRequest(ctx, http.MethodGet, "/audio/status", nil, &status); err != nil {
		return AudioStatus{}, err
	}
	return status, nil
}

// RecognizeSpeech blocks until the host's recognizer returns a transcript.
func (c *Client) RecognizeSpeech(ctx context.Context) (string, error) {
	resp, err := c.send(ctx, c.longClient, http.MethodPost, "/speech/recognize", nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result RecognitionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", errors.NewAPIError("failed to decode transcript", 500, nil).WithCause(err)
	}
	return result.Transcript, nil
}

// Detect runs the host's object detector on frame.
func (c *Client) Detect(ctx context.Context, frame *domain.Frame, maxDetections int, minScore float64) ([]domain.Detection, error) {
	var resp DetectResponse
	req := DetectRequest{Frame: frame, MaxDetections: maxDetections, MinScore: minScore}
	if err := c.doRequest(ctx, http.MethodPost, "/detect", req, &resp); err != nil {
		return nil, err
	}
	return resp.Detections, nil
}

func (c *Client) Ping(ctx context.Context) bool {
	return c.doRequest(ctx, http.MethodGet, "/config", nil, nil) == nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, reqBody, respBody any) error {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return errors.NewAPIError("failed to marshal request", 400, map[string]any{
				"path": path,
			}).WithCause(err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	resp, err := c.send(ctx, c.httpClient, method, path, bodyReader, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if respBody != nil {
		if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
			return errors.NewAPIError("failed to decode response", 500, map[string]any{
				"path": path,
			}).WithCause(err)
		}
	}

	return nil
}

// send returns the response only for 2xx statuses; the caller closes the body.
func (c *Client) send(ctx context.Context, client *http.Client, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	fullURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return nil, errors.NewAPIError("failed to create request", 500, map[string]any{
			"url": fullURL,
		}).WithCause(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.NewAPIError("request failed", 500, map[string]any{
			"url": fullURL,
		}).WithCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, errors.NewAPIError(
			fmt.Sprintf("host API error: %s", resp.Status),
			resp.StatusCode,
			map[string]any{
				"url":  fullURL,
				"body": string(bodyBytes),
			},
		)
	}

	return resp, nil
}
