package host

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/kapu/blockext-go/internal/domain"
	"github.com/kapu/blockext-go/internal/events"
	"github.com/kapu/blockext-go/pkg/errors"
	"go.uber.org/zap"
)

func TestSayPostsRequest(t *testing.T) {
	var got SayRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/targets/say" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, zap.NewNop())
	if err := client.Say(context.Background(), "sprite1", SayModeThink, "wait"); err != nil {
		t.Fatalf("say failed: %v", err)
	}
	if got.TargetID != "sprite1" || got.Mode != SayModeThink || got.Text != "wait" {
		t.Fatalf("unexpected payload %+v", got)
	}
}

func TestGetFrameNoContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("width") != "480" || r.URL.Query().Get("format") != "image-data" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	frame, err := NewClient(srv.URL, nil).GetFrame(context.Background(), "image-data", 480, 360)
	if err != nil || frame != nil {
		t.Fatalf("expected no frame and no error, got %v %v", frame, err)
	}
}

func TestGetFrameDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.Frame{Format: "image-data", Width: 2, Height: 1, Data: []byte{1, 2, 3}})
	}))
	defer srv.Close()

	frame, err := NewClient(srv.URL, nil).GetFrame(context.Background(), "image-data", 2, 1)
	if err != nil {
		t.Fatalf("get frame failed: %v", err)
	}
	if frame.Width != 2 || len(frame.Data) != 3 {
		t.Fatalf("unexpected frame %+v", frame)
	}
}

func TestErrorStatusBecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no audio engine", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).AudioStatus(context.Background())
	var apiErr *errors.APIError
	if !stderrors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 APIError, got %v", err)
	}
}

func TestDecodeSoundUploadsBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if r.Header.Get("Content-Type") != "application/octet-stream" || string(body) != "mp3" {
			t.Errorf("unexpected upload %q %q", r.Header.Get("Content-Type"), body)
		}
		_, _ = w.Write([]byte(`{"sound_id":"s1"}`))
	}))
	defer srv.Close()

	id, err := NewClient(srv.URL, nil).DecodeSound(context.Background(), []byte("mp3"))
	if err != nil || id != "s1" {
		t.Fatalf("expected s1, got %q %v", id, err)
	}
}

type fakeSoundAPI struct {
	mu      sync.Mutex
	next    int
	played  []string
	stopped []string
}

func (f *fakeSoundAPI) DecodeSound(context.Context, []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	return "sound-" + strconv.Itoa(f.next), nil
}

func (f *fakeSoundAPI) PlaySound(_ context.Context, id string, _, _ float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.played = append(f.played, id)
	return nil
}

func (f *fakeSoundAPI) StopSound(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, id)
	return nil
}

func TestSoundPlayerStopsOnHostEvent(t *testing.T) {
	api := &fakeSoundAPI{}
	audio := NewAudio(api, zap.NewNop())

	player, err := audio.DecodeSoundPlayer(context.Background(), []byte("x"), 250, 1.19)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	fired := 0
	player.OnStop(func() { fired++ })
	if err := player.Play(); err != nil {
		t.Fatalf("play failed: %v", err)
	}

	audio.HandleSoundStopped(events.SoundStopped{SoundID: player.ID()})
	audio.HandleSoundStopped(events.SoundStopped{SoundID: player.ID()})

	if fired != 1 {
		t.Fatalf("expected a single stop callback, got %d", fired)
	}
	if audio.Pending() != 0 {
		t.Fatalf("stopped player must be forgotten")
	}

	late := 0
	player.OnStop(func() { late++ })
	if late != 1 {
		t.Fatalf("callbacks added after stop must fire immediately")
	}
}

func TestSoundPlayerStopCallsHost(t *testing.T) {
	api := &fakeSoundAPI{}
	audio := NewAudio(api, nil)
	player, _ := audio.DecodeSoundPlayer(context.Background(), nil, 1, 1)

	fired := 0
	player.OnStop(func() { fired++ })
	player.Stop()
	player.Stop()

	if fired != 1 || len(api.stopped) != 2 {
		t.Fatalf("expected one callback and two host stops, got %d/%d", fired, len(api.stopped))
	}
}
