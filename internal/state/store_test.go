package state

import (
	"testing"

	"github.com/kapu/blockext-go/internal/domain"
)

type voiceState struct {
	VoiceID string
	History []string
}

func newVoiceStore() *Store[voiceState] {
	return NewStore(
		func() voiceState { return voiceState{VoiceID: "SQUEAK"} },
		func(v voiceState) voiceState {
			v.History = append([]string(nil), v.History...)
			return v
		},
	)
}

func TestGetReturnsSameRecord(t *testing.T) {
	store := newVoiceStore()

	first := store.Get("sprite1")
	first.VoiceID = "GIANT"

	second := store.Get("sprite1")
	if first != second {
		t.Fatalf("expected the same record pointer on repeated access")
	}
	if second.VoiceID != "GIANT" {
		t.Fatalf("expected mutation to persist, got %s", second.VoiceID)
	}
}

func TestOnTargetCreatedDeepCopies(t *testing.T) {
	store := newVoiceStore()

	source := store.Get("sprite1")
	source.VoiceID = "ALTO"
	source.History = []string{"hello"}

	store.OnTargetCreated("clone1", idPtr("sprite1"))

	clone, ok := store.Lookup("clone1")
	if !ok {
		t.Fatalf("expected clone to receive a record")
	}
	if clone == source {
		t.Fatalf("clone must not share the source record")
	}
	if clone.VoiceID != "ALTO" {
		t.Fatalf("expected cloned voice ALTO, got %s", clone.VoiceID)
	}

	clone.History[0] = "changed"
	if source.History[0] != "hello" {
		t.Fatalf("clone mutation leaked into source: %v", source.History)
	}
}

func TestOnTargetCreatedWithoutSourceRecord(t *testing.T) {
	store := newVoiceStore()

	store.OnTargetCreated("sprite2", nil)
	if _, ok := store.Lookup("sprite2"); ok {
		t.Fatalf("expected no record without a source")
	}

	store.OnTargetCreated("sprite3", idPtr("missing"))
	if _, ok := store.Lookup("sprite3"); ok {
		t.Fatalf("expected no record when the source has none")
	}

	if got := store.Get("sprite3").VoiceID; got != "SQUEAK" {
		t.Fatalf("expected lazy default record, got %s", got)
	}
}

func TestForget(t *testing.T) {
	store := newVoiceStore()
	store.Get("sprite1")
	store.Forget("sprite1")
	if store.Len() != 0 {
		t.Fatalf("expected empty store after Forget, got %d", store.Len())
	}
}

func idPtr(id string) *domain.TargetID {
	target := domain.TargetID(id)
	return &target
}
