package events

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire form of one lifecycle event.
type Envelope struct {
	Event   Name            `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

var factories = map[Name]func() Event{
	NameProjectLoaded:    func() Event { return &ProjectLoaded{} },
	NameProjectRunStart:  func() Event { return &ProjectRunStart{} },
	NameStopAll:          func() Event { return &StopAll{} },
	NameTargetCreated:    func() Event { return &TargetCreated{} },
	NameTargetDisposed:   func() Event { return &TargetDisposed{} },
	NameNewLabel:         func() Event { return &LabelAdded{} },
	NameRenameLabel:      func() Event { return &LabelRenamed{} },
	NameDeleteLabel:      func() Event { return &LabelDeleted{} },
	NameNewExamples:      func() Event { return &ExamplesAdded{} },
	NameDeleteExample:    func() Event { return &ExampleDeleted{} },
	NameExportClassifier: func() Event { return &ExportRequested{} },
	NameLoadClassifier:   func() Event { return &ImportRequested{} },
	NameClearAllLabels:   func() Event { return &ClearAllLabelsRequested{} },
	NameBuildRequested:   func() Event { return &BuildRequested{} },
	NameSoundStopped:     func() Event { return &SoundStopped{} },
}

// Decode turns an envelope into its typed event value.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	factory, ok := factories[env.Event]
	if !ok {
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}

	ptr := factory()
	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, ptr); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", env.Event, err)
		}
	}
	return deref(ptr), nil
}

// Encode wraps event in an envelope.
func Encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", event.Name(), err)
	}
	return json.Marshal(Envelope{Event: event.Name(), Payload: payload})
}

func deref(ptr Event) Event {
	switch e := ptr.(type) {
	case *ProjectLoaded:
		return *e
	case *ProjectRunStart:
		return *e
	case *StopAll:
		return *e
	case *TargetCreated:
		return *e
	case *TargetDisposed:
		return *e
	case *LabelAdded:
		return *e
	case *LabelRenamed:
		return *e
	case *LabelDeleted:
		return *e
	case *ExamplesAdded:
		return *e
	case *ExampleDeleted:
		return *e
	case *ExportRequested:
		return *e
	case *ImportRequested:
		return *e
	case *ClearAllLabelsRequested:
		return *e
	case *BuildRequested:
		return *e
	case *SoundStopped:
		return *e
	default:
		return ptr
	}
}
