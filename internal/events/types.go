package events

import "github.com/kapu/blockext-go/internal/domain"

// Name is the host-side event name carried on the lifecycle stream.
type Name string

const (
	NameProjectLoaded    Name = "PROJECT_LOADED"
	NameProjectRunStart  Name = "PROJECT_RUN_START"
	NameStopAll          Name = "PROJECT_STOP_ALL"
	NameTargetCreated    Name = "TARGET_CREATED"
	NameTargetDisposed   Name = "TARGET_DISPOSED"
	NameNewLabel         Name = "NEW_LABEL"
	NameRenameLabel      Name = "RENAME_LABEL"
	NameDeleteLabel      Name = "DELETE_LABEL"
	NameNewExamples      Name = "NEW_EXAMPLES"
	NameDeleteExample    Name = "DELETE_EXAMPLE"
	NameExportClassifier Name = "EXPORT_CLASSIFIER"
	NameLoadClassifier   Name = "LOAD_CLASSIFIER"
	NameClearAllLabels   Name = "CLEAR_ALL_LABELS"
	NameBuildRequested   Name = "DONE"
	NameSoundStopped     Name = "SOUND_STOPPED"
)

func (n Name) String() string {
	return string(n)
}

// Event is implemented by every typed lifecycle payload.
type Event interface {
	Name() Name
}

type ProjectLoaded struct {
	ProjectID string            `json:"project_id"`
	Targets   []domain.Target   `json:"targets"`
	ModelData *domain.ModelData `json:"model_data,omitempty"`
}

type ProjectRunStart struct{}

type StopAll struct{}

// TargetCreated carries the source target when the new one is a clone.
type TargetCreated struct {
	Target domain.Target    `json:"target"`
	Source *domain.TargetID `json:"source,omitempty"`
}

type TargetDisposed struct {
	TargetID domain.TargetID `json:"target_id"`
}

type LabelAdded struct {
	Label string `json:"label"`
}

type LabelRenamed struct {
	OldName string `json:"old_name"`
	NewName string `json:"new_name"`
}

type LabelDeleted struct {
	Label string `json:"label"`
}

type ExamplesAdded struct {
	Label    string   `json:"label"`
	Examples []string `json:"examples"`
}

// ExampleDeleted with Index -1 removes every restored example of the label.
type ExampleDeleted struct {
	Label string `json:"label"`
	Index int    `json:"index"`
}

type ExportRequested struct{}

type ImportRequested struct {
	Document string `json:"document"`
}

type ClearAllLabelsRequested struct {
	Confirmed bool `json:"confirmed"`
}

type BuildRequested struct{}

// SoundStopped reports that a host audio player finished or was stopped.
type SoundStopped struct {
	SoundID string `json:"sound_id"`
}

func (ProjectLoaded) Name() Name           { return NameProjectLoaded }
func (ProjectRunStart) Name() Name         { return NameProjectRunStart }
func (StopAll) Name() Name                 { return NameStopAll }
func (TargetCreated) Name() Name           { return NameTargetCreated }
func (TargetDisposed) Name() Name          { return NameTargetDisposed }
func (LabelAdded) Name() Name              { return NameNewLabel }
func (LabelRenamed) Name() Name            { return NameRenameLabel }
func (LabelDeleted) Name() Name            { return NameDeleteLabel }
func (ExamplesAdded) Name() Name           { return NameNewExamples }
func (ExampleDeleted) Name() Name          { return NameDeleteExample }
func (ExportRequested) Name() Name         { return NameExportClassifier }
func (ImportRequested) Name() Name         { return NameLoadClassifier }
func (ClearAllLabelsRequested) Name() Name { return NameClearAllLabels }
func (BuildRequested) Name() Name          { return NameBuildRequested }
func (SoundStopped) Name() Name            { return NameSoundStopped }
