package domain

// EmptyLabel marks a label list that has no real labels yet.
const EmptyLabel = ""

// ModelData is the classifier payload a project carries. TextData is the
// canonical label -> examples mapping; ClassifierData is the working copy and
// may hold restored examples that TextData does not.
type ModelData struct {
	TextData        map[string][]string `json:"textData"`
	ClassifierData  map[string][]string `json:"classifierData"`
	NextLabelNumber int                 `json:"nextLabelNumber,omitempty"`
}

func NewModelData() ModelData {
	return ModelData{
		TextData:        make(map[string][]string),
		ClassifierData:  make(map[string][]string),
		NextLabelNumber: 1,
	}
}

// LabelCount counts real labels in the canonical mapping.
func (m ModelData) LabelCount() int {
	return len(m.TextData)
}
