package domain

// TargetID identifies an executable entity (sprite or stage) owned by the host.
type TargetID string

func (id TargetID) String() string {
	return string(id)
}

type Target struct {
	ID      TargetID `json:"id"`
	Name    string   `json:"name"`
	IsStage bool     `json:"is_stage"`
}
