package domain

// BoundingBox is [x, y, width, height] in frame pixels.
type BoundingBox [4]float64

type Detection struct {
	Class string      `json:"class"`
	Score float64     `json:"score"`
	BBox  BoundingBox `json:"bbox"`
}

type ObjectInfo string

const (
	InfoAccuracy  ObjectInfo = "accuracy"
	InfoXPosition ObjectInfo = "x_position"
	InfoYPosition ObjectInfo = "y_position"
	InfoWidth     ObjectInfo = "width"
	InfoHeight    ObjectInfo = "height"
)

type VideoState string

const (
	VideoOff       VideoState = "off"
	VideoOn        VideoState = "on"
	VideoOnFlipped VideoState = "on-flipped"
)

func (s VideoState) IsValid() bool {
	switch s {
	case VideoOff, VideoOn, VideoOnFlipped:
		return true
	default:
		return false
	}
}

// Frame is one sampled video image.
type Frame struct {
	Format string `json:"format"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Data   []byte `json:"data"`
}
