package domain

type VoiceID string

const (
	VoiceSqueak VoiceID = "SQUEAK"
	VoiceTenor  VoiceID = "TENOR"
	VoiceAlto   VoiceID = "ALTO"
	VoiceGiant  VoiceID = "GIANT"
)

type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

type Voice struct {
	ID           VoiceID
	Name         string
	Gender       Gender
	PlaybackRate float64
}

// Voices is ordered: numeric voice arguments index into it (1-based).
var Voices = []Voice{
	{ID: VoiceSqueak, Name: "squeak", Gender: GenderFemale, PlaybackRate: 1.19}, // +3 semitones
	{ID: VoiceTenor, Name: "tenor", Gender: GenderMale, PlaybackRate: 1},
	{ID: VoiceAlto, Name: "alto", Gender: GenderFemale, PlaybackRate: 1},
	{ID: VoiceGiant, Name: "giant", Gender: GenderMale, PlaybackRate: 0.84}, // -3 semitones
}

const DefaultVoice = VoiceSqueak

func FindVoice(id VoiceID) (Voice, bool) {
	for _, v := range Voices {
		if v.ID == id {
			return v, true
		}
	}
	return Voice{}, false
}
