package game

// State is a high-level screen state
type State int

const (
	StateMenu State = iota
	StateCharacterCreation
	StateOverworld
	StateMinigame
	StateLesson
	StateDialog
	StatePaused
	StateLoading
	StateSettings
)

var stateNames = [...]string{
	StateMenu:              "MENU",
	StateCharacterCreation: "CHARACTER_CREATION",
	StateOverworld:         "OVERWORLD",
	StateMinigame:          "MINIGAME",
	StateLesson:            "LESSON",
	StateDialog:            "DIALOG",
	StatePaused:            "PAUSED",
	StateLoading:           "LOADING",
	StateSettings:          "SETTINGS",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// CallbackID identifies a registered enter-callback
type CallbackID uint64

// StateCallback runs when its state is entered. A returned error is logged.
type StateCallback func() error

type registeredCallback struct {
	id CallbackID
	fn StateCallback
}
