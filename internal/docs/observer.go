package docs

type Stage string

const (
	StageStructure Stage = "structure"
	StageFiles     Stage = "files"
	StageFinal     Stage = "final"
)

type EventKind string

const (
	StageStarted  EventKind = "stage_started"
	StageFinished EventKind = "stage_finished"
	FileDone      EventKind = "file_done"
)

type Event struct {
	Kind  EventKind `json:"kind"`
	Stage Stage     `json:"stage"`
	Path  string    `json:"path,omitempty"`
	Done  int       `json:"done,omitempty"`
	Total int       `json:"total,omitempty"`
	// Failed marks a stage or file that fell back to placeholder text.
	Failed bool `json:"failed,omitempty"`
}

// Observer receives progress events. Observe may be called from several
// goroutines during the file stage.
type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

type nopObserver struct{}

func (nopObserver) Observe(Event) {}
