package lifecycle

import "context"

// Phase orders shutdown. Every hook of a phase returns before the next phase starts.
type Phase int

const (
	// PhaseIntake stops Telegram updates and payment webhooks.
	PhaseIntake Phase = iota
	// PhaseWorkers drains sweeps and queued jobs that may still settle payments.
	PhaseWorkers
	// PhaseStorage closes the ticket store and Redis.
	PhaseStorage
)

var phaseNames = map[Phase]string{
	PhaseIntake:  "intake",
	PhaseWorkers: "workers",
	PhaseStorage: "storage",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// Hook is a named shutdown step.
type Hook struct {
	Name  string
	Phase Phase
	Fn    func(ctx context.Context) error
}
