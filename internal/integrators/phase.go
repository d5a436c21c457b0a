package integrators

// Phase is a state of the integration state machine:
// Initializing → Stepping ⇄ {Accepted, Rejected} → (Stepping | Converged | Failed).
type Phase int

const (
	Initializing Phase = iota
	Stepping
	Accepted
	Rejected
	Converged
	Failed
)

var phaseNames = [...]string{"initializing", "stepping", "accepted", "rejected", "converged", "failed"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// Terminal reports whether no further transition can follow p.
func (p Phase) Terminal() bool {
	return p == Converged || p == Failed
}
