package session

// DefaultViolationThreshold is the strike count that forces submission.
const DefaultViolationThreshold = 3

// Escalation is the monitor's verdict on one recorded violation.
type Escalation int

const (
	EscalateWarn Escalation = iota
	EscalateForce
)

// Monitor counts visibility/focus violations and escalates at a threshold.
// It is advisory anti-cheating over browser lifecycle signals, not a security
// boundary: a determined user can suppress the events, and no server-side
// corroboration of their authenticity exists.
type Monitor struct {
	threshold int
	count     int
}

func NewMonitor(threshold int) Monitor {
	if threshold <= 0 {
		threshold = DefaultViolationThreshold
	}
	return Monitor{threshold: threshold}
}

// Record counts one violation and returns the new total plus the verdict:
// warn below the threshold, force at and beyond it. The caller is expected
// to stop feeding events once the session leaves active.
func (m *Monitor) Record() (int, Escalation) {
	m.count++
	if m.count >= m.threshold {
		return m.count, EscalateForce
	}
	return m.count, EscalateWarn
}

func (m *Monitor) Count() int { return m.count }
