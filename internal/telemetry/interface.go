package telemetry

import (
	"time"

	"codeberg.org/mutker/ecodanctl/internal/energy"
)

// Recorder receives the outcome of poll cycles and setpoint writes.
type Recorder interface {
	CycleFinished(result CycleResult, started time.Time, duration time.Duration)
	EnergyDecision(stream, decision string)
	SinkError()
	TargetWrite(target string, result WriteResult)
}

type CycleResult string

const (
	CycleOK      CycleResult = "ok"
	CycleAborted CycleResult = "aborted"
)

// DecisionError marks an energy stream skipped because its state could not
// be read or written.
const DecisionError = "error"

// Decisions lists every value of the energy decision label.
var Decisions = []string{
	string(energy.ReasonFirstSeen),
	string(energy.ReasonNewDay),
	string(energy.ReasonIncreased),
	string(energy.ReasonStale),
	string(energy.ReasonUnchanged),
	DecisionError,
}

type WriteResult string

const (
	WriteOK        WriteResult = "ok"
	WriteInvalid   WriteResult = "invalid"
	WriteTransport WriteResult = "transport_error"
)

// Nop discards everything.
type Nop struct{}

func (Nop) CycleFinished(CycleResult, time.Time, time.Duration) {}
func (Nop) EnergyDecision(string, string)                       {}
func (Nop) SinkError()                                          {}
func (Nop) TargetWrite(string, WriteResult)                     {}
