package ecodan

import (
	"fmt"
	"sync"

	"codeberg.org/mutker/ecodanctl/internal/errors"
)

// simulatorRegisters are the raw values behind the fixed readings of dummy
// mode: tank 42 °C, house 22.5 °C (target 21), outdoor 14.5 °C, pump 38 Hz,
// flow 19 l/min, supply 50 °C, return 45 °C, and counters dated 2023-09-01.
var simulatorRegisters = map[uint16]uint16{
	31:  0,
	106: 4200,
	94:  2250,
	55:  2100,
	99:  145,
	73:  38,
	102: 5000,
	104: 4500,
	299: 19,

	26: 0,
	80: 0,
	67: 0,
	39: 0,

	279: 23, 280: 9, 281: 1,
	282: 3, 283: 17,
	286: 3, 287: 26,
	289: 23, 290: 9, 291: 1,
	292: 0, 293: 18,
	296: 9, 297: 56,
}

// Simulator is an in-memory Transport. Unset registers read as an error,
// like an illegal data address on a real controller.
type Simulator struct {
	mu        sync.Mutex
	registers map[uint16]uint16
	failures  map[uint16]error
	closed    bool
}

// NewSimulator returns a Simulator seeded with the dummy-mode readings.
func NewSimulator() *Simulator {
	regs := make(map[uint16]uint16, len(simulatorRegisters))
	for addr, v := range simulatorRegisters {
		regs[addr] = v
	}
	return &Simulator{
		registers: regs,
		failures:  make(map[uint16]error),
	}
}

// Set overwrites a raw register value.
func (s *Simulator) Set(addr, value uint16) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registers[addr] = value
}

// Get returns a raw register value.
func (s *Simulator) Get(addr uint16) (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.registers[addr]
	return v, ok
}

// Fail makes every operation on addr return err until cleared with a nil err.
func (s *Simulator) Fail(addr uint16, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, addr)
		return
	}
	s.failures[addr] = err
}

func (s *Simulator) ReadRegister(addr uint16) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, errors.New().New(ErrTransportClosed)
	}
	if err, ok := s.failures[addr]; ok {
		return 0, err
	}
	v, ok := s.registers[addr]
	if !ok {
		return 0, fmt.Errorf("illegal data address %d", addr)
	}
	return v, nil
}

func (s *Simulator) WriteRegister(addr, value uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New().New(ErrTransportClosed)
	}
	if err, ok := s.failures[addr]; ok {
		return err
	}
	s.registers[addr] = value
	return nil
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
