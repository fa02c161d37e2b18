package ecodan

import (
	"context"

	"codeberg.org/mutker/ecodanctl/internal/energy"
)

// Transport performs single holding-register operations against the
// heat-pump controller. Implementations need not be safe for concurrent use;
// Device serializes access.
type Transport interface {
	ReadRegister(addr uint16) (uint16, error)
	WriteRegister(addr, value uint16) error
	Close() error
}

// Reader is the read side of Device used by the poller.
type Reader interface {
	Read(ctx context.Context, q Quantity) (Measurement, error)
	Status(ctx context.Context, k StatusKind) (CodedStatus, error)
	Energy(ctx context.Context, s Stream) (EnergySnapshot, error)
}

// TargetWriter is the write side of Device used by the control surface.
type TargetWriter interface {
	SetTarget(ctx context.Context, t Target, value float64) error
}

// Domain types
type (
	Measurement struct {
		Value float64 `json:"value"`
		Unit  string  `json:"unit"`
	}

	CodedStatus struct {
		Code        int    `json:"code"`
		Description string `json:"description"`
	}

	EnergySnapshot struct {
		Value float64     `json:"value"`
		Unit  string      `json:"unit"`
		Date  energy.Date `json:"date"`
	}
)

// Quantity names an instantaneous reading.
type Quantity int

const (
	TankTargetTemp Quantity = iota
	TankTemp
	HouseTargetTemp
	HouseTemp
	OutdoorTemp
	PumpFrequency
	Flow
	SupplyTemp
	ReturnTemp
)

// Quantities lists every instantaneous reading in poll order.
var Quantities = []Quantity{
	TankTargetTemp,
	TankTemp,
	HouseTargetTemp,
	HouseTemp,
	OutdoorTemp,
	PumpFrequency,
	Flow,
	SupplyTemp,
	ReturnTemp,
}

// StatusKind names a coded status register.
type StatusKind int

const (
	OperatingMode StatusKind = iota
	HeatSource
	DefrostStatus
	DHWEnabled
)

var StatusKinds = []StatusKind{OperatingMode, HeatSource, DefrostStatus, DHWEnabled}

// Stream names one of the accumulating energy counters.
type Stream int

const (
	ConsumedHouse Stream = iota
	ConsumedTank
	ProducedHouse
	ProducedTank
)

var Streams = []Stream{ConsumedHouse, ConsumedTank, ProducedHouse, ProducedTank}

// Target names a writable setpoint.
type Target int

const (
	TankTarget Target = iota
	HouseTarget
)
