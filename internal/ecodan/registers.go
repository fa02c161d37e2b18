package ecodan

import (
	"math"
	"strings"

	"codeberg.org/mutker/ecodanctl/internal/errors"
)

const (
	UnitCelsius = "°C"
	UnitHertz   = "Hz"
	UnitFlow    = "l/min"
	UnitKWh     = "kWh"

	// Energy date registers hold the year as an offset from 2000.
	energyYearOffset = 2000
	// The fractional energy register counts in units of 10 Wh.
	energyFractionScale = 10.0 / 1000.0
)

// register describes how a raw 16-bit value maps to an engineering value.
type register struct {
	addr     uint16
	decimals int
	signed   bool
	unit     string
}

func (r register) decode(raw uint16) float64 {
	v := float64(raw)
	if r.signed {
		v = float64(int16(raw))
	}
	return v / math.Pow10(r.decimals)
}

func (r register) encode(value float64) uint16 {
	scaled := math.Round(value * math.Pow10(r.decimals))
	if r.signed {
		return uint16(int16(scaled))
	}
	return uint16(scaled)
}

var quantityRegisters = map[Quantity]register{
	TankTargetTemp:  {addr: 31, decimals: 2, unit: UnitCelsius},
	TankTemp:        {addr: 106, decimals: 2, unit: UnitCelsius},
	HouseTargetTemp: {addr: 55, decimals: 2, unit: UnitCelsius},
	HouseTemp:       {addr: 94, decimals: 2, unit: UnitCelsius},
	OutdoorTemp:     {addr: 99, decimals: 1, signed: true, unit: UnitCelsius},
	PumpFrequency:   {addr: 73, unit: UnitHertz},
	Flow:            {addr: 299, unit: UnitFlow},
	SupplyTemp:      {addr: 102, decimals: 2, unit: UnitCelsius},
	ReturnTemp:      {addr: 104, decimals: 2, unit: UnitCelsius},
}

var quantityNames = map[Quantity]string{
	TankTargetTemp:  "tank_target_temp",
	TankTemp:        "tank_temp",
	HouseTargetTemp: "house_target_temp",
	HouseTemp:       "house_temp",
	OutdoorTemp:     "outdoor_temp",
	PumpFrequency:   "pump_frequency",
	Flow:            "flow",
	SupplyTemp:      "supply_temp",
	ReturnTemp:      "return_temp",
}

func (q Quantity) String() string {
	if name, ok := quantityNames[q]; ok {
		return name
	}
	return "unknown"
}

var statusRegisters = map[StatusKind]uint16{
	OperatingMode: 26,
	HeatSource:    80,
	DefrostStatus: 67,
	DHWEnabled:    39,
}

// dateRegisters holds the year, month and day registers of a counter set.
type dateRegisters [3]uint16

var (
	consumedDate = dateRegisters{279, 280, 281}
	producedDate = dateRegisters{289, 290, 291}
)

type energyRegisters struct {
	kwh  uint16
	wh   uint16
	date dateRegisters
}

var streamRegisters = map[Stream]energyRegisters{
	ConsumedHouse: {kwh: 282, wh: 283, date: consumedDate},
	ConsumedTank:  {kwh: 286, wh: 287, date: consumedDate},
	ProducedHouse: {kwh: 292, wh: 293, date: producedDate},
	ProducedTank:  {kwh: 296, wh: 297, date: producedDate},
}

var streamNames = map[Stream]string{
	ConsumedHouse: "cons_house",
	ConsumedTank:  "cons_tank",
	ProducedHouse: "prod_house",
	ProducedTank:  "prod_tank",
}

func (s Stream) String() string {
	if name, ok := streamNames[s]; ok {
		return name
	}
	return "unknown"
}

// Limits is the inclusive range accepted for a writable setpoint.
type Limits struct {
	Min, Max float64
}

func (l Limits) Contains(v float64) bool {
	return !math.IsNaN(v) && v >= l.Min && v <= l.Max
}

var targets = map[Target]struct {
	name     string
	quantity Quantity
	limits   Limits
}{
	TankTarget:  {name: "tank", quantity: TankTargetTemp, limits: Limits{Min: 10, Max: 60}},
	HouseTarget: {name: "house", quantity: HouseTargetTemp, limits: Limits{Min: 5, Max: 25}},
}

func (t Target) String() string {
	if def, ok := targets[t]; ok {
		return def.name
	}
	return "unknown"
}

// Limits returns the accepted range of the setpoint.
func (t Target) Limits() Limits {
	return targets[t].limits
}

// ParseTarget maps "tank" or "house" to a Target.
func ParseTarget(name string) (Target, error) {
	for t, def := range targets {
		if strings.EqualFold(def.name, name) {
			return t, nil
		}
	}
	return 0, errors.New().WithMessage(ErrInvalidTarget, "unknown target "+name)
}
