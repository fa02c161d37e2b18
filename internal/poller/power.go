package poller

import "codeberg.org/mutker/ecodanctl/internal/ecodan"

const (
	// specific heat capacity of water, kJ/(kg·K); one litre is taken as 1 kg
	specificHeatWater = 4.2
	UnitWatt          = "W"
)

// ThermalPower derives the heat delivered by the water circuit from flow
// (l/min) and the supply/return temperatures. Without flow there is no
// meaningful value, so ok is false rather than a zero reading.
func ThermalPower(flow, supply, ret ecodan.Measurement) (ecodan.Measurement, bool) {
	if flow.Value <= 0 {
		return ecodan.Measurement{}, false
	}

	dt := supply.Value - ret.Value
	litresPerSecond := flow.Value / 60

	return ecodan.Measurement{
		Value: dt * litresPerSecond * specificHeatWater * 1000,
		Unit:  UnitWatt,
	}, true
}
