package poller

import "codeberg.org/mutker/ecodanctl/internal/ecodan"

const DefaultPrefix = "ecodan2"

var quantitySuffixes = map[ecodan.Quantity]string{
	ecodan.TankTargetTemp:  "_tank_set_temp",
	ecodan.TankTemp:        "_tank_temp",
	ecodan.HouseTargetTemp: "_house_set_temp",
	ecodan.HouseTemp:       "_house_temp",
	ecodan.OutdoorTemp:     "_outdoor_temp",
	ecodan.PumpFrequency:   "_pump_freq",
	ecodan.Flow:            "_flow",
	ecodan.SupplyTemp:      "_t_flow",
	ecodan.ReturnTemp:      "_t_return",
}

var statusSuffixes = map[ecodan.StatusKind]string{
	ecodan.OperatingMode: "_operating_mode",
	ecodan.HeatSource:    "_heat_source",
	ecodan.DefrostStatus: "_defrost_status",
	ecodan.DHWEnabled:    "_dhw_enabled",
}

var streamSuffixes = map[ecodan.Stream]string{
	ecodan.ConsumedHouse: "_nrg_cons_house",
	ecodan.ConsumedTank:  "_nrg_cons_tank",
	ecodan.ProducedHouse: "_nrg_prod_house",
	ecodan.ProducedTank:  "_nrg_prod_tank",
}

const powerSuffix = "_thermal_output_power"

// Names builds measurement names under a common prefix. Energy stream ids
// are their measurement names, so state recorded under one prefix is not
// seen under another.
type Names struct {
	Prefix string
}

func (n Names) Quantity(q ecodan.Quantity) string { return n.Prefix + quantitySuffixes[q] }
func (n Names) Status(k ecodan.StatusKind) string { return n.Prefix + statusSuffixes[k] }
func (n Names) Stream(s ecodan.Stream) string     { return n.Prefix + streamSuffixes[s] }
func (n Names) Power() string                     { return n.Prefix + powerSuffix }

// Streams returns the names of all energy streams in ecodan.Streams order.
func (n Names) Streams() []string {
	names := make([]string, 0, len(ecodan.Streams))
	for _, s := range ecodan.Streams {
		names = append(names, n.Stream(s))
	}
	return names
}
