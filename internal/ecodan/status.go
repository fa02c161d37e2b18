package ecodan

// UnknownStatus is the description of any code missing from a table.
const UnknownStatus = "Unknown"

var statusTables = map[StatusKind]map[int]string{
	OperatingMode: {
		0:  "Stop",
		1:  "Hot water",
		2:  "Heating",
		3:  "Cooling",
		4:  "No voltage contact input (hot water storage)",
		5:  "Freeze stat",
		6:  "Legionella",
		7:  "Heating eco",
		8:  "Mode 1",
		9:  "Mode 2",
		10: "Mode 3",
		11: "No voltage contact input (heating up)",
	},
	HeatSource: {
		0: "Heatpump",
		1: "Immersion heater",
		2: "Backup heater",
		3: "Immersion and backup heater",
		4: "Boiler",
	},
	DefrostStatus: {
		0: "Normal",
		1: "Standby",
		2: "Defrost",
		3: "Waiting restart",
	},
	DHWEnabled: {
		0: "Enabled",
		1: "Disabled",
	},
}

var statusNames = map[StatusKind]string{
	OperatingMode: "operating_mode",
	HeatSource:    "heat_source",
	DefrostStatus: "defrost_status",
	DHWEnabled:    "dhw_enabled",
}

func (k StatusKind) String() string {
	if name, ok := statusNames[k]; ok {
		return name
	}
	return "unknown"
}

// Describe resolves a status code. It is total: codes without an entry
// describe as UnknownStatus.
func Describe(k StatusKind, code int) string {
	if desc, ok := statusTables[k][code]; ok {
		return desc
	}
	return UnknownStatus
}
