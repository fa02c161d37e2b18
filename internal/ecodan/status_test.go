package ecodan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribeIsTotal(t *testing.T) {
	for _, k := range StatusKinds {
		assert.Equal(t, UnknownStatus, Describe(k, -1), k.String())
		assert.Equal(t, UnknownStatus, Describe(k, 1000), k.String())
	}
	assert.Equal(t, UnknownStatus, Describe(StatusKind(99), 0))

	assert.Equal(t, "No voltage contact input (heating up)", Describe(OperatingMode, 11))
	assert.Equal(t, "Boiler", Describe(HeatSource, 4))
	assert.Equal(t, "Waiting restart", Describe(DefrostStatus, 3))
	assert.Equal(t, "Disabled", Describe(DHWEnabled, 1))
}

func TestRegisterEncodeRoundTrip(t *testing.T) {
	reg := register{addr: 99, decimals: 1, signed: true}
	assert.InDelta(t, -12.3, reg.decode(reg.encode(-12.3)), 1e-9)

	reg = register{addr: 31, decimals: 2}
	assert.Equal(t, uint16(2150), reg.encode(21.5))
}
