package energy_test

import (
	"encoding/json"
	"testing"
	"time"

	"codeberg.org/mutker/ecodanctl/internal/energy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDateRejectsNormalizedValues(t *testing.T) {
	_, err := energy.NewDate(2023, time.February, 30)
	assert.Error(t, err)

	_, err = energy.NewDate(2023, 13, 1)
	assert.Error(t, err)

	d, err := energy.NewDate(2024, time.February, 29)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", d.String())
}

func TestParseDateRoundTrip(t *testing.T) {
	d, err := energy.ParseDate("2023-09-01")
	require.NoError(t, err)
	assert.Equal(t, energy.Date{Year: 2023, Month: time.September, Day: 1}, d)

	_, err = energy.ParseDate("01/09/2023")
	assert.Error(t, err)
}

func TestCompare(t *testing.T) {
	a := energy.Date{Year: 2023, Month: time.December, Day: 31}
	b := energy.Date{Year: 2024, Month: time.January, Day: 1}

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, 0, a.Compare(a))
}

func TestAtUsesClockTimeOfDay(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	clock := time.Date(2023, 9, 2, 0, 0, 30, 0, loc)
	d := energy.Date{Year: 2023, Month: time.September, Day: 1}

	got := d.At(clock)
	assert.Equal(t, time.Date(2023, 9, 1, 0, 0, 30, 0, loc), got)
}

func TestDateJSON(t *testing.T) {
	in := struct {
		Date energy.Date `json:"date"`
	}{Date: energy.Date{Year: 2023, Month: time.September, Day: 1}}

	b, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"date":"2023-09-01"}`, string(b))

	out := in
	out.Date = energy.Date{}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Equal(t, in, out)
}
