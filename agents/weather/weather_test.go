package weather

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeatherReturnsObservationByCity(t *testing.T) {
	a := New(DefaultObservations())
	out, err := a.Call(context.Background(), map[string]any{"city": "London"})
	require.NoError(t, err)

	data := out.(map[string]any)
	assert.Equal(t, true, data["found"])
	assert.Equal(t, "London, UK", data["city"])
}

func TestWeatherExtractsCityFromQuery(t *testing.T) {
	a := New(DefaultObservations())
	out, err := a.Call(context.Background(), map[string]any{"query": "current weather of London, UK and add the digits 5,8"})
	require.NoError(t, err)

	data := out.(map[string]any)
	assert.Equal(t, true, data["found"])
	assert.Contains(t, data["city"], "London")
}

func TestWeatherUnknownCityIsNotAnError(t *testing.T) {
	a := New(DefaultObservations())
	out, err := a.Call(context.Background(), map[string]any{"city": "Atlantis"})
	require.NoError(t, err)

	data := out.(map[string]any)
	assert.Equal(t, false, data["found"])
}
