package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"city_router/pkg/graph"
)

func dutchCities() []graph.CityRecord {
	return []graph.CityRecord{
		{ID: 1, Name: "Amsterdam", Lat: 52.3676, Lon: 4.9041},
		{ID: 2, Name: "Rotterdam", Lat: 51.9244, Lon: 4.4777},
		{ID: 3, Name: "Utrecht", Lat: 52.0907, Lon: 5.1214},
		{ID: 4, Name: "Groningen", Lat: 53.2194, Lon: 6.5665},
	}
}

func TestSnapperNearest(t *testing.T) {
	s := NewSnapper(dutchCities())

	tests := []struct {
		name     string
		lat, lng float64
		want     int64
	}{
		{name: "Schiphol", lat: 52.3105, lng: 4.7683, want: 1},
		{name: "Gouda", lat: 52.0116, lng: 4.7105, want: 2},
		{name: "Amersfoort", lat: 52.1561, lng: 5.3878, want: 3},
		{name: "exact match", lat: 53.2194, lng: 6.5665, want: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := s.Nearest(tt.lat, tt.lng)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.City.ID)
			assert.LessOrEqual(t, res.Dist, MaxSnapDistMeters)
		})
	}
}

func TestSnapperTooFar(t *testing.T) {
	s := NewSnapper(dutchCities())

	_, err := s.Nearest(48.8566, 2.3522) // Paris
	assert.ErrorIs(t, err, ErrPointTooFar)

	_, err = NewSnapper(nil).Nearest(52.37, 4.90)
	assert.ErrorIs(t, err, ErrPointTooFar)
}

func TestSnapperTieBreaksOnID(t *testing.T) {
	s := NewSnapper([]graph.CityRecord{
		{ID: 9, Lat: 10, Lon: 10},
		{ID: 3, Lat: 10, Lon: 10},
	})
	res, err := s.Nearest(10, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.City.ID)
	assert.Zero(t, res.Dist)
}

func TestSnapperSkipsCitiesWithoutCoordinates(t *testing.T) {
	s := NewSnapper([]graph.CityRecord{
		{ID: 1, Name: "unplaced"},
		{ID: 2, Name: "Null Island buoy", Lat: 0.05, Lon: 0.05},
	})

	res, err := s.Nearest(0.001, 0.001)
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.City.ID)

	_, err = NewSnapper([]graph.CityRecord{{ID: 1, Name: "unplaced"}}).Nearest(0, 0)
	assert.ErrorIs(t, err, ErrPointTooFar)
}
