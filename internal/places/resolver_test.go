package places

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phraser/location-server/internal/logger"
	"github.com/phraser/location-server/internal/models"
	"github.com/phraser/location-server/internal/utils"
)

type fakeSearcher struct {
	place *models.Place
	err   error
	calls int
}

func (f *fakeSearcher) Nearest(_ context.Context, _, _ float64, _ int) (*models.Place, error) {
	f.calls++
	return f.place, f.err
}

var testLocations = []models.CustomLocation{
	{
		Name:        "Dorm 16",
		Category:    "School > Dormitory",
		Address:     "77 Cheongam-ro",
		Coordinates: models.Coordinates{Latitude: 36.017140, Longitude: 129.322108},
	},
	{
		Name:        "Dorm 13",
		Category:    "School > Dormitory",
		Address:     "77 Cheongam-ro B",
		Coordinates: models.Coordinates{Latitude: 36.016900, Longitude: 129.322720},
	},
}

func TestHaversineKnownDistance(t *testing.T) {
	// Seoul City Hall to Gangnam Station, roughly 8.6km.
	d := Haversine(37.5663, 126.9779, 37.4979, 127.0276)
	assert.InDelta(t, 8660, d, 300)

	assert.Equal(t, 0.0, Haversine(36.0, 129.0, 36.0, 129.0))
}

func TestResolveCustomLocationWithinRadius(t *testing.T) {
	fs := &fakeSearcher{}
	r := NewResolver(testLocations, 40, fs, logger.New())

	p, err := r.Resolve(context.Background(), 36.017140, 129.322108)
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.Equal(t, "Dorm 16", p.Name)
	assert.True(t, p.IsCustomLocation)
	assert.LessOrEqual(t, p.DistanceMeters, 40)
	assert.Zero(t, fs.calls, "external lookup must not run when a custom location matches")
}

func TestResolvePrefersNearestCustomLocation(t *testing.T) {
	fs := &fakeSearcher{}
	// 200m radius so both dorms qualify; the point sits nearly on Dorm 13.
	r := NewResolver(testLocations, 200, fs, logger.New())

	p, err := r.Resolve(context.Background(), 36.016901, 129.322721)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Dorm 13", p.Name)
}

func TestResolveDelegatesToSearcher(t *testing.T) {
	fs := &fakeSearcher{place: &models.Place{
		Name: "Cafe XYZ", Category: "카페", DistanceMeters: 12, Address: "Jigok-ro 1",
	}}
	r := NewResolver(testLocations, 40, fs, logger.New())

	// Far from every custom location.
	p, err := r.Resolve(context.Background(), 37.5663, 126.9779)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Cafe XYZ", p.Name)
	assert.False(t, p.IsCustomLocation)
	assert.Equal(t, 1, fs.calls)
}

func TestResolveNotInAnyPlace(t *testing.T) {
	fs := &fakeSearcher{}
	r := NewResolver(testLocations, 40, fs, logger.New())

	p, err := r.Resolve(context.Background(), 37.5663, 126.9779)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestResolveMemoizesExternalLookup(t *testing.T) {
	fs := &fakeSearcher{place: &models.Place{Name: "Cafe XYZ", DistanceMeters: 12}}
	r := NewResolver(nil, 40, fs, logger.New())

	for i := 0; i < 3; i++ {
		p, err := r.Resolve(context.Background(), 37.566300, 126.977900)
		require.NoError(t, err)
		require.NotNil(t, p)
	}
	assert.Equal(t, 1, fs.calls, "identical coordinates inside the TTL share one lookup")
}

func TestResolveSearcherErrorPropagates(t *testing.T) {
	fs := &fakeSearcher{err: utils.E(utils.CodeUnavailable, "test", "boom", nil)}
	r := NewResolver(nil, 40, fs, logger.New())

	_, err := r.Resolve(context.Background(), 37.5663, 126.9779)
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
}

func TestResolveRejectsNonFiniteCoordinates(t *testing.T) {
	r := NewResolver(nil, 40, &fakeSearcher{}, logger.New())

	for _, bad := range [][2]float64{
		{math.NaN(), 129.0},
		{36.0, math.Inf(1)},
		{math.Inf(-1), math.Inf(1)},
	} {
		_, err := r.Resolve(context.Background(), bad[0], bad[1])
		require.Error(t, err)
		assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	}
}
