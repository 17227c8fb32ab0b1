package places

import (
	"context"
	"fmt"
	"math"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/phraser/location-server/internal/models"
	"github.com/phraser/location-server/internal/utils"
)

const earthRadiusMeters = 6371000

// lookupCacheTTL bounds how long an external lookup result is memoized
// for a coordinate bucket. Custom locations are never cached.
const lookupCacheTTL = 15 * time.Second

// Resolver decides whether a coordinate is inside a known place. Custom
// locations are checked first; the external searcher only runs when none
// of them is within the detection radius.
type Resolver struct {
	custom   []models.CustomLocation
	radius   int
	searcher Searcher
	memo     *gocache.Cache
	log      *logrus.Logger
}

func NewResolver(custom []models.CustomLocation, radiusMeters int, searcher Searcher, log *logrus.Logger) *Resolver {
	return &Resolver{
		custom:   custom,
		radius:   radiusMeters,
		searcher: searcher,
		memo:     gocache.New(lookupCacheTTL, 2*lookupCacheTTL),
		log:      log,
	}
}

// Resolve returns the nearest place within the detection radius, or
// (nil, nil) when the point is not in any place.
func (r *Resolver) Resolve(ctx context.Context, lat, lng float64) (*models.Place, error) {
	const op = "Resolver.Resolve"

	if !isFinite(lat) || !isFinite(lng) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "latitude and longitude must be finite numbers", nil)
	}

	if p := r.nearestCustom(lat, lng); p != nil {
		return p, nil
	}

	key := bucketKey(lat, lng)
	if cached, ok := r.memo.Get(key); ok {
		if p, ok := cached.(*models.Place); ok {
			return clonePlace(p), nil
		}
	}

	p, err := r.searcher.Nearest(ctx, lat, lng, r.radius)
	if err != nil {
		return nil, err
	}

	r.memo.SetDefault(key, p)
	if p != nil {
		r.log.WithFields(logrus.Fields{
			"place":    p.Name,
			"distance": p.DistanceMeters,
		}).Debug("place resolved via external lookup")
	}
	return clonePlace(p), nil
}

// nearestCustom selects the closest in-radius custom location, preferring
// smaller distance on ties among custom entries.
func (r *Resolver) nearestCustom(lat, lng float64) *models.Place {
	var best *models.Place
	for _, loc := range r.custom {
		d := int(math.Round(Haversine(lat, lng, loc.Coordinates.Latitude, loc.Coordinates.Longitude)))
		if d > r.radius {
			continue
		}
		if best == nil || d < best.DistanceMeters {
			best = &models.Place{
				Name:             loc.Name,
				Category:         loc.Category,
				DistanceMeters:   d,
				Address:          loc.Address,
				IsCustomLocation: true,
			}
		}
	}
	return best
}

// Haversine returns the great-circle distance in meters between two
// WGS84 points.
func Haversine(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

// bucketKey rounds coordinates to 5 decimal places (~1m) so rapid-fire
// pings from a stationary client share one memoized lookup.
func bucketKey(lat, lng float64) string {
	return fmt.Sprintf("%.5f,%.5f", lat, lng)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func clonePlace(p *models.Place) *models.Place {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
