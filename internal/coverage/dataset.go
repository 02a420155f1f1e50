package coverage

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/halverson/satcom-planner/pkg/logger"
)

// DataError indicates a malformed coverage dataset. It is recorded and the
// dataset degrades to "no coverage" rather than failing the process.
type DataError struct {
	Path string
	Err  error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("coverage dataset %s: %v", e.Path, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// Dataset holds the coverage footprints for a constellation. The underlying
// polygon data is loaded once, lazily, and never mutated afterwards, so
// concurrent reads need no locking.
type Dataset struct {
	path   string
	logger *logger.Logger

	once       sync.Once
	footprints []Footprint
	loadErr    error
}

// NewDataset creates a dataset backed by a GeoJSON file. Nothing is read
// until the first lookup.
func NewDataset(path string, log *logger.Logger) *Dataset {
	return &Dataset{
		path:   path,
		logger: log.Named("coverage"),
	}
}

// load parses the GeoJSON file. Called exactly once.
func (d *Dataset) load() {
	data, err := os.ReadFile(d.path)
	if err != nil {
		d.loadErr = &DataError{Path: d.path, Err: err}
		d.logger.Warn("Coverage dataset unavailable, degrading to no coverage",
			logger.String("path", d.path),
			logger.Error(err))
		return
	}

	var file geojsonFile
	if err := json.Unmarshal(data, &file); err != nil {
		d.loadErr = &DataError{Path: d.path, Err: err}
		d.logger.Warn("Coverage dataset malformed, degrading to no coverage",
			logger.String("path", d.path),
			logger.Error(err))
		return
	}

	byID := make(map[string][]Ring)
	for i, feature := range file.Features {
		satID, _ := feature.Properties["satellite_id"].(string)
		if satID == "" {
			d.logger.Warn("Coverage feature missing satellite_id, skipped",
				logger.Int("feature", i))
			continue
		}

		rings, err := parseRings(feature.Geometry)
		if err != nil {
			d.logger.Warn("Coverage feature has unusable geometry, skipped",
				logger.Int("feature", i),
				logger.String("satellite_id", satID),
				logger.Error(err))
			continue
		}
		byID[satID] = append(byID[satID], rings...)
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		d.footprints = append(d.footprints, Footprint{SatelliteID: id, Rings: byID[id]})
	}

	d.logger.Info("Coverage dataset loaded",
		logger.String("path", d.path),
		logger.Int("satellites", len(d.footprints)))
}

// parseRings flattens a Polygon or MultiPolygon geometry into rings. Holes
// are not modeled; every ring counts as coverage area.
func parseRings(geom geojsonGeometry) ([]Ring, error) {
	switch geom.Type {
	case "Polygon":
		var coords [][][2]float64
		if err := json.Unmarshal(geom.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("polygon coordinates: %w", err)
		}
		rings := make([]Ring, 0, len(coords))
		for _, ring := range coords {
			rings = append(rings, Ring(ring))
		}
		return rings, nil
	case "MultiPolygon":
		var coords [][][][2]float64
		if err := json.Unmarshal(geom.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("multipolygon coordinates: %w", err)
		}
		var rings []Ring
		for _, poly := range coords {
			for _, ring := range poly {
				rings = append(rings, Ring(ring))
			}
		}
		return rings, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", geom.Type)
	}
}

// Footprints returns the loaded footprints, triggering the lazy load.
func (d *Dataset) Footprints() []Footprint {
	d.once.Do(d.load)
	return d.footprints
}

// LoadError returns the dataset load error, if any. A dataset with a load
// error answers "no coverage" everywhere.
func (d *Dataset) LoadError() error {
	d.once.Do(d.load)
	return d.loadErr
}

// CoveringSatellites returns the ids of every satellite whose footprint
// contains the point, sorted for deterministic comparisons.
func (d *Dataset) CoveringSatellites(lat, lon float64) []string {
	d.once.Do(d.load)

	var covering []string
	for _, fp := range d.footprints {
		for _, ring := range fp.Rings {
			if pointInRing(lat, lon, ring) {
				covering = append(covering, fp.SatelliteID)
				break
			}
		}
	}
	return covering
}

// pointInRing is a standard ray-casting containment test. Ring vertices are
// [lon, lat] pairs.
func pointInRing(lat, lon float64, ring Ring) bool {
	n := len(ring)
	if n < 3 {
		return false
	}

	inside := false
	j := n - 1
	for i := 0; i < n; i++ {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]

		if (yi > lat) != (yj > lat) &&
			lon < (xj-xi)*(lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
		j = i
	}
	return inside
}
