package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/halverson/satcom-planner/internal/mission"
	"github.com/halverson/satcom-planner/internal/route"
	"github.com/halverson/satcom-planner/pkg/logger"
	_ "modernc.org/sqlite"
)

// Store is the SQLite-backed mission store: missions, routes, POIs and
// persisted timelines.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewStore opens (creating if needed) the planner database.
func NewStore(dbPath string, log *logger.Logger) (*Store, error) {
	storeLogger := log.Named("sqlite")

	storeLogger.Info("Initializing SQLite storage",
		logger.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA cache_size=10000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := initDatabase(db, storeLogger); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, logger: storeLogger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// initDatabase initializes the database schema
func initDatabase(db *sql.DB, log *logger.Logger) error {
	log.Info("Initializing database schema")

	stmts := []struct {
		name string
		sql  string
	}{
		{"missions", `
			CREATE TABLE IF NOT EXISTS missions (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				route_id TEXT,
				config TEXT NOT NULL,      -- mission config JSON (transitions, outages, refuel windows)
				active INTEGER DEFAULT 0,
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)
		`},
		{"routes", `
			CREATE TABLE IF NOT EXISTS routes (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				timing TEXT,               -- timing profile JSON
				waypoints TEXT,            -- waypoint list JSON
				created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
			)
		`},
		{"route_points", `
			CREATE TABLE IF NOT EXISTS route_points (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				route_id TEXT NOT NULL,
				seq INTEGER NOT NULL,
				lat REAL NOT NULL,
				lon REAL NOT NULL,
				altitude_ft REAL,
				arrival_time TIMESTAMP,
				planned_speed_kts REAL,
				FOREIGN KEY (route_id) REFERENCES routes(id) ON DELETE CASCADE,
				UNIQUE(route_id, seq)
			)
		`},
		{"pois", `
			CREATE TABLE IF NOT EXISTS pois (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				lat REAL NOT NULL,
				lon REAL NOT NULL,
				route_id TEXT,
				projection TEXT            -- precomputed route projection JSON
			)
		`},
		{"timelines", `
			CREATE TABLE IF NOT EXISTS timelines (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				mission_id TEXT NOT NULL,
				window_start TIMESTAMP NOT NULL,
				window_end TIMESTAMP NOT NULL,
				segments TEXT NOT NULL,    -- segment list JSON
				events TEXT NOT NULL,      -- event list JSON
				advisories TEXT,
				stats TEXT,
				built_at TIMESTAMP NOT NULL,
				FOREIGN KEY (mission_id) REFERENCES missions(id) ON DELETE CASCADE
			)
		`},
		{"timelines_mission_idx", `
			CREATE INDEX IF NOT EXISTS idx_timelines_mission ON timelines(mission_id, built_at)
		`},
	}
	for _, st := range stmts {
		if _, err := db.Exec(st.sql); err != nil {
			return fmt.Errorf("failed to create %s: %w", st.name, err)
		}
	}
	return nil
}

// MissionRecord is a stored mission row.
type MissionRecord struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	RouteID   string          `json:"route_id,omitempty"`
	Config    *mission.Config `json:"config"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// SaveMission inserts or replaces a mission row.
func (s *Store) SaveMission(rec *MissionRecord) error {
	cfgJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal mission config: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(`
		INSERT INTO missions (id, name, route_id, config, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			route_id = excluded.route_id,
			config = excluded.config,
			active = excluded.active,
			updated_at = excluded.updated_at
	`, rec.ID, rec.Name, rec.RouteID, string(cfgJSON), boolToInt(rec.Active), now, now)
	if err != nil {
		return fmt.Errorf("failed to save mission %s: %w", rec.ID, err)
	}
	return nil
}

// GetMission returns a mission by id, or nil when absent.
func (s *Store) GetMission(id string) (*MissionRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, name, route_id, config, active, created_at, updated_at
		FROM missions WHERE id = ?
	`, id)
	return scanMission(row)
}

// GetActiveMission returns the currently active mission, or nil when none.
func (s *Store) GetActiveMission() (*MissionRecord, error) {
	row := s.db.QueryRow(`
		SELECT id, name, route_id, config, active, created_at, updated_at
		FROM missions WHERE active = 1 ORDER BY updated_at DESC LIMIT 1
	`)
	return scanMission(row)
}

// SetActiveMission marks one mission active and all others inactive.
func (s *Store) SetActiveMission(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE missions SET active = 0 WHERE active = 1`); err != nil {
		return fmt.Errorf("failed to clear active mission: %w", err)
	}
	res, err := tx.Exec(`UPDATE missions SET active = 1, updated_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to activate mission %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("mission not found: %s", id)
	}
	return tx.Commit()
}

// ListMissions returns all stored missions, newest first.
func (s *Store) ListMissions() ([]*MissionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, name, route_id, config, active, created_at, updated_at
		FROM missions ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list missions: %w", err)
	}
	defer rows.Close()

	var records []*MissionRecord
	for rows.Next() {
		rec, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMission(row rowScanner) (*MissionRecord, error) {
	var rec MissionRecord
	var routeID sql.NullString
	var cfgJSON string
	var active int
	err := row.Scan(&rec.ID, &rec.Name, &routeID, &cfgJSON, &active, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan mission: %w", err)
	}
	rec.RouteID = routeID.String
	rec.Active = active != 0
	if err := json.Unmarshal([]byte(cfgJSON), &rec.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal mission config: %w", err)
	}
	return &rec, nil
}

// SaveRoute stores a route and its points in one transaction, replacing any
// previous version.
func (s *Store) SaveRoute(r *route.Route) error {
	timingJSON, err := json.Marshal(r.Timing)
	if err != nil {
		return fmt.Errorf("failed to marshal timing profile: %w", err)
	}
	waypointsJSON, err := json.Marshal(r.Waypoints)
	if err != nil {
		return fmt.Errorf("failed to marshal waypoints: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO routes (id, name, timing, waypoints)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			timing = excluded.timing,
			waypoints = excluded.waypoints
	`, r.ID, r.Name, string(timingJSON), string(waypointsJSON)); err != nil {
		return fmt.Errorf("failed to save route %s: %w", r.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM route_points WHERE route_id = ?`, r.ID); err != nil {
		return fmt.Errorf("failed to clear route points: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT INTO route_points (route_id, seq, lat, lon, altitude_ft, arrival_time, planned_speed_kts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare point insert: %w", err)
	}
	defer stmt.Close()
	for _, p := range r.Points {
		var arrival interface{}
		if p.ArrivalTime != nil {
			arrival = p.ArrivalTime.UTC()
		}
		var speed interface{}
		if p.PlannedSpeedKts != nil {
			speed = *p.PlannedSpeedKts
		}
		if _, err := stmt.Exec(r.ID, p.Sequence, p.Lat, p.Lon, p.AltitudeFt, arrival, speed); err != nil {
			return fmt.Errorf("failed to insert route point %d: %w", p.Sequence, err)
		}
	}

	return tx.Commit()
}

// GetRoute loads a route and its ordered points, or nil when absent.
func (s *Store) GetRoute(id string) (*route.Route, error) {
	var r route.Route
	var timingJSON, waypointsJSON sql.NullString
	err := s.db.QueryRow(`
		SELECT id, name, timing, waypoints FROM routes WHERE id = ?
	`, id).Scan(&r.ID, &r.Name, &timingJSON, &waypointsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load route %s: %w", id, err)
	}
	if timingJSON.Valid && timingJSON.String != "" {
		if err := json.Unmarshal([]byte(timingJSON.String), &r.Timing); err != nil {
			return nil, fmt.Errorf("failed to unmarshal timing profile: %w", err)
		}
	}
	if waypointsJSON.Valid && waypointsJSON.String != "" {
		if err := json.Unmarshal([]byte(waypointsJSON.String), &r.Waypoints); err != nil {
			return nil, fmt.Errorf("failed to unmarshal waypoints: %w", err)
		}
	}

	rows, err := s.db.Query(`
		SELECT seq, lat, lon, altitude_ft, arrival_time, planned_speed_kts
		FROM route_points WHERE route_id = ? ORDER BY seq
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load route points: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p route.RoutePoint
		var arrival sql.NullTime
		var speed sql.NullFloat64
		if err := rows.Scan(&p.Sequence, &p.Lat, &p.Lon, &p.AltitudeFt, &arrival, &speed); err != nil {
			return nil, fmt.Errorf("failed to scan route point: %w", err)
		}
		if arrival.Valid {
			t := arrival.Time
			p.ArrivalTime = &t
		}
		if speed.Valid {
			v := speed.Float64
			p.PlannedSpeedKts = &v
		}
		r.Points = append(r.Points, p)
	}
	return &r, rows.Err()
}

// SavePOI inserts or replaces a point of interest.
func (s *Store) SavePOI(p *route.POI) error {
	var projJSON interface{}
	if p.Projection != nil {
		b, err := json.Marshal(p.Projection)
		if err != nil {
			return fmt.Errorf("failed to marshal projection: %w", err)
		}
		projJSON = string(b)
	}
	_, err := s.db.Exec(`
		INSERT INTO pois (id, name, lat, lon, route_id, projection)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			lat = excluded.lat,
			lon = excluded.lon,
			route_id = excluded.route_id,
			projection = excluded.projection
	`, p.ID, p.Name, p.Lat, p.Lon, p.RouteID, projJSON)
	if err != nil {
		return fmt.Errorf("failed to save POI %s: %w", p.ID, err)
	}
	return nil
}

// ListPOIs returns the POIs attached to a route (all POIs when routeID is
// empty).
func (s *Store) ListPOIs(routeID string) ([]route.POI, error) {
	query := `SELECT id, name, lat, lon, route_id, projection FROM pois`
	args := []interface{}{}
	if routeID != "" {
		query += ` WHERE route_id = ?`
		args = append(args, routeID)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list POIs: %w", err)
	}
	defer rows.Close()

	var pois []route.POI
	for rows.Next() {
		var p route.POI
		var rid, projJSON sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.Lat, &p.Lon, &rid, &projJSON); err != nil {
			return nil, fmt.Errorf("failed to scan POI: %w", err)
		}
		p.RouteID = rid.String
		if projJSON.Valid && projJSON.String != "" {
			if err := json.Unmarshal([]byte(projJSON.String), &p.Projection); err != nil {
				return nil, fmt.Errorf("failed to unmarshal projection: %w", err)
			}
		}
		pois = append(pois, p)
	}
	return pois, rows.Err()
}

// SaveTimeline persists a completed timeline build in one transaction.
// Callers must only pass fully built timelines; partial builds never reach
// the database.
func (s *Store) SaveTimeline(t *mission.Timeline) error {
	segments, err := json.Marshal(t.Segments)
	if err != nil {
		return fmt.Errorf("failed to marshal segments: %w", err)
	}
	events, err := json.Marshal(t.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}
	advisories, err := json.Marshal(t.Advisories)
	if err != nil {
		return fmt.Errorf("failed to marshal advisories: %w", err)
	}
	stats, err := json.Marshal(t.Stats)
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO timelines (mission_id, window_start, window_end, segments, events, advisories, stats, built_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.MissionID, t.Start, t.End, string(segments), string(events), string(advisories), string(stats), t.BuiltAt); err != nil {
		return fmt.Errorf("failed to save timeline for %s: %w", t.MissionID, err)
	}
	return tx.Commit()
}

// LatestTimeline returns the most recent stored timeline for a mission, or
// nil when none exists.
func (s *Store) LatestTimeline(missionID string) (*mission.Timeline, error) {
	var t mission.Timeline
	var segments, events string
	var advisories, stats sql.NullString
	err := s.db.QueryRow(`
		SELECT mission_id, window_start, window_end, segments, events, advisories, stats, built_at
		FROM timelines WHERE mission_id = ? ORDER BY built_at DESC, id DESC LIMIT 1
	`, missionID).Scan(&t.MissionID, &t.Start, &t.End, &segments, &events, &advisories, &stats, &t.BuiltAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load timeline for %s: %w", missionID, err)
	}
	if err := json.Unmarshal([]byte(segments), &t.Segments); err != nil {
		return nil, fmt.Errorf("failed to unmarshal segments: %w", err)
	}
	if err := json.Unmarshal([]byte(events), &t.Events); err != nil {
		return nil, fmt.Errorf("failed to unmarshal events: %w", err)
	}
	if advisories.Valid && advisories.String != "" {
		if err := json.Unmarshal([]byte(advisories.String), &t.Advisories); err != nil {
			return nil, fmt.Errorf("failed to unmarshal advisories: %w", err)
		}
	}
	if stats.Valid && stats.String != "" {
		if err := json.Unmarshal([]byte(stats.String), &t.Stats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
		}
	}
	return &t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
