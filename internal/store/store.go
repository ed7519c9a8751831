package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/awaistahir/energy-life/internal/engine"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested record does not exist
var ErrNotFound = errors.New("not found")

// DefaultHouseholdID is the single household the CLI and server operate on
const DefaultHouseholdID = "default"

const (
	dayLayout = "2006-01-02"
	// fixed width so stored timestamps sort as text
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Store handles persistent storage using SQLite
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// EstimateRecord is one persisted daily estimate
type EstimateRecord struct {
	ID          string                `json:"id"`
	HouseholdID string                `json:"householdId"`
	Day         string                `json:"day"`
	KWhTotal    float64               `json:"kwh_total"`
	KWhNet      float64               `json:"kwh_net"`
	KWhOn       float64               `json:"kwh_on"`
	KWhOff      float64               `json:"kwh_off"`
	CostToday   decimal.Decimal       `json:"cost_today"`
	Recommended engine.Recommendation `json:"recommended_tariff"`
	Result      *engine.DailyResult   `json:"result"`
	CreatedAt   time.Time             `json:"createdAt"`
}

// NewStore creates a new store and initializes the database
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// one writer keeps SQLite free of lock errors
	db.SetMaxOpenConns(1)

	store := &Store{db: db, now: time.Now}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// initialize creates the schema and seeds missing tariff settings
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS households (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		profile_json TEXT NOT NULL,
		state_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS energy_daily (
		id TEXT PRIMARY KEY,
		household_id TEXT NOT NULL,
		day TEXT NOT NULL,
		kwh_total REAL NOT NULL,
		kwh_net REAL NOT NULL,
		kwh_on REAL NOT NULL,
		kwh_off REAL NOT NULL,
		cost_today TEXT NOT NULL,
		recommended TEXT NOT NULL,
		result_json TEXT NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (household_id) REFERENCES households(id)
	);

	CREATE INDEX IF NOT EXISTS idx_energy_daily_household ON energy_daily(household_id, day);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for k, v := range engine.DefaultTariffSettings().Map() {
		if _, err := s.db.Exec(`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("seeding setting %s: %w", k, err)
		}
	}
	return nil
}

// SaveHousehold saves or updates a household and stamps UpdatedAt
func (s *Store) SaveHousehold(h *engine.Household) error {
	profileJSON, err := json.Marshal(h.Profile)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	stateJSON, err := json.Marshal(h.State)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	h.UpdatedAt = s.now().UTC()
	query := `INSERT OR REPLACE INTO households (id, name, profile_json, state_json, updated_at)
		VALUES (?, ?, ?, ?, ?)`

	_, err = s.db.Exec(query, h.ID, h.Name, string(profileJSON), string(stateJSON), h.UpdatedAt.Format(timeLayout))
	return err
}

// GetHousehold retrieves a household by ID
func (s *Store) GetHousehold(id string) (*engine.Household, error) {
	query := `SELECT id, name, profile_json, state_json, updated_at FROM households WHERE id = ?`

	var h engine.Household
	var profileJSON, stateJSON, updatedAt string

	err := s.db.QueryRow(query, id).Scan(&h.ID, &h.Name, &profileJSON, &stateJSON, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("household %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	// stored state is decoded leniently; a damaged blob falls back to defaults
	h.Profile = engine.DefaultProfile()
	if err := json.Unmarshal([]byte(profileJSON), &h.Profile); err != nil {
		h.Profile = engine.DefaultProfile()
	}
	if err := json.Unmarshal([]byte(stateJSON), &h.State); err != nil {
		h.State = engine.DefaultState()
	}
	h.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)

	return &h, nil
}

// EnsureHousehold returns the household, creating it with defaults first when
// it does not exist yet.
func (s *Store) EnsureHousehold(id string) (*engine.Household, error) {
	h, err := s.GetHousehold(id)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	h = &engine.Household{
		ID:      id,
		Name:    "My Household",
		Profile: engine.DefaultProfile(),
		State:   engine.DefaultState(),
	}
	if err := s.SaveHousehold(h); err != nil {
		return nil, err
	}
	return h, nil
}

// GetTariffSettings reads the tariff settings; malformed values keep defaults
func (s *Store) GetTariffSettings() (engine.TariffSettings, error) {
	rows, err := s.db.Query(`SELECT key, value FROM settings`)
	if err != nil {
		return engine.TariffSettings{}, err
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return engine.TariffSettings{}, err
		}
		m[k] = v
	}
	if err := rows.Err(); err != nil {
		return engine.TariffSettings{}, err
	}

	return engine.TariffSettingsFromMap(m), nil
}

// SaveTariffSettings validates and stores every tariff setting in one transaction
func (s *Store) SaveTariffSettings(t engine.TariffSettings) error {
	if err := t.Validate(); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for k, v := range t.Map() {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO settings (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("saving setting %s: %w", k, err)
		}
	}
	return tx.Commit()
}

// SaveEstimate appends a result to the household's estimate history
func (s *Store) SaveEstimate(householdID string, day time.Time, r *engine.DailyResult) (*EstimateRecord, error) {
	resultJSON, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}

	rec := &EstimateRecord{
		ID:          uuid.NewString(),
		HouseholdID: householdID,
		Day:         day.Format(dayLayout),
		KWhTotal:    r.KWhTotal,
		KWhNet:      r.KWhNet,
		KWhOn:       r.KWhOn,
		KWhOff:      r.KWhOff,
		CostToday:   r.CostToday,
		Recommended: r.RecommendedTariff,
		Result:      r,
		CreatedAt:   s.now().UTC(),
	}

	query := `INSERT INTO energy_daily
		(id, household_id, day, kwh_total, kwh_net, kwh_on, kwh_off, cost_today, recommended, result_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.Exec(query, rec.ID, rec.HouseholdID, rec.Day, rec.KWhTotal, rec.KWhNet, rec.KWhOn, rec.KWhOff,
		rec.CostToday.String(), string(rec.Recommended), string(resultJSON), rec.CreatedAt.Format(timeLayout))
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListEstimates returns up to limit estimates for a household, newest first
func (s *Store) ListEstimates(householdID string, limit int) ([]*EstimateRecord, error) {
	if limit <= 0 {
		limit = 30
	}
	query := `SELECT id, household_id, day, kwh_total, kwh_net, kwh_on, kwh_off, cost_today, recommended, result_json, created_at
		FROM energy_daily WHERE household_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?`

	rows, err := s.db.Query(query, householdID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []*EstimateRecord{}
	for rows.Next() {
		var rec EstimateRecord
		var cost, recommended, resultJSON, createdAt string

		err := rows.Scan(&rec.ID, &rec.HouseholdID, &rec.Day, &rec.KWhTotal, &rec.KWhNet, &rec.KWhOn, &rec.KWhOff,
			&cost, &recommended, &resultJSON, &createdAt)
		if err != nil {
			return nil, err
		}

		rec.CostToday, _ = decimal.NewFromString(cost)
		rec.Recommended = engine.Recommendation(recommended)
		rec.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		var result engine.DailyResult
		if err := json.Unmarshal([]byte(resultJSON), &result); err == nil {
			rec.Result = &result
		}

		records = append(records, &rec)
	}

	return records, rows.Err()
}
