package registry

import (
	"database/sql"
	"fmt"
	"time"

	"vqconf/pkg/config"

	_ "github.com/lib/pq"
)

var DebugLog func(string, ...interface{})

// Registry is an optional postgres bookkeeping store of validated run
// configurations. It records what was registered with which
// hyperparameters; it does not track training metrics.
type Registry struct {
	conn    *sql.DB
	enabled bool
}

type ConnSettings struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
}

type RunRecord struct {
	Project         string
	Name            string
	MaxTrainSteps   int
	LearningRate    float64
	Status          string
	FirstRegistered time.Time
	LastRegistered  time.Time
}

const DBName = "vqconf_runs"

func New(cfg ConnSettings) (*Registry, error) {
	r := &Registry{
		enabled: cfg.Enabled,
	}

	if !cfg.Enabled {
		return r, nil
	}

	postgresConnStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=postgres sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password)

	postgresConn, err := sql.Open("postgres", postgresConnStr)
	if err != nil {
		return r, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer postgresConn.Close()

	if err := postgresConn.Ping(); err != nil {
		return r, fmt.Errorf("failed to ping postgres: %w", err)
	}

	var exists bool
	err = postgresConn.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", DBName).Scan(&exists)
	if err != nil {
		return r, fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		_, err = postgresConn.Exec(fmt.Sprintf("CREATE DATABASE %s", DBName))
		if err != nil {
			return r, fmt.Errorf("failed to create database: %w", err)
		}
		if DebugLog != nil {
			DebugLog("database %s created", DBName)
		}
	}

	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, DBName)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return r, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return r, fmt.Errorf("failed to ping database: %w", err)
	}

	r.conn = conn

	if err := r.initSchema(); err != nil {
		return r, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return r, nil
}

func (r *Registry) initSchema() error {
	if !r.enabled || r.conn == nil {
		return nil
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id SERIAL PRIMARY KEY,
		project VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		max_train_steps INTEGER NOT NULL,
		learning_rate DOUBLE PRECISION NOT NULL,
		config TEXT NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'NEW',
		first_registered TIMESTAMP NOT NULL DEFAULT NOW(),
		last_registered TIMESTAMP NOT NULL DEFAULT NOW(),
		UNIQUE(project, name)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	`

	_, err := r.conn.Exec(schema)
	return err
}

func (r *Registry) Close() error {
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *Registry) IsEnabled() bool {
	return r.enabled && r.conn != nil
}

// Register upserts a validated run. A run re-registered under the same
// project and name keeps its first_registered timestamp and moves to
// status UPDATED.
func (r *Registry) Register(cfg *config.Config) error {
	if !r.IsEnabled() {
		return nil
	}

	resolved, err := config.Marshal(cfg)
	if err != nil {
		return err
	}

	tx, err := r.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM runs WHERE project = $1 AND name = $2)
	`, cfg.Experiment.Project, cfg.Experiment.Name).Scan(&exists)
	if err != nil {
		return err
	}

	if exists {
		if DebugLog != nil {
			DebugLog("updating run %s/%s in registry", cfg.Experiment.Project, cfg.Experiment.Name)
		}
		_, err = tx.Exec(`
			UPDATE runs
			SET max_train_steps = $3, learning_rate = $4, config = $5,
			    status = 'UPDATED', last_registered = NOW()
			WHERE project = $1 AND name = $2
		`, cfg.Experiment.Project, cfg.Experiment.Name,
			cfg.Training.MaxTrainSteps, cfg.Optimizer.Params.LearningRate, string(resolved))
	} else {
		if DebugLog != nil {
			DebugLog("registering new run %s/%s", cfg.Experiment.Project, cfg.Experiment.Name)
		}
		_, err = tx.Exec(`
			INSERT INTO runs (project, name, max_train_steps, learning_rate, config, status, first_registered, last_registered)
			VALUES ($1, $2, $3, $4, $5, 'NEW', NOW(), NOW())
		`, cfg.Experiment.Project, cfg.Experiment.Name,
			cfg.Training.MaxTrainSteps, cfg.Optimizer.Params.LearningRate, string(resolved))
	}

	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *Registry) QueryRuns(project string, status string) ([]RunRecord, error) {
	if !r.IsEnabled() {
		return nil, fmt.Errorf("registry is not enabled")
	}

	query := `
		SELECT project, name, max_train_steps, learning_rate, status, first_registered, last_registered
		FROM runs
		WHERE project = $1
	`
	args := []interface{}{project}

	if status != "" {
		query += " AND status = $2"
		args = append(args, status)
	}

	query += " ORDER BY first_registered DESC"

	return r.scanRuns(query, args...)
}

func (r *Registry) QueryAllRuns(status string) ([]RunRecord, error) {
	if !r.IsEnabled() {
		return nil, fmt.Errorf("registry is not enabled")
	}

	query := `
		SELECT project, name, max_train_steps, learning_rate, status, first_registered, last_registered
		FROM runs
	`
	var args []interface{}

	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}

	query += " ORDER BY project, first_registered DESC"

	return r.scanRuns(query, args...)
}

// RunConfig returns the stored resolved document for one run.
func (r *Registry) RunConfig(project, name string) (string, error) {
	if !r.IsEnabled() {
		return "", fmt.Errorf("registry is not enabled")
	}

	var doc string
	err := r.conn.QueryRow(`
		SELECT config FROM runs WHERE project = $1 AND name = $2
	`, project, name).Scan(&doc)
	if err != nil {
		return "", err
	}
	return doc, nil
}

func (r *Registry) scanRuns(query string, args ...interface{}) ([]RunRecord, error) {
	rows, err := r.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		if err := rows.Scan(&rec.Project, &rec.Name, &rec.MaxTrainSteps, &rec.LearningRate,
			&rec.Status, &rec.FirstRegistered, &rec.LastRegistered); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}
