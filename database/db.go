package database

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/jerry-enebeli/runop/config"
)

const connectTimeout = 10 * time.Second

var (
	instance *Datasource
	initErr  error
	once     sync.Once
)

type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection returns the process-wide datasource, connecting on first use.
// A failed first connection is remembered.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	once.Do(func() {
		con, err := ConnectDB(configuration.DataSource.Dns)
		if err != nil {
			initErr = err
			return
		}
		instance = &Datasource{Conn: con}
	})
	if initErr != nil {
		return nil, initErr
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}

	// a run holds at most one statement at a time
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil {
		logrus.Errorf("database Connection error ❌: %v", err)
		_ = db.Close()
		return nil, err
	}
	err = createInclusionTable(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logrus.Debug("Database connection established ✅")
	return db, nil
}

func (d Datasource) Close() error {
	return d.Conn.Close()
}

// createInclusionTable creates the journal table for InclusionRecord.
func createInclusionTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE SCHEMA IF NOT EXISTS runop;
		CREATE TABLE IF NOT EXISTS runop.inclusions (
			id SERIAL PRIMARY KEY,
			run_id TEXT NOT NULL UNIQUE,
			identity TEXT NOT NULL,
			operation_hash TEXT NOT NULL UNIQUE,
			transaction_hash TEXT NOT NULL,
			block_number BIGINT NOT NULL,
			gas_used BIGINT NOT NULL,
			pre_balance NUMERIC(78, 0) NOT NULL,
			post_balance NUMERIC(78, 0),
			fee_paid NUMERIC(78, 0),
			events JSONB,
			events_error TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_inclusions_identity ON runop.inclusions (identity, created_at DESC);
	`)
	if err != nil {
		logrus.Errorf("failed to create inclusions table: %v", err)
	}
	return err
}
