package database

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/lib/pq"

	"github.com/jerry-enebeli/runop/model"
)

var (
	ErrDuplicateInclusion = errors.New("inclusion already recorded")
	ErrInclusionNotFound  = errors.New("inclusion not found")
)

const inclusionColumns = `run_id, identity, operation_hash, transaction_hash, block_number, gas_used, pre_balance, post_balance, fee_paid, events, events_error, created_at`

// RecordInclusion stores record. A run ID or operation hash that was already journaled returns ErrDuplicateInclusion.
func (d Datasource) RecordInclusion(ctx context.Context, record *model.InclusionRecord) (*model.InclusionRecord, error) {
	eventsJSON, err := json.Marshal(record.Events)
	if err != nil {
		return record, err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	_, err = d.Conn.ExecContext(ctx, `
		INSERT INTO runop.inclusions (`+inclusionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		record.RunID,
		record.Identity.Hex(),
		record.OperationHash.Hex(),
		record.TransactionHash.Hex(),
		int64(record.BlockNumber),
		int64(record.GasUsed),
		weiString(record.PreBalance),
		nullableWei(record.PostBalance),
		nullableWei(record.FeePaid),
		eventsJSON,
		record.EventsError,
		record.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return record, fmt.Errorf("%w: %s", ErrDuplicateInclusion, record.RunID)
		}
		return record, err
	}
	return record, nil
}

// GetInclusion retrieves the record journaled for runID.
func (d Datasource) GetInclusion(ctx context.Context, runID string) (*model.InclusionRecord, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT `+inclusionColumns+`
		FROM runop.inclusions
		WHERE run_id = $1
	`, runID)

	record, err := scanInclusion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrInclusionNotFound, runID)
		}
		return nil, err
	}
	return record, nil
}

// GetInclusionsByIdentity lists the most recent records for identity, newest first.
func (d Datasource) GetInclusionsByIdentity(ctx context.Context, identity common.Address, limit int) ([]model.InclusionRecord, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT `+inclusionColumns+`
		FROM runop.inclusions
		WHERE identity = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, identity.Hex(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.InclusionRecord
	for rows.Next() {
		record, err := scanInclusion(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInclusion(row scanner) (*model.InclusionRecord, error) {
	var (
		record                   model.InclusionRecord
		identity, opHash, txHash string
		blockNumber, gasUsed     int64
		preBalance               string
		postBalance, feePaid     sql.NullString
		eventsJSON               []byte
		eventsError              sql.NullString
	)
	err := row.Scan(&record.RunID, &identity, &opHash, &txHash, &blockNumber, &gasUsed,
		&preBalance, &postBalance, &feePaid, &eventsJSON, &eventsError, &record.CreatedAt)
	if err != nil {
		return nil, err
	}

	record.Identity = common.HexToAddress(identity)
	record.OperationHash = common.HexToHash(opHash)
	record.TransactionHash = common.HexToHash(txHash)
	record.BlockNumber = uint64(blockNumber)
	record.GasUsed = uint64(gasUsed)
	record.EventsError = eventsError.String

	for _, v := range []struct {
		raw sql.NullString
		dst **big.Int
	}{{sql.NullString{String: preBalance, Valid: true}, &record.PreBalance}, {postBalance, &record.PostBalance}, {feePaid, &record.FeePaid}} {
		if !v.raw.Valid {
			continue
		}
		n, ok := new(big.Int).SetString(v.raw.String, 10)
		if !ok {
			return nil, fmt.Errorf("invalid wei amount %q", v.raw.String)
		}
		*v.dst = n
	}

	if len(eventsJSON) > 0 {
		dec := json.NewDecoder(bytes.NewReader(eventsJSON))
		dec.UseNumber()
		if err := dec.Decode(&record.Events); err != nil {
			return nil, err
		}
	}
	return &record, nil
}

func weiString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// nullableWei stores an unknown amount as NULL.
func nullableWei(v *big.Int) interface{} {
	if v == nil {
		return nil
	}
	return v.String()
}
