package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jerry-enebeli/runop/model"
)

var selectColumns = []string{"run_id", "identity", "operation_hash", "transaction_hash", "block_number", "gas_used", "pre_balance", "post_balance", "fee_paid", "events", "events_error", "created_at"}

func sampleRecord() *model.InclusionRecord {
	return &model.InclusionRecord{
		RunID:           "run_7a1c",
		Identity:        common.HexToAddress("0x00000000000000000000000000000000000000aa"),
		OperationHash:   common.HexToHash("0x01"),
		TransactionHash: common.HexToHash("0x02"),
		BlockNumber:     42,
		GasUsed:         95000,
		PreBalance:      big.NewInt(10_000_000_000_000_000),
		PostBalance:     big.NewInt(9_000_000_000_000_000),
		FeePaid:         big.NewInt(1_000_000_000_000_000),
		Events: []model.Event{{
			Name:        "UserOperationEvent",
			Address:     common.HexToAddress("0x00000000000000000000000000000000000000ee"),
			BlockNumber: 42,
			Args:        map[string]interface{}{"success": true},
		}},
		CreatedAt: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestCreateInclusionTable(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS runop.inclusions").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, createInclusionTable(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordInclusion_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	record := sampleRecord()
	eventsJSON, err := json.Marshal(record.Events)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO runop.inclusions").
		WithArgs(record.RunID, record.Identity.Hex(), record.OperationHash.Hex(), record.TransactionHash.Hex(),
			int64(42), int64(95000), "10000000000000000", "9000000000000000", "1000000000000000",
			eventsJSON, "", record.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	saved, err := ds.RecordInclusion(context.Background(), record)
	assert.NoError(t, err)
	assert.Equal(t, record.RunID, saved.RunID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordInclusion_SetsCreatedAt(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	record := sampleRecord()
	record.CreatedAt = time.Time{}

	mock.ExpectExec("INSERT INTO runop.inclusions").WillReturnResult(sqlmock.NewResult(1, 1))

	saved, err := ds.RecordInclusion(context.Background(), record)
	assert.NoError(t, err)
	assert.WithinDuration(t, time.Now(), saved.CreatedAt, time.Second)
}

func TestRecordInclusion_Duplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("INSERT INTO runop.inclusions").
		WillReturnError(&pq.Error{Code: "23505", Message: "unique_violation"})

	_, err = ds.RecordInclusion(context.Background(), sampleRecord())
	assert.True(t, errors.Is(err, ErrDuplicateInclusion))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordInclusion_Fail(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectExec("INSERT INTO runop.inclusions").WillReturnError(fmt.Errorf("failed to insert"))

	_, err = ds.RecordInclusion(context.Background(), sampleRecord())
	assert.EqualError(t, err, "failed to insert")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetInclusion_Success(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	record := sampleRecord()
	eventsJSON, _ := json.Marshal(record.Events)

	rows := sqlmock.NewRows(selectColumns).AddRow(record.RunID, record.Identity.Hex(), record.OperationHash.Hex(),
		record.TransactionHash.Hex(), int64(42), int64(95000), "10000000000000000", "9000000000000000",
		"1000000000000000", eventsJSON, nil, record.CreatedAt)
	mock.ExpectQuery("SELECT .* FROM runop.inclusions WHERE run_id = \\$1").WithArgs(record.RunID).WillReturnRows(rows)

	got, err := ds.GetInclusion(context.Background(), record.RunID)
	require.NoError(t, err)
	assert.Equal(t, record.Identity, got.Identity)
	assert.Equal(t, record.OperationHash, got.OperationHash)
	assert.Equal(t, uint64(42), got.BlockNumber)
	assert.Equal(t, 0, record.FeePaid.Cmp(got.FeePaid))
	assert.Equal(t, 0, model.ComputeFee(got.PreBalance, got.PostBalance).Cmp(got.FeePaid))
	require.Len(t, got.Events, 1)
	assert.Equal(t, "UserOperationEvent", got.Events[0].Name)
	assert.Empty(t, got.EventsError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetInclusion_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	mock.ExpectQuery("SELECT .* FROM runop.inclusions").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err = ds.GetInclusion(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrInclusionNotFound))
}

func TestGetInclusionsByIdentity(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	record := sampleRecord()

	rows := sqlmock.NewRows(selectColumns).
		AddRow("run_2", record.Identity.Hex(), common.HexToHash("0x03").Hex(), record.TransactionHash.Hex(), int64(43), int64(1), "5", "3", "2", []byte("[]"), "EVENT_QUERY_FAILED", record.CreatedAt).
		AddRow("run_1", record.Identity.Hex(), record.OperationHash.Hex(), record.TransactionHash.Hex(), int64(42), int64(1), "9", "4", "5", []byte("[]"), nil, record.CreatedAt)
	mock.ExpectQuery("SELECT .* FROM runop.inclusions WHERE identity = \\$1").
		WithArgs(record.Identity.Hex(), 10).
		WillReturnRows(rows)

	got, err := ds.GetInclusionsByIdentity(context.Background(), record.Identity, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "run_2", got[0].RunID)
	assert.Equal(t, "EVENT_QUERY_FAILED", got[0].EventsError)
	assert.Equal(t, int64(2), got[0].FeePaid.Int64())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScanInclusion_InvalidAmount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	rows := sqlmock.NewRows(selectColumns).AddRow("run_1", "0xaa", "0x01", "0x02", int64(1), int64(1), "abc", "0", "0", nil, nil, time.Now())
	mock.ExpectQuery("SELECT").WithArgs("run_1").WillReturnRows(rows)

	_, err = ds.GetInclusion(context.Background(), "run_1")
	assert.ErrorContains(t, err, "invalid wei amount")
}

func TestRecordInclusion_UnknownFeeIsNull(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}
	record := sampleRecord()
	record.PostBalance = nil
	record.FeePaid = nil
	eventsJSON, err := json.Marshal(record.Events)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO runop.inclusions").
		WithArgs(record.RunID, record.Identity.Hex(), record.OperationHash.Hex(), record.TransactionHash.Hex(),
			int64(42), int64(95000), "10000000000000000", nil, nil,
			eventsJSON, "", record.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, err = ds.RecordInclusion(context.Background(), record)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetInclusion_UnknownFee(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ds := Datasource{Conn: db}

	rows := sqlmock.NewRows(selectColumns).AddRow("run_1", "0xaa", "0x01", "0x02", int64(7), int64(1), "5", nil, nil, nil, nil, time.Now())
	mock.ExpectQuery("SELECT").WithArgs("run_1").WillReturnRows(rows)

	got, err := ds.GetInclusion(context.Background(), "run_1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.PreBalance.Int64())
	assert.Nil(t, got.PostBalance)
	assert.Nil(t, got.FeePaid)
	assert.Equal(t, uint64(7), got.BlockNumber)
}
