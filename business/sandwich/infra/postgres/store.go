package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/fd1az/sandwich-bot/business/sandwich/domain"
	"github.com/fd1az/sandwich-bot/internal/apperror"
)

// ErrDuplicateDetection is returned when the transaction was already stored.
var ErrDuplicateDetection = errors.New("detection already stored")

// SwapRecord is a stored swap joined with its detection.
type SwapRecord struct {
	TxHash       common.Hash
	LogIndex     int
	Sender       common.Address
	Pair         common.Address
	MainCurrency common.Address
	TargetToken  common.Address
	Version      uint8
	Direction    domain.SwapDirection
	Amount0In    *big.Int
	Amount1In    *big.Int
	Amount0Out   *big.Int
	Amount1Out   *big.Int
	BlockNumber  uint64
	DetectedAt   time.Time
}

// Store writes detections and reads them back.
type Store struct {
	pool *Pool
}

// NewStore creates a Store on an existing pool.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

// Open connects to dsn and applies migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := NewPool(ctx, dsn)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStorageUnavailable, "postgres")
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, apperror.Wrap(err, apperror.CodeMigrationFailed, "postgres")
	}
	return NewStore(pool), nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

const insertDetection = `
	INSERT INTO pending_detections (
		tx_hash, sender, recipient, nonce, block_number, detected_at, simulation_ms
	) VALUES ($1, $2, $3, $4, $5, $6, $7)
`

const insertSwap = `
	INSERT INTO detected_swaps (
		tx_hash, log_index, pair, main_currency, target_token, version, direction,
		amount0_in, amount1_in, amount0_out, amount1_out, block_number, detected_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`

// SaveDetection stores a pending transaction and its swaps atomically.
// A transaction hash is stored once; later detections return ErrDuplicateDetection.
func (s *Store) SaveDetection(ctx context.Context, info *domain.PendingTxInfo) error {
	if info == nil || info.PendingTx == nil {
		return apperror.New(apperror.CodeInvalidInput, apperror.WithContext("nil detection"))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeStorageUnavailable, "begin tx")
	}
	defer tx.Rollback(ctx)

	ptx := info.PendingTx
	var recipient *string
	if ptx.To != nil {
		to := ptx.To.Hex()
		recipient = &to
	}

	_, err = tx.Exec(ctx, insertDetection,
		ptx.Hash.Hex(),
		ptx.From.Hex(),
		recipient,
		int64(ptx.Nonce),
		int64(info.BlockNumber),
		info.DetectedAt,
		info.SimulationTime.Milliseconds(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateDetection
		}
		return apperror.Wrap(err, apperror.CodeStorageWriteFailed, "insert detection")
	}

	batch := &pgx.Batch{}
	for _, sw := range info.TouchedPairs {
		batch.Queue(insertSwap,
			ptx.Hash.Hex(),
			sw.LogIndex,
			sw.TargetPair.Hex(),
			sw.MainCurrency.Hex(),
			sw.TargetToken.Hex(),
			int16(sw.Version),
			sw.Direction.String(),
			numeric(sw.Amount0In),
			numeric(sw.Amount1In),
			numeric(sw.Amount0Out),
			numeric(sw.Amount1Out),
			int64(info.BlockNumber),
			info.DetectedAt,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range batch.Len() {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return apperror.Wrap(err, apperror.CodeStorageWriteFailed, "insert swap")
		}
	}
	if err := br.Close(); err != nil {
		return apperror.Wrap(err, apperror.CodeStorageWriteFailed, "insert swaps")
	}

	if err := tx.Commit(ctx); err != nil {
		return apperror.Wrap(err, apperror.CodeStorageWriteFailed, "commit tx")
	}
	return nil
}

const selectSwaps = `
	SELECT s.tx_hash, s.log_index, d.sender, s.pair, s.main_currency, s.target_token,
		s.version, s.direction, s.amount0_in::text, s.amount1_in::text,
		s.amount0_out::text, s.amount1_out::text, s.block_number, s.detected_at
	FROM detected_swaps s
	JOIN pending_detections d ON d.tx_hash = s.tx_hash
`

// RecentSwaps returns the newest swaps first.
func (s *Store) RecentSwaps(ctx context.Context, limit int) ([]SwapRecord, error) {
	rows, err := s.pool.Query(ctx, selectSwaps+`
		ORDER BY s.detected_at DESC, s.tx_hash, s.log_index
		LIMIT $1`, limit)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStorageReadFailed, "recent swaps")
	}
	defer rows.Close()
	return scanSwaps(rows)
}

// SwapsByPair returns swaps on pair within [from, to], oldest first.
func (s *Store) SwapsByPair(ctx context.Context, pair common.Address, from, to time.Time) ([]SwapRecord, error) {
	rows, err := s.pool.Query(ctx, selectSwaps+`
		WHERE s.pair = $1 AND s.detected_at >= $2 AND s.detected_at <= $3
		ORDER BY s.detected_at ASC, s.tx_hash, s.log_index`, pair.Hex(), from, to)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStorageReadFailed, "swaps by pair")
	}
	defer rows.Close()
	return scanSwaps(rows)
}

// CountSwaps counts stored swaps.
func (s *Store) CountSwaps(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM detected_swaps`).Scan(&n); err != nil {
		return 0, apperror.Wrap(err, apperror.CodeStorageReadFailed, "count swaps")
	}
	return n, nil
}

func scanSwaps(rows pgx.Rows) ([]SwapRecord, error) {
	var out []SwapRecord
	for rows.Next() {
		var (
			txHash, sender, pair, main, target, direction string
			a0In, a1In, a0Out, a1Out                      string
			version                                       int16
			logIndex                                      int32
			block                                         int64
			r                                             SwapRecord
		)
		if err := rows.Scan(&txHash, &logIndex, &sender, &pair, &main, &target,
			&version, &direction, &a0In, &a1In, &a0Out, &a1Out, &block, &r.DetectedAt); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeStorageReadFailed, "scan swap")
		}

		r.TxHash = common.HexToHash(txHash)
		r.LogIndex = int(logIndex)
		r.Sender = common.HexToAddress(sender)
		r.Pair = common.HexToAddress(pair)
		r.MainCurrency = common.HexToAddress(main)
		r.TargetToken = common.HexToAddress(target)
		r.Version = uint8(version)
		r.BlockNumber = uint64(block)
		r.Direction = domain.Sell
		if direction == domain.Buy.String() {
			r.Direction = domain.Buy
		}

		var err error
		if r.Amount0In, err = parseAmount(a0In); err != nil {
			return nil, err
		}
		if r.Amount1In, err = parseAmount(a1In); err != nil {
			return nil, err
		}
		if r.Amount0Out, err = parseAmount(a0Out); err != nil {
			return nil, err
		}
		if r.Amount1Out, err = parseAmount(a1Out); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStorageReadFailed, "iterate swaps")
	}
	return out, nil
}

func numeric(v *big.Int) pgtype.Numeric {
	if v == nil {
		v = new(big.Int)
	}
	return pgtype.Numeric{Int: new(big.Int).Set(v), Valid: true}
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, apperror.New(apperror.CodeStorageReadFailed,
			apperror.WithContext(fmt.Sprintf("bad amount %q", s)))
	}
	return v, nil
}
