// Package sqlite persists the pool registry so restarts resume the factory scan.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"

	"github.com/fd1az/sandwich-bot/business/registry/app"
	"github.com/fd1az/sandwich-bot/business/registry/domain"
	"github.com/fd1az/sandwich-bot/internal/apperror"
	"github.com/fd1az/sandwich-bot/internal/asset"
)

var _ app.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	address       TEXT PRIMARY KEY,
	token0        TEXT NOT NULL,
	token1        TEXT NOT NULL,
	version       INTEGER NOT NULL,
	created_block INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pools_created_block ON pools(created_block);

CREATE TABLE IF NOT EXISTS tokens (
	address  TEXT PRIMARY KEY,
	chain_id INTEGER NOT NULL,
	symbol   TEXT NOT NULL,
	name     TEXT NOT NULL,
	decimals INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const lastBlockKey = "last_scanned_block"

// Store is a go-sqlite3 backed registry cache.
type Store struct {
	db      *sql.DB
	chainID uint64
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path string, chainID uint64) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path))
	if err != nil {
		return nil, apperror.New(apperror.CodeStorageUnavailable, apperror.WithCause(err), apperror.WithContext(path))
	}
	// sqlite serialises writers; one connection avoids SQLITE_BUSY between them.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, apperror.New(apperror.CodeMigrationFailed, apperror.WithCause(err), apperror.WithContext(path))
	}
	return &Store{db: db, chainID: chainID}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// LoadPools returns every cached pool and the last block the scan covered.
func (s *Store) LoadPools(ctx context.Context) ([]domain.Pool, uint64, error) {
	last, err := s.lastBlock(ctx)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT address, token0, token1, version, created_block FROM pools ORDER BY created_block, address`)
	if err != nil {
		return nil, 0, apperror.New(apperror.CodeStorageReadFailed, apperror.WithCause(err))
	}
	defer rows.Close()

	var pools []domain.Pool
	for rows.Next() {
		var (
			addr, t0, t1 string
			p            domain.Pool
		)
		if err := rows.Scan(&addr, &t0, &t1, &p.Version, &p.CreatedBlock); err != nil {
			return nil, 0, apperror.New(apperror.CodeStorageReadFailed, apperror.WithCause(err))
		}
		p.Address = common.HexToAddress(addr)
		p.Token0 = common.HexToAddress(t0)
		p.Token1 = common.HexToAddress(t1)
		pools = append(pools, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, apperror.New(apperror.CodeStorageReadFailed, apperror.WithCause(err))
	}
	return pools, last, nil
}

// SavePools inserts pools and advances the scan cursor in one transaction.
func (s *Store) SavePools(ctx context.Context, pools []domain.Pool, lastBlock uint64) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO pools (address, token0, token1, version, created_block) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range pools {
			if _, err := stmt.ExecContext(ctx, p.Address.Hex(), p.Token0.Hex(), p.Token1.Hex(), p.Version, p.CreatedBlock); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			lastBlockKey, strconv.FormatUint(lastBlock, 10))
		return err
	})
}

// LoadTokens returns the cached token metadata for the store's chain.
func (s *Store) LoadTokens(ctx context.Context) ([]*asset.Asset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT address, symbol, name, decimals FROM tokens WHERE chain_id = ?`, s.chainID)
	if err != nil {
		return nil, apperror.New(apperror.CodeStorageReadFailed, apperror.WithCause(err))
	}
	defer rows.Close()

	var tokens []*asset.Asset
	for rows.Next() {
		var (
			addr, symbol, name string
			decimals           uint8
		)
		if err := rows.Scan(&addr, &symbol, &name, &decimals); err != nil {
			return nil, apperror.New(apperror.CodeStorageReadFailed, apperror.WithCause(err))
		}
		a, err := asset.NewToken(s.chainID, common.HexToAddress(addr), symbol, name, decimals)
		if err != nil {
			continue
		}
		tokens = append(tokens, a)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.New(apperror.CodeStorageReadFailed, apperror.WithCause(err))
	}
	return tokens, nil
}

// SaveTokens upserts token metadata.
func (s *Store) SaveTokens(ctx context.Context, tokens []*asset.Asset) error {
	return s.tx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO tokens (address, chain_id, symbol, name, decimals) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, a := range tokens {
			if _, err := stmt.ExecContext(ctx, a.Address().Hex(), a.ChainID(), a.Symbol(), a.Name(), a.Decimals()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) lastBlock(ctx context.Context) (uint64, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, lastBlockKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, apperror.New(apperror.CodeStorageReadFailed, apperror.WithCause(err))
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, apperror.New(apperror.CodeStorageReadFailed, apperror.WithCause(err), apperror.WithContext("last block"))
	}
	return n, nil
}

func (s *Store) tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperror.New(apperror.CodeStorageWriteFailed, apperror.WithCause(err))
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return apperror.New(apperror.CodeStorageWriteFailed, apperror.WithCause(err))
	}
	if err := tx.Commit(); err != nil {
		return apperror.New(apperror.CodeStorageWriteFailed, apperror.WithCause(err))
	}
	return nil
}
