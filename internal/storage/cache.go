package storage

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Fallback-Solutions/universal-router/internal/amm"
)

//go:embed schema.sql
var schema string

// CacheDB stores pool snapshots keyed by block so quotes can be replayed
// without a node.
type CacheDB struct {
	db *sql.DB
}

func NewCacheDB(dbPath string) (*CacheDB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache db: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise schema: %w", err)
	}

	return &CacheDB{db: db}, nil
}

func (c *CacheDB) Close() error {
	return c.db.Close()
}

func parseBig(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("bad integer %q", s)
	}
	return v, nil
}

// Pair operations

// GetPair reports a miss as (nil, false, nil); err is a failed or corrupt read.
func (c *CacheDB) GetPair(blockNumber uint64, addr common.Address) (*amm.Pair, bool, error) {
	var token0, token1, r0, r1 string
	err := c.db.QueryRow(
		"SELECT token0, token1, reserve0, reserve1 FROM pairs WHERE block_number = ? AND address = ?",
		blockNumber, addr.Hex(),
	).Scan(&token0, &token1, &r0, &r1)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read pair %s: %w", addr.Hex(), err)
	}

	p, err := pairFromRow(addr.Hex(), token0, token1, r0, r1)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt pair row %s: %w", addr.Hex(), err)
	}
	return p, true, nil
}

func pairFromRow(addr, token0, token1, r0, r1 string) (*amm.Pair, error) {
	reserve0, err := parseBig(r0)
	if err != nil {
		return nil, err
	}
	reserve1, err := parseBig(r1)
	if err != nil {
		return nil, err
	}
	return &amm.Pair{
		Address:  common.HexToAddress(addr),
		Token0:   common.HexToAddress(token0),
		Token1:   common.HexToAddress(token1),
		Reserve0: reserve0,
		Reserve1: reserve1,
	}, nil
}

const insertPair = "INSERT OR REPLACE INTO pairs (block_number, address, token0, token1, reserve0, reserve1) VALUES (?, ?, ?, ?, ?, ?)"

func (c *CacheDB) SetPair(blockNumber uint64, p *amm.Pair) error {
	_, err := c.db.Exec(insertPair,
		blockNumber, p.Address.Hex(), p.Token0.Hex(), p.Token1.Hex(), p.Reserve0.String(), p.Reserve1.String(),
	)
	return err
}

// Concentrated pool operations

func (c *CacheDB) GetPool(blockNumber uint64, addr common.Address) (*amm.Pool, bool, error) {
	var token0, token1, sqrtPrice, liquidity string
	var fee uint32
	err := c.db.QueryRow(
		"SELECT token0, token1, fee, sqrt_price_x96, liquidity FROM pools WHERE block_number = ? AND address = ?",
		blockNumber, addr.Hex(),
	).Scan(&token0, &token1, &fee, &sqrtPrice, &liquidity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read pool %s: %w", addr.Hex(), err)
	}

	p, err := poolFromRow(addr.Hex(), token0, token1, fee, sqrtPrice, liquidity)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt pool row %s: %w", addr.Hex(), err)
	}
	return p, true, nil
}

func poolFromRow(addr, token0, token1 string, fee uint32, sqrtPrice, liquidity string) (*amm.Pool, error) {
	price, err := parseBig(sqrtPrice)
	if err != nil {
		return nil, err
	}
	liq, err := parseBig(liquidity)
	if err != nil {
		return nil, err
	}
	return &amm.Pool{
		Address:      common.HexToAddress(addr),
		Token0:       common.HexToAddress(token0),
		Token1:       common.HexToAddress(token1),
		Fee:          fee,
		SqrtPriceX96: price,
		Liquidity:    liq,
	}, nil
}

const insertPool = "INSERT OR REPLACE INTO pools (block_number, address, token0, token1, fee, sqrt_price_x96, liquidity) VALUES (?, ?, ?, ?, ?, ?, ?)"

func (c *CacheDB) SetPool(blockNumber uint64, p *amm.Pool) error {
	_, err := c.db.Exec(insertPool,
		blockNumber, p.Address.Hex(), p.Token0.Hex(), p.Token1.Hex(), p.Fee, p.SqrtPriceX96.String(), p.Liquidity.String(),
	)
	return err
}

// Managed pool operations

func (c *CacheDB) GetManagedPool(blockNumber uint64, id common.Hash) (*amm.Pool, bool, error) {
	var currency0, currency1, hooks, sqrtPrice, liquidity string
	var fee uint32
	var tickSpacing int32
	err := c.db.QueryRow(
		`SELECT currency0, currency1, fee, tick_spacing, hooks, sqrt_price_x96, liquidity
		FROM managed_pools WHERE block_number = ? AND pool_id = ?`,
		blockNumber, id.Hex(),
	).Scan(&currency0, &currency1, &fee, &tickSpacing, &hooks, &sqrtPrice, &liquidity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read managed pool %s: %w", id.Hex(), err)
	}

	p, err := poolFromRow("", currency0, currency1, fee, sqrtPrice, liquidity)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt managed pool row %s: %w", id.Hex(), err)
	}
	p.ID = id
	p.TickSpacing = tickSpacing
	p.Hooks = common.HexToAddress(hooks)
	return p, true, nil
}

const insertManagedPool = `INSERT OR REPLACE INTO managed_pools
	(block_number, pool_id, currency0, currency1, fee, tick_spacing, hooks, sqrt_price_x96, liquidity)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

// SetManagedPool stores p under p.ID, which must already be set.
func (c *CacheDB) SetManagedPool(blockNumber uint64, p *amm.Pool) error {
	if p.ID == (common.Hash{}) {
		return errors.New("managed pool without id")
	}
	_, err := c.db.Exec(insertManagedPool,
		blockNumber, p.ID.Hex(), p.Token0.Hex(), p.Token1.Hex(), p.Fee, p.TickSpacing, p.Hooks.Hex(),
		p.SqrtPriceX96.String(), p.Liquidity.String(),
	)
	return err
}

// Batch operations for prewarming

// Snapshot is every pool known at one block.
type Snapshot struct {
	Pairs   []*amm.Pair
	Pools   []*amm.Pool
	Managed []*amm.Pool
}

func (s *Snapshot) Len() int {
	return len(s.Pairs) + len(s.Pools) + len(s.Managed)
}

func (c *CacheDB) BatchSet(blockNumber uint64, snap *Snapshot) error {
	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	pairStmt, err := tx.Prepare(insertPair)
	if err != nil {
		return err
	}
	defer pairStmt.Close()

	poolStmt, err := tx.Prepare(insertPool)
	if err != nil {
		return err
	}
	defer poolStmt.Close()

	managedStmt, err := tx.Prepare(insertManagedPool)
	if err != nil {
		return err
	}
	defer managedStmt.Close()

	for _, p := range snap.Pairs {
		if _, err := pairStmt.Exec(
			blockNumber, p.Address.Hex(), p.Token0.Hex(), p.Token1.Hex(), p.Reserve0.String(), p.Reserve1.String(),
		); err != nil {
			return fmt.Errorf("pair %s: %w", p.Address.Hex(), err)
		}
	}
	for _, p := range snap.Pools {
		if _, err := poolStmt.Exec(
			blockNumber, p.Address.Hex(), p.Token0.Hex(), p.Token1.Hex(), p.Fee, p.SqrtPriceX96.String(), p.Liquidity.String(),
		); err != nil {
			return fmt.Errorf("pool %s: %w", p.Address.Hex(), err)
		}
	}
	for _, p := range snap.Managed {
		if _, err := managedStmt.Exec(
			blockNumber, p.ID.Hex(), p.Token0.Hex(), p.Token1.Hex(), p.Fee, p.TickSpacing, p.Hooks.Hex(),
			p.SqrtPriceX96.String(), p.Liquidity.String(),
		); err != nil {
			return fmt.Errorf("managed pool %s: %w", p.ID.Hex(), err)
		}
	}

	return tx.Commit()
}

// LoadSnapshot reads every pool stored for a block.
func (c *CacheDB) LoadSnapshot(blockNumber uint64) (*Snapshot, error) {
	snap := &Snapshot{}

	rows, err := c.db.Query("SELECT address, token0, token1, reserve0, reserve1 FROM pairs WHERE block_number = ?", blockNumber)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var addr, token0, token1, r0, r1 string
		if err := rows.Scan(&addr, &token0, &token1, &r0, &r1); err != nil {
			rows.Close()
			return nil, err
		}
		p, err := pairFromRow(addr, token0, token1, r0, r1)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("pair %s: %w", addr, err)
		}
		snap.Pairs = append(snap.Pairs, p)
	}
	rows.Close()

	rows, err = c.db.Query("SELECT address, token0, token1, fee, sqrt_price_x96, liquidity FROM pools WHERE block_number = ?", blockNumber)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var addr, token0, token1, sqrtPrice, liquidity string
		var fee uint32
		if err := rows.Scan(&addr, &token0, &token1, &fee, &sqrtPrice, &liquidity); err != nil {
			rows.Close()
			return nil, err
		}
		p, err := poolFromRow(addr, token0, token1, fee, sqrtPrice, liquidity)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("pool %s: %w", addr, err)
		}
		snap.Pools = append(snap.Pools, p)
	}
	rows.Close()

	rows, err = c.db.Query(
		`SELECT pool_id, currency0, currency1, fee, tick_spacing, hooks, sqrt_price_x96, liquidity
		FROM managed_pools WHERE block_number = ?`, blockNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, currency0, currency1, hooks, sqrtPrice, liquidity string
		var fee uint32
		var tickSpacing int32
		if err := rows.Scan(&id, &currency0, &currency1, &fee, &tickSpacing, &hooks, &sqrtPrice, &liquidity); err != nil {
			return nil, err
		}
		p, err := poolFromRow("", currency0, currency1, fee, sqrtPrice, liquidity)
		if err != nil {
			return nil, fmt.Errorf("managed pool %s: %w", id, err)
		}
		p.ID = common.HexToHash(id)
		p.TickSpacing = tickSpacing
		p.Hooks = common.HexToAddress(hooks)
		snap.Managed = append(snap.Managed, p)
	}

	return snap, rows.Err()
}

// LatestBlock is the newest block with any cached pool, false when empty.
func (c *CacheDB) LatestBlock() (uint64, bool) {
	var block sql.NullInt64
	err := c.db.QueryRow(`
		SELECT MAX(block_number) FROM (
			SELECT block_number FROM pairs
			UNION ALL SELECT block_number FROM pools
			UNION ALL SELECT block_number FROM managed_pools
		)`).Scan(&block)
	if err != nil || !block.Valid {
		return 0, false
	}
	return uint64(block.Int64), true
}

// stats for monitoring cache size

func (c *CacheDB) GetStats() (map[string]int64, error) {
	stats := make(map[string]int64)

	for _, t := range []struct{ table, key string }{
		{"pairs", "pair_entries"},
		{"pools", "pool_entries"},
		{"managed_pools", "managed_pool_entries"},
	} {
		var count int64
		if err := c.db.QueryRow("SELECT COUNT(*) FROM " + t.table).Scan(&count); err != nil {
			return nil, err
		}
		stats[t.key] = count
	}

	return stats, nil
}
