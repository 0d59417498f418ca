package storage

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	"github.com/Fallback-Solutions/universal-router/internal/amm"
)

// Pool kinds in a parquet snapshot
const (
	RowPair    = "pair"
	RowPool    = "pool"
	RowManaged = "managed"
)

// PoolRow is one pool in a parquet snapshot. Amounts are decimal strings.
type PoolRow struct {
	Kind         string `parquet:"name=kind, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	BlockNumber  int64  `parquet:"name=block_number, type=INT64"`
	Address      string `parquet:"name=address, type=BYTE_ARRAY, convertedtype=UTF8"`
	PoolID       string `parquet:"name=pool_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Token0       string `parquet:"name=token0, type=BYTE_ARRAY, convertedtype=UTF8"`
	Token1       string `parquet:"name=token1, type=BYTE_ARRAY, convertedtype=UTF8"`
	Fee          int32  `parquet:"name=fee, type=INT32"`
	TickSpacing  int32  `parquet:"name=tick_spacing, type=INT32"`
	Hooks        string `parquet:"name=hooks, type=BYTE_ARRAY, convertedtype=UTF8"`
	Reserve0     string `parquet:"name=reserve0, type=BYTE_ARRAY, convertedtype=UTF8"`
	Reserve1     string `parquet:"name=reserve1, type=BYTE_ARRAY, convertedtype=UTF8"`
	SqrtPriceX96 string `parquet:"name=sqrt_price_x96, type=BYTE_ARRAY, convertedtype=UTF8"`
	Liquidity    string `parquet:"name=liquidity, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func bigString(b *big.Int) string {
	if b == nil {
		return "0"
	}
	return b.String()
}

// Rows flattens a snapshot for export.
func (s *Snapshot) Rows(blockNumber uint64) []PoolRow {
	rows := make([]PoolRow, 0, s.Len())
	for _, p := range s.Pairs {
		rows = append(rows, PoolRow{
			Kind: RowPair, BlockNumber: int64(blockNumber), Address: p.Address.Hex(),
			Token0: p.Token0.Hex(), Token1: p.Token1.Hex(),
			Reserve0: bigString(p.Reserve0), Reserve1: bigString(p.Reserve1),
		})
	}
	for _, p := range s.Pools {
		rows = append(rows, PoolRow{
			Kind: RowPool, BlockNumber: int64(blockNumber), Address: p.Address.Hex(),
			Token0: p.Token0.Hex(), Token1: p.Token1.Hex(), Fee: int32(p.Fee),
			SqrtPriceX96: bigString(p.SqrtPriceX96), Liquidity: bigString(p.Liquidity),
		})
	}
	for _, p := range s.Managed {
		rows = append(rows, PoolRow{
			Kind: RowManaged, BlockNumber: int64(blockNumber), PoolID: p.ID.Hex(),
			Token0: p.Token0.Hex(), Token1: p.Token1.Hex(), Fee: int32(p.Fee),
			TickSpacing: p.TickSpacing, Hooks: p.Hooks.Hex(),
			SqrtPriceX96: bigString(p.SqrtPriceX96), Liquidity: bigString(p.Liquidity),
		})
	}
	return rows
}

// addRow appends one parquet row to the snapshot.
func (s *Snapshot) addRow(row PoolRow) error {
	switch row.Kind {
	case RowPair:
		p, err := pairFromRow(row.Address, row.Token0, row.Token1, row.Reserve0, row.Reserve1)
		if err != nil {
			return err
		}
		s.Pairs = append(s.Pairs, p)
	case RowPool:
		p, err := poolFromRow(row.Address, row.Token0, row.Token1, uint32(row.Fee), row.SqrtPriceX96, row.Liquidity)
		if err != nil {
			return err
		}
		s.Pools = append(s.Pools, p)
	case RowManaged:
		p, err := poolFromRow("", row.Token0, row.Token1, uint32(row.Fee), row.SqrtPriceX96, row.Liquidity)
		if err != nil {
			return err
		}
		p.TickSpacing = row.TickSpacing
		p.Hooks = common.HexToAddress(row.Hooks)
		p.ID = common.HexToHash(row.PoolID)
		if p.ID == (common.Hash{}) {
			id, err := amm.NewPoolKey(p.Token0, p.Token1, p.Fee, p.TickSpacing, p.Hooks).ID()
			if err != nil {
				return err
			}
			p.ID = id
		}
		s.Managed = append(s.Managed, p)
	default:
		return fmt.Errorf("unknown row kind %q", row.Kind)
	}
	return nil
}

// WriteSnapshot exports a snapshot to a parquet file.
func WriteSnapshot(path string, blockNumber uint64, snap *Snapshot) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create parquet file: %w", err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(PoolRow), 4)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range snap.Rows(blockNumber) {
		if err := pw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}
	return nil
}

// ReadSnapshot imports a parquet file, grouping rows by block. Rows that do
// not parse are skipped and counted.
func ReadSnapshot(path string, batchSize int) (map[uint64]*Snapshot, int, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open parquet file: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(PoolRow), 4)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	if batchSize <= 0 {
		batchSize = 1000
	}

	snaps := make(map[uint64]*Snapshot)
	skipped := 0
	numRows := int(pr.GetNumRows())

	for i := 0; i < numRows; i += batchSize {
		toRead := batchSize
		if i+toRead > numRows {
			toRead = numRows - i
		}

		rows := make([]PoolRow, toRead)
		if err := pr.Read(&rows); err != nil {
			return nil, 0, fmt.Errorf("failed to read batch at %d: %w", i, err)
		}

		for _, row := range rows {
			block := uint64(row.BlockNumber)
			snap, ok := snaps[block]
			if !ok {
				snap = &Snapshot{}
				snaps[block] = snap
			}
			if err := snap.addRow(row); err != nil {
				skipped++
			}
		}
	}

	return snaps, skipped, nil
}
