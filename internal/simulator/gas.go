package simulator

// EIP-2929 access costs
const (
	GasColdAccountAccess uint64 = 2600
	GasColdSload         uint64 = 2100
	GasWarmAccess        uint64 = 100
	GasSstoreReset       uint64 = 2900
)

// GasManagerUnlock is the fixed cost of opening and settling one session on
// the singleton manager.
const GasManagerUnlock uint64 = 45_000

// HopCost describes the storage footprint and execution cost of one swap.
type HopCost struct {
	Execution uint64
	Slots     uint64 // storage slots read
	Writes    uint64 // storage slots written
}

// GasSchedule prices hops per pool kind.
type GasSchedule map[PoolKind]HopCost

// DefaultGasSchedule approximates mainnet costs for a swap inside one range.
var DefaultGasSchedule = GasSchedule{
	// reserves + token0/1 + balanceOf pair, two transfers
	PoolConstantProduct: {Execution: 45_000, Slots: 3, Writes: 1},
	// slot0, liquidity, fee growth, tick bitmap word
	PoolConcentrated: {Execution: 62_000, Slots: 5, Writes: 2},
	// pool state lives in the manager, no external call per hop
	PoolManaged: {Execution: 38_000, Slots: 4, Writes: 2},
}

// HopGas prices one hop; cold hops pay account and slot access up front.
func (s GasSchedule) HopGas(kind PoolKind, cold bool) uint64 {
	c := s[kind]
	gas := c.Execution + c.Writes*GasSstoreReset
	if cold {
		return gas + GasColdAccountAccess + c.Slots*GasColdSload
	}
	return gas + GasWarmAccess + c.Slots*GasWarmAccess
}
