package router

import "fmt"

// Command is a single opcode in a plan.
type Command byte

const (
	V3SwapExactIn            Command = 0x00
	V3SwapExactOut           Command = 0x01
	Permit2TransferFrom      Command = 0x02
	Permit2PermitBatch       Command = 0x03
	Sweep                    Command = 0x04
	Transfer                 Command = 0x05
	PayPortion               Command = 0x06
	V2SwapExactIn            Command = 0x08
	V2SwapExactOut           Command = 0x09
	Permit2Permit            Command = 0x0a
	WrapETH                  Command = 0x0b
	UnwrapWETH               Command = 0x0c
	Permit2TransferFromBatch Command = 0x0d
	V4Swap                   Command = 0x10
	ExecuteSubPlan           Command = 0x21

	PancakeV3SwapExactIn  Command = 0x40
	PancakeV3SwapExactOut Command = 0x41
	SushiV3SwapExactIn    Command = 0x42
	SushiV3SwapExactOut   Command = 0x43
	SushiV2SwapExactIn    Command = 0x44
	SushiV2SwapExactOut   Command = 0x45
)

var commandNames = map[Command]string{
	V3SwapExactIn:            "V3_SWAP_EXACT_IN",
	V3SwapExactOut:           "V3_SWAP_EXACT_OUT",
	Permit2TransferFrom:      "PERMIT2_TRANSFER_FROM",
	Permit2PermitBatch:       "PERMIT2_PERMIT_BATCH",
	Sweep:                    "SWEEP",
	Transfer:                 "TRANSFER",
	PayPortion:               "PAY_PORTION",
	V2SwapExactIn:            "V2_SWAP_EXACT_IN",
	V2SwapExactOut:           "V2_SWAP_EXACT_OUT",
	Permit2Permit:            "PERMIT2_PERMIT",
	WrapETH:                  "WRAP_ETH",
	UnwrapWETH:               "UNWRAP_WETH",
	Permit2TransferFromBatch: "PERMIT2_TRANSFER_FROM_BATCH",
	V4Swap:                   "V4_SWAP",
	ExecuteSubPlan:           "EXECUTE_SUB_PLAN",
	PancakeV3SwapExactIn:     "PANCAKE_V3_SWAP_EXACT_IN",
	PancakeV3SwapExactOut:    "PANCAKE_V3_SWAP_EXACT_OUT",
	SushiV3SwapExactIn:       "SUSHI_V3_SWAP_EXACT_IN",
	SushiV3SwapExactOut:      "SUSHI_V3_SWAP_EXACT_OUT",
	SushiV2SwapExactIn:       "SUSHI_V2_SWAP_EXACT_IN",
	SushiV2SwapExactOut:      "SUSHI_V2_SWAP_EXACT_OUT",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", byte(c))
}

// Action is a single step inside a V4_SWAP batch.
type Action byte

const (
	ActionSwapExactInSingle  Action = 0x06
	ActionSwapExactIn        Action = 0x07
	ActionSwapExactOutSingle Action = 0x08
	ActionSwapExactOut       Action = 0x09
	ActionSettle             Action = 0x0b
	ActionTake               Action = 0x0e
	ActionTakePortion        Action = 0x10
)

var actionNames = map[Action]string{
	ActionSwapExactInSingle:  "SWAP_EXACT_IN_SINGLE",
	ActionSwapExactIn:        "SWAP_EXACT_IN",
	ActionSwapExactOutSingle: "SWAP_EXACT_OUT_SINGLE",
	ActionSwapExactOut:       "SWAP_EXACT_OUT",
	ActionSettle:             "SETTLE",
	ActionTake:               "TAKE",
	ActionTakePortion:        "TAKE_PORTION",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("0x%02x", byte(a))
}
