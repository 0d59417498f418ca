package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/Fallback-Solutions/universal-router/internal/app"
	"github.com/Fallback-Solutions/universal-router/internal/config"
	"github.com/Fallback-Solutions/universal-router/internal/eth"
	"github.com/Fallback-Solutions/universal-router/internal/ledger"
	"github.com/Fallback-Solutions/universal-router/internal/logging"
	"github.com/Fallback-Solutions/universal-router/internal/router"
)

// planFile is a pre-encoded plan, the same shape the API accepts
type planFile struct {
	Commands hexutil.Bytes   `json:"commands"`
	Inputs   []hexutil.Bytes `json:"inputs"`
	Caller   common.Address  `json:"caller"`
	Amount   string          `json:"amount"`
}

var swapCommands = map[string][2]router.Command{
	"uniswap-v2":     {router.V2SwapExactIn, router.V2SwapExactOut},
	"uniswap-v3":     {router.V3SwapExactIn, router.V3SwapExactOut},
	"pancakeswap-v3": {router.PancakeV3SwapExactIn, router.PancakeV3SwapExactOut},
	"sushiswap-v3":   {router.SushiV3SwapExactIn, router.SushiV3SwapExactOut},
	"sushiswap-v2":   {router.SushiV2SwapExactIn, router.SushiV2SwapExactOut},
}

func resolveToken(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if info, ok := eth.KnownTokens[strings.ToUpper(s)]; ok {
		return info.Address, nil
	}
	if common.IsHexAddress(s) {
		return common.HexToAddress(s), nil
	}
	return common.Address{}, fmt.Errorf("unknown token %q", s)
}

// buildSwap turns the flag form into a one-command plan
func buildSwap(protocol, tokens, fees string, amount *big.Int, exactOut bool) ([]byte, [][]byte, error) {
	cmds, ok := swapCommands[protocol]
	if !ok {
		return nil, nil, fmt.Errorf("unknown protocol %q", protocol)
	}

	var path []common.Address
	for _, t := range strings.Split(tokens, ",") {
		addr, err := resolveToken(t)
		if err != nil {
			return nil, nil, err
		}
		path = append(path, addr)
	}

	cmd := cmds[0]
	if exactOut {
		cmd = cmds[1]
	}
	p := router.NewPlanner()

	if strings.HasSuffix(protocol, "-v2") {
		return p.SwapV2(cmd, ledger.MsgSender, amount, path).Plan()
	}

	var feeTiers []uint32
	for _, f := range strings.Split(fees, ",") {
		n, err := strconv.ParseUint(strings.TrimSpace(f), 10, 24)
		if err != nil {
			return nil, nil, fmt.Errorf("bad fee %q: %w", f, err)
		}
		feeTiers = append(feeTiers, uint32(n))
	}
	if exactOut {
		// exact output paths are encoded output first
		for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
			path[i], path[j] = path[j], path[i]
		}
		for i, j := 0, len(feeTiers)-1; i < j; i, j = i+1, j-1 {
			feeTiers[i], feeTiers[j] = feeTiers[j], feeTiers[i]
		}
	}
	packed, err := router.EncodePath(path, feeTiers)
	if err != nil {
		return nil, nil, err
	}
	return p.SwapV3(cmd, ledger.MsgSender, amount, packed).Plan()
}

func main() {
	planPath := flag.String("plan", "", "JSON plan file {commands, inputs, caller, amount}")
	protocol := flag.String("protocol", "uniswap-v2", "protocol for a single swap: uniswap-v2|uniswap-v3|pancakeswap-v3|sushiswap-v3|sushiswap-v2")
	tokens := flag.String("tokens", "WETH,USDC", "comma separated path, symbols or addresses")
	fees := flag.String("fees", "3000", "comma separated fee tiers for v3-style paths")
	amountStr := flag.String("amount", "1000000000000000000", "amount in base units (input, or output with --exact-out)")
	startStr := flag.String("start", "", "opening balance, defaults to --amount or, with --exact-out, to the required input")
	exactOut := flag.Bool("exact-out", false, "quote an exact output swap")
	callerStr := flag.String("caller", "0x000000000000000000000000000000000000dEaD", "caller identity")
	offline := flag.Bool("offline", false, "quote from the sqlite cache only")
	flag.Parse()

	cfg := config.Load()
	logger := logging.New(cfg.LogLevel)

	var (
		commands []byte
		inputs   [][]byte
		caller   = common.HexToAddress(*callerStr)
		start    *uint256.Int
	)

	if *planPath != "" {
		raw, err := os.ReadFile(*planPath)
		if err != nil {
			logger.WithError(err).Fatal("read plan")
		}
		var pf planFile
		if err := json.Unmarshal(raw, &pf); err != nil {
			logger.WithError(err).Fatal("parse plan")
		}
		commands = pf.Commands
		for _, in := range pf.Inputs {
			inputs = append(inputs, in)
		}
		if pf.Caller != (common.Address{}) {
			caller = pf.Caller
		}
		if start, err = uint256.FromDecimal(pf.Amount); err != nil {
			logger.WithError(err).Fatal("plan amount")
		}
	} else {
		amount, ok := new(big.Int).SetString(*amountStr, 10)
		if !ok {
			logger.Fatalf("bad amount %q", *amountStr)
		}
		var err error
		if commands, inputs, err = buildSwap(*protocol, *tokens, *fees, amount, *exactOut); err != nil {
			logger.WithError(err).Fatal("build plan")
		}
		// an exact output quote must spend its opening balance exactly, so
		// without --start it is sized once the router is open
		startDec := *startStr
		if startDec == "" && !*exactOut {
			startDec = *amountStr
		}
		if startDec != "" {
			if start, err = uint256.FromDecimal(startDec); err != nil {
				logger.WithError(err).Fatal("opening balance")
			}
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.RPCTimeout)
	defer cancel()

	rt, err := app.Open(ctx, cfg, logger, *offline)
	if err != nil {
		logger.WithError(err).Fatal("open router")
	}
	defer rt.Close()

	if start == nil {
		if start, err = rt.Router.RequiredInput(ctx, caller, router.Command(commands[0]), inputs[0]); err != nil {
			fmt.Printf("\n❌ Sizing exact output failed (%s): %v\n", router.ErrorKind(err), err)
			rt.Close()
			os.Exit(1)
		}
		fmt.Printf("💰 Required input: %s\n", start.Dec())
	}

	fmt.Printf("🔎 Quoting %d command(s) at block %d...\n", len(commands), rt.Block)
	for i, c := range commands {
		fmt.Printf("   %d. %s\n", i, router.Command(c))
	}

	t0 := time.Now()
	res, err := rt.Router.Quote(ctx, commands, inputs, caller, start)
	if err != nil {
		fmt.Printf("\n❌ Quote failed (%s): %v\n", router.ErrorKind(err), err)
		rt.Close()
		os.Exit(1)
	}

	fmt.Printf("\n✅ Quote (%s)\n", time.Since(t0).Round(time.Microsecond))
	fmt.Printf("   Token start:   %s\n", res.TokenStart.Hex())
	fmt.Printf("   Token end:     %s\n", res.TokenEnd.Hex())
	fmt.Printf("   Amount out:    %s\n", res.AmountOut.Dec())
	fmt.Printf("   Start left:    %s\n", res.FinalStartBalance.Dec())
	fmt.Printf("   Gas estimate:  %d\n", res.CostEstimate)

	if stats, err := rt.Cache.GetStats(); err == nil {
		fmt.Printf("   Cache:         %d pairs, %d pools, %d managed\n",
			stats["pair_entries"], stats["pool_entries"], stats["managed_pool_entries"])
	}
}
