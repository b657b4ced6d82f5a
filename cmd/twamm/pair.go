package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"twammEngine/internal/chain"
	"twammEngine/internal/config"
	"twammEngine/internal/model"
	"twammEngine/internal/pair"
)

func newPairCmd() *cobra.Command {
	pairCmd := &cobra.Command{
		Use:   "pair",
		Short: "Create and administer token pairs",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a token pair from a pair file",
		RunE:  command(runPairInit),
	}
	initCmd.Flags().String("pair-file", "", "pair definition (yaml, json or toml)")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print a pair and its pools",
		RunE:  command(runPairShow),
	}
	showCmd.Flags().Bool("balances", false, "read custody balances from the chain (requires --rpc)")

	feesCmd := &cobra.Command{
		Use:   "set-fees",
		Short: "Replace the fee and reward settings",
		RunE:  command(runSetFees),
	}
	feesCmd.Flags().Uint64("fee-numerator", 0, "withdrawal fee numerator")
	feesCmd.Flags().Uint64("fee-denominator", 1000, "withdrawal fee denominator")
	feesCmd.Flags().Uint64("settle-fee-numerator", 0, "settlement fee numerator")
	feesCmd.Flags().Uint64("settle-fee-denominator", 1000, "settlement fee denominator")
	feesCmd.Flags().Uint64("crank-reward-a", 0, "crank reward in token A")
	feesCmd.Flags().Uint64("crank-reward-b", 0, "crank reward in token B")

	limitsCmd := &cobra.Command{
		Use:   "set-limits",
		Short: "Replace the swap and settlement limits",
		RunE:  command(runSetLimits),
	}
	limitsCmd.Flags().Uint64("min-swap-amount-a", 0, "minimum routed swap in token A")
	limitsCmd.Flags().Uint64("min-swap-amount-b", 0, "minimum routed swap in token B")
	limitsCmd.Flags().String("max-swap-price-diff", "0", "maximum deviation of a routed price from the oracle")
	limitsCmd.Flags().String("max-unsettled-amount", "0", "maximum unsettled fraction after a routed crank")
	limitsCmd.Flags().String("min-time-till-expiration", "0", "fraction of the tenor after which pools stop taking deposits")

	tifCmd := &cobra.Command{
		Use:   "set-tif",
		Short: "Set the tenor of a pool slot",
		RunE:  command(runSetTimeInForce),
	}
	tifCmd.Flags().Int("index", 0, "slot index")
	tifCmd.Flags().Uint32("tif", 0, "tenor in seconds, 0 clears the slot")

	permsCmd := &cobra.Command{
		Use:   "set-permissions",
		Short: "Enable or disable pair entrypoints",
		RunE:  command(runSetPermissions),
	}
	permsCmd.Flags().Bool("allow-deposits", true, "allow placing orders")
	permsCmd.Flags().Bool("allow-withdrawals", true, "allow cancelling orders")
	permsCmd.Flags().Bool("allow-cranks", true, "allow cranks")
	permsCmd.Flags().Bool("allow-settlements", true, "allow external settlements")

	oracleCmd := &cobra.Command{
		Use:   "set-oracle",
		Short: "Replace the oracle settings of both tokens",
		RunE:  command(runSetOracle),
	}
	for _, side := range []string{"a", "b"} {
		oracleCmd.Flags().String("oracle-type-"+side, "test", "oracle type (test, chainlink)")
		oracleCmd.Flags().String("oracle-account-"+side, "", "oracle account")
		oracleCmd.Flags().String("max-price-error-"+side, "0", "maximum confidence to price ratio")
		oracleCmd.Flags().Uint32("max-price-age-"+side, 0, "maximum quote age in seconds")
	}

	authorityCmd := &cobra.Command{
		Use:   "set-crank-authority",
		Short: "Restrict cranks to one address, zero allows anyone",
		RunE:  command(runSetCrankAuthority),
	}
	authorityCmd.Flags().String("authority", "0x0000000000000000000000000000000000000000", "crank authority")

	withdrawCmd := &cobra.Command{
		Use:   "withdraw-fees",
		Short: "Move collected fees out of custody",
		RunE:  command(runWithdrawFees),
	}
	withdrawCmd.Flags().String("receiver", "", "fee receiver")
	withdrawCmd.Flags().Uint64("amount-a", 0, "token A to withdraw")
	withdrawCmd.Flags().Uint64("amount-b", 0, "token B to withdraw")

	pairCmd.AddCommand(initCmd, showCmd, feesCmd, limitsCmd, tifCmd, permsCmd, oracleCmd, authorityCmd, withdrawCmd)
	return pairCmd
}

func runPairInit(a *app, cmd *cobra.Command) error {
	file, _ := cmd.Flags().GetString("pair-file")
	params, err := config.LoadPair(file)
	if err != nil {
		return err
	}
	for _, tok := range []*pair.Token{&params.TokenA, &params.TokenB} {
		if tok.Decimals != 0 || a.chain == nil {
			continue
		}
		if tok.Decimals, err = chain.TokenDecimals(a.ctx, a.chain, tok.Mint); err != nil {
			return fmt.Errorf("decimals of %s: %w", tok.Mint.Hex(), err)
		}
		a.logger.Info("token decimals from chain", zap.String("mint", tok.Mint.Hex()), zap.Uint8("decimals", tok.Decimals))
	}

	tp, err := a.svc.InitTokenPair(a.ctx, params)
	if err != nil {
		return err
	}
	return a.print(tp)
}

type custodyBalance struct {
	Custody string `json:"custody"`
	Balance uint64 `json:"balance"`
}

func runPairShow(a *app, cmd *cobra.Command) error {
	addr, err := a.pair()
	if err != nil {
		return err
	}
	tp, err := a.svc.Pair(a.ctx, addr)
	if err != nil {
		return err
	}
	pools, err := a.svc.Pools(a.ctx, addr)
	if err != nil {
		return err
	}
	out := struct {
		Pair     *pair.TokenPair  `json:"pair"`
		Pools    []*model.Pool    `json:"pools"`
		Balances []custodyBalance `json:"balances,omitempty"`
	}{Pair: tp, Pools: pools}

	if withBalances, _ := cmd.Flags().GetBool("balances"); withBalances {
		if a.chain == nil {
			return fmt.Errorf("--balances requires --rpc")
		}
		for _, cfg := range []model.TokenConfig{tp.ConfigA, tp.ConfigB} {
			bal, err := chain.BalanceOf(a.ctx, a.chain, cfg.Mint, cfg.Custody)
			if err != nil {
				return fmt.Errorf("balance of %s: %w", cfg.Custody.Hex(), err)
			}
			out.Balances = append(out.Balances, custodyBalance{Custody: cfg.Custody.Hex(), Balance: bal})
		}
	}
	return a.print(out)
}

func runSetFees(a *app, cmd *cobra.Command) error {
	addr, err := a.pair()
	if err != nil {
		return err
	}
	f := cmd.Flags()
	var fees pair.Fees
	fees.FeeNumerator, _ = f.GetUint64("fee-numerator")
	fees.FeeDenominator, _ = f.GetUint64("fee-denominator")
	fees.SettleFeeNumerator, _ = f.GetUint64("settle-fee-numerator")
	fees.SettleFeeDenominator, _ = f.GetUint64("settle-fee-denominator")
	fees.CrankRewardA, _ = f.GetUint64("crank-reward-a")
	fees.CrankRewardB, _ = f.GetUint64("crank-reward-b")

	tp, err := a.svc.SetFees(a.ctx, addr, fees)
	if err != nil {
		return err
	}
	return a.print(tp)
}

func runSetLimits(a *app, cmd *cobra.Command) error {
	addr, err := a.pair()
	if err != nil {
		return err
	}
	f := cmd.Flags()
	var limits pair.Limits
	limits.MinSwapAmountA, _ = f.GetUint64("min-swap-amount-a")
	limits.MinSwapAmountB, _ = f.GetUint64("min-swap-amount-b")
	for name, dst := range map[string]*float64{
		"max-swap-price-diff":      &limits.MaxSwapPriceDiff,
		"max-unsettled-amount":     &limits.MaxUnsettledAmount,
		"min-time-till-expiration": &limits.MinTimeTillExpiration,
	} {
		raw, _ := f.GetString(name)
		if *dst, err = config.ParseFraction(raw); err != nil {
			return fmt.Errorf("--%s: %w", name, err)
		}
	}

	tp, err := a.svc.SetLimits(a.ctx, addr, limits)
	if err != nil {
		return err
	}
	return a.print(tp)
}

func runSetTimeInForce(a *app, cmd *cobra.Command) error {
	addr, err := a.pair()
	if err != nil {
		return err
	}
	index, _ := cmd.Flags().GetInt("index")
	tif, _ := cmd.Flags().GetUint32("tif")
	tp, err := a.svc.SetTimeInForce(a.ctx, addr, index, tif)
	if err != nil {
		return err
	}
	return a.print(tp)
}

func runSetPermissions(a *app, cmd *cobra.Command) error {
	addr, err := a.pair()
	if err != nil {
		return err
	}
	f := cmd.Flags()
	var p pair.Permissions
	p.AllowDeposits, _ = f.GetBool("allow-deposits")
	p.AllowWithdrawals, _ = f.GetBool("allow-withdrawals")
	p.AllowCranks, _ = f.GetBool("allow-cranks")
	p.AllowSettlements, _ = f.GetBool("allow-settlements")

	tp, err := a.svc.SetPermissions(a.ctx, addr, p)
	if err != nil {
		return err
	}
	return a.print(tp)
}

func oracleFlags(cmd *cobra.Command, side string) (pair.OracleSettings, error) {
	var o pair.OracleSettings
	f := cmd.Flags()
	kind, _ := f.GetString("oracle-type-" + side)
	if err := o.Type.UnmarshalText([]byte(kind)); err != nil {
		return o, err
	}
	if o.Type != model.OracleNone {
		account, err := addressFlag(cmd, "oracle-account-"+side)
		if err != nil {
			return o, err
		}
		o.Account = account
	}
	raw, _ := f.GetString("max-price-error-" + side)
	maxErr, err := config.ParseFraction(raw)
	if err != nil {
		return o, fmt.Errorf("--max-price-error-%s: %w", side, err)
	}
	o.MaxPriceError = maxErr
	o.MaxPriceAgeSec, _ = f.GetUint32("max-price-age-" + side)
	return o, nil
}

func runSetOracle(a *app, cmd *cobra.Command) error {
	addr, err := a.pair()
	if err != nil {
		return err
	}
	oa, err := oracleFlags(cmd, "a")
	if err != nil {
		return err
	}
	ob, err := oracleFlags(cmd, "b")
	if err != nil {
		return err
	}
	tp, err := a.svc.SetOracleConfig(a.ctx, addr, oa, ob)
	if err != nil {
		return err
	}
	return a.print(tp)
}

func runSetCrankAuthority(a *app, cmd *cobra.Command) error {
	addr, err := a.pair()
	if err != nil {
		return err
	}
	authority, err := addressFlag(cmd, "authority")
	if err != nil {
		return err
	}
	tp, err := a.svc.SetCrankAuthority(a.ctx, addr, authority)
	if err != nil {
		return err
	}
	return a.print(tp)
}

func runWithdrawFees(a *app, cmd *cobra.Command) error {
	addr, err := a.pair()
	if err != nil {
		return err
	}
	receiver, err := addressFlag(cmd, "receiver")
	if err != nil {
		return err
	}
	amountA, _ := cmd.Flags().GetUint64("amount-a")
	amountB, _ := cmd.Flags().GetUint64("amount-b")
	tp, err := a.svc.WithdrawFees(a.ctx, addr, receiver, amountA, amountB)
	if err != nil {
		return err
	}
	return a.print(tp)
}
