package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"twammEngine/internal/engine"
	"twammEngine/internal/model"
	"twammEngine/internal/price"
)

func newOracleCmd() *cobra.Command {
	oracleCmd := &cobra.Command{
		Use:   "oracle",
		Short: "Manage test oracle quotes",
	}

	setCmd := &cobra.Command{
		Use:   "set-price",
		Short: "Publish test oracle prices for both tokens of a pair",
		RunE:  command(runSetPrice),
	}
	for _, side := range []string{"a", "b"} {
		setCmd.Flags().String("price-"+side, "", "USD price, e.g. 2.5")
		setCmd.Flags().String("conf-"+side, "0", "confidence interval in USD")
	}
	setCmd.Flags().Int64("publish-time", 0, "unix publish time, 0 uses the engine clock")

	oracleCmd.AddCommand(setCmd)
	return oracleCmd
}

func quoteFlags(cmd *cobra.Command, side string, publishTime int64) (engine.TestQuote, error) {
	rawPrice, _ := cmd.Flags().GetString("price-" + side)
	p, err := price.Parse(rawPrice)
	if err != nil {
		return engine.TestQuote{}, fmt.Errorf("--price-%s: %w", side, err)
	}
	rawConf, _ := cmd.Flags().GetString("conf-" + side)
	conf, err := decimal.NewFromString(rawConf)
	if err != nil || conf.IsNegative() {
		return engine.TestQuote{}, fmt.Errorf("--conf-%s: invalid confidence %q", side, rawConf)
	}
	return engine.TestQuote{
		Price:       p.Mantissa,
		Exponent:    p.Exponent,
		Confidence:  uint64(conf.Shift(-p.Exponent).IntPart()),
		PublishTime: publishTime,
	}, nil
}

func runSetPrice(a *app, cmd *cobra.Command) error {
	addr, err := a.pair()
	if err != nil {
		return err
	}
	publishTime, _ := cmd.Flags().GetInt64("publish-time")
	if publishTime == 0 {
		if publishTime, err = a.clock.Now(a.ctx); err != nil {
			return err
		}
	}
	qa, err := quoteFlags(cmd, "a", publishTime)
	if err != nil {
		return err
	}
	qb, err := quoteFlags(cmd, "b", publishTime)
	if err != nil {
		return err
	}
	if err := a.svc.SetTestOraclePrice(a.ctx, addr, qa, qb); err != nil {
		return err
	}
	return a.print(map[string]engine.TestQuote{"a": qa, "b": qb})
}

func newOrderCmd() *cobra.Command {
	orderCmd := &cobra.Command{
		Use:   "order",
		Short: "Place, cancel and inspect orders",
	}

	placeCmd := &cobra.Command{
		Use:   "place",
		Short: "Deposit into the current or next pool of a tenor",
		RunE:  command(runPlaceOrder),
	}
	placeCmd.Flags().String("side", "", "order side (buy, sell)")
	placeCmd.Flags().Uint32("tif", 0, "tenor in seconds")
	placeCmd.Flags().Uint64("amount", 0, "deposit in base units")
	placeCmd.Flags().String("pool", "", "target pool, empty selects the current pool")

	cancelCmd := &cobra.Command{
		Use:   "cancel",
		Short: "Withdraw shares from an order",
		RunE:  command(runCancelOrder),
	}
	cancelCmd.Flags().String("order", "", "order address")
	cancelCmd.Flags().Uint64("lp-amount", 0, "shares to withdraw")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print an order",
		RunE:  command(runShowOrder),
	}
	showCmd.Flags().String("order", "", "order address")

	orderCmd.AddCommand(placeCmd, cancelCmd, showCmd)
	return orderCmd
}

func runPlaceOrder(a *app, cmd *cobra.Command) error {
	addr, err := a.pair()
	if err != nil {
		return err
	}
	owner, err := a.caller()
	if err != nil {
		return err
	}
	req := engine.PlaceOrderRequest{Pair: addr, Owner: owner}
	rawSide, _ := cmd.Flags().GetString("side")
	if err := req.Side.UnmarshalText([]byte(rawSide)); err != nil {
		return err
	}
	req.TimeInForce, _ = cmd.Flags().GetUint32("tif")
	req.Amount, _ = cmd.Flags().GetUint64("amount")
	if raw, _ := cmd.Flags().GetString("pool"); raw != "" {
		if req.Pool, err = addressFlag(cmd, "pool"); err != nil {
			return err
		}
	}

	res, err := a.svc.PlaceOrder(a.ctx, req)
	if err != nil {
		return err
	}
	return a.print(res)
}

func runCancelOrder(a *app, cmd *cobra.Command) error {
	addr, err := a.pair()
	if err != nil {
		return err
	}
	caller, err := a.caller()
	if err != nil {
		return err
	}
	order, err := addressFlag(cmd, "order")
	if err != nil {
		return err
	}
	lp, _ := cmd.Flags().GetUint64("lp-amount")
	res, err := a.svc.CancelOrder(a.ctx, engine.CancelOrderRequest{Pair: addr, Caller: caller, Order: order, LPAmount: lp})
	if err != nil {
		return err
	}
	return a.print(res)
}

func runShowOrder(a *app, cmd *cobra.Command) error {
	order, err := addressFlag(cmd, "order")
	if err != nil {
		return err
	}
	o, err := a.svc.Order(a.ctx, order)
	if err != nil {
		return err
	}
	return a.print(o)
}

func newSettleCmd() *cobra.Command {
	settleCmd := &cobra.Command{
		Use:   "settle",
		Short: "Supply the residual demand of a pair at the oracle price",
		RunE:  command(runSettle),
	}
	settleCmd.Flags().String("supply-side", "", "side supplied by the caller (buy pays token B, sell pays token A)")
	settleCmd.Flags().Uint64("min-in", 0, "minimum tokens paid in")
	settleCmd.Flags().Uint64("max-in", 0, "maximum tokens paid in")
	settleCmd.Flags().Uint64("worst-rate", 0, "minimum tokens received for max-in")
	return settleCmd
}

func runSettle(a *app, cmd *cobra.Command) error {
	addr, err := a.pair()
	if err != nil {
		return err
	}
	caller, err := a.caller()
	if err != nil {
		return err
	}
	req := engine.SettleRequest{Pair: addr, Caller: caller}
	rawSide, _ := cmd.Flags().GetString("supply-side")
	if err := req.SupplySide.UnmarshalText([]byte(rawSide)); err != nil {
		return err
	}
	if req.SupplySide == model.MatchingInternal {
		return fmt.Errorf("--supply-side must be buy or sell")
	}
	req.MinTokenAmountIn, _ = cmd.Flags().GetUint64("min-in")
	req.MaxTokenAmountIn, _ = cmd.Flags().GetUint64("max-in")
	req.WorstExchangeRate, _ = cmd.Flags().GetUint64("worst-rate")

	res, err := a.svc.Settle(a.ctx, req)
	if err != nil {
		return err
	}
	return a.print(res)
}

func newOutstandingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "outstanding",
		Short: "Print the signed residual demand of a pair",
		RunE: command(func(a *app, _ *cobra.Command) error {
			addr, err := a.pair()
			if err != nil {
				return err
			}
			amount, err := a.svc.GetOutstandingAmount(a.ctx, addr)
			if err != nil {
				return err
			}
			return a.print(map[string]interface{}{"pair": addr.Hex(), "outstanding": amount})
		}),
	}
}
