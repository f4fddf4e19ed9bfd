package reporting

import (
	"fmt"
	"strings"
)

// RenderPairsCSV renders pair state as CSV string.
func RenderPairsCSV(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("pair,token0,token1,reserve0,reserve1,total_supply,reserve_eth,reserve_usd,")
	sb.WriteString("token0_price,token1_price,volume_usd,untracked_volume_usd,tx_count\n")

	// Rows
	for _, p := range r.Pairs {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%d\n",
			p.Address.Hex(),
			p.Token0.Hex(),
			p.Token1.Hex(),
			p.Reserve0,
			p.Reserve1,
			p.TotalSupply,
			p.ReserveETH,
			p.ReserveUSD,
			p.Token0Price,
			p.Token1Price,
			p.VolumeUSD,
			p.UntrackedVolumeUSD,
			p.TxCount,
		))
	}

	return sb.String()
}

// RenderPositionsCSV renders positions as CSV string.
func RenderPositionsCSV(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("user,token,outstanding,avg_cost_usd,consumed,realized_profit_usd,realized_loss_usd,")
	sb.WriteString("realized_net_usd,unrecognizable,sale_count,attribution_disproven\n")

	// Rows
	for _, p := range r.Positions {
		sb.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%s,%d,%t\n",
			p.User.Hex(),
			p.Token.Hex(),
			p.OutstandingQuantity,
			p.WeightedAverageCostUSD,
			p.ConsumedQuantity,
			p.RealizedProfitUSD,
			p.RealizedLossUSD,
			p.RealizedNetProceedsUSD,
			p.UnrecognizableQuantity,
			p.SaleCount,
			p.ContractAttributionDisproven,
		))
	}

	return sb.String()
}
