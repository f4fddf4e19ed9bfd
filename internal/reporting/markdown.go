package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Replay Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if r.Source != "" {
		sb.WriteString(fmt.Sprintf("Source: %s | Blocks: %d - %d\n\n", r.Source, r.FromBlock, r.ToBlock))
	}

	// Events
	sb.WriteString("## Events\n\n")
	sb.WriteString("| Type | Count |\n")
	sb.WriteString("|------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Pairs created | %d |\n", r.Stats.PairsCreated))
	sb.WriteString(fmt.Sprintf("| Transfers | %d |\n", r.Stats.Transfers))
	sb.WriteString(fmt.Sprintf("| Syncs | %d |\n", r.Stats.Syncs))
	sb.WriteString(fmt.Sprintf("| Swaps | %d |\n", r.Stats.Swaps))
	sb.WriteString(fmt.Sprintf("| **Total** | %d |\n", r.Events))
	sb.WriteString("\n")

	// Factory
	if f := r.Factory; f != nil {
		sb.WriteString("## Factory\n\n")
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Pairs | %d |\n", f.PairCount))
		sb.WriteString(fmt.Sprintf("| Transactions | %d |\n", f.TxCount))
		sb.WriteString(fmt.Sprintf("| Volume USD | %s |\n", f.TotalVolumeUSD.StringFixed(2)))
		sb.WriteString(fmt.Sprintf("| Volume ETH | %s |\n", f.TotalVolumeETH.StringFixed(6)))
		sb.WriteString(fmt.Sprintf("| Untracked volume USD | %s |\n", f.UntrackedVolumeUSD.StringFixed(2)))
		sb.WriteString(fmt.Sprintf("| Liquidity USD | %s |\n", f.TotalLiquidityUSD.StringFixed(2)))
		sb.WriteString("\n")
	}

	// Pairs
	sb.WriteString("## Pairs\n\n")
	if len(r.Pairs) == 0 {
		sb.WriteString("No pairs.\n\n")
	} else {
		sb.WriteString("| Pair | Reserve0 | Reserve1 | Reserve USD | Volume USD | Txs |\n")
		sb.WriteString("|------|----------|----------|-------------|------------|-----|\n")
		for _, p := range r.Pairs {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %d |\n",
				p.Address.Hex(),
				p.Reserve0.String(),
				p.Reserve1.String(),
				p.ReserveUSD.StringFixed(2),
				p.VolumeUSD.StringFixed(2),
				p.TxCount,
			))
		}
		sb.WriteString("\n")
	}

	// Positions
	if len(r.Positions) > 0 {
		sb.WriteString(fmt.Sprintf("## Positions of %s\n\n", r.Positions[0].User.Hex()))
		sb.WriteString("| Token | Outstanding | Avg cost USD | Realized USD | Unrecognizable | Sales |\n")
		sb.WriteString("|-------|-------------|--------------|--------------|----------------|-------|\n")
		for _, p := range r.Positions {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s | %d |\n",
				p.Token.Hex(),
				p.OutstandingQuantity.String(),
				p.WeightedAverageCostUSD.StringFixed(6),
				p.RealizedNetProceedsUSD.StringFixed(2),
				p.UnrecognizableQuantity.String(),
				p.SaleCount,
			))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
