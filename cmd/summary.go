package cmd

import (
	"github.com/spf13/cobra"

	"github.com/manav03panchal/fintrack/internal/state"
)

var summaryFlagAll bool

// summaryCmd prints income, spending and balance for a month.
var summaryCmd = &cobra.Command{
	Use:     "summary [MONTH]",
	Aliases: []string{"sum", "s"},
	Short:   "Show income, spending and balance",
	Long: `Show totals and spending by category for one month.

MONTH defaults to the current month and accepts "last month", "2024-03"
or "March 2024". Use --all for every recorded transaction.

Examples:
  fintrack summary
  fintrack summary last month
  fintrack summary --all`,
	RunE: runSummary,
}

func init() {
	summaryCmd.Flags().BoolVarP(&summaryFlagAll, "all", "a", false, "Summarize all transactions")
	summaryCmd.ValidArgsFunction = completeMonths
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	snap := ctx.State.Snapshot()

	month := ""
	if !summaryFlagAll {
		res, err := parseMonthArgs(args)
		if err != nil {
			return err
		}
		month = res.Month
	}

	sum := state.Summarize(snap.Transactions, month)
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintSummary(sum, snap.Currency)
	}
	ctx.CLIFormatter().PrintSummary(sum, snap.Currency)
	return nil
}
