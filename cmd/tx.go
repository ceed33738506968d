package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/fintrack/internal/model"
	"github.com/manav03panchal/fintrack/internal/parser"
	"github.com/manav03panchal/fintrack/internal/validate"
)

// Transaction command flags.
var (
	txFlagCategory string
	txFlagDate     string
	txFlagType     string
	txFlagAmount   string
	txFlagDesc     string
	txListCategory string
	txListLimit    int
)

// txCmd groups the transaction commands.
var txCmd = &cobra.Command{
	Use:     "tx",
	Aliases: []string{"t", "transaction"},
	Short:   "Record and list transactions",
	Long: `Record, edit and list income and expenses.

Amounts are expenses unless they start with "+" or --type income is given.
Put "--" before a negative amount so it is not read as a flag.

Examples:
  fintrack tx add 12.50 Lunch -c Food
  fintrack tx add +2500 Salary -c Salary -d "1 March 2024"
  fintrack tx add -- -40 Groceries -c Food -d yesterday
  fintrack tx ls "last month"
  fintrack tx edit 3f2a9c1b --amount 14.20
  fintrack tx rm 3f2a9c1b`,
	RunE: runTxList,
}

var txAddCmd = &cobra.Command{
	Use:         "add AMOUNT DESCRIPTION...",
	Short:       "Record a transaction",
	Args:        cobra.MinimumNArgs(1),
	Annotations: writes(),
	RunE:        runTxAdd,
}

var txEditCmd = &cobra.Command{
	Use:         "edit ID",
	Short:       "Change fields of a transaction",
	Args:        cobra.ExactArgs(1),
	Annotations: writes(),
	RunE:        runTxEdit,
}

var txRemoveCmd = &cobra.Command{
	Use:         "rm ID",
	Aliases:     []string{"delete", "remove"},
	Short:       "Delete a transaction",
	Args:        cobra.ExactArgs(1),
	Annotations: writes(),
	RunE:        runTxRemove,
}

var txListCmd = &cobra.Command{
	Use:     "ls [MONTH]",
	Aliases: []string{"list"},
	Short:   "List transactions, optionally for one month",
	Long: `List transactions newest first.

MONTH accepts "this month", "last month", "2024-03" or "March 2024".
Without it every transaction is listed.`,
	RunE: runTxList,
}

func init() {
	for _, c := range []*cobra.Command{txAddCmd, txEditCmd} {
		c.Flags().StringVarP(&txFlagCategory, "category", "c", "", "Category")
		c.Flags().StringVarP(&txFlagDate, "date", "d", "", "Date (default: today)")
		c.Flags().StringVarP(&txFlagType, "type", "t", "", "Type: income or expense")
	}
	txEditCmd.Flags().StringVarP(&txFlagAmount, "amount", "a", "", "New amount")
	txEditCmd.Flags().StringVar(&txFlagDesc, "desc", "", "New description")

	txListCmd.Flags().StringVarP(&txListCategory, "category", "c", "", "Only this category")
	txListCmd.Flags().IntVarP(&txListLimit, "limit", "n", 0, "Show at most N transactions")

	txEditCmd.ValidArgsFunction = completeTransactionIDs
	txRemoveCmd.ValidArgsFunction = completeTransactionIDs
	txListCmd.ValidArgsFunction = completeMonths

	txCmd.AddCommand(txAddCmd)
	txCmd.AddCommand(txEditCmd)
	txCmd.AddCommand(txRemoveCmd)
	txCmd.AddCommand(txListCmd)
	rootCmd.AddCommand(txCmd)
}

// applyAmount sets tx's amount and, when the input carried a sign, its type.
func applyAmount(tx *model.Transaction, input string) error {
	res := parser.ParseAmount(input)
	if res.Error != nil {
		return res.Error
	}
	tx.Amount, _ = res.Amount.Abs().Float64()
	if res.Type != "" {
		tx.Type = res.Type
	}
	return nil
}

func applyTxFlags(cmd *cobra.Command, tx *model.Transaction) error {
	flags := cmd.Flags()
	if flags.Changed("type") {
		typ := strings.ToLower(strings.TrimSpace(txFlagType))
		if err := validate.TxType(typ); err != nil {
			return err
		}
		tx.Type = model.TxType(typ)
	}
	if flags.Changed("category") {
		tx.Category = validate.SanitizeLabel(txFlagCategory)
	}
	if flags.Changed("date") {
		res := parser.ParseDate(txFlagDate, ctx.Clock.Now())
		if res.Error != nil {
			return res.Error
		}
		tx.Date = res.Date
	}
	return nil
}

func runTxAdd(cmd *cobra.Command, args []string) error {
	var tx model.Transaction
	if err := applyAmount(&tx, args[0]); err != nil {
		return err
	}
	tx.Description = validate.SanitizeNote(strings.Join(args[1:], " "))

	// The explicit --type flag wins over the amount's sign.
	if err := applyTxFlags(cmd, &tx); err != nil {
		return err
	}

	saved, err := ctx.State.AddTransaction(cmd.Context(), tx)
	if err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintTransaction("created", saved)
	}
	cli := ctx.CLIFormatter()
	cli.Success("Transaction recorded")
	cli.PrintTransaction(saved, ctx.State.Snapshot().Currency)
	return nil
}

func runTxEdit(cmd *cobra.Command, args []string) error {
	tx, err := resolveTransaction(args[0])
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("amount") {
		if err := applyAmount(&tx, txFlagAmount); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("desc") {
		tx.Description = validate.SanitizeNote(txFlagDesc)
	}
	if err := applyTxFlags(cmd, &tx); err != nil {
		return err
	}

	if err := ctx.State.EditTransaction(cmd.Context(), tx); err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintTransaction("updated", tx)
	}
	cli := ctx.CLIFormatter()
	cli.Success("Transaction updated")
	cli.PrintTransaction(tx, ctx.State.Snapshot().Currency)
	return nil
}

func runTxRemove(cmd *cobra.Command, args []string) error {
	tx, err := resolveTransaction(args[0])
	if err != nil {
		return err
	}
	if err := ctx.State.DeleteTransaction(cmd.Context(), tx.ID); err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintTransaction("deleted", tx)
	}
	ctx.CLIFormatter().Success("Deleted: " + tx.Description)
	return nil
}

func runTxList(cmd *cobra.Command, args []string) error {
	snap := ctx.State.Snapshot()

	month := ""
	if len(args) > 0 {
		res, err := parseMonthArgs(args)
		if err != nil {
			return err
		}
		month = res.Month
	}

	var txs []model.Transaction
	for _, tx := range snap.Transactions {
		if month != "" && tx.Month() != month {
			continue
		}
		if txListCategory != "" && !strings.EqualFold(tx.Category, txListCategory) {
			continue
		}
		txs = append(txs, tx)
	}
	total := len(txs)
	if txListLimit > 0 && len(txs) > txListLimit {
		txs = txs[:txListLimit]
	}

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintTransactions(txs, snap.Currency, total)
	}
	cli := ctx.CLIFormatter()
	cli.PrintTransactions(txs, snap.Currency)
	if len(txs) < total {
		cli.Muted(fmt.Sprintf("Showing %d of %d.", len(txs), total))
	}
	return nil
}
