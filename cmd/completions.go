package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

// completeTransactionIDs completes transaction IDs, described by amount and
// description.
func completeTransactionIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 || ctx == nil || ctx.State == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var completions []string
	for _, tx := range ctx.State.Snapshot().Transactions {
		if strings.HasPrefix(tx.ID, toComplete) {
			completions = append(completions, tx.ID+"\t"+tx.Date+" "+tx.Description)
		}
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}

// completeReminderIDs completes reminder IDs, described by time and message.
func completeReminderIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 || ctx == nil || ctx.State == nil {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var completions []string
	for _, n := range ctx.State.Snapshot().Notifications {
		if strings.HasPrefix(n.ID, toComplete) {
			completions = append(completions, n.ID+"\t"+n.Time+" "+n.Message)
		}
	}
	return completions, cobra.ShellCompDirectiveNoFileComp
}

// completeMonths suggests relative month expressions.
func completeMonths(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	months := []string{
		"this month\tcurrent month",
		"last month\tprevious month",
	}

	var filtered []string
	for _, m := range months {
		if strings.HasPrefix(strings.Split(m, "\t")[0], toComplete) {
			filtered = append(filtered, m)
		}
	}
	return filtered, cobra.ShellCompDirectiveNoFileComp
}
