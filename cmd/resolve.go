package cmd

import (
	"fmt"
	"strings"

	"github.com/manav03panchal/fintrack/internal/errors"
	"github.com/manav03panchal/fintrack/internal/model"
	"github.com/manav03panchal/fintrack/internal/parser"
)

// resolveID finds the item whose id equals or starts with ref. Listings
// show shortened ids, so a unique prefix is enough.
func resolveID[T any](ref string, items []T, idOf func(T) string, what string) (T, error) {
	var zero T
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return zero, errors.NewUserError(what+" id is required", "")
	}

	var matches []T
	for _, it := range items {
		id := idOf(it)
		if id == ref {
			return it, nil
		}
		if strings.HasPrefix(id, ref) {
			matches = append(matches, it)
		}
	}

	switch len(matches) {
	case 0:
		return zero, fmt.Errorf("%w: %s %s", errors.ErrNotFound, what, ref)
	case 1:
		return matches[0], nil
	default:
		return zero, errors.NewUserErrorWithField("id", ref,
			fmt.Sprintf("ambiguous %s id, %d matches", what, len(matches)),
			"Type more characters of the id.")
	}
}

func resolveTransaction(ref string) (model.Transaction, error) {
	return resolveID(ref, ctx.State.Snapshot().Transactions,
		func(tx model.Transaction) string { return tx.ID }, "transaction")
}

func resolveNotification(ref string) (model.Notification, error) {
	return resolveID(ref, ctx.State.Snapshot().Notifications,
		func(n model.Notification) string { return n.ID }, "reminder")
}

// parseMonthArgs parses a month from the remaining arguments; none means
// the current month.
func parseMonthArgs(args []string) (parser.MonthResult, error) {
	res := parser.ParseMonth(strings.Join(args, " "), ctx.Clock.Now())
	if res.Error != nil {
		return res, res.Error
	}
	return res, nil
}
