package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/fintrack/internal/model"
	"github.com/manav03panchal/fintrack/internal/notify"
	"github.com/manav03panchal/fintrack/internal/parser"
	"github.com/manav03panchal/fintrack/internal/validate"
)

// Remind command flags.
var (
	remindFlagRepeat   string
	remindFlagTime     string
	remindFlagMessage  string
	remindFlagDisabled bool
	remindFlagEnable   bool
	remindFlagDisable  bool
)

// remindCmd represents the remind command.
var remindCmd = &cobra.Command{
	Use:     "remind",
	Aliases: []string{"r", "rem"},
	Short:   "Manage daily reminders",
	Long: `Create and manage reminders to log your transactions.

Reminders fire at a wall-clock time. Daily reminders fire every day; the
other kinds fire once and stay stored until removed. A running daemon
delivers them (see 'fintrack daemon').

Time formats: "20:00", "8:30", "8pm", "noon"

Examples:
  fintrack remind add 20:00 "Log today's expenses"
  fintrack remind add 9am "Pay rent" --repeat once
  fintrack remind edit 3f2a9c1b --time 21:00
  fintrack remind edit 3f2a9c1b --disable
  fintrack remind ls
  fintrack remind test`,
	RunE: runRemindList,
}

var remindAddCmd = &cobra.Command{
	Use:         "add [TIME] [MESSAGE...]",
	Short:       "Create a reminder",
	Annotations: writes(),
	RunE:        runRemindAdd,
}

var remindEditCmd = &cobra.Command{
	Use:         "edit ID",
	Short:       "Change a reminder",
	Args:        cobra.ExactArgs(1),
	Annotations: writes(),
	RunE:        runRemindEdit,
}

var remindRemoveCmd = &cobra.Command{
	Use:         "rm ID",
	Aliases:     []string{"delete", "remove"},
	Short:       "Delete a reminder",
	Args:        cobra.ExactArgs(1),
	Annotations: writes(),
	RunE:        runRemindRemove,
}

var remindListCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List reminders with their next fire time",
	RunE:    runRemindList,
}

var remindTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test message through every configured channel",
	RunE:  runRemindTest,
}

func init() {
	remindAddCmd.Flags().StringVarP(&remindFlagRepeat, "repeat", "r", string(model.RecurDaily),
		"Recurrence: daily, weekly, monthly, once")
	remindAddCmd.Flags().BoolVar(&remindFlagDisabled, "disabled", false,
		"Store the reminder without arming it")

	remindEditCmd.Flags().StringVar(&remindFlagTime, "time", "", "New time")
	remindEditCmd.Flags().StringVarP(&remindFlagMessage, "message", "m", "", "New message")
	remindEditCmd.Flags().StringVarP(&remindFlagRepeat, "repeat", "r", "", "New recurrence")
	remindEditCmd.Flags().BoolVar(&remindFlagEnable, "enable", false, "Arm the reminder")
	remindEditCmd.Flags().BoolVar(&remindFlagDisable, "disable", false, "Disarm the reminder")
	remindEditCmd.MarkFlagsMutuallyExclusive("enable", "disable")

	// Dynamic completion
	remindEditCmd.ValidArgsFunction = completeReminderIDs
	remindRemoveCmd.ValidArgsFunction = completeReminderIDs

	remindCmd.AddCommand(remindAddCmd)
	remindCmd.AddCommand(remindEditCmd)
	remindCmd.AddCommand(remindRemoveCmd)
	remindCmd.AddCommand(remindListCmd)
	remindCmd.AddCommand(remindTestCmd)
	rootCmd.AddCommand(remindCmd)
}

func parseRecurrence(s string) (model.Recurrence, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if err := validate.Recurrence(s); err != nil {
		return "", err
	}
	return model.Recurrence(s), nil
}

func parseReminderTime(s string) (string, error) {
	return parser.ParseTimeOfDay(s, ctx.Clock.Now())
}

func runRemindAdd(cmd *cobra.Command, args []string) error {
	var n model.Notification
	n.Enabled = !remindFlagDisabled

	if len(args) > 0 {
		hhmm, err := parseReminderTime(args[0])
		if err != nil {
			return err
		}
		n.Time = hhmm
		n.Message = validate.SanitizeNote(strings.Join(args[1:], " "))
	}

	rec, err := parseRecurrence(remindFlagRepeat)
	if err != nil {
		return err
	}
	n.Recurrence = rec

	saved, err := ctx.State.AddNotification(cmd.Context(), n)
	if err != nil {
		return err
	}
	return printReminder(saved, "Reminder created")
}

func runRemindEdit(cmd *cobra.Command, args []string) error {
	n, err := resolveNotification(args[0])
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("time") {
		if n.Time, err = parseReminderTime(remindFlagTime); err != nil {
			return err
		}
	}
	if flags.Changed("message") {
		n.Message = validate.SanitizeNote(remindFlagMessage)
	}
	if flags.Changed("repeat") {
		if n.Recurrence, err = parseRecurrence(remindFlagRepeat); err != nil {
			return err
		}
	}
	if remindFlagEnable {
		n.Enabled = true
	}
	if remindFlagDisable {
		n.Enabled = false
	}

	if err := ctx.State.EditNotification(cmd.Context(), n); err != nil {
		return err
	}
	return printReminder(n, "Reminder updated")
}

func runRemindRemove(cmd *cobra.Command, args []string) error {
	n, err := resolveNotification(args[0])
	if err != nil {
		return err
	}
	if err := ctx.State.RemoveNotification(cmd.Context(), n.ID); err != nil {
		return err
	}

	if ctx.IsJSON() {
		return ctx.Formatter.JSON(map[string]string{"status": "deleted", "id": n.ID})
	}
	ctx.CLIFormatter().Success("Deleted reminder at " + n.Time)
	return nil
}

func runRemindList(cmd *cobra.Command, args []string) error {
	ns := ctx.State.Snapshot().Notifications
	entries := ctx.Scheduler.Entries()

	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintNotifications(ns, entries)
	}
	ctx.CLIFormatter().PrintNotifications(ns, entries, ctx.Clock.Now())
	return nil
}

func runRemindTest(cmd *cobra.Command, args []string) error {
	if ctx.Channel.Len() == 0 {
		return fmt.Errorf("no delivery channels configured; enable notify.console or add a webhook")
	}
	msg := notify.NewTestMessage(ctx.Channel.Name(), ctx.Clock.Now())
	err := ctx.Channel.Deliver(cmd.Context(), msg)

	if ctx.IsJSON() {
		status := "sent"
		if err != nil {
			status = "failed"
		}
		return ctx.Formatter.JSON(map[string]any{"status": status, "channels": ctx.Channel.Len()})
	}
	if err != nil {
		return err
	}
	ctx.CLIFormatter().Success(fmt.Sprintf("Test message sent to %d channel(s)", ctx.Channel.Len()))
	return nil
}

func printReminder(n model.Notification, message string) error {
	entries := ctx.Scheduler.Entries()
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintNotifications([]model.Notification{n}, entries)
	}
	cli := ctx.CLIFormatter()
	cli.Success(message)
	cli.PrintNotifications([]model.Notification{n}, entries, ctx.Clock.Now())
	return nil
}
