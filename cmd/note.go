package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/manav03panchal/fintrack/internal/model"
	"github.com/manav03panchal/fintrack/internal/parser"
	"github.com/manav03panchal/fintrack/internal/validate"
)

var noteFlagMonth string

// noteCmd groups the monthly note commands.
var noteCmd = &cobra.Command{
	Use:     "note",
	Aliases: []string{"notes", "n"},
	Short:   "Keep notes for a month",
	Long: `Keep free text or a list of items for each calendar month.

--month accepts "this month", "last month", "2024-03" or "March 2024"
and defaults to the current month. Months are numbered 1 to 12.

Examples:
  fintrack note add "Cancel the gym membership"
  fintrack note add -m "last month" "Car insurance went up"
  fintrack note set "Saving for a bike"
  fintrack note show
  fintrack note rm 3f2a9c1b
  fintrack note clear -m 2024-02`,
	RunE: runNoteShow,
}

var noteShowCmd = &cobra.Command{
	Use:     "show",
	Aliases: []string{"ls"},
	Short:   "Show notes; every month unless --month is given",
	RunE:    runNoteShow,
}

var noteSetCmd = &cobra.Command{
	Use:         "set TEXT...",
	Short:       "Replace a month's note with free text",
	Args:        cobra.MinimumNArgs(1),
	Annotations: writes(),
	RunE:        runNoteSet,
}

var noteAddCmd = &cobra.Command{
	Use:         "add TEXT...",
	Short:       "Append an item to a month's notes",
	Args:        cobra.MinimumNArgs(1),
	Annotations: writes(),
	RunE:        runNoteAdd,
}

var noteRemoveCmd = &cobra.Command{
	Use:         "rm ITEM_ID",
	Aliases:     []string{"remove"},
	Short:       "Remove one item from a month's notes",
	Args:        cobra.ExactArgs(1),
	Annotations: writes(),
	RunE:        runNoteRemove,
}

var noteClearCmd = &cobra.Command{
	Use:         "clear",
	Short:       "Delete a month's notes",
	Args:        cobra.NoArgs,
	Annotations: writes(),
	RunE:        runNoteClear,
}

func init() {
	noteCmd.PersistentFlags().StringVarP(&noteFlagMonth, "month", "m", "", "Month (default: this month)")

	noteCmd.AddCommand(noteShowCmd)
	noteCmd.AddCommand(noteSetCmd)
	noteCmd.AddCommand(noteAddCmd)
	noteCmd.AddCommand(noteRemoveCmd)
	noteCmd.AddCommand(noteClearCmd)
	rootCmd.AddCommand(noteCmd)
}

// noteMonth returns the note key selected by --month.
func noteMonth() (string, error) {
	res := parser.ParseMonth(noteFlagMonth, ctx.Clock.Now())
	if res.Error != nil {
		return "", res.Error
	}
	return res.Key, nil
}

func runNoteShow(cmd *cobra.Command, args []string) error {
	notes := ctx.State.Snapshot().Notes

	if noteFlagMonth == "" {
		if ctx.IsJSON() {
			return ctx.JSONFormatter().PrintNotes(notes)
		}
		ctx.CLIFormatter().PrintAllNotes(notes)
		return nil
	}

	key, err := noteMonth()
	if err != nil {
		return err
	}
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintNotes(map[string][]model.NoteItem{key: notes[key]})
	}
	ctx.CLIFormatter().PrintNotes(key, notes[key])
	return nil
}

func runNoteSet(cmd *cobra.Command, args []string) error {
	key, err := noteMonth()
	if err != nil {
		return err
	}
	text := validate.SanitizeNote(strings.Join(args, " "))
	if err := ctx.State.UpdateNote(cmd.Context(), key, model.TextNote(text)); err != nil {
		return err
	}
	return printNotesAfter(key, "Note saved")
}

func runNoteAdd(cmd *cobra.Command, args []string) error {
	key, err := noteMonth()
	if err != nil {
		return err
	}
	text := validate.SanitizeNote(strings.Join(args, " "))
	if _, err := ctx.State.AddNoteItem(cmd.Context(), key, text); err != nil {
		return err
	}
	return printNotesAfter(key, "Note added")
}

func runNoteRemove(cmd *cobra.Command, args []string) error {
	key, err := noteMonth()
	if err != nil {
		return err
	}
	item, err := resolveID(args[0], ctx.State.Snapshot().Notes[key],
		func(it model.NoteItem) string { return it.ID }, "note item")
	if err != nil {
		return err
	}
	if err := ctx.State.RemoveNoteItem(cmd.Context(), key, item.ID); err != nil {
		return err
	}
	return printNotesAfter(key, "Note removed")
}

func runNoteClear(cmd *cobra.Command, args []string) error {
	key, err := noteMonth()
	if err != nil {
		return err
	}
	if err := ctx.State.UpdateNote(cmd.Context(), key, model.TextNote("")); err != nil {
		return err
	}
	return printNotesAfter(key, "Notes cleared")
}

func printNotesAfter(key, message string) error {
	items := ctx.State.Snapshot().Notes[key]
	if ctx.IsJSON() {
		return ctx.JSONFormatter().PrintNotes(map[string][]model.NoteItem{key: items})
	}
	cli := ctx.CLIFormatter()
	cli.Success(message)
	cli.PrintNotes(key, items)
	return nil
}
