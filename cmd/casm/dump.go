package casm

import (
	"debug/dwarf"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"
)

var dumpTUI bool

var dumpCmd = &cobra.Command{
	Use:   "dump [path-prefix]",
	Short: "Decode and display a .debug_line program produced by build",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().BoolVar(&dumpTUI, "tui", false, "browse the decoded rows in a terminal UI")
}

type lineRow struct {
	File  string
	Line  int
	Col   int
	Addr  uint64
	Stmt  bool
	EndSeq bool
}

func runDump(cmd *cobra.Command, args []string) error {
	prefix := args[0]
	read := func(suffix string) []byte {
		b, _ := os.ReadFile(prefix + suffix)
		return b
	}

	data, err := dwarf.New(
		read(".debug_abbrev"),
		read(".debug_aranges"),
		nil,
		read(".debug_info"),
		read(".debug_line"),
		nil,
		nil,
		read(".debug_str"),
	)
	if err != nil {
		return fmt.Errorf("casm dump: %w", err)
	}

	rows, err := decodeRows(data)
	if err != nil {
		return fmt.Errorf("casm dump: %w", err)
	}

	if dumpTUI {
		return runDumpTUI(rows)
	}
	return printRows(cmd, rows)
}

// decodeRows walks every compile unit's line program with the standard
// library's debug/dwarf.LineReader, the same decoder a real consumer
// (a debugger, an objdump-alike) would use against our output.
func decodeRows(data *dwarf.Data) ([]lineRow, error) {
	var rows []lineRow
	r := data.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			return nil, err
		}
		if entry == nil {
			break
		}
		if entry.Tag != dwarf.TagCompileUnit {
			continue
		}
		lr, err := data.LineReader(entry)
		if err != nil {
			return nil, err
		}
		if lr == nil {
			continue
		}
		var le dwarf.LineEntry
		for {
			if err := lr.Next(&le); err != nil {
				break
			}
			rows = append(rows, lineRow{
				File:   fileName(le.File),
				Line:   le.Line,
				Col:    le.Column,
				Addr:   uint64(le.Address),
				Stmt:   le.IsStmt,
				EndSeq: le.EndSequence,
			})
		}
	}
	return rows, nil
}

func fileName(f *dwarf.LineFile) string {
	if f == nil {
		return "<unknown>"
	}
	return f.Name
}

func printRows(cmd *cobra.Command, rows []lineRow) error {
	addrColor := color.New(color.FgCyan)
	lineColor := color.New(color.FgYellow)
	fileColor := color.New(color.FgHiBlue)
	endColor := color.New(color.FgHiBlack)

	out := cmd.OutOrStdout()
	for _, row := range rows {
		if row.EndSeq {
			endColor.Fprintf(out, "0x%08x  (end of sequence)\n", row.Addr)
			continue
		}
		addrColor.Fprintf(out, "0x%08x", row.Addr)
		fmt.Fprint(out, "  ")
		fileColor.Fprintf(out, "%s", row.File)
		fmt.Fprint(out, ":")
		lineColor.Fprintf(out, "%d", row.Line)
		fmt.Fprintf(out, ":%d", row.Col)
		if row.Stmt {
			fmt.Fprint(out, "  [stmt]")
		}
		fmt.Fprintln(out)
	}
	return nil
}

// runDumpTUI launches a scrollable table over the decoded rows.
func runDumpTUI(rows []lineRow) error {
	table := tview.NewTable().SetBorders(false).SetFixed(1, 0)
	headers := []string{"Address", "File", "Line", "Col", "Stmt"}
	for col, h := range headers {
		table.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false))
	}
	for i, row := range rows {
		r := i + 1
		text := fmt.Sprintf("0x%08x", row.Addr)
		if row.EndSeq {
			text += " (end)"
		}
		table.SetCell(r, 0, tview.NewTableCell(text))
		table.SetCell(r, 1, tview.NewTableCell(row.File))
		table.SetCell(r, 2, tview.NewTableCell(fmt.Sprintf("%d", row.Line)))
		table.SetCell(r, 3, tview.NewTableCell(fmt.Sprintf("%d", row.Col)))
		stmt := ""
		if row.Stmt {
			stmt = "*"
		}
		table.SetCell(r, 4, tview.NewTableCell(stmt))
	}
	table.SetSelectable(true, false)
	table.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyEscape || event.Rune() == 'q' {
			return tcell.NewEventKey(tcell.KeyCtrlC, 0, tcell.ModCtrl)
		}
		return event
	})

	app := tview.NewApplication()
	return app.SetRoot(table, true).SetFocus(table).Run()
}
