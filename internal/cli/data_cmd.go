package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/PreChart2DB/internal/analysis"
	"github.com/JonMunkholm/PreChart2DB/internal/core"
	"github.com/JonMunkholm/PreChart2DB/internal/dbsync"
	"github.com/JonMunkholm/PreChart2DB/internal/importer"
)

// loadFlags are the file reading options shared by the data commands.
type loadFlags struct {
	delimiter string
	encoding  string
	sheet     string
	table     string
}

func (f *loadFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.delimiter, "delimiter", "d", importer.DefaultDelimiter, `CSV delimiter ("," ";" or "tab")`)
	cmd.Flags().StringVarP(&f.encoding, "encoding", "e", importer.DefaultEncoding, "File encoding ("+strings.Join(importer.Encodings, ", ")+")")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Excel sheet (default: first sheet)")
	cmd.Flags().StringVarP(&f.table, "table", "t", "", "Target table (default: file name)")
}

func (f *loadFlags) options() importer.Options {
	delim := f.delimiter
	if delim == "tab" || delim == `\t` {
		delim = "\t"
	}
	return importer.Options{Delimiter: delim, Encoding: f.encoding, Sheet: f.sheet}
}

// loadSession reads path into a new session and applies the table flag.
func (a *app) loadSession(ctx context.Context, path string, f *loadFlags) (*core.Session, error) {
	sess := a.service.Sessions().Create()
	if err := a.service.LoadFile(ctx, sess, importer.FromPath(path), f.options()); err != nil {
		return nil, err
	}
	if f.table != "" {
		a.service.SetTableName(sess, f.table)
	}
	return sess, nil
}

func newLoadCmd(a *app) *cobra.Command {
	var (
		f    loadFlags
		head int
	)

	cmd := &cobra.Command{
		Use:   "load FILE",
		Short: "Read a file and print its summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.loadSession(cmd.Context(), args[0], &f)
			if err != nil {
				return err
			}
			if head <= 0 {
				head = a.cfg.Visualization.HeadRows
			}
			return printSummary(cmd.OutOrStdout(), sess, head)
		},
	}
	f.register(cmd)
	cmd.Flags().IntVarP(&head, "head", "n", 0, "Rows to print (default: VIS_HEAD_ROWS)")
	return cmd
}

func printSummary(w io.Writer, sess *core.Session, head int) error {
	var out strings.Builder
	sess.View(func(st core.State) {
		s := analysis.Summarize(st.Table)
		fmt.Fprintf(&out, "%s → %s\n", st.FileName, dbsync.SanitizeTableName(st.TableName))
		fmt.Fprintf(&out, "%d rows, %d columns, %d missing values\n\n", s.Rows, s.Columns, s.Missing)

		info := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("column", "kind", "non-null", "missing")
		for _, c := range s.Info {
			info.Row(c.Name, c.Kind.String(), fmt.Sprint(c.NonNull), fmt.Sprint(c.Missing))
		}
		out.WriteString(info.Render())
		out.WriteString("\n\n")

		rows := table.New().
			Border(lipgloss.NormalBorder()).
			Headers(st.Table.ColumnNames()...).
			Rows(analysis.Head(st.Table, head)...)
		out.WriteString(rows.Render())
		out.WriteString("\n")
	})
	_, err := io.WriteString(w, out.String())
	return err
}

func newWriteCmd(a *app, mode string) *cobra.Command {
	var (
		f   loadFlags
		yes bool
	)

	short := "Append the rows the database table lacks"
	if mode == core.ModeOverwrite {
		short = "Drop and recreate the database table from a file"
	}

	cmd := &cobra.Command{
		Use:   mode + " FILE",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.loadSession(cmd.Context(), args[0], &f)
			if err != nil {
				return err
			}

			if mode == core.ModeOverwrite && !yes {
				st := sess.Snapshot()
				question := fmt.Sprintf("Drop and recreate table '%s' on %s? [y/N] ",
					dbsync.SanitizeTableName(st.TableName), st.Conn)
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), question)
				if err != nil {
					return err
				}
				if !ok {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Overwrite cancelled.")
					return nil
				}
			}

			var res dbsync.Result
			if mode == core.ModeOverwrite {
				res = a.service.Overwrite(cmd.Context(), sess)
			} else {
				res = a.service.Append(cmd.Context(), sess)
			}
			if res.Err != nil {
				return res.Err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return err
		},
	}
	f.register(cmd)
	if mode == core.ModeOverwrite {
		cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	}
	return cmd
}

// confirm asks question and reports whether the answer was y or yes.
func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	_, _ = fmt.Fprint(out, question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read confirmation: %w", err)
	}
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes", nil
}

func newPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the database connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess := a.service.Sessions().Create()
			if err := a.service.TestConnection(cmd.Context(), sess); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), sess.Log.Last())
			return err
		},
	}
}
