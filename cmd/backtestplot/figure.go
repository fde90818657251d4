package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"backtestplot/internal/figure"
	"backtestplot/internal/finance"
	"backtestplot/internal/openai"
)

func init() {
	rootCmd.AddCommand(newSizeCmd(), newRenderCmd(), newSummaryCmd())
}

func newSizeCmd() *cobra.Command {
	var fraction float64
	var rows, cols int
	cmd := &cobra.Command{
		Use:   "size [width]",
		Short: "Print figure dimensions in inches for a document width",
		Long: `Print the width and height in inches of a figure spanning a fraction of a
LaTeX document width. width is thesis, beamer or a width in points.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			width := cfg.Width
			if len(args) == 1 {
				width = args[0]
			}
			s, err := figure.SetSizeSubplots(width, fraction, rows, cols)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().Float64Var(&fraction, "fraction", 1, "Fraction of the document width")
	cmd.Flags().IntVar(&rows, "rows", 1, "Subplot rows")
	cmd.Flags().IntVar(&cols, "cols", 1, "Subplot columns")
	return cmd
}

// outputFormat picks the render format from --format, falling back to the
// extension of --out.
func outputFormat(fs *pflag.FlagSet) (string, error) {
	format, err := fs.GetString("format")
	if err != nil {
		return "", err
	}
	if fs.Changed("format") {
		return strings.ToLower(format), nil
	}
	out, err := fs.GetString("out")
	if err != nil {
		return "", err
	}
	if i := strings.LastIndex(out, "."); i >= 0 && out != "-" {
		return strings.ToLower(out[i+1:]), nil
	}
	return format, nil
}

// writeFigure renders b to out, which is either a file path or "-" for stdout.
func writeFigure(cmd *cobra.Command, b *finance.Batch, size figure.Size) error {
	out, _ := cmd.Flags().GetString("out")
	if out != "-" {
		if err := figure.SaveAs(out, b, size); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%s)\n", out, size)
		return nil
	}
	format, err := outputFormat(cmd.Flags())
	if err != nil {
		return err
	}
	w := bufio.NewWriter(cmd.OutOrStdout())
	if err := figure.Render(w, format, b, size); err != nil {
		return err
	}
	return w.Flush()
}

func addOutputFlags(fs *pflag.FlagSet, defaultOut string) {
	fs.StringP("out", "o", defaultOut, `Write the figure to this path ("-" for stdout)`)
	fs.StringP("format", "f", "pdf", "Format when writing to stdout: pdf, png or svg")
}

func newRenderCmd() *cobra.Command {
	var sf sizeFlags
	var save, show bool
	cmd := &cobra.Command{
		Use:   "render <batch.json>",
		Short: "Render the cumulative returns and weights figure",
		Long: `Render the 2x2 figure of a batch: mean cumulative return with best and worst
bands, and the stacked weights of the mean, best and worst runs.

Without --out the figure is written to ` + figure.DefaultPath + ` when --save is
given (the directory must exist) or opened in the system viewer otherwise.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readBatchFile(args[0])
			if err != nil {
				return err
			}
			size, err := sf.size()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("out") {
				return writeFigure(cmd, b, size)
			}
			if show && save {
				return fmt.Errorf("--save and --show are exclusive")
			}
			if err := figure.PlotCumulativeReturnsAndWeights(b, save, size); err != nil {
				return err
			}
			if save {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %s (%s)\n", figure.DefaultPath, size)
			}
			return nil
		},
	}
	sf.register(cmd)
	addOutputFlags(cmd.Flags(), "")
	cmd.Flags().BoolVar(&save, "save", false, "Save to "+figure.DefaultPath)
	cmd.Flags().BoolVar(&show, "show", false, "Open the figure in the system viewer (default without --save)")
	return cmd
}

// renderMarkdown styles md for a terminal, or returns it unchanged when
// stdout is not one.
func renderMarkdown(out io.Writer, md string) string {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return md
	}
	styled, err := glamour.Render(md, "dark")
	if err != nil {
		log.Warn().Err(err).Msg("markdown render failed")
		return md
	}
	return styled
}

func newSummaryCmd() *cobra.Command {
	var comment bool
	cmd := &cobra.Command{
		Use:   "summary <batch.json>",
		Short: "Print statistics of the mean, best and worst runs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readBatchFile(args[0])
			if err != nil {
				return err
			}
			return printSummary(cmd, b, comment)
		},
	}
	cmd.Flags().BoolVar(&comment, "comment", false, "Append an AI-written commentary")
	return cmd
}

// printSummary writes the markdown statistics of b, optionally followed by a
// commentary from the configured chat model.
func printSummary(cmd *cobra.Command, b *finance.Batch, comment bool) error {
	s, err := finance.Summarize(b)
	if err != nil {
		return err
	}
	md := finance.MarkdownSummary(b, s)
	if comment {
		if cfg.OpenAIKey == "" {
			return fmt.Errorf("--comment needs OPENAI_API_KEY")
		}
		c, err := openai.NewNarrator(cfg.OpenAIKey, cfg.OpenAIModel).Comment(cmd.Context(), md)
		if err != nil {
			return err
		}
		md += "\n## Commentary\n\n" + c + "\n"
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), renderMarkdown(cmd.OutOrStdout(), md))
	return err
}
