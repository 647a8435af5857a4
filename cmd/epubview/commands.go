package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/simp-lee/epubview/book"
	"github.com/simp-lee/epubview/config"
	"github.com/simp-lee/epubview/heal"
	"github.com/simp-lee/epubview/library"
	"github.com/simp-lee/epubview/render"
	"github.com/simp-lee/epubview/state"
)

var errArgs = errors.New("wrong number of arguments")

func commands() []*cli.Command {
	return []*cli.Command{
		{
			Name:         "import",
			Usage:        "Adds ePub file(s) to the library",
			ArgsUsage:    "FILE...",
			OnUsageError: usageErrorHandler,
			Action:       importBooks,
		},
		{
			Name:         "list",
			Usage:        "Lists books in the library",
			OnUsageError: usageErrorHandler,
			Action:       listBooks,
		},
		{
			Name:         "toc",
			Usage:        "Shows table of contents of a book",
			ArgsUsage:    "BOOK",
			OnUsageError: usageErrorHandler,
			Action:       showTOC,
		},
		{
			Name:         "chapters",
			Usage:        "Lists chapters of a book, optionally those whose title resembles TITLE",
			ArgsUsage:    "BOOK [TITLE]",
			OnUsageError: usageErrorHandler,
			Action:       listChapters,
		},
		{
			Name:         "render",
			Usage:        "Renders a chapter as a standalone HTML document",
			ArgsUsage:    "BOOK CHAPTER [DESTINATION]",
			OnUsageError: usageErrorHandler,
			Action:       renderChapter,
			Flags: []cli.Flag{
				&cli.FloatFlag{Name: "font-size", Usage: "override font size (px)"},
				&cli.FloatFlag{Name: "line-height", Usage: "override line height"},
				&cli.StringFlag{Name: "font-family", Usage: "override font `FAMILY`"},
				&cli.StringFlag{Name: "css", Usage: "append CSS from `FILE` to reader style"},
			},
			CustomHelpTemplate: fmt.Sprintf(`%s
CHAPTER:
    chapter path as listed by "chapters", may carry "#fragment" to scroll to

DESTINATION:
    file name to write document to, if absent - STDOUT
`, cli.CommandHelpTemplate),
		},
		{
			Name:         "book",
			Usage:        "Renders all chapters of a book into one HTML document",
			ArgsUsage:    "BOOK [DESTINATION]",
			OnUsageError: usageErrorHandler,
			Action:       renderBook,
		},
		{
			Name:         "text",
			Usage:        "Prints plain text of a chapter",
			ArgsUsage:    "BOOK CHAPTER",
			OnUsageError: usageErrorHandler,
			Action:       chapterText,
		},
		{
			Name:         "search",
			Usage:        "Searches book text",
			ArgsUsage:    "BOOK QUERY",
			OnUsageError: usageErrorHandler,
			Action:       searchBook,
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "case-sensitive", Aliases: []string{"cs"}, Usage: "match letter case"},
				&cli.BoolFlag{Name: "whole-word", Aliases: []string{"w"}, Usage: "match whole words only"},
				&cli.IntFlag{Name: "limit", Value: 50, Usage: "stop after `N` hits, 0 - no limit"},
			},
		},
		{
			Name:         "suggest",
			Usage:        "Suggests words of a book starting with PREFIX",
			ArgsUsage:    "BOOK PREFIX",
			OnUsageError: usageErrorHandler,
			Action:       suggestWords,
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "max", Value: 10, Usage: "return at most `N` words, 0 - no limit"},
			},
		},
		{
			Name:         "heal",
			Usage:        "Re-reads a damaged book from its source file",
			ArgsUsage:    "BOOK",
			OnUsageError: usageErrorHandler,
			Action:       healBook,
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "re-read even if book looks healthy"},
			},
		},
		{
			Name:         "prewarm",
			Usage:        "Renders every chapter of a book and reports cache state",
			ArgsUsage:    "BOOK",
			OnUsageError: usageErrorHandler,
			Action:       prewarmBook,
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "keys", Usage: "list cache keys"},
			},
		},
		{
			Name:  "dumpconfig",
			Usage: "Dumps either default or actual configuration (YAML)",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
			},
			OnUsageError: usageErrorHandler,
			Action:       outputConfiguration,
			ArgsUsage:    "DESTINATION",
			CustomHelpTemplate: fmt.Sprintf(`%s

DESTINATION:
    file name to write configuration to, if absent - STDOUT

Produces file with actual "active" configuration values which is composition of
default values and values specified in configuration file. To see default
configuration embedded into the program use --default flag.
`, cli.CommandHelpTemplate),
		},
	}
}

// openLibrary checks that the command got between lo and hi arguments and
// returns the library service.
func openLibrary(ctx context.Context, cmd *cli.Command, lo, hi int) (*state.LocalEnv, *library.Service, error) {
	if !argsWithin(cmd, lo, hi) {
		return nil, nil, fmt.Errorf("%s: %w", cmd.Name, errArgs)
	}
	env := state.EnvFromContext(ctx)
	lib, err := env.Library()
	if err != nil {
		return nil, nil, err
	}
	return env, lib, nil
}

// argsWithin checks the number of arguments, hi < 0 means no upper bound.
func argsWithin(cmd *cli.Command, lo, hi int) bool {
	n := cmd.Args().Len()
	return n >= lo && (hi < 0 || n <= hi)
}

func newTable(cmd *cli.Command) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.Root().Writer)
	tw.SetStyle(table.StyleLight)
	return tw
}

// writeOutput writes data to the named file, or to the program output when
// fname is empty.
func writeOutput(cmd *cli.Command, fname, data string) error {
	var out io.Writer = cmd.Root().Writer
	if len(fname) > 0 {
		f, err := os.Create(fname)
		if err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer f.Close()
		out = f
	}
	if _, err := io.WriteString(out, data); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}
	return nil
}

func importBooks(ctx context.Context, cmd *cli.Command) error {
	env, lib, err := openLibrary(ctx, cmd, 1, -1)
	if err != nil {
		return err
	}
	tw := newTable(cmd)
	tw.AppendHeader(table.Row{"ID", "Title", "Chapters"})
	var failed int
	for _, path := range cmd.Args().Slice() {
		b, err := lib.Import(ctx, path)
		if err != nil {
			env.Log.Error("Unable to import book", zap.String("file", path), zap.Error(err))
			failed++
			continue
		}
		tw.AppendRow(table.Row{b.ID, b.Title, len(b.Chapters)})
	}
	if tw.Length() > 0 {
		tw.Render()
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d book(s) not imported", failed, cmd.Args().Len())
	}
	return nil
}

func listBooks(ctx context.Context, cmd *cli.Command) error {
	_, lib, err := openLibrary(ctx, cmd, 0, 0)
	if err != nil {
		return err
	}
	books, err := lib.ListBooks(ctx)
	if err != nil {
		return err
	}
	tw := newTable(cmd)
	tw.AppendHeader(table.Row{"ID", "Title", "Author", "Chapters"})
	for _, b := range books {
		tw.AppendRow(table.Row{b.ID, b.Title, b.Author, b.Chapters})
	}
	tw.AppendFooter(table.Row{"", "", "Total", len(books)})
	tw.Render()
	return nil
}

func showTOC(ctx context.Context, cmd *cli.Command) error {
	_, lib, err := openLibrary(ctx, cmd, 1, 1)
	if err != nil {
		return err
	}
	b, err := lib.GetBook(ctx, cmd.Args().Get(0))
	if err != nil {
		return err
	}
	tw := newTable(cmd)
	tw.AppendHeader(table.Row{"#", "Title", "Source"})
	book.WalkTOC(b.TOC, func(e book.TocEntry) bool {
		tw.AppendRow(table.Row{e.PlayOrder, strings.Repeat("  ", e.Depth) + e.Title, e.ContentSrc})
		return true
	})
	tw.Render()
	if d := heal.Diagnose(b); d.NeedsHeal {
		fmt.Fprintf(cmd.Root().Writer, "\nbook looks damaged (%s), consider \"heal\"\n", d.Reason)
	}
	return nil
}

func listChapters(ctx context.Context, cmd *cli.Command) error {
	_, lib, err := openLibrary(ctx, cmd, 1, 2)
	if err != nil {
		return err
	}
	bookID := cmd.Args().Get(0)

	var chapters []book.Chapter
	if cmd.Args().Len() == 2 {
		chapters, err = lib.FindChapters(ctx, bookID, cmd.Args().Get(1))
	} else {
		var b *book.Book
		if b, err = lib.GetBook(ctx, bookID); err == nil {
			chapters = b.OrderedChapters()
		}
	}
	if err != nil {
		return err
	}

	tw := newTable(cmd)
	tw.AppendHeader(table.Row{"Order", "Title", "Chapter"})
	for _, ch := range chapters {
		tw.AppendRow(table.Row{ch.Order, ch.Title, ch.ID})
	}
	tw.Render()
	return nil
}

// readerStyle is the configured style with command line overrides applied.
func readerStyle(env *state.LocalEnv, cmd *cli.Command) (*render.Style, error) {
	st := env.Cfg.Render.Style
	if cmd.IsSet("font-size") {
		st.FontSize = cmd.Float("font-size")
	}
	if cmd.IsSet("line-height") {
		st.LineHeight = cmd.Float("line-height")
	}
	if cmd.IsSet("font-family") {
		st.FontFamily = cmd.String("font-family")
	}
	if fname := cmd.String("css"); len(fname) > 0 {
		data, err := os.ReadFile(fname)
		if err != nil {
			return nil, fmt.Errorf("unable to read css file: %w", err)
		}
		st.CustomCSS = strings.TrimSpace(st.CustomCSS + "\n" + string(data))
	}
	return &st, nil
}

func renderChapter(ctx context.Context, cmd *cli.Command) error {
	env, lib, err := openLibrary(ctx, cmd, 2, 3)
	if err != nil {
		return err
	}
	st, err := readerStyle(env, cmd)
	if err != nil {
		return err
	}
	doc, err := lib.GetChapterContent(ctx, cmd.Args().Get(0), cmd.Args().Get(1), st)
	if err != nil {
		return err
	}
	return writeOutput(cmd, cmd.Args().Get(2), doc)
}

func renderBook(ctx context.Context, cmd *cli.Command) error {
	_, lib, err := openLibrary(ctx, cmd, 1, 2)
	if err != nil {
		return err
	}
	doc, err := lib.GetCompleteBookContent(ctx, cmd.Args().Get(0))
	if err != nil {
		return err
	}
	return writeOutput(cmd, cmd.Args().Get(1), doc)
}

func chapterText(ctx context.Context, cmd *cli.Command) error {
	_, lib, err := openLibrary(ctx, cmd, 2, 2)
	if err != nil {
		return err
	}
	text, err := lib.GetChapterPlainText(ctx, cmd.Args().Get(0), cmd.Args().Get(1))
	if err != nil {
		return err
	}
	return writeOutput(cmd, "", text+"\n")
}

func searchBook(ctx context.Context, cmd *cli.Command) error {
	_, lib, err := openLibrary(ctx, cmd, 2, 2)
	if err != nil {
		return err
	}
	bookID := cmd.Args().Get(0)
	b, err := lib.GetBook(ctx, bookID)
	if err != nil {
		return err
	}
	hits, err := lib.SearchInBook(ctx, bookID, cmd.Args().Get(1), cmd.Bool("case-sensitive"), cmd.Bool("whole-word"))
	if err != nil {
		return err
	}

	tw := newTable(cmd)
	tw.AppendHeader(table.Row{"Chapter", "Section", "Position", "Context"})
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 4, WidthMax: 80}})
	limit, n := cmd.Int("limit"), 0
	for hit := range hits {
		section := ""
		if e, ok := b.FindTocEntry(hit.ChapterID); ok {
			section = e.Title
		}
		tw.AppendRow(table.Row{hit.ChapterTitle, section, hit.Position,
			hit.BeforeContext + " [" + hit.MatchedText + "] " + hit.AfterContext})
		if n++; limit > 0 && n >= limit {
			break
		}
	}
	tw.AppendFooter(table.Row{"", "", "Hits", n})
	tw.Render()
	return nil
}

func suggestWords(ctx context.Context, cmd *cli.Command) error {
	_, lib, err := openLibrary(ctx, cmd, 2, 2)
	if err != nil {
		return err
	}
	words, err := lib.GetSuggestions(ctx, cmd.Args().Get(0), cmd.Args().Get(1), cmd.Int("max"))
	if err != nil {
		return err
	}
	for _, w := range words {
		fmt.Fprintln(cmd.Root().Writer, w)
	}
	return nil
}

func healBook(ctx context.Context, cmd *cli.Command) error {
	env, lib, err := openLibrary(ctx, cmd, 1, 1)
	if err != nil {
		return err
	}
	b, changed, err := lib.HealBook(ctx, cmd.Args().Get(0), cmd.Bool("force"))
	if err != nil {
		return err
	}
	if !changed {
		env.Log.Info("Book is healthy, nothing to do", zap.String("book", b.ID))
		return nil
	}
	env.Log.Info("Book healed", zap.String("book", b.ID), zap.Int("chapters", len(b.Chapters)))
	return nil
}

func prewarmBook(ctx context.Context, cmd *cli.Command) error {
	_, lib, err := openLibrary(ctx, cmd, 1, 1)
	if err != nil {
		return err
	}
	n, err := lib.Prewarm(ctx, cmd.Args().Get(0), nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "rendered %d chapter(s), %d cached document(s)\n", n, lib.GetCachedItemsCount())
	if cmd.Bool("keys") {
		for _, k := range lib.GetAllKeys() {
			fmt.Fprintln(cmd.Root().Writer, k)
		}
	}
	return nil
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	var (
		err  error
		data []byte
		kind string
	)
	if cmd.Bool("default") {
		kind, data = "default", config.DefaultYAML()
	} else {
		kind = "actual"
		if data, err = config.Dump(env.Cfg); err != nil {
			return fmt.Errorf("unable to get configuration: %w", err)
		}
	}

	fname := cmd.Args().Get(0)
	env.Log.Debug("Outputting configuration", zap.String("state", kind), zap.String("file", fname))
	return writeOutput(cmd, fname, string(data))
}
