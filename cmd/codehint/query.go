package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"codehint/internal/document"
	"codehint/internal/request"
	"codehint/internal/textbuf"
	"codehint/internal/transport"
)

var (
	queryType     string
	queryLine     int
	queryCh       int
	queryFromLine int
	queryFromCh   int
	queryName     string
	queryEdits    string
	queryDryRun   bool
	queryTimeout  time.Duration
)

var queryCmd = &cobra.Command{
	Use:   "query <file>",
	Short: "Send one query for a file to the engine",
	Long: `Open a file as a tracked document, optionally replay an edit script
against it, and send a single query at the given position.

Examples:
  codehint query app.js --line 10 --ch 4
  codehint query app.js --type type --line 3 --ch 7
  codehint query app.js --edits edits.yaml --line 120 --ch 8 --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(dirFlag)
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
		defer cancel()

		return runQuery(ctx, rt, queryParams{
			File:   args[0],
			Name:   queryName,
			Type:   queryType,
			At:     document.Pos(queryLine, queryCh),
			From:   fromFlags(),
			Edits:  queryEdits,
			DryRun: queryDryRun,
		}, cmd.OutOrStdout())
	},
}

func init() {
	f := queryCmd.Flags()
	f.StringVar(&queryType, "type", request.TypeCompletions, "Query type (completions, type, definition, documentation, refs)")
	f.IntVar(&queryLine, "line", 0, "Cursor line (0-based)")
	f.IntVar(&queryCh, "ch", 0, "Cursor column (0-based)")
	f.IntVar(&queryFromLine, "from-line", -1, "Selection start line; omit for a bare cursor")
	f.IntVar(&queryFromCh, "from-ch", 0, "Selection start column")
	f.StringVar(&queryName, "name", "", "Document name sent to the engine (defaults to the file argument)")
	f.StringVar(&queryEdits, "edits", "", "YAML edit script replayed after the file is opened")
	f.BoolVar(&queryDryRun, "dry-run", false, "Print the request that would be sent instead of sending it")
	f.DurationVar(&queryTimeout, "timeout", 30*time.Second, "Overall deadline for the query")
	rootCmd.AddCommand(queryCmd)
}

func fromFlags() *document.Position {
	if queryFromLine < 0 {
		return nil
	}
	p := document.Pos(queryFromLine, queryFromCh)
	return &p
}

type queryParams struct {
	File   string
	Name   string
	Type   string
	At     document.Position
	From   *document.Position
	Edits  string
	DryRun bool
}

func (p queryParams) selection() request.Selection {
	sel := request.Cursor(p.At)
	if p.From != nil {
		sel.From = *p.From
	}
	return sel
}

// dryRunTransport captures the request instead of sending it.
type dryRunTransport struct {
	transport.Unimplemented
	last *request.Request
}

func (d *dryRunTransport) Query(_ context.Context, req *request.Request) (json.RawMessage, error) {
	d.last = req
	return json.RawMessage(`{}`), nil
}

// dryRunOutput is printed by --dry-run.
type dryRunOutput struct {
	Payload     request.Payload  `json:"payload"`
	OffsetLines int              `json:"offsetLines"`
	Edits       int              `json:"edits"`
	Request     *request.Request `json:"request"`
}

type completionsOutput struct {
	From  document.Position    `json:"from"`
	To    document.Position    `json:"to"`
	Items []request.Completion `json:"items"`
	Guess bool                 `json:"guess,omitempty"`
	Stale bool                 `json:"stale,omitempty"`
}

func runQuery(ctx context.Context, rt *runtime, p queryParams, w io.Writer) error {
	data, err := os.ReadFile(p.File)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", p.File, err)
	}
	name := p.Name
	if name == "" {
		name = p.File
	}

	reg := document.NewRegistry()
	var (
		tr  transport.Transport
		dry *dryRunTransport
	)
	if p.DryRun {
		dry = &dryRunTransport{}
		tr = dry
	} else if tr, err = rt.newTransport(ctx, reg); err != nil {
		return err
	}

	mgr, err := rt.newManager(reg, tr)
	if err != nil {
		_ = tr.Close()
		return err
	}
	defer mgr.Close()

	buf := textbuf.New(string(data))
	buf.SetTabSize(rt.cfg.Documents.TabSize)
	doc, err := mgr.Attach(name, buf)
	if err != nil {
		return err
	}

	var edits int
	if p.Edits != "" {
		script, err := loadEditScript(p.Edits)
		if err != nil {
			return err
		}
		edits = len(script.replay(buf))
		rt.logger.Debug("Edit script replayed", "edits", edits, "lines", buf.LineCount())
	}

	if dry != nil {
		reply, err := mgr.Query(ctx, doc, request.NewQuery(p.Type), p.selection())
		if err != nil {
			return err
		}
		return writeJSON(w, dryRunOutput{
			Payload:     reply.Result.Payload,
			OffsetLines: reply.Result.OffsetLines,
			Edits:       edits,
			Request:     dry.last,
		})
	}

	switch p.Type {
	case request.TypeCompletions:
		c, err := mgr.Completions(ctx, doc, p.selection())
		if err != nil {
			return err
		}
		return writeJSON(w, completionsOutput{From: c.From, To: c.To, Items: c.Items, Guess: c.Guess, Stale: c.Stale})
	case request.TypeType:
		t, err := mgr.TypeAt(ctx, doc, p.selection())
		if err != nil {
			return err
		}
		return writeJSON(w, t)
	default:
		reply, err := mgr.Query(ctx, doc, request.NewQuery(p.Type), p.selection())
		if err != nil {
			return err
		}
		return writeJSON(w, reply.Raw)
	}
}

// writeJSON pretty-prints v.
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
