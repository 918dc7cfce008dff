// boardmirror: portfolio mirror and board automation MCP server
//
// Mirrors the projects, kanban boards, cards and people of a hosted
// project-management account into a local index, and runs board
// automations (auto-assign, move-completed, escalate-overdue,
// balance-workload) against the remote system.
//
// Usage:
//
//	boardmirror serve              # Start MCP server (stdio transport)
//	boardmirror build              # Rebuild the local index
//	boardmirror search <query>     # Search the local index
//	boardmirror stats              # Show index statistics
//	boardmirror resolve <query>    # Rank projects by a loose name
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/pflag"

	"github.com/HendryAvila/boardmirror/internal/board"
	"github.com/HendryAvila/boardmirror/internal/config"
	"github.com/HendryAvila/boardmirror/internal/index"
	"github.com/HendryAvila/boardmirror/internal/match"
	"github.com/HendryAvila/boardmirror/internal/mcptools"
	bmserver "github.com/HendryAvila/boardmirror/internal/server"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "serve":
		err = runServe(args)
	case "build":
		err = runBuild(args)
	case "search":
		err = runSearch(args)
	case "stats":
		err = runStats(args)
	case "resolve":
		err = runResolve(args)
	case "--help", "-h", "help":
		printUsage()
		os.Exit(0)
	case "--version", "-v", "version":
		fmt.Printf("boardmirror v%s\n", bmserver.Version)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are accepted by every subcommand.
type globalFlags struct {
	configPath string
	overrides  config.Overrides
}

func newFlagSet(name string) (*pflag.FlagSet, *globalFlags) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	g := &globalFlags{}
	fs.StringVar(&g.configPath, "config", "", "config file (JSON with comments, or YAML)")
	fs.StringVar(&g.overrides.AccountID, "account-id", "", "remote account id (env "+config.EnvAccountID+")")
	fs.StringVar(&g.overrides.BaseURL, "base-url", "", "remote API base URL (env "+config.EnvBaseURL+")")
	fs.StringVar(&g.overrides.DataDir, "data-dir", "", "directory of the local index (env "+config.EnvDataDir+")")
	fs.StringVar(&g.overrides.LogLevel, "log-level", "", "debug, info, warn or error")
	return fs, g
}

// setup loads the configuration and wires the dependencies.
func setup(g *globalFlags) (*bmserver.Deps, func(), error) {
	cfg, err := config.Load(config.LoadInput{
		ConfigPath: g.configPath,
		Env:        config.EnvMap(os.Environ()),
		Overrides:  g.overrides,
	})
	if err != nil {
		return nil, nil, err
	}
	return bmserver.NewDeps(cfg, cfg.NewLogger(os.Stderr))
}

// signalContext is cancelled on interrupt or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// ─── serve ───────────────────────────────────────────────────────────────────

func runServe(args []string) error {
	fs, g := newFlagSet("serve")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(config.LoadInput{
		ConfigPath: g.configPath,
		Env:        config.EnvMap(os.Environ()),
		Overrides:  g.overrides,
	})
	if err != nil {
		return err
	}

	s, cleanup, err := bmserver.New(cfg, cfg.NewLogger(os.Stderr))
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	return server.ServeStdio(s)
}

// ─── build ───────────────────────────────────────────────────────────────────

func runBuild(args []string) error {
	fs, g := newFlagSet("build")
	asJSON := fs.Bool("json", false, "print the build report as JSON")
	project := fs.Int64("project", 0, "refresh only this project id")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d, cleanup, err := setup(g)
	if err != nil {
		return err
	}
	defer cleanup()
	if err := d.Config.RequireRemote(); err != nil {
		return err
	}
	if d.Builder == nil {
		return fmt.Errorf("the local index in %s could not be opened", d.Config.DataDir)
	}

	ctx, stop := signalContext()
	defer stop()

	var report *index.BuildReport
	if *project > 0 {
		report, err = d.Builder.RefreshProject(ctx, *project)
	} else {
		report, err = d.Builder.Build(ctx)
	}
	if err != nil {
		return err
	}

	if *asJSON {
		return writeJSON(os.Stdout, report)
	}
	m := report.Meta
	fmt.Printf("build %s: %d projects scanned, %d projects, %d columns, %d cards, %d people in %.1fs\n",
		report.BuildID, report.ScannedProjects, m.TotalProjects, m.TotalColumns, m.TotalCards, m.TotalPeople, m.ElapsedSeconds)
	for _, f := range report.Failures {
		if f.ColumnID != 0 {
			fmt.Printf("  failed: %s (%d) column %d: %s\n", f.ProjectName, f.ProjectID, f.ColumnID, f.Error)
		} else {
			fmt.Printf("  failed: %s (%d): %s\n", f.ProjectName, f.ProjectID, f.Error)
		}
	}
	return nil
}

// ─── search ──────────────────────────────────────────────────────────────────

func runSearch(args []string) error {
	fs, g := newFlagSet("search")
	typ := fs.String("type", string(index.EntityAll), "all, projects, cards or people")
	projectID := fs.Int64("project", 0, "only this project id")
	assignee := fs.String("assignee", "", "only cards assigned to this name")
	completed := fs.Bool("completed", false, "only completed cards (--completed=false for open cards)")
	columnType := fs.String("column-type", "", "only cards in columns of this type ("+strings.Join(board.TypeValues(), ", ")+")")
	limit := fs.Int("limit", 20, "max results per type, 0 for all")
	asJSON := fs.Bool("json", false, "print results as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d, cleanup, err := setup(g)
	if err != nil {
		return err
	}
	defer cleanup()
	if d.Store == nil {
		return fmt.Errorf("the local index in %s could not be opened", d.Config.DataDir)
	}

	opts := index.SearchOptions{
		Type:       index.EntityType(*typ),
		ProjectID:  *projectID,
		Assignee:   *assignee,
		ColumnType: board.ColumnType(*columnType),
		Limit:      *limit,
	}
	if fs.Changed("completed") {
		opts.Completed = completed
	}
	res, err := d.Store.Search(strings.Join(fs.Args(), " "), opts)
	if err != nil {
		return err
	}

	if *asJSON {
		return writeJSON(os.Stdout, res)
	}
	for _, p := range res.Projects {
		fmt.Printf("project  %-8d %s [%s]\n", p.ID, p.Name, p.Status)
	}
	for _, c := range res.Cards {
		state := "open"
		if c.Completed {
			state = "done"
		}
		fmt.Printf("card     %-14s %s (%s / %s, %s)\n", c.Key, c.Title, c.ProjectName, c.ColumnTitle, state)
	}
	for _, p := range res.People {
		fmt.Printf("person   %-8d %s <%s>\n", p.ID, p.Name, p.Email)
	}
	if res.Total() == 0 {
		fmt.Println("no matches")
	}
	return nil
}

// ─── stats ───────────────────────────────────────────────────────────────────

func runStats(args []string) error {
	fs, g := newFlagSet("stats")
	asJSON := fs.Bool("json", false, "print statistics as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	d, cleanup, err := setup(g)
	if err != nil {
		return err
	}
	defer cleanup()
	if d.Store == nil {
		return fmt.Errorf("the local index in %s could not be opened", d.Config.DataDir)
	}
	if !d.Store.Meta().Built() {
		return index.ErrEmptyIndex
	}

	st := d.Store.Statistics(time.Now())
	if *asJSON {
		return writeJSON(os.Stdout, st)
	}
	fmt.Printf("projects  %d (%d active)\n", st.ProjectsTotal, st.ProjectsActive)
	fmt.Printf("people    %d\n", st.People)
	fmt.Printf("cards     %d (%d open, %d completed, %d overdue)\n", st.TotalCards, st.Open, st.Completed, st.Overdue)
	if st.LastBuild != nil {
		fmt.Printf("built     %s (%s ago)\n", st.LastBuild.Local().Format(time.DateTime), time.Duration(st.AgeSeconds*float64(time.Second)).Round(time.Second))
	}
	return nil
}

// ─── resolve ─────────────────────────────────────────────────────────────────

func runResolve(args []string) error {
	fs, g := newFlagSet("resolve")
	limit := fs.Int("limit", 5, "max candidates, 0 for all")
	minScore := fs.Int("min-score", 0, "drop candidates scoring below this")
	archived := fs.Bool("archived", false, "also rank archived and trashed projects")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		return fmt.Errorf("usage: boardmirror resolve <query>")
	}

	d, cleanup, err := setup(g)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signalContext()
	defer stop()

	projects, source, err := mcptools.NewProjectSource(d.Client, d.Store).Projects(ctx, *archived)
	if err != nil {
		return err
	}
	candidates := match.Resolve(query, projects, match.ResolveOptions{
		Limit:           *limit,
		MinScore:        *minScore,
		IncludeArchived: *archived,
	})
	for _, c := range candidates {
		fmt.Printf("%3d  %-8s %-8d %s\n", c.Score, c.Label, c.Project.ID, c.Project.Name)
	}
	if len(candidates) == 0 {
		fmt.Printf("no projects match %q (%d searched from %s)\n", query, len(projects), source)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `boardmirror v%s — portfolio mirror and board automation MCP server

Usage:
  boardmirror serve              Start the MCP server (stdio transport)
  boardmirror build [--project ID]
                                 Rebuild the local index, or refresh one project
  boardmirror search [QUERY]     Search the local index
  boardmirror stats              Show index statistics
  boardmirror resolve QUERY      Rank projects by a loose name
  boardmirror version            Print the version

Every command accepts --config, --account-id, --base-url, --data-dir and
--log-level. The token is read from %s or the config file.

Configuration:
  Add to your AI tool's MCP config:

  {
    "mcpServers": {
      "boardmirror": {
        "command": "boardmirror",
        "args": ["serve"],
        "env": {"%s": "...", "%s": "..."}
      }
    }
  }
`, bmserver.Version, config.EnvToken, config.EnvAccountID, config.EnvToken)
}
