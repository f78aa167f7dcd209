package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	cli "github.com/urfave/cli/v2"

	"tracker"
	"tracker/simplex86"
)

// progName is computed once, the way tracker.c's basename(argv[0]) is,
// and prefixes the diagnostic lines run prints and main's error line.
// Messages of errors returned through cli.Exit are printed by urfave/cli
// without it.
var progName = filepath.Base(os.Args[0])

// newApp builds the CLI, kept separate from main so tests can exercise
// app.Run directly (including flag registration) without os.Exit firing.
//
// app.Version is set, which makes App.Setup append the package-global
// cli.VersionFlag to app.Flags. newApp gives that flag the "V" alias so
// that "v" is free for --verbose; no two flags may share an alias, since
// flag.FlagSet.Var panics on a duplicate name, which would take down every
// invocation including --help, not just --version.
func newApp() *cli.App {
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Aliases: []string{"V"}, Usage: "print the version"}

	app := cli.NewApp()
	app.Name = "tracker"
	app.Usage = "Trace the execution of an ELF/x86 program and build its dynamic control-flow graph"
	app.Version = "1.0.0"
	app.ArgsUsage = "EXEC [ARGS...]"
	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "redirect the trace log and statistics to FILE"},
		&cli.BoolFlag{Name: "intel", Aliases: []string{"i"}, Usage: "use Intel syntax instead of AT&T"},
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "print progress diagnostics to stderr"},
		&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "print extra diagnostics to stderr"},
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "load hashtable/call-stack overrides from a TOML file"},
	}
	app.Action = run
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "%s: error: %v\n", progName, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return cli.Exit("error: missing argument: an executable is required!", 1)
	}

	cfg := tracker.DefaultConfig
	if file := c.String("config"); file != "" {
		loaded, err := tracker.LoadConfig(file)
		if err != nil {
			return cli.Exit(fmt.Sprintf("error: %v", err), 1)
		}
		cfg = loaded
	}

	out := os.Stdout
	outputPath := c.String("output")
	if outputPath == "" {
		outputPath = cfg.Output
	}
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return cli.Exit(fmt.Sprintf("error: cannot open output file: %v", err), 1)
		}
		defer f.Close()
		out = f
	}

	verbose := c.Bool("verbose") || c.Bool("debug")
	diag := func(format string, args ...interface{}) {
		if verbose {
			color.New(color.FgCyan).Fprintf(os.Stderr, format, args...)
		}
	}

	syntax := tracker.ATT
	if c.Bool("intel") {
		syntax = tracker.Intel
	}

	target := c.Args().First()
	argvLines, isBatch, err := resolveInvocations(target, c.Args().Slice())
	if err != nil {
		return cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	if isBatch {
		diag("%s: running in batch mode, %d invocation(s)\n", progName, len(argvLines))
	}

	store, err := tracker.NewStore(cfg.HashtableSize)
	if err != nil {
		return cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	trace := tracker.NewTrace()

	// One CFG/cur_node pair accumulates across every line of a batch file,
	// exactly as tracker.c's single hashtable_t/cfg_t pair does across its
	// fgets loop.
	var sharedCFG *tracker.CFG
	var sharedCurNode *tracker.Node
	var instrCount uint64

	for _, argv := range argvLines {
		probe, err := tracker.NewProbe(argv[0])
		if err != nil {
			color.New(color.FgRed).Fprintf(os.Stderr, "%s: error: %v\n", progName, err)
			continue
		}
		diag("%s: probed %s as %s\n", progName, argv[0], probe.Arch())

		mode := simplex86.Mode32
		if probe.Arch() == tracker.X86_64 {
			mode = simplex86.Mode64
		}
		decoder := simplex86.NewDecoder(mode)

		fmt.Fprintf(out, "%s: starting to trace '%s'\n\n", progName, strings.Join(argv, " "))

		tracee, err := tracker.AttachAndStart(argv, os.Environ())
		if err != nil {
			return cli.Exit(fmt.Sprintf("error: %v", err), 1)
		}

		engine, err := tracker.NewEngineWithDepth(tracee, decoder, syntax, store, trace, cfg.CallStackDepth)
		if err != nil {
			return cli.Exit(fmt.Sprintf("error: %v", err), 1)
		}
		if sharedCFG != nil {
			engine.AttachCFG(sharedCFG, sharedCurNode)
		}

		if section, ok := probe.TextBounds(); ok {
			diag("%s: .text spans 0x%x..0x%x\n", progName, section.Addr, section.Addr+section.Size)
			engine.SetTextBounds(section, func(addr uintptr) {
				diag("%s: 0x%x executed outside .text\n", progName, addr)
			})
		}

		if err := engine.Run(out); err != nil {
			return cli.Exit(fmt.Sprintf("error: %v", err), 1)
		}

		sharedCFG, sharedCurNode = engine.CFG(), engine.CurNode()
		instrCount += engine.InstructionCount()

		if err := tracee.Detach(); err != nil {
			return cli.Exit(fmt.Sprintf("error: %v", err), 1)
		}
	}

	tracker.WriteStats(out, instrCount, store)
	return nil
}

// resolveInvocations decides whether target names a batch file (per
// spec.md §6) or is itself the executable to trace, returning the list
// of argv slices to run in order.
func resolveInvocations(target string, rest []string) ([][]string, bool, error) {
	info, err := os.Stat(target)
	if err != nil {
		return nil, false, err
	}
	if info.Mode().IsRegular() && info.Mode()&0o111 == 0 {
		f, err := os.Open(target)
		if err != nil {
			return nil, false, err
		}
		defer f.Close()
		batches, err := tracker.ParseBatchFile(f)
		if err != nil {
			return nil, false, err
		}
		return batches, true, nil
	}
	return [][]string{rest}, false, nil
}
