package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"grimm.is/bbfw/cmd"
	"grimm.is/bbfw/internal/brand"
	"grimm.is/bbfw/internal/diff"
	"grimm.is/bbfw/internal/i18n"
	"grimm.is/bbfw/internal/render"
)

var printer = i18n.NewCLIPrinter()

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "show", "showconfig":
		name := os.Args[1]
		showFlags := flag.NewFlagSet(name, flag.ExitOnError)
		configFile := configFlag(showFlags)
		verbose := showFlags.Bool("verbose", false, "Full listing in iptables-save format")
		showFlags.BoolVar(verbose, "v", false, "Full listing (short)")
		asYAML := showFlags.Bool("yaml", false, "Dump as YAML")
		filter := filterFlags(showFlags)
		src := sourceFlags(showFlags)
		showFlags.Parse(os.Args[2:])

		opts := cmd.ShowOptions{Source: *src, Filter: *filter, Verbose: *verbose, YAML: *asYAML}
		var err error
		if name == "show" {
			err = cmd.RunShow(ctx, *configFile, opts)
		} else {
			err = cmd.RunShowConfig(*configFile, opts)
		}
		exitOn(name, err)

	case "compare":
		compareFlags := flag.NewFlagSet("compare", flag.ExitOnError)
		configFile := configFlag(compareFlags)
		src := sourceFlags(compareFlags)
		against := compareFlags.String("against", "", "Compare with a save-format file instead of the live rules")
		unified := compareFlags.Bool("unified", false, "Print a unified text diff")
		compareFlags.BoolVar(unified, "u", false, "Unified diff (short)")
		filter := filterFlags(compareFlags)
		compareFlags.Parse(os.Args[2:])

		err := cmd.RunCompare(ctx, *configFile, cmd.CompareOptions{
			Source:  *src,
			Against: *against,
			Scope:   diff.Scope{Table: filter.Table, Chain: filter.Chain},
			Unified: *unified,
		})
		if errors.Is(err, cmd.ErrDiffer) {
			os.Exit(1)
		}
		exitOn("compare", err)

	case "export":
		exportFlags := flag.NewFlagSet("export", flag.ExitOnError)
		configFile := configFlag(exportFlags)
		dir := exportFlags.String("dir", "", "Target directory (default: config_dir)")
		exportFlags.StringVar(dir, "d", "", "Target directory (short)")
		force := exportFlags.Bool("force", false, "Overwrite existing files")
		exportFlags.BoolVar(force, "f", false, "Overwrite existing files (short)")
		exportFlags.Parse(os.Args[2:])

		exitOn("export", cmd.RunExport(ctx, *configFile, cmd.ExportOptions{Dir: *dir, Force: *force}))

	case "load":
		loadFlags := flag.NewFlagSet("load", flag.ExitOnError)
		configFile := configFlag(loadFlags)
		src := sourceFlags(loadFlags)
		wipe := loadFlags.Bool("wipe", false, "Replace every table, removing chains not declared")
		yes := loadFlags.Bool("yes", false, "Do not ask for confirmation")
		loadFlags.BoolVar(yes, "y", false, "Do not ask for confirmation (short)")
		dryRun := loadFlags.Bool("dry-run", false, "Show the differences only")
		loadFlags.BoolVar(dryRun, "n", false, "Dry run (short)")
		loadFlags.Parse(os.Args[2:])

		exitOn("load", cmd.RunLoad(ctx, *configFile, cmd.LoadOptions{
			Source: *src,
			Wipe:   *wipe,
			Yes:    *yes,
			DryRun: *dryRun,
		}))

	case "purge":
		purgeFlags := flag.NewFlagSet("purge", flag.ExitOnError)
		configFile := configFlag(purgeFlags)
		recursive := purgeFlags.Bool("recursive", false, "Also purge the chains it jumps to")
		purgeFlags.BoolVar(recursive, "r", false, "Recursive (short)")
		force := purgeFlags.Bool("force", false, "Do not ask for confirmation")
		purgeFlags.BoolVar(force, "f", false, "Do not ask for confirmation (short)")
		dryRun := purgeFlags.Bool("dry-run", false, "Show the differences only")
		purgeFlags.BoolVar(dryRun, "n", false, "Dry run (short)")
		purgeFlags.Parse(os.Args[2:])

		if purgeFlags.NArg() != 2 {
			printer.Println("Usage: " + brand.BinaryName + " purge [options] <table> <chain>")
			os.Exit(1)
		}
		exitOn("purge", cmd.RunPurge(ctx, *configFile, cmd.PurgeOptions{
			Table:     purgeFlags.Arg(0),
			Chain:     purgeFlags.Arg(1),
			Recursive: *recursive,
			Force:     *force,
			DryRun:    *dryRun,
		}))

	case "validate":
		validateFlags := flag.NewFlagSet("validate", flag.ExitOnError)
		configFile := configFlag(validateFlags)
		src := sourceFlags(validateFlags)
		validateFlags.Parse(os.Args[2:])

		exitOn("validate", cmd.RunValidate(*configFile, *src))

	case "history":
		historyFlags := flag.NewFlagSet("history", flag.ExitOnError)
		configFile := configFlag(historyFlags)
		limit := historyFlags.Int("limit", 20, "Number of snapshots to list (0 for all)")
		historyFlags.Parse(os.Args[2:])

		exitOn("history", cmd.RunHistory(ctx, *configFile, *limit))

	case "rollback":
		rollbackFlags := flag.NewFlagSet("rollback", flag.ExitOnError)
		configFile := configFlag(rollbackFlags)
		yes := rollbackFlags.Bool("yes", false, "Do not ask for confirmation")
		rollbackFlags.BoolVar(yes, "y", false, "Do not ask for confirmation (short)")
		dryRun := rollbackFlags.Bool("dry-run", false, "Show the differences only")
		rollbackFlags.BoolVar(dryRun, "n", false, "Dry run (short)")
		rollbackFlags.Parse(os.Args[2:])

		exitOn("rollback", cmd.RunRollback(ctx, *configFile, cmd.RollbackOptions{
			ID:     rollbackFlags.Arg(0),
			Yes:    *yes,
			DryRun: *dryRun,
		}))

	case "init-config":
		initFlags := flag.NewFlagSet("init-config", flag.ExitOnError)
		force := initFlags.Bool("force", false, "Overwrite an existing file")
		initFlags.BoolVar(force, "f", false, "Overwrite an existing file (short)")
		initFlags.Parse(os.Args[2:])

		path := brand.ConfigFilePath()
		if initFlags.NArg() > 0 {
			path = initFlags.Arg(0)
		}
		exitOn("init-config", cmd.RunInitConfig(path, *force))

	case "version":
		printer.Printf("%s version %s\n", brand.Name, brand.Version)
		printer.Printf("Build: %s\n", brand.GitCommit)

	case "help", "-h", "--help":
		printUsage()

	default:
		printer.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func configFlag(fs *flag.FlagSet) *string {
	configFile := fs.String("config", brand.ConfigFilePath(), "Configuration file")
	fs.StringVar(configFile, "c", brand.ConfigFilePath(), "Configuration file (short)")
	return configFile
}

func sourceFlags(fs *flag.FlagSet) *cmd.Source {
	var src cmd.Source
	fs.StringVar(&src.Dir, "dir", "", "Read declared rules from this directory (default: config_dir)")
	fs.StringVar(&src.File, "file", "", "Read declared rules from a save-format file")
	return &src
}

func filterFlags(fs *flag.FlagSet) *render.Filter {
	var f render.Filter
	fs.StringVar(&f.Table, "table", "", "Restrict to one table")
	fs.StringVar(&f.Table, "t", "", "Restrict to one table (short)")
	fs.StringVar(&f.Chain, "chain", "", "Restrict to one chain (requires --table)")
	return &f
}

func exitOn(command string, err error) {
	if err == nil {
		return
	}
	printer.Fprintf(os.Stderr, "%s failed: %v\n", command, err)
	os.Exit(1)
}

func printUsage() {
	printer.Printf(`%s - %s

Usage:
  %s <command> [options]

Inspection:
  show         Display the live rules
               Options: --verbose (-v), --yaml, --table (-t) <table>, --chain <chain>
  showconfig   Display the declared rules
               Options: as show, plus --dir <dir>, --file <file>
  compare      Compare declared rules with the live rules
               Options: --dir, --file, --against <file>, --unified (-u), --table, --chain
  validate     Check declared rules for jumps to undefined chains
  history      List snapshots taken before each change
               Options: --limit <n>

Changes:
  load         Activate the declared rules
               Options: --wipe, --yes (-y), --dry-run (-n), --dir, --file
  purge        Empty a live chain: purge [options] <table> <chain>
               Options: --recursive (-r), --force (-f), --dry-run (-n)
  rollback     Restore a snapshot: rollback [options] [id]
               Options: --yes (-y), --dry-run (-n)
  export       Write the live rules as a config directory
               Options: --dir (-d) <dir>, --force (-f)

Setup:
  init-config  Write a default configuration file
  version      Show version

Every command accepts --config (-c) <file> (default %s).

Examples:
  %s show -v -t filter
  %s compare --unified
  %s load --dry-run
  %s purge -r filter LOGDROP
`,
		brand.Name, brand.Description,
		brand.LowerName,
		brand.ConfigFilePath(),
		brand.LowerName, brand.LowerName, brand.LowerName, brand.LowerName)
}
