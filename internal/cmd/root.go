// Package cmd wires the pkgcat command line: flag parsing, collaborator
// construction, and the scan loop that folds per-archive results into
// the process exit status.
package cmd

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/harrison/pkgcat/internal/archive"
	"github.com/harrison/pkgcat/internal/config"
	"github.com/harrison/pkgcat/internal/fetch"
	"github.com/harrison/pkgcat/internal/logger"
	"github.com/harrison/pkgcat/internal/matcher"
	"github.com/harrison/pkgcat/internal/pkgdb"
	"github.com/harrison/pkgcat/internal/resolver"
	"github.com/harrison/pkgcat/internal/scanner"
)

// Version is injected at build time via -ldflags
var Version = "dev"

const longHelp = `Print files from software package archives without unpacking them.

A target can be specified as:
    <pkgname>, <repo>/<pkgname>, <url> or <file>.

Files can be specified as just the filename or the full path, and are
separated from targets by '--'. With no targets, every installed
package (or every repository package with --sync) whose manifest
contains a matching file is searched.

Examples:
  # Print the pacman.conf shipped by the pacman package
  pkgcat pacman -- etc/pacman.conf

  # List matching paths instead of printing content
  pkgcat -q coreutils -- ls

  # Search a local archive with a regular expression
  pkgcat -x ./foo-1.0.pkg.tar.xz -- '\.service$'

  # Search every installed package for a file
  pkgcat -- bash`

// Options holds the pkgcat invocation state: parsed flags, output
// sinks, and the aggregate exit status of the scans.
type Options struct {
	Regex      bool
	Quiet      bool
	Binary     bool
	Cumulative bool
	SyncDB     bool
	Root       string
	DBPath     string
	ConfigPath string
	CacheDir   string

	// Out receives matched entry names and content; Diag receives
	// everything else.
	Out  io.Writer
	Diag *logger.Logger

	// ExitStatus is the aggregate scan status after a successful run.
	ExitStatus int
}

// NewOptions returns Options bound to the process's standard streams.
func NewOptions() *Options {
	return &Options{
		Out:  os.Stdout,
		Diag: logger.New(os.Stderr),
	}
}

// NewRootCommand creates and returns the root cobra command for pkgcat.
func NewRootCommand(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pkgcat [options] <target>... -- <file>...",
		Short:   "Print package archive files",
		Long:    longHelp,
		Version: Version,
		// Errors are reported once, in the canonical form, by Execute.
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, opts)
		},
	}

	flags := cmd.Flags()
	flags.BoolVarP(&opts.Regex, "regex", "x", false, "enable searching using regular expressions")
	flags.BoolVarP(&opts.Quiet, "quiet", "q", false, "print file names instead of file content")
	flags.BoolVar(&opts.Binary, "binary", false, "print binary files")
	flags.BoolVar(&opts.Cumulative, "cumulative", false, "require literal patterns across all archives together instead of per archive")
	flags.BoolVar(&opts.SyncDB, "sync", false, "with no targets, search repository packages instead of installed ones")
	flags.StringVarP(&opts.Root, "root", "r", "", "set an alternative root directory")
	flags.StringVarP(&opts.DBPath, "dbpath", "b", "", "set an alternative database location")
	flags.StringVar(&opts.ConfigPath, "config", config.DefaultPath, "use an alternative config file")
	flags.StringVar(&opts.CacheDir, "cachedir", "", "set an alternative cache directory")

	return cmd
}

// Execute runs pkgcat with the given arguments and returns the process
// exit status: 0 when every scanned archive satisfied the match rule,
// 1 on a failed match or any error.
func Execute(argv []string) int {
	opts := NewOptions()
	cmd := NewRootCommand(opts)
	cmd.SetArgs(argv)

	if err := cmd.Execute(); err != nil {
		opts.Diag.Errorf("%v", err)
		return 1
	}

	return opts.ExitStatus
}

func run(cmd *cobra.Command, args []string, opts *Options) error {
	targets, patterns, err := splitArgs(cmd, args)
	if err != nil {
		return err
	}

	// When stdout is a pipe or file there is no terminal to protect, so
	// binary content is printed without --binary.
	if f, ok := opts.Out.(*os.File); ok {
		if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
			opts.Binary = true
		}
	}

	m, err := matcher.New(opts.Regex, patterns)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	db, err := pkgdb.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fetcher, err := fetch.New(cfg.CacheDir)
	if err != nil {
		return err
	}

	paths, err := resolver.New(db, fetcher).Resolve(targets, m, opts.SyncDB)
	if err != nil {
		return err
	}

	agg := scanner.NewAggregator(m, opts.Cumulative)
	for _, path := range paths {
		found, err := scanArchive(path, m, opts)
		if err != nil {
			return err
		}
		agg.Add(found)
	}

	opts.ExitStatus = agg.Status()
	return nil
}

// scanArchive opens one archive and streams it through the scanner.
func scanArchive(path string, m *matcher.Matcher, opts *Options) (int, error) {
	it, err := archive.Open(path)
	if err != nil {
		return 0, err
	}
	defer it.Close()

	return scanner.Scan(it, m, scanner.Options{
		Quiet:  opts.Quiet,
		Binary: opts.Binary,
	}, opts.Out, opts.Diag)
}

// splitArgs separates targets from file patterns at the '--' marker
// and normalizes the patterns. Patterns are required; targets may be
// empty, which selects whole-database search.
func splitArgs(cmd *cobra.Command, args []string) (targets, patterns []string, err error) {
	dash := cmd.ArgsLenAtDash()
	if dash < 0 {
		return nil, nil, errNoPatterns
	}

	targets = args[:dash]
	for _, p := range args[dash:] {
		p = strings.TrimLeft(p, "/")
		if p == "" {
			continue
		}
		patterns = append(patterns, p)
	}
	if len(patterns) == 0 {
		return nil, nil, errNoPatterns
	}

	return targets, patterns, nil
}

// loadConfig loads the config file and applies flag overrides.
func loadConfig(opts *Options) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if opts.Root != "" {
		cfg.Root = opts.Root
	}
	if opts.DBPath != "" {
		cfg.DBPath = opts.DBPath
	}
	if opts.CacheDir != "" {
		cfg.CacheDir = opts.CacheDir
	}

	return cfg, nil
}
