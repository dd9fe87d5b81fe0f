// Command errmark runs a program under syscall tracing and marks its
// stderr writes so they stand out from stdout on the merged output
// stream, typically by wrapping them in an ANSI color escape pair.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/guyshaw-errmark/errmark/pkg/color"
	"github.com/guyshaw-errmark/errmark/pkg/env"
	"github.com/guyshaw-errmark/errmark/pkg/log"
	"github.com/guyshaw-errmark/errmark/pkg/markspec"
	"github.com/guyshaw-errmark/errmark/pkg/tracer"
)

const versionText = "0.1\n"

const copyrightText = "Copyright (C) 2016-2019 Guy Shaw\n" +
	"Written by Guy Shaw\n"

const licenseText = "License GPLv3+: GNU GPL version 3 or later" +
	" <http://gnu.org/licenses/gpl.html>.\n" +
	"This is free software: you are free to change and redistribute it.\n" +
	"There is NO WARRANTY, to the extent permitted by law.\n"

// markValue is a pflag.Value wrapping the shared mark table, so --mark
// is applied to the table at the point it is encountered on the
// command line rather than after all flags have been parsed.
type markValue struct{ table *markspec.Table }

func (m *markValue) String() string { return "" }
func (m *markValue) Set(s string) error { return m.table.Parse(s) }
func (m *markValue) Type() string { return "fd:start:end" }

// colorValue is a pflag.Value wrapping the shared mark table for
// --color, which looks up a named ANSI color and applies its escape
// pair to fd 2 (stderr), in the same CLI-order-preserving style as
// markValue.
type colorValue struct{ table *markspec.Table }

func (c *colorValue) String() string { return "" }

func (c *colorValue) Set(name string) error {
	ent, ok := color.Lookup(name)
	if !ok {
		normal, bright := color.Names()
		fmt.Fprintf(os.Stderr, "Unknown color, '%s'.\n", name)
		fmt.Fprintln(os.Stderr, "Known color names are:")
		fmt.Fprintf(os.Stderr, "    %s\n", joinNames(normal))
		fmt.Fprintf(os.Stderr, "    %s\n", joinNames(bright, "bright-"))
		return fmt.Errorf("unknown color %q", name)
	}
	return c.table.Set(2, ent.Start, ent.End)
}

func (c *colorValue) Type() string { return "color-name" }

func joinNames(names []string, prefix ...string) string {
	p := ""
	if len(prefix) > 0 {
		p = prefix[0]
	}
	s := ""
	for i, n := range names {
		if i > 0 {
			s += " "
		}
		s += p + n
	}
	return s
}

func showProgramVersion() {
	fmt.Print(versionText)
	fmt.Println()
	fmt.Print(copyrightText)
	fmt.Println()
	fmt.Print(licenseText)
}

func main() {
	os.Exit(run(os.Args))
}

func run(argv []string) int {
	programName := filepath.Base(argv[0])

	// The original getopt_long(..., "+hVdv", ...) special-cases a bare
	// "-?" into the help path; pflag has no shorthand for punctuation,
	// so replicate that one alias by hand before real parsing.
	for _, a := range argv[1:] {
		if a == "--" {
			break
		}
		if a == "-?" {
			printUsage(os.Stdout)
			return env.ExitOK
		}
		if len(a) == 0 || a[0] != '-' {
			break
		}
	}

	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() { printUsage(os.Stderr) }

	help := fs.BoolP("help", "h", false, "Show this help message and exit")
	version := fs.BoolP("version", "V", false, "Show version information and exit")
	verbose := fs.BoolP("verbose", "v", false, "verbose")
	debug := fs.BoolP("debug", "d", false, "debug")
	tee := fs.Bool("tee", false, "let the real write through instead of nullifying it")
	copyFile := fs.StringP("copy", "c", "", "copy stderr bytes to <filename>")

	marks := markspec.NewTable()
	fs.VarP(&markValue{table: marks}, "mark", "m", "mark-specification = fd:start:end")
	fs.Var(&colorValue{table: marks}, "color", "color-name to mark stderr with")

	if err := fs.Parse(argv[1:]); err != nil {
		printUsage(os.Stderr)
		return env.ExitUsage
	}

	if *help {
		printUsage(os.Stdout)
		return env.ExitOK
	}
	if *version {
		showProgramVersion()
		return env.ExitOK
	}

	log.SetDebug(*debug)
	verboseEffective := *verbose || *debug

	args := fs.Args()
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "%s: Must supply at least a command name.\n", programName)
		printUsage(os.Stderr)
		return env.ExitUsage
	}

	var copyWriter *os.File
	if *copyFile != "" {
		f, err := os.Create(*copyFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open(%q, \"w\") failed: %s\n", *copyFile, err)
			return env.ExitUsage
		}
		defer f.Close()
		copyWriter = f
	}

	cfg := tracer.Config{
		Path:    args[0],
		Argv:    args[1:],
		Marks:   marks,
		Nullify: !*tee,
		Verbose: verboseEffective,
		Stdout:  os.Stdout,
	}
	if copyWriter != nil {
		cfg.CopyWriter = copyWriter
	}

	waitStatus, err := tracer.Run(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", programName, err)
		return env.ExitUsage
	}

	return tracer.ExitCode(waitStatus)
}

const usageText = "" +
	"Options:\n" +
	"  --help|-h|-?     Show this help message and exit\n" +
	"  --version|-V     Show version information and exit\n" +
	"  --verbose|-v     verbose\n" +
	"  --debug|-d       debug\n" +
	"  --mark|-m        <mark-specification>\n" +
	"      Where mark-specification = fd:start:end.\n" +
	"  --color          <color-name>\n" +
	"  --copy|-c        <filename>\n" +
	"  --tee            let the real write through instead of nullifying it\n"

func printUsage(f *os.File) {
	fmt.Fprintf(f, "usage: %s [ <options> ] <program> [ <args...> ]\n", filepath.Base(os.Args[0]))
	fmt.Fprint(f, usageText)
}
