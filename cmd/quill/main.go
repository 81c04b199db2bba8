// Quill CLI - run programs, evaluate expressions, format source, and
// serve editors.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/quill/compiler"
	"github.com/chazu/quill/format"
	"github.com/chazu/quill/manifest"
	"github.com/chazu/quill/server"
	"github.com/chazu/quill/vm"
)

func main() {
	// Subcommands take over the whole argument list.
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "fmt":
			os.Exit(runFmt(os.Args[2:]))
		case "lsp":
			if err := server.NewLSP().Run(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	expr := flag.String("e", "", "Evaluate an expression and print the stack")
	interactive := flag.Bool("i", false, "Start interactive REPL")
	seed := flag.Uint64("seed", 0, "Seed the random primitive (0 uses entropy)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: quill [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Runs a quill program. With no file, starts the REPL.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nSubcommands:\n")
		fmt.Fprintf(os.Stderr, "  quill fmt [files...]   # Format source files (stdin to stdout with no files)\n")
		fmt.Fprintf(os.Stderr, "  quill lsp              # Start the language server on stdio\n")
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  quill main.ql          # Run a file\n")
		fmt.Fprintf(os.Stderr, "  quill -e '/ + ⇡ 10'   # Evaluate an expression\n")
		fmt.Fprintf(os.Stderr, "  quill -i               # Start the REPL\n")
	}
	flag.Parse()

	mf, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	var opts []vm.Option
	if *seed != 0 {
		opts = append(opts, vm.WithSeed(*seed))
	}

	switch {
	case *expr != "":
		os.Exit(evalSource(*expr, opts))

	case flag.NArg() > 0:
		os.Exit(runFile(flag.Arg(0), opts))

	case *interactive || flag.NArg() == 0:
		// A project manifest can name an entry file to run instead.
		if !*interactive && mf != nil {
			if _, err := os.Stat(mf.EntryPath()); err == nil {
				os.Exit(runFile(mf.EntryPath(), opts))
			}
		}
		if err := runREPL(mf, opts); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
}

// runFile compiles and runs one source file, printing the final stack.
func runFile(path string, opts []vm.Option) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return evalSource(string(data), opts)
}

// evalSource runs source on a fresh machine. Interrupt signals cancel
// the run between instructions.
func evalSource(src string, opts []vm.Option) int {
	prog, err := compiler.Compile(src)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	out, err := vm.NewMachine(opts...).Run(ctx, prog, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	printStack(out)
	return 0
}

// printStack renders the stack top first, the way the REPL shows it.
func printStack(stack []vm.Value) {
	for i := len(stack) - 1; i >= 0; i-- {
		fmt.Println(vm.Grid(stack[i]))
	}
}

// runFmt formats the named files in place, or stdin to stdout when no
// files are given. Glyph rewriting honors the project manifest.
func runFmt(paths []string) int {
	opts := format.DefaultOptions()
	if mf, err := manifest.FindAndLoad("."); err == nil && mf != nil {
		opts.Glyphs = mf.Format.GlyphsEnabled()
	}

	if len(paths) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		out, err := format.SourceWith(string(data), opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Print(out)
		return 0
	}

	status := 0
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			status = 1
			continue
		}
		out, err := format.SourceWith(string(data), opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			status = 1
			continue
		}
		if out == string(data) {
			continue
		}
		if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			status = 1
		}
	}
	return status
}
