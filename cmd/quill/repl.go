package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/chazu/quill/compiler"
	"github.com/chazu/quill/manifest"
	"github.com/chazu/quill/vm"
)

// runREPL starts an interactive read-eval-print loop. Bindings and the
// value stack persist from line to line; Ctrl-C interrupts a running
// program without leaving the session.
func runREPL(mf *manifest.Manifest, opts []vm.Option) error {
	if mf == nil || !mf.Repl.NoBanner {
		fmt.Println("quill REPL (type 'exit' to quit)")
	}

	l := liner.NewLiner()
	defer l.Close()
	l.SetCtrlCAborts(true)
	l.SetCompleter(completePrimitives)

	historyPath := replHistoryPath(mf)
	if historyPath != "" {
		if f, err := os.Open(historyPath); err == nil {
			l.ReadHistory(f)
			f.Close()
		}
	}

	globals := map[string]vm.Value{}
	comp := compiler.NewCompiler()
	machine := vm.NewMachine(append([]vm.Option{vm.WithGlobals(globals)}, opts...)...)
	var stack []vm.Value

	for {
		line, err := l.Prompt("quill> ")
		if err == liner.ErrPromptAborted {
			continue
		}
		if err == io.EOF {
			fmt.Println()
			break
		}
		if err != nil {
			return err
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if trimmed == "exit" || trimmed == "quit" {
			break
		}
		l.AppendHistory(line)

		prog, err := comp.Compile(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		out, err := machine.Run(ctx, prog, stack)
		stop()
		if err != nil {
			// The previous stack stays usable after a failed line.
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		stack = out
		printStack(stack)
	}

	if historyPath != "" {
		if f, err := os.Create(historyPath); err == nil {
			l.WriteHistory(f)
			f.Close()
		}
	}
	return nil
}

// replHistoryPath picks the history file: the manifest's, or a dotfile
// in the home directory.
func replHistoryPath(mf *manifest.Manifest) string {
	if mf != nil {
		if p := mf.HistoryPath(); p != "" {
			return p
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".quill_history")
}

// completePrimitives offers primitive names for the word being typed.
func completePrimitives(line string) []string {
	start := len(line)
	for start > 0 {
		c := line[start-1]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '&' {
			start--
			continue
		}
		break
	}
	prefix := line[start:]
	if prefix == "" {
		return nil
	}

	var out []string
	for _, p := range vm.AllPrimitives() {
		if strings.HasPrefix(p.Name(), prefix) {
			out = append(out, line[:start]+p.Name())
		}
	}
	return out
}
