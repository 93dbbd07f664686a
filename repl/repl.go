// Package repl provides a read/eval/print loop for BraneScript.
//
// It supports readline-style command editing,
// and interrupts through Control-C.
//
// Input lines accumulate until every opened bracket is closed and the
// input ends in ';' or '}'; the snippet is then compiled against the
// session's compile state and run on the session's machine, so variables,
// functions and imports persist from one snippet to the next.
package repl

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/chzyer/readline"

	"github.com/marinoandrea/brane/ast"
	"github.com/marinoandrea/brane/dsl"
	"github.com/marinoandrea/brane/exe"
	"github.com/marinoandrea/brane/idx"
)

var interrupted = make(chan os.Signal, 1)

// A Session holds the state shared by the snippets of one interactive
// session: the compile state accumulating definitions and the machine
// accumulating variable values.
type Session struct {
	State *ast.CompileState
	VM    *exe.VM

	count int // snippets read so far, for diagnostic file names
}

// NewSession returns a session compiling against the given indices and
// delegating task calls to runner.
func NewSession(pidx *idx.PackageIndex, didx *idx.DataIndex, runner exe.TaskRunner) *Session {
	return &Session{
		State: ast.NewCompileState(pidx, didx),
		VM:    exe.New(runner),
	}
}

// REPL executes a read, eval, print loop on the session.
//
// Each snippet runs under a context.Context that is cancelled by a
// SIGINT (Control-C), which also aborts the parallel branches and task
// calls of a running workflow.
func REPL(s *Session) {
	signal.Notify(interrupted, os.Interrupt)
	defer signal.Stop(interrupted)

	rl, err := readline.New("> ")
	if err != nil {
		PrintError(err, "")
		return
	}
	defer rl.Close()
	for {
		if err := rep(rl, s); err != nil {
			if err == readline.ErrInterrupt {
				fmt.Println(err)
				continue
			}
			break
		}
	}
	fmt.Println()
}

// rep reads, compiles, runs, and prints one snippet.
//
// It returns an error (possibly readline.ErrInterrupt) only if readline
// failed. Compile and runtime errors are printed.
func rep(rl *readline.Instance, s *Session) error {
	// Each snippet gets its own context, cancelled by a SIGINT.
	//
	// Note: during Readline calls, Control-C causes Readline to return
	// ErrInterrupt but does not generate a SIGINT.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-interrupted:
			cancel()
		case <-ctx.Done():
		}
	}()

	eof := false

	// readline returns EOF, ErrInterrupted, or a line including "\n".
	rl.SetPrompt("> ")
	readline := func() ([]byte, error) {
		line, err := rl.Readline()
		rl.SetPrompt(". ")
		if err != nil {
			if err == io.EOF {
				eof = true
			}
			return nil, err
		}
		return []byte(line + "\n"), nil
	}

	src, err := dsl.ReadCompoundSnippet(readline)
	if err != nil {
		if eof {
			return io.EOF
		}
		return err
	}

	s.count++
	file := fmt.Sprintf("<stdin-%d>", s.count)

	w, warns, err := s.State.Compile(file, src)
	ast.PrintWarnings(os.Stderr, file, string(src), warns)
	if err != nil {
		PrintError(err, string(src))
		return nil
	}

	v, err := s.VM.ExecSnippet(ctx, w)
	if err != nil {
		PrintError(err, string(src))
		return nil
	}
	if v.Kind != exe.KindVoid {
		fmt.Println(v)
	}
	return nil
}

// PrintError prints the error to stderr, with a source excerpt when the
// error carries a position into src.
func PrintError(err error, src string) {
	ast.Prettyprint(os.Stderr, src, err)
}
