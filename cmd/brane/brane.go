// The brane command runs a BraneScript file, or a workflow previously
// compiled by branec. With no arguments and an interactive terminal, it
// starts a read-eval-print loop (REPL).
//
// Task calls are executed by an in-process dry-run runner; pointing the
// command at a real execution backend is the job of the surrounding
// services, not of this tool.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/marinoandrea/brane/ast"
	"github.com/marinoandrea/brane/dsl"
	"github.com/marinoandrea/brane/exe"
	"github.com/marinoandrea/brane/idx"
	"github.com/marinoandrea/brane/repl"
)

// flags
var (
	index    = flag.String("index", "", "load the package and data indices from this SQLite `file`")
	workflow = flag.Bool("workflow", false, "treat the input as compiled workflow JSON")
	execprog = flag.String("c", "", "execute program `prog`")
)

func main() {
	os.Exit(doMain())
}

func doMain() int {
	log.SetPrefix("brane: ")
	log.SetFlags(0)
	flag.Parse()

	var pidx *idx.PackageIndex
	var didx *idx.DataIndex
	if *index != "" {
		var err error
		pidx, didx, err = idx.LoadSQLite(context.Background(), *index)
		if err != nil {
			log.Print(err)
			return 1
		}
	}

	runner := &exe.DummyRunner{}

	switch {
	case flag.NArg() == 1 || *execprog != "":
		var (
			filename string
			src      []byte
			err      error
		)
		if *execprog != "" {
			filename = "cmdline"
			src = []byte(*execprog)
		} else {
			filename = flag.Arg(0)
			src, err = os.ReadFile(filename)
			if err != nil {
				log.Print(err)
				return 1
			}
		}
		return run(filename, src, pidx, didx, runner)

	case flag.NArg() == 0:
		if term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Println("Welcome to BraneScript")
			repl.REPL(repl.NewSession(pidx, didx, runner))
			return 0
		}
		src, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Print(err)
			return 1
		}
		return run("<stdin>", src, pidx, didx, runner)

	default:
		log.Print("want at most one BraneScript or workflow file name")
		return 1
	}
}

func run(filename string, src []byte, pidx *idx.PackageIndex, didx *idx.DataIndex, runner exe.TaskRunner) int {
	var w *ast.Workflow
	if *workflow || strings.HasSuffix(filename, ".json") {
		var err error
		w, err = ast.ReadJSON(bytes.NewReader(src))
		if err != nil {
			log.Print(err)
			return 1
		}
	} else {
		var warns []dsl.Warning
		var err error
		w, warns, err = ast.Compile(filename, src, pidx, didx)
		ast.PrintWarnings(os.Stderr, filename, string(src), warns)
		if err != nil {
			ast.Prettyprint(os.Stderr, string(src), err)
			return 1
		}
	}

	vm := exe.New(runner)
	v, err := vm.Exec(context.Background(), w)
	if err != nil {
		repl.PrintError(err, string(src))
		return 1
	}
	if v.Kind != exe.KindVoid {
		fmt.Println(v)
	}
	return 0
}
