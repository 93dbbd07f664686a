// The branec command compiles a BraneScript file into a workflow, the
// JSON artifact consumed by the brane executor and by remote planner
// nodes. Input and output default to stdin and stdout; "-" selects them
// explicitly.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"

	"github.com/marinoandrea/brane/ast"
	"github.com/marinoandrea/brane/idx"
)

// flags
var (
	compact = flag.Bool("compact", false, "emit compact JSON instead of indented")
	index   = flag.String("index", "", "load the package and data indices from this SQLite `file`")
)

func main() {
	os.Exit(doMain())
}

func doMain() int {
	log.SetPrefix("branec: ")
	log.SetFlags(0)
	flag.Parse()

	if flag.NArg() > 2 {
		log.Print("usage: branec [-compact] [-index file] [input [output]]")
		return 1
	}
	input, output := "-", "-"
	if flag.NArg() >= 1 {
		input = flag.Arg(0)
	}
	if flag.NArg() == 2 {
		output = flag.Arg(1)
	}

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

	file := input
	var src []byte
	var err error
	if input == "-" {
		file = "<stdin>"
		src, err = io.ReadAll(os.Stdin)
	} else {
		src, err = os.ReadFile(input)
	}
	if err != nil {
		log.Print(err)
		return 1
	}

	w, warns, err := ast.Compile(file, src, pidx, didx)
	ast.PrintWarnings(os.Stderr, file, string(src), warns)
	if err != nil {
		ast.Prettyprint(os.Stderr, string(src), err)
		return 1
	}

	out := os.Stdout
	if output != "-" {
		f, err := os.Create(output)
		if err != nil {
			log.Print(err)
			return 1
		}
		defer f.Close()
		out = f
	}
	if err := w.WriteJSON(out, !*compact); err != nil {
		log.Print(err)
		return 1
	}
	return 0
}
