// Command grako is the thin CLI driver described in spec §6: it
// reads a grammar file, compiles it, and renders the resulting model.
// The CLI sits outside the engine's core scope — file I/O and the
// grammar-surface bootstrap parser are both external collaborators —
// so this file exists only to delineate where that responsibility
// starts, the way the teacher's own cmd/main.go wires its generators
// without implementing their internals here.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/apalala/grako"
)

const (
	exitOK        = 0
	exitUserError = 1
	exitArgError  = 2
)

// bootstrapParser is the wiring point for the grammar-surface
// bootstrap parser (spec §1's external collaborator). The engine
// proper never parses grammar text itself, so this build has no
// default implementation to inject: a caller packaging a real
// distribution would set this in an init() in a sibling file that
// imports their bootstrap parser package.
var bootstrapParser grako.BootstrapParser

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("grako", flag.ContinueOnError)
	var (
		output          = fs.String("o", "", "write output to this file instead of stdout")
		pretty          = fs.Bool("pretty", false, "render the grammar as reconstructed source text")
		draw            = fs.Bool("draw", false, "render the grammar as a railroad diagram")
		objectModel     = fs.Bool("object-model", false, "render the grammar's rules and FIRST/FOLLOW sets")
		noNameGuard     = fs.Bool("no-nameguard", false, "disable the name-guard on keyword-like literals")
		noLeftRecursion = fs.Bool("no-left-recursion", false, "disable left-recursion support")
		whitespace      = fs.String("whitespace", "", "characters treated as whitespace between tokens")
		trace           = fs.Bool("trace", false, "enable parse tracing")
		color           = fs.Bool("color", false, "colourise traced output")
		showVersion     = fs.Bool("version", false, "print the version and exit")
	)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: grako GRAMMAR [-o OUT] [--pretty | --draw | --object-model] [options]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return exitArgError
	}

	if *showVersion {
		fmt.Println("grako (embedding-library build)")
		return exitOK
	}

	if *color && !*trace {
		log.Print("--color has no effect without --trace")
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return exitArgError
	}
	if countSet(*pretty, *draw, *objectModel) > 1 {
		log.Print("only one of --pretty, --draw, --object-model may be given")
		return exitArgError
	}

	grammarPath := fs.Arg(0)
	source, err := os.ReadFile(grammarPath)
	if err != nil {
		log.Printf("can't read grammar file: %s", err)
		return exitUserError
	}

	if bootstrapParser == nil {
		log.Print("no grammar-surface bootstrap parser wired into this build")
		return exitUserError
	}

	model, err := grako.Compile(string(source), grammarPath, bootstrapParser)
	if err != nil {
		log.Printf("can't compile grammar: %s", err)
		return exitUserError
	}

	cfg := applyCLIOverrides(model, *noNameGuard, *noLeftRecursion, *whitespace, *trace)

	var rendered string
	switch {
	case *draw:
		log.Print("railroad diagramming is an external collaborator, not built into this CLI")
		return exitUserError
	case *pretty:
		log.Print("source-text rendering is an external collaborator, not built into this CLI")
		return exitUserError
	default:
		rendered = renderObjectModel(model, cfg)
	}

	if *output == "" {
		fmt.Println(rendered)
		return exitOK
	}
	if err := os.WriteFile(*output, []byte(rendered), 0o644); err != nil {
		log.Printf("can't write output: %s", err)
		return exitUserError
	}
	return exitOK
}

func countSet(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func renderObjectModel(model *grako.GrammarModel, cfg *grako.Config) string {
	var out string
	out += fmt.Sprintf("grammar %s (start: %s)\n", model.Name, model.Grammar.StartRule())
	out += fmt.Sprintf("  config: nameguard=%v left_recursion=%v trace=%v\n", cfg.NameGuard, cfg.LeftRecursion, cfg.Trace)
	for _, name := range model.Grammar.RuleNames() {
		rule, _ := model.Grammar.Rule(name)
		out += fmt.Sprintf("  %s = %s ;\n", rule.Name, rule.Body.String())
		if first := model.Grammar.First(name); len(first) > 0 {
			out += fmt.Sprintf("    FIRST:  %v\n", first)
		}
		if follow := model.Grammar.Follow(name); len(follow) > 0 {
			out += fmt.Sprintf("    FOLLOW: %v\n", follow)
		}
	}
	return out
}

// applyCLIOverrides builds a Config seeded from the grammar's own
// `@@...` directives with the CLI's negating flags layered on top,
// the way the teacher's flags override grammar directives rather
// than the reverse.
func applyCLIOverrides(model *grako.GrammarModel, noNameGuard, noLeftRecursion bool, whitespace string, trace bool) *grako.Config {
	cfg := model.DefaultConfig()
	if noNameGuard {
		cfg.NameGuard = false
	}
	if noLeftRecursion {
		cfg.LeftRecursion = false
	}
	if whitespace != "" {
		cfg.Whitespace = grako.NewWhitespaceChars(whitespace)
	}
	cfg.Trace = trace
	return cfg
}
