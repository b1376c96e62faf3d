// rainbow compiles the toy language into symbolic bytecode, runs it on a
// stack-based virtual machine, and can partially evaluate a function with
// the rainbow interpreter before running it.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/user"
	"path/filepath"

	"github.com/dr8co/rainbow/compiler"
	"github.com/dr8co/rainbow/lexer"
	"github.com/dr8co/rainbow/object"
	"github.com/dr8co/rainbow/parser"
	"github.com/dr8co/rainbow/rainbow"
	"github.com/dr8co/rainbow/repl"
)

const version = "0.1.0"

// printUsage displays custom usage information.
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, `rainbow v%s

USAGE:
    %s [OPTIONS]

DESCRIPTION:
    rainbow compiles toy-language source into bytecode, runs it on a stack
    machine, and can partially evaluate a function before running it.
    Without any flags, it starts an interactive REPL.

OPTIONS:
    -f, --file <path>       Run a source file's entry function
    -entry <name>           Entry function to run (default "main")
    -peval                  Partially evaluate the entry function before running it
    -show-pc                Dump the (possibly peval'd) code object before running it
    -no-color               Disable ANSI color in dumps and REPL output
    -v, --version           Show version information
    -h, --help              Show this help message

EXAMPLES:
    # Start interactive REPL
    %s

    # Run a script file's main()
    %s -f script.rb

    # Partially evaluate main() and show its code before running it
    %s -f script.rb -peval -show-pc

`, version, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
}

func main() {
	flag.Usage = printUsage

	fileFlag := flag.String("file", "", "Run a source file's entry function")
	entryFlag := flag.String("entry", "main", "Entry function to run")
	pevalFlag := flag.Bool("peval", false, "Partially evaluate the entry function before running it")
	showPCFlag := flag.Bool("show-pc", false, "Dump the code object before running it")
	noColorFlag := flag.Bool("no-color", false, "Disable ANSI color in dumps and REPL output")
	versionFlag := flag.Bool("version", false, "Show version information")

	flag.StringVar(fileFlag, "f", "", "Run a source file's entry function")
	flag.BoolVar(versionFlag, "v", false, "Show version information")

	flag.Parse()

	if *versionFlag {
		fmt.Printf("rainbow v%s\n", version)
		return
	}

	if *fileFlag != "" {
		runFile(*fileFlag, *entryFlag, *pevalFlag, *showPCFlag, *noColorFlag)
		return
	}

	username := "unknown"
	if usr, err := user.Current(); err == nil {
		username = usr.Username
	}

	fmt.Println("Hello", username+",", "welcome to rainbow!")
	fmt.Println("Feel free to type in toy-language code. (Ctrl+D or Ctrl+C to exit)")

	repl.Start(os.Stdin, os.Stdout, repl.Options{NoColor: *noColorFlag})
}

// runFile reads, compiles, optionally partially evaluates, and runs one
// function from a source file.
func runFile(filename, entry string, peval, showPC, noColor bool) {
	cleaned := filepath.Clean(filename)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		fmt.Printf("Error getting absolute path: %s\n", err)
		os.Exit(1)
	}

	//nolint:gosec // not reading arbitrary user-controlled input here
	content, err := os.ReadFile(absolute)
	if err != nil {
		fmt.Printf("Error reading file: %s\n", err)
		os.Exit(1)
	}

	l := lexer.New(string(content))
	p := parser.New(l)
	mod := p.ParseModule()

	if len(p.Errors()) != 0 {
		printParserErrors(p.Errors())
		os.Exit(1)
	}

	runtimeMod, err := compiler.Compile(mod)
	if err != nil {
		fmt.Printf("Compilation error: %s\n", err)
		os.Exit(1)
	}

	fn, err := runtimeMod.Lookup(entry)
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
	entryFn, ok := fn.(*object.Function)
	if !ok {
		fmt.Printf("Error: %q is not a function\n", entry)
		os.Exit(1)
	}

	if peval {
		entryFn, err = rainbow.Peval(entryFn)
		if err != nil {
			fmt.Printf("Partial evaluation error: %s\n", err)
			os.Exit(1)
		}
	}

	if showPC {
		if noColor {
			fmt.Println(entryFn.Code.Dump())
		} else {
			fmt.Println(entryFn.Code.DumpColor())
		}
	}

	if _, err := entryFn.Call(); err != nil {
		fmt.Printf("Runtime error: %s\n", err)
		os.Exit(1)
	}
}

// printParserErrors prints parser errors to stderr.
func printParserErrors(errs []string) {
	_, _ = fmt.Fprintln(os.Stderr, "Parser errors:")
	for _, msg := range errs {
		_, _ = fmt.Fprintln(os.Stderr, "\t"+msg)
	}
}
