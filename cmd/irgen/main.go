package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/arc-language/core-irgen/compiler"
	"github.com/arc-language/core-irgen/logging"
)

type options struct {
	moduleName string
	a, b       int64
	print      bool
	run        bool
	dump       bool
	irOut      string
	objOut     string
	level      logging.Level
}

func main() {
	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printUsage()
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "irgen: %v\n", err)
		os.Exit(1)
	}
}

func parseArgs(args []string) (options, error) {
	opts := options{
		moduleName: "irgen",
		a:          35,
		b:          16,
		dump:       true,
		level:      logging.LevelWarning,
	}
	value := func(i int) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("flag %s needs a value", args[i])
		}
		return args[i+1], nil
	}

	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "-a", "-b":
			s, err := value(i)
			if err != nil {
				return opts, err
			}
			n, err := strconv.ParseInt(s, 10, 32)
			if err != nil {
				return opts, fmt.Errorf("flag %s: %v", arg, err)
			}
			if arg == "-a" {
				opts.a = n
			} else {
				opts.b = n
			}
			i++
		case "-name":
			s, err := value(i)
			if err != nil {
				return opts, err
			}
			opts.moduleName = s
			i++
		case "-o":
			s, err := value(i)
			if err != nil {
				return opts, err
			}
			opts.irOut = s
			i++
		case "-obj":
			s, err := value(i)
			if err != nil {
				return opts, err
			}
			opts.objOut = s
			i++
		case "-log":
			s, err := value(i)
			if err != nil {
				return opts, err
			}
			level, err := logging.ParseLevel(s)
			if err != nil {
				return opts, err
			}
			opts.level = level
			i++
		case "-print":
			opts.print = true
		case "-run":
			opts.run = true
		case "-quiet":
			opts.dump = false
		case "-h", "-help", "--help":
			printUsage()
			os.Exit(0)
		default:
			return opts, fmt.Errorf("unknown argument %q", arg)
		}
	}
	return opts, nil
}

func run(opts options) error {
	logger := logging.New("[irgen]")
	logger.SetLevel(opts.level)

	comp := compiler.NewCompiler(compiler.GlobalContext(), opts.moduleName,
		compiler.WithLogger(logger.WithPrefix(fmt.Sprintf("[Compiler:%s]", opts.moduleName))),
	)
	defer comp.Dispose()

	entry, err := comp.SetupEntryPoint()
	if err != nil {
		return err
	}
	i32 := comp.Context().Type(compiler.KindInt32)

	a, err := comp.DeclareScalarVariable("a", opts.a, i32)
	if err != nil {
		return err
	}
	b, err := comp.DeclareScalarVariable("b", opts.b, i32)
	if err != nil {
		return err
	}
	ab, err := comp.Multiply(a, b, "ab_val")
	if err != nil {
		return err
	}
	if opts.print {
		if err := comp.PrintInt(ab); err != nil {
			return err
		}
	}
	if err := comp.ReturnValue(ab); err != nil {
		return err
	}

	if opts.dump {
		comp.DumpText()
	}
	if opts.irOut != "" {
		if err := comp.EmitToFile(opts.irOut); err != nil {
			return err
		}
		fmt.Printf("IR written to %s\n", opts.irOut)
	}
	if opts.objOut != "" {
		if err := comp.EmitObject(opts.objOut); err != nil {
			return err
		}
		fmt.Printf("Object written to %s\n", opts.objOut)
	}
	if opts.run {
		result, err := comp.RunViaInterpreter(entry.Func)
		if err != nil {
			return err
		}
		fmt.Printf("%s returned %d\n", entry.Func.Name(), result)
	}

	if comp.Diagnostics().WarningCount() > 0 {
		comp.Diagnostics().Print(os.Stderr)
	}
	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: irgen [-a N] [-b N] [-print] [-run] [-o out.ll] [-obj out.o] [-name module] [-log level] [-quiet]\n")
	fmt.Fprintf(os.Stderr, "\nBuilds main() { return a * b; } and dumps, emits or runs it.\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  irgen -run                 # Dumps the IR and prints 'main returned 560'\n")
	fmt.Fprintf(os.Stderr, "  irgen -a 6 -b 7 -print -run\n")
	fmt.Fprintf(os.Stderr, "  irgen -o out.ll -obj out.o # Writes textual IR and a native object\n")
}
