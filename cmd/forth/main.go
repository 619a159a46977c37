// Command forth is a thin terminal driver for the forth virtual machine:
// it wires stdin/stdout to a VM, optionally pre-loads files named by -with
// flags, evaluates any free arguments as source text, and then runs an
// interactive session on stdin.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ischeinkman/rtforth/forth"
)

// fileList collects repeated -with flags, in the order given, the same
// pattern the teacher uses for its own repeated -with flag.
type fileList []string

func (f *fileList) String() string     { return "" }
func (f *fileList) Set(s string) error { *f = append(*f, s); return nil }

// config is the optional TOML configuration file contents: everything a
// flag can also set, so a project can check in a forth.toml instead of
// repeating flags.
type config struct {
	DataSpaceSize int  `toml:"data_space_size"`
	Debug         bool `toml:"debug"`
}

func loadConfig(path string) (config, error) {
	var c config
	if path == "" {
		return c, nil
	}
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return c, errors.Wrap(err, "reading config file")
	}
	if err := toml.Unmarshal(b, &c); err != nil {
		return c, errors.Wrap(err, "parsing config file")
	}
	return c, nil
}

func atExit(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "forth: %v\n", err)
	os.Exit(1)
}

func main() {
	var err error
	defer func() { atExit(err) }()

	version := flag.Bool("v", false, "print version and exit")
	flag.BoolVar(version, "version", false, "print version and exit")
	help := flag.Bool("h", false, "print usage and exit")
	cfgPath := flag.String("config", "", "path to a TOML configuration `file`")
	size := flag.Int("size", 1<<20, "data space size in bytes")
	debug := flag.Bool("debug", false, "enable debug-level diagnostic logging")
	var withFiles fileList
	flag.Var(&withFiles, "with", "evaluate `filename` before any remaining arguments (repeatable)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] [word...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *version {
		fmt.Println("forth 0.1.0")
		return
	}
	if *help {
		flag.Usage()
		return
	}

	cfg, cfgErr := loadConfig(*cfgPath)
	if cfgErr != nil {
		err = cfgErr
		return
	}
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if cfg.DataSpaceSize > 0 && !set["size"] {
		*size = cfg.DataSpaceSize
	}
	if cfg.Debug && !set["debug"] {
		*debug = true
	}

	level := zerolog.InfoLevel
	if *debug {
		level = zerolog.DebugLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level).With().Timestamp().Logger()

	vm, newErr := forth.New(
		forth.DataSpaceSize(*size),
		forth.WithLogger(logger),
		forth.WithOutputSink(stdoutSink{}),
	)
	if newErr != nil {
		err = newErr
		return
	}

	for _, name := range withFiles {
		b, readErr := ioutil.ReadFile(name)
		if readErr != nil {
			err = errors.Wrapf(readErr, "reading %s", name)
			return
		}
		vm.Evaluate(string(b))
		if vm.LastError != nil {
			err = errors.Errorf("%s: %v", name, *vm.LastError)
			return
		}
	}

	if flag.NArg() > 0 {
		vm.Evaluate(strings.Join(flag.Args(), " "))
		if vm.LastError != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", *vm.LastError)
			vm.Reset()
		}
	}

	repl(vm)
}

// stdoutSink streams the VM's output straight to stdout as it is produced.
type stdoutSink struct{}

func (stdoutSink) WriteOutput(s string) { fmt.Print(s) }

// repl drives an interactive session: one line of input per Evaluate
// call, matching the outer interpreter's per-line dispatch.
func repl(vm *forth.VM) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		vm.Evaluate(scanner.Text())
		if vm.LastError != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", *vm.LastError)
			vm.Reset()
		}
	}
}
