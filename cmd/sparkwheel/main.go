package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/starkandwayne/goutils/ansi"
	"github.com/voxelbrain/goptions"
	"gopkg.in/yaml.v3"

	"github.com/project-lighter/sparkwheel/internal/swlog"
	"github.com/project-lighter/sparkwheel/pkg/sparkwheel"
)

// Version holds the current version of sparkwheel.
var Version = "(development)"

var printfStdOut = func(format string, args ...interface{}) {
	fmt.Fprintf(os.Stdout, format, args...)
}

var getopts = func(o interface{}) {
	if err := goptions.Parse(o); err != nil {
		usage()
	}
}

var exit = func(code int) {
	os.Exit(code)
}

var usage = func() {
	goptions.PrintHelp()
	exit(1)
}

func envFlag(varname string) bool {
	val := os.Getenv(varname)
	return val != "" && strings.ToLower(val) != "false" && val != "0"
}

type resolveOpts struct {
	Set                   []string           `goptions:"--set, description='Override an identifier, [~|=]<identifier>=<literal> (may be specified more than once)'"`
	AllowMissingReference bool               `goptions:"--allow-missing-reference, description='Downgrade a missing @ reference to null with a warning'"`
	StrictKeys            bool               `goptions:"--strict-keys, description='Fail a file that repeats the same mapping key twice'"`
	DisableExpressions    bool               `goptions:"--disable-expressions, description='Return $ scalars as literal strings without evaluating them'"`
	DataflowOrder         bool               `goptions:"--dataflow-order, description='Resolve in dependency order rather than sorted-key order'"`
	Identifier            string             `goptions:"--identifier, description='Resolve only this identifier instead of the whole graph'"`
	Prune                 []string           `goptions:"--prune, description='Remove an identifier from the resolved output (may be specified more than once)'"`
	CherryPick            []string           `goptions:"--cherry-pick, description='Keep only the given identifiers (and their ancestors) in the resolved output (may be specified more than once)'"`
	Help                  bool               `goptions:"--help, -h"`
	Files                 goptions.Remainder `goptions:"description='Layered YAML config files, left to right. To read STDIN, specify a filename of \\'-\\'.'"`
}

type keysOpts struct {
	Help  bool               `goptions:"--help, -h"`
	Files goptions.Remainder `goptions:"description='Layered YAML config files, left to right.'"`
}

func main() {
	var options struct {
		Debug   bool   `goptions:"-D, --debug, description='Enable debugging'"`
		Trace   bool   `goptions:"-T, --trace, description='Enable trace mode debugging (very verbose)'"`
		Version bool   `goptions:"-v, --version, description='Display version information'"`
		Color   string `goptions:"--color, description='Control color output (on/off/auto, default: auto)'"`
		Action  goptions.Verbs
		Resolve resolveOpts `goptions:"resolve"`
		Keys    keysOpts    `goptions:"keys"`
	}
	getopts(&options)

	if envFlag("SPARKWHEEL_DEBUG") || envFlag("DEBUG") || options.Debug {
		swlog.DebugOn = true
	}
	if envFlag("SPARKWHEEL_TRACE") || options.Trace {
		swlog.TraceOn = true
		swlog.DebugOn = true
	}

	if options.Resolve.Help || options.Keys.Help {
		usage()
		return
	}

	if options.Version {
		printfStdOut("%s - Version %s\n", os.Args[0], Version)
		exit(0)
		return
	}

	shouldEnableColor := false
	switch options.Color {
	case "on":
		shouldEnableColor = true
	case "off":
		shouldEnableColor = false
	case "auto", "":
		shouldEnableColor = isatty.IsTerminal(os.Stderr.Fd())
	default:
		swlog.PrintfStdErr("invalid --color option: %s. Must be 'on', 'off', or 'auto'.\n", options.Color)
		exit(1)
		return
	}
	ansi.Color(shouldEnableColor)

	switch options.Action {
	case "resolve":
		out, err := cmdResolve(options.Resolve)
		if err != nil {
			swlog.PrintfStdErr("%s\n", err.Error())
			exit(exitCodeFor(err))
			return
		}
		printfStdOut("%s", out)

	case "keys":
		out, err := cmdKeys(options.Keys)
		if err != nil {
			swlog.PrintfStdErr("%s\n", err.Error())
			exit(exitCodeFor(err))
			return
		}
		printfStdOut("%s", out)

	default:
		usage()
		return
	}
	exit(0)
}

// buildEngine loads and merges files (an explicit "-" reads STDIN, in
// the same spot the teacher's loadYamlFile reserves for it), applies
// any --set overrides as a final layer, and returns the ready-to-query
// Engine.
func buildEngine(files []string, overrides []string, opts sparkwheel.ResolveOptions) (*sparkwheel.Engine, error) {
	if len(files) == 0 {
		stat, err := os.Stdin.Stat()
		if err != nil {
			return nil, sparkwheel.NewParseError("statting STDIN", err)
		}
		if stat.Mode()&os.ModeCharDevice != 0 {
			return nil, sparkwheel.NewParseError("no config files given and STDIN is a terminal", nil)
		}
		files = []string{"-"}
	}

	e := sparkwheel.New(sparkwheel.Options{ResolveOptions: opts})

	layers := make([]map[string]interface{}, 0, len(files))
	for _, file := range files {
		var data []byte
		var err error
		if file == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(file)
		}
		if err != nil {
			return nil, sparkwheel.NewParseError("reading "+file, err)
		}
		swlog.DEBUG("loaded %s", file)
		tree, err := e.Load(data)
		if err != nil {
			return nil, err
		}
		layers = append(layers, tree)
	}

	if err := e.Merge(layers...); err != nil {
		return nil, err
	}

	if len(overrides) > 0 {
		if err := e.Update(overrides); err != nil {
			return nil, err
		}
	}

	return e, nil
}

func cmdResolve(opts resolveOpts) (string, error) {
	e, err := buildEngine(opts.Files, opts.Set, sparkwheel.ResolveOptions{
		AllowMissingReference: opts.AllowMissingReference,
		StrictKeys:            opts.StrictKeys,
		DisableExpressions:    opts.DisableExpressions,
	})
	if err != nil {
		return "", err
	}

	var result interface{}
	if opts.Identifier != "" {
		result, err = e.Resolve(opts.Identifier)
	} else {
		tree, resolveErr := e.ResolveAll(opts.DataflowOrder)
		if resolveErr != nil {
			return "", resolveErr
		}
		if len(opts.CherryPick) > 0 {
			tree, err = sparkwheel.CherryPick(tree, opts.CherryPick...)
		} else if len(opts.Prune) > 0 {
			tree, err = sparkwheel.Prune(tree, opts.Prune...)
		}
		result = tree
	}
	if err != nil {
		return "", err
	}

	out, err := yaml.Marshal(result)
	if err != nil {
		return "", sparkwheel.NewValidationError(opts.Identifier, "could not marshal resolved value back to YAML: "+err.Error())
	}
	return string(out), nil
}

func cmdKeys(opts keysOpts) (string, error) {
	e, err := buildEngine(opts.Files, nil, sparkwheel.ResolveOptions{})
	if err != nil {
		return "", err
	}

	sections := e.Keys()
	out, err := yaml.Marshal(sections)
	if err != nil {
		return "", sparkwheel.NewValidationError("", "could not marshal key listing back to YAML: "+err.Error())
	}
	return string(out), nil
}

// exitCodeFor maps a sparkwheel error (or a MultiError aggregating
// several) to one of spec.md §6's exit codes: 1 merge/validation, 2
// resolution, 3 instantiation. A MultiError reports the most severe
// code among its members.
func exitCodeFor(err error) int {
	if merr, ok := err.(sparkwheel.MultiError); ok {
		code := 1
		for _, sub := range merr.Errors {
			if c := exitCodeFor(sub); c > code {
				code = c
			}
		}
		return code
	}

	switch {
	case sparkwheel.IsKind(err, sparkwheel.InstantiationErrorKind):
		return 3
	case sparkwheel.IsKind(err, sparkwheel.CycleErrorKind),
		sparkwheel.IsKind(err, sparkwheel.KeyNotFoundErrorKind),
		sparkwheel.IsKind(err, sparkwheel.ExpressionErrorKind):
		return 2
	default:
		return 1
	}
}
