// Command avdl compiles Avro IDL files to canonical JSON.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/hamba/avdl"
	"github.com/hamba/avdl/load"
)

type config struct {
	Mode string
}

func main() {
	os.Exit(realMain(os.Args, os.Stderr, os.Stdout))
}

func realMain(args []string, out, dumpout io.Writer) int {
	var cfg config
	flgs := flag.NewFlagSet("avdl", flag.ExitOnError)
	flgs.SetOutput(out)
	flgs.StringVar(&cfg.Mode, "mode", "protocol", "Output shape: schemata emits a full-name map of the named types; any other value emits the protocol, or for a non-protocol file its main schema (schemata if it has none).")
	flgs.Usage = func() {
		_, _ = fmt.Fprintln(out, "Usage: avdl [options] file.avdl")
		_, _ = fmt.Fprintln(out, "Options:")
		flgs.PrintDefaults()
		_, _ = fmt.Fprintln(out, "\nCompiles one Avro IDL file to canonical JSON on stdout.")
	}
	if err := flgs.Parse(args[1:]); err != nil {
		return 1
	}
	if flgs.NArg() != 1 {
		_, _ = fmt.Fprintln(out, "Error: exactly one input file is required")
		return 1
	}

	file := flgs.Arg(0)
	result, diags := load.LoadFile(file)
	if diags.HasFatal() {
		printDiagnostics(out, file, diags)
		return 2
	}

	var doc string
	switch {
	case result.Protocol != nil:
		reg := avdl.NewRegistry(result.Protocol.Types(), diags, avdl.SourceSpan{File: file})
		avdl.Resolve(result.Protocol, reg, diags)
		if diags.HasFatal() {
			printDiagnostics(out, file, diags)
			return 2
		}
		doc = protocolOutput(cfg.Mode, result.Protocol)
	default:
		resolved := avdl.ResolveTypes(result.Types, result.MainSchema, diags)
		if diags.HasFatal() {
			printDiagnostics(out, file, diags)
			return 2
		}
		doc = schemaOutput(cfg.Mode, result.Types, resolved)
	}

	if diags != nil {
		printDiagnostics(out, file, diags)
	}

	fmt.Fprintln(dumpout, doc)
	return 0
}

func protocolOutput(mode string, p *avdl.Protocol) string {
	switch mode {
	case "schemata":
		return avdl.EmitSchemata(p.Types())
	default:
		return avdl.EmitProtocol(p)
	}
}

func schemaOutput(mode string, types []avdl.NamedSchema, main avdl.Schema) string {
	switch mode {
	case "schemata":
		return avdl.EmitSchemata(types)
	default:
		if main != nil {
			return avdl.EmitSchema(main)
		}
		return avdl.EmitSchemata(types)
	}
}

func printDiagnostics(out io.Writer, file string, diags *avdl.Diagnostics) {
	src, err := os.ReadFile(file)
	sources := avdl.SourceSet{}
	if err == nil {
		sources[file] = string(src)
	}
	rendered := diags.Render(sources)
	if rendered != "" {
		fmt.Fprint(out, rendered)
	}
}
