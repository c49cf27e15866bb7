package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/a3tai/sf2809-filler/internal/mapping"
)

const defaultOutput = "sf2809_mappings.json"

// errDrift means the committed mappings no longer match the template
var errDrift = errors.New("mappings are out of date")

type options struct {
	template string
	output   string
	format   string
	check    bool
	verbose  bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("sf2809-mappings", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.template, "template", "", "Path to the SF2809 template PDF")
	fs.StringVar(&opts.output, "output", defaultOutput, "Mapping file to write")
	fs.StringVar(&opts.format, "format", "", "Output format: json, yaml, xlsx (default from the output extension)")
	fs.BoolVar(&opts.check, "check", false, "Compare with the existing output instead of writing it")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose output")
	help := fs.Bool("help", false, "Show help message")
	fs.Usage = func() { printUsage(stderr) }

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *help {
		printHelp(stdout)
		return 0
	}
	if opts.template == "" && fs.NArg() > 0 {
		opts.template = fs.Arg(0)
	}
	if opts.template == "" {
		fmt.Fprintf(stderr, "Error: template PDF path required\n\n")
		printUsage(stderr)
		return 2
	}

	if err := generate(opts, stdout); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func generate(opts options, stdout io.Writer) error {
	format := mapping.FormatForPath(opts.output)
	if opts.format != "" {
		f, err := mapping.ParseFormat(opts.format)
		if err != nil {
			return err
		}
		format = f
	}

	table, err := mapping.Generate(opts.template, opts.verbose)
	if err != nil {
		return err
	}

	if opts.verbose {
		for _, r := range table.Records() {
			fmt.Fprintf(stdout, "%-40s -> %-40s %s\n", r.PDFName, r.APIName, r.Type)
		}
	}

	if opts.check {
		return check(table, opts.output, format, stdout)
	}

	if err := table.WriteFile(opts.output, format); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}
	fmt.Fprintf(stdout, "Wrote %d mappings to %s\n", table.Len(), opts.output)
	return nil
}

func check(table *mapping.Table, path string, format mapping.Format, stdout io.Writer) error {
	if format == mapping.FormatXLSX {
		return fmt.Errorf("-check needs a json or yaml output")
	}
	want, err := table.Bytes(format)
	if err != nil {
		return err
	}
	got, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("%s: %w, regenerate it from the template", path, errDrift)
	}
	fmt.Fprintf(stdout, "%s is up to date (%d mappings)\n", path, table.Len())
	return nil
}

func printHelp(w io.Writer) {
	fmt.Fprintln(w, "SF2809 Mappings - Generate the api name mapping table from the SF2809 template")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Every fillable field of the template gets a lowercase api name, its field type,")
	fmt.Fprintln(w, "the label printed on the form and, for option fields, the values it accepts.")
	fmt.Fprintln(w)
	printUsage(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fmt.Fprintln(w, "  -template     Path to the SF2809 template PDF")
	fmt.Fprintln(w, "  -output       Mapping file to write (default "+defaultOutput+")")
	fmt.Fprintln(w, "  -format       Output format: json, yaml, xlsx (default from the output extension)")
	fmt.Fprintln(w, "  -check        Exit non-zero when the output differs from a fresh generation")
	fmt.Fprintln(w, "  -verbose      Print every mapping")
	fmt.Fprintln(w, "  -help         Show this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  sf2809-mappings sf2809.pdf")
	fmt.Fprintln(w, "  sf2809-mappings -template sf2809.pdf -output review.xlsx")
	fmt.Fprintln(w, "  sf2809-mappings -check sf2809.pdf")
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  sf2809-mappings [OPTIONS] <template_pdf>")
}
