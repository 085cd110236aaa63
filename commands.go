package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/mcncl/pytyper/internal/accumulator"
	"github.com/mcncl/pytyper/internal/analyzer"
	"github.com/mcncl/pytyper/internal/batch"
	"github.com/mcncl/pytyper/internal/config"
	"github.com/mcncl/pytyper/internal/errors"
	"github.com/mcncl/pytyper/internal/formatter"
	"github.com/mcncl/pytyper/internal/generator"
	"github.com/mcncl/pytyper/internal/models"
	"github.com/mcncl/pytyper/internal/naming"
	"github.com/mcncl/pytyper/internal/parser"
	"github.com/mcncl/pytyper/internal/query"
	"github.com/mcncl/pytyper/internal/schema"
)

// Emit targets for generate.
const (
	EmitPython     = "python"
	EmitJSONSchema = "jsonschema"
)

// InputFlags are the flags controlling how documents are read.
type InputFlags struct {
	Select      string `help:"jq expression selecting the part of each document to type." short:"s" env:"PYTYPER_SELECT"`
	InputFormat string `help:"Input format: auto, json or yaml." env:"PYTYPER_INPUT_FORMAT"`
}

// OutputFlags are the flags controlling the generated declarations.
type OutputFlags struct {
	Notation string `help:"Type notation: typing or pep604." short:"n" env:"PYTYPER_NOTATION"`
	NoFormat bool   `help:"Do not wrap long declarations or sort imports."`
}

func overrides(rootName string, in InputFlags, out OutputFlags) config.Overrides {
	o := config.Overrides{
		RootName:    rootName,
		Notation:    out.Notation,
		InputFormat: in.InputFormat,
		Select:      in.Select,
	}
	if out.NoFormat {
		disabled := false
		o.Format = &disabled
	}
	return o
}

// GenerateCmd turns one document into a Python module.
type GenerateCmd struct {
	InputFlags
	OutputFlags

	Input       string `help:"Path to input JSON or YAML file. If not specified, reads from stdin." short:"i" type:"path"`
	Output      string `help:"Path to output Python file. If not specified, writes to stdout." short:"o" type:"path"`
	RootName    string `help:"Name for the root declaration. Defaults to the input file name." short:"r" env:"PYTYPER_ROOT_NAME"`
	FromSchema  string `help:"Generate from a JSON Schema document instead of a sample." type:"path"`
	Emit        string `help:"Output kind: python or jsonschema." enum:"python,jsonschema" default:"python"`
	Interactive bool   `help:"Run in interactive mode, allowing direct JSON input with Ctrl+D to process." short:"I"`
}

// Run executes the generate command.
func (cmd *GenerateCmd) Run(c *Context) error {
	cfg, done, err := c.setup(overrides(cmd.RootName, cmd.InputFlags, cmd.OutputFlags))
	if err != nil {
		return err
	}
	defer done()

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	var s *generator.Synthesis
	if cmd.FromSchema != "" {
		name := cmd.RootName
		if name == "" && cfg.RootName != analyzer.DefaultRootName {
			name = cfg.RootName
		}
		s, err = synthesizeFromSchema(gen, cmd.FromSchema, name)
	} else {
		s, err = cmd.synthesizeFromDocument(c, cfg, gen)
	}
	if err != nil {
		return err
	}

	var out string
	switch cmd.Emit {
	case EmitJSONSchema:
		exported, err := schema.Export(s)
		if err != nil {
			return errors.NewGenerateError("failed to export JSON Schema", err)
		}
		data, err := json.MarshalIndent(exported, "", "  ")
		if err != nil {
			return errors.NewOutputError("failed to encode JSON Schema", err)
		}
		out = string(data) + "\n"
	default:
		out, err = renderModule(cfg, s)
		if err != nil {
			return err
		}
	}
	return writeOutput(c, cmd.Output, out)
}

func (cmd *GenerateCmd) synthesizeFromDocument(c *Context, cfg *config.Config, gen *generator.Generator) (*generator.Synthesis, error) {
	ir, err := cmd.parseInput(c, cfg.InputFormat())
	if err != nil {
		return nil, err
	}
	root, err := selectObject(cfg.Input.Select, ir.Root)
	if err != nil {
		return nil, err
	}
	s, err := gen.Declarations(rootName(cmd.RootName, cfg, cmd.Input), root)
	if err != nil {
		return nil, errors.NewGenerateError("failed to generate TypedDict declarations", err)
	}
	return s, nil
}

// parseInput reads the document from file or stdin
func (cmd *GenerateCmd) parseInput(c *Context, format parser.Format) (models.IntermediateRepresentation, error) {
	if cmd.Input != "" && cmd.Input != "-" {
		return parser.ParseFile(cmd.Input, format)
	}

	if f, ok := c.stdin.(*os.File); ok {
		stdinInfo, err := f.Stat()
		if err != nil {
			return models.IntermediateRepresentation{}, errors.NewInputError("failed to access stdin", err)
		}
		if (stdinInfo.Mode() & os.ModeCharDevice) != 0 {
			// Terminal is interactive (not piped)
			if cmd.Interactive {
				return readInteractiveInput(c, format)
			}
			return models.IntermediateRepresentation{}, errors.NewInputError("no input provided", errors.ErrNoInput)
		}
	}

	data, err := io.ReadAll(c.stdin)
	if err != nil {
		return models.IntermediateRepresentation{}, errors.NewInputError("failed to read from stdin", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return models.IntermediateRepresentation{}, errors.NewInputError("empty input received from stdin", errors.ErrEmptyInput)
	}
	return parser.ParseBytes(data, format)
}

// readInteractiveInput lets users paste a document and signal completion
// with Ctrl+D (EOF).
func readInteractiveInput(c *Context, format parser.Format) (models.IntermediateRepresentation, error) {
	fmt.Fprintln(c.stderr, "PyTyper Interactive Mode")
	fmt.Fprintln(c.stderr, "Paste your JSON below and press Ctrl+D (or Ctrl+Z on Windows) when done:")

	reader := bufio.NewReader(c.stdin)
	var builder strings.Builder
	for {
		line, err := reader.ReadString('\n')
		builder.WriteString(line)
		if err == io.EOF {
			break
		}
		if err != nil {
			return models.IntermediateRepresentation{}, errors.NewInputError("error reading input", err)
		}
	}

	data := builder.String()
	if strings.TrimSpace(data) == "" {
		return models.IntermediateRepresentation{}, errors.NewInputError("empty input received", errors.ErrEmptyInput)
	}

	fmt.Fprintln(c.stderr, "\nProcessing JSON...")
	return parser.ParseBytes([]byte(data), format)
}

// AccumulateCmd merges several documents into one set of declarations.
type AccumulateCmd struct {
	InputFlags
	OutputFlags

	Files        []string `arg:"" help:"Documents to merge." type:"path"`
	Output       string   `help:"Path to output Python file. If not specified, writes to stdout." short:"o" type:"path"`
	RootName     string   `help:"Name for the root declaration." short:"r" env:"PYTYPER_ROOT_NAME"`
	Report       string   `help:"Write a per-path shape report to this file." type:"path"`
	ReportFormat string   `help:"Report encoding: json or yaml." enum:"json,yaml" default:"json"`
}

// Run executes the accumulate command.
func (cmd *AccumulateCmd) Run(c *Context) error {
	cfg, done, err := c.setup(overrides(cmd.RootName, cmd.InputFlags, cmd.OutputFlags))
	if err != nil {
		return err
	}
	defer done()

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	acc := accumulator.New(cfg.RootName)
	for _, path := range cmd.Files {
		ir, err := parser.ParseFile(path, cfg.InputFormat())
		if err != nil {
			return err
		}
		root, err := selectObject(cfg.Input.Select, ir.Root)
		if err != nil {
			return err
		}
		if err := acc.Add(root); err != nil {
			return errors.NewAnalysisError(fmt.Sprintf("failed to analyze '%s'", path), err)
		}
		slog.Debug("accumulated document", "path", path)
	}

	report, s, err := acc.Build(gen)
	if err != nil {
		return errors.NewGenerateError("failed to merge documents", err)
	}

	out, err := renderModule(cfg, s)
	if err != nil {
		return err
	}
	if err := writeOutput(c, cmd.Output, out); err != nil {
		return err
	}

	if cmd.Report == "" {
		return nil
	}
	var data []byte
	if cmd.ReportFormat == "yaml" {
		data, err = report.YAML()
	} else {
		data, err = report.JSON()
	}
	if err != nil {
		return errors.NewOutputError("failed to encode report", err)
	}
	if err := os.WriteFile(cmd.Report, data, 0o644); err != nil {
		return errors.NewOutputError(fmt.Sprintf("failed to write report '%s'", cmd.Report), err)
	}
	return nil
}

// BatchCmd generates one module per document.
type BatchCmd struct {
	InputFlags
	OutputFlags

	Files   []string `arg:"" help:"Documents to convert." type:"path"`
	OutDir  string   `help:"Directory for generated modules. Defaults to the directory of each input." type:"path"`
	Workers int      `help:"Number of documents processed concurrently." env:"PYTYPER_WORKERS"`
}

// Run executes the batch command.
func (cmd *BatchCmd) Run(c *Context) error {
	cfg, done, err := c.setup(overrides("", cmd.InputFlags, cmd.OutputFlags))
	if err != nil {
		return err
	}
	defer done()

	gen, err := newGenerator(cfg)
	if err != nil {
		return err
	}

	workers := cfg.Batch.Workers
	if cmd.Workers > 0 {
		workers = cmd.Workers
	}
	runnerCfg := batch.Config{
		Workers:   workers,
		CacheSize: cfg.Batch.CacheSize,
		Module:    cfg.ModuleOptions(),
		Select:    cfg.Input.Select,
	}
	if cfg.Formatting.Enabled {
		runnerCfg.Formatter = formatter.NewFormatter(cfg.Formatting.MaxLineLength)
	}
	runner, err := batch.NewRunner(gen, runnerCfg)
	if err != nil {
		return err
	}

	jobs := make([]batch.Job, len(cmd.Files))
	for i, path := range cmd.Files {
		jobs[i] = batch.Job{Path: path, Format: cfg.InputFormat()}
	}

	results, err := runner.Run(c.ctx, jobs)
	if err != nil {
		return errors.NewInputError("batch cancelled", err)
	}

	if cmd.OutDir != "" {
		if err := os.MkdirAll(cmd.OutDir, 0o755); err != nil {
			return errors.NewOutputError(fmt.Sprintf("failed to create '%s'", cmd.OutDir), err)
		}
	}

	failed := 0
	for _, result := range results {
		if result.Err != nil {
			failed++
			fmt.Fprintf(c.stderr, "%s: %s\n", result.Job.Path, errors.UserFriendlyError(result.Err))
			continue
		}
		dir := cmd.OutDir
		if dir == "" {
			dir = filepath.Dir(result.Job.Path)
		}
		target := filepath.Join(dir, naming.RootNameFromPath(result.Job.Path, "module")+".py")
		if err := os.WriteFile(target, []byte(result.Output), 0o644); err != nil {
			failed++
			fmt.Fprintf(c.stderr, "%s: failed to write '%s': %v\n", result.Job.Path, target, err)
			continue
		}
		fmt.Fprintf(c.stderr, "%s -> %s\n", result.Job.Path, target)
	}

	if failed > 0 {
		return errors.NewOutputError(fmt.Sprintf("%d of %d documents failed", failed, len(results)), nil)
	}
	return nil
}

// CheckCmd validates documents against the shape of a sample.
type CheckCmd struct {
	InputFlags

	Sample     string   `arg:"" help:"Document whose shape the others must match." type:"path"`
	Files      []string `arg:"" help:"Documents to validate." type:"path"`
	FromSchema bool     `help:"Treat the sample as a JSON Schema document."`
}

// Run executes the check command.
func (cmd *CheckCmd) Run(c *Context) error {
	cfg, done, err := c.setup(overrides("", cmd.InputFlags, OutputFlags{}))
	if err != nil {
		return err
	}
	defer done()

	validator, err := cmd.validator(cfg)
	if err != nil {
		return err
	}

	failed := 0
	for _, path := range cmd.Files {
		ir, err := parser.ParseFile(path, cfg.InputFormat())
		if err != nil {
			return err
		}
		value := ir.Root
		if cfg.Input.Select != "" {
			if value, err = query.Select(cfg.Input.Select, value); err != nil {
				return err
			}
		}

		result := validator.Validate(value)
		if result.Valid {
			fmt.Fprintf(c.stdout, "ok   %s\n", path)
			continue
		}
		failed++
		fmt.Fprintf(c.stdout, "FAIL %s\n", path)
		for _, msg := range result.Errors {
			fmt.Fprintf(c.stdout, "     %s\n", msg)
		}
	}

	if failed > 0 {
		return errors.NewValidationError(fmt.Sprintf("%d of %d documents do not match", failed, len(cmd.Files)), nil)
	}
	return nil
}

func (cmd *CheckCmd) validator(cfg *config.Config) (*schema.Validator, error) {
	if cmd.FromSchema {
		data, err := os.ReadFile(cmd.Sample)
		if err != nil {
			return nil, errors.NewInputError(fmt.Sprintf("failed to read schema '%s'", cmd.Sample), err)
		}
		return schema.CompileBytes(data)
	}

	gen, err := newGenerator(cfg)
	if err != nil {
		return nil, err
	}
	ir, err := parser.ParseFile(cmd.Sample, cfg.InputFormat())
	if err != nil {
		return nil, err
	}
	root, err := selectObject(cfg.Input.Select, ir.Root)
	if err != nil {
		return nil, err
	}
	s, err := gen.Declarations(rootName("", cfg, cmd.Sample), root)
	if err != nil {
		return nil, errors.NewGenerateError("failed to infer the sample's shape", err)
	}
	exported, err := schema.Export(s)
	if err != nil {
		return nil, errors.NewGenerateError("failed to export JSON Schema", err)
	}
	return schema.NewValidator(exported)
}

func newGenerator(cfg *config.Config) (*generator.Generator, error) {
	opts, err := cfg.GeneratorOptions()
	if err != nil {
		return nil, errors.NewValidationError("invalid configuration", err)
	}
	return generator.NewGenerator(opts...), nil
}

// rootName picks the root declaration name: the flag, then an explicit
// root_name from the config file, then the input file name.
func rootName(flag string, cfg *config.Config, inputPath string) string {
	if flag != "" {
		return flag
	}
	if cfg.RootName != "" && cfg.RootName != analyzer.DefaultRootName {
		return cfg.RootName
	}
	return naming.RootNameFromPath(inputPath, analyzer.DefaultRootName)
}

// selectObject applies the configured selection and rejects documents that
// do not describe an object.
func selectObject(expr string, value models.JSONValue) (models.JSONValue, error) {
	if expr != "" {
		selected, err := query.Select(expr, value)
		if err != nil {
			return nil, err
		}
		value = selected
	}
	if _, ok := value.(*models.JSONObject); !ok {
		return nil, errors.NewValidationError("JSON does not represent an object", errors.ErrNotAnObject)
	}
	return value, nil
}

func synthesizeFromSchema(gen *generator.Generator, path, rootName string) (*generator.Synthesis, error) {
	doc, err := schema.ParseFile(path)
	if err != nil {
		return nil, err
	}
	converter := schema.NewConverter(doc)
	code, err := converter.Convert(rootName)
	if err != nil {
		return nil, errors.NewAnalysisError("failed to convert JSON Schema", err)
	}
	s, err := gen.FromCode(converter.RootName(rootName), code)
	if err != nil {
		return nil, errors.NewGenerateError("failed to generate TypedDict declarations", err)
	}
	return s, nil
}

// renderModule writes the module text and formats it when enabled.
func renderModule(cfg *config.Config, s *generator.Synthesis) (string, error) {
	module := generator.WriteModule(s, cfg.ModuleOptions())
	if !cfg.Formatting.Enabled {
		return module, nil
	}
	formatted, err := formatter.NewFormatter(cfg.Formatting.MaxLineLength).Format(module)
	if err != nil {
		return "", errors.NewFormatError("failed to format Python code", err)
	}
	return formatted, nil
}

// writeOutput writes code to file or stdout
func writeOutput(c *Context, path, code string) error {
	if path != "" {
		if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
			return errors.NewOutputError(fmt.Sprintf("failed to write to file '%s'", path), err)
		}
		fmt.Fprintf(c.stderr, "Generated Python code written to %s\n", path)
		return nil
	}

	if _, err := fmt.Fprintln(c.stdout, strings.TrimSpace(code)); err != nil {
		return errors.NewOutputError("failed to write to stdout", err)
	}
	return nil
}
