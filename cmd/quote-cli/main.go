// Command quote-cli generates one quote from project flags or a project file
// and prints it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"software-quoter/internal/app"
	"software-quoter/internal/common/config"
	apperrors "software-quoter/internal/common/errors"
	"software-quoter/internal/common/logger"
	"software-quoter/internal/models"
	"software-quoter/internal/quote"
	"software-quoter/internal/quote/ingest"
	"software-quoter/internal/quote/presentation"
)

type fileList []string

func (f *fileList) String() string { return strings.Join(*f, ",") }

func (f *fileList) Set(v string) error {
	*f = append(*f, v)
	return nil
}

type options struct {
	configPath string
	inputPath  string
	files      fileList
	exportPath string
	theme      string
	asJSON     bool
	// fields holds project flags that were set explicitly, by flag name.
	fields map[string]string
}

// fieldFlags maps project flags onto ProjectInput fields.
var fieldFlags = []struct {
	name  string
	usage string
	set   func(in *models.ProjectInput, v string)
}{
	{"name", "project name", func(in *models.ProjectInput, v string) { in.ProjectName = v }},
	{"type", "project type", func(in *models.ProjectInput, v string) { in.ProjectType = models.ProjectType(v) }},
	{"description", "project description", func(in *models.ProjectInput, v string) { in.Description = v }},
	{"team-size", "number of developers", func(in *models.ProjectInput, v string) { in.TeamSize = models.NumericText(v) }},
	{"hourly-rate", "hourly rate per developer", func(in *models.ProjectInput, v string) { in.HourlyRate = models.NumericText(v) }},
	{"hours-per-day", "working hours per day", func(in *models.ProjectInput, v string) { in.HoursPerDay = models.NumericText(v) }},
	{"weeks", "estimated duration in weeks", func(in *models.ProjectInput, v string) { in.EstimatedWeeks = models.NumericText(v) }},
	{"server-cost", "monthly server cost", func(in *models.ProjectInput, v string) { in.ServerCost = models.NumericText(v) }},
	{"target-cost", "fixed total price, empty for none", func(in *models.ProjectInput, v string) { in.TargetCost = models.NumericText(v) }},
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "path to a config file (defaults to configs/config.yaml)")
	flag.StringVar(&opts.inputPath, "input", "", "project JSON file, or - for stdin")
	flag.Var(&opts.files, "file", "attachment to include (repeatable)")
	flag.StringVar(&opts.exportPath, "export", "", "write the HTML document to this path, or a directory")
	flag.StringVar(&opts.theme, "theme", "", "export theme: light or dark")
	flag.BoolVar(&opts.asJSON, "json", false, "print the raw quote as JSON")
	for _, f := range fieldFlags {
		flag.String(f.name, "", f.usage)
	}
	flag.Parse()

	opts.fields = map[string]string{}
	flag.Visit(func(f *flag.Flag) {
		for _, ff := range fieldFlags {
			if ff.name == f.Name {
				opts.fields[f.Name] = f.Value.String()
			}
		}
	})

	if err := run(context.Background(), opts, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", apperrors.UserMessage(err))
		if stdErr, ok := apperrors.As(err); ok && stdErr.Details != "" {
			fmt.Fprintln(os.Stderr, "details:", stdErr.Details)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdin io.Reader, stdout io.Writer) error {
	if opts.inputPath == "" && len(opts.fields) == 0 {
		return apperrors.NewValidationFailedError("provide -input or the project flags (-name, -description, ...)")
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, "stderr")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	in := models.DefaultProjectInput()
	if opts.inputPath != "" {
		if in, err = readInput(opts.inputPath, stdin); err != nil {
			return err
		}
	}
	applyFields(&in, opts.fields)

	theme := presentation.Theme(cfg.Export.DefaultTheme)
	if opts.theme != "" {
		if theme, err = presentation.ParseTheme(opts.theme); err != nil {
			return apperrors.NewValidationFailedError(err.Error())
		}
	}

	application, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		return err
	}
	defer application.Close()

	sources := make([]ingest.Source, 0, len(opts.files))
	for _, path := range opts.files {
		sources = append(sources, ingest.FromPath(path))
	}
	ingested := application.Service.Ingest(ctx, sources)
	for _, s := range ingested.Skipped {
		zapLog.Warn("Skipping attachment", zap.String("file", s.Name), zap.String("reason", s.Reason))
	}

	outcome, err := application.Service.Generate(ctx, in, ingested.Files)
	if err != nil {
		return err
	}

	if err := printOutcome(stdout, outcome, cfg, opts.asJSON); err != nil {
		return err
	}

	if opts.exportPath != "" {
		doc, err := application.Service.ExportQuote(outcome.Quote, outcome.Quote.ClientEmailDraft, in.ProjectName, theme)
		if err != nil {
			return err
		}
		target := exportTarget(opts.exportPath, doc.Filename)
		if err := os.WriteFile(target, doc.Body, 0o644); err != nil {
			return apperrors.NewExportFailedError(err)
		}
		fmt.Fprintf(stdout, "\nExported %s\n", target)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, apperrors.NewConfigInvalidError(err)
	}
	return cfg, nil
}

func readInput(path string, stdin io.Reader) (models.ProjectInput, error) {
	var (
		raw []byte
		err error
	)
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return models.ProjectInput{}, apperrors.NewFileReadFailedError(path, err)
	}

	in := models.DefaultProjectInput()
	if err := json.Unmarshal(raw, &in); err != nil {
		return models.ProjectInput{}, apperrors.NewInputParsingFailedError(err)
	}
	return in, nil
}

// applyFields overrides input values with explicitly set project flags.
func applyFields(in *models.ProjectInput, fields map[string]string) {
	for _, f := range fieldFlags {
		if v, ok := fields[f.name]; ok {
			f.set(in, v)
		}
	}
}

func printOutcome(w io.Writer, outcome *quote.Outcome, cfg *config.Config, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(outcome)
	}

	v := presentation.Build(outcome.Quote, outcome.Quote.ClientEmailDraft, presentation.Options{
		Brand:  cfg.App.Brand,
		Locale: cfg.Quote.Locale,
	})
	_, err := io.WriteString(w, presentation.RenderText(v))
	return err
}

// exportTarget places the document inside path when path is a directory.
func exportTarget(path, filename string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Join(path, filename)
	}
	return path
}
