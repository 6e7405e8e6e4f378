package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/benjaminschreck/go-mailmerge/pkg/datasource"
	"github.com/benjaminschreck/go-mailmerge/pkg/mailmerge"
)

var version = "0.1.0"

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:   "mailmerge",
		Short: "Mail merge for DOCX templates",
		Long: `mailmerge fills MERGEFIELD placeholders in DOCX templates with data
from JSON, CSV, YAML or XLSX files.

A single data row is merged in place; multiple rows duplicate the
document body once per row, separated by page breaks or sections,
with headers and footers duplicated alongside.`,
		Version: version,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(fieldsCmd())
	rootCmd.AddCommand(mergeCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewNop(), nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mailmerge version %s\n", version)
		},
	}
}

func fieldsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fields <template.docx>",
		Short: "List the merge fields of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			doc, err := mailmerge.Open(args[0], mailmerge.WithLogger(log))
			if err != nil {
				return err
			}
			defer doc.Close()

			for _, name := range doc.GetMergeFields() {
				fmt.Println(name)
			}
			return nil
		},
	}
}

// mergeSettings are the tunables shared by the merge and run commands.
type mergeSettings struct {
	Separator         string `yaml:"separator"`
	KeepFields        string `yaml:"keep_fields"`
	UpdateFields      string `yaml:"update_fields"`
	EmptyValue        string `yaml:"empty_value"`
	RemoveEmptyTables bool   `yaml:"remove_empty_tables"`
}

func (s mergeSettings) options(log *zap.Logger) ([]mailmerge.Option, error) {
	opts := []mailmerge.Option{
		mailmerge.WithLogger(log),
		mailmerge.WithEmptyValue(s.EmptyValue),
		mailmerge.WithRemoveEmptyTables(s.RemoveEmptyTables),
	}
	if s.KeepFields != "" {
		p, err := mailmerge.ParseKeepFieldsPolicy(s.KeepFields)
		if err != nil {
			return nil, err
		}
		opts = append(opts, mailmerge.WithKeepFields(p))
	}
	if s.UpdateFields != "" {
		p, err := mailmerge.ParseUpdateFieldsPolicy(s.UpdateFields)
		if err != nil {
			return nil, err
		}
		opts = append(opts, mailmerge.WithAutoUpdateFields(p))
	}
	return opts, nil
}

func (s mergeSettings) separator() mailmerge.Separator {
	if s.Separator == "" {
		return mailmerge.SeparatorPageBreak
	}
	return mailmerge.Separator(s.Separator)
}

// runMerge loads the template and data, merges and writes the output. One
// data row merges in place; several duplicate the body.
func runMerge(template, dataPath, output string, settings mergeSettings) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	opts, err := settings.options(log)
	if err != nil {
		return err
	}

	rows, err := datasource.LoadFile(dataPath)
	if err != nil {
		return err
	}

	doc, err := mailmerge.Open(template, opts...)
	if err != nil {
		return err
	}
	defer doc.Close()

	switch len(rows) {
	case 0:
		return fmt.Errorf("%s contains no data rows", dataPath)
	case 1:
		err = doc.Merge(rows[0])
	default:
		err = doc.MergeTemplates(rows, settings.separator())
	}
	if err != nil {
		return err
	}

	if err := doc.WriteFile(output); err != nil {
		return err
	}
	fmt.Printf("Merged %d row(s) into %s\n", len(rows), output)
	return nil
}

func mergeCmd() *cobra.Command {
	var (
		dataPath string
		output   string
		settings mergeSettings
	)
	cmd := &cobra.Command{
		Use:   "merge <template.docx>",
		Short: "Merge data rows into a template",
		Long: `Merge data rows into a template.

Example:
  mailmerge merge letter.docx -d recipients.csv -o letters.docx --separator page_break`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(args[0], dataPath, output, settings)
		},
	}
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "data file (json, csv, yaml or xlsx)")
	cmd.Flags().StringVarP(&output, "output", "o", "output.docx", "output file")
	cmd.Flags().StringVar(&settings.Separator, "separator", "page_break", "separator between duplicated bodies")
	cmd.Flags().StringVar(&settings.KeepFields, "keep-fields", "none", "keep merge fields in the output (none, some, all)")
	cmd.Flags().StringVar(&settings.UpdateFields, "update-fields", "auto", "ask Word to recalculate fields on open (never, auto, always)")
	cmd.Flags().StringVar(&settings.EmptyValue, "empty-value", "", "text substituted for fields without data")
	cmd.Flags().BoolVar(&settings.RemoveEmptyTables, "remove-empty-tables", false, "drop tables whose row data is empty")
	cmd.MarkFlagRequired("data")
	return cmd
}

// mergeJob is the YAML job file consumed by the run command.
type mergeJob struct {
	Template string        `yaml:"template"`
	Data     string        `yaml:"data"`
	Output   string        `yaml:"output"`
	Settings mergeSettings `yaml:",inline"`
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <job.yaml>",
		Short: "Run a merge described by a YAML job file",
		Long: `Run a merge described by a YAML job file:

  template: letter.docx
  data: recipients.csv
  output: letters.docx
  separator: page_break
  keep_fields: none
  update_fields: auto`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var job mergeJob
			if err := yaml.Unmarshal(raw, &job); err != nil {
				return fmt.Errorf("parsing job file: %w", err)
			}
			if job.Template == "" || job.Data == "" || job.Output == "" {
				return fmt.Errorf("job file must name template, data and output")
			}
			return runMerge(job.Template, job.Data, job.Output, job.Settings)
		},
	}
}
