package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/matiasleandrokruk/calcatalog/internal/domain/calculator"
	"github.com/spf13/cobra"
)

func newListCmd() *cobra.Command {
	var category, tag string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List calculators",
		Long: `List calculators, optionally filtered by category or tag.

Examples:
  calcatalog list
  calcatalog list --category finance
  calcatalog list --tag roi --json | jq '.[].id'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := loadCLI(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			var found []calculator.Descriptor
			switch {
			case category != "":
				for d := range cat.registry.ListByCategory(category) {
					found = append(found, d)
				}
			case tag != "":
				for d := range cat.registry.ListByTag(tag) {
					found = append(found, d)
				}
			default:
				found = cat.registry.All()
			}
			if category != "" && tag != "" {
				found = slices.DeleteFunc(found, func(d calculator.Descriptor) bool {
					return !slices.Contains(d.Tags, strings.ToLower(tag))
				})
			}
			return printDescriptors(cmd.OutOrStdout(), found, asJSON)
		},
	}
	cmd.Flags().StringVarP(&category, "category", "c", "", "only calculators in this category")
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "only calculators with this tag")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print descriptors as JSON")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search calculators by relevance",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCLI(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			return printDescriptors(cmd.OutOrStdout(), cat.registry.Search(args[0]), asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print descriptors as JSON")
	return cmd
}

func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <id>",
		Short: "Print a calculator descriptor as JSON",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := loadCLI(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			d, err := cat.registry.GetByID(args[0])
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			return writeJSON(cmd.OutOrStdout(), d)
		},
	}
}

func newExecCmd() *cobra.Command {
	var inputJSON, inputFile string
	cmd := &cobra.Command{
		Use:   "exec <id>",
		Short: "Execute a calculator and print the result",
		Long: `Execute a calculator and print the Result as JSON.

Input is a JSON object given with --input, read from --file, or read from
stdin when --file is "-". The command exits 1 when the result is a failure.

Examples:
  calcatalog exec roi-calculator --input '{"gain":150,"cost":100}'
  echo '{"weight":70,"height":175}' | calcatalog exec bmi-calculator -f -`,
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, inputJSON, inputFile)
			if err != nil {
				return err
			}
			cat, err := loadCLI(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			res := cat.dispatcher.Execute(cmd.Context(), args[0], raw)
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.OK {
				return errFailedExecution
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputJSON, "input", "i", "", "input object as JSON")
	cmd.Flags().StringVarP(&inputFile, "file", "f", "", `read the input object from a file ("-" for stdin)`)
	cmd.MarkFlagsMutuallyExclusive("input", "file")
	return cmd
}

func newAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Report catalog metadata gaps and slug variants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := loadCLI(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			findings := calculator.Audit(cat.registry.All())
			if findings == nil {
				findings = []calculator.AuditFinding{}
			}
			return writeJSON(cmd.OutOrStdout(), findings)
		},
	}
}

func readInput(cmd *cobra.Command, inline, file string) (map[string]any, error) {
	var data []byte
	switch {
	case inline != "":
		data = []byte(inline)
	case file == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		data = b
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read input: %w", err)
		}
		data = b
	default:
		return map[string]any{}, nil
	}

	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, usageError{fmt.Errorf("input must be a JSON object: %w", err)}
	}
	return raw, nil
}

func printDescriptors(w io.Writer, ds []calculator.Descriptor, asJSON bool) error {
	if asJSON {
		if ds == nil {
			ds = []calculator.Descriptor{}
		}
		return writeJSON(w, ds)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCATEGORY\tTITLE") //nolint:errcheck
	for _, d := range ds {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", d.ID, d.Category, d.Title) //nolint:errcheck
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
