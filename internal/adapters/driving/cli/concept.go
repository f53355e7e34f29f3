package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

var (
	conceptByName bool
	conceptFormat string
)

var conceptCmd = &cobra.Command{
	Use:   "concept <cui>",
	Short: "Show a concept from the concept database",
	Long: `Shows a concept by CUI, or with --name every concept linked to a name.

Examples:
  medcat --cdb cdb.csv --vocab vocab.txt concept C0011849
  medcat --cdb cdb.csv --vocab vocab.txt concept --name "heart attack"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConcept,
}

func init() {
	conceptCmd.Flags().BoolVarP(&conceptByName, "name", "n", false, "look up concepts by name instead of CUI")
	conceptCmd.Flags().StringVarP(&conceptFormat, "format", "f", "", "print as json or yaml")
	rootCmd.AddCommand(conceptCmd)
}

func runConcept(cmd *cobra.Command, args []string) error {
	settings, err := currentSettings()
	if err != nil {
		return err
	}
	model, err := loadModel(cmd, settings, ModelOptions{})
	if err != nil {
		return err
	}
	defer model.Close()
	if model.Concepts == nil {
		return errors.New("concept browser not configured")
	}

	query := strings.Join(args, " ")
	var concepts []domain.Concept
	if conceptByName {
		concepts = model.Concepts.Lookup(query)
		if len(concepts) == 0 {
			return fmt.Errorf("%w: no concept named %q", domain.ErrNotFound, query)
		}
	} else {
		c, err := model.Concepts.Concept(query)
		if err != nil {
			return err
		}
		concepts = []domain.Concept{c}
	}

	if conceptFormat != "" {
		return writeEncoded(cmd.OutOrStdout(), domain.OutputFormat(conceptFormat), concepts)
	}
	for i, c := range concepts {
		if i > 0 {
			cmd.Println()
		}
		printConcept(cmd, c)
	}
	return nil
}

func printConcept(cmd *cobra.Command, c domain.Concept) {
	cmd.Printf("%s (%s)\n", c.DisplayName(), c.CUI)
	cmd.Printf("  Names: %s\n", listOrNone(c.Names))
	cmd.Printf("  Types: %s\n", listOrNone(c.TypeIDs))
	if c.Group != "" {
		cmd.Printf("  Group: %s\n", c.Group)
	}
	cmd.Printf("  Training updates: %d\n", c.TrainCount)

	keys := make([]string, 0, len(c.AddlInfo))
	for k := range c.AddlInfo {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cmd.Printf("  %s: %s\n", k, listOrNone(c.AddlInfo[k]))
	}
}
