package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meng-ma-biomedical-AI/MedCAT/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure linking, training and inference settings.

Use subcommands to configure specific settings or run the interactive wizard.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure inference settings step by step.`,
	RunE:  runSettingsWizard,
}

var settingsCheckpointCmd = &cobra.Command{
	Use:   "checkpoint <backend> [dir]",
	Short: "Set the checkpoint backend",
	Long: `Set where bulk inference checkpoints are kept.

Available backends:
  none    - No checkpoints; an interrupted run starts over
  file    - Numbered shard files and a cursor file in a directory
  sqlite  - Shards and cursor in one SQLite database in a directory`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSettingsCheckpoint,
}

var settingsWorkersCmd = &cobra.Command{
	Use:   "workers <n>",
	Short: "Set the number of annotation workers",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsWorkers,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsCheckpointCmd)
	settingsCmd.AddCommand(settingsWorkersCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	settings, err := currentSettings()
	if err != nil {
		return err
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[General]")
	cmd.Printf("  Full unlink: %s\n", yesNo(settings.General.FullUnlink))
	cmd.Printf("  Nested entities: %s\n", yesNo(settings.General.ShowNestedEntities))
	cmd.Printf("  Verbose: %s\n", yesNo(settings.General.Verbose))
	cmd.Println()

	cmd.Println("[Preprocessing]")
	cmd.Printf("  Max document length: %d\n", settings.Preprocessing.MaxDocumentLength)
	cmd.Printf("  Min name length: %d\n", settings.Preprocessing.MinNameLength)
	cmd.Println()

	cmd.Println("[Linking]")
	cmd.Printf("  Filters: %s\n", listOrNone(settings.Linking.Filters))
	cmd.Printf("  Similarity threshold: %.2f\n", settings.Linking.SimilarityThreshold)
	cmd.Printf("  Context window: %d\n", settings.Linking.ContextWindow)
	cmd.Printf("  Learning rate: %g\n", settings.Linking.LearningRate)
	cmd.Println()

	cmd.Println("[Training]")
	cmd.Printf("  Epochs: %d\n", settings.Training.NEpochs)
	cmd.Printf("  Print stats: %d\n", settings.Training.PrintStats)
	cmd.Printf("  Test size: %.2f\n", settings.Training.TestSize)
	cmd.Printf("  Seed: %d\n", settings.Training.Seed)
	cmd.Println()

	cmd.Println("[Inference]")
	cmd.Printf("  Workers: %d\n", settings.Inference.Workers)
	cmd.Printf("  Batch size: %d chars\n", settings.Inference.BatchSizeChars)
	cmd.Printf("  Split size: %d chars\n", settings.Inference.OutSplitSizeChars)
	cmd.Printf("  Min free memory: %.0f%%\n", settings.Inference.MinFreeMemory*100)
	cmd.Printf("  Separate meta classifiers: %s\n", yesNo(settings.Inference.SeparateNNComponents))
	cmd.Printf("  Checkpoint: %s\n", settings.Inference.Checkpoint.Description())
	if settings.Inference.Checkpoint != domain.CheckpointNone {
		cmd.Printf("  Checkpoint dir: %s\n", settings.Inference.CheckpointDir)
	}
	cmd.Printf("  Meta classifiers: %s\n", listOrNone(settings.Inference.MetaClassifiers))
	cmd.Println()

	cmd.Println("[Output]")
	cmd.Printf("  Format: %s\n", settings.Output.Format)
	cmd.Printf("  Only CUI: %s\n", yesNo(settings.Output.OnlyCUI))
	cmd.Printf("  Include text: %s\n", yesNo(settings.Output.IncludeText))
	cmd.Printf("  Additional info: %s\n", listOrNone(settings.Output.AddlInfo))
	cmd.Println()

	// Validation
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'medcat settings wizard' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	settings, err := currentSettings()
	if err != nil {
		return err
	}

	cmd.Println("MedCAT Settings Wizard")
	cmd.Println("======================")
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())

	// Step 1: Workers
	cmd.Println("Step 1: Annotation Workers")
	cmd.Println("--------------------------")
	cmd.Printf("Enter worker count [%d]: ", settings.Inference.Workers)
	workers := parseChoice(readLine(reader), 1024, settings.Inference.Workers)
	if err := settingsService.SetWorkers(workers); err != nil {
		return fmt.Errorf("failed to set workers: %w", err)
	}
	cmd.Printf("Workers set to: %d\n\n", workers)

	// Step 2: Checkpoint backend
	cmd.Println("Step 2: Select Checkpoint Backend")
	cmd.Println("---------------------------------")
	backends := domain.AllCheckpointBackends()
	current := 1
	for i, b := range backends {
		cmd.Printf("  %d. %s\n", i+1, b.Description())
		if b == settings.Inference.Checkpoint {
			current = i + 1
		}
	}
	cmd.Printf("\nEnter choice [%d]: ", current)
	backend := backends[parseChoice(readLine(reader), len(backends), current)-1]

	dir := settings.Inference.CheckpointDir
	if backend != domain.CheckpointNone {
		cmd.Printf("Enter checkpoint directory [%s]: ", dir)
		if input := readLine(reader); input != "" {
			dir = input
		}
	}
	if err := settingsService.SetCheckpoint(backend, dir); err != nil {
		return fmt.Errorf("failed to set checkpoint: %w", err)
	}
	cmd.Printf("Checkpoint set to: %s\n\n", backend.Description())

	// Final validation
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("All settings are valid and saved.")
	}

	return nil
}

func runSettingsCheckpoint(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	backend := domain.CheckpointBackend(strings.ToLower(args[0]))
	var dir string
	if len(args) > 1 {
		dir = args[1]
	}
	if err := settingsService.SetCheckpoint(backend, dir); err != nil {
		return fmt.Errorf("failed to set checkpoint: %w", err)
	}

	cmd.Printf("Checkpoint set to: %s\n", backend.Description())
	return nil
}

func runSettingsWorkers(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	n, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: workers must be a number", domain.ErrInvalidInput)
	}
	if err := settingsService.SetWorkers(n); err != nil {
		return fmt.Errorf("failed to set workers: %w", err)
	}

	cmd.Printf("Workers set to: %d\n", n)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	return strings.Join(items, ", ")
}
