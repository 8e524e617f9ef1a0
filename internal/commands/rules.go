package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/bankfeed-dev/bankfeed/internal/config"
	"github.com/bankfeed-dev/bankfeed/internal/logger"
	"github.com/bankfeed-dev/bankfeed/internal/normalize"
)

func newRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and edit learned merchant rules",
	}

	cmd.AddCommand(newRulesListCommand())
	cmd.AddCommand(newRulesAddCommand())

	return cmd
}

func newRulesListCommand() *cobra.Command {
	var dataDir string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the workspace's learned rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			absDir, err := filepath.Abs(dataDir)
			if err != nil {
				return fmt.Errorf("resolving data dir: %w", err)
			}
			return runRulesList(cmd, absDir)
		},
	}

	cmd.Flags().StringVar(&dataDir, "dir", ".", "bankfeed data directory")

	return cmd
}

func runRulesList(cmd *cobra.Command, dataDir string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(filepath.Join(dataDir, "bankfeed.yaml"))
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	store, closeStore, err := openStore(cfg, dataDir, log)
	if err != nil {
		return err
	}
	defer closeStore()

	ruleset, err := store.FetchAll(ctx, cfg.Workspace.Name)
	if err != nil {
		return err
	}
	if len(ruleset) == 0 {
		cmd.Println("No learned rules yet.")
		return nil
	}

	keys := make([]string, 0, len(ruleset))
	for k := range ruleset {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		rule := ruleset[k]
		cmd.Printf("%-30s %-25s category %-3d updated %s\n",
			rule.Key, rule.PreferredName, rule.CategoryID, rule.UpdatedAt.Format("2006-01-02"))
	}
	return nil
}

func newRulesAddCommand() *cobra.Command {
	var dataDir string
	var preferredName string
	var categoryID int

	cmd := &cobra.Command{
		Use:   "add <merchant-text>",
		Short: "Add or update a rule by hand",
		Long: `Normalizes the merchant text the same way import does and upserts a
rule for the resulting key, so a pasted raw statement line works as input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absDir, err := filepath.Abs(dataDir)
			if err != nil {
				return fmt.Errorf("resolving data dir: %w", err)
			}
			return runRulesAdd(cmd, absDir, args[0], preferredName, categoryID)
		},
	}

	cmd.Flags().StringVar(&dataDir, "dir", ".", "bankfeed data directory")
	cmd.Flags().StringVar(&preferredName, "name", "", "preferred display name for the merchant")
	cmd.Flags().IntVar(&categoryID, "category", 0, "category ID to assign (required)")
	_ = cmd.MarkFlagRequired("category")

	return cmd
}

func runRulesAdd(cmd *cobra.Command, dataDir, merchantText, preferredName string, categoryID int) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(filepath.Join(dataDir, "bankfeed.yaml"))
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	key := normalize.Key(merchantText)
	if key == "" {
		return fmt.Errorf("merchant text normalizes to an empty key")
	}

	store, closeStore, err := openStore(cfg, dataDir, log)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := store.Upsert(ctx, cfg.Workspace.Name, key, preferredName, categoryID); err != nil {
		return err
	}

	cmd.Printf("Rule saved for %q.\n", key)
	return nil
}
