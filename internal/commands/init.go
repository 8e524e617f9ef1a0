package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bankfeed-dev/bankfeed/internal/categories"
	"github.com/bankfeed-dev/bankfeed/internal/config"
	"github.com/bankfeed-dev/bankfeed/internal/gitops"
)

func newInitCommand() *cobra.Command {
	var workspace string
	var useGit bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new bankfeed data directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd, absDir, workspace, useGit)
		},
	}

	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace name (required)")
	_ = cmd.MarkFlagRequired("workspace")
	cmd.Flags().BoolVar(&useGit, "git", false, "initialize a git repository and commit the initial files")

	return cmd
}

func runInit(cmd *cobra.Command, dir, workspace string, useGit bool) error {
	// Write bankfeed.yaml.
	cfg := config.Default(workspace)
	cfg.Git.AutoCommit = useGit
	if err := config.Save(filepath.Join(dir, "bankfeed.yaml"), cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Write the starter categories.
	svc := categories.NewService(categories.DefaultCategories())
	if err := svc.Save(dir); err != nil {
		return fmt.Errorf("writing categories: %w", err)
	}

	if !useGit {
		cmd.Printf("Initialized bankfeed workspace %q at %s\n", workspace, dir)
		return nil
	}

	if err := gitops.Init(dir); err != nil {
		return fmt.Errorf("git init: %w", err)
	}
	hash, err := gitops.CommitPaths(dir, "init: new workspace "+workspace, cfg.Git.AuthorName, cfg.Git.AuthorEmail)
	if err != nil {
		return fmt.Errorf("initial commit: %w", err)
	}

	cmd.Printf("Initialized bankfeed workspace %q at %s (%s)\n", workspace, dir, hash)
	return nil
}
