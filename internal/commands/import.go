package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bankfeed-dev/bankfeed/internal/auditlog"
	"github.com/bankfeed-dev/bankfeed/internal/categories"
	"github.com/bankfeed-dev/bankfeed/internal/config"
	"github.com/bankfeed-dev/bankfeed/internal/csvtable"
	"github.com/bankfeed-dev/bankfeed/internal/engine"
	"github.com/bankfeed-dev/bankfeed/internal/gitops"
	"github.com/bankfeed-dev/bankfeed/internal/ledger"
	"github.com/bankfeed-dev/bankfeed/internal/logger"
	"github.com/bankfeed-dev/bankfeed/internal/model"
	"github.com/bankfeed-dev/bankfeed/internal/rules"
)

// reviewOrder is the display order for buckets.
var reviewOrder = []model.Bucket{
	model.BucketReady,
	model.BucketPossibleMatch,
	model.BucketPayment,
	model.BucketPossibleDuplicate,
	model.BucketNeedsMoreData,
}

func newImportCommand() *cobra.Command {
	var dataDir string
	var profileName string
	var commit bool
	var learn bool

	cmd := &cobra.Command{
		Use:   "import <csv-file>",
		Short: "Match a bank CSV export against learned rules",
		Long: `Reads a bank CSV export, matches each row against the workspace's
learned merchant rules and prints the result grouped by review bucket.

With --commit, rows in the ready bucket are appended to the ledger.
With --learn, committed rows with a category also update the rule store.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			absDir, err := filepath.Abs(dataDir)
			if err != nil {
				return fmt.Errorf("resolving data dir: %w", err)
			}
			return runImport(cmd, absDir, args[0], profileName, commit, learn)
		},
	}

	cmd.Flags().StringVar(&dataDir, "dir", ".", "bankfeed data directory")
	cmd.Flags().StringVar(&profileName, "profile", "", "import profile name (defaults to the first profile)")
	cmd.Flags().BoolVar(&commit, "commit", false, "append ready rows to the ledger")
	cmd.Flags().BoolVar(&learn, "learn", false, "remember merchant to category mappings for committed rows")

	return cmd
}

func runImport(cmd *cobra.Command, dataDir, csvPath, profileName string, commit, learn bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(filepath.Join(dataDir, "bankfeed.yaml"))
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)

	profile, err := pickProfile(cfg, profileName)
	if err != nil {
		return err
	}

	store, closeStore, err := openStore(cfg, dataDir, log)
	if err != nil {
		return err
	}
	defer closeStore()

	cats, err := categories.Load(dataDir)
	if err != nil {
		return err
	}
	ledgerSvc := ledger.NewService(dataDir, cats)

	entries, err := ledgerSvc.ReadAll()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(csvPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", csvPath, err)
	}
	table, err := csvtable.Read(data)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", csvPath, err)
	}

	eng := engine.New(store, ledger.NewIndex(entries), engine.Options{
		ReadyThreshold: cfg.Thresholds.Ready,
		InvertSign:     profile.InvertSign,
		ParseDate: func(raw string) (time.Time, error) {
			return time.Parse(profile.DateLayout, raw)
		},
	})

	cands, err := eng.Build(ctx, cfg.Workspace.Name, table, engine.ColumnMap{
		Date:        profile.DateColumn,
		Description: profile.DescriptionColumn,
		Merchant:    profile.MerchantColumn,
		Amount:      profile.AmountColumn,
		Category:    profile.CategoryColumn,
	})
	if err != nil {
		return err
	}

	log.Info().Int("rows", len(cands)).Str("profile", profile.Name).Msg("import candidates built")
	printReview(cmd, cands, cats)

	audit := []auditlog.Entry{{
		Timestamp: time.Now(),
		Workspace: cfg.Workspace.Name,
		Action:    auditlog.ActionImport,
		Details:   fmt.Sprintf("%s: %d rows", filepath.Base(csvPath), len(cands)),
	}}

	if !commit {
		if err := auditlog.Append(dataDir, audit); err != nil {
			return err
		}
		cmd.Println("\nDry run. Re-run with --commit to append ready rows to the ledger.")
		return nil
	}

	// Non-interactive commit takes only the ready bucket; everything else
	// stays behind for review.
	for _, c := range cands {
		if c.Bucket != model.BucketReady {
			c.IncludeInImport = false
		}
		if learn && c.IncludeInImport && c.SelectedCategoryID != 0 {
			c.RememberMapping = true
		}
	}

	committed, err := ledgerSvc.Commit(cfg.Workspace.Name, cands)
	if err != nil {
		return err
	}
	cmd.Printf("\nCommitted %d entries to the ledger.\n", len(committed))
	audit = append(audit, auditlog.Entry{
		Timestamp: time.Now(),
		Workspace: cfg.Workspace.Name,
		Action:    auditlog.ActionCommit,
		Details:   fmt.Sprintf("%d entries", len(committed)),
	})

	if learn {
		learned, err := eng.Learn(ctx, cfg.Workspace.Name, cands)
		if err != nil {
			return err
		}
		cmd.Printf("Learned %d merchant rules.\n", learned)
		audit = append(audit, auditlog.Entry{
			Timestamp: time.Now(),
			Workspace: cfg.Workspace.Name,
			Action:    auditlog.ActionLearn,
			Details:   fmt.Sprintf("%d rules", learned),
		})
	}

	if err := auditlog.Append(dataDir, audit); err != nil {
		return err
	}

	if cfg.Git.AutoCommit && gitops.IsRepo(dataDir) {
		msg := fmt.Sprintf("import: %s (%d entries)", filepath.Base(csvPath), len(committed))
		hash, err := gitops.CommitPaths(dataDir, msg, cfg.Git.AuthorName, cfg.Git.AuthorEmail,
			"ledger.csv", "rules.csv", "import-log.csv")
		if err != nil {
			return fmt.Errorf("committing data files: %w", err)
		}
		cmd.Printf("Recorded git commit %s.\n", hash)
	}

	return nil
}

func pickProfile(cfg *config.Config, name string) (config.ImportProfile, error) {
	if name == "" {
		if len(cfg.Profiles) == 0 {
			return config.ImportProfile{}, fmt.Errorf("no import profiles configured in bankfeed.yaml")
		}
		return cfg.Profiles[0], nil
	}
	profile, ok := cfg.Profile(name)
	if !ok {
		return config.ImportProfile{}, fmt.Errorf("import profile %q not found in bankfeed.yaml", name)
	}
	return profile, nil
}

// openStore builds the configured rule store. The returned func releases
// any held connections and is safe to call unconditionally.
func openStore(cfg *config.Config, dataDir string, log zerolog.Logger) (rules.Store, func(), error) {
	switch cfg.Store.Backend {
	case "", "file":
		return rules.NewFileStore(dataDir), func() {}, nil
	case "postgres":
		pg, err := rules.OpenPostgres(cfg.Store.PostgresDSN, log)
		if err != nil {
			return nil, func() {}, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, func() {}, err
		}
		return pg, func() { pg.Close() }, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// printReview writes candidates grouped by bucket.
func printReview(cmd *cobra.Command, cands []*model.ImportCandidate, cats *categories.Service) {
	byBucket := make(map[model.Bucket][]*model.ImportCandidate)
	for _, c := range cands {
		byBucket[c.Bucket] = append(byBucket[c.Bucket], c)
	}

	for _, bucket := range reviewOrder {
		group := byBucket[bucket]
		if len(group) == 0 {
			continue
		}
		cmd.Printf("\n%s (%d)\n", bucket, len(group))
		for _, c := range group {
			category := "-"
			if cat, ok := cats.Get(c.SelectedCategoryID); ok {
				category = cat.Name
			}
			date := "-"
			if !c.Date.IsZero() {
				date = c.Date.Format("2006-01-02")
			}
			cmd.Printf("  line %-4d %-10s %10s  %-30s %-15s %s\n",
				c.Source.Line, date, c.Amount.StringFixed(2), c.Merchant, category, c.MatchReason)
		}
	}
}
