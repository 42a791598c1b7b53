package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"assessd/internal/assessment"
	"assessd/internal/catalog"
	"assessd/internal/config"
	"assessd/internal/model"
	"assessd/internal/repository"
	"assessd/internal/service"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "seed",
		Short:        "Load assessment catalogs and mint development tokens",
		SilenceUsage: true,
	}
	root.AddCommand(newCatalogCommand(), newValidateCommand(), newTokenCommand())
	return root
}

func newCatalogCommand() *cobra.Command {
	var (
		file    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Replace the MongoDB item banks with the catalogs in a YAML file",
		Long: `Reads a catalog file, validates every catalog in it and upserts the
items into MongoDB. Items missing from the file are deactivated, not deleted,
so sessions started earlier keep their references.

Example:
  seed catalog --file catalogs/assessd.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			f, err := catalog.ReadFile(file)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
			if err != nil {
				return fmt.Errorf("connect mongodb: %w", err)
			}
			defer client.Disconnect(context.Background())

			db := client.Database(cfg.MongoDB)
			if err := repository.EnsureIndexes(ctx, db); err != nil {
				return fmt.Errorf("ensure indexes: %w", err)
			}
			store := repository.NewCatalogRepo(db)
			for i := range f.Catalogs {
				c := &f.Catalogs[i]
				if err := store.Replace(ctx, c); err != nil {
					return fmt.Errorf("replace %s catalog: %w", c.Instrument, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", c.Instrument, summarize(c))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "catalogs/assessd.yaml", "catalog YAML file")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall MongoDB timeout")
	return cmd
}

func newValidateCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a catalog file and print the sequence each instrument produces",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := catalog.ReadFile(file)
			if err != nil {
				return err
			}
			sq := assessment.NewSequencer(nil)
			for i := range f.Catalogs {
				c := &f.Catalogs[i]
				seq, err := sq.Build(c)
				if err != nil {
					return fmt.Errorf("%s: %w", c.Instrument, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s, %d slots\n", c.Instrument, summarize(c), len(seq.Slots))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "catalogs/assessd.yaml", "catalog YAML file")
	return cmd
}

func newTokenCommand() *cobra.Command {
	var recruiter bool
	cmd := &cobra.Command{
		Use:   "token [subjectRef]",
		Short: "Print a candidate token, or a recruiter token with --recruiter",
		Args: func(cmd *cobra.Command, args []string) error {
			if recruiter {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			auth := service.NewAuthService(cfg.JWTSecret, cfg.RecruiterUser, cfg.RecruiterPass, cfg.CandidateTokenTTL)
			if recruiter {
				resp, err := auth.Login(cfg.RecruiterUser, cfg.RecruiterPass)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), resp.Token)
				return nil
			}
			resp, err := auth.IssueCandidateToken(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Token)
			return nil
		},
	}
	cmd.Flags().BoolVar(&recruiter, "recruiter", false, "issue a recruiter token from the configured credentials")
	return cmd
}

func summarize(c *model.Catalog) string {
	if c.Instrument == model.InstrumentDISC {
		return fmt.Sprintf("%d questions", len(c.Questions))
	}
	return fmt.Sprintf("%d descriptors, %d situational questions", len(c.Descriptors), len(c.Situational))
}
