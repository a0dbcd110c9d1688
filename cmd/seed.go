package cmd

import (
	"fmt"

	"github.com/agentic-research/dirgraph/internal/builder"
	"github.com/agentic-research/dirgraph/internal/schema"
	"github.com/agentic-research/dirgraph/internal/seed"
	"github.com/agentic-research/dirgraph/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	schemaName    string
	schemaVersion string
)

func init() {
	seedCmd.Flags().StringVar(&dbPath, "db", "dirgraph.db", "Path to the directory database")
	seedCmd.Flags().StringVar(&schemaName, "schema-name", "org", "Name for the directory schema")
	seedCmd.Flags().StringVar(&schemaVersion, "schema-version", "1.0", "Version for the published schema")
	rootCmd.AddCommand(seedCmd)
}

var seedCmd = &cobra.Command{
	Use:   "seed [tree.hcl]",
	Short: "Create a directory database and populate it from a tree specification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		ctx := cmd.Context()

		spec, err := seed.Load(args[0])
		if err != nil {
			return err
		}

		sess := schema.NewSession(schemaName)
		for _, f := range builder.OrgFacets() {
			if err := sess.Development().DefineFacet(f); err != nil {
				return err
			}
		}
		published, err := sess.Publish(schemaVersion)
		if err != nil {
			return err
		}
		doc, err := published.JSON()
		if err != nil {
			return err
		}
		logger.Debug("schema published", zap.String("document", doc))

		st, err := store.OpenSQLiteStore(dbPath)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		if err := sess.Apply(ctx, st); err != nil {
			return err
		}
		if err := spec.Apply(ctx, st); err != nil {
			return err
		}

		logger.Info("directory seeded",
			zap.String("db", dbPath),
			zap.Int("objects", len(spec.Objects)),
			zap.Int("links", len(spec.Links)))
		fmt.Printf("Seeded %d objects and %d links into %s\n", len(spec.Objects), len(spec.Links), dbPath)
		return sess.Teardown(ctx)
	},
}
