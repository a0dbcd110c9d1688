package cmd

import (
	"fmt"

	"github.com/agentic-research/dirgraph/internal/query"
	"github.com/agentic-research/dirgraph/internal/store"
	"github.com/spf13/cobra"
)

var (
	queryRoot   string
	queryFacet  string
	queryPrefix string
)

func init() {
	queryCmd.Flags().StringVar(&dbPath, "db", "dirgraph.db", "Path to the directory database")
	queryCmd.Flags().StringVar(&queryRoot, "root", "/", "Subtree root path")
	queryCmd.Flags().StringVar(&queryFacet, "facet", "", "Only return objects with this facet applied")
	queryCmd.Flags().StringVar(&queryPrefix, "prefix", "", "Path prefix for projecting results (defaults to the root)")
	rootCmd.AddCommand(queryCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Recursively list a subtree and project matches to materialized paths",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		ctx := cmd.Context()

		st, err := store.OpenSQLiteStore(dbPath)
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		engine := query.New(st, query.WithLogger(logger))

		// A bare facet match over the whole directory is served from the
		// store's facet index; anything else walks the subtree.
		var matches []store.ObjectRef
		if queryFacet != "" && queryRoot == "/" {
			matches, err = engine.ListByFacet(ctx, queryFacet)
		} else {
			var pred query.Predicate
			if queryFacet != "" {
				pred = query.HasFacet(queryFacet)
			}
			matches, err = engine.RecursiveList(ctx, store.PathRef(queryRoot), pred)
		}
		if err != nil {
			return err
		}

		prefix := queryPrefix
		if prefix == "" {
			prefix = queryRoot
		}
		paths, err := engine.FindParentPathsWithPrefix(ctx, prefix, matches)
		if err != nil {
			return err
		}
		for _, p := range paths {
			fmt.Println(p)
		}
		return nil
	},
}
