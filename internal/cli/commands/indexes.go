package commands

import (
	"context"

	"github.com/spf13/cobra"
)

func newIndexesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "indexes",
		Short: "Manage collection indexes",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sync",
		Short: "Make stored indexes match the declared ones",
		Long: `Create declared indexes that are missing and drop stored indexes that are
no longer declared, for every class bound to a collection.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(ctx context.Context, s *session) error {
				if err := s.conn.SyncIndexes(ctx); err != nil {
					return err
				}
				success, _, _ := a.palette()
				for _, class := range s.conn.Registry().All() {
					if class.IsBound() {
						success.Fprintf(cmd.OutOrStdout(), "✓ %s: %d indexes\n", class.Name(), len(class.Metadata().Indexes))
					}
				}
				return nil
			})
		},
	})
	return cmd
}
