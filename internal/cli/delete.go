package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the collection and all its chunks",
	Long: `Drop the configured collection. Deleting a collection that does not
exist succeeds.

Examples:
  finrag delete
  finrag delete --collection apple`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Retriever.DeleteCollection(ctx); err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
		fmt.Printf("Collection %q deleted.\n", a.Retriever.Collection())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
