package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGCCommand(opts *RootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove stored images that no recipe references",
		Long: `Remove stored images that no recipe references.

Images younger than gc.grace_period are kept. At most gc.batch_size
images are removed per run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := opts.env(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a, err := e.openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.NewGarbageCollector(dryRun).RunOnce(cmd.Context())
			if err != nil {
				return err
			}

			verb := "Deleted"
			if dryRun {
				verb = "Would delete"
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Scanned %d images\n", result.Scanned)
			fmt.Fprintf(w, "%s %d orphan images (%d bytes)\n", verb, result.ImagesDeleted, result.BytesFreed)
			if result.Errors > 0 {
				fmt.Fprintf(w, "Failed to delete %d images\n", result.Errors)
			}
			if result.HasMore {
				fmt.Fprintln(w, "More orphans remain; run again.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report orphans without deleting them")
	return cmd
}
