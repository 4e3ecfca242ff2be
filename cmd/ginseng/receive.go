package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alDuncanson/ginseng/fsutil"
)

// receiveCmd represents the receive command
var receiveCmd = &cobra.Command{
	Use:   "receive <ticket>",
	Short: "Fetch a share using its ticket",
	Long: `Fetch the files a ticket points at. This will:

1. Resolve the share manifest from the ticket's provider
2. Download every blob in the manifest
3. Export the files under the download directory

By default files land in $HOME/Downloads; override with --dir,
the download_dir config key, or GINSENG_DOWNLOAD_DIR.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
			cfg.DownloadDir = dir
		}

		core, err := newCore()
		if err != nil {
			return err
		}

		emitter := core.NewEmitter()
		renderer := newRenderer("Receiving")
		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range emitter.Events() {
				renderer.handle(ev)
			}
		}()

		result, err := core.DownloadFiles(createContext(), args[0], emitter)
		<-done
		if err != nil {
			return fmt.Errorf("download failed: %w", err)
		}

		fmt.Printf("\nReceived %q: %d files, %s\n",
			result.Metadata.Name,
			result.Metadata.FileCount,
			fsutil.FormatBytes(result.Metadata.TotalBytes))
		fmt.Printf("Saved to %s\n", result.DownloadPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(receiveCmd)
	receiveCmd.Flags().StringP("dir", "d", "", "Directory to save received files in")
}
