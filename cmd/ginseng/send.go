package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send <path>...",
	Short: "Share files or directories (produces a ticket)",
	Long: `Share one or more files or directories. This will:

1. Import the files into the local content-addressed store
2. Publish a manifest describing the share
3. Print the ticket a peer needs to fetch it

The process must stay running while peers download.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		core, err := newCore()
		if err != nil {
			return err
		}

		emitter := core.NewEmitter()
		renderer := newRenderer("Sending")
		done := make(chan struct{})
		go func() {
			defer close(done)
			for ev := range emitter.Events() {
				renderer.handle(ev)
			}
		}()

		ticket, err := core.ShareFiles(createContext(), args, emitter)
		<-done
		if err != nil {
			return fmt.Errorf("share failed: %w", err)
		}

		fmt.Println("\nShare ready. Ticket:")
		fmt.Println(ticket)
		logrus.WithFields(logrus.Fields{
			"function": "sendCmd",
			"paths":    len(args),
		}).Debug("Share session finished")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
}
