package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// enqueueCmd re-queues an upload by ID, useful when a job was lost or a
// failed upload should be attempted again after a fix.
var enqueueCmd = &cobra.Command{
	Use:   "enqueue <upload-id>",
	Short: "Enqueue a processing job for an existing upload",
	Args:  cobra.ExactArgs(1),
	RunE:  runEnqueue,
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	uploadID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid upload id %q: %v", args[0], err)
	}

	jobQueue, err := newJobQueue()
	if err != nil {
		return err
	}
	defer jobQueue.Close()

	if err := jobQueue.Enqueue(context.Background(), uploadID); err != nil {
		return err
	}

	fmt.Printf("enqueued processing job for upload %d\n", uploadID)
	return nil
}
