package main

import (
	"context"
	"errors"

	"refldump/process_blob"

	"github.com/caarlos0/ctrlc"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot DIR",
	Short: "Save the selected image as a dump directory",
	Long: `snapshot copies every readable region of the image into DIR so it can be
dumped later with --dump, typically from a live --pid or --name.`,
	Args: cobra.ExactArgs(1),
	RunE: runSnapshot,
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	image, err := openImage(imageSource)
	if err != nil {
		return err
	}
	defer image.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var saveErr error
	done := make(chan struct{})
	err = ctrlc.Default.Run(ctx, func() error {
		defer close(done)
		saveErr = process_blob.Save(ctx, image, args[0], image.meta)
		return saveErr
	})
	if errors.As(err, &ctrlc.ErrorCtrlC{}) {
		log.Warn("Interrupted, snapshot in ", args[0], " is incomplete")
		cancel()
		<-done
		return errors.New("snapshot cancelled")
	}
	return saveErr
}
