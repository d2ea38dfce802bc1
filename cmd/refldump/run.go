package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"refldump/dump"
	"refldump/reflection"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/caarlos0/ctrlc"
	"github.com/spf13/viper"
)

var log = logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "refldump"))

// runDump runs one dump against image, with Ctrl-C stopping it after the current class
func runDump(image *loadedImage, discovery reflection.Discovery) error {
	var out io.Writer = os.Stdout
	var file *os.File
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		file = f
		out = f
	}
	buffered := bufio.NewWriter(out)

	cfg := dump.Config{
		Image:         image,
		Discovery:     discovery,
		Output:        buffered,
		OutputPath:    outputFile,
		Limits:        limitsFromConfig(viper.GetViper()),
		Verbose:       viper.GetBool("verbose"),
		ProgressEvery: viper.GetInt("progress-every"),
	}
	if file != nil {
		cfg.Progress = &barProgress{}
	}
	if graphFile != "" {
		cfg.Hierarchy = dump.NewHierarchy()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var result dump.Result
	var runErr error
	done := make(chan struct{})

	err := ctrlc.Default.Run(ctx, func() error {
		defer close(done)
		result, runErr = dump.Run(ctx, cfg)
		return runErr
	})
	if errors.As(err, &ctrlc.ErrorCtrlC{}) {
		log.Warn("Interrupted, finishing the current class...")
		cancel()
		<-done
	}

	var closer io.Closer
	if file != nil {
		closer = file
	}
	runErr = finishOutput(buffered, closer, runErr)
	if file != nil && errors.Is(runErr, reflection.ErrNoCandidates) {
		os.Remove(outputFile)
	}

	if errors.Is(runErr, reflection.ErrNoCandidates) {
		log.Warn("No reflection initializers found in ", discovery.String())
		return runErr
	}
	if runErr != nil {
		return runErr
	}

	if cfg.Hierarchy != nil {
		if err := os.WriteFile(graphFile, []byte(cfg.Hierarchy.DOT("refldump")), 0644); err != nil {
			return fmt.Errorf("failed to write graph: %w", err)
		}
		log.Infoln("Wrote class hierarchy to", graphFile)
	}

	if result.Cancelled {
		return errors.New("dump cancelled")
	}
	return nil
}

// finishOutput flushes and closes the output. The first error wins, so a failed
// run is not masked by a later close error.
func finishOutput(w *bufio.Writer, c io.Closer, runErr error) error {
	if err := w.Flush(); err != nil && runErr == nil {
		runErr = fmt.Errorf("flush output: %w", err)
	}
	if c != nil {
		if err := c.Close(); err != nil && runErr == nil {
			runErr = fmt.Errorf("close output: %w", err)
		}
	}
	return runErr
}
