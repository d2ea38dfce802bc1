package main

import (
	"fmt"
	"io"
	"os"

	"refldump/accessor"
	"refldump/dump"
	"refldump/hexdump"
	"refldump/process"
	"refldump/reflection"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect ADDRESS...",
	Short: "Show the raw initializer at an address and how it decodes",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) (err error) {
	addrs := make([]process.ProcessMemoryAddress, 0, len(args))
	for _, arg := range args {
		addr, err := parseAddress(arg)
		if err != nil {
			return err
		}
		addrs = append(addrs, addr)
	}

	image, err := openImage(imageSource)
	if err != nil {
		return err
	}
	defer image.Close()

	var out io.Writer = os.Stdout
	if outputFile != "" {
		f, createErr := os.Create(outputFile)
		if createErr != nil {
			return fmt.Errorf("failed to create output file: %w", createErr)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("close output: %w", cerr)
			}
		}()
		out = f
	}

	limits := limitsFromConfig(viper.GetViper())
	acc := accessor.New(image)
	decoder := reflection.NewDecoder(acc, reflection.WithLimits(limits), reflection.WithVerbose(true))

	for _, addr := range addrs {
		inspectOne(out, acc, decoder, addr, limits)
	}
	return nil
}

func inspectOne(out io.Writer, acc *accessor.Accessor, decoder *reflection.Decoder, addr process.ProcessMemoryAddress, limits reflection.Limits) {
	fmt.Fprintf(out, "// Initializer @ %s\n", addr.ToString())

	options := hexdump.DefaultOptions()
	options.StartOffset = uint64(addr)
	options.IsPointer = func(v uint64) bool {
		return acc.IsValidPointer(process.ProcessMemoryAddress(v))
	}
	hexdump.DumpToWriter(out, acc.ReadBytes(addr, reflection.ClassInitializerSize), options)

	verdict := reflection.Validate(acc, addr, limits)
	rec := verdict.Record
	fmt.Fprintf(out, "// verdict: %s\n", verdict.Reason)
	fmt.Fprintf(out, "// name: %s %q\n", rec.Name.State, rec.Name.Value)
	fmt.Fprintf(out, "// members: 0x%X x %d", rec.Raw.Members, rec.Raw.MemberCount)
	if rec.Clamped {
		fmt.Fprintf(out, " (clamped to %d)", rec.MemberCount)
	}
	fmt.Fprintln(out)

	// strict shows what scan would emit, lenient what range would
	policy := reflection.PolicyStrict
	if !verdict.Plausible {
		policy = reflection.PolicyLenient
	}
	if class, _ := decoder.Decode(addr, policy); class != nil {
		fmt.Fprint(out, dump.FormatClass(class))
	} else {
		fmt.Fprintln(out)
	}
}
