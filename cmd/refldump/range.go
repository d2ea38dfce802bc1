package main

import (
	"refldump/reflection"

	"github.com/spf13/cobra"
)

var rangeCmd = &cobra.Command{
	Use:   "range START-END|START+SIZE...",
	Short: "Walk fixed address ranges of packed initializers",
	Long: `range treats each range as an array of 40 byte class initializers and
dumps every record it can read. Records with unreadable names are dumped under
placeholder names instead of being rejected.`,
	Example: `  refldump range --pe game.exe 0x1424A8000-0x1424B2000
  refldump range --dump ./snap 0x1424A8000+0x4000 0x1424C0000+0x800`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRange,
}

func runRange(cmd *cobra.Command, args []string) error {
	ranges := make([]reflection.Range, 0, len(args))
	for _, arg := range args {
		r, err := parseRange(arg)
		if err != nil {
			return err
		}
		ranges = append(ranges, r)
	}

	image, err := openImage(imageSource)
	if err != nil {
		return err
	}
	defer image.Close()

	return runDump(image, reflection.NewRangeDiscovery(ranges...))
}
