package main

import (
	"fmt"

	"refldump/process"
	"refldump/reflection"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var scanAddresses []string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Find initializers through their registration call and dump them",
	Long: `scan searches executable segments for the code that registers each class
initializer, resolves the initializer address from the lea that loads it and
dumps every plausible record.

With --address the listed initializers are dumped instead and no scan runs.`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().String("signature", "", "registration code signature (default \""+reflection.DefaultSignature+"\")")
	scanCmd.Flags().StringSliceVarP(&scanAddresses, "address", "a", nil, "initializer address to dump (repeatable)")
	viper.BindPFlag("scan.signature", scanCmd.Flags().Lookup("signature"))
}

func runScan(cmd *cobra.Command, args []string) error {
	image, err := openImage(imageSource)
	if err != nil {
		return err
	}
	defer image.Close()

	if len(scanAddresses) > 0 {
		addrs := make([]process.ProcessMemoryAddress, 0, len(scanAddresses))
		for _, s := range scanAddresses {
			addr, err := parseAddress(s)
			if err != nil {
				return err
			}
			addrs = append(addrs, addr)
		}
		return runDump(image, reflection.NewAddressDiscovery(addrs...))
	}

	signature, err := signatureFromConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if signature.Len() < 7 {
		return fmt.Errorf("signature %s is shorter than the lea it must start with", signature)
	}

	discovery := reflection.NewPatternDiscovery(image, signature, scannerFromConfig(viper.GetViper()), limitsFromConfig(viper.GetViper()))
	return runDump(image, discovery)
}
