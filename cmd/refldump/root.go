package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	outputFile string
	graphFile  string
)

var rootCmd = &cobra.Command{
	Use:   "refldump",
	Short: "Recover C++ structs from reflection initializers in a memory image",
	Long: `refldump locates the class initializer records an engine registers for its
reflection system, validates them and writes the recovered classes as a C++
header.

The image can be a saved dump directory, a flat raw file, a PE file or a
running process.`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/refldump/config.yaml)")
	flags.BoolP("verbose", "V", false, "log every rejected candidate")
	flags.StringVarP(&outputFile, "output", "o", "", "write output to file instead of stdout")
	flags.StringVar(&graphFile, "graph", "", "write the class hierarchy as a DOT graph")

	flags.Int("max-members", 0, "members decoded per class (default 4096)")
	flags.Int("max-classes", 0, "candidates taken from a signature scan (default 20000)")
	flags.Int("string-limit", 0, "bytes read per string (default 128)")
	flags.Int("chunk-size", 0, "signature scanner chunk size in bytes (default 1MiB)")
	flags.Int("progress-every", 0, "log progress every N classes (default 200)")

	addImageFlags(flags)

	viper.BindPFlag("verbose", flags.Lookup("verbose"))
	viper.BindPFlag("limits.max-members", flags.Lookup("max-members"))
	viper.BindPFlag("limits.max-classes", flags.Lookup("max-classes"))
	viper.BindPFlag("limits.string-limit", flags.Lookup("string-limit"))
	viper.BindPFlag("scan.chunk-size", flags.Lookup("chunk-size"))
	viper.BindPFlag("progress-every", flags.Lookup("progress-every"))

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(rangeCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(snapshotCmd)

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home + "/.config/refldump")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("refldump")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
