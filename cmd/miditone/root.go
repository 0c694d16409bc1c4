package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "miditone",
	Short: "A polyphonic MIDI software synthesizer",
	Long: `miditone loads a Standard MIDI File and plays it through a
built-in 16-channel GM/GM2/GS/XG-aware wavetable synthesizer.`,
}

// execute adds all child commands to the root command and runs it.
func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
