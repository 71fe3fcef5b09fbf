package commands

import (
	"fmt"

	"github.com/dyluth/pigeon/internal/link"
	"github.com/dyluth/pigeon/internal/printer"
	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports on this host",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := link.List()
		if err != nil {
			return printer.Error("cannot list serial ports", err.Error(), nil)
		}
		if len(ports) == 0 {
			printer.Warning("no serial ports found\n")
			return nil
		}
		for _, p := range ports {
			fmt.Fprintln(cmd.OutOrStdout(), p)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(portsCmd)
}
