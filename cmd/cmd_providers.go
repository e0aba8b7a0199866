// Copyright 2025 The LeisureSlots Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jcodagnone/leisureslots/provider"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Leisure centre operators",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists the providers that can be searched",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		registry, err := common.providers()
		if err != nil {
			return err
		}

		a, b, c := strings.Repeat("─", 16), strings.Repeat("─", 20), strings.Repeat("─", 7)
		fmt.Println("Available providers:")
		fmt.Printf("╭─%-16s─┬─%-20s─┬─%-7s─╮\n", a, b, c)
		fmt.Printf("│ %-16s │ %-20s │ %-7s │\n", "Name", "Company", "Version")
		fmt.Printf("├─%-16s─┼─%-20s─┼─%-7s─┤\n", a, b, c)
		err = registry.Each(func(p provider.Provider) error {
			fmt.Printf("│ %-16s │ %-20s │ %-7s │\n", p.Name(), p.Company(), p.Version())

			return nil
		})
		fmt.Printf("╰─%-16s─┴─%-20s─┴─%-7s─╯\n", a, b, c)

		return err
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
	providersCmd.AddCommand(providersListCmd)
}
