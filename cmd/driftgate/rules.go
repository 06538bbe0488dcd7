package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List and validate the configured correlation rules",
	RunE: func(cmd *cobra.Command, args []string) error {
		rules := cfg.Correlation.Rules
		if len(rules) == 0 {
			fmt.Println("No correlation rules configured.")
			return nil
		}
		for i, rule := range rules {
			fmt.Printf("%d. [%s] %s -> %s\n", i+1, rule.Type, rule.Source, rule.Target)
			if rule.Reason != "" {
				fmt.Printf("   reason: %s\n", rule.Reason)
			}
			if rule.Description != "" {
				fmt.Printf("   %s\n", rule.Description)
			}
		}
		return nil
	},
}
