package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	rootCmd = &cobra.Command{
		Use:   "billing-enforcer",
		Short: "DynamoDB billing mode enforcer",
		Long: `billing-enforcer - DynamoDB billing mode enforcer

Reacts to CloudTrail CreateTable and UpdateTable events and deletes tables
that use On-Demand (PAY_PER_REQUEST) billing, which bypasses WCU/RCU quotas.
Every deletion, successful or not, is broadcast to EventBridge and sent to SNS.

Inside Lambda the binary serves the runtime API when called without arguments.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inLambda() {
				return runServe(cmd, args)
			}
			return cmd.Help()
		},
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`billing-enforcer {{.Version}}
`)
}

// inLambda reports whether the process was started by the Lambda runtime.
func inLambda() bool {
	return os.Getenv("AWS_LAMBDA_RUNTIME_API") != ""
}
