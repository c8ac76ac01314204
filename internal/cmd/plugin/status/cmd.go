/*
Copyright The MySQL Operator Contributors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package status implements the kubectl-mysqlgr status command.
package status

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/22ndtech/mysql-operator/internal/cmd/plugin"
)

// NewCmd creates the "status" subcommand.
func NewCmd() *cobra.Command {
	statusCmd := &cobra.Command{
		Use:   "status [cluster]",
		Short: "Get the status of an InnoDB Cluster",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			clusterName := args[0]

			output, _ := cmd.Flags().GetString("output")
			secretName, _ := cmd.Flags().GetString("admin-credentials-secret-name")

			err := Status(ctx, clusterName, secretName, plugin.OutputFormat(output))
			if err != nil {
				fmt.Printf("Error: %v\n", err)
			}
			return nil
		},
	}

	statusCmd.Flags().StringP("output", "o", "text", "Output format. One of text|json|yaml")
	statusCmd.Flags().String("admin-credentials-secret-name", "mysql-operator-admin",
		"The name of the Secret holding the \"username\"/\"password\" keys to connect to the cluster's instances")

	return statusCmd
}
