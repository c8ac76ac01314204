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

// Command manager is the mysql-operator entrypoint: it starts the
// controller-runtime manager that drives the Cluster Controller and the
// Group Monitor, the Go equivalent of the kopf operator process the
// original source runs under.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	managercontroller "github.com/22ndtech/mysql-operator/internal/cmd/manager/controller"
	"github.com/22ndtech/mysql-operator/internal/cmd/versions"
	"github.com/22ndtech/mysql-operator/pkg/log"
)

func main() {
	logFlags := &log.Flags{}

	rootCmd := &cobra.Command{
		Use:   "manager",
		Short: "mysql-operator manages InnoDB Cluster resources on Kubernetes",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logFlags.ConfigureLogging()
		},
	}

	logFlags.AddFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(managercontroller.NewCmd())
	rootCmd.AddCommand(versions.NewCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
