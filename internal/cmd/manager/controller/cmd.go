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

// Package controller implements the "controller" subcommand that starts
// the operator's controller-runtime manager.
package controller

import (
	"time"

	"github.com/spf13/cobra"
)

// NewCmd creates the "controller" subcommand.
func NewCmd() *cobra.Command {
	var metricsAddr string
	var leaderElectionEnable bool
	var configMapName string
	var secretName string
	var adminCredentialsSecretName string
	var leaderLeaseDuration int
	var leaderRenewDeadline int

	cmd := cobra.Command{
		Use:           "controller [flags]",
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunController(
				metricsAddr,
				configMapName,
				secretName,
				adminCredentialsSecretName,
				leaderElectionConfiguration{
					enable:        leaderElectionEnable,
					leaseDuration: time.Duration(leaderLeaseDuration) * time.Second,
					renewDeadline: time.Duration(leaderRenewDeadline) * time.Second,
				},
			)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-bind-address", ":8080",
		"The address the metric endpoint binds to.")

	cmd.Flags().BoolVar(&leaderElectionEnable, "leader-elect", false,
		"Enable leader election for the controller manager. "+
			"If enabled, this will ensure there is only one active controller manager.")
	cmd.Flags().IntVar(&leaderLeaseDuration, "leader-lease-duration", 15,
		"the leader lease duration expressed in seconds")
	cmd.Flags().IntVar(&leaderRenewDeadline, "leader-renew-deadline", 10,
		"the leader renew deadline expressed in seconds")

	cmd.Flags().StringVar(&configMapName, "config-map-name", "",
		"The name of the ConfigMap containing the operator configuration")
	cmd.Flags().StringVar(&secretName, "secret-name", "",
		"The name of the Secret containing the operator configuration. Values are merged with the "+
			"ConfigMap's one, overwriting them if already defined")
	cmd.Flags().StringVar(&adminCredentialsSecretName, "admin-credentials-secret-name", "mysql-operator-admin",
		"The name of the Secret holding the \"username\"/\"password\" keys the operator uses to "+
			"administer every InnoDB Cluster instance")

	return &cmd
}
