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

// Package plugin contains the behaviors shared by every kubectl-mysqlgr
// subcommand: the Kubernetes client each subcommand operates through and
// the admin credentials used to open direct Admin Client Interface
// connections to cluster pods.
package plugin

import (
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/cli-runtime/pkg/genericclioptions"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/client-go/rest"
	"sigs.k8s.io/controller-runtime/pkg/client"

	mysqlv1 "github.com/22ndtech/mysql-operator/api/v1"
)

var (
	// Namespace is the namespace to operate in, taken from the kubeconfig
	// context unless overridden with --namespace.
	Namespace string

	// Config is the Kubernetes REST configuration in use.
	Config *rest.Config

	// Client is the controller-runtime client every subcommand reads
	// Cluster/Pod objects through.
	Client client.Client
)

// SetupKubernetesClient builds Config/Client/Namespace from configFlags,
// the same one-time setup done in the operator's manager main before
// reading any Cluster object.
func SetupKubernetesClient(configFlags *genericclioptions.ConfigFlags) error {
	kubeconfig := configFlags.ToRawKubeConfigLoader()

	var err error
	Config, err = kubeconfig.ClientConfig()
	if err != nil {
		return err
	}

	scheme := runtime.NewScheme()
	_ = clientgoscheme.AddToScheme(scheme)
	_ = mysqlv1.AddToScheme(scheme)

	Client, err = client.New(Config, client.Options{Scheme: scheme})
	if err != nil {
		return err
	}

	Namespace, _, err = kubeconfig.Namespace()
	return err
}
