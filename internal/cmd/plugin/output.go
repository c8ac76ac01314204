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

package plugin

// OutputFormat is the output format supported by a kubectl-mysqlgr
// subcommand.
type OutputFormat string

const (
	// OutputFormatText renders human-readable tables.
	OutputFormatText OutputFormat = "text"

	// OutputFormatJSON renders machine-readable JSON.
	OutputFormatJSON OutputFormat = "json"

	// OutputFormatYAML renders machine-readable YAML.
	OutputFormatYAML OutputFormat = "yaml"
)
