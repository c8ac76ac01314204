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

import (
	"github.com/logrusorgru/aurora/v3"
)

// ColorizeStatus renders a group-replication member status with the color
// an operator would expect at a glance: green for healthy, yellow for a
// transient state, red for anything broken.
func ColorizeStatus(status string) string {
	switch status {
	case "ONLINE":
		return aurora.Green(status).String()
	case "RECOVERING":
		return aurora.Yellow(status).String()
	case "OFFLINE", "ERROR", "UNREACHABLE":
		return aurora.Red(status).String()
	default:
		return status
	}
}

// ColorizeRole renders a group-replication role, highlighting PRIMARY so
// it stands out in a multi-row table.
func ColorizeRole(role string) string {
	if role == "PRIMARY" {
		return aurora.Bold(aurora.Cyan(role)).String()
	}
	return role
}
