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
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// Print writes o to writer in the requested machine-readable format. A
// text format is a no-op here; the caller is expected to have its own
// table-rendering path for that case.
func Print(o any, format OutputFormat, writer io.Writer) error {
	switch format {
	case OutputFormatJSON:
		data, err := json.MarshalIndent(o, "", "  ")
		if err != nil {
			return err
		}
		if _, err := writer.Write(data); err != nil {
			return err
		}
		_, err = io.WriteString(writer, "\n")
		return err

	case OutputFormatYAML:
		data, err := yaml.Marshal(o)
		if err != nil {
			return err
		}
		_, err = writer.Write(data)
		return err
	}

	return nil
}
