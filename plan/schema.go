/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package plan

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
)

var schemaOnce = sync.OnceValues(func() (json.RawMessage, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		DoNotReference:             true,
	}
	raw, err := json.Marshal(reflector.Reflect(&ChangePlan{}))
	if err != nil {
		return nil, fmt.Errorf("encoding plan schema: %w", err)
	}
	return json.RawMessage(raw), nil
})

// Schema returns the JSON schema a generated plan must conform to. It is
// embedded in the capability prompt so providers can shape their output.
func Schema() (json.RawMessage, error) {
	return schemaOnce()
}
