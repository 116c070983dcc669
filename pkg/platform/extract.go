// pkg/platform/extract.go
package platform

import (
	"encoding/json"
	"fmt"

	jmes "github.com/jmespath/go-jmespath"
)

// Extract applies a JMESPath expression to doc and decodes the match into
// out through a JSON round trip, so out can be any JSON-shaped type.
func Extract(doc any, path string, out any) error {
	val, err := jmes.Search(path, doc)
	if err != nil {
		return err
	}
	if val == nil {
		return fmt.Errorf("path %q matched nothing", path)
	}
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
