package filterquery

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed params.yaml
var paramsFile []byte

// parameterSpec describes one recognized issue-query parameter.
type parameterSpec struct {
	Name string `yaml:"name"`
	List bool   `yaml:"list"`
}

type catalogFile struct {
	Parameters []parameterSpec `yaml:"parameters"`
}

// Catalog holds the set of query parameters the issue query model
// recognizes. Keys outside the catalog are dropped during serialization,
// never rejected.
type Catalog struct {
	params map[string]parameterSpec
}

// LoadCatalog parses the embedded parameter catalog.
func LoadCatalog() (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(paramsFile, &file); err != nil {
		return nil, fmt.Errorf("parse parameter catalog: %w", err)
	}
	if len(file.Parameters) == 0 {
		return nil, fmt.Errorf("parameter catalog is empty")
	}

	params := make(map[string]parameterSpec, len(file.Parameters))
	for _, spec := range file.Parameters {
		if spec.Name == "" {
			return nil, fmt.Errorf("parameter catalog entry missing name")
		}
		params[spec.Name] = spec
	}

	return &Catalog{params: params}, nil
}

// IsRecognized reports whether the key belongs to the issue query model.
func (c *Catalog) IsRecognized(key string) bool {
	_, ok := c.params[key]
	return ok
}

// Sanitize returns a copy of the mapping reduced to recognized keys.
func (c *Catalog) Sanitize(query map[string]interface{}) map[string]interface{} {
	sanitized := make(map[string]interface{}, len(query))
	for key, value := range query {
		if c.IsRecognized(key) {
			sanitized[key] = value
		}
	}
	return sanitized
}
