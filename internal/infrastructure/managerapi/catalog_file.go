package managerapi

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/apache/bigtop-manager-sub000/internal/domain"
)

// FileCatalog serves the catalog from a YAML file, for clusters whose
// manager is unreachable or for demos. The file is read on every call.
type FileCatalog struct {
	path string
}

func NewFileCatalog(path string) *FileCatalog {
	return &FileCatalog{path: path}
}

func (f *FileCatalog) GetCatalog(ctx context.Context, clusterID uint) (*domain.Catalog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML catalog and validates component cardinalities.
func ParseCatalog(data []byte) (*domain.Catalog, error) {
	var catalog domain.Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for si := range catalog.Stacks {
		st := &catalog.Stacks[si]
		for i := range st.Services {
			svc := &st.Services[i]
			if svc.Stack == "" {
				svc.Stack = st.Name
			}
			for _, comp := range svc.Components {
				if err := comp.Cardinality.Validate(); err != nil {
					return nil, fmt.Errorf("service %s component %s: %w", svc.Name, comp.Name, err)
				}
			}
		}
	}
	return &catalog, nil
}
