package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

// DefaultState returns the built-in fixture: the catalog, orders, offers and
// customers the admin panel shows before any backend exists.
func DefaultState() (State, error) {
	var st State
	if err := yaml.Unmarshal(seedYAML, &st); err != nil {
		return State{}, fmt.Errorf("parsing seed data: %w", err)
	}
	return st, nil
}

func (c *Catalog) loadSeed() error {
	st, err := DefaultState()
	if err != nil {
		return err
	}
	c.Load(st)
	return nil
}
