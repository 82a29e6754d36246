package profiles

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/dcshock/sdkswitch/pipeline"
)

// Catalog is an ordered, case-insensitive set of profiles. It implements
// pipeline.Catalog. Register everything before handing it to a pipeline.
type Catalog struct {
	order    []string
	profiles map[string]*pipeline.Profile
}

func NewCatalog() *Catalog {
	return &Catalog{profiles: map[string]*pipeline.Profile{}}
}

// Register validates p and adds it under its upper-cased name.
func (c *Catalog) Register(p *pipeline.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	key := strings.ToUpper(p.Name)
	if _, dup := c.profiles[key]; dup {
		return errors.Errorf("profile %q already registered", p.Name)
	}
	p.Name = key
	c.order = append(c.order, key)
	c.profiles[key] = p
	return nil
}

// MustRegister is Register for static declarations.
func (c *Catalog) MustRegister(profiles ...*pipeline.Profile) *Catalog {
	for _, p := range profiles {
		if err := c.Register(p); err != nil {
			panic(err)
		}
	}
	return c
}

func (c *Catalog) Lookup(name string) (*pipeline.Profile, bool) {
	p, ok := c.profiles[strings.ToUpper(strings.TrimSpace(name))]
	return p, ok
}

// Names returns profile names in registration order.
func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}
