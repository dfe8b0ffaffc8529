package writer

// Catalog is the fixed set of model names a session may select.
type Catalog interface {
	List() []string
	Default() string
	Contains(name string) bool
}

// MemoryCatalog implements Catalog with an in-memory slice.
type MemoryCatalog struct {
	names []string
}

// SeedModels provides the model list offered when configuration does not override it.
func SeedModels() []string {
	return []string{"gemini-2.5-flash", "gemini-2.5-pro", "gemini-2.0-flash"}
}

// NewMemoryCatalog returns a catalog whose first entry is the default. Empty names are skipped.
func NewMemoryCatalog(names []string) *MemoryCatalog {
	items := make([]string, 0, len(names))
	for _, name := range names {
		if name != "" {
			items = append(items, name)
		}
	}
	return &MemoryCatalog{names: items}
}

// List returns the model names in display order.
func (c *MemoryCatalog) List() []string {
	return append([]string(nil), c.names...)
}

// Default returns the first model, or "" for an empty catalog.
func (c *MemoryCatalog) Default() string {
	if len(c.names) == 0 {
		return ""
	}
	return c.names[0]
}

// Contains looks up a model by name.
func (c *MemoryCatalog) Contains(name string) bool {
	for _, item := range c.names {
		if item == name {
			return true
		}
	}
	return false
}
