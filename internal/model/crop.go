package model

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// CropType categorizes a crop; each (region, type) pair has its own
// forecasting model artifact.
type CropType string

const (
	CropTypeFruit     CropType = "Fruit"
	CropTypeVegetable CropType = "Vegetable"
)

// Catalog maps crop names to their type. Crops not in the catalog
// cannot be forecast (no model covers them), but their prices are
// still accepted into the ledger.
type Catalog struct {
	Fruits     []string `yaml:"fruits"`
	Vegetables []string `yaml:"vegetables"`

	byName map[string]CropType
}

// DefaultCatalog returns the built-in crop classification.
func DefaultCatalog() *Catalog {
	c := &Catalog{
		Fruits: []string{
			"Plantain", "Loquat", "Cantaloupe", "Starfruit", "Bael Fruit",
			"Indian Gooseberry (Amla)", "Dragon Fruit", "Pulasan", "Feijoa",
			"Langsat", "Sapodilla", "Breadnut", "Cherimoya", "Atemoya",
			"Red Currant", "Tangerine", "Cranberry",
		},
		Vegetables: []string{
			"Snow Peas", "Bottle Gourd", "White Eggplant", "Thai Eggplant",
			"Watercress", "Amaranth Leaves", "Spring Onion", "Gotu Kola",
			"Parsnip", "Napa Cabbage", "Turnip", "Rutabaga",
			"Butternut Squash", "Shallot", "Sweet Potato", "Durian",
			"Green Banana", "Okra", "Cassava", "Yam",
		},
	}
	c.index()
	return c
}

// LoadCatalog reads a crop catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "catalog: read %s", path)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrapf(err, "catalog: parse %s", path)
	}
	if len(c.Fruits) == 0 && len(c.Vegetables) == 0 {
		return nil, eris.Errorf("catalog: %s defines no crops", path)
	}
	c.index()
	return &c, nil
}

func (c *Catalog) index() {
	c.byName = make(map[string]CropType, len(c.Fruits)+len(c.Vegetables))
	for _, name := range c.Fruits {
		c.byName[name] = CropTypeFruit
	}
	for _, name := range c.Vegetables {
		c.byName[name] = CropTypeVegetable
	}
}

// TypeOf returns the type for a crop name, or false if the crop is
// not cataloged.
func (c *Catalog) TypeOf(crop string) (CropType, bool) {
	t, ok := c.byName[crop]
	return t, ok
}
