package catalog

import (
	"html/template"
	"regexp"
	"strings"
)

// Offer is one promotional package shown on the catalog page.
type Offer struct {
	Slug            string        `json:"slug"`
	Name            string        `json:"name" yaml:"name"`
	ImageURL        string        `json:"image_url" yaml:"image_url"`
	Description     string        `json:"description" yaml:"description"`
	DescriptionHTML template.HTML `json:"-" yaml:"-"`
}

type catalogFile struct {
	Offers []*Offer `yaml:"offers"`
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lower-cases name and joins its alphanumeric runs with dashes.
func Slugify(name string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
}
