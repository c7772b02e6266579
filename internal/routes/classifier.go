package routes

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Class is the access category of a request path
type Class int

const (
	// Unclassified paths are allowed through regardless of session state
	Unclassified Class = iota
	// Public paths never consult the session
	Public
	// AuthOnly paths (sign-in/up) redirect authenticated callers away
	AuthOnly
	// Protected paths require a valid session
	Protected
)

func (c Class) String() string {
	switch c {
	case Public:
		return "public"
	case AuthOnly:
		return "auth_only"
	case Protected:
		return "protected"
	default:
		return "unclassified"
	}
}

//go:embed default_routes.yaml
var defaultRoutesYAML []byte

// Table lists the path prefixes of each class
type Table struct {
	Public    []string `yaml:"public"`
	AuthOnly  []string `yaml:"auth_only"`
	Protected []string `yaml:"protected"`
}

// DefaultTable returns the built-in route table
func DefaultTable() Table {
	table, err := ParseTable(defaultRoutesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded route table is invalid: %v", err))
	}
	return table
}

// ParseTable parses a YAML route table
func ParseTable(data []byte) (Table, error) {
	var table Table
	if err := yaml.Unmarshal(data, &table); err != nil {
		return Table{}, fmt.Errorf("failed to parse route table: %w", err)
	}
	for _, list := range [][]string{table.Public, table.AuthOnly, table.Protected} {
		for _, prefix := range list {
			if !strings.HasPrefix(prefix, "/") {
				return Table{}, fmt.Errorf("route prefix %q must start with /", prefix)
			}
		}
	}
	return table, nil
}

// LoadTable reads a route table from path, or returns the default table when path is empty
func LoadTable(path string) (Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("failed to read route table: %w", err)
	}
	return ParseTable(data)
}

type entry struct {
	prefix string
	class  Class
}

// Classifier maps request paths to route classes. It is immutable and safe for concurrent use.
type Classifier struct {
	entries []entry
}

// NewClassifier builds a classifier from table
func NewClassifier(table Table) *Classifier {
	c := &Classifier{}
	add := func(prefixes []string, class Class) {
		for _, p := range prefixes {
			if p != "/" {
				p = strings.TrimRight(p, "/")
			}
			c.entries = append(c.entries, entry{prefix: p, class: class})
		}
	}
	add(table.Public, Public)
	add(table.AuthOnly, AuthOnly)
	add(table.Protected, Protected)
	return c
}

// Classify returns the class of path. The longest matching prefix wins; on a
// tie the more restrictive class wins. Unknown paths are Unclassified.
func (c *Classifier) Classify(path string) Class {
	if path == "" {
		path = "/"
	}

	best := Unclassified
	bestLen := -1
	for _, e := range c.entries {
		if !matches(e.prefix, path) {
			continue
		}
		if len(e.prefix) > bestLen || (len(e.prefix) == bestLen && e.class > best) {
			best = e.class
			bestLen = len(e.prefix)
		}
	}
	return best
}

// Table returns the prefixes the classifier was built from, grouped by class
func (c *Classifier) Table() Table {
	var t Table
	for _, e := range c.entries {
		switch e.class {
		case Public:
			t.Public = append(t.Public, e.prefix)
		case AuthOnly:
			t.AuthOnly = append(t.AuthOnly, e.prefix)
		case Protected:
			t.Protected = append(t.Protected, e.prefix)
		}
	}
	return t
}

func matches(prefix, path string) bool {
	if prefix == "/" {
		return path == "/"
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
