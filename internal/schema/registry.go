package schema

import (
	"fmt"
	"regexp"

	"github.com/ocdul/social-listening/internal/models"
	"github.com/sirupsen/logrus"
)

var identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Column resolves one projected field of a content table. The zero value
// projects a literal 0 so every table exposes every engagement metric.
type Column struct {
	name    string
	literal string
}

// Ref projects a real column of the table
func Ref(name string) Column { return Column{name: name} }

// Zero projects a literal 0
var Zero = Column{literal: "0"}

// Null projects a literal NULL. Tables registered without an author column
// get it.
var Null = Column{literal: "NULL"}

// SQL returns the projection expression
func (c Column) SQL() string {
	if c.name != "" {
		return c.name
	}
	if c.literal != "" {
		return c.literal
	}
	return "0"
}

// IsLiteral reports whether the column falls back to a constant
func (c Column) IsLiteral() bool { return c.name == "" }

// Name returns the referenced column, empty for literals
func (c Column) Name() string { return c.name }

// RawSource locates the ingestion-stage copy of a content row. LinkColumn is
// read from the content table and matched against KeyColumn in Table.
type RawSource struct {
	Table      string
	KeyColumn  string
	LinkColumn string
}

// Table is one physical content table
type Table struct {
	Platform models.Platform
	Kind     models.ContentKind
	Name     string
	Author   Column
	Likes    Column
	Comments Column
	Shares   Column
	Raw      *RawSource
}

// Registry is the fixed platform -> content table mapping
type Registry struct {
	platforms  []models.Platform
	byPlatform map[models.Platform][]Table
	byName     map[string]Table
}

// NewRegistry validates tables and indexes them. Table order is kept per
// platform; it is the order sub-queries are generated in.
func NewRegistry(tables []Table) (*Registry, error) {
	r := &Registry{
		byPlatform: make(map[models.Platform][]Table),
		byName:     make(map[string]Table),
	}
	pairs := make(map[string]string)

	for _, t := range tables {
		if err := t.validate(); err != nil {
			return nil, err
		}
		if t.Author == (Column{}) {
			t.Author = Null
		}
		if _, dup := r.byName[t.Name]; dup {
			return nil, fmt.Errorf("table %s registered twice", t.Name)
		}
		pair := string(t.Platform) + "/" + string(t.Kind)
		if other, dup := pairs[pair]; dup {
			return nil, fmt.Errorf("%s maps to both %s and %s", pair, other, t.Name)
		}
		pairs[pair] = t.Name

		if _, seen := r.byPlatform[t.Platform]; !seen {
			r.platforms = append(r.platforms, t.Platform)
		}
		r.byPlatform[t.Platform] = append(r.byPlatform[t.Platform], t)
		r.byName[t.Name] = t
	}

	return r, nil
}

func (t Table) validate() error {
	names := []string{t.Name, t.Author.name, t.Likes.name, t.Comments.name, t.Shares.name}
	if t.Raw != nil {
		names = append(names, t.Raw.Table, t.Raw.KeyColumn, t.Raw.LinkColumn)
	}
	if t.Name == "" {
		return fmt.Errorf("table for %s/%s has no name", t.Platform, t.Kind)
	}
	for _, n := range names {
		if n != "" && !identifierPattern.MatchString(n) {
			return fmt.Errorf("table %s: %q is not a plain identifier", t.Name, n)
		}
	}
	if t.Raw != nil && (t.Raw.Table == "" || t.Raw.KeyColumn == "" || t.Raw.LinkColumn == "") {
		return fmt.Errorf("table %s: incomplete raw source", t.Name)
	}
	return nil
}

// TablesFor returns the tables that together represent platform p. An
// unknown platform yields no tables.
func (r *Registry) TablesFor(p models.Platform) []Table {
	tables, ok := r.byPlatform[p]
	if !ok {
		if isKnownPlatform(p) {
			logrus.Warnf("Registry has no content tables for supported platform %q", p)
		} else {
			logrus.Debugf("Ignoring unrecognized platform %q", p)
		}
		return nil
	}
	out := make([]Table, len(tables))
	copy(out, tables)
	return out
}

// Flatten returns the tables of every platform in order, each platform once
func (r *Registry) Flatten(platforms []models.Platform) []Table {
	var tables []Table
	seen := make(map[models.Platform]bool, len(platforms))
	for _, p := range platforms {
		if seen[p] {
			continue
		}
		seen[p] = true
		tables = append(tables, r.TablesFor(p)...)
	}
	return tables
}

// Lookup finds a table by its physical name
func (r *Registry) Lookup(name string) (Table, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Platforms returns the registered platforms in registration order
func (r *Registry) Platforms() []models.Platform {
	out := make([]models.Platform, len(r.platforms))
	copy(out, r.platforms)
	return out
}

// All returns every registered table in registration order
func (r *Registry) All() []Table {
	return r.Flatten(r.platforms)
}

// TableFor resolves a (platform, kind) pair. A miss is a configuration
// error, not an empty result.
func (r *Registry) TableFor(p models.Platform, kind models.ContentKind) (Table, error) {
	for _, t := range r.byPlatform[p] {
		if t.Kind == kind {
			return t, nil
		}
	}
	return Table{}, fmt.Errorf("no content table registered for %s/%s", p, kind)
}

func isKnownPlatform(p models.Platform) bool {
	for _, known := range models.AllPlatforms {
		if p == known {
			return true
		}
	}
	return false
}
