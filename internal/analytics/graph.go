package analytics

import (
	"strings"
)

// Uncategorized is the sentinel bucket for sales whose line items cannot be
// resolved to any category. Other is the overflow bucket produced by top-N
// collapsing. Both are plain data; the presentation layer may relabel them.
const (
	Uncategorized = "Uncategorized"
	Other         = "Other"
)

// entityKind classifies an entry of the JSON:API "included" side-table.
type entityKind int

const (
	kindUnknown entityKind = iota
	kindItem
	kindProduct
	kindCategory
)

// classifyEntityType maps a JSON:API type string to an entity kind. Matching
// is case-insensitive and ignores separators, so "items", "Item",
// "products", "productCategories" and "product-categories" all classify.
func classifyEntityType(entityType string) entityKind {
	t := strings.ToLower(strings.NewReplacer("-", "", "_", "").Replace(entityType))
	switch {
	case strings.Contains(t, "categor"):
		return kindCategory
	case strings.HasPrefix(t, "product"):
		return kindProduct
	case strings.HasPrefix(t, "item"):
		return kindItem
	default:
		return kindUnknown
	}
}

// EntityGraph holds the three lookup tables resolved from the side-table:
// item→product, product→category and category→name, plus their composition.
// It is built once per analysis run and read-only afterwards, so it is safe
// to share across concurrent view computations.
type EntityGraph struct {
	itemProduct     map[string]string
	productCategory map[string]string
	categoryName    map[string]string
}

// BuildEntityGraph constructs the lookup tables from a JSON:API "included"
// side-table keyed "type:id". Entries whose key lacks the "type:id"
// convention fall back to the entity's own type/id fields; entries that
// classify as neither item, product nor category are ignored. Categories
// without a resolvable display name are dropped.
func BuildEntityGraph(included map[string]map[string]interface{}) *EntityGraph {
	g := &EntityGraph{
		itemProduct:     make(map[string]string),
		productCategory: make(map[string]string),
		categoryName:    make(map[string]string),
	}

	for key, entity := range included {
		entityType, entityID := splitEntityKey(key, entity)
		if entityType == "" || entityID == "" {
			continue
		}

		switch classifyEntityType(entityType) {
		case kindItem:
			if productID := relationshipID(entity, "product"); productID != "" {
				g.itemProduct[entityID] = productID
			}
		case kindProduct:
			for _, rel := range []string{"productCategory", "ProductCategory", "product_category", "category"} {
				if categoryID := relationshipID(entity, rel); categoryID != "" {
					g.productCategory[entityID] = categoryID
					break
				}
			}
		case kindCategory:
			if name := categoryDisplayName(entity); name != "" {
				g.categoryName[entityID] = name
			}
		}
	}

	return g
}

// Size returns the number of resolved item, product and category entries.
func (g *EntityGraph) Size() (items, products, categories int) {
	return len(g.itemProduct), len(g.productCategory), len(g.categoryName)
}

// CategoryOf walks item→product→category→name for a single item ref. The
// empty string means the chain broke at some hop, which is expected with
// partial relationship data and never an error.
func (g *EntityGraph) CategoryOf(itemID string) string {
	productID, ok := g.itemProduct[itemID]
	if !ok {
		return ""
	}
	categoryID, ok := g.productCategory[productID]
	if !ok {
		return ""
	}
	return g.categoryName[categoryID]
}

// CategoriesFor resolves a sale's line-item refs to the ordered list of
// distinct category names they reference. Items whose chain breaks are
// silently omitted; the caller maps an empty result to Uncategorized.
func (g *EntityGraph) CategoriesFor(itemRefs []string) []string {
	var names []string
	seen := make(map[string]bool, len(itemRefs))
	for _, ref := range itemRefs {
		name := g.CategoryOf(ref)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// splitEntityKey resolves the type and id of a side-table entry, preferring
// the "type:id" key convention and falling back to the entity body.
func splitEntityKey(key string, entity map[string]interface{}) (entityType, entityID string) {
	if i := strings.Index(key, ":"); i > 0 {
		return key[:i], key[i+1:]
	}
	t, _ := entity["type"].(string)
	return t, stringifyID(entity["id"])
}

// relationshipID extracts the referenced id from a relationship block,
// accepting both the nested {"data": {"id": ...}} shape and a direct id.
func relationshipID(entity map[string]interface{}, name string) string {
	rels, ok := entity["relationships"].(map[string]interface{})
	if !ok {
		return ""
	}
	rel, ok := rels[name].(map[string]interface{})
	if !ok {
		return ""
	}
	if data, ok := rel["data"].(map[string]interface{}); ok {
		return stringifyID(data["id"])
	}
	return stringifyID(rel["id"])
}

// categoryDisplayName probes the attribute spellings Fudo has used for a
// category's display name, then a bare top-level name.
func categoryDisplayName(entity map[string]interface{}) string {
	if attrs, ok := entity["attributes"].(map[string]interface{}); ok {
		for _, field := range []string{"name", "title", "label"} {
			if s, ok := attrs[field].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	if s, ok := entity["name"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	return ""
}
