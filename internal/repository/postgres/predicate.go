package postgres

import (
	"fmt"
	"strings"

	"github.com/RahulXTmCoding/desi-otaku-catalog/internal/query"
)

// CompilePredicate translates a predicate tree into a SQL WHERE clause over
// the products table (aliased p) with positional arguments. The compilation
// is deterministic, so compiling the same tree twice yields byte-identical
// SQL — the property the search path relies on to keep the item fetch and
// the total count consistent.
func CompilePredicate(p query.Predicate) (string, []any, error) {
	c := &compiler{}
	clause, err := c.compile(p)
	if err != nil {
		return "", nil, err
	}
	return clause, c.args, nil
}

type compiler struct {
	args []any
}

func (c *compiler) bind(value any) string {
	c.args = append(c.args, value)
	return fmt.Sprintf("$%d", len(c.args))
}

func (c *compiler) compile(p query.Predicate) (string, error) {
	switch node := p.(type) {
	case query.And:
		return c.compileGroup(node.Preds, " AND ")
	case query.Or:
		return c.compileGroup(node.Preds, " OR ")
	case query.Cond:
		return c.compileCond(node)
	default:
		return "", fmt.Errorf("unknown predicate node %T", p)
	}
}

func (c *compiler) compileGroup(preds []query.Predicate, sep string) (string, error) {
	if len(preds) == 0 {
		return "TRUE", nil
	}
	parts := make([]string, 0, len(preds))
	for _, p := range preds {
		clause, err := c.compile(p)
		if err != nil {
			return "", err
		}
		parts = append(parts, clause)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return "(" + strings.Join(parts, sep) + ")", nil
}

func (c *compiler) compileCond(cond query.Cond) (string, error) {
	switch cond.Field {
	case query.FieldName:
		return c.contains("p.name", cond)
	case query.FieldDescription:
		return c.contains("p.description", cond)
	case query.FieldTag:
		switch cond.Op {
		case query.OpEq:
			return c.bind(cond.Value) + " = ANY(p.tags)", nil
		case query.OpContains:
			return "EXISTS (SELECT 1 FROM unnest(p.tags) AS t WHERE t ILIKE " + c.bindPattern(cond.Value) + ")", nil
		}
	case query.FieldCategory:
		return c.ref("p.category_id", cond)
	case query.FieldSubcategory:
		return c.ref("p.subcategory_id", cond)
	case query.FieldProductType:
		if cond.Op == query.OpEq {
			return "p.product_type = " + c.bind(cond.Value), nil
		}
	case query.FieldPrice:
		switch cond.Op {
		case query.OpGte:
			return "p.price >= " + c.bind(cond.Value), nil
		case query.OpLte:
			return "p.price <= " + c.bind(cond.Value), nil
		}
	case query.FieldTotalStock:
		switch cond.Op {
		case query.OpGt:
			return "p.total_stock > " + c.bind(cond.Value), nil
		case query.OpEq:
			return "p.total_stock = " + c.bind(cond.Value), nil
		}
	case query.FieldSizeStock:
		if cond.Op == query.OpGt {
			size := c.bind(cond.Key)
			qty := c.bind(cond.Value)
			return "EXISTS (SELECT 1 FROM product_stock ps WHERE ps.product_id = p.id AND ps.size = " + size + " AND ps.quantity > " + qty + ")", nil
		}
	case query.FieldIsActive:
		if cond.Op == query.OpEq {
			return "p.is_active = " + c.bind(cond.Value), nil
		}
	case query.FieldIsDeleted:
		if cond.Op == query.OpEq {
			return "p.is_deleted = " + c.bind(cond.Value), nil
		}
	case query.FieldIsFeatured:
		if cond.Op == query.OpEq {
			return "p.is_featured = " + c.bind(cond.Value), nil
		}
	}
	return "", fmt.Errorf("unsupported condition: field %q op %q", cond.Field, cond.Op)
}

func (c *compiler) contains(column string, cond query.Cond) (string, error) {
	if cond.Op != query.OpContains {
		return "", fmt.Errorf("field %q supports only contains, got %q", cond.Field, cond.Op)
	}
	return column + " ILIKE " + c.bindPattern(cond.Value), nil
}

func (c *compiler) ref(column string, cond query.Cond) (string, error) {
	switch cond.Op {
	case query.OpEq:
		return column + " = " + c.bind(cond.Value), nil
	case query.OpIn:
		return column + " = ANY(" + c.bind(cond.Value) + ")", nil
	}
	return "", fmt.Errorf("field %q supports eq or in, got %q", cond.Field, cond.Op)
}

// likeEscaper neutralizes the ILIKE metacharacters so a search token always
// matches as a literal substring. Backslash is Postgres's default ESCAPE
// character, so no ESCAPE clause is needed on the ILIKE itself.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (c *compiler) bindPattern(value any) string {
	return c.bind("%" + likeEscaper.Replace(fmt.Sprintf("%v", value)) + "%")
}

// sortColumn maps a validated sort field to its column. The spec layer
// guarantees the field is one of the accepted values; anything else falls
// back to created_at.
func sortColumn(sortBy string) string {
	switch sortBy {
	case "price":
		return "p.price"
	case "name":
		return "p.name"
	default:
		return "p.created_at"
	}
}

func sortDirection(order string) string {
	if order == "asc" {
		return "ASC"
	}
	return "DESC"
}
