package query

// Field identifies a queryable product attribute. The predicate tree is
// backend-agnostic: a storage adapter translates fields and operators into
// its own query language.
type Field string

const (
	FieldName        Field = "name"
	FieldDescription Field = "description"
	FieldTag         Field = "tag"
	FieldCategory    Field = "category"
	FieldSubcategory Field = "subcategory"
	FieldProductType Field = "product_type"
	FieldPrice       Field = "price"
	FieldTotalStock  Field = "total_stock"
	FieldSizeStock   Field = "size_stock"
	FieldIsActive    Field = "is_active"
	FieldIsDeleted   Field = "is_deleted"
	FieldIsFeatured  Field = "is_featured"
)

// Op is a comparison operator.
type Op string

const (
	OpEq       Op = "eq"
	OpGt       Op = "gt"
	OpGte      Op = "gte"
	OpLte      Op = "lte"
	OpIn       Op = "in"       // Value is []string
	OpContains Op = "contains" // case-insensitive substring match
)

// Predicate is a node in the filter tree: either a leaf condition or an
// AND/OR combination of sub-predicates.
type Predicate interface {
	isPredicate()
}

// Cond is a leaf condition on a single field. Key carries the size label for
// FieldSizeStock conditions and is empty otherwise.
type Cond struct {
	Field Field
	Op    Op
	Key   string
	Value any
}

// And matches when all sub-predicates match.
type And struct {
	Preds []Predicate
}

// Or matches when at least one sub-predicate matches.
type Or struct {
	Preds []Predicate
}

func (Cond) isPredicate() {}
func (And) isPredicate()  {}
func (Or) isPredicate()   {}

// NewAnd flattens nested And nodes into a single level.
func NewAnd(preds ...Predicate) And {
	flat := make([]Predicate, 0, len(preds))
	for _, p := range preds {
		if inner, ok := p.(And); ok {
			flat = append(flat, inner.Preds...)
			continue
		}
		flat = append(flat, p)
	}
	return And{Preds: flat}
}

// NewOr builds an Or node. A single-element Or is collapsed by the caller if
// desired; adapters handle both shapes.
func NewOr(preds ...Predicate) Or {
	return Or{Preds: preds}
}
