package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/webstorage/internal/ir"
	"github.com/roach88/webstorage/internal/queryir"
)

// Table is the record table every statement compiles against.
const Table = "records"

// Order is one sort key of a Select.
type Order struct {
	Key        string
	Descending bool
}

// Select describes a read over one category.
type Select struct {
	Category string
	Where    queryir.Expression // nil selects every record
	Sort     []Order
	Limit    int // 0 means unlimited
	Offset   int
}

// SQLCompiler compiles query expressions to parameterized SQLite SQL over
// the JSON documents of the record table.
//
// Record fields are addressed with json_extract(doc, '$."key"'). Field paths
// and values are always bound as parameters, never interpolated.
//
// Comparisons follow document-store semantics for missing fields: a record
// without the field is never EQUALS, LESS_THAN or IN anything, but it is
// NOT_EQUAL_TO and NOT_IN everything, and NOT of a false leaf is true.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// CompileSelect converts a Select to SQL returning (id, doc, digest) rows.
//
// Every query ends with id ASC so paging through results is stable.
func (c *SQLCompiler) CompileSelect(q Select) (string, []any, error) {
	where, params, err := c.compileScope(q.Category, q.Where)
	if err != nil {
		return "", nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT id, doc, digest FROM %s WHERE %s ORDER BY ", Table, where)
	for _, o := range q.Sort {
		path, err := FieldPath(o.Key)
		if err != nil {
			return "", nil, fmt.Errorf("compile sort: %w", err)
		}
		dir := "ASC"
		if o.Descending {
			dir = "DESC"
		}
		fmt.Fprintf(&b, "json_extract(doc, ?) %s, ", dir)
		params = append(params, path)
	}
	b.WriteString(stableOrderKey())

	switch {
	case q.Limit > 0:
		b.WriteString(" LIMIT ? OFFSET ?")
		params = append(params, q.Limit, q.Offset)
	case q.Offset > 0:
		b.WriteString(" LIMIT -1 OFFSET ?")
		params = append(params, q.Offset)
	}
	return b.String(), params, nil
}

// CompileCount converts a category and filter to a COUNT(*) query.
func (c *SQLCompiler) CompileCount(category string, where queryir.Expression) (string, []any, error) {
	clause, params, err := c.compileScope(category, where)
	if err != nil {
		return "", nil, err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", Table, clause), params, nil
}

// CompileWhere converts a category and filter to a WHERE clause fragment
// (without the keyword) for UPDATE and DELETE statements.
func (c *SQLCompiler) CompileWhere(category string, where queryir.Expression) (string, []any, error) {
	return c.compileScope(category, where)
}

func (c *SQLCompiler) compileScope(category string, where queryir.Expression) (string, []any, error) {
	params := []any{category}
	if where == nil {
		return "category = ?", params, nil
	}
	sql, whereParams, err := c.compileExpression(where)
	if err != nil {
		return "", nil, fmt.Errorf("compile filter: %w", err)
	}
	return "category = ? AND " + sql, append(params, whereParams...), nil
}

// stableOrderKey is the tiebreaker appended to every ORDER BY.
func stableOrderKey() string {
	return "id ASC"
}

// compileExpression compiles a condition to a SQL fragment that never
// evaluates to NULL.
func (c *SQLCompiler) compileExpression(expr queryir.Expression) (string, []any, error) {
	switch e := expr.(type) {
	case queryir.BinaryComparisonExpression:
		return c.compileComparison(e)
	case queryir.BinarySetMembershipExpression:
		return c.compileMembership(e)
	case queryir.BinaryLogicalExpression:
		return c.compileLogical(e)
	case queryir.UnaryLogicalExpression:
		sql, params, err := c.compileExpression(e.Operand)
		if err != nil {
			return "", nil, err
		}
		return "(NOT " + sql + ")", params, nil
	case nil:
		return "", nil, fmt.Errorf("cannot compile nil expression")
	default:
		return "", nil, fmt.Errorf("unsupported expression kind: %s", expr.Kind())
	}
}

func (c *SQLCompiler) compileComparison(e queryir.BinaryComparisonExpression) (string, []any, error) {
	path, err := keyPath(e.Left)
	if err != nil {
		return "", nil, err
	}
	lit, ok := e.Right.(queryir.LiteralExpression)
	if !ok || lit.IsKey() {
		return "", nil, fmt.Errorf("comparison right operand must be a value literal, got %s", kindOf(e.Right))
	}
	param, err := irValueToParam(lit.Value)
	if err != nil {
		return "", nil, fmt.Errorf("convert value: %w", err)
	}

	var op string
	switch e.Operator {
	case queryir.Equals:
		// IS/IS NOT keep missing fields out of NULL logic.
		return "(json_extract(doc, ?) IS ?)", []any{path, param}, nil
	case queryir.NotEqualTo:
		return "(json_extract(doc, ?) IS NOT ?)", []any{path, param}, nil
	case queryir.LessThan:
		op = "<"
	case queryir.LessThanOrEqual:
		op = "<="
	case queryir.GreaterThan:
		op = ">"
	case queryir.GreaterThanOrEqual:
		op = ">="
	default:
		return "", nil, fmt.Errorf("unsupported comparison operator: %s", e.Operator.Name())
	}
	return fmt.Sprintf("IFNULL(json_extract(doc, ?) %s ?, 0)", op), []any{path, param}, nil
}

func (c *SQLCompiler) compileMembership(e queryir.BinarySetMembershipExpression) (string, []any, error) {
	path, err := keyPath(e.Left)
	if err != nil {
		return "", nil, err
	}
	set, ok := e.Right.(queryir.LiteralSetExpression)
	if !ok {
		return "", nil, fmt.Errorf("membership right operand must be a literal set, got %s", kindOf(e.Right))
	}

	// Empty sets: nothing is IN, everything is NOT_IN.
	if len(set.Values) == 0 {
		if e.Operator == queryir.NotIn {
			return "1", nil, nil
		}
		return "0", nil, nil
	}

	params := []any{path}
	marks := make([]string, len(set.Values))
	for i, v := range set.Values {
		param, err := irValueToParam(v)
		if err != nil {
			return "", nil, fmt.Errorf("convert set value %d: %w", i, err)
		}
		params = append(params, param)
		marks[i] = "?"
	}
	in := "IFNULL(json_extract(doc, ?) IN (" + strings.Join(marks, ", ") + "), 0)"

	switch e.Operator {
	case queryir.In:
		return in, params, nil
	case queryir.NotIn:
		return "(NOT " + in + ")", params, nil
	default:
		return "", nil, fmt.Errorf("unsupported set operator: %s", e.Operator.Name())
	}
}

func (c *SQLCompiler) compileLogical(e queryir.BinaryLogicalExpression) (string, []any, error) {
	left, leftParams, err := c.compileExpression(e.Left)
	if err != nil {
		return "", nil, err
	}
	right, rightParams, err := c.compileExpression(e.Right)
	if err != nil {
		return "", nil, err
	}

	var op string
	switch e.Operator {
	case queryir.And:
		op = "AND"
	case queryir.Or:
		op = "OR"
	default:
		return "", nil, fmt.Errorf("unsupported logical operator: %s", e.Operator.Name())
	}
	return fmt.Sprintf("(%s %s %s)", left, op, right), append(leftParams, rightParams...), nil
}

func keyPath(expr queryir.Expression) (string, error) {
	lit, ok := expr.(queryir.LiteralExpression)
	if !ok || !lit.IsKey() {
		return "", fmt.Errorf("left operand must be a key, got %s", kindOf(expr))
	}
	return FieldPath(string(lit.Value.(ir.String)))
}

func kindOf(expr queryir.Expression) string {
	if expr == nil {
		return "nil"
	}
	return string(expr.Kind())
}

// FieldPath returns the SQLite JSON path of a top-level document field.
// Keys are quoted so dots and brackets are taken literally.
func FieldPath(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("empty field key")
	}
	if strings.ContainsAny(key, "\"\\") {
		return "", fmt.Errorf("field key %q must not contain quotes or backslashes", key)
	}
	return `$."` + key + `"`, nil
}

// irValueToParam converts an ir.Value to a Go native type for a SQL
// parameter. Booleans bind as 1/0, matching json_extract of true/false.
func irValueToParam(v ir.Value) (any, error) {
	switch val := v.(type) {
	case ir.String:
		return string(val), nil
	case ir.Int:
		return int64(val), nil
	case ir.Bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case ir.Null:
		return nil, nil
	case ir.Array:
		return nil, fmt.Errorf("array cannot be used as SQL parameter directly")
	case ir.Object:
		return nil, fmt.Errorf("object cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
