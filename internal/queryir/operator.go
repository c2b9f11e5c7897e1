package queryir

// Operator is a member of one of the four operator families.
//
// This is a sealed interface. Operators are compared by value, so two
// decodes of the same wire operator yield equal operators.
type Operator interface {
	operatorNode()
	Family() Family
	Name() string
}

// Family names an operator family on the wire.
type Family string

const (
	FamilyBinaryComparison    Family = "BinaryComparisonOperator"
	FamilyBinarySetMembership Family = "BinarySetMembershipOperator"
	FamilyBinaryLogical       Family = "BinaryLogicalOperator"
	FamilyUnaryLogical        Family = "UnaryLogicalOperator"
)

// BinaryComparisonOperator relates a key to a literal.
type BinaryComparisonOperator string

const (
	Equals             BinaryComparisonOperator = "EQUALS"
	NotEqualTo         BinaryComparisonOperator = "NOT_EQUAL_TO"
	LessThan           BinaryComparisonOperator = "LESS_THAN"
	LessThanOrEqual    BinaryComparisonOperator = "LESS_THAN_OR_EQUAL_TO"
	GreaterThan        BinaryComparisonOperator = "GREATER_THAN"
	GreaterThanOrEqual BinaryComparisonOperator = "GREATER_THAN_OR_EQUAL_TO"
)

func (BinaryComparisonOperator) operatorNode() {}

// Family implements Operator.
func (BinaryComparisonOperator) Family() Family { return FamilyBinaryComparison }

// Name implements Operator.
func (o BinaryComparisonOperator) Name() string { return string(o) }

// BinarySetMembershipOperator relates a key to a literal set.
type BinarySetMembershipOperator string

const (
	In    BinarySetMembershipOperator = "IN"
	NotIn BinarySetMembershipOperator = "NOT_IN"
)

func (BinarySetMembershipOperator) operatorNode() {}

// Family implements Operator.
func (BinarySetMembershipOperator) Family() Family { return FamilyBinarySetMembership }

// Name implements Operator.
func (o BinarySetMembershipOperator) Name() string { return string(o) }

// BinaryLogicalOperator combines two conditions.
type BinaryLogicalOperator string

const (
	And BinaryLogicalOperator = "AND"
	Or  BinaryLogicalOperator = "OR"
)

func (BinaryLogicalOperator) operatorNode() {}

// Family implements Operator.
func (BinaryLogicalOperator) Family() Family { return FamilyBinaryLogical }

// Name implements Operator.
func (o BinaryLogicalOperator) Name() string { return string(o) }

// UnaryLogicalOperator negates a condition.
type UnaryLogicalOperator string

const (
	Not UnaryLogicalOperator = "NOT"
)

func (UnaryLogicalOperator) operatorNode() {}

// Family implements Operator.
func (UnaryLogicalOperator) Family() Family { return FamilyUnaryLogical }

// Name implements Operator.
func (o UnaryLogicalOperator) Name() string { return string(o) }

// ParseOperator resolves a wire (family, name) pair.
// Unknown families and unknown constants are both *UnknownOperatorError.
func ParseOperator(family, name string) (Operator, error) {
	switch Family(family) {
	case FamilyBinaryComparison:
		op := BinaryComparisonOperator(name)
		switch op {
		case Equals, NotEqualTo, LessThan, LessThanOrEqual, GreaterThan, GreaterThanOrEqual:
			return op, nil
		}
	case FamilyBinarySetMembership:
		op := BinarySetMembershipOperator(name)
		switch op {
		case In, NotIn:
			return op, nil
		}
	case FamilyBinaryLogical:
		op := BinaryLogicalOperator(name)
		switch op {
		case And, Or:
			return op, nil
		}
	case FamilyUnaryLogical:
		if op := UnaryLogicalOperator(name); op == Not {
			return op, nil
		}
	}
	return nil, &UnknownOperatorError{Family: family, Name: name}
}
