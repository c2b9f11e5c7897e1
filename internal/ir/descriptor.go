package ir

import "fmt"

// Category names a schema category (a collection of records of one data
// class) on the storage endpoint.
type Category struct {
	Name      string `json:"name"`
	DataClass string `json:"data_class,omitempty"`
}

// String implements fmt.Stringer.
func (c Category) String() string {
	if c.DataClass == "" {
		return c.Name
	}
	return fmt.Sprintf("%s(%s)", c.Name, c.DataClass)
}

// StatementDescriptor is a textual query or write template bound to a
// category.
//
// Descriptors are immutable values; equality is by category and text. The
// descriptor text is validated against the endpoint's trusted set before
// the endpoint prepares it.
//
// Example:
//
//	StatementDescriptor{
//	  Category: Category{Name: "vm-info"},
//	  Text:     "QUERY vm-info WHERE 'agentId' = ?s",
//	}
type StatementDescriptor struct {
	Category Category `json:"category"`
	Text     string   `json:"text"`
}

// NewStatementDescriptor creates a descriptor for text bound to category.
func NewStatementDescriptor(category Category, text string) StatementDescriptor {
	return StatementDescriptor{Category: category, Text: text}
}

// String implements fmt.Stringer. The descriptor text is returned verbatim
// so it can be audited in logs and error messages.
func (d StatementDescriptor) String() string {
	return d.Text
}
