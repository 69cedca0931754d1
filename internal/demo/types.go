// Package demo declares sample business types (Person, Order, Line) and a
// scripted walkthrough exercising rules, undo, async validation and saving.
package demo

import (
	"regexp"

	"github.com/conduit-lang/bizobj/internal/bo/business"
	"github.com/conduit-lang/bizobj/internal/bo/meta"
	"github.com/conduit-lang/bizobj/internal/bo/rules"
)

var orderNumber = regexp.MustCompile(`^ORD-\d+$`)

// Person has a name, an age and an email address checked against a Directory
var Person = business.MustDefineType(personInfo(), func(g *rules.Graph) error {
	return g.Add(
		rules.Required("Name"),
		rules.MaxLength("Name", 50),
		rules.Check("MustBePositive", "Age", rules.Error, "Age must be positive", func(v interface{}) bool {
			return v.(int) > 0
		}),
		rules.Check("WarnIfOver100", "Age", rules.Warning, "Age is unusually high", func(v interface{}) bool {
			return v.(int) <= 100
		}),
		rules.Email("Email"),
		EmailAvailable("Email"),
	)
})

// Line is an order line
var Line = business.MustDefineType(lineInfo(), func(g *rules.Graph) error {
	return g.Add(
		rules.Required("Product"),
		rules.MinValue("Quantity", 1),
		rules.MinValue("Price", 0),
	)
})

// Order owns a customer and a list of lines
var Order = business.MustDefineType(orderInfo(), func(g *rules.Graph) error {
	return g.Add(
		rules.Required("Number"),
		rules.Pattern("Number", orderNumber),
	)
})

func personInfo() *meta.TypeInfo {
	info := meta.NewTypeInfo("Person")
	info.Define("Name", "", meta.WithFriendlyName("Name"))
	info.Define("Age", 0)
	info.Define("Email", "", meta.WithFriendlyName("Email address"))
	info.Define("Tags", []string(nil))
	return info
}

func lineInfo() *meta.TypeInfo {
	info := meta.NewTypeInfo("Line")
	info.Define("Product", "")
	info.Define("Quantity", 1)
	info.Define("Price", 0.0)
	return info
}

func orderInfo() *meta.TypeInfo {
	info := meta.NewTypeInfo("Order")
	info.Define("Number", "", meta.WithFriendlyName("Order number"))
	business.DefineChild(info, "Customer")
	business.DefineChild(info, "Lines")
	return info
}

// NewPerson creates a new person with its rules checked
func NewPerson(rt *business.Runtime) *business.Object {
	p := business.New(Person, rt)
	p.CheckRules()
	return p
}

// NewOrder creates a new order with an empty line list and a new customer
func NewOrder(rt *business.Runtime) (*business.Object, error) {
	order := business.New(Order, rt)
	if err := order.Set("Customer", NewPerson(rt)); err != nil {
		return nil, err
	}
	if err := order.Set("Lines", business.NewList(Line, rt)); err != nil {
		return nil, err
	}
	order.CheckRules()
	return order, nil
}

// AddLine appends a line to the order
func AddLine(order *business.Object, product string, quantity int, price float64) (*business.Object, error) {
	lines, err := order.Children("Lines")
	if err != nil {
		return nil, err
	}
	line, err := lines.AddNew()
	if err != nil {
		return nil, err
	}
	for _, kv := range []struct {
		name  string
		value interface{}
	}{{"Product", product}, {"Quantity", quantity}, {"Price", price}} {
		if err := line.Set(kv.name, kv.value); err != nil {
			return nil, err
		}
	}
	return line, nil
}

// Total sums quantity times price over the active lines
func Total(order *business.Object) float64 {
	lines, err := order.Children("Lines")
	if err != nil || lines == nil {
		return 0
	}
	var total float64
	for _, line := range lines.Items() {
		total += float64(line.Get("Quantity").(int)) * line.Get("Price").(float64)
	}
	return total
}
