package model

import "fmt"

// VariableItem mirrors one workspace variable.
type VariableItem struct {
	Name string
	Type string

	value     any
	available bool
	job       *JobItem
}

// NewVariableItem creates a variable with an initial value, marked available.
func NewVariableItem(name, typ string, value any) *VariableItem {
	return &VariableItem{Name: name, Type: typ, value: value, available: true}
}

// Value returns the last known value.
func (v *VariableItem) Value() any {
	return v.value
}

// Available reports whether the variable is currently connected.
func (v *VariableItem) Available() bool {
	return v.available
}

// SetValue stores a new value.
func (v *VariableItem) SetValue(value any) {
	v.value = value
	v.job.publish(Change{Kind: VariableChanged, Name: v.Name, Value: v.DisplayValue()})
}

// SetAvailable updates the connectivity flag.
func (v *VariableItem) SetAvailable(available bool) {
	if v.available == available {
		return
	}
	v.available = available
	v.job.publish(Change{Kind: VariableChanged, Name: v.Name, Value: v.DisplayValue()})
}

// DisplayValue formats the value for display.
func (v *VariableItem) DisplayValue() string {
	if v.value == nil {
		return ""
	}
	return fmt.Sprint(v.value)
}
