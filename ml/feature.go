package ml

import (
	"strings"
)

type Feature interface {
	String() string
}

type StrFeature struct {
	Name  string
	Value string
}

func (f *StrFeature) String() string {
	parts := []string{f.Name, f.Value}
	return strings.Join(parts, "=")
}

type BoolFeature struct {
	Name string
}

func (f *BoolFeature) String() string {
	return f.Name
}
