package sdc

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Category selects which part of the address space is eligible for an
// injection.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryAll
	CategoryData
	CategoryCode
	CategoryAppData
	CategoryHeap
	CategoryStack
)

var categoryNames = []string{
	CategoryUnknown: "Unknown",
	CategoryAll:     "All",
	CategoryData:    "Data",
	CategoryCode:    "Code",
	CategoryAppData: "AppData",
	CategoryHeap:    "Heap",
	CategoryStack:   "Stack",
}

// Categories lists every usable category.
var Categories = []Category{CategoryAll, CategoryData, CategoryCode, CategoryAppData, CategoryHeap, CategoryStack}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// ParseCategory matches a category name, ignoring case.
func ParseCategory(name string) (Category, error) {
	for _, c := range Categories {
		if strings.EqualFold(name, c.String()) {
			return c, nil
		}
	}
	return CategoryUnknown, errors.Wrapf(ErrConfigInvalid, "unknown memory type %q", name)
}

// Set implements pflag.Value.
func (c *Category) Set(name string) (err error) {
	*c, err = ParseCategory(name)
	return
}

// Type implements pflag.Value.
func (c *Category) Type() string {
	return "memtype"
}

func (c *Category) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	return c.Set(name)
}

func (c Category) MarshalYAML() (interface{}, error) {
	return strings.ToLower(c.String()), nil
}
