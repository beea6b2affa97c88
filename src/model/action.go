package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Category is one of the two parallel tracks of a stage
type Category string

const (
	CategoryStartup Category = "startup"
	CategoryMind    Category = "interna"
)

// Categories in display order
var Categories = []Category{CategoryStartup, CategoryMind}

func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case CategoryStartup:
		return CategoryStartup, nil
	case CategoryMind, "mind":
		return CategoryMind, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// ActionId is the ledger key of a single action, `{category}-{index}`. The
// identifier space is shared by every stage.
type ActionId string

func NewActionId(cat Category, idx int) ActionId {
	return ActionId(fmt.Sprintf("%s-%d", cat, idx))
}

func ParseActionId(s string) (Category, int, error) {
	sep := strings.LastIndex(s, "-")
	if sep <= 0 || sep == len(s)-1 {
		return "", 0, fmt.Errorf("malformed action id %q", s)
	}
	cat, err := ParseCategory(s[:sep])
	if err != nil {
		return "", 0, err
	}
	idx, err := strconv.Atoi(s[sep+1:])
	if err != nil || idx < 0 {
		return "", 0, fmt.Errorf("malformed action index in %q", s)
	}
	return cat, idx, nil
}

func (a ActionId) Category() Category {
	cat, _, err := ParseActionId(string(a))
	if err != nil {
		return ""
	}
	return cat
}
