package model

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrInvalidConfigType is returned when a category is not channel, chain or other.
	ErrInvalidConfigType = errors.New("invalid config type")
	// ErrInvalidBaseChain is returned when a chain config names an unknown chain family.
	ErrInvalidBaseChain = errors.New("invalid base chain")
)

// Category is the top-level grouping of configuration files.
type Category string

const (
	Channel Category = "channel"
	Chain   Category = "chain"
	Other   Category = "other"
)

// Categories lists every recognised category.
var Categories = []Category{Channel, Chain, Other}

// ParseCategory maps a case-insensitive name onto a Category.
func ParseCategory(s string) (Category, error) {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case Channel, Chain, Other:
		return c, nil
	default:
		return "", ErrInvalidConfigType
	}
}

// ChainFamily distinguishes the blockchain framework of a chain config.
type ChainFamily string

const (
	Cosmos    ChainFamily = "cosmos"
	Substrate ChainFamily = "substrate"
)

// ChainFamilies lists every recognised chain family.
var ChainFamilies = []ChainFamily{Cosmos, Substrate}

// ParseChainFamily maps a case-insensitive name onto a ChainFamily.
func ParseChainFamily(s string) (ChainFamily, error) {
	switch f := ChainFamily(strings.ToLower(strings.TrimSpace(s))); f {
	case Cosmos, Substrate:
		return f, nil
	default:
		return "", ErrInvalidBaseChain
	}
}

// Section is the key/value content of one INI section.
type Section map[string]string

// Keys returns the section keys in sorted order.
func (s Section) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Document is the in-memory form of an INI config file: section name to
// section content.
type Document map[string]Section

// SectionNames returns the section names in sorted order.
func (d Document) SectionNames() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Target identifies one config file as the installer UI addresses it.
// ChainName and ChainFamily are only meaningful for the Chain category.
type Target struct {
	Category    Category    `json:"configType" yaml:"configType"`
	File        string      `json:"fileName" yaml:"fileName"`
	ChainName   string      `json:"chainName,omitempty" yaml:"chainName,omitempty"`
	ChainFamily ChainFamily `json:"baseChain,omitempty" yaml:"baseChain,omitempty"`
}

// ParseTarget builds a Target from the raw strings sent by the UI.
func ParseTarget(category, file, chainName, family string) (Target, error) {
	c, err := ParseCategory(category)
	if err != nil {
		return Target{}, err
	}
	t := Target{Category: c, File: file}
	if c != Chain {
		return t, nil
	}
	f, err := ParseChainFamily(family)
	if err != nil {
		return Target{}, err
	}
	t.ChainFamily = f
	t.ChainName = chainName
	return t, nil
}
