package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category is a grouping in the external system's taxonomy that a test case
// can be linked to.
type Category string

const (
	CategoryPlan         Category = "plan"
	CategoryExecution    Category = "execution"
	CategorySet          Category = "set"
	CategoryFolder       Category = "folder"
	CategoryPrecondition Category = "precondition"
)

// Categories lists every category in linking order.
var Categories = []Category{
	CategoryPlan,
	CategoryExecution,
	CategorySet,
	CategoryFolder,
	CategoryPrecondition,
}

// Title returns the display prefix for the category ("Plan", "Execution", ...).
// A Caser holds state, so each call gets its own.
func (c Category) Title() string {
	return cases.Title(language.English).String(string(c))
}

// LinkTarget references one external entity within one category.
type LinkTarget struct {
	ID           string `json:"id" yaml:"id"`
	DisplayLabel string `json:"display_label" yaml:"display_label"`
}

// Label returns the display label, falling back to the id.
func (t LinkTarget) Label() string {
	if t.DisplayLabel != "" {
		return t.DisplayLabel
	}
	return t.ID
}

// LinkingConfiguration is the set of external entities a record should be
// associated with, by category.
type LinkingConfiguration struct {
	Plans         []LinkTarget `json:"plans,omitempty" yaml:"plans,omitempty"`
	Executions    []LinkTarget `json:"executions,omitempty" yaml:"executions,omitempty"`
	Sets          []LinkTarget `json:"sets,omitempty" yaml:"sets,omitempty"`
	Preconditions []LinkTarget `json:"preconditions,omitempty" yaml:"preconditions,omitempty"`
	FolderPath    string       `json:"folder_path,omitempty" yaml:"folder_path,omitempty"`
	ProjectID     string       `json:"project_id,omitempty" yaml:"project_id,omitempty"`
}

// IsRootFolder reports whether path names no folder at all (empty or "/").
func IsRootFolder(path string) bool {
	p := strings.TrimSpace(path)
	return p == "" || p == "/"
}

// HasFolder reports whether folder linking applies: a non-root folder path
// and a project id are both required.
func (c LinkingConfiguration) HasFolder() bool {
	return !IsRootFolder(c.FolderPath) && strings.TrimSpace(c.ProjectID) != ""
}

// CountLinks returns the number of link operations the configuration plans.
// Folder and preconditions each count as a single operation.
func (c LinkingConfiguration) CountLinks() int {
	n := len(c.Plans) + len(c.Executions) + len(c.Sets)
	if c.HasFolder() {
		n++
	}
	if len(c.Preconditions) > 0 {
		n++
	}
	return n
}

// Targets returns the configured targets for an item-wise category.
func (c LinkingConfiguration) Targets(cat Category) []LinkTarget {
	switch cat {
	case CategoryPlan:
		return c.Plans
	case CategoryExecution:
		return c.Executions
	case CategorySet:
		return c.Sets
	case CategoryPrecondition:
		return c.Preconditions
	default:
		return nil
	}
}

// PreconditionIDs returns the precondition ids in configuration order.
func (c LinkingConfiguration) PreconditionIDs() []string {
	return TargetIDs(c.Preconditions)
}

// TargetIDs extracts the ids of targets, preserving order.
func TargetIDs(targets []LinkTarget) []string {
	if len(targets) == 0 {
		return nil
	}
	ids := make([]string, 0, len(targets))
	for _, t := range targets {
		ids = append(ids, t.ID)
	}
	return ids
}
