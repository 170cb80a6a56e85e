// Package planparser implements the plan-parser capability interface
// spec.md §6 treats as an external collaborator: parse(plan_path) →
// Plan. The core does not interpret Plan internals; a plan is parsed
// only to check that it is readable and well-formed, and the core
// forwards the path to the runner.
//
// Grounded on internal/parser/frontmatter.go's YAML-frontmatter
// extraction (gopkg.in/yaml.v3), repurposed from epic-markdown
// frontmatter (priority/depends_on) to test-plan frontmatter
// (batches/tags).
package planparser

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Batch is one named sequence of tasks within a plan. The core treats
// its contents as opaque; a requested BatchRange is not checked against
// the batch count.
type Batch struct {
	Name  string   `yaml:"name"`
	Tasks []string `yaml:"tasks"`
}

// Plan is a parsed test plan: frontmatter metadata plus an ordered list
// of batches.
type Plan struct {
	Path        string
	Title       string   `yaml:"title"`
	Tags        []string `yaml:"tags"`
	Batches     []Batch  `yaml:"batches"`
	Description string   // remaining markdown body, after the frontmatter
}

// NumBatches returns how many batches the plan declares.
func (p Plan) NumBatches() int { return len(p.Batches) }

// Parser implements the PlanParser capability by reading a
// YAML-frontmatter markdown file from disk.
type Parser struct{}

// New creates a Parser.
func New() *Parser { return &Parser{} }

// Parse implements the capability interface: parse(plan_path) → Plan.
func (Parser) Parse(planPath string) (Plan, error) {
	content, err := os.ReadFile(planPath)
	if err != nil {
		return Plan{}, fmt.Errorf("reading plan %s: %w", planPath, err)
	}
	return ParseBytes(planPath, content)
}

// ParseBytes parses already-read plan content, for callers (and tests)
// that do not have the plan on disk.
func ParseBytes(planPath string, content []byte) (Plan, error) {
	fm, body, err := splitFrontmatter(content)
	if err != nil {
		return Plan{}, fmt.Errorf("parsing frontmatter of %s: %w", planPath, err)
	}

	fm.Path = planPath
	fm.Description = string(bytes.TrimSpace(body))
	return fm, nil
}

// splitFrontmatter extracts the leading "---\n...\n---" YAML block, if
// present, and unmarshals it into a Plan. Content without frontmatter
// parses to a zero-value Plan with the whole content as the body.
func splitFrontmatter(content []byte) (Plan, []byte, error) {
	if !bytes.HasPrefix(content, []byte("---\n")) {
		return Plan{}, content, nil
	}

	rest := content[4:]
	end := bytes.Index(rest, []byte("\n---"))
	if end == -1 {
		return Plan{}, content, nil
	}

	fmData := rest[:end]
	remaining := rest[end+4:]

	var plan Plan
	if err := yaml.Unmarshal(fmData, &plan); err != nil {
		return Plan{}, nil, err
	}

	return plan, bytes.TrimLeft(remaining, "\n"), nil
}
