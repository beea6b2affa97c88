package registry

import (
	_ "embed"
	"fmt"

	"github.com/onemorebsmith/psychcoins/src/model"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

//go:embed stages.yaml
var defaultStages []byte

var ErrStageOutOfRange = fmt.Errorf("stage index out of range")

// Registry is the read-only list of stages the guide walks through
type Registry struct {
	stages []model.Stage
}

// Default returns the registry built from the embedded stage content
func Default() *Registry {
	r, err := Load(defaultStages)
	if err != nil {
		panic(errors.Wrap(err, "embedded stages.yaml is invalid"))
	}
	return r
}

func Load(raw []byte) (*Registry, error) {
	var stages []model.Stage
	if err := yaml.Unmarshal(raw, &stages); err != nil {
		return nil, errors.Wrap(err, "failed parsing stages")
	}
	return New(stages)
}

func New(stages []model.Stage) (*Registry, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("registry needs at least one stage")
	}
	for i, s := range stages {
		if s.TotalActions() == 0 {
			return nil, fmt.Errorf("stage %d (%s) has no actions", i, s.Title)
		}
	}
	return &Registry{stages: stages}, nil
}

func (r *Registry) Len() int {
	return len(r.stages)
}

func (r *Registry) Stage(i int) (model.Stage, error) {
	if i < 0 || i >= len(r.stages) {
		return model.Stage{}, errors.Wrapf(ErrStageOutOfRange, "stage %d of %d", i, len(r.stages))
	}
	return r.stages[i], nil
}

func (r *Registry) Stages() []model.Stage {
	return r.stages
}

// Tool returns the download filename and markdown body of a stage's tool
func (r *Registry) Tool(i int, cat model.Category) (string, string, error) {
	s, err := r.Stage(i)
	if err != nil {
		return "", "", err
	}
	block := s.Block(cat)
	if block == nil {
		return "", "", fmt.Errorf("unknown category %q", cat)
	}
	if block.Tool == "" {
		return "", "", fmt.Errorf("stage %d has no %s tool", i, cat)
	}
	name := block.ToolFile
	if name == "" {
		name = fmt.Sprintf("%s-%d.md", cat, i)
	}
	return name, block.Tool, nil
}

// ActionsForStage maps each category to its ActionIds in list order
func ActionsForStage(s model.Stage) map[model.Category][]model.ActionId {
	out := make(map[model.Category][]model.ActionId, len(model.Categories))
	for _, cat := range model.Categories {
		actions := s.Block(cat).Actions
		ids := make([]model.ActionId, len(actions))
		for j := range actions {
			ids[j] = model.NewActionId(cat, j)
		}
		out[cat] = ids
	}
	return out
}

// AllActions lists a stage's ActionIds, startup first
func AllActions(s model.Stage) []model.ActionId {
	byCat := ActionsForStage(s)
	out := make([]model.ActionId, 0, s.TotalActions())
	for _, cat := range model.Categories {
		out = append(out, byCat[cat]...)
	}
	return out
}

// ActionsForCategory is the union of a category's ActionIds over every stage.
// Ids are shared between stages so the longest list wins.
func ActionsForCategory(stages []model.Stage, cat model.Category) []model.ActionId {
	longest := 0
	for i := range stages {
		if block := stages[i].Block(cat); block != nil && len(block.Actions) > longest {
			longest = len(block.Actions)
		}
	}
	out := make([]model.ActionId, longest)
	for j := range out {
		out[j] = model.NewActionId(cat, j)
	}
	return out
}
