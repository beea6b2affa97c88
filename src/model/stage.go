package model

type CategoryBlock struct {
	Lesson   string   `yaml:"lesson" json:"lesson"`
	Actions  []string `yaml:"actions" json:"actions"`
	Tool     string   `yaml:"tool" json:"tool"`
	ToolFile string   `yaml:"tool_file" json:"tool_file"`
}

type Stage struct {
	Title   string        `yaml:"title" json:"title"`
	Story   string        `yaml:"story" json:"story"`
	Startup CategoryBlock `yaml:"startup" json:"startup"`
	Mind    CategoryBlock `yaml:"mind" json:"mind"`
}

func (s *Stage) Block(cat Category) *CategoryBlock {
	switch cat {
	case CategoryStartup:
		return &s.Startup
	case CategoryMind:
		return &s.Mind
	}
	return nil
}

func (s *Stage) TotalActions() int {
	return len(s.Startup.Actions) + len(s.Mind.Actions)
}
