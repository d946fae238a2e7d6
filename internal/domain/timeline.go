package domain

// categoryColor and categoryIcon are the fixed mappings from spec.md §4.F.5.
var categoryColor = map[string]string{
	CategoryCareer:        "blue",
	CategoryEducation:     "green",
	CategoryAchievement:   "gold",
	CategoryProject:       "purple",
	CategoryCertification: "orange",
}

var categoryIcon = map[string]string{
	CategoryCareer:        "briefcase",
	CategoryEducation:     "grad-cap",
	CategoryAchievement:   "trophy",
	CategoryProject:       "code",
	CategoryCertification: "cert",
}

// ColorForCategory returns the fixed colour for a milestone category,
// defaulting to "gray" for an unrecognised one.
func ColorForCategory(category string) string {
	if c, ok := categoryColor[category]; ok {
		return c
	}
	return "gray"
}

// IconForCategory returns the fixed icon for a milestone category,
// defaulting to "flag" for an unrecognised one.
func IconForCategory(category string) string {
	if i, ok := categoryIcon[category]; ok {
		return i
	}
	return "flag"
}

// TimelineEvent is one entry in Timeline.Events.
type TimelineEvent struct {
	ID          string   `mapstructure:"id" json:"id"`
	Date        string   `mapstructure:"date" json:"date"`
	EndDate     string   `mapstructure:"end_date" json:"end_date,omitempty"`
	Title       string   `mapstructure:"title" json:"title"`
	Subtitle    string   `mapstructure:"subtitle" json:"subtitle,omitempty"`
	Description string   `mapstructure:"description" json:"description,omitempty"`
	Category    string   `mapstructure:"category" json:"category"`
	Icon        string   `mapstructure:"-" json:"icon"`
	Color       string   `mapstructure:"-" json:"color"`
	Media       string   `mapstructure:"media" json:"media,omitempty"`
	Tags        []string `mapstructure:"tags" json:"tags,omitempty"`
}

// Era is one entry in Timeline.Eras.
type Era struct {
	Name      string `mapstructure:"name" json:"name"`
	StartDate string `mapstructure:"start_date" json:"start_date"`
	EndDate   string `mapstructure:"end_date" json:"end_date,omitempty"`
	Color     string `mapstructure:"color" json:"color"`
}

// Timeline is GENERATE_TIMELINE's output document.
type Timeline struct {
	Events []TimelineEvent `mapstructure:"events" json:"events"`
	Eras   []Era           `mapstructure:"eras" json:"eras"`
}

// ApplyCategoryMappings fills Icon/Color on every event from its Category,
// overriding whatever the AI gateway returned for those two fields — the
// mapping is fixed per spec, not model-chosen.
func (t *Timeline) ApplyCategoryMappings() {
	for i := range t.Events {
		t.Events[i].Color = ColorForCategory(t.Events[i].Category)
		t.Events[i].Icon = IconForCategory(t.Events[i].Category)
	}
}
