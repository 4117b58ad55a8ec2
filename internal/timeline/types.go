package timeline

import "sort"

const (
	ReportModeCurrent     = "current"
	ReportModeDaily       = "daily"
	ReportModeIncremental = "incremental"

	// AIModeFollowReport makes the AI mode track the resolved report mode.
	AIModeFollowReport = "follow_report"

	// DisabledDayPlan is reported as the day plan when scheduling is off.
	DisabledDayPlan = "disabled"

	PresetCustom  = "custom"
	DefaultPreset = "always_on"
)

// OverlapPolicy decides how overlapping periods inside one day plan are handled.
type OverlapPolicy string

const (
	PolicyErrorOnOverlap OverlapPolicy = "error_on_overlap"
	PolicyLastWins       OverlapPolicy = "last_wins"
)

// Action is one of the high-level behaviors a tick can trigger.
type Action string

const (
	ActionCollect Action = "collect"
	ActionAnalyze Action = "analyze"
	ActionPush    Action = "push"
)

// OnceFlags marks actions that run at most once per period per date.
type OnceFlags struct {
	Analyze bool `json:"analyze"`
	Push    bool `json:"push"`
}

// ActionProfile is the effective behavior for an instant.
// It only exists as a merge result.
type ActionProfile struct {
	Collect    bool      `json:"collect"`
	Analyze    bool      `json:"analyze"`
	Push       bool      `json:"push"`
	ReportMode string    `json:"report_mode"`
	AIMode     string    `json:"ai_mode"`
	Once       OnceFlags `json:"once"`
}

// fallbackProfile fills fields the timeline default leaves unset.
var fallbackProfile = ActionProfile{
	Collect:    true,
	ReportMode: ReportModeCurrent,
	AIMode:     AIModeFollowReport,
}

// OnceOverrides is the optional form of OnceFlags.
type OnceOverrides struct {
	Analyze *bool `json:"analyze,omitempty"`
	Push    *bool `json:"push,omitempty"`
}

// Overrides is the config-side shape of an ActionProfile: nil means "not set".
// It is used both for the timeline default and for period overrides.
type Overrides struct {
	Collect    *bool          `json:"collect,omitempty"`
	Analyze    *bool          `json:"analyze,omitempty"`
	Push       *bool          `json:"push,omitempty"`
	ReportMode *string        `json:"report_mode,omitempty"`
	AIMode     *string        `json:"ai_mode,omitempty"`
	Once       *OnceOverrides `json:"once,omitempty"`
}

// Period is a named time window with optional action overrides.
type Period struct {
	ID    string `json:"-"`
	Name  string `json:"name,omitempty"`
	Start string `json:"start"`
	End   string `json:"end"`

	Overrides
}

// Window returns the period's [Start, End] window.
func (p *Period) Window() Window { return Window{Start: p.Start, End: p.End} }

// DisplayName returns Name, or ID when no name is configured.
func (p *Period) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// DayPlan lists the periods that may be active on a day type.
// Later entries have higher priority.
type DayPlan struct {
	ID      string   `json:"-"`
	Periods []string `json:"periods"`
}

// WeekMap maps ISO weekday (1=Monday ... 7=Sunday) to a day plan ID.
type WeekMap map[int]string

type OverlapConfig struct {
	Policy OverlapPolicy `json:"policy,omitempty"`
}

// EffectivePolicy returns the configured policy, defaulting to error_on_overlap.
func (c OverlapConfig) EffectivePolicy() OverlapPolicy {
	if c.Policy == "" {
		return PolicyErrorOnOverlap
	}
	return c.Policy
}

// Timeline is the full scheduling model. Treat it as read-only after Build.
type Timeline struct {
	Default  *Overrides          `json:"default"`
	Periods  map[string]*Period  `json:"periods"`
	DayPlans map[string]*DayPlan `json:"day_plans"`
	WeekMap  WeekMap             `json:"week_map"`
	Overlap  OverlapConfig       `json:"overlap"`
}

// Source holds every selectable timeline: named presets plus the custom slot.
type Source struct {
	Presets map[string]*Timeline `json:"presets"`
	Custom  *Timeline            `json:"custom,omitempty"`
}

// PresetNames returns the preset keys in sorted order.
func (s Source) PresetNames() []string {
	out := make([]string, 0, len(s.Presets))
	for k := range s.Presets {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Selector picks the timeline to build.
type Selector struct {
	Enabled bool
	Preset  string
}

// ResolvedSchedule is what the execution driver consumes each tick.
type ResolvedSchedule struct {
	PeriodID    string `json:"period_id,omitempty"`
	PeriodName  string `json:"period_name,omitempty"`
	DayPlanID   string `json:"day_plan"`
	Collect     bool   `json:"collect"`
	Analyze     bool   `json:"analyze"`
	Push        bool   `json:"push"`
	ReportMode  string `json:"report_mode"`
	AIMode      string `json:"ai_mode"`
	OnceAnalyze bool   `json:"once_analyze"`
	OncePush    bool   `json:"once_push"`

	Weekday   int      `json:"weekday,omitempty"`
	Clock     string   `json:"clock,omitempty"`
	Conflicts []string `json:"conflicts,omitempty"`
}

// Active reports whether a period matched (as opposed to the default profile).
func (r ResolvedSchedule) Active() bool { return r.PeriodID != "" }

// Actions lists the enabled actions in execution order.
func (r ResolvedSchedule) Actions() []Action {
	out := make([]Action, 0, 3)
	if r.Collect {
		out = append(out, ActionCollect)
	}
	if r.Analyze {
		out = append(out, ActionAnalyze)
	}
	if r.Push {
		out = append(out, ActionPush)
	}
	return out
}

// Once reports whether action is marked run-once for the resolved period.
func (r ResolvedSchedule) Once(action Action) bool {
	switch action {
	case ActionAnalyze:
		return r.OnceAnalyze
	case ActionPush:
		return r.OncePush
	default:
		return false
	}
}
