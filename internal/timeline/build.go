package timeline

import (
	"strings"
)

// Build selects the timeline named by sel.Preset from src and returns a deep
// copy, so later changes to src never leak into the built value.
//
// An empty preset selects DefaultPreset. PresetCustom selects src.Custom.
// A missing periods section is normalized to an empty map.
func Build(sel Selector, src Source) (*Timeline, error) {
	preset := strings.TrimSpace(sel.Preset)
	if preset == "" {
		preset = DefaultPreset
	}

	var chosen *Timeline
	if preset == PresetCustom {
		chosen = src.Custom
	} else {
		t, ok := src.Presets[preset]
		if !ok {
			choices := append(src.PresetNames(), PresetCustom)
			return nil, configErrorf("preset", "unknown preset %q, valid choices: %s", preset, strings.Join(choices, ", "))
		}
		chosen = t
	}

	tl := chosen.Clone()
	if tl.Periods == nil {
		tl.Periods = map[string]*Period{}
	}
	for id, p := range tl.Periods {
		if p != nil {
			p.ID = id
		}
	}
	for id, dp := range tl.DayPlans {
		if dp != nil {
			dp.ID = id
		}
	}
	return tl, nil
}

// Clone returns a deep copy. Cloning a nil Timeline yields an empty one.
func (t *Timeline) Clone() *Timeline {
	if t == nil {
		return &Timeline{}
	}
	out := &Timeline{
		Default: t.Default.clone(),
		Overlap: t.Overlap,
	}
	if t.Periods != nil {
		out.Periods = make(map[string]*Period, len(t.Periods))
		for k, p := range t.Periods {
			if p == nil {
				out.Periods[k] = nil
				continue
			}
			cp := *p
			if o := p.Overrides.clone(); o != nil {
				cp.Overrides = *o
			}
			out.Periods[k] = &cp
		}
	}
	if t.DayPlans != nil {
		out.DayPlans = make(map[string]*DayPlan, len(t.DayPlans))
		for k, dp := range t.DayPlans {
			if dp == nil {
				out.DayPlans[k] = nil
				continue
			}
			out.DayPlans[k] = &DayPlan{ID: dp.ID, Periods: append([]string(nil), dp.Periods...)}
		}
	}
	if t.WeekMap != nil {
		out.WeekMap = make(WeekMap, len(t.WeekMap))
		for k, v := range t.WeekMap {
			out.WeekMap[k] = v
		}
	}
	return out
}

func (o *Overrides) clone() *Overrides {
	if o == nil {
		return nil
	}
	return &Overrides{
		Collect:    cloneBool(o.Collect),
		Analyze:    cloneBool(o.Analyze),
		Push:       cloneBool(o.Push),
		ReportMode: cloneString(o.ReportMode),
		AIMode:     cloneString(o.AIMode),
		Once:       o.Once.clone(),
	}
}

func (o *OnceOverrides) clone() *OnceOverrides {
	if o == nil {
		return nil
	}
	return &OnceOverrides{Analyze: cloneBool(o.Analyze), Push: cloneBool(o.Push)}
}

func cloneBool(v *bool) *bool {
	if v == nil {
		return nil
	}
	b := *v
	return &b
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	s := *v
	return &s
}
