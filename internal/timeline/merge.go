package timeline

// Merge layers a period's overrides over the timeline default.
//
// Fields unset in def take the built-in fallbacks (collect on, analyze and push
// off, report mode "current", AI mode follow_report). The once flags merge key
// by key; every other field is replaced wholesale when the period sets it.
// period may be nil, in which case the default profile is returned.
func Merge(def, period *Overrides) ActionProfile {
	out := fallbackProfile
	apply(&out, def)
	apply(&out, period)
	return out
}

func apply(dst *ActionProfile, o *Overrides) {
	if o == nil {
		return
	}
	once := dst.Once
	if o.Once != nil {
		if o.Once.Analyze != nil {
			once.Analyze = *o.Once.Analyze
		}
		if o.Once.Push != nil {
			once.Push = *o.Once.Push
		}
	}
	if o.Collect != nil {
		dst.Collect = *o.Collect
	}
	if o.Analyze != nil {
		dst.Analyze = *o.Analyze
	}
	if o.Push != nil {
		dst.Push = *o.Push
	}
	if o.ReportMode != nil {
		dst.ReportMode = *o.ReportMode
	}
	if o.AIMode != nil {
		dst.AIMode = *o.AIMode
	}
	dst.Once = once
}

// EffectiveAIMode substitutes the report mode for the follow_report sentinel.
func (p ActionProfile) EffectiveAIMode() string {
	if p.AIMode == AIModeFollowReport {
		return p.ReportMode
	}
	return p.AIMode
}
