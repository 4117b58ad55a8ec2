package timeline

// DefaultSource returns the built-in presets used when no timeline file is
// configured. Every call returns a fresh value.
func DefaultSource() Source {
	return Source{
		Presets: map[string]*Timeline{
			"always_on":       alwaysOn(),
			"morning_evening": morningEvening(),
			"office_hours":    officeHours(),
			"night_owl":       nightOwl(),
		},
	}
}

func alwaysOn() *Timeline {
	return &Timeline{
		Default: &Overrides{
			Collect:    ptr(true),
			Analyze:    ptr(true),
			Push:       ptr(true),
			ReportMode: ptr(ReportModeCurrent),
			AIMode:     ptr(AIModeFollowReport),
		},
		Periods:  map[string]*Period{},
		DayPlans: map[string]*DayPlan{"all_day": {Periods: []string{}}},
		WeekMap:  everyDay("all_day"),
	}
}

func morningEvening() *Timeline {
	return &Timeline{
		Default: quietDefault(),
		Periods: map[string]*Period{
			"morning": digest("Morning digest", "07:00", "09:00"),
			"evening": digest("Evening digest", "19:00", "21:00"),
		},
		DayPlans: map[string]*DayPlan{"daily": {Periods: []string{"morning", "evening"}}},
		WeekMap:  everyDay("daily"),
	}
}

func officeHours() *Timeline {
	return &Timeline{
		Default: quietDefault(),
		Periods: map[string]*Period{
			"office": {
				Name:  "Office hours",
				Start: "09:00",
				End:   "18:00",
				Overrides: Overrides{
					Analyze:    ptr(true),
					Push:       ptr(true),
					ReportMode: ptr(ReportModeIncremental),
				},
			},
			"weekend_digest": digest("Weekend digest", "10:00", "11:00"),
		},
		DayPlans: map[string]*DayPlan{
			"workday": {Periods: []string{"office"}},
			"weekend": {Periods: []string{"weekend_digest"}},
		},
		WeekMap: WeekMap{1: "workday", 2: "workday", 3: "workday", 4: "workday", 5: "workday", 6: "weekend", 7: "weekend"},
	}
}

func nightOwl() *Timeline {
	return &Timeline{
		Default: quietDefault(),
		Periods: map[string]*Period{
			"overnight": {
				Name:      "Overnight",
				Start:     "22:00",
				End:       "06:00",
				Overrides: Overrides{Collect: ptr(false)},
			},
			"wakeup": digest("Wake-up digest", "07:00", "08:00"),
		},
		DayPlans: map[string]*DayPlan{"daily": {Periods: []string{"overnight", "wakeup"}}},
		WeekMap:  everyDay("daily"),
	}
}

func quietDefault() *Overrides {
	return &Overrides{
		Collect:    ptr(true),
		Analyze:    ptr(false),
		Push:       ptr(false),
		ReportMode: ptr(ReportModeCurrent),
		AIMode:     ptr(AIModeFollowReport),
		Once:       &OnceOverrides{Analyze: ptr(false), Push: ptr(false)},
	}
}

func digest(name, start, end string) *Period {
	return &Period{
		Name:  name,
		Start: start,
		End:   end,
		Overrides: Overrides{
			Analyze:    ptr(true),
			Push:       ptr(true),
			ReportMode: ptr(ReportModeDaily),
			Once:       &OnceOverrides{Analyze: ptr(true), Push: ptr(true)},
		},
	}
}

func everyDay(plan string) WeekMap {
	m := make(WeekMap, 7)
	for d := 1; d <= 7; d++ {
		m[d] = plan
	}
	return m
}

func ptr[T any](v T) *T { return &v }
