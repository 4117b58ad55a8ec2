package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"radarsched/internal/app"
	"radarsched/internal/config"
	"radarsched/internal/timeline"
	logx "radarsched/pkg/logx"
)

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.NewConfigManager(path).Load()
	if err != nil {
		return nil, err
	}
	if err := app.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// cliLogger keeps stdout clean for command output.
func cliLogger(cfg *config.Config) logx.Logger {
	return logx.NewWriter(logx.Stderr(), cfg.Logging.Level)
}

type CheckCmd struct{}

func (c *CheckCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g.Config)
	if err != nil {
		return err
	}
	r, err := app.BuildResolver(cfg, nil, nil)
	if err != nil {
		return err
	}
	tl := r.Timeline()

	preset := strings.TrimSpace(cfg.Schedule.Preset)
	if preset == "" {
		preset = timeline.DefaultPreset
	}
	fmt.Printf("config:    %s\n", g.Config)
	fmt.Printf("preset:    %s (enabled=%t)\n", preset, r.Enabled())
	fmt.Printf("policy:    %s\n", tl.Overlap.EffectivePolicy())
	fmt.Printf("periods:   %d\n", len(tl.Periods))
	for day := 1; day <= 7; day++ {
		plan := tl.WeekMap[day]
		var periods []string
		if dp := tl.DayPlans[plan]; dp != nil {
			for _, id := range dp.Periods {
				if p := tl.Periods[id]; p != nil {
					periods = append(periods, id+" "+p.Window().String())
				}
			}
		}
		fmt.Printf("  %s  %-12s %s\n", time.Weekday(day%7).String()[:3], plan, strings.Join(periods, ", "))
	}
	for _, conflict := range timeline.FindOverlaps(tl) {
		fmt.Printf("overlap:   %s\n", conflict)
	}
	fmt.Println("ok")
	return nil
}

type ResolveCmd struct {
	At string `help:"Local time as 2006-01-02T15:04 in the configured time zone. Defaults to now."`
}

func (c *ResolveCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g.Config)
	if err != nil {
		return err
	}
	r, err := app.BuildResolver(cfg, nil, nil)
	if err != nil {
		return err
	}

	now := r.Now()
	if strings.TrimSpace(c.At) != "" {
		now, err = time.ParseInLocation("2006-01-02T15:04", strings.TrimSpace(c.At), now.Location())
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}
	}
	sched, err := r.Resolve(now)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		At   string `json:"at"`
		Date string `json:"date"`
		timeline.ResolvedSchedule
	}{
		At:               now.Format(time.RFC3339),
		Date:             timeline.FormatDate(now),
		ResolvedSchedule: sched,
	})
}

type LedgerArgs struct {
	Date   string `help:"Ledger date (2006-01-02). Defaults to today in the configured time zone."`
	Period string `help:"Period id." required:""`
	Action string `help:"Action name." enum:"collect,analyze,push" default:"push"`
}

func (a LedgerArgs) open(path string) (*timeline.Resolver, func(), error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	store, err := app.OpenStore(cfg, cliLogger(cfg))
	if err != nil {
		return nil, nil, err
	}
	if store == nil {
		return nil, nil, fmt.Errorf("storage is disabled in %s", path)
	}
	r, err := app.BuildResolver(cfg, store, nil)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return r, func() { _ = store.Close() }, nil
}

func (a LedgerArgs) date(r *timeline.Resolver) string {
	if d := strings.TrimSpace(a.Date); d != "" {
		return d
	}
	return r.Today()
}

type LedgerHasCmd struct {
	LedgerArgs
}

func (c *LedgerHasCmd) Run(g *Globals) error {
	r, closeFn, err := c.open(g.Config)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	date := c.date(r)
	done, err := r.AlreadyExecuted(ctx, c.Period, timeline.Action(c.Action), date)
	if err != nil {
		return err
	}
	fmt.Printf("%s %s %s: executed=%t\n", date, c.Period, c.Action, done)
	return nil
}

type LedgerRecordCmd struct {
	LedgerArgs
}

func (c *LedgerRecordCmd) Run(g *Globals) error {
	r, closeFn, err := c.open(g.Config)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	date := c.date(r)
	if err := r.RecordExecution(ctx, c.Period, timeline.Action(c.Action), date); err != nil {
		return err
	}
	fmt.Printf("%s %s %s: recorded\n", date, c.Period, c.Action)
	return nil
}
