// Package activity turns raw window-visibility snapshots into per-application
// duration reports for a time window.
package activity

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/attent-app/attent/internal/domain"
)

// noiseFloor drops entries whose total credited time is at or below this
// many minutes.
const noiseFloor = 1

const headerTimeLayout = "3:04PM"

// Report is the aggregated activity for one half-open window [Start, End).
// Rendering is deterministic: identical inputs produce identical text.
type Report struct {
	Start time.Time
	End   time.Time

	apps []appEntry
}

type appEntry struct {
	name    string
	minutes int
	titles  []titleEntry
}

type titleEntry struct {
	title   string
	minutes int
}

// Summarize aggregates a time-ordered snapshot sequence over [start, end).
// Every (app, title) pair visible in a snapshot is credited the whole time
// until the next snapshot (the last one up to end), in rounded minutes.
// Concurrently visible windows each receive the full interval: the report
// models "was visible", not "had exclusive focus", so per-app totals may sum
// to more than the window length.
func Summarize(observed []domain.ObservedActivity, start, end time.Time, loc *time.Location) *Report {
	if loc == nil {
		loc = time.UTC
	}
	report := &Report{Start: start.In(loc), End: end.In(loc)}

	obs := make([]domain.ObservedActivity, 0, len(observed))
	for _, o := range observed {
		if o.At.Before(start) || !o.At.Before(end) {
			continue
		}
		obs = append(obs, o)
	}
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].At.Before(obs[j].At) })

	appMinutes := make(map[string]int)
	titleMinutes := make(map[string]map[string]int)

	for i, o := range obs {
		next := end
		if i+1 < len(obs) {
			next = obs[i+1].At
		}
		minutes := int(math.Round(next.Sub(o.At).Minutes()))
		if minutes <= 0 {
			continue
		}
		for _, w := range o.Activity.VisibleWindows {
			appMinutes[w.Owner] += minutes
			if titleMinutes[w.Owner] == nil {
				titleMinutes[w.Owner] = make(map[string]int)
			}
			titleMinutes[w.Owner][w.Title] += minutes
		}
	}

	for app, minutes := range appMinutes {
		if minutes <= noiseFloor {
			continue
		}
		entry := appEntry{name: app, minutes: minutes}
		for title, m := range titleMinutes[app] {
			if m <= noiseFloor {
				continue
			}
			entry.titles = append(entry.titles, titleEntry{title: title, minutes: m})
		}
		sort.Slice(entry.titles, func(i, j int) bool {
			a, b := entry.titles[i], entry.titles[j]
			if a.minutes != b.minutes {
				return a.minutes > b.minutes
			}
			return a.title < b.title
		})
		report.apps = append(report.apps, entry)
	}
	sort.Slice(report.apps, func(i, j int) bool {
		a, b := report.apps[i], report.apps[j]
		if a.minutes != b.minutes {
			return a.minutes > b.minutes
		}
		return a.name < b.name
	})

	return report
}

// HasActivity reports whether any entry survived the noise filter. A
// header-only report signals "insufficient data" to the caller.
func (r *Report) HasActivity() bool {
	return len(r.apps) > 0
}

// String renders the report: a window header, one line per application, and
// indented sub-lines per window title.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Activity from %s to %s:\n",
		r.Start.Format(headerTimeLayout), r.End.Format(headerTimeLayout))
	for _, app := range r.apps {
		fmt.Fprintf(&b, "%dmin on %s\n", app.minutes, app.name)
		for _, t := range app.titles {
			fmt.Fprintf(&b, "    %dmin on %s - %s\n", t.minutes, app.name, t.title)
		}
	}
	return b.String()
}
