// Package layout positions possibly-overlapping timed events into
// non-colliding visual columns for a single day view.
//
// Mutually or transitively overlapping events form a cluster, and column
// widths are computed per cluster: a lone event elsewhere in the day always
// renders at full width no matter how crowded another hour is.
package layout

import (
	"sort"
	"time"
)

// Config holds the rendering constants of the day grid.
type Config struct {
	// HourHeight is the pixel height of one hour row.
	HourHeight float64
	// MinEventHeight is the floor height of an event box so that short and
	// zero-duration events stay legible and clickable.
	MinEventHeight float64
}

// DefaultConfig matches a 60px-per-hour grid with a 20px floor.
func DefaultConfig() Config {
	return Config{HourHeight: 60, MinEventHeight: 20}
}

// Item is one timed event to lay out. Start and End are absolute times; the
// engine clips them to the day being rendered.
type Item struct {
	ID    string
	Start time.Time
	End   time.Time
}

// Box is the computed geometry for one item. Top and Height are pixels from
// the top of the day grid; Left and Width are percentages of the day column.
type Box struct {
	ID      string  `json:"id"`
	Top     float64 `json:"top"`
	Height  float64 `json:"height"`
	Column  int     `json:"column"`
	Columns int     `json:"columns"` // column count of the item's cluster
	Left    float64 `json:"left"`
	Width   float64 `json:"width"`
}

type placed struct {
	box Box
	// start/end are the clipped interval extended to the rendered extent, so
	// collision decisions match what the user actually sees.
	start time.Time
	end   time.Time
}

// Day computes collision-free geometry for all items intersecting the day
// that starts at dayStart. Items entirely outside [dayStart, dayStart+24h)
// are excluded. The result is ordered by (start, id) and is stable across
// re-renders for identical input.
func Day(items []Item, dayStart time.Time, cfg Config) []Box {
	if cfg.HourHeight <= 0 {
		cfg.HourHeight = DefaultConfig().HourHeight
	}
	perMinute := cfg.HourHeight / 60
	dayEnd := dayStart.Add(24 * time.Hour)
	// The rendered extent of an event is never shorter than the floor height,
	// and neither is its collision footprint; otherwise two stacked
	// zero-duration events would be assigned the same column and overlap
	// visually.
	floor := time.Duration(cfg.MinEventHeight/perMinute*float64(time.Minute) + 0.5)

	clipped := make([]placed, 0, len(items))
	for _, it := range items {
		start, end := it.Start, it.End
		if end.Before(start) || !start.Before(dayEnd) || end.Before(dayStart) || end.Equal(dayStart) && !start.Equal(dayStart) {
			continue
		}
		if start.Before(dayStart) {
			start = dayStart
		}
		if end.After(dayEnd) {
			end = dayEnd
		}
		topMin := start.Sub(dayStart).Minutes()
		heightPx := end.Sub(start).Minutes() * perMinute
		if heightPx < cfg.MinEventHeight {
			heightPx = cfg.MinEventHeight
		}
		renderEnd := start.Add(floor)
		if end.After(renderEnd) {
			renderEnd = end
		}
		clipped = append(clipped, placed{
			box:   Box{ID: it.ID, Top: topMin * perMinute, Height: heightPx},
			start: start,
			end:   renderEnd,
		})
	}

	// Deterministic order: start ascending, ties by id ascending. Events are
	// never reordered after this, so the layout is stable across re-renders.
	sort.Slice(clipped, func(i, j int) bool {
		if !clipped[i].start.Equal(clipped[j].start) {
			return clipped[i].start.Before(clipped[j].start)
		}
		return clipped[i].box.ID < clipped[j].box.ID
	})

	boxes := make([]Box, 0, len(clipped))
	var cluster []placed
	var clusterMaxEnd time.Time
	flush := func() {
		boxes = append(boxes, packCluster(cluster)...)
		cluster = cluster[:0]
	}
	for _, p := range clipped {
		// Items are sorted by start, so a gap against the running maximum end
		// closes the connected component.
		if len(cluster) > 0 && !p.start.Before(clusterMaxEnd) {
			flush()
		}
		cluster = append(cluster, p)
		if p.end.After(clusterMaxEnd) {
			clusterMaxEnd = p.end
		}
	}
	flush()
	return boxes
}

// packCluster assigns columns within one cluster by first-fit: each item goes
// to the lowest-indexed column whose last occupant ends at or before the
// item's start. Every item then shares the cluster's column count.
func packCluster(cluster []placed) []Box {
	if len(cluster) == 0 {
		return nil
	}
	var colEnds []time.Time
	for i := range cluster {
		p := &cluster[i]
		col := -1
		for c, end := range colEnds {
			if !end.After(p.start) {
				col = c
				break
			}
		}
		if col == -1 {
			col = len(colEnds)
			colEnds = append(colEnds, time.Time{})
		}
		colEnds[col] = p.end
		p.box.Column = col
	}

	columns := len(colEnds)
	width := 100.0 / float64(columns)
	out := make([]Box, len(cluster))
	for i, p := range cluster {
		p.box.Columns = columns
		p.box.Width = width
		p.box.Left = float64(p.box.Column) * width
		out[i] = p.box
	}
	return out
}

// NowMarker returns the pixel offset of the current-time line for the day
// starting at dayStart. The marker only exists while now falls within that
// day, which makes it show on today's column only.
func NowMarker(now, dayStart time.Time, cfg Config) (float64, bool) {
	if cfg.HourHeight <= 0 {
		cfg.HourHeight = DefaultConfig().HourHeight
	}
	if now.Before(dayStart) || !now.Before(dayStart.Add(24*time.Hour)) {
		return 0, false
	}
	return now.Sub(dayStart).Minutes() * (cfg.HourHeight / 60), true
}
