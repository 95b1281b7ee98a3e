package router

import (
	"strconv"
	"strings"

	"github.com/jsildura/cloudstream-sub000/internal/model"
)

// weightedTable is the cumulative-weight view of the valid targets.
type weightedTable struct {
	entries    []model.Target
	cumulative []int
	total      int
}

func buildTable(targets []model.Target) (*weightedTable, error) {
	t := &weightedTable{}
	for _, target := range targets {
		if !target.Valid() {
			continue
		}
		t.total += target.Weight
		t.entries = append(t.entries, target)
		t.cumulative = append(t.cumulative, t.total)
	}
	if len(t.entries) == 0 {
		return nil, &ConfigError{Reason: "weighted selection", Err: ErrNoTargets}
	}
	return t, nil
}

// pick maps r in [0,1) onto the table.
func (t *weightedTable) pick(r float64) model.Target {
	value := r * float64(t.total)
	for i, c := range t.cumulative {
		if float64(c) > value {
			return t.entries[i]
		}
	}
	return t.entries[len(t.entries)-1]
}

// primary returns the highest-weight entry; the first one wins ties.
func (t *weightedTable) primary() model.Target {
	best := t.entries[0]
	for _, e := range t.entries[1:] {
		if e.Weight > best.Weight {
			best = e
		}
	}
	return best
}

// SelectWeighted draws one target with probability weight/total.
// Targets with a non-positive weight or a non-http(s) base URL are ignored.
func SelectWeighted(targets []model.Target, rnd func() float64) (model.Target, error) {
	t, err := buildTable(targets)
	if err != nil {
		return model.Target{}, err
	}
	return t.pick(rnd()), nil
}

// fingerprint identifies a target list for cache invalidation.
func fingerprint(targets []model.Target) string {
	var b strings.Builder
	for _, t := range targets {
		b.WriteString(t.Name)
		b.WriteByte('\x00')
		b.WriteString(t.BaseURL)
		b.WriteByte('\x00')
		b.WriteString(strconv.Itoa(t.Weight))
		b.WriteByte('\x00')
		b.WriteString(strconv.FormatBool(t.RequiresProxy))
		b.WriteByte('\x00')
		b.WriteString(t.Category)
		b.WriteByte('\x01')
	}
	return b.String()
}
