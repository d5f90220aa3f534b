// Package combine folds the placed probe instances into one ablation zone
// solid.
package combine

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/chazu/ablation/pkg/probe"
	"github.com/chazu/ablation/pkg/store"
)

// Result labels.
const (
	CombinedName = "combined ablation zone"
	SingleName   = "ablation zone"
)

// EmptyInstanceSetError is returned when there is nothing to combine.
type EmptyInstanceSetError struct{}

func (e *EmptyInstanceSetError) Error() string {
	return "combine: no probe instances to combine"
}

// CombinedSolid is the union of the probe instances at the moment of
// combination. It is an independent store entry: moving or removing the
// instances afterwards does not change it.
type CombinedSolid struct {
	Handle store.Handle `json:"handle"`
	Name   string       `json:"name"`
	// Regions names the sub-regions left after folding. A completed
	// combination always has exactly one.
	Regions     []string `json:"regions"`
	SourceCount int      `json:"sourceCount"`
	// Generation increments with every successful Combine on the same
	// Combiner.
	Generation int `json:"generation"`
}

// Combiner runs the union fold against a store.
type Combiner struct {
	store      store.Store
	booleans   store.BooleanCombiner
	logger     *log.Logger
	generation int
}

// NewCombiner returns a combiner. The store and the Boolean combiner are
// usually the same *store.Memory.
func NewCombiner(st store.Store, b store.BooleanCombiner, logger *log.Logger) *Combiner {
	if logger == nil {
		logger = log.Default()
	}
	return &Combiner{store: st, booleans: b, logger: logger}
}

// region is one imported instance inside the combination.
type region struct {
	handle store.Handle
	name   string
}

// Combine imports every instance's current solid as a named sub-region,
// unions regions 1..n-1 into region 0 in input order, removes the folded
// regions and labels the survivor. Source instances are hidden once the
// result exists.
//
// On failure every region created so far is removed and the sources are
// left as they were.
func (c *Combiner) Combine(instances []probe.Instance) (*CombinedSolid, error) {
	if len(instances) == 0 {
		return nil, &EmptyInstanceSetError{}
	}

	regions := make([]region, 0, len(instances))
	cleanup := func() {
		for _, r := range regions {
			_ = c.store.Remove(r.handle)
		}
	}

	for i, inst := range instances {
		h, err := c.store.CreateFromTemplate(inst.Handle)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("combine: import %s: %w", inst.Name, err)
		}
		regions = append(regions, region{handle: h, name: inst.Name})
		if err := c.store.Rename(h, fmt.Sprintf("region %d (%s)", i+1, inst.Name)); err != nil {
			cleanup()
			return nil, fmt.Errorf("combine: name region %d: %w", i+1, err)
		}
	}

	target := regions[0]
	for i := 1; i < len(regions); i++ {
		if err := c.booleans.Union(target.handle, regions[i].handle); err != nil {
			cleanup()
			return nil, fmt.Errorf("combine: union region %d into region 1: %w", i+1, err)
		}
		c.logger.Debug("unioned region", "region", i+1, "source", regions[i].name)
	}

	imported := append([]region(nil), regions...)
	for _, r := range regions[1:] {
		if err := c.store.Remove(r.handle); err != nil {
			cleanup()
			return nil, fmt.Errorf("combine: remove folded region %s: %w", r.name, err)
		}
	}
	regions = regions[:1]

	name := SingleName
	if len(instances) > 1 {
		name = CombinedName
	}
	if err := c.store.Rename(target.handle, name); err != nil {
		cleanup()
		return nil, fmt.Errorf("combine: label result: %w", err)
	}

	for _, inst := range instances {
		if err := c.store.SetVisible(inst.Handle, false); err != nil {
			c.logger.Warn("could not hide consumed instance", "name", inst.Name, "err", err)
		}
	}

	survivors, err := c.liveRegions(imported)
	if err != nil {
		cleanup()
		return nil, err
	}

	c.generation++
	c.logger.Info("combined probe instances", "name", name, "sources", len(instances), "generation", c.generation)
	return &CombinedSolid{
		Handle:      target.handle,
		Name:        name,
		Regions:     survivors,
		SourceCount: len(instances),
		Generation:  c.generation,
	}, nil
}

// liveRegions returns the store names of the imported regions that are
// still present.
func (c *Combiner) liveRegions(imported []region) ([]string, error) {
	var names []string
	for _, r := range imported {
		n, err := c.store.Name(r.handle)
		if err != nil {
			var nf *store.NotFoundError
			if errors.As(err, &nf) {
				continue
			}
			return nil, fmt.Errorf("combine: read region %s: %w", r.name, err)
		}
		names = append(names, n)
	}
	return names, nil
}

// Generation returns the number of successful combinations so far.
func (c *Combiner) Generation() int {
	return c.generation
}
