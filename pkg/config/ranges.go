package config

import (
	"strconv"
	"strings"

	"golang.org/x/exp/rand"

	"neuroglitch/internal/models"
	nerrors "neuroglitch/pkg/errors"
	"neuroglitch/pkg/simulation"
)

// Bounds is an inclusive interval a parameter is drawn from. Drawn values
// up to 1 are used as fractions, larger ones are truncated to counts.
type Bounds struct {
	Lower float64 `yaml:"lower" toml:"lower"`
	Upper float64 `yaml:"upper" toml:"upper"`
}

// Ranges configures the randomized parameter policy.
type Ranges struct {
	// Axes lists the candidate main axes
	Axes []int `yaml:"axes" toml:"axes"`

	Remove  Bounds `yaml:"remove" toml:"remove"`
	Shuffle Bounds `yaml:"shuffle" toml:"shuffle"`
	Weight  Bounds `yaml:"weight" toml:"weight"`

	// MixedAxisLists holds candidate axis lists such as "0,1" or "2,1,0";
	// only those starting with the drawn main axis are eligible
	MixedAxisLists []string `yaml:"mixedAxisLists" toml:"mixedAxisLists"`
}

// DefaultRanges returns the stock bounds.
func DefaultRanges() Ranges {
	return Ranges{
		Axes:    []int{0, 1, 2},
		Remove:  Bounds{Lower: 1, Upper: 15},
		Shuffle: Bounds{Lower: 0.01, Upper: 0.5},
		Weight:  Bounds{Lower: 0.01, Upper: 0.3},
		MixedAxisLists: []string{
			"0,1", "0,2", "1,0", "2,0", "1,2", "2,1",
			"0,1,2", "0,2,1", "1,0,2", "1,2,0", "2,0,1", "2,1,0",
		},
	}
}

// Validate checks every bound and axis list.
func (r Ranges) Validate() error {
	if len(r.Axes) == 0 {
		return nerrors.New(nerrors.ErrCodeInvalidParameter, "ranges: no candidate axes")
	}
	for _, a := range r.Axes {
		if !models.Axis(a).Valid() {
			return nerrors.New(nerrors.ErrCodeInvalidParameter, "ranges: axis must be 0, 1, or 2, got %d", a)
		}
	}
	for name, b := range map[string]Bounds{"remove": r.Remove, "shuffle": r.Shuffle, "weight": r.Weight} {
		if b.Lower < 0 || b.Upper < b.Lower {
			return nerrors.New(nerrors.ErrCodeInvalidParameter,
				"ranges: %s bounds [%v, %v] are invalid", name, b.Lower, b.Upper)
		}
	}
	for _, s := range r.MixedAxisLists {
		if _, err := ParseAxisList(s); err != nil {
			return err
		}
	}
	return nil
}

// Sample draws one set of parameters: a main axis, a value for each
// parameter and a mixed axis list starting with the drawn axis.
func (r Ranges) Sample(rng *rand.Rand) (simulation.SpecOptions, error) {
	if err := r.Validate(); err != nil {
		return simulation.SpecOptions{}, err
	}

	axis := models.Axis(r.Axes[rng.Intn(len(r.Axes))])
	shuffle := r.Shuffle.draw(rng)
	opts := simulation.SpecOptions{
		Axis:         axis,
		RemoveParam:  r.Remove.draw(rng),
		ShuffleParam: &shuffle,
		WeightParam:  r.Weight.draw(rng),
	}

	prefix := strconv.Itoa(int(axis))
	var matching []string
	for _, s := range r.MixedAxisLists {
		if strings.HasPrefix(strings.TrimSpace(s), prefix) {
			matching = append(matching, s)
		}
	}
	if len(matching) == 0 {
		return simulation.SpecOptions{}, nerrors.New(nerrors.ErrCodeInvalidAxisList,
			"ranges: no mixed axis list starts with axis %d", axis)
	}

	axes, err := ParseAxisList(matching[rng.Intn(len(matching))])
	if err != nil {
		return simulation.SpecOptions{}, err
	}
	opts.MixedAxes = axes

	return opts, nil
}

func (b Bounds) draw(rng *rand.Rand) simulation.Param {
	v := b.Lower + rng.Float64()*(b.Upper-b.Lower)
	if v <= 1 {
		return simulation.Fraction(v)
	}
	return simulation.Count(uint64(v))
}

// ParseAxisList parses "0,1,2" or "012" into axes.
func ParseAxisList(s string) ([]models.Axis, error) {
	s = strings.TrimSpace(s)

	var parts []string
	if strings.Contains(s, ",") {
		parts = strings.Split(s, ",")
	} else {
		parts = strings.Split(s, "")
	}

	axes := make([]models.Axis, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || !models.Axis(n).Valid() {
			return nil, nerrors.New(nerrors.ErrCodeInvalidAxisList, "invalid axis %q in list %q", p, s)
		}
		axes = append(axes, models.Axis(n))
	}
	if len(axes) < 1 || len(axes) > models.NumAxes {
		return nil, nerrors.New(nerrors.ErrCodeInvalidAxisList,
			"axis list %q must contain 1 to 3 axes", s)
	}
	return axes, nil
}
