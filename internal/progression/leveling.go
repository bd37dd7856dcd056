package progression

import (
	"math"
	"sort"

	"github.com/example/nihongoquest/internal/config"
)

// Curve is the compounding XP curve. Level 1 needs 0 XP, level 2 needs
// BaseXP, and every further level costs Growth times the previous step.
type Curve struct {
	maxLevel int
	// cumulative[n] is the total XP required to reach level n
	cumulative []int
}

// NewCurve precomputes the cumulative requirement of every level
func NewCurve(cfg config.LevelingConfig) *Curve {
	maxLevel := cfg.MaxLevel
	if maxLevel < 1 {
		maxLevel = 1
	}
	cumulative := make([]int, maxLevel+1)
	total := 0.0
	for lv := 2; lv <= maxLevel; lv++ {
		total += cfg.BaseXP * math.Pow(cfg.Growth, float64(lv-2))
		cumulative[lv] = int(math.Ceil(total))
	}
	return &Curve{maxLevel: maxLevel, cumulative: cumulative}
}

// MaxLevel returns the level cap
func (c *Curve) MaxLevel() int {
	return c.maxLevel
}

// XPRequiredForLevel returns the cumulative XP needed to reach level,
// clamped to 1..MaxLevel
func (c *Curve) XPRequiredForLevel(level int) int {
	return c.cumulative[c.clamp(level)]
}

// XPForNextLevel returns the XP step from level to level+1. At the cap it
// reports the last step.
func (c *Curve) XPForNextLevel(level int) int {
	if c.maxLevel == 1 {
		return 0
	}
	level = c.clamp(level)
	if level > c.maxLevel-1 {
		level = c.maxLevel - 1
	}
	return c.cumulative[level+1] - c.cumulative[level]
}

// LevelFromXP returns the highest level whose requirement does not exceed xp
func (c *Curve) LevelFromXP(xp int) int {
	if xp < 0 {
		xp = 0
	}
	// First level index (0-based over levels 1..max) whose successor exceeds xp
	return sort.Search(c.maxLevel, func(i int) bool {
		return i+1 > c.maxLevel-1 || c.cumulative[i+2] > xp
	}) + 1
}

// ProgressInLevel returns XP earned into the current level and the size of
// the current level step
func (c *Curve) ProgressInLevel(xp int) (into, needed int) {
	if xp < 0 {
		xp = 0
	}
	lv := c.LevelFromXP(xp)
	return xp - c.XPRequiredForLevel(lv), c.XPForNextLevel(lv)
}

func (c *Curve) clamp(level int) int {
	if level < 1 {
		return 1
	}
	if level > c.maxLevel {
		return c.maxLevel
	}
	return level
}
