package traction

import "math"

// FuelCommitThresholdL is the batch size in which consumption leaves the tank
const FuelCommitThresholdL = 0.1

const commitEpsilon = 1e-9

// FuelTank holds the diesel supply of one locomotive. Consumption is
// accumulated and subtracted from the level in batches.
type FuelTank struct {
	CapacityL float64
	LevelL    float64
	pendingL  float64
}

// NewFuelTank returns a tank filled to level, clamped to capacity
func NewFuelTank(capacityL, levelL float64) *FuelTank {
	t := &FuelTank{CapacityL: math.Max(capacityL, 0)}
	t.LevelL = clamp(levelL, 0, t.CapacityL)
	return t
}

// PendingL is consumption not yet subtracted from the level
func (t *FuelTank) PendingL() float64 { return t.pendingL }

// Empty reports a tank with no fuel left
func (t *FuelTank) Empty() bool { return t.LevelL <= 0 }

// Draw accumulates liters and commits the batch once it reaches the
// threshold. It reports whether the level changed.
func (t *FuelTank) Draw(liters float64) bool {
	if liters <= 0 {
		return false
	}
	t.pendingL += liters
	if t.pendingL < FuelCommitThresholdL-commitEpsilon {
		return false
	}
	t.LevelL = math.Max(0, t.LevelL-t.pendingL)
	t.pendingL = 0
	return true
}

// Refuel adds liters up to capacity and returns the amount taken
func (t *FuelTank) Refuel(liters float64) float64 {
	if liters <= 0 {
		return 0
	}
	before := t.LevelL
	t.LevelL = math.Min(t.CapacityL, t.LevelL+liters)
	return t.LevelL - before
}

// Restore sets a persisted level and clears pending consumption
func (t *FuelTank) Restore(levelL float64) {
	t.LevelL = clamp(levelL, 0, t.CapacityL)
	t.pendingL = 0
}
