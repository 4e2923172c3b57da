package service

import "math"

// Davis resistance per tonne of train: A + B*v + C*v^2 newtons
const (
	davisA = 12.0
	davisB = 0.25
	davisC = 0.02
)

// TrainState is a point-mass stand-in for the consist being hauled
type TrainState struct {
	MassKg    float64 `json:"mass_kg"`
	SpeedMpS  float64 `json:"speed_mps"` // signed, positive is forward
	DistanceM float64 `json:"distance_m"`
}

// ResistanceN is the rolling and air resistance at speed
func (t TrainState) ResistanceN(speedMpS float64) float64 {
	v := math.Abs(speedMpS)
	return t.MassKg / 1000 * (davisA + davisB*v + davisC*v*v)
}

// Advance integrates the tractive force over dt. Resistance only ever
// slows the train toward rest and never reverses it.
func (t *TrainState) Advance(forceN, dt float64) {
	if t.MassKg <= 0 || dt <= 0 {
		return
	}
	v0 := t.SpeedMpS
	v := v0 + forceN/t.MassKg*dt

	drag := t.ResistanceN(v) / t.MassKg * dt
	if math.Abs(v) <= drag {
		v = 0
	} else {
		v -= math.Copysign(drag, v)
	}

	t.SpeedMpS = v
	t.DistanceM += (v0 + v) / 2 * dt
}
