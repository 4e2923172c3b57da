// Package simulate drives a locomotive headlessly with a fixed throttle and
// prints what happened, one row per reporting interval.
package simulate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/wricardo/mcp-training/locosim/loco/gearbox"
	"github.com/wricardo/mcp-training/locosim/loco/locomotive"
	"github.com/wricardo/mcp-training/locosim/loco/service"
	"github.com/wricardo/mcp-training/locosim/loco/traction"
)

// ErrInvalidPlan is returned for plans that cannot be run
var ErrInvalidPlan = errors.New("invalid plan")

// Plan describes one headless run
type Plan struct {
	DurationS    float64
	Dt           float64 // default service.DefaultDt
	Throttle     float64
	Direction    traction.Direction
	ReportEveryS float64 // default 1s
	MassKg       float64 // default from the configuration
}

// Row is the state at the end of one reporting interval
type Row struct {
	TimeS      float64
	RPM        float64
	ForceN     float64
	SpeedMpS   float64
	DistanceM  float64
	Gear       int
	FuelLevelL float64
	Events     []string
}

// Summary is the outcome of a run
type Summary struct {
	Name        string
	Rows        []Row
	DistanceM   float64
	TopSpeedMpS float64
	FuelUsedL   float64
	Stalled     bool
}

func (p *Plan) normalize() error {
	if p.Dt == 0 {
		p.Dt = service.DefaultDt
	}
	if p.ReportEveryS <= 0 {
		p.ReportEveryS = 1
	}
	switch {
	case p.DurationS <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalidPlan)
	case p.Dt < service.MinDt || p.Dt > service.MaxDt:
		return fmt.Errorf("%w: dt must be between %v and %v", ErrInvalidPlan, service.MinDt, service.MaxDt)
	case p.Throttle < 0 || p.Throttle > 1:
		return fmt.Errorf("%w: throttle must be between 0 and 1", ErrInvalidPlan)
	case p.DurationS/p.Dt > 10_000_000:
		return fmt.Errorf("%w: too many ticks", ErrInvalidPlan)
	}
	return nil
}

// Run starts every engine and holds the plan's throttle for its duration.
// Manual and semiautomatic gearboxes are shifted by a simple driver that
// changes up near the top speed of each gear.
func Run(ctx context.Context, loco *locomotive.Locomotive, plan Plan) (*Summary, error) {
	if err := plan.normalize(); err != nil {
		return nil, err
	}

	loco.Initialize()
	if _, err := loco.StartEngine(locomotive.AllEngines); err != nil {
		return nil, err
	}

	train := service.NewTrainState(loco.Config())
	if plan.MassKg > 0 {
		train.MassKg = plan.MassKg
	}

	summary := &Summary{Name: loco.Config().Name}
	startL := loco.Tank().LevelL
	ticks := int(math.Round(plan.DurationS / plan.Dt))
	reportTicks := max(1, int(math.Round(plan.ReportEveryS/plan.Dt)))

	var pending []string
	for tick := 1; tick <= ticks; tick++ {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		drive(loco, plan.Throttle, train.SpeedMpS)
		out, err := loco.Update(locomotive.Inputs{
			Dt:        plan.Dt,
			Throttle:  plan.Throttle,
			Direction: plan.Direction,
			SpeedMpS:  math.Abs(train.SpeedMpS),
		})
		if err != nil {
			return summary, err
		}
		train.Advance(out.ForceN, plan.Dt)
		summary.TopSpeedMpS = max(summary.TopSpeedMpS, math.Abs(train.SpeedMpS))

		for _, e := range out.Events {
			pending = append(pending, string(e.Kind))
			if e.Kind == locomotive.EventFuelExhausted {
				summary.Stalled = true
			}
		}

		if tick%reportTicks == 0 || tick == ticks {
			r := loco.Readout()
			row := Row{
				TimeS:      r.ElapsedS,
				ForceN:     out.ForceN,
				SpeedMpS:   train.SpeedMpS,
				DistanceM:  train.DistanceM,
				Gear:       out.Gear,
				FuelLevelL: out.FuelLevelL,
				Events:     pending,
			}
			for _, e := range r.Engines {
				row.RPM = max(row.RPM, e.RPM)
			}
			summary.Rows = append(summary.Rows, row)
			pending = nil
		}
	}

	summary.DistanceM = train.DistanceM
	summary.FuelUsedL = max(0, startL-loco.Tank().LevelL)
	return summary, nil
}

// drive is the shift policy for gearboxes that need a driver
func drive(loco *locomotive.Locomotive, throttle, speedMpS float64) {
	gb := loco.Gearbox()
	if gb == nil || gb.Mode() == gearbox.Automatic || gb.Shifting() || gb.PendingUp() || gb.PendingDown() {
		return
	}
	gears := gb.Params().Gears
	current := gb.CurrentGear()
	speed := math.Abs(speedMpS)

	switch {
	case current == gearbox.Neutral:
		if throttle > 0 && loco.MainPowerOn() {
			loco.ShiftUp()
		}
	case current < len(gears)-1 && speed > 0.9*gears[current].MaxSpeedMpS:
		loco.ShiftUp()
	case current > 0 && speed < 0.5*gears[current-1].MaxSpeedMpS:
		loco.ShiftDown()
	}
}

// WriteTable prints the rows and a summary line
func WriteTable(w io.Writer, s *Summary) {
	fmt.Fprintf(w, "%s\n\n", s.Name)
	fmt.Fprintln(w, "   t(s)    rpm  force kN    km/h   dist m  gear   fuel L  events")
	for _, r := range s.Rows {
		gear := "N"
		if r.Gear >= 0 {
			gear = strconv.Itoa(r.Gear + 1)
		}
		fmt.Fprintf(w, "%7.1f %6.0f %9.1f %7.1f %8.0f %5s %8.1f  %s\n",
			r.TimeS, r.RPM, r.ForceN/1000, r.SpeedMpS*3.6, r.DistanceM, gear, r.FuelLevelL, strings.Join(r.Events, ","))
	}
	fmt.Fprintf(w, "\nDistance %.0f m, top speed %.1f km/h, fuel used %.1f L", s.DistanceM, s.TopSpeedMpS*3.6, s.FuelUsedL)
	if s.Stalled {
		fmt.Fprint(w, ", stalled: fuel exhausted")
	}
	fmt.Fprintln(w)
}
