package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gwillem/ssc32/pkg/robot"
	"github.com/gwillem/ssc32/pkg/ssc32"
)

type VersionCommand struct{}

func (c *VersionCommand) Execute(args []string) error {
	rig, err := connect()
	if err != nil {
		return err
	}
	defer rig.Close()

	ctx, cancel := signalContext()
	defer cancel()

	return rig.Do(func(ctrl *ssc32.Controller) error {
		version, err := ctrl.FirmwareVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Println(version)
		return nil
	})
}

type DoneCommand struct{}

func (c *DoneCommand) Execute(args []string) error {
	rig, err := connect()
	if err != nil {
		return err
	}
	defer rig.Close()

	ctx, cancel := signalContext()
	defer cancel()

	return rig.Do(func(ctrl *ssc32.Controller) error {
		done, err := ctrl.IsDone(ctx)
		if err != nil {
			return err
		}
		if done {
			fmt.Println(successStyle.Render("done"))
		} else {
			fmt.Println(warnStyle.Render("moving"))
		}
		return nil
	})
}

type MoveCommand struct {
	Pulse *int     `long:"pulse" description:"Target pulse width in µs"`
	Deg   *float64 `long:"deg" description:"Target angle in degrees"`
	Rad   *float64 `long:"rad" description:"Target angle in radians"`
	Norm  *float64 `long:"norm" description:"Target position in [-100, 100] of the pulse limits"`
	Speed int      `short:"s" long:"speed" default:"-1" description:"Speed in µs/s (-1 for the board default)"`
	Time  int      `short:"t" long:"time" description:"Move time in ms"`
	Wait  bool     `short:"w" long:"wait" description:"Wait until the move has finished"`

	Args struct {
		Servo string `positional-arg-name:"servo" description:"Servo name or index"`
	} `positional-args:"yes" required:"yes"`
}

// target sets the requested position. With autocommit enabled this already
// sends the move.
func (c *MoveCommand) target(ctx context.Context, ctrl *ssc32.Controller, ch *ssc32.Channel) error {
	set := 0
	for _, given := range []bool{c.Pulse != nil, c.Deg != nil, c.Rad != nil, c.Norm != nil} {
		if given {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("give exactly one of --pulse, --deg, --rad or --norm")
	}

	switch {
	case c.Pulse != nil:
		return ctrl.SetPosition(ctx, ch, *c.Pulse)
	case c.Deg != nil:
		return ctrl.SetDegrees(ctx, ch, *c.Deg)
	case c.Rad != nil:
		return ctrl.SetRadians(ctx, ch, *c.Rad)
	default:
		return ctrl.SetPosition(ctx, ch, robot.RangeOf(ch).Denormalize(*c.Norm))
	}
}

func (c *MoveCommand) Execute(args []string) error {
	rig, err := connect()
	if err != nil {
		return err
	}
	defer rig.Close()

	ctx, cancel := signalContext()
	defer cancel()

	return rig.Do(func(ctrl *ssc32.Controller) error {
		ch, err := ctrl.Channel(ssc32.ParseRef(c.Args.Servo))
		if err != nil {
			return err
		}
		if err := ch.SetSpeed(c.Speed); err != nil {
			return err
		}
		if d, ok := ctrl.Autocommit(); ok && c.Time != 0 {
			logger.Warn().Dur("autocommit", d).Msg("autocommit is enabled, --time is ignored")
		}
		if err := c.target(ctx, ctrl, ch); err != nil {
			return err
		}
		if err := ctrl.MoveSingle(ctx, ch, time.Duration(c.Time)*time.Millisecond); err != nil {
			return err
		}
		fmt.Printf("%s → %dµs (%.1f°)\n", robot.Label(ch), ch.Position(), ch.Degrees())

		if !c.Wait {
			return nil
		}
		start := time.Now()
		if err := ctrl.WaitUntilDone(ctx); err != nil {
			return err
		}
		fmt.Println(dimStyle.Render(fmt.Sprintf("finished after %s", time.Since(start).Round(time.Millisecond))))
		return nil
	})
}

type StopCommand struct {
	Args struct {
		Servos []string `positional-arg-name:"servo" required:"1" description:"Servo names or indexes"`
	} `positional-args:"yes"`
}

func (c *StopCommand) Execute(args []string) error {
	rig, err := connect()
	if err != nil {
		return err
	}
	defer rig.Close()

	ctx, cancel := signalContext()
	defer cancel()

	return rig.Do(func(ctrl *ssc32.Controller) error {
		for _, s := range c.Args.Servos {
			if err := ctrl.Stop(ctx, ssc32.ParseRef(s)); err != nil {
				return err
			}
		}
		return nil
	})
}

type QueryCommand struct {
	Args struct {
		Servos []string `positional-arg-name:"servo" description:"Servo names or indexes (default: all named servos)"`
	} `positional-args:"yes"`
}

func (c *QueryCommand) Execute(args []string) error {
	rig, err := connect()
	if err != nil {
		return err
	}
	defer rig.Close()

	ctx, cancel := signalContext()
	defer cancel()

	refs := make([]any, len(c.Args.Servos))
	for i, s := range c.Args.Servos {
		refs[i] = ssc32.ParseRef(s)
	}
	chs, err := rig.Channels(refs...)
	if err != nil {
		return err
	}
	if len(chs) == 0 {
		return fmt.Errorf("no named servos. Pass servo indexes or run 'ssc32 setup'")
	}

	return rig.Do(func(ctrl *ssc32.Controller) error {
		for _, ch := range chs {
			pw, err := ctrl.QueryPulseWidth(ctx, ch)
			if err != nil {
				return err
			}
			fmt.Printf("%-10s %4dµs %6.1f°\n", robot.Label(ch), pw, ch.DegreesAt(pw))
		}
		return nil
	})
}
