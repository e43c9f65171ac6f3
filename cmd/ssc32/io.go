package main

import (
	"fmt"

	"github.com/gwillem/ssc32/pkg/ssc32"
)

type OutputCommand struct {
	Bit  OutputBitCommand  `command:"bit" description:"Drive one channel low (0) or high (1)"`
	Byte OutputByteCommand `command:"byte" description:"Set the eight channels of a bank at once"`
}

type OutputBitCommand struct {
	Args struct {
		Servo string `positional-arg-name:"servo"`
		Level int    `positional-arg-name:"level"`
	} `positional-args:"yes" required:"yes"`
}

func (c *OutputBitCommand) Execute(args []string) error {
	rig, err := connect()
	if err != nil {
		return err
	}
	defer rig.Close()

	ctx, cancel := signalContext()
	defer cancel()

	return rig.Do(func(ctrl *ssc32.Controller) error {
		return ctrl.SetBinaryOutput(ctx, ssc32.ParseRef(c.Args.Servo), c.Args.Level)
	})
}

type OutputByteCommand struct {
	Args struct {
		Bank  int `positional-arg-name:"bank" description:"0 is channels 0-7, 1 is 8-15, ..."`
		Value int `positional-arg-name:"value" description:"0-255, bit 0 is the lowest channel"`
	} `positional-args:"yes" required:"yes"`
}

func (c *OutputByteCommand) Execute(args []string) error {
	rig, err := connect()
	if err != nil {
		return err
	}
	defer rig.Close()

	ctx, cancel := signalContext()
	defer cancel()

	return rig.Do(func(ctrl *ssc32.Controller) error {
		return ctrl.SetByteOutput(ctx, c.Args.Bank, c.Args.Value)
	})
}

type InputCommand struct {
	Analog  InputAnalogCommand  `command:"analog" description:"Read analog inputs (0-255)"`
	Digital InputDigitalCommand `command:"digital" description:"Read digital inputs"`
}

type inputArgs struct {
	Inputs string `positional-arg-name:"inputs" description:"Input letters, e.g. ABD"`
}

type InputAnalogCommand struct {
	Args inputArgs `positional-args:"yes" required:"yes"`
}

func (c *InputAnalogCommand) Execute(args []string) error {
	rig, err := connect()
	if err != nil {
		return err
	}
	defer rig.Close()

	ctx, cancel := signalContext()
	defer cancel()

	return rig.Do(func(ctrl *ssc32.Controller) error {
		values, ok, err := ctrl.ReadAnalogInputs(ctx, c.Args.Inputs)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no valid inputs in %q, use letters A-D", c.Args.Inputs)
		}
		for i, in := range ssc32.ValidInputs(c.Args.Inputs) {
			fmt.Printf("%c %3d  %.2fV\n", in, values[i], float64(values[i])*5/256)
		}
		return nil
	})
}

type InputDigitalCommand struct {
	Latched bool      `short:"l" long:"latched" description:"Report whether the input went low since the last read"`
	Args    inputArgs `positional-args:"yes" required:"yes"`
}

func (c *InputDigitalCommand) Execute(args []string) error {
	rig, err := connect()
	if err != nil {
		return err
	}
	defer rig.Close()

	ctx, cancel := signalContext()
	defer cancel()

	return rig.Do(func(ctrl *ssc32.Controller) error {
		values, ok, err := ctrl.ReadDigitalInputs(ctx, c.Args.Inputs, c.Latched)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no valid inputs in %q, use letters A-D", c.Args.Inputs)
		}
		for i, in := range ssc32.ValidInputs(c.Args.Inputs) {
			state := "low"
			if values[i] {
				state = "high"
			}
			fmt.Printf("%c %s\n", in, state)
		}
		return nil
	})
}
