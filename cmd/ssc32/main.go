package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"

	"github.com/gwillem/ssc32/pkg/robot"
)

type Options struct {
	Config  string `short:"c" long:"config" default:"ssc32.json" description:"Connection config file"`
	Port    string `short:"p" long:"port" description:"Serial port (overrides config)"`
	Baud    int    `short:"b" long:"baud" description:"Baud rate (overrides config)"`
	Verbose bool   `short:"v" long:"verbose" description:"Log protocol traffic"`

	Setup   SetupCommand   `command:"setup" description:"Find the board and name its servos"`
	Version VersionCommand `command:"version" description:"Print the firmware version"`
	Done    DoneCommand    `command:"done" description:"Report whether the last move has finished"`
	Move    MoveCommand    `command:"move" description:"Move a servo"`
	Stop    StopCommand    `command:"stop" description:"Stop servos where they are"`
	Query   QueryCommand   `command:"query" description:"Read the pulse width servos are driven with"`
	Output  OutputCommand  `command:"output" description:"Drive channels as digital outputs"`
	Input   InputCommand   `command:"input" description:"Read the A-D inputs"`
	Servos  ServosCommand  `command:"servos" description:"List configured servos"`
	Monitor MonitorCommand `command:"monitor" description:"Chart servo positions live"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

var logger = zerolog.Nop()

func main() {
	parser.LongDescription = "SSC-32 - Lynxmotion serial servo controller CLI"
	parser.CommandHandler = func(cmd flags.Commander, args []string) error {
		logger = newLogger(opts.Verbose)
		return cmd.Execute(args)
	}

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
		Level(level).
		With().Timestamp().
		Logger()
}

// loadConfig reads the connection config and applies command line overrides.
// A missing file is fine as long as --port is given.
func loadConfig() (*robot.Config, error) {
	cfg, err := robot.LoadConfigFrom(opts.Config)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", opts.Config, err)
		}
		cfg = &robot.Config{}
	}
	if opts.Port != "" {
		cfg.Port = opts.Port
	}
	if opts.Baud != 0 {
		cfg.BaudRate = opts.Baud
	}
	return cfg, nil
}

func connect() (*robot.Rig, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.IsConfigured() {
		return nil, fmt.Errorf("no serial port configured. Run 'ssc32 setup' or pass --port")
	}
	return robot.Connect(cfg, logger)
}

// signalContext is canceled on Ctrl-C, so waits can be interrupted.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}
