package ssc32

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const (
	descriptionPrefix = "#~ "
	configHeader      = "# name\t#\tmin\tmax\tmin°\tmax°"
)

// ServoConfig is one row of a servo config file.
type ServoConfig struct {
	Name   string
	Index  int
	Min    int
	Max    int
	DegMin float64
	DegMax float64
}

// ConfigFile is the content of a servo config file: a free-text description
// and the named channels.
//
// The format is line oriented. Lines starting with "#~ " hold the description,
// other lines starting with "#" are comments, and every other non-blank line
// is "name index min max deg_min deg_max" separated by whitespace.
type ConfigFile struct {
	Description string
	Servos      []ServoConfig
}

// ParseConfig reads a servo config file. Description lines are stripped of
// surrounding whitespace.
func ParseConfig(r io.Reader) (*ConfigFile, error) {
	cfg := &ConfigFile{}
	var description []string
	seen := make(map[string]int)
	indexes := make(map[int]int)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.HasPrefix(line, descriptionPrefix) {
			description = append(description, strings.TrimSpace(line[len(descriptionPrefix):]))
			continue
		}
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		servo, err := parseServoLine(trimmed)
		if err != nil {
			return nil, &ConfigError{Line: lineNo, Err: err}
		}
		if prev, ok := seen[servo.Name]; ok {
			return nil, &ConfigError{Line: lineNo, Err: fmt.Errorf("%w: %w: %q already defined on line %d",
				ErrMalformedConfig, ErrDuplicateName, servo.Name, prev)}
		}
		if prev, ok := indexes[servo.Index]; ok {
			return nil, &ConfigError{Line: lineNo, Err: fmt.Errorf("%w: channel %d already defined on line %d",
				ErrMalformedConfig, servo.Index, prev)}
		}
		seen[servo.Name] = lineNo
		indexes[servo.Index] = lineNo
		cfg.Servos = append(cfg.Servos, servo)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read servo config: %w", err)
	}

	cfg.Description = strings.Join(description, "\n")
	return cfg, nil
}

func parseServoLine(line string) (ServoConfig, error) {
	fields := strings.Fields(line)
	if len(fields) != 6 {
		return ServoConfig{}, fmt.Errorf("%w: want 6 fields (name index min max deg_min deg_max), got %d",
			ErrMalformedConfig, len(fields))
	}

	var s ServoConfig
	s.Name = strings.ToUpper(fields[0])

	ints := []struct {
		name string
		dst  *int
		src  string
	}{
		{"index", &s.Index, fields[1]},
		{"min", &s.Min, fields[2]},
		{"max", &s.Max, fields[3]},
	}
	for _, f := range ints {
		v, err := strconv.Atoi(f.src)
		if err != nil {
			return ServoConfig{}, fmt.Errorf("%w: %s %q is not an integer", ErrMalformedConfig, f.name, f.src)
		}
		*f.dst = v
	}

	floats := []struct {
		name string
		dst  *float64
		src  string
	}{
		{"deg_min", &s.DegMin, fields[4]},
		{"deg_max", &s.DegMax, fields[5]},
	}
	for _, f := range floats {
		v, err := strconv.ParseFloat(f.src, 64)
		if err != nil {
			return ServoConfig{}, fmt.Errorf("%w: %s %q is not a number", ErrMalformedConfig, f.name, f.src)
		}
		*f.dst = v
	}

	if s.Index < MinChannel || s.Index > MaxChannel {
		return ServoConfig{}, fmt.Errorf("%w: channel %d not in [%d, %d]", ErrMalformedConfig, s.Index, MinChannel, MaxChannel)
	}
	if s.Min >= s.Max {
		return ServoConfig{}, fmt.Errorf("%w: pulse limits %d..%d", ErrMalformedConfig, s.Min, s.Max)
	}
	return s, nil
}

// WriteTo writes the config file format.
func (f *ConfigFile) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	if f.Description != "" {
		for _, line := range strings.Split(f.Description, "\n") {
			buf.WriteString(descriptionPrefix + line + "\n")
		}
	}
	buf.WriteString(configHeader + "\n")
	for _, s := range f.Servos {
		buf.WriteString(strings.Join([]string{
			strings.ToUpper(s.Name),
			strconv.Itoa(s.Index),
			strconv.Itoa(s.Min),
			strconv.Itoa(s.Max),
			formatDegrees(s.DegMin),
			formatDegrees(s.DegMax),
		}, "\t") + "\n")
	}
	return buf.WriteTo(w)
}

// formatDegrees always keeps a decimal point, so "90" is written as "90.0".
func formatDegrees(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// LoadConfig applies a servo config file: names, pulse limits and angular
// ranges of the listed channels. Nothing is applied if any line is invalid.
func (c *Controller) LoadConfig(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open servo config: %w", err)
	}
	defer f.Close()

	cfg, err := ParseConfig(f)
	if err != nil {
		var ce *ConfigError
		if errors.As(err, &ce) {
			ce.Path = path
		}
		return err
	}
	if err := c.ApplyConfig(cfg); err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	c.configPath = path
	c.log.Debug().Str("path", path).Int("servos", len(cfg.Servos)).Msg("servo config loaded")
	return nil
}

// ApplyConfig applies parsed servo settings and the description.
func (c *Controller) ApplyConfig(cfg *ConfigFile) error {
	names := make([]string, len(c.channels))
	for i, ch := range c.channels {
		names[i] = ch.name
	}
	for _, s := range cfg.Servos {
		if s.Index < 0 || s.Index >= len(c.channels) {
			return fmt.Errorf("%w: channel %d not in [0, %d]", ErrMalformedConfig, s.Index, len(c.channels)-1)
		}
		if s.Min >= s.Max {
			return fmt.Errorf("%w: channel %d pulse limits %d..%d", ErrMalformedConfig, s.Index, s.Min, s.Max)
		}
		if err := validName(strings.ToUpper(s.Name)); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedConfig, err)
		}
		names[s.Index] = strings.ToUpper(s.Name)
	}
	owner := make(map[string]int)
	for i, name := range names {
		if name == "" {
			continue
		}
		if j, ok := owner[name]; ok {
			return fmt.Errorf("%w: %w: %q on channels %d and %d", ErrMalformedConfig, ErrDuplicateName, name, j, i)
		}
		owner[name] = i
	}

	for _, s := range cfg.Servos {
		ch := c.channels[s.Index]
		if err := ch.SetLimits(s.Min, s.Max); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedConfig, err)
		}
		ch.name = strings.ToUpper(s.Name)
		ch.SetAngularRange(s.DegMin, s.DegMax)
	}
	c.description = cfg.Description
	return nil
}

// Config returns the description and the settings of every named channel.
func (c *Controller) Config() *ConfigFile {
	cfg := &ConfigFile{Description: c.description}
	for _, ch := range c.channels {
		if ch.name == "" {
			continue
		}
		cfg.Servos = append(cfg.Servos, ServoConfig{
			Name:   ch.name,
			Index:  ch.index,
			Min:    ch.min,
			Max:    ch.max,
			DegMin: ch.degMin,
			DegMax: ch.degMax,
		})
	}
	return cfg
}

// SaveConfig writes the named channels to path. An empty path reuses the file
// last loaded or saved.
func (c *Controller) SaveConfig(path string) error {
	if path == "" {
		path = c.configPath
	}
	if path == "" {
		return fmt.Errorf("%w: no servo config path given or previously loaded", ErrInvalidArgument)
	}

	var buf bytes.Buffer
	if _, err := c.Config().WriteTo(&buf); err != nil {
		return fmt.Errorf("render servo config: %w", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("write servo config: %w", err)
	}
	c.configPath = path
	return nil
}

// ConfigPath returns the servo config file last loaded or saved.
func (c *Controller) ConfigPath() string { return c.configPath }

// Description returns the free-text description of the servo config.
func (c *Controller) Description() string { return c.description }

// SetDescription replaces the free-text description. Leading and trailing
// whitespace is stripped from every line, as the config file format does not
// keep it.
func (c *Controller) SetDescription(d string) {
	lines := strings.Split(d, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	c.description = strings.Join(lines, "\n")
}
