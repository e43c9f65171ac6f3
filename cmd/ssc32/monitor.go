package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/ssc32/pkg/monitor"
)

type MonitorCommand struct {
	Hz   int `long:"hz" default:"10" description:"Sampling frequency"`
	Args struct {
		Servos []string `positional-arg-name:"servo" description:"Servo names or indexes (default: all named servos)"`
	} `positional-args:"yes"`
}

func (c *MonitorCommand) Execute(args []string) error {
	rig, err := connect()
	if err != nil {
		return err
	}
	defer rig.Close()

	mon, err := monitor.New(rig, monitor.Config{Hz: c.Hz, Servos: c.Args.Servos})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := mon.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("monitor stopped")
		}
	}()

	p := tea.NewProgram(newMonitorModel(mon), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run monitor: %w", err)
	}
	return nil
}

const (
	logLines       = 3
	chartMinWidth  = 40
	chartMinHeight = 8
)

var seriesColors = []string{"196", "208", "226", "46", "51", "201", "33", "255"}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	frameStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func seriesStyle(i int) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(seriesColors[i%len(seriesColors)]))
}

type monitorModel struct {
	mon     *monitor.Monitor
	labels  []string
	chart   *streamlinechart.Model
	width   int
	height  int
	state   monitor.State
	plotted map[string]float64
	logs    []string
	stopped bool
}

type stateMsg monitor.State
type logMsg string

// listen waits for whichever the monitor publishes next: a sample or a log line.
func listen(mon *monitor.Monitor) tea.Cmd {
	return func() tea.Msg {
		select {
		case s := <-mon.States():
			return stateMsg(s)
		case line := <-mon.Logs():
			return logMsg(line)
		}
	}
}

func newMonitorModel(mon *monitor.Monitor) monitorModel {
	labels := mon.Labels()
	chart := streamlinechart.New(80, 20, streamlinechart.WithYRange(-100, 100))
	for i, label := range labels {
		chart.SetDataSetStyles(label, runes.ThinLineStyle, seriesStyle(i))
	}
	return monitorModel{mon: mon, labels: labels, chart: &chart}
}

func (m monitorModel) Init() tea.Cmd {
	return listen(m.mon)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.chart.Resize(m.chartDims())

	case tea.KeyMsg:
		if s := msg.String(); s == "q" || s == "ctrl+c" {
			m.stopped = true
			return m, tea.Quit
		}

	case stateMsg:
		m.state = monitor.State(msg)
		if m.state.Error == nil && m.moved() {
			for _, label := range m.labels {
				if pos, ok := m.state.Positions[label]; ok {
					m.chart.PushDataSet(label, pos)
				}
			}
			m.chart.DrawAll()
			m.plotted = m.state.Positions
		}
		return m, listen(m.mon)

	case logMsg:
		m.logs = append(m.logs, string(msg))
		if n := len(m.logs); n > logLines {
			m.logs = m.logs[n-logLines:]
		}
		return m, listen(m.mon)
	}

	return m, nil
}

// moved reports whether the sample differs from the last plotted one. The
// chart stands still while nothing moves.
func (m monitorModel) moved() bool {
	if m.plotted == nil {
		return true
	}
	for label, pos := range m.state.Positions {
		if prev, ok := m.plotted[label]; !ok || prev != pos {
			return true
		}
	}
	return false
}

// chartDims fits the chart between the title, the readout table and the log lines.
func (m monitorModel) chartDims() (int, int) {
	if m.width == 0 {
		return 80, 20
	}
	// title, chart frame, readout table (header, separator, borders), logs
	reserved := 1 + 2 + len(m.labels) + 4 + logLines
	return max(m.width-2, chartMinWidth), max(m.height-reserved, chartMinHeight)
}

func (m monitorModel) View() string {
	if m.stopped {
		return "Monitor stopped.\n"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.titleBar(),
		frameStyle.Render(m.chart.View()),
		m.readout().Render(),
		m.logView(),
	)
}

func (m monitorModel) titleBar() string {
	status := warnStyle.Render("moving")
	switch {
	case m.state.Error != nil:
		status = errorStyle.Render("error")
	case m.state.Done:
		status = successStyle.Render("idle")
	}
	return fmt.Sprintf("%s %s  %s",
		titleStyle.Render("SSC-32 Monitor"), dimStyle.Render(fmt.Sprintf("%d Hz", m.mon.Hz())), status)
}

// readout lists the latest output and target of every servo, colored like its series.
func (m monitorModel) readout() *table.Table {
	rows := make([][]string, len(m.labels))
	for i, label := range m.labels {
		rows[i] = []string{label, normalized(m.state.Positions, label), normalized(m.state.Targets, label)}
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Servo", "Output", "Target").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return dimStyle.Padding(0, 1)
			case col == 0:
				return seriesStyle(row).Bold(true).Padding(0, 1)
			default:
				return lipgloss.NewStyle().Padding(0, 1)
			}
		})
}

func normalized(values map[string]float64, label string) string {
	v, ok := values[label]
	if !ok {
		return "-"
	}
	return fmt.Sprintf("%+6.1f", v)
}

func (m monitorModel) logView() string {
	if len(m.logs) == 0 {
		return dimStyle.Render("q to quit")
	}
	return errorStyle.Render(strings.Join(m.logs, "\n"))
}
