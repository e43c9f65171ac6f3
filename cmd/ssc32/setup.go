package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/ssc32/pkg/robot"
	"github.com/gwillem/ssc32/pkg/ssc32"
	"github.com/gwillem/ssc32/pkg/transport"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// Baud rates the SSC-32 jumpers can select, most common first.
var scanBaudRates = []int{115200, 38400, 9600, 2400}

type SetupCommand struct {
	ServoConfig string `long:"servo-config" description:"Servo config file to write (default: servos.cfg)"`
	NoJog       bool   `long:"no-jog" description:"Only detect the board, skip naming servos"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("SSC-32 Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━"))
	fmt.Println()

	// Step 1: find the board
	b, err := pickBoard()
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Port = b.port
	cfg.BaudRate = b.baud
	switch {
	case c.ServoConfig != "":
		cfg.ServoConfig = c.ServoConfig
	case cfg.ServoConfig == "":
		cfg.ServoConfig = robot.DefaultServoConfigFile
	}
	if err := cfg.SaveTo(opts.Config); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Println(successStyle.Render("Board configured:"), b.port, dimStyle.Render(b.version))

	if c.NoJog {
		return nil
	}

	// Step 2: name and limit servos
	var calibrate bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Name and calibrate servos now?").
				Affirmative("Yes").
				Negative("No").
				Value(&calibrate),
		),
	)
	if err := form.Run(); err != nil || !calibrate {
		return nil
	}

	rig, err := robot.Connect(cfg, logger)
	if err != nil {
		return err
	}
	defer rig.Close()

	err = rig.Do(func(ctrl *ssc32.Controller) error {
		fmt.Println()
		fmt.Println(subHeaderStyle.Render("━━━ Jog servos ━━━"))
		fmt.Println("Move each servo to its extremes and record them with [ and ].")
		fmt.Println()

		touched, err := runJog(ctrl)
		if err != nil {
			return err
		}
		if err := nameServos(ctrl, touched); err != nil {
			return err
		}
		return ctrl.SaveConfig(cfg.ServoConfig)
	})
	if err != nil {
		return err
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s and %s\n", opts.Config, cfg.ServoConfig)
	fmt.Println()
	fmt.Println("List your servos with: " + headerStyle.Render("ssc32 servos"))
	return nil
}

type boardInfo struct {
	port    string
	baud    int
	version string
}

func pickBoard() (boardInfo, error) {
	fmt.Println("Scanning for SSC-32 boards...")
	fmt.Println()

	boards := findBoards()
	switch len(boards) {
	case 0:
		return boardInfo{}, fmt.Errorf("no SSC-32 found. Make sure the board is connected and powered on")
	case 1:
		return boards[0], nil
	}

	options := make([]huh.Option[int], len(boards))
	for i, b := range boards {
		options[i] = huh.NewOption(fmt.Sprintf("%s (%s, %d baud)", b.port, b.version, b.baud), i)
	}
	var choice int
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Which board should be used?").
				Options(options...).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		return boardInfo{}, err
	}
	return boards[choice], nil
}

func findBoards() []boardInfo {
	ports, err := transport.Ports()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	rates := scanBaudRates
	if opts.Baud != 0 {
		rates = []int{opts.Baud}
	}

	var boards []boardInfo
	for _, port := range ports {
		for _, baud := range rates {
			ctrl, err := ssc32.Open(transport.SerialConfig{
				Port:     port,
				BaudRate: baud,
				Timeout:  200 * time.Millisecond,
			}, ssc32.WithLogger(logger))
			if err != nil {
				logger.Debug().Err(err).Str("port", port).Int("baud", baud).Msg("no board on port")
				continue
			}
			version := ctrl.Version()
			ctrl.Close()

			fmt.Printf("  Found %s on %s at %d baud\n", version, port, baud)
			boards = append(boards, boardInfo{port: port, baud: baud, version: version})
			break
		}
	}
	return boards
}

// nameServos asks for a name for every touched or already named channel.
func nameServos(ctrl *ssc32.Controller, touched map[int]bool) error {
	var chs []*ssc32.Channel
	for _, ch := range ctrl.Channels() {
		if touched[ch.Index()] || ch.Name() != "" {
			chs = append(chs, ch)
		}
	}

	names := make([]string, len(chs))
	fields := make([]huh.Field, 0, len(chs)+1)
	for i, ch := range chs {
		names[i] = ch.Name()
		min, max := ch.Limits()
		fields = append(fields, huh.NewInput().
			Title(fmt.Sprintf("Name for channel %d", ch.Index())).
			Description(fmt.Sprintf("%d-%dµs, leave empty to skip", min, max)).
			Value(&names[i]).
			Validate(func(s string) error {
				if strings.ContainsAny(strings.TrimSpace(s), " \t") || strings.HasPrefix(s, "#") {
					return fmt.Errorf("names cannot contain spaces or start with #")
				}
				return nil
			}))
	}
	description := ctrl.Description()
	fields = append(fields, huh.NewText().
		Title("Description").
		Description("Stored at the top of the servo config").
		Value(&description))

	if err := huh.NewForm(huh.NewGroup(fields...)).Run(); err != nil {
		return err
	}

	// clear first so names can move between channels
	for _, ch := range chs {
		if err := ctrl.SetName(ch, ""); err != nil {
			return err
		}
	}
	for i, ch := range chs {
		if err := ctrl.SetName(ch, names[i]); err != nil {
			return err
		}
	}
	ctrl.SetDescription(strings.TrimSpace(description))
	return nil
}

// runJog runs the jog TUI and applies recorded limits. It returns the
// channels that were moved or got limits.
func runJog(ctrl *ssc32.Controller) (map[int]bool, error) {
	model, err := newJogModel(ctrl)
	if err != nil {
		return nil, err
	}
	p := tea.NewProgram(model)
	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("run jog: %w", err)
	}

	jm := finalModel.(jogModel)
	if jm.aborted {
		return nil, fmt.Errorf("setup aborted")
	}
	for idx, min := range jm.minPos {
		max, ok := jm.maxPos[idx]
		if !ok || min >= max {
			continue
		}
		ch, _ := ctrl.Channel(idx)
		if err := ch.SetLimits(min, max); err != nil {
			return nil, err
		}
	}
	return jm.touched, nil
}

// Jog TUI model
type jogModel struct {
	ctrl    *ssc32.Controller
	chs     []*ssc32.Channel
	cursor  int
	touched map[int]bool
	minPos  map[int]int
	maxPos  map[int]int
	output  int // pulse width of the selected channel as reported by the board
	err     error
	aborted bool
	done    bool
}

type tickMsg time.Time

func jogTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func newJogModel(ctrl *ssc32.Controller) (jogModel, error) {
	m := jogModel{
		ctrl:    ctrl,
		chs:     ctrl.Channels(),
		touched: make(map[int]bool),
		minPos:  make(map[int]int),
		maxPos:  make(map[int]int),
	}
	for _, ch := range m.chs {
		if ch.Name() != "" {
			m.minPos[ch.Index()], m.maxPos[ch.Index()] = ch.Limits()
		}
		// jog over the full range, recorded limits are applied afterwards
		if err := ch.SetLimits(ssc32.DefaultMinPulse, ssc32.DefaultMaxPulse); err != nil {
			return jogModel{}, err
		}
	}
	return m, nil
}

func (m jogModel) Init() tea.Cmd {
	return jogTick()
}

func (m jogModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		ch := m.chs[m.cursor]
		switch msg.String() {
		case "ctrl+c":
			m.aborted = true
			return m, tea.Quit
		case "enter", "q":
			m.done = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.chs)-1 {
				m.cursor++
			}
		case "left", "h":
			m.jog(ch, ch.Position()-10)
		case "right", "l":
			m.jog(ch, ch.Position()+10)
		case "shift+left", "H":
			m.jog(ch, ch.Position()-100)
		case "shift+right", "L":
			m.jog(ch, ch.Position()+100)
		case "c":
			m.jog(ch, ssc32.DefaultPosition)
		case "[":
			m.minPos[ch.Index()] = ch.Position()
			m.touched[ch.Index()] = true
		case "]":
			m.maxPos[ch.Index()] = ch.Position()
			m.touched[ch.Index()] = true
		case "x":
			delete(m.minPos, ch.Index())
			delete(m.maxPos, ch.Index())
		}
		return m, nil

	case tickMsg:
		pw, err := m.ctrl.QueryPulseWidth(context.Background(), m.chs[m.cursor])
		if err != nil {
			m.err = err
		} else {
			m.output = pw
		}
		return m, jogTick()
	}

	return m, nil
}

func (m *jogModel) jog(ch *ssc32.Channel, pw int) {
	ctx := context.Background()
	m.touched[ch.Index()] = true
	if m.err = m.ctrl.SetPosition(ctx, ch, pw); m.err != nil {
		return
	}
	m.err = m.ctrl.MoveSingle(ctx, ch, 0)
}

func (m jogModel) View() string {
	if m.done || m.aborted {
		return ""
	}

	var sb strings.Builder

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableSelectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true).Padding(0, 1)
	tableRangeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)

	rows := make([][]string, 0, len(m.chs))
	for i, ch := range m.chs {
		output := ""
		if i == m.cursor && m.output > 0 {
			output = strconv.Itoa(m.output)
		}
		rows = append(rows, []string{
			strconv.Itoa(ch.Index()),
			ch.Name(),
			strconv.Itoa(ch.Position()),
			output,
			recorded(m.minPos, ch.Index()),
			recorded(m.maxPos, ch.Index()),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("#", "Name", "Pulse", "Output", "Min", "Max").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeaderStyle
			case row == m.cursor:
				return tableSelectedStyle
			case col >= 4:
				return tableRangeStyle
			default:
				return tableCellStyle
			}
		})

	sb.WriteString(t.Render())
	sb.WriteString("\n")
	if m.err != nil {
		sb.WriteString(warnStyle.Render(m.err.Error()))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("↑/↓ select  ←/→ ±10µs  shift ±100µs  c center  [ ] record min/max  x clear  Enter done"))

	return sb.String()
}

func recorded(positions map[int]int, idx int) string {
	if pw, ok := positions[idx]; ok {
		return strconv.Itoa(pw)
	}
	return ""
}
