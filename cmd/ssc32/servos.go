package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gwillem/ssc32/pkg/ssc32"
)

type ServosCommand struct {
	All bool `short:"a" long:"all" description:"Include unnamed channels"`
}

func (c *ServosCommand) Execute(args []string) error {
	rig, err := connect()
	if err != nil {
		return err
	}
	defer rig.Close()

	var description, path string
	var chs []*ssc32.Channel
	err = rig.Do(func(ctrl *ssc32.Controller) error {
		description = ctrl.Description()
		path = ctrl.ConfigPath()
		for _, ch := range ctrl.Channels() {
			if c.All || ch.Name() != "" {
				chs = append(chs, ch)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if path != "" {
		fmt.Println(dimStyle.Render(path))
	}
	if description != "" {
		fmt.Println(description)
	}
	if len(chs) == 0 {
		fmt.Println("No named servos. Run 'ssc32 setup' or pass --all.")
		return nil
	}
	fmt.Println(servoTable(chs).Render())
	return nil
}

func servoTable(chs []*ssc32.Channel) *table.Table {
	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	nameStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	rows := make([][]string, 0, len(chs))
	for _, ch := range chs {
		min, max := ch.Limits()
		degMin, degMax := ch.AngularRange()
		rows = append(rows, []string{
			strconv.Itoa(ch.Index()),
			ch.Name(),
			strconv.Itoa(ch.Position()),
			strconv.Itoa(min),
			strconv.Itoa(max),
			fmt.Sprintf("%.1f°", degMin),
			fmt.Sprintf("%.1f°", degMax),
		})
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("#", "Name", "Pulse", "Min", "Max", "Min°", "Max°").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return tableHeaderStyle
			case col == 1:
				return nameStyle
			default:
				return cellStyle
			}
		})
}
