package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Styling
var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	expiredStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#ff453a")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff453a"))
)

// prompt identifies which duration question the input field is asking
type prompt int

const (
	promptNone prompt = iota
	promptStartMinutes
	promptExtendSeconds
)

// Model defines the application state
type Model struct {
	orderTable   table.Model
	orders       []Order
	input        textinput.Model
	activePrompt prompt
	spinner      spinner.Model
	client       *ApiClient
	restaurantID uint
	loading      bool
	error        string
}

type ordersMsg []Order
type errMsg struct{ err error }
type tickMsg time.Time
type actionDoneMsg struct{}

func newModel(client *ApiClient, restaurantID uint) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	input := textinput.New()
	input.CharLimit = 5
	input.Width = 8

	columns := []table.Column{
		{Title: "ID", Width: 6},
		{Title: "Table", Width: 10},
		{Title: "Status", Width: 14},
		{Title: "Remaining", Width: 10},
	}
	tbl := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	return Model{
		orderTable:   tbl,
		input:        input,
		spinner:      sp,
		client:       client,
		restaurantID: restaurantID,
		loading:      true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchOrders(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) fetchOrders() tea.Cmd {
	return func() tea.Msg {
		orders, err := m.client.ListOrders(m.restaurantID)
		if err != nil {
			return errMsg{err}
		}
		return ordersMsg(orders)
	}
}

func (m Model) selectedOrder() (Order, bool) {
	row := m.orderTable.SelectedRow()
	if row == nil {
		return Order{}, false
	}
	id, err := strconv.ParseUint(row[0], 10, 32)
	if err != nil {
		return Order{}, false
	}
	for _, o := range m.orders {
		if o.ID == uint(id) {
			return o, true
		}
	}
	return Order{}, false
}

func (m Model) runAction(run func() error) tea.Cmd {
	return func() tea.Msg {
		if err := run(); err != nil {
			return errMsg{err}
		}
		return actionDoneMsg{}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.activePrompt != promptNone {
			return m.updatePrompt(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "s":
			m.activePrompt = promptStartMinutes
			m.input.Placeholder = "minutes (0 = menu default)"
			m.input.SetValue("")
			m.input.Focus()
			return m, nil
		case "e":
			m.activePrompt = promptExtendSeconds
			m.input.Placeholder = "seconds"
			m.input.SetValue("")
			m.input.Focus()
			return m, nil
		case "c":
			if o, ok := m.selectedOrder(); ok {
				return m, m.runAction(func() error {
					_, err := m.client.CompleteOrder(o.ID)
					return err
				})
			}
		case "x":
			if o, ok := m.selectedOrder(); ok {
				return m, m.runAction(func() error {
					_, err := m.client.CancelTimer(o.ID)
					return err
				})
			}
		case "d":
			if o, ok := m.selectedOrder(); ok {
				return m, m.runAction(func() error {
					return m.client.DeleteOrder(o.ID)
				})
			}
		}

	case tickMsg:
		return m, tea.Batch(m.fetchOrders(), tick())

	case ordersMsg:
		m.loading = false
		m.orders = msg
		m.orderTable.SetRows(orderRows(msg))
		return m, nil

	case actionDoneMsg:
		m.error = ""
		return m, m.fetchOrders()

	case errMsg:
		m.loading = false
		m.error = msg.err.Error()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.orderTable, cmd = m.orderTable.Update(msg)
	return m, cmd
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.activePrompt = promptNone
		m.input.Blur()
		return m, nil
	case "enter":
		value, err := strconv.Atoi(m.input.Value())
		if err != nil {
			m.error = "enter a number"
			return m, nil
		}
		o, ok := m.selectedOrder()
		if !ok {
			m.activePrompt = promptNone
			return m, nil
		}
		prompt := m.activePrompt
		m.activePrompt = promptNone
		m.input.Blur()
		return m, m.runAction(func() error {
			if prompt == promptStartMinutes {
				_, err := m.client.StartTimer(o.ID, value)
				return err
			}
			_, err := m.client.ExtendTimer(o.ID, value)
			return err
		})
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func orderRows(orders []Order) []table.Row {
	rows := make([]table.Row, 0, len(orders))
	for _, o := range orders {
		remaining := "-"
		if o.Status == "cooking" {
			remaining = fmt.Sprintf("%ds", o.Remaining())
		}
		status := o.Status
		if o.Status == "timer_expired" {
			status = expiredStyle.Render("EXPIRED")
		}
		rows = append(rows, table.Row{
			strconv.FormatUint(uint64(o.ID), 10),
			o.TableSection,
			status,
			remaining,
		})
	}
	return rows
}

func (m Model) View() string {
	view := titleStyle.Render("Expediter Kitchen Display") + "\n\n"

	if m.loading {
		view += m.spinner.View() + " Loading orders...\n"
	} else {
		view += m.orderTable.View() + "\n"
	}

	if m.activePrompt != promptNone {
		view += "\n" + m.input.View() + "\n"
	}
	if m.error != "" {
		view += "\n" + errorStyle.Render("error: "+m.error) + "\n"
	}

	view += "\n" + helpStyle.Render("s start · e extend · c complete · x cancel · d delete · q quit")
	return docStyle.Render(view)
}

func main() {
	var restaurantID uint
	if arg := os.Getenv("EXPEDITER_RESTAURANT"); arg != "" {
		id, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid EXPEDITER_RESTAURANT: %v\n", err)
			os.Exit(1)
		}
		restaurantID = uint(id)
	}

	client := NewApiClient()
	if ok, err := client.CheckHealth(); !ok {
		fmt.Fprintf(os.Stderr, "expediter API is not reachable at %s: %v\n", client.BaseURL, err)
		os.Exit(1)
	}

	p := tea.NewProgram(newModel(client, restaurantID))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error running display: %v\n", err)
		os.Exit(1)
	}
}
