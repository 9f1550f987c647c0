// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/toeirei/foothold/internal/bootstrap"
	"github.com/toeirei/foothold/internal/i18n"
	"github.com/toeirei/foothold/internal/model"
)

// Focus order: host input, username input, force toggle, align toggle,
// submit button.
const (
	focusHost = iota
	focusUsername
	focusForce
	focusAlign
	focusSubmit
	focusCount
)

// bootstrapDoneMsg reports the outcome of a run started from the form.
type bootstrapDoneMsg struct {
	report *model.Report
	target string
	err    error
}

// copiedMsg signals the key payload was placed on the clipboard.
type copiedMsg struct{ err error }

type bootstrapModel struct {
	focusIndex int
	inputs     []textinput.Model // 0: host, 1: username
	force      bool
	align      bool

	login   string // remote login for the SSH connection
	opts    bootstrap.Options
	running bool
	status  string
	err     error
}

// NewModel builds the bootstrap form. login is the configured remote login
// the connection will be made as.
func NewModel(login string, opts bootstrap.Options) tea.Model {
	m := bootstrapModel{
		inputs: make([]textinput.Model, 2),
		login:  login,
		opts:   opts,
	}

	var t textinput.Model
	for i := range m.inputs {
		t = textinput.New()
		t.Cursor.Style = focusedStyle
		t.CharLimit = 64
		t.Width = 40

		switch i {
		case 0:
			t.Prompt = i18n.T("tui.host") + ":     "
			t.Placeholder = "www.example.com"
		case 1:
			t.Prompt = i18n.T("tui.username") + ": "
			t.Placeholder = "alice"
		}
		m.inputs[i] = t
	}
	m.inputs[0].Focus()
	m.inputs[0].TextStyle = focusedStyle

	return m
}

// Run starts the interactive form and blocks until it exits.
func Run(login string, opts bootstrap.Options) error {
	_, err := tea.NewProgram(NewModel(login, opts)).Run()
	return err
}

func (m bootstrapModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m bootstrapModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.running {
			// Only allow bailing out while a run is in flight.
			if msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
			return m, nil
		}
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if msg.String() == "q" && m.focusIndex <= focusUsername {
				break // "q" belongs to the text inputs
			}
			return m, tea.Quit

		case "ctrl+y":
			return m, copyPayloadCmd

		case " ":
			switch m.focusIndex {
			case focusForce:
				m.force = !m.force
				return m, nil
			case focusAlign:
				m.align = !m.align
				return m, nil
			}

		case "tab", "shift+tab", "up", "down", "enter":
			s := msg.String()

			if s == "enter" {
				switch m.focusIndex {
				case focusForce:
					m.force = !m.force
					return m, nil
				case focusAlign:
					m.align = !m.align
					return m, nil
				case focusSubmit:
					return m.submit()
				}
			}

			if s == "up" || s == "shift+tab" {
				m.focusIndex--
			} else {
				m.focusIndex++
			}
			if m.focusIndex >= focusCount {
				m.focusIndex = 0
			} else if m.focusIndex < 0 {
				m.focusIndex = focusCount - 1
			}

			cmds := make([]tea.Cmd, len(m.inputs))
			for i := range m.inputs {
				if i == m.focusIndex {
					cmds[i] = m.inputs[i].Focus()
					m.inputs[i].TextStyle = focusedStyle
					continue
				}
				m.inputs[i].Blur()
				m.inputs[i].TextStyle = blurredStyle
			}
			return m, tea.Batch(cmds...)
		}

	case bootstrapDoneMsg:
		m.running = false
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.status = renderReport(msg.target, msg.report)
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.status = i18n.T("tui.copied")
		}
		return m, nil
	}

	// Hand the message to the focused text input.
	cmds := make([]tea.Cmd, len(m.inputs))
	for i := range m.inputs {
		m.inputs[i], cmds[i] = m.inputs[i].Update(msg)
	}
	return m, tea.Batch(cmds...)
}

// buildRequest validates the form and assembles the request it describes.
func (m bootstrapModel) buildRequest() (model.Request, error) {
	host := strings.TrimSpace(m.inputs[0].Value())
	username := strings.TrimSpace(m.inputs[1].Value())
	if host == "" {
		return model.Request{}, fmt.Errorf("%s", i18n.T("error.missing_host"))
	}
	if username == "" {
		return model.Request{}, fmt.Errorf("%s", i18n.T("error.missing_username"))
	}
	return model.Request{
		Host:     host,
		Username: username,
		Login:    m.login,
		Force:    m.force,
		Align:    m.align,
	}, nil
}

func (m bootstrapModel) submit() (tea.Model, tea.Cmd) {
	req, err := m.buildRequest()
	if err != nil {
		m.err = err
		return m, nil
	}
	m.running = true
	m.err = nil
	m.status = i18n.T("tui.running", req.String())
	opts := m.opts
	return m, func() tea.Msg {
		report, err := bootstrap.Run(req, opts)
		return bootstrapDoneMsg{report: report, target: req.String(), err: err}
	}
}

func copyPayloadCmd() tea.Msg {
	payload, _, err := bootstrap.ResolvePayload()
	if err != nil {
		return copiedMsg{err: err}
	}
	return copiedMsg{err: clipboard.WriteAll(string(payload))}
}

func renderReport(target string, report *model.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", i18n.T("bootstrap.done", target))
	fmt.Fprintf(&b, "  created=%t home+%d store+%d aligned=%t restarted=%t\n",
		report.Created, report.HomeKeysAdded, report.StoreKeysAdded, report.Aligned, report.Restarted)
	for _, w := range report.Warnings {
		fmt.Fprintf(&b, "  ! %s\n", w)
	}
	return b.String()
}

func (m bootstrapModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(i18n.T("tui.title")))
	b.WriteString("\n\n")

	for i := range m.inputs {
		b.WriteString(m.inputs[i].View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(renderToggle(i18n.T("tui.force"), m.force, m.focusIndex == focusForce))
	b.WriteString("\n")
	b.WriteString(renderToggle(i18n.T("tui.align"), m.align, m.focusIndex == focusAlign))
	b.WriteString("\n\n")

	submit := i18n.T("tui.submit")
	if m.focusIndex == focusSubmit {
		submit = focusedStyle.Render(submit)
	} else {
		submit = blurredStyle.Render(submit)
	}
	b.WriteString(submit)
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(successStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(i18n.T("tui.help")))

	return docStyle.Render(b.String())
}

func renderToggle(label string, on, focused bool) string {
	box := "[ ]"
	if on {
		box = "[x]"
	}
	line := box + " " + label
	if focused {
		return focusedStyle.Render(line)
	}
	return line
}
