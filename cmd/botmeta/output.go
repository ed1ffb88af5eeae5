package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/edgard/botmeta/internal/languages"
	"github.com/edgard/botmeta/internal/probe"
	"github.com/edgard/botmeta/internal/telegram"
)

type palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	code  lipgloss.Style
}

var styles = palette{
	title: lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true),
	ok:    lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true),
	err:   lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
	warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")),
	help:  lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true),
	code:  lipgloss.NewStyle().Width(4),
}

func printProbeResult(w io.Writer, res probe.Result) {
	printConfigured(w, res.Configured)
	if len(res.Failed) > 0 {
		fmt.Fprintln(w, styles.warn.Render("Could not check: "+strings.Join(res.Failed, ", ")))
	}
	fmt.Fprintln(w, styles.help.Render(fmt.Sprintf("%d languages checked", res.Checked)))
}

func printEvent(w io.Writer, ev probe.Event) {
	switch ev.Type {
	case probe.EventStart:
		fmt.Fprintln(w, styles.help.Render(fmt.Sprintf("Probing %d languages...", ev.Total)))
	case probe.EventProgress:
		fmt.Fprintf(w, "\r%d/%d", ev.Checked, ev.Total)
		if ev.Checked == ev.Total {
			fmt.Fprintln(w)
		}
	case probe.EventDone:
		printConfigured(w, ev.ConfiguredLanguages)
	}
}

func printConfigured(w io.Writer, codes []string) {
	fmt.Fprintln(w, styles.title.Render(fmt.Sprintf("Configured languages (%d)", len(codes))))
	if len(codes) == 0 {
		fmt.Fprintln(w, styles.help.Render("  only the default metadata is set"))
	}
	for _, code := range codes {
		fmt.Fprintf(w, "  %s %s\n", styles.ok.Render(styles.code.Render(code)), languages.Name(code))
	}
}

func printIdentity(w io.Writer, bot telegram.BotIdentity) {
	fmt.Fprintln(w, styles.ok.Render("Token is valid"))
	fmt.Fprintf(w, "  %-10s %s\n", "name", bot.FirstName)
	fmt.Fprintf(w, "  %-10s @%s\n", "username", bot.Username)
	fmt.Fprintf(w, "  %-10s %d\n", "id", bot.ID)
}

func printLanguages(w io.Writer, table []languages.Language) {
	fmt.Fprintln(w, styles.title.Render(fmt.Sprintf("%d languages", len(table))))
	for _, l := range table {
		fmt.Fprintf(w, "  %s %-24s %s\n", styles.ok.Render(styles.code.Render(l.Code)), l.Name, languages.NativeName(l.Code))
	}
}
