package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"cuecard/internal/domain"
)

const lowTimeSeconds = 120

func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	divider := dividerStyle.Render(strings.Repeat("─", m.width))
	transcriptH, answersH := m.panelHeights()

	sections := []string{
		m.renderHeader(),
		m.renderStatusBar(),
		divider,
		m.renderTranscript(transcriptH),
		divider,
		m.renderAnswers(answersH),
		divider,
		m.renderQuestionInput(),
	}
	if line := m.renderNotice(); line != "" {
		sections = append(sections, line)
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) panelHeights() (int, int) {
	// header, status, three dividers, question, notice, footer
	const reserved = 8
	available := m.height - reserved
	if m.height == 0 || available < 8 {
		available = 8
	}
	transcript := max(3, available/3)
	return transcript, max(4, available-transcript)
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("CUECARD")
	if m.interviewID != "" {
		title += dimStyle.Render("  interview " + m.interviewID)
	}
	return title + "  " + m.renderClock()
}

func (m Model) renderClock() string {
	if !m.clockSeen {
		return dimStyle.Render("--:--")
	}
	elapsed := formatSeconds(m.clock.ElapsedSeconds)
	if m.clock.Unbounded {
		return clockStyle.Render(elapsed)
	}
	remaining := formatSeconds(m.clock.RemainingSeconds) + " left"
	if m.clock.Expired || m.clock.RemainingSeconds <= lowTimeSeconds {
		return clockStyle.Render(elapsed) + dimStyle.Render(" / ") + clockLowStyle.Render(remaining)
	}
	return clockStyle.Render(elapsed) + dimStyle.Render(" / ") + clockStyle.Render(remaining)
}

func (m Model) renderStatusBar() string {
	var dot string
	switch {
	case m.phase == domain.PhaseEnded:
		dot = endedDotStyle.Render("○ ENDED")
	case m.phase == domain.PhaseEnding:
		dot = endedDotStyle.Render("◌ ENDING")
	case m.phase == domain.PhaseInitializing:
		dot = dimStyle.Render("◌ STARTING")
	case m.paused:
		dot = pausedDotStyle.Render("‖ PAUSED")
	default:
		dot = liveDotStyle.Render("● LIVE")
	}

	parts := []string{dot, dimStyle.Render(sourceLabel(m.source, m.devices))}
	parts = append(parts, dimStyle.Render("stt "+string(m.transcription)))
	if !m.devicesSupported {
		parts = append(parts, dimStyle.Render("device list unavailable"))
	}
	if m.generating {
		parts = append(parts, interimStyle.Render("⟳ answering"))
	}
	return strings.Join(parts, "  ")
}

func sourceLabel(source domain.AudioSource, devices []domain.AudioDevice) string {
	if source.Kind == domain.SourceSystem {
		return "system audio"
	}
	id := source.DeviceID
	if id == "" {
		id = domain.DefaultDeviceID
	}
	for _, d := range devices {
		if d.ID == id && d.Label != "" {
			return "mic " + d.Label
		}
	}
	return "mic " + id
}

func (m Model) renderTranscript(height int) string {
	title := panelTitleStyle.Render("TRANSCRIPT")
	if m.focus == FocusTranscript {
		title = panelTitleActiveStyle.Render("TRANSCRIPT")
	}

	width := max(10, m.width-2)
	var body []string
	for _, line := range wrapText(m.transcript.Finalized, width) {
		if line != "" {
			body = append(body, line)
		}
	}
	if m.transcript.Interim != "" {
		for _, line := range wrapText(m.transcript.Interim+"▌", width) {
			body = append(body, interimStyle.Render(line))
		}
	}
	if len(body) == 0 {
		body = append(body, dimStyle.Render("Listening for the interviewer..."))
	}

	contentH := height - 1
	if len(body) > contentH {
		body = body[len(body)-contentH:]
	}
	lines := []string{title}
	for _, line := range body {
		lines = append(lines, "  "+line)
	}
	return padLines(lines, height)
}

func (m Model) renderAnswers(height int) string {
	lines := []string{panelTitleStyle.Render(fmt.Sprintf("ANSWERS (%d)", len(m.turns)))}
	width := max(10, m.width-4)

	if len(m.turns) == 0 {
		lines = append(lines, dimStyle.Render("  Press Space to answer the latest question"))
		return padLines(lines, height)
	}

	for _, turn := range m.turns {
		if len(lines) >= height {
			break
		}
		question := truncate(strings.Join(strings.Fields(turn.QuestionContext), " "), width-4)
		lines = append(lines, questionStyle.Render("  Q: "+question))

		answer := turn.Answer
		style := answerStyle
		switch {
		case turn.Failed:
			style = errorTextStyle
			if answer == "" {
				answer = "Answer failed"
			}
		case turn.Stopped:
			style = stoppedStyle
		case turn.IsLoading && answer == "":
			answer = "..."
		}
		for _, line := range wrapText(answer, width) {
			lines = append(lines, "    "+style.Render(line))
		}
		lines = append(lines, "")
	}
	return padLines(lines, height)
}

func (m Model) renderQuestionInput() string {
	prompt := dimStyle.Render("Ask: ")
	if m.focus == FocusQuestion {
		return panelTitleActiveStyle.Render("Ask: ") + string(m.question) + "▌"
	}
	if len(m.question) == 0 {
		return prompt + dimStyle.Render("(tab to type a question)")
	}
	return prompt + string(m.question)
}

func (m Model) renderNotice() string {
	switch {
	case m.confirmEnd:
		return confirmStyle.Render("End the session? (y/n)")
	case m.errorText != "":
		return errorStyle.Render("Error: ") + errorTextStyle.Render(m.errorText)
	default:
		return ""
	}
}

func (m Model) renderFooter() string {
	key := func(k, desc string) string {
		return footerKeyStyle.Render(k) + footerDescStyle.Render(" "+desc)
	}

	if m.phase == domain.PhaseEnded || m.phase == domain.PhaseEnding {
		return key("q", "Quit")
	}
	if m.focus == FocusQuestion {
		return strings.Join([]string{key("Enter", "Ask"), key("Tab/Esc", "Back"), key("ctrl+c", "Quit")}, "  ")
	}

	pause := "Pause"
	if m.paused {
		pause = "Resume"
	}
	return strings.Join([]string{
		key("Space", "Answer"),
		key("Tab", "Ask"),
		key("p", pause),
		key("s", "Source"),
		key("d", "Device"),
		key("c", "Clear"),
		key("e", "End"),
		key("ctrl+c", "Quit"),
	}, "  ")
}

func formatSeconds(total int) string {
	if total < 0 {
		total = 0
	}
	if total >= 3600 {
		return fmt.Sprintf("%d:%02d:%02d", total/3600, total%3600/60, total%60)
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func padLines(lines []string, height int) string {
	for len(lines) < height {
		lines = append(lines, "")
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, width int) string {
	if width <= 1 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len([]rune(current))+1+len([]rune(word)) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		lines = append(lines, current)
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
