package rating

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const markerGlyph = "▼"

// scaleStyles are pre-compiled once per scale so View stays cheap per
// frame.
type scaleStyles struct {
	description lipgloss.Style
	line        lipgloss.Style
	label       lipgloss.Style
	marker      lipgloss.Style
	markerDone  lipgloss.Style
	acceptIdle  lipgloss.Style
	acceptReady lipgloss.Style
	acceptDone  lipgloss.Style
}

func defaultScaleStyles() scaleStyles {
	return scaleStyles{
		description: lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		line:        lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		label:       lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		marker:      lipgloss.NewStyle().Foreground(lipgloss.Color("26")).Bold(true),
		markerDone:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		acceptIdle:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true),
		acceptReady: lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		acceptDone:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
	}
}

// View renders the scale as text. It never touches response state, so a
// scale used purely as a stimulus can be drawn every frame without ever
// registering anything.
func (s *Scale) View() string {
	if s.cacheValid {
		return s.cachedView
	}

	var b strings.Builder
	b.WriteString(s.styles.description.Render(s.description))
	b.WriteByte('\n')
	b.WriteString(s.markerRow())
	b.WriteByte('\n')
	b.WriteString(s.styles.line.Render(s.lineRow()))
	b.WriteByte('\n')
	b.WriteString(s.styles.label.Render(s.labelRow()))
	if row := s.acceptRow(); row != "" {
		b.WriteByte('\n')
		b.WriteString(row)
	}

	s.cachedView = b.String()
	s.cacheValid = true
	return s.cachedView
}

func (s *Scale) markerRow() string {
	if !s.placed {
		return strings.Repeat(" ", s.width)
	}
	col := s.markerColumn()
	row := strings.Repeat(" ", col) + markerGlyph + strings.Repeat(" ", s.width-col-1)
	if s.responded {
		return s.styles.markerDone.Render(row)
	}
	return s.styles.marker.Render(row)
}

func (s *Scale) lineRow() string {
	row := []rune(strings.Repeat("─", s.width))
	for v := s.low; v <= s.high; v += s.tickStep {
		col := s.columnFor(float64(v))
		switch v {
		case s.low:
			row[col] = '├'
		case s.high:
			row[col] = '┤'
		default:
			row[col] = '┼'
		}
	}
	return string(row)
}

func (s *Scale) labelRow() string {
	row := []byte(strings.Repeat(" ", s.width))
	lowLabel, midLabel, highLabel := s.labelTexts()
	overlay(row, 0, lowLabel)
	if midLabel != "" {
		overlay(row, (s.width-len(midLabel))/2, midLabel)
	}
	overlay(row, s.width-len(highLabel), highLabel)
	return string(row)
}

func (s *Scale) acceptRow() string {
	if s.hideAcceptBox {
		return ""
	}
	switch {
	case s.skipped:
		return s.styles.acceptDone.Render("[ skipped ]") + s.timeoutSuffix()
	case s.responded:
		return s.styles.acceptDone.Render("[ "+s.valueText()+" ]") + s.timeoutSuffix()
	case s.placed && s.placedBySubject:
		if s.hideValue {
			return s.styles.acceptReady.Render("[ accept? ]")
		}
		return s.styles.acceptReady.Render("[ " + s.valueText() + " ]")
	default:
		return s.styles.acceptIdle.Render("[ key, click ]")
	}
}

func (s *Scale) timeoutSuffix() string {
	if !s.timedOut {
		return ""
	}
	return s.styles.acceptIdle.Render(" (timed out)")
}

func (s *Scale) valueText() string {
	return fmt.Sprintf(s.fmtStr, s.position)
}

func (s *Scale) markerColumn() int {
	return s.columnFor(s.position)
}

func (s *Scale) columnFor(value float64) int {
	span := float64(s.high - s.low)
	proportion := (value - float64(s.low)) / span
	if proportion < 0 {
		proportion = 0
	}
	if proportion > 1 {
		proportion = 1
	}
	return int(math.Round(proportion * float64(s.width-1)))
}

// labelTexts resolves the configured labels to low, middle and high texts.
// Two labels name the endpoints, three add a middle label when the span
// has a center tick, anything else falls back to the numeric anchors.
func (s *Scale) labelTexts() (string, string, string) {
	switch {
	case len(s.labels) == 2:
		return s.labels[0], "", s.labels[1]
	case len(s.labels) == 3 && (s.high-s.low)%2 == 0:
		return s.labels[0], s.labels[1], s.labels[2]
	default:
		return strconv.Itoa(s.low), "", strconv.Itoa(s.high)
	}
}

func overlay(row []byte, col int, text string) {
	if col < 0 {
		col = 0
	}
	for i := 0; i < len(text) && col+i < len(row); i++ {
		row[col+i] = text[i]
	}
}
