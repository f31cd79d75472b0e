// Package render draws a page view in the terminal.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	blockStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	selectedStyle = blockStyle.
			BorderForeground(lipgloss.Color("214"))

	typeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	dropStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("32")).
			Bold(true)
)

const dropMarker = "── drop here ──"

// Outline renders the view's blocks top to bottom. In edit mode the
// selected block and the current drop target are marked; a preview shows
// content only.
func Outline(v editor.View) string {
	var b strings.Builder

	title := "Editing " + v.PageID
	if v.Mode == editor.ModePreview {
		title = "Preview " + v.PageID
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	if len(v.Blocks) == 0 {
		b.WriteString(metaStyle.Render("(empty page)"))
		b.WriteString("\n")
		return b.String()
	}

	edit := v.Mode != editor.ModePreview
	var target *editor.DropTarget
	if edit {
		target = v.Drag.Target
	}

	for i, blk := range v.Blocks {
		if target != nil && target.ID == blk.ID && target.Pos == editor.PositionBefore {
			b.WriteString(dropStyle.Render(dropMarker) + "\n")
		}

		style := blockStyle
		header := typeStyle.Render(fmt.Sprintf("%d. %s", i+1, blk.Type))
		if edit && blk.ID == v.SelectedID {
			style = selectedStyle
			header += metaStyle.Render("  (selected)")
		}
		body := header
		if s := Summary(blk); s != "" {
			body += "\n" + s
		}
		b.WriteString(style.Render(body))
		b.WriteString("\n")

		if target != nil && target.ID == blk.ID && target.Pos == editor.PositionAfter {
			b.WriteString(dropStyle.Render(dropMarker) + "\n")
		}
	}

	if edit {
		var flags []string
		if v.Dirty {
			flags = append(flags, "unsaved changes")
		}
		if v.Saving {
			flags = append(flags, "saving")
		}
		if v.CanUndo {
			flags = append(flags, "undo")
		}
		if v.CanRedo {
			flags = append(flags, "redo")
		}
		if len(flags) > 0 {
			b.WriteString(metaStyle.Render(strings.Join(flags, " · ")))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Summary is a one-line description of a block's content.
func Summary(b domain.Block) string {
	switch d := b.Data.(type) {
	case domain.HeroData:
		return d.Headline
	case domain.TextData:
		return d.Heading
	case domain.FeaturesData:
		return fmt.Sprintf("%s (%d features)", d.Heading, len(d.Items))
	case domain.StatsData:
		labels := make([]string, 0, len(d.Items))
		for _, s := range d.Items {
			labels = append(labels, string(s.Value)+" "+s.Label)
		}
		return strings.Join(labels, ", ")
	case domain.GalleryData:
		return fmt.Sprintf("%s (%d images)", d.Heading, len(d.Images))
	case domain.CTAData:
		return d.Headline
	case domain.TestimonialsData:
		return fmt.Sprintf("%s (%d quotes)", d.Heading, len(d.Items))
	}
	return ""
}
