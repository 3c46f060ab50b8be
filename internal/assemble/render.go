package assemble

import (
	"fmt"
	"strings"

	"github.com/1323216010/exam/internal/domain"
)

// FailedMarker follows the page label of a page that could not be transcribed.
const FailedMarker = " (conversion failed, skipped)"

// PageLabel returns the bold page heading for a 1-based page number.
func PageLabel(pageNumber int) string {
	return fmt.Sprintf("**Page %d**", pageNumber)
}

// RenderPage renders one page section, delimiter included.
func RenderPage(r domain.PageResult) string {
	if r.Succeeded() {
		return "\n\n---\n" + PageLabel(r.PageNumber) + "\n\n" + r.Text
	}
	return "\n\n---\n" + PageLabel(r.PageNumber) + FailedMarker + "\n\n"
}

// Render concatenates page sections in the order given.
func Render(pages []domain.PageResult) string {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(RenderPage(p))
	}
	return b.String()
}
