package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/antoniofrancaib/alan/internal/domain"
)

// RenderMessage builds the single WhatsApp body sent to every recipient of a
// run. The format is deterministic (same date and papers always produce the
// same bytes) so re-renders are idempotent and tests can compare exactly.
func RenderMessage(nowUTC time.Time, papers []domain.Paper) string {
	var b strings.Builder

	date := nowUTC.UTC().Format("Monday, January 2, 2006")
	fmt.Fprintf(&b, "🤖 *Alan's Daily ML Papers* - %s\n\n", date)

	for i, p := range papers {
		fmt.Fprintf(&b, "📄 *%d. %s*\n", i+1, p.Title)
		fmt.Fprintf(&b, "👥 %s\n", strings.Join(p.Authors, ", "))
		fmt.Fprintf(&b, "%s\n", p.Description)
		fmt.Fprintf(&b, "🔗 %s\n\n", p.Link)
	}

	b.WriteString("\nStay curious! Let me know if you'd like to discuss any of these papers or need more information. 🤔")
	return b.String()
}
