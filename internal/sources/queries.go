package sources

import (
	"fmt"
	"strings"

	"github.com/aurashield/mentions-bot/internal/models"
)

// Suffixes commonly dropped when people write a brand name.
var nameSuffixes = []string{"inc", "inc.", "llc", "ltd", "ltd.", "co", "co.", "corp", "corp."}

// queryVariants returns the ordered list of search queries to try for a
// subject. Connectors run them in order and stop at the first variant
// that returns results, so the broadest phrasing goes first and the
// riskier relaxations later.
func queryVariants(subject models.Subject) []string {
	value := strings.TrimSpace(subject.Value)
	if value == "" {
		return nil
	}

	if subject.Type == models.SubjectHandle {
		return []string{
			fmt.Sprintf("@%s OR %s", value, value),
			fmt.Sprintf("%q", value),
		}
	}

	variants := []string{fmt.Sprintf("%q", value)}

	// Names get a suffix-stripped variant ("Acme Inc" -> "Acme") and,
	// for multi-word terms, a hyphenated one ("deep mind" -> "deep-mind").
	words := strings.Fields(value)
	if len(words) > 1 {
		last := strings.ToLower(words[len(words)-1])
		for _, suffix := range nameSuffixes {
			if last == suffix {
				stripped := strings.Join(words[:len(words)-1], " ")
				variants = append(variants, fmt.Sprintf("%q", stripped))
				break
			}
		}
		variants = append(variants, strings.Join(words, "-"))
	}

	return variants
}
