package usecase

import (
	"fmt"
	"strings"

	"shopping-assistant/internal/domain"
)

const (
	clarifyingQuestions = "To better assist you, could you please answer a few questions:\n" +
		"1. What is your price range?\n" +
		"2. Are there any specific brands or features you're looking for?\n" +
		"3. Any other details that are important to you?"

	descriptionInstruction = "Create a tailored product description for this user..."

	comparisonInstruction = "Remove duplicates and pick at most 4 products that best match user needs " +
		"to create a comparison table for them."

	extractionSchemaName = "preference_extraction"
)

func buildPreferenceSeed(prefs []domain.Preference, intent string) string {
	lines := make([]string, 0, len(prefs))
	for _, p := range prefs {
		lines = append(lines, p.Key+": "+p.Value)
	}
	return fmt.Sprintf("User Preferences:\n%s\n\nUser Intent: %s", strings.Join(lines, "\n"), intent)
}

// replayTranscript renders turns, given newest first, as one chronological
// block with a line per text fragment.
func replayTranscript(turns []domain.Turn) string {
	var b strings.Builder
	for i := len(turns) - 1; i >= 0; i-- {
		for _, f := range turns[i].Fragments {
			if f.Type != domain.FragmentText {
				continue
			}
			b.WriteString(f.Text)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func buildDescriptionPrompt(conversation, productPage string) string {
	return fmt.Sprintf(
		"Pre-shopping conversation with User:\n%s\nProduct Page:\n%s\n\n%s",
		conversation,
		productPage,
		descriptionInstruction,
	)
}

// buildComparisonPrompt numbers pages 1..N in the order given.
func buildComparisonPrompt(conversation string, pages []domain.ProductPage) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#Start: Pre-shopping conversation with User:\n%s#\n\n", conversation)
	b.WriteString("#End: Pre-shopping conversation with User\n\n")
	for i, p := range pages {
		n := i + 1
		fmt.Fprintf(&b, "#Start: Product %d Description#\n: %s\n\n", n, p.ProductPage)
		fmt.Fprintf(&b, "#End: Product %d Description#\n\n", n)
	}
	b.WriteString(comparisonInstruction)
	return b.String()
}

func buildExtractionMessages(transcript string) []domain.ChatMessage {
	return []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: extractionPolicy()},
		{Role: domain.RoleUser, Content: transcript},
	}
}

func extractionPolicy() string {
	return strings.Join([]string{
		"You are an expert at extracting structured user preferences from conversation text.",
		" Given the conversation below, extract any key user preferences or insights.",
		"Return your result following the provided structure.",
		"Some examples of user information you might extract from a conversation:",
		"{",
		`  "preferences": [`,
		`    {"key": "Marital Status", "value": "Married"},`,
		`    {"key": "Career", "value": "Graphic Designer"},`,
		`    {"key": "Interests", "value": "Digital Design, Travel Documentaries, Baking"},`,
		`    {"key": "Tech Savviness", "value": "High"}`,
		"  ]",
		"}",
		"",
		"",
	}, "\n")
}
