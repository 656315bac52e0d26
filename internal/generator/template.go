package generator

import (
	"context"
	"fmt"
	"strings"
)

// TemplateTranscriber renders a fixed dialogue between the assistant and the
// expert. Output depends only on the request.
type TemplateTranscriber struct{}

func (TemplateTranscriber) Transcribe(ctx context.Context, req TranscriptRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	user := strings.TrimSpace(req.UserName)
	if user == "" {
		user = "our client"
	}
	expert := strings.TrimSpace(req.ExpertName)
	if expert == "" {
		expert = "Expert"
	}
	goal := strings.TrimSpace(req.Goal)

	contextLine := ""
	if c := strings.TrimSpace(req.ContextText); c != "" {
		contextLine = " They provided the following context: " + c
	}

	turns := []struct{ who, line string }{
		{"AI Assistant", fmt.Sprintf("Hi, this is an AI assistant calling from ExpertAssist AI on behalf of %s regarding %s. Is now a good time?", user, goal)},
		{expert, "Yes, I have a few minutes. What can I help with?"},
		{"AI Assistant", fmt.Sprintf("Great, thank you. %s wanted me to ask you about %s.%s", user, goal, contextLine)},
		{expert, fmt.Sprintf("I see. Well, regarding %s, I can tell you that we typically handle this by following these steps...", goal)},
		{"AI Assistant", "That's helpful information. Could you also let me know about the timeline for this process?"},
		{expert, "Certainly. The timeline usually depends on several factors, but in general..."},
		{"AI Assistant", fmt.Sprintf("Thank you for that explanation. Is there anything else %s should know or prepare regarding this matter?", user)},
		{expert, "Yes, they should make sure to have these documents ready..."},
		{"AI Assistant", fmt.Sprintf("I've made note of all that information. Is there a best time for %s to reach out if they have follow-up questions?", user)},
		{expert, "They can call me anytime during business hours, or email is sometimes better for detailed questions."},
		{"AI Assistant", fmt.Sprintf("Great, I'll pass that along. Thank you so much for your time today. I'll make sure %s gets all this information.", user)},
		{expert, "You're welcome. Goodbye."},
		{"AI Assistant", "Goodbye."},
	}

	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]: %s", t.who, t.line)
	}
	return b.String(), nil
}

// TemplateSummarizer returns a structured summary skeleton for goal.
type TemplateSummarizer struct{}

func (TemplateSummarizer) Summarize(ctx context.Context, transcript, goal string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf(`Summary of Call Regarding: %s

Key Information Gathered:
- The expert explained the standard process for handling this request
- Timeline depends on several factors, but generally takes [X] time
- You should prepare the following documents: [Document List]

Action Items:
- Prepare required documents
- Follow up with the expert via email for detailed questions
- Next steps should be taken within [timeframe]

The expert is available during regular business hours for follow-up questions, with email preferred for detailed inquiries.`, strings.TrimSpace(goal)), nil
}
