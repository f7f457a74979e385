package classify

import "strings"

// Category of a request, used to pick the suggested agent role.
type Category string

const (
	CategoryCoding   Category = "coding"
	CategoryGithub   Category = "github"
	CategorySlack    Category = "slack"
	CategoryEmail    Category = "email"
	CategoryCalendar Category = "calendar"
	CategoryResearch Category = "research"
	CategoryCreative Category = "creative"
	CategorySocial   Category = "social"
	CategoryChat     Category = "chat"
)

// categoryRule is one ordered keyword rule; the first matching rule wins.
type categoryRule struct {
	category Category
	keywords []string
}

// Rule order matters: "review the PR on github" should land on github, not
// coding, so the more specific surfaces come first where they overlap.
var categoryRules = []categoryRule{
	{CategoryGithub, []string{"github", "pull request", " pr ", "merge request", "repository", "issue #"}},
	{CategoryCoding, []string{"code", "bug", "debug", "refactor", "compile", "function", "implement", "test suite", "stack trace"}},
	{CategorySlack, []string{"slack", "channel", "dm ", "direct message"}},
	{CategoryEmail, []string{"email", "e-mail", "inbox", "reply to", "compose"}},
	{CategoryCalendar, []string{"calendar", "schedule", "meeting", "appointment", "remind me"}},
	{CategoryResearch, []string{"research", "look up", "find out", "compare", "summarize", "investigate"}},
	{CategoryCreative, []string{"write a", "draft", "story", "poem", "blog post", "brainstorm"}},
	{CategorySocial, []string{"birthday", "gift", "party", "invite", "dinner with"}},
}

// categoryAgents maps a category to the suggested agent role.
var categoryAgents = map[Category]string{
	CategoryCoding:   "coder",
	CategoryGithub:   "coder",
	CategorySlack:    "communicator",
	CategoryEmail:    "communicator",
	CategoryCalendar: "planner",
	CategoryResearch: "researcher",
	CategoryCreative: "writer",
	CategorySocial:   "companion",
	CategoryChat:     "assistant",
}

// approvalCategories act on the user's behalf toward other people, so a
// human look before sending is required.
var approvalCategories = map[Category]bool{
	CategorySlack:  true,
	CategoryEmail:  true,
	CategorySocial: true,
}

// categoryTools suggests the tool surface a category usually needs.
var categoryTools = map[Category][]string{
	CategoryCalendar: {"current_time"},
	CategoryResearch: {"recall"},
	CategoryChat:     {"remember", "recall"},
}

// DetectCategory applies the ordered keyword rules, defaulting to chat.
func DetectCategory(input string) Category {
	lowered := strings.ToLower(input)
	for _, rule := range categoryRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(lowered, keyword) {
				return rule.category
			}
		}
	}
	return CategoryChat
}

// SuggestedAgent resolves a category to an agent role.
func SuggestedAgent(category Category) string {
	if role, ok := categoryAgents[category]; ok {
		return role
	}
	return categoryAgents[CategoryChat]
}
