package prompt

import "strings"

type ToxicityVars struct {
	Text   string
	Labels []string
}

// BuildToxicity renders the moderation prompt for text over labels.
func BuildToxicity(vars ToxicityVars) (string, error) {
	vars.Text = strings.TrimSpace(vars.Text)
	return Render(TemplateToxicity, vars)
}
