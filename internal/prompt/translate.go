package prompt

import "strings"

type TranslateVars struct {
	Text     string
	Language string
}

func BuildTranslate(vars TranslateVars) (string, error) {
	vars.Text = strings.TrimSpace(vars.Text)
	vars.Language = strings.ToLower(strings.TrimSpace(vars.Language))
	return Render(TemplateTranslate, vars)
}
