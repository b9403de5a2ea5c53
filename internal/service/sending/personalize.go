package sending

import (
	"regexp"
	"strings"

	"github.com/osteele/liquid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/yordy89/day-trade-dak-api-sub005/internal/domain"
	"github.com/yordy89/day-trade-dak-api-sub005/internal/pkg/logger"
)

var (
	// outputTagRe matches a Liquid output tag and captures its root variable.
	outputTagRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)[^{}]*\}\}`)

	// simpleTagRe matches a bare {{ name }} placeholder.
	simpleTagRe = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)
)

// Personalizer renders subject and body placeholders with Liquid. Tags that
// name a variable the recipient does not have are left in the output as
// written.
type Personalizer struct {
	engine *liquid.Engine
}

// NewPersonalizer creates a personalizer with the mail filters registered.
func NewPersonalizer() *Personalizer {
	engine := liquid.NewEngine()

	// {{ first_name | titlecase }}; a Caser is stateful, so one per call.
	engine.RegisterFilter("titlecase", func(s string) string {
		return cases.Title(language.Und).String(strings.ToLower(s))
	})

	return &Personalizer{engine: engine}
}

// Render substitutes vars into src. A template Liquid cannot parse falls
// back to plain {{ name }} substitution.
func (p *Personalizer) Render(src string, vars map[string]string) string {
	if !strings.Contains(src, "{{") && !strings.Contains(src, "{%") {
		return src
	}

	guarded := outputTagRe.ReplaceAllStringFunc(src, func(tag string) string {
		name := outputTagRe.FindStringSubmatch(tag)[1]
		if _, ok := vars[name]; ok {
			return tag
		}
		return "{% raw %}" + tag + "{% endraw %}"
	})

	bindings := make(map[string]any, len(vars))
	for k, v := range vars {
		bindings[k] = v
	}
	out, err := p.engine.ParseAndRenderString(guarded, bindings)
	if err != nil {
		logger.Debug("[Personalize] liquid render failed, using plain substitution", "error", err)
		return substitute(src, vars)
	}
	return out
}

func substitute(src string, vars map[string]string) string {
	return simpleTagRe.ReplaceAllStringFunc(src, func(tag string) string {
		name := simpleTagRe.FindStringSubmatch(tag)[1]
		if v, ok := vars[name]; ok {
			return v
		}
		return tag
	})
}

// Variables is the placeholder set of one recipient. Custom variables never
// shadow the built-in ones.
func Variables(r domain.ResolvedRecipient) map[string]string {
	vars := make(map[string]string, len(r.Variables)+4)
	for k, v := range r.Variables {
		vars[k] = v
	}
	vars["first_name"] = r.FirstName
	vars["last_name"] = r.LastName
	vars["full_name"] = strings.TrimSpace(r.FirstName + " " + r.LastName)
	vars["email"] = r.Email
	return vars
}
