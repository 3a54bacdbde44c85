package pagestate

import "github.com/aretw0/tendril/pkg/domain"

// Rule lists the probes of each tier for one page state.
// Patterns are case-insensitive ECMAScript-style regular expressions.
type Rule struct {
	Selectors []string `json:"selectors,omitempty" mapstructure:"selectors"`
	Patterns  []string `json:"patterns,omitempty" mapstructure:"patterns"`
	Prompts   []string `json:"prompts,omitempty" mapstructure:"prompts"`
}

// DefaultRules returns the built-in rules. Custom states have none.
func DefaultRules() map[domain.PageState]Rule {
	return map[domain.PageState]Rule{
		domain.StateLoading: {
			Selectors: []string{".loading", ".spinner", ".loader", "[aria-busy='true']", "[role='progressbar']"},
			Patterns:  []string{`\bloading\b`, `please wait`, `carregando`, `aguarde`},
			Prompts:   []string{"a loading spinner, progress bar or skeleton placeholder"},
		},
		domain.StateError: {
			Selectors: []string{".error", ".alert-danger", ".alert-error", "[role='alert']", ".error-message"},
			Patterns:  []string{`\berror\b`, `something went wrong`, `\bfailed\b`, `\berro\b`, `falhou`},
			Prompts:   []string{"an error message, error banner or failure notice"},
		},
		domain.StateEmpty: {
			Selectors: []string{".empty-state", ".no-results", ".no-data", "[data-empty='true']"},
			Patterns:  []string{`no results`, `no data`, `nothing (found|here)`, `nenhum resultado`, `sem resultados`},
			Prompts:   []string{"an empty state placeholder saying there is nothing to show"},
		},
		domain.StateLoggedIn: {
			Selectors: []string{"[data-testid='user-menu']", ".user-avatar", ".user-menu", "a[href*='logout']", "button.logout"},
			Patterns:  []string{`log ?out`, `sign ?out`, `my account`, `\bsair\b`, `minha conta`},
			Prompts:   []string{"a user avatar, account menu or logout button of a signed-in session"},
		},
		domain.StateLoggedOut: {
			Selectors: []string{"form[action*='login']", "input[type='password']", "a[href*='login']", "button.login"},
			Patterns:  []string{`log ?in`, `sign ?in`, `\bentrar\b`, `criar conta`},
			Prompts:   []string{"a login form or sign-in button for an anonymous visitor"},
		},
	}
}
