package tenancy

import (
	"errors"
	"time"
)

// WorkspaceStatus is the lifecycle state of a workspace
type WorkspaceStatus string

const (
	WorkspaceActive   WorkspaceStatus = "active"
	WorkspaceDisabled WorkspaceStatus = "disabled"
)

// Language is an ISO 639-1 content language code
type Language string

const (
	LangEnglish Language = "en"
	LangArabic  Language = "ar"
	LangFrench  Language = "fr"
	LangSpanish Language = "es"
	LangGerman  Language = "de"
	LangTurkish Language = "tr"
	LangTamil   Language = "ta"
	LangHindi   Language = "hi"
)

// AllLanguages lists every language the platform can serve
func AllLanguages() []Language {
	return []Language{
		LangEnglish, LangArabic, LangFrench, LangSpanish,
		LangGerman, LangTurkish, LangTamil, LangHindi,
	}
}

// IsValid reports whether the language is a known code
func (l Language) IsValid() bool {
	for _, known := range AllLanguages() {
		if l == known {
			return true
		}
	}
	return false
}

// ThemeOverride carries per-workspace branding on top of the platform
// defaults
type ThemeOverride struct {
	// AccentColor is an HSL triple, e.g. "262 83% 58%"
	AccentColor string `json:"accent_color,omitempty"`
	LogoURL     string `json:"logo_url,omitempty"`
}

// IsZero reports whether no override is set
func (t ThemeOverride) IsZero() bool {
	return t.AccentColor == "" && t.LogoURL == ""
}

// Workspace represents one tenant site
type Workspace struct {
	ID          string          `json:"id"`
	Slug        string          `json:"slug"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Status      WorkspaceStatus `json:"status"`

	// EnabledLanguages is the ordered set of languages the workspace
	// serves. English is always a member.
	EnabledLanguages []Language `json:"enabled_languages"`
	DefaultLanguage  Language   `json:"default_language"`

	// HideLanguageSwitcher hides the language selector on the rendered
	// site even when more than one language is enabled
	HideLanguageSwitcher bool `json:"hide_language_switcher"`

	// Theme is nil when the workspace uses platform defaults
	Theme *ThemeOverride `json:"theme_override,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsActive reports whether the workspace serves traffic
func (w *Workspace) IsActive() bool {
	return w.Status == WorkspaceActive
}

// normalizeLanguages drops unknown codes and duplicates, keeps order,
// and guarantees English membership. A nil or empty input yields just
// English.
func normalizeLanguages(langs []Language) []Language {
	out := make([]Language, 0, len(langs)+1)
	seen := make(map[Language]bool, len(langs)+1)
	for _, l := range langs {
		if !l.IsValid() || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	if !seen[LangEnglish] {
		out = append([]Language{LangEnglish}, out...)
	}
	return out
}

// Domain binds a normalized hostname to a workspace
type Domain struct {
	ID          string    `json:"id"`
	WorkspaceID string    `json:"workspace_id"`
	Hostname    string    `json:"hostname"`
	IsPrimary   bool      `json:"is_primary"`
	CreatedAt   time.Time `json:"created_at"`
}

// Outcome classifies a hostname resolution
type Outcome string

const (
	// OutcomeActive means the request reached a serving workspace
	OutcomeActive Outcome = "active"

	// OutcomeDisabled means the hostname maps to a workspace that is
	// suspended; the request must not be served under another tenant
	OutcomeDisabled Outcome = "disabled"

	// OutcomeUnresolved means no workspace matched, not even the default
	OutcomeUnresolved Outcome = "unresolved"
)

// Resolution is the result of resolving a request hostname
type Resolution struct {
	// Hostname is the normalized form that was looked up
	Hostname string `json:"hostname"`

	// Workspace is the matched workspace, nil when unresolved
	Workspace *Workspace `json:"workspace,omitempty"`

	Outcome Outcome `json:"outcome"`

	// Fallback is true when the hostname had no mapping and the default
	// workspace answered instead
	Fallback bool `json:"fallback"`
}

// Store errors
var (
	ErrWorkspaceNotFound = errors.New("workspace not found")
	ErrDomainNotFound    = errors.New("domain not found")
	ErrDuplicateSlug     = errors.New("workspace slug already in use")
	ErrDuplicateHostname = errors.New("hostname already mapped to a workspace")
	ErrInvalidHostname   = errors.New("hostname is empty after normalization")
)
