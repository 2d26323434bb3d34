// Package lexicon holds the word lists the ritual heuristics run on.
//
// Every list is data: the scorer, matcher, activity log and constancy tracker
// never hardcode words. Default returns the Spanish lists the site launched
// with; LoadFile reads a replacement from YAML or CUE.
//
// All matching is raw containment after normalisation (NFC, Spanish lower
// case). There is no stemming, so "puedo" inside a longer token still counts.
package lexicon

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// SynonymGroup is a canonical word plus the words treated as equal to it.
type SynonymGroup struct {
	Canonical string   `yaml:"canonical" json:"canonical"`
	Members   []string `yaml:"members" json:"members"`
}

// Category names a family of skills and the words that signal it.
type Category struct {
	Name  string   `yaml:"name" json:"name"`
	Words []string `yaml:"words" json:"words"`
}

// Lexicon is the complete set of word lists.
type Lexicon struct {
	// ServiceVerbs reward a submission that names a genuine act of service.
	ServiceVerbs []string `yaml:"service_verbs" json:"service_verbs"`

	// FirstPerson markers are matched as whole tokens.
	FirstPerson []string `yaml:"first_person" json:"first_person"`

	// Blocklist holds throwaway words; any containment forfeits a bonus.
	Blocklist []string `yaml:"blocklist" json:"blocklist"`

	// Synonyms are the groups the matcher treats as equal.
	Synonyms []SynonymGroup `yaml:"synonyms" json:"synonyms"`

	// Resonant words mark an activity-log entry as authentic.
	Resonant []string `yaml:"resonant" json:"resonant"`

	// DepthMarkers raise the depth of a writing in the constancy tracker.
	DepthMarkers []string `yaml:"depth_markers" json:"depth_markers"`

	// SkillCategories classify offered skills into niches, first match wins.
	SkillCategories []Category `yaml:"skill_categories" json:"skill_categories"`
}

// Default returns the lexicon used when no file is configured.
func Default() *Lexicon {
	return &Lexicon{
		ServiceVerbs: []string{
			"ayudar", "acompañar", "escuchar", "cuidar", "sostener",
			"enseñar", "guiar", "proteger", "sanar", "compartir",
		},
		FirstPerson: []string{"yo", "mi", "me", "puedo", "sé", "tengo", "ofrezco"},
		Blocklist:   []string{"test", "prueba", "demo", "hola", "hello"},
		Synonyms: []SynonymGroup{
			{Canonical: "ayuda", Members: []string{"apoyo", "asistencia", "soporte"}},
			{Canonical: "enseñar", Members: []string{"educar", "guiar", "mostrar"}},
			{Canonical: "cuidar", Members: []string{"proteger", "sostener", "acompañar"}},
			{Canonical: "tiempo", Members: []string{"disponibilidad", "presencia", "atención"}},
		},
		Resonant: []string{
			"ayuda", "acompañar", "entender", "escuchar", "comprender",
			"incluir", "accesible", "familia", "aprender", "crecer",
			"necesito", "busco", "siento", "dolor", "solo", "esperanza",
		},
		DepthMarkers: []string{
			"acompañar", "servir", "entender", "cuidar", "sostener",
			"vacío", "silencio", "presencia", "interior", "despertar",
			"¿cómo", "¿por qué", "¿para qué", "necesito", "busco",
		},
		SkillCategories: []Category{
			{Name: "acompañamiento", Words: []string{"escuchar", "acompañar", "sostener", "cuidar", "presencia"}},
			{Name: "enseñanza", Words: []string{"enseñar", "explicar", "guiar", "mostrar", "educar"}},
			{Name: "técnico", Words: []string{"programar", "diseñar", "desarrollar", "crear", "construir"}},
			{Name: "cuidado", Words: []string{"sanar", "proteger", "ayudar", "asistir", "apoyar"}},
			{Name: "creativo", Words: []string{"arte", "música", "escribir", "crear", "imaginar"}},
		},
	}
}

// Validate checks the lists the scorer cannot work without.
func (l *Lexicon) Validate() error {
	if len(l.ServiceVerbs) == 0 {
		return fmt.Errorf("lexicon: service_verbs must be non-empty")
	}
	if len(l.FirstPerson) == 0 {
		return fmt.Errorf("lexicon: first_person must be non-empty")
	}
	for i, g := range l.Synonyms {
		if g.Canonical == "" {
			return fmt.Errorf("lexicon: synonyms[%d]: canonical is required", i)
		}
	}
	for i, c := range l.SkillCategories {
		if c.Name == "" {
			return fmt.Errorf("lexicon: skill_categories[%d]: name is required", i)
		}
	}
	return nil
}

// Normalize composes text to NFC and lower-cases it with Spanish rules, so
// "ENSEÑAR" and a decomposed "enseñar" compare equal to "enseñar".
func Normalize(text string) string {
	return cases.Lower(language.Spanish).String(norm.NFC.String(text))
}

// ContainsAny reports whether the normalised text contains any of words as a
// raw substring.
func ContainsAny(text string, words []string) bool {
	t := Normalize(text)
	for _, w := range words {
		if w != "" && strings.Contains(t, Normalize(w)) {
			return true
		}
	}
	return false
}

// CountContained returns how many of words occur in text as raw substrings.
func CountContained(text string, words []string) int {
	t := Normalize(text)
	n := 0
	for _, w := range words {
		if w != "" && strings.Contains(t, Normalize(w)) {
			n++
		}
	}
	return n
}

// Tokens splits normalised text into letter/digit runs.
func Tokens(text string) []string {
	return strings.FieldsFunc(Normalize(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// HasFirstPerson reports whether any token of text is a first-person marker.
func (l *Lexicon) HasFirstPerson(text string) bool {
	markers := make(map[string]struct{}, len(l.FirstPerson))
	for _, m := range l.FirstPerson {
		markers[Normalize(m)] = struct{}{}
	}
	for _, tok := range Tokens(text) {
		if _, ok := markers[tok]; ok {
			return true
		}
	}
	return false
}

// Similar reports whether two normalised tokens are equal or pair a group's
// canonical word with one of its members. Two members of the same group are
// not similar to each other.
func (l *Lexicon) Similar(a, b string) bool {
	if a == b {
		return true
	}
	for _, g := range l.Synonyms {
		canonical := Normalize(g.Canonical)
		if (a == canonical && isMember(g, b)) || (b == canonical && isMember(g, a)) {
			return true
		}
	}
	return false
}

func isMember(g SynonymGroup, word string) bool {
	for _, m := range g.Members {
		if Normalize(m) == word {
			return true
		}
	}
	return false
}

// Categorize returns the first skill category whose words occur in text,
// or "general".
func (l *Lexicon) Categorize(text string) string {
	for _, c := range l.SkillCategories {
		if ContainsAny(text, c.Words) {
			return c.Name
		}
	}
	return "general"
}
