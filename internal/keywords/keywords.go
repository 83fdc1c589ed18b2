package keywords

import (
	_ "embed"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/DeafMist/kpop-radar/backend/internal/models"
)

//go:embed aliases.yaml
var bundledAliases []byte

// Alias maps an English keyword to its Korean form.
type Alias struct {
	EN string `yaml:"en"`
	KO string `yaml:"ko"`
}

type aliasFile struct {
	Aliases []Alias `yaml:"aliases"`
}

// Normalizer resolves keyword input to the canonical bilingual pair using an
// ordered alias table. It is safe for concurrent use.
type Normalizer struct {
	aliases []Alias
	folded  []string
}

// ParseAliases reads an alias table in the bundled YAML layout.
func ParseAliases(r io.Reader) ([]Alias, error) {
	var f aliasFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode aliases: %w", err)
	}
	out := make([]Alias, 0, len(f.Aliases))
	for i, a := range f.Aliases {
		a.EN = strings.TrimSpace(a.EN)
		a.KO = strings.TrimSpace(a.KO)
		if a.EN == "" || a.KO == "" {
			return nil, fmt.Errorf("alias %d: en and ko are required", i)
		}
		out = append(out, a)
	}
	return out, nil
}

// New builds a normalizer over aliases, keeping their order.
func New(aliases []Alias) *Normalizer {
	n := &Normalizer{
		aliases: append([]Alias(nil), aliases...),
		folded:  make([]string, len(aliases)),
	}
	for i, a := range n.aliases {
		n.folded[i] = fold(a.EN)
	}
	return n
}

var defaultNormalizer = sync.OnceValue(func() *Normalizer {
	aliases, err := ParseAliases(strings.NewReader(string(bundledAliases)))
	if err != nil {
		panic(fmt.Sprintf("bundled aliases: %v", err))
	}
	return New(aliases)
})

// Default returns the normalizer over the bundled alias table.
func Default() *Normalizer {
	return defaultNormalizer()
}

// Aliases returns a copy of the alias table in lookup order.
func (n *Normalizer) Aliases() []Alias {
	return append([]Alias(nil), n.aliases...)
}

// Normalize resolves a keyword input. A bilingual pair passes through, with a
// missing side mirrored from the other. Text input goes through
// NormalizeString.
func (n *Normalizer) Normalize(in Input) models.Keyword {
	if in.Pair != nil {
		k := *in.Pair
		if k.EN == "" {
			k.EN = k.KO
		}
		if k.KO == "" {
			k.KO = k.EN
		}
		return k
	}
	return n.NormalizeString(in.Text)
}

// NormalizeString maps free text to a keyword pair. Text containing a Hangul
// syllable is the Korean side and is reverse-looked-up by exact value.
// Anything else is the English side: an exact case-insensitive key match wins,
// then the first entry where either string contains the other. Unmapped input
// is mirrored to both sides.
//
// The substring fallback is deliberately loose ("I" resolves to 블랙핑크).
// Empty input yields an empty keyword.
func (n *Normalizer) NormalizeString(raw string) models.Keyword {
	text := norm.NFC.String(strings.TrimSpace(raw))
	if text == "" {
		return models.Keyword{}
	}

	if hasHangul(text) {
		for _, a := range n.aliases {
			if a.KO == text {
				return models.Keyword{EN: a.EN, KO: text}
			}
		}
		return models.Keyword{EN: text, KO: text}
	}

	return models.Keyword{EN: text, KO: n.korean(text)}
}

func (n *Normalizer) korean(en string) string {
	key := fold(en)
	for i, f := range n.folded {
		if f == key {
			return n.aliases[i].KO
		}
	}
	for i, f := range n.folded {
		if strings.Contains(f, key) || strings.Contains(key, f) {
			return n.aliases[i].KO
		}
	}
	return en
}

func hasHangul(s string) bool {
	for _, r := range s {
		if r >= 0xAC00 && r <= 0xD7A3 {
			return true
		}
	}
	return false
}

// fold builds a fresh Caser per call; Casers are stateful.
func fold(s string) string {
	return cases.Fold().String(s)
}
