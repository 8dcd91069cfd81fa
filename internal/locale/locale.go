// Package locale translates notification text. Translations are embedded so the
// binary works from any directory.
package locale

import (
	"embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed lang/*.yaml
var langFS embed.FS

const Fallback = "zh_TW"

type Locale struct {
	translations map[string]string
	locale       string
}

// Detect resolves "auto" (or empty) from LANG, LC_ALL and LC_MESSAGES, in that order.
// Anything else is returned unchanged.
func Detect(configured string) string {
	if configured != "" && configured != "auto" {
		return configured
	}
	for _, env := range []string{"LANG", "LC_ALL", "LC_MESSAGES"} {
		if v := os.Getenv(env); v != "" {
			if code := strings.Split(v, ".")[0]; code != "" {
				return code
			}
		}
	}
	return Fallback
}

// Load reads an embedded locale file.
func Load(locale string) (*Locale, error) {
	data, err := langFS.ReadFile("lang/" + locale + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown locale %s: %w", locale, err)
	}

	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse locale %s: %w", locale, err)
	}

	return &Locale{translations: translations, locale: locale}, nil
}

// MustLoad loads locale, falling back to zh_TW when it is unknown.
func MustLoad(locale string) *Locale {
	l, err := Load(Detect(locale))
	if err == nil {
		return l
	}
	l, err = Load(Fallback)
	if err != nil {
		panic(err)
	}
	return l
}

// T translates key, formatting params with fmt.Sprintf. Unknown keys come back as-is.
func (l *Locale) T(key string, params ...interface{}) string {
	if l == nil {
		return key
	}
	translation, ok := l.translations[key]
	if !ok {
		return key
	}
	if len(params) > 0 {
		return fmt.Sprintf(translation, params...)
	}
	return translation
}

func (l *Locale) Code() string {
	if l == nil {
		return Fallback
	}
	return l.locale
}
