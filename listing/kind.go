package listing

import (
	"fmt"
	"strings"
)

// Kind is the listing vertical a session browses. Each kind has its own
// remote resources and its own rule for labelling markers.
type Kind int

const (
	KindResidential Kind = iota
	KindCommercial
)

const DefaultCommercialCategory = "Commercial Project"

var Kinds = []Kind{KindResidential, KindCommercial}

// ParseKind accepts "residential" or "commercial"; the empty string is residential.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "residential":
		return KindResidential, nil
	case "commercial":
		return KindCommercial, nil
	}
	return 0, fmt.Errorf("unknown listing kind %q", s)
}

func (k Kind) String() string {
	switch k {
	case KindResidential:
		return "residential"
	case KindCommercial:
		return "commercial"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k Kind) DefaultCategory() string {
	if k == KindCommercial {
		return DefaultCommercialCategory
	}
	return DefaultMarkerCategory
}

// Category labels a marker: residential pins use the first project type,
// commercial pins the project description. fallback replaces the kind's
// default label when set.
func (k Kind) Category(p Project, fallback string) string {
	if fallback == "" {
		fallback = k.DefaultCategory()
	}
	switch k {
	case KindCommercial:
		if strings.TrimSpace(p.AboutProject) != "" {
			return p.AboutProject
		}
	default:
		if len(p.ProjectType) > 0 && p.ProjectType[0] != "" {
			return p.ProjectType[0]
		}
	}
	return fallback
}
