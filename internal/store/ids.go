package store

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
)

// IDKind classifies an identifier into one of the recognized families.
type IDKind int

const (
	IDKindUnknown IDKind = iota
	// IDKindAnonymous identifies nodes with no document-visible identifier.
	IDKindAnonymous
	// IDKindLicenseRef identifies document-local license references.
	IDKindLicenseRef
	// IDKindDocumentRef identifies external document references.
	IDKindDocumentRef
	// IDKindElementRef identifies document elements (SPDXRef-).
	IDKindElementRef
	// IDKindListed identifies externally curated catalog entries. Never
	// generated and never counted.
	IDKindListed
)

var idKindNames = map[IDKind]string{
	IDKindUnknown:     "unknown",
	IDKindAnonymous:   "anonymous",
	IDKindLicenseRef:  "license-ref",
	IDKindDocumentRef: "document-ref",
	IDKindElementRef:  "element-ref",
	IDKindListed:      "listed",
}

func (k IDKind) String() string {
	if name, ok := idKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("IDKind(%d)", int(k))
}

// ParseIDKind is the inverse of IDKind.String.
func ParseIDKind(s string) (IDKind, error) {
	for kind, name := range idKindNames {
		if strings.EqualFold(s, name) {
			return kind, nil
		}
	}
	return IDKindUnknown, fmt.Errorf("unknown identifier kind %q", s)
}

// Identifier prefixes.
const (
	AnonPrefix        = "__anon__"
	LicenseRefPrefix  = "LicenseRef-"
	DocumentRefPrefix = "DocumentRef-"
	ElementRefPrefix  = "SPDXRef-"

	generatedMarker = "gnrtd"
)

// generatedFamilies lists the families with a counter, in the order their
// patterns are checked.
var generatedFamilies = []IDKind{
	IDKindAnonymous,
	IDKindLicenseRef,
	IDKindDocumentRef,
	IDKindElementRef,
}

func familyPrefix(kind IDKind) string {
	switch kind {
	case IDKindAnonymous:
		return AnonPrefix + generatedMarker
	case IDKindLicenseRef:
		return LicenseRefPrefix + generatedMarker
	case IDKindDocumentRef:
		return DocumentRefPrefix + generatedMarker
	case IDKindElementRef:
		return ElementRefPrefix + generatedMarker
	}
	return ""
}

// Generated identifiers end with the family prefix and a decimal suffix. The
// document-scoped families may carry a namespace in front. Matching ignores
// case like every identifier comparison.
var generatedPatterns = map[IDKind]*regexp.Regexp{
	IDKindAnonymous:   regexp.MustCompile("(?i)^" + regexp.QuoteMeta(familyPrefix(IDKindAnonymous)) + `(\d+)$`),
	IDKindLicenseRef:  regexp.MustCompile("(?i)" + regexp.QuoteMeta(familyPrefix(IDKindLicenseRef)) + `(\d+)$`),
	IDKindDocumentRef: regexp.MustCompile("(?i)" + regexp.QuoteMeta(familyPrefix(IDKindDocumentRef)) + `(\d+)$`),
	IDKindElementRef:  regexp.MustCompile("(?i)" + regexp.QuoteMeta(familyPrefix(IDKindElementRef)) + `(\d+)$`),
}

// ListedChecker reports whether id names an externally curated entry.
type ListedChecker func(id string) bool

// ClassifyID returns the family id belongs to by prefix inspection,
// ignoring case.
func ClassifyID(id string, listed ListedChecker) IDKind {
	lower := strings.ToLower(id)
	switch {
	case strings.HasPrefix(lower, strings.ToLower(AnonPrefix)):
		return IDKindAnonymous
	case strings.Contains(lower, strings.ToLower(DocumentRefPrefix)):
		return IDKindDocumentRef
	case strings.Contains(lower, strings.ToLower(LicenseRefPrefix)):
		return IDKindLicenseRef
	case listed != nil && listed(id):
		return IDKindListed
	case strings.Contains(lower, strings.ToLower(ElementRefPrefix)):
		return IDKindElementRef
	}
	return IDKindUnknown
}

// idCounter is one family's monotonic counter.
type idCounter struct {
	mu   sync.Mutex
	next uint64
}

func (c *idCounter) take() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.next
	c.next++
	return n
}

// advance moves the counter past seen. It never moves backwards.
func (c *idCounter) advance(seen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seen >= c.next {
		c.next = seen + 1
	}
}

func (c *idCounter) peek() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

// idGenerator owns one counter per generated family.
type idGenerator struct {
	counters map[IDKind]*idCounter
}

func newIDGenerator() *idGenerator {
	g := &idGenerator{counters: make(map[IDKind]*idCounter, len(generatedFamilies))}
	for _, kind := range generatedFamilies {
		g.counters[kind] = &idCounter{}
	}
	return g
}

// next returns and consumes the next identifier of kind.
func (g *idGenerator) next(kind IDKind) (string, error) {
	c, ok := g.counters[kind]
	if !ok {
		return "", fmt.Errorf("next id: %w: %s", ErrUnsupportedIDKind, kind)
	}
	return familyPrefix(kind) + strconv.FormatUint(c.take(), 10), nil
}

// observe advances the counter of any family whose pattern id matches so a
// later next never returns id.
func (g *idGenerator) observe(id string) {
	for _, kind := range generatedFamilies {
		m := generatedPatterns[kind].FindStringSubmatch(id)
		if m == nil {
			continue
		}
		n, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil || n == math.MaxUint64 {
			// Suffix too large to ever be generated.
			continue
		}
		g.counters[kind].advance(n)
	}
}
