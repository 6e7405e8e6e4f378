package mailmerge

import (
	"regexp"
	"strconv"
)

var idSchemeRE = regexp.MustCompile(`^([A-Za-z_]+)(\d+)$`)

// UniqueIDManager hands out identifiers that are guaranteed not to collide
// with any identifier previously issued or observed in the same document.
// One instance is owned by each loaded document; it is not safe for
// concurrent use and is never shared between documents.
//
// Two kinds of identifiers are managed: textual schemes such as relationship
// IDs ("rId7"), and bare integer counters keyed by type ("header", "footer",
// "bookmark", ...).
type UniqueIDManager struct {
	counters map[string]int
}

// NewUniqueIDManager creates an empty manager.
func NewUniqueIDManager() *UniqueIDManager {
	return &UniqueIDManager{counters: make(map[string]int)}
}

// ObserveIDStr records an existing identifier so it is never issued again.
func (m *UniqueIDManager) ObserveIDStr(id string) error {
	scheme, n, err := splitIDScheme(id)
	if err != nil {
		return err
	}
	if n > m.counters[scheme] {
		m.counters[scheme] = n
	}
	return nil
}

// RegisterIDStr allocates a fresh identifier in the same textual scheme as
// existing, distinct from every identifier observed or issued so far, and
// records it as observed.
func (m *UniqueIDManager) RegisterIDStr(existing string) (string, error) {
	scheme, n, err := splitIDScheme(existing)
	if err != nil {
		return "", err
	}
	if n > m.counters[scheme] {
		m.counters[scheme] = n
	}
	m.counters[scheme]++
	return scheme + strconv.Itoa(m.counters[scheme]), nil
}

// RegisterID allocates the next unused integer for idType. A non-zero seed
// first raises the counter to at least seed, which is how pre-existing
// numbered parts are accounted for before new numbers are handed out.
func (m *UniqueIDManager) RegisterID(idType string, seed int) int {
	if seed > m.counters[idType] {
		m.counters[idType] = seed
	}
	m.counters[idType]++
	return m.counters[idType]
}

func splitIDScheme(id string) (string, int, error) {
	match := idSchemeRE.FindStringSubmatch(id)
	if match == nil {
		return "", 0, &IDSchemeError{ID: id}
	}
	n, err := strconv.Atoi(match[2])
	if err != nil {
		return "", 0, &IDSchemeError{ID: id}
	}
	return match[1], n, nil
}
