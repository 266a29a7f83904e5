package identity

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
)

// Category scopes identity-map keys so that, say, a PatientID that happens
// to equal a PatientName never shares a pseudonym with it.
type Category string

const (
	CategoryUID  Category = "uid"
	CategoryName Category = "name"
	CategoryID   Category = "id"
	CategoryText Category = "text"
)

// counterPrefixes name the placeholder series per category.
var counterPrefixes = map[Category]string{
	CategoryName: "ANON",
	CategoryID:   "ID",
	CategoryText: "TEXT",
}

type key struct {
	category Category
	original string
}

// Map is the run-scoped pseudonym table. The same original value always
// yields the same replacement within one run; nothing is persisted.
// Safe for concurrent use.
type Map struct {
	mu       sync.Mutex
	salt     string
	values   map[key]string
	counters map[Category]int
}

// NewMap creates an empty identity map. With salt == "" a random run salt
// is generated, making UID replacements unique to this run.
func NewMap(salt string) *Map {
	if salt == "" {
		salt = randomSalt()
	}
	return &Map{
		salt:     salt,
		values:   make(map[key]string),
		counters: make(map[Category]int),
	}
}

func randomSalt() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// UID returns the pseudonymous UID for an original UID, generating and
// remembering a fresh one on first sight.
func (m *Map) UID(original string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{category: CategoryUID, original: original}
	if v, ok := m.values[k]; ok {
		return v
	}
	v := deriveUID(original, m.salt)
	m.values[k] = v
	return v
}

// Placeholder returns the counter-based replacement for a name, ID, or
// free-text value, reusing the prior replacement for repeated originals.
func (m *Map) Placeholder(cat Category, original string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{category: cat, original: original}
	if v, ok := m.values[k]; ok {
		return v
	}
	m.counters[cat]++
	v := fmt.Sprintf("%s-%06d", counterPrefixes[cat], m.counters[cat])
	m.values[k] = v
	return v
}

// Len reports how many distinct original values have been remapped.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}
