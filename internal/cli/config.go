package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom/pkg/tag"
	"gopkg.in/yaml.v3"
)

// Config is the optional YAML run configuration.
type Config struct {
	// Salt seeds UID derivation. With the same salt two runs over the same
	// input produce the same replacement UIDs; empty means a random
	// run-scoped salt.
	Salt string `yaml:"salt"`

	// Workers processes that many series concurrently. Zero or one keeps
	// the run single-threaded.
	Workers int `yaml:"workers"`

	// PrivateWhitelist lists private tags exempt from removal, as
	// "GGGG,EEEE" hex pairs.
	PrivateWhitelist []string `yaml:"private_whitelist"`

	// RetainTags lists standard tags to keep despite the profile, same
	// "GGGG,EEEE" form. Mandatory identifying tags cannot be retained.
	RetainTags []string `yaml:"retain_tags"`
}

// LoadConfig reads and parses the YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("could not parse config: %w", err)
	}
	return &cfg, nil
}

// parseTag parses "GGGG,EEEE" into a tag.
func parseTag(s string) (tag.Tag, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 {
		return tag.Tag{}, fmt.Errorf("invalid tag %q: want GGGG,EEEE", s)
	}
	group, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 16, 16)
	if err != nil {
		return tag.Tag{}, fmt.Errorf("invalid tag group in %q: %w", s, err)
	}
	element, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 16, 16)
	if err != nil {
		return tag.Tag{}, fmt.Errorf("invalid tag element in %q: %w", s, err)
	}
	return tag.Tag{Group: uint16(group), Element: uint16(element)}, nil
}
