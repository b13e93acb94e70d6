package policy

import (
	"errors"
	"os"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

var ERR_POLICY_INVALID = errors.New("invalid policy rule")

// File is the on-disk layout of a policy file.
type File struct {
	Banned         []string  `yaml:"banned"`
	Hostile        []string  `yaml:"hostile"`
	Shunned        []string  `yaml:"shunned"`
	BannedServents []string  `yaml:"banned_servents"`
	Spam           SpamRules `yaml:"spam"`
	Evil           EvilRules `yaml:"evil"`
}

// SpamRules flag queries and hits as spam.
type SpamRules struct {
	// SHA1 lists content digests, as urn:sha1 or bare base32.
	SHA1    []string `yaml:"sha1"`
	Vendors []string `yaml:"vendors"`
	// Terms are matched case-insensitively against query text.
	Terms []string `yaml:"terms"`
}

// EvilRules flag hits whose file names contain one of Names, ignoring case.
type EvilRules struct {
	Names []string `yaml:"names"`
}

// ReadFile loads and parses a policy file.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, oops.Wrapf(err, "failed to read policy file %s", path)
	}
	return Parse(data)
}

// Parse decodes a policy document.
func Parse(data []byte) (File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, oops.Wrapf(err, "failed to parse policy")
	}
	return f, nil
}
