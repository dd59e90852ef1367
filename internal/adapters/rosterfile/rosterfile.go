// Package rosterfile reads and writes candidate rosters on disk. It is the
// configured fallback when the service roster cannot be loaded.
//
// Files are YAML (.yaml, .yml) or JSON with comments and trailing commas
// (.json, .jsonc). Both use the service shape: role name -> candidate list.
package rosterfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/okian/tally/internal/domain/model"
)

// Sentinel errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported roster file format")
	ErrEmpty             = errors.New("roster file defines no roles")
)

// Format is a roster file encoding.
type Format int

const (
	FormatYAML Format = iota
	FormatJSONC
)

// FormatOf picks the format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json", ".jsonc":
		return FormatJSONC, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Load reads the roster at path.
func Load(path string) (model.Roster, error) {
	format, err := FormatOf(path)
	if err != nil {
		return model.Roster{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Roster{}, fmt.Errorf("reading %s: %w", path, err)
	}
	roster, err := Parse(data, format)
	if err != nil {
		return model.Roster{}, fmt.Errorf("%s: %w", path, err)
	}
	return roster, nil
}

// Parse decodes roster bytes in the given format.
func Parse(data []byte, format Format) (model.Roster, error) {
	var roster model.Roster
	switch format {
	case FormatYAML:
		var raw map[string][]string
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return model.Roster{}, fmt.Errorf("parsing roster yaml: %w", err)
		}
		entries := make(map[model.Role][]string, len(raw))
		for name, names := range raw {
			role, ok := model.ParseRole(name)
			if !ok {
				continue
			}
			entries[role] = names
		}
		roster = model.NewRoster(entries)
	case FormatJSONC:
		if err := roster.UnmarshalJSON(jsonc.ToJSON(data)); err != nil {
			return model.Roster{}, fmt.Errorf("parsing roster json: %w", err)
		}
	default:
		return model.Roster{}, ErrUnsupportedFormat
	}
	if roster.IsEmpty() {
		return model.Roster{}, ErrEmpty
	}
	return roster, nil
}

// Marshal encodes a roster as YAML with roles in display order.
func Marshal(roster model.Roster) ([]byte, error) {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	for _, role := range roster.Roles() {
		list := &yaml.Node{Kind: yaml.SequenceNode}
		for _, name := range roster.Candidates(role) {
			list.Content = append(list.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: name})
		}
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: role.String()},
			list,
		)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encoding roster yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding roster yaml: %w", err)
	}
	return buf.Bytes(), nil
}

// Save writes roster to path in the format its extension names, so Load can
// read it back.
func Save(path string, roster model.Roster) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}
	var data []byte
	switch format {
	case FormatYAML:
		data, err = Marshal(roster)
	case FormatJSONC:
		data, err = json.MarshalIndent(roster, "", "  ")
		if err != nil {
			err = fmt.Errorf("encoding roster json: %w", err)
		}
		data = append(data, '\n')
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // roster files are not secret
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
