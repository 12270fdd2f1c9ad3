package kb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/signalsfoundry/orrery/model"
)

// Format names a registry file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the encoding from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".toml", ".tml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unsupported registry file extension %q", filepath.Ext(path))
	}
}

// registryFile is the on-disk shape shared by both encodings.
type registryFile struct {
	Bodies []*model.BodyDefinition `json:"bodies" toml:"bodies"`
}

// LoadBodies decodes a registry document and validates every row.
// It fails on decode errors, unknown fields, and the first invalid body.
func LoadBodies(r io.Reader, format Format) ([]*model.BodyDefinition, error) {
	var payload registryFile

	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&payload); err != nil {
			return nil, fmt.Errorf("LoadBodies: decode json: %w", err)
		}
	case FormatTOML:
		dec := toml.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&payload); err != nil {
			return nil, fmt.Errorf("LoadBodies: decode toml: %w", err)
		}
	default:
		return nil, fmt.Errorf("LoadBodies: unsupported format %q", format)
	}

	defs := make([]*model.BodyDefinition, 0, len(payload.Bodies))
	for i, d := range payload.Bodies {
		if d == nil {
			return nil, fmt.Errorf("LoadBodies: body %d is empty", i)
		}
		if d.Kind == "" {
			d.Kind = model.KindPlanet
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("LoadBodies: body %d: %w", i, err)
		}
		defs = append(defs, d)
	}
	return defs, nil
}

// LoadFile reads and decodes a registry file, picking the format from its extension.
func LoadFile(path string) ([]*model.BodyDefinition, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry %q: %w", path, err)
	}
	defs, err := LoadBodies(bytes.NewReader(data), format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return defs, nil
}

// Populate replaces the KB contents with defs (see Sync).
func Populate(store *KnowledgeBase, defs []*model.BodyDefinition) (SyncResult, error) {
	if store == nil {
		return SyncResult{}, fmt.Errorf("Populate: kb is nil")
	}
	return store.Sync(defs)
}
