package snapshot

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/hashicorp/go-version"
)

// oldestVersion is the first format that can still be upgraded.
const oldestVersion = "5"

type document map[string]json.RawMessage

// upgradeSteps rewrite a document from the keyed major version to the next.
var upgradeSteps = map[int]func(document) error{
	5: upgradeV5,
	6: upgradeV6,
}

// Version reads the format version of a snapshot without decoding it.
func Version(data []byte) (*version.Version, error) {
	var head struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	if head.Version == "" {
		return nil, fmt.Errorf("snapshot has no version")
	}
	v, err := version.NewVersion(head.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid snapshot version %q: %w", head.Version, err)
	}
	return v, nil
}

// NeedsUpgrade reports whether data is older than CurrentVersion.
func NeedsUpgrade(data []byte) (bool, error) {
	v, err := Version(data)
	if err != nil {
		return false, err
	}
	return v.LessThan(version.Must(version.NewVersion(CurrentVersion))), nil
}

// upgrade applies upgrade steps until the document is current.
func upgrade(data []byte) ([]byte, error) {
	v, err := Version(data)
	if err != nil {
		return nil, err
	}
	current := version.Must(version.NewVersion(CurrentVersion))
	oldest := version.Must(version.NewVersion(oldestVersion))
	switch {
	case v.GreaterThan(current):
		return nil, fmt.Errorf("%w: %s > %s", ErrTooNew, v, current)
	case v.LessThan(oldest):
		return nil, fmt.Errorf("snapshot version %s is too old, the oldest supported is %s", v, oldest)
	case v.Equal(current):
		return data, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	major := v.Segments()[0]
	for major < current.Segments()[0] {
		step, ok := upgradeSteps[major]
		if !ok {
			return nil, fmt.Errorf("no upgrade from snapshot version %d", major)
		}
		if err := step(doc); err != nil {
			return nil, fmt.Errorf("failed to upgrade snapshot from version %d: %w", major, err)
		}
		major++
		doc["version"], _ = json.Marshal(strconv.Itoa(major))
	}
	return json.Marshal(doc)
}

// upgradeV5 keys enums by schema and name and turns the label object into
// an ordered list.
func upgradeV5(doc document) error {
	raw, ok := doc["enums"]
	if !ok {
		return nil
	}
	var enums map[string]struct {
		Name   string          `json:"name"`
		Schema string          `json:"schema"`
		Values json.RawMessage `json:"values"`
	}
	if err := json.Unmarshal(raw, &enums); err != nil {
		return fmt.Errorf("enums: %w", err)
	}
	out := map[string]Enum{}
	for key, e := range enums {
		if e.Name == "" {
			e.Name = key
		}
		if e.Schema == "" {
			e.Schema = "public"
		}
		labels, _, err := orderedObject(e.Values)
		if err != nil {
			return fmt.Errorf("enum %q values: %w", key, err)
		}
		out[e.Schema+"."+e.Name] = Enum{Name: e.Name, Schema: e.Schema, Values: labels}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	doc["enums"] = data
	return nil
}

// upgradeV6 turns index column name lists into column objects.
func upgradeV6(doc document) error {
	raw, ok := doc["tables"]
	if !ok {
		return nil
	}
	var tables map[string]map[string]json.RawMessage
	if err := json.Unmarshal(raw, &tables); err != nil {
		return fmt.Errorf("tables: %w", err)
	}
	for name, table := range tables {
		rawIndexes, ok := table["indexes"]
		if !ok {
			continue
		}
		var indexes map[string]map[string]json.RawMessage
		if err := json.Unmarshal(rawIndexes, &indexes); err != nil {
			return fmt.Errorf("table %q indexes: %w", name, err)
		}
		for idxName, idx := range indexes {
			var cols []string
			if err := json.Unmarshal(idx["columns"], &cols); err != nil {
				// already in object form
				continue
			}
			objs := make([]IndexColumn, len(cols))
			for i, c := range cols {
				objs[i] = IndexColumn{Expression: c, Asc: true}
			}
			data, err := json.Marshal(objs)
			if err != nil {
				return err
			}
			idx["columns"] = data
			indexes[idxName] = idx
		}
		data, err := json.Marshal(indexes)
		if err != nil {
			return err
		}
		table["indexes"] = data
	}
	data, err := json.Marshal(tables)
	if err != nil {
		return err
	}
	doc["tables"] = data
	return nil
}
