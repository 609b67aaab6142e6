package transfer

import (
	"encoding/csv"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/sitecost/pkg/core"
)

// CSVHeader is the header row written by WriteCSV.
var CSVHeader = []string{"id", "date", "group", "category", "amount", "note"}

// WriteCSV writes one row per entry.
func WriteCSV(w io.Writer, entries []core.Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, e := range entries {
		row := []string{e.ID, e.Date.String(), e.Group, e.Category, e.Amount.String(), e.Note}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write entry %s: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteYAML renders the bundle as block-style YAML with the same field
// order as the JSON form.
func WriteYAML(w io.Writer, b Bundle) error {
	data, err := Marshal(b)
	if err != nil {
		return err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return fmt.Errorf("failed to convert bundle: %w", err)
	}
	blockStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

// blockStyle drops the flow and quoting styles inherited from JSON.
func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
