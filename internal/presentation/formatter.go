package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
	}
}

// FormatScan writes a scan result as JSON
func (f *Formatter) FormatScan(scan ScanDTO) error {
	return f.encode(scan)
}

// FormatFolders writes a folder listing as JSON
func (f *Formatter) FormatFolders(folders []FolderDTO) error {
	return f.encode(folders)
}

// FormatFoldersText writes one "kind name on|off" row per folder.
func (f *Formatter) FormatFoldersText(folders []FolderDTO) error {
	width := 0
	for _, d := range folders {
		width = max(width, len(d.Name))
	}
	for _, d := range folders {
		state := "off"
		if d.Enabled {
			state = "on"
		}
		line := fmt.Sprintf("%-4s  %-*s  %s", d.Kind, width, d.Name, state)
		if _, err := fmt.Fprintln(f.writer, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}

func (f *Formatter) encode(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
