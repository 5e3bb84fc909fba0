package registry

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// DecodeArchive extracts the XML document from a zip payload. The
// registry ships each payload as an archive with a single .xml member.
func DecodeArchive(data []byte) ([]byte, error) {
	archive, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open payload archive: %w", err)
	}
	for _, file := range archive.File {
		if !strings.HasSuffix(strings.ToLower(file.Name), ".xml") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("open archive member %s: %w", file.Name, err)
		}
		defer rc.Close()
		doc, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("read archive member %s: %w", file.Name, err)
		}
		return doc, nil
	}
	return nil, errors.New("payload archive has no xml member")
}

// ParseRows decodes snapshot rows: every <row> element under the
// catalog root, each child element becoming one field with a
// lowercased name and trimmed text. Empty fields are dropped.
func ParseRows(doc []byte) ([]map[string]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	var rows []map[string]string
	var row map[string]string
	var field string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse snapshot rows: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if strings.EqualFold(t.Name.Local, "row") {
				row = make(map[string]string)
				field = ""
				continue
			}
			if row != nil {
				field = strings.ToLower(t.Name.Local)
			}
		case xml.CharData:
			if row != nil && field != "" {
				if text := strings.TrimSpace(string(t)); text != "" {
					row[field] += text
				}
			}
		case xml.EndElement:
			if strings.EqualFold(t.Name.Local, "row") {
				if row != nil {
					rows = append(rows, row)
				}
				row = nil
				continue
			}
			field = ""
		}
	}
}

// ParseChanges decodes the ordered change records of a delta payload.
// Each <zmiana> element carries a <TypKorekty> operation code and
// field elements suffixed Przed ("before") or Po ("after"); the suffix
// is stripped and the remaining name lowercased.
func ParseChanges(doc []byte) ([]Change, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	var changes []Change
	var fields map[string]string
	var field string
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return changes, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse change records: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if strings.EqualFold(t.Name.Local, "zmiana") {
				fields = make(map[string]string)
				field = ""
				continue
			}
			if fields != nil {
				field = t.Name.Local
			}
		case xml.CharData:
			if fields != nil && field != "" {
				if text := strings.TrimSpace(string(t)); text != "" {
					fields[field] += text
				}
			}
		case xml.EndElement:
			if strings.EqualFold(t.Name.Local, "zmiana") {
				if fields != nil {
					changes = append(changes, changeFromFields(fields))
				}
				fields = nil
				continue
			}
			field = ""
		}
	}
}

func changeFromFields(fields map[string]string) Change {
	ch := Change{Before: make(map[string]string), After: make(map[string]string)}
	for name, value := range fields {
		switch {
		case strings.EqualFold(name, "TypKorekty"):
			ch.Op = value
		case strings.HasSuffix(name, "Przed"):
			ch.Before[strings.ToLower(strings.TrimSuffix(name, "Przed"))] = value
		case strings.HasSuffix(name, "Po"):
			ch.After[strings.ToLower(strings.TrimSuffix(name, "Po"))] = value
		}
	}
	return ch
}
