package preview

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/matiasleandrokruk/parley/internal/domain/conversation"
)

var errNoRows = errors.New("csv has no rows")

func (a *Adapter) previewCSV(att Attachment) (conversation.ContentBlock, error) {
	raw, err := a.Decode(att)
	if err != nil {
		return conversation.ContentBlock{}, err
	}
	if !utf8.Valid(raw) {
		return conversation.ContentBlock{}, errors.New("csv is not valid UTF-8")
	}

	rows, err := readRows(raw, a.cfg.CSVRowLimit)
	if err != nil {
		return conversation.ContentBlock{}, err
	}
	rendered, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return conversation.ContentBlock{}, fmt.Errorf("render csv: %w", err)
	}
	return conversation.TextBlock(fmt.Sprintf("CSV Preview of %s:\n%s", displayName(att), rendered)), nil
}

// readRows parses at most limit records; ragged rows are accepted.
func readRows(raw []byte, limit int) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	rows := make([][]string, 0, min(limit, 64))
	for len(rows) < limit {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return nil, errNoRows
	}
	return rows, nil
}

func (a *Adapter) previewText(att Attachment) (conversation.ContentBlock, error) {
	raw, err := a.Decode(att)
	if err != nil {
		return conversation.ContentBlock{}, err
	}
	if !utf8.Valid(raw) {
		return conversation.ContentBlock{}, errors.New("file is not valid UTF-8 text")
	}
	text := truncateRunes(string(raw), a.cfg.TextCharLimit)
	if strings.TrimSpace(text) == "" {
		return conversation.ContentBlock{}, ErrEmptyPayload
	}
	return conversation.TextBlock(fmt.Sprintf("Content of %s:\n%s", displayName(att), text)), nil
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
