package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"emperror.dev/errors"
)

// LanguageBytes is one entry of a LanguageMap
type LanguageBytes struct {
	Language string
	Bytes    int64
}

// LanguageMap is the language byte counts of a single repository
// it keeps the key order github answered with, which drives the order of the aggregated output
type LanguageMap []LanguageBytes

// UnmarshalJSON decode a JSON object while keeping the order of its keys
// a key present twice keeps its first position and its last value
func (m *LanguageMap) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return errors.WrapIf(err, "unable to decode language map")
	}

	if tok == nil {
		*m = nil
		return nil
	}

	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return errors.New("language map must be a JSON object")
	}

	languages := LanguageMap{}
	positions := make(map[string]int)

	for dec.More() {
		keyToken, err := dec.Token()
		if err != nil {
			return errors.WrapIf(err, "unable to decode language name")
		}

		language, ok := keyToken.(string)
		if !ok {
			return errors.New("language name must be a string")
		}

		var count json.Number
		if err := dec.Decode(&count); err != nil {
			return errors.WrapIf(err, "unable to decode byte count for "+language)
		}

		byteCount, err := count.Int64()
		if err != nil || byteCount < 0 {
			return errors.New("invalid byte count for " + language + ": " + count.String())
		}

		if i, seen := positions[language]; seen {
			languages[i].Bytes = byteCount
			continue
		}

		positions[language] = len(languages)
		languages = append(languages, LanguageBytes{Language: language, Bytes: byteCount})
	}

	// consume the closing brace
	if _, err := dec.Token(); err != nil {
		return errors.WrapIf(err, "unable to decode language map")
	}

	*m = languages
	return nil
}

// MarshalJSON write the map back as a JSON object in the same order
func (m LanguageMap) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, l := range m {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(l.Language)
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatInt(l.Bytes, 10))
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// LanguageRecord is the external representation of one aggregated language
type LanguageRecord struct {
	Language string `json:"language"`
	Value    int64  `json:"value"`
}

// LanguageTotals sum the byte counts of several LanguageMap
// languages are kept in the order they were first seen
type LanguageTotals struct {
	order  []string
	totals map[string]int64
}

func NewLanguageTotals() *LanguageTotals {
	return &LanguageTotals{
		order:  make([]string, 0),
		totals: make(map[string]int64),
	}
}

// Add merge one repository languages into the totals
func (t *LanguageTotals) Add(languages LanguageMap) {
	for _, l := range languages {
		if _, seen := t.totals[l.Language]; !seen {
			t.order = append(t.order, l.Language)
		}

		t.totals[l.Language] = saturatingAdd(t.totals[l.Language], l.Bytes)
	}
}

// saturatingAdd add two non negative counts, the sum stops at math.MaxInt64
func saturatingAdd(a, b int64) int64 {
	if a > math.MaxInt64-b {
		return math.MaxInt64
	}

	return a + b
}

func (t *LanguageTotals) Len() int {
	return len(t.order)
}

// Records never return nil, an empty aggregation is encoded as []
func (t *LanguageTotals) Records() []LanguageRecord {
	records := make([]LanguageRecord, 0, len(t.order))

	for _, language := range t.order {
		records = append(records, LanguageRecord{Language: language, Value: t.totals[language]})
	}

	return records
}

// LanguageAggregate is the result of the cross repositories aggregation
// Skipped is only filled when repositories without languages are allowed to be skipped
type LanguageAggregate struct {
	Records []LanguageRecord
	Skipped []string
}
