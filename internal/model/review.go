package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const (
	AttrPurpose   = "purpose"
	AttrVibe      = "vibe"
	AttrCompanion = "companion"
	AttrFood      = "food"
)

// Attributes is the fixed set of category attributes extracted from a review,
// in the order embedding requests are emitted.
var Attributes = []string{AttrPurpose, AttrVibe, AttrCompanion, AttrFood}

func IsAttribute(name string) bool {
	for _, attr := range Attributes {
		if attr == name {
			return true
		}
	}
	return false
}

// DefaultCategories returns the mapping attached to a review the extraction
// batch produced no usable result for.
func DefaultCategories() map[string]string {
	out := make(map[string]string, len(Attributes))
	for _, attr := range Attributes {
		out[attr] = ""
	}
	return out
}

// Review is one crawled review. Categories is nil until the category merge
// runs and Embeddings is nil until the embedding merge runs. Fields the
// pipeline does not know about are kept in Extra and written back unchanged.
type Review struct {
	ID         string
	Content    string
	PlaceID    string
	Categories map[string]string
	Embeddings map[string][]float32
	Extra      map[string]json.RawMessage
}

var reviewFields = map[string]bool{
	"id":         true,
	"content":    true,
	"placeId":    true,
	"categories": true,
	"embeddings": true,
}

func (r *Review) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	var err error
	if r.ID, err = decodeScalar(raw["id"]); err != nil {
		return fmt.Errorf("decode review id: %w", err)
	}
	if r.PlaceID, err = decodeScalar(raw["placeId"]); err != nil {
		return fmt.Errorf("decode review placeId: %w", err)
	}
	if v, ok := raw["content"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &r.Content); err != nil {
			return fmt.Errorf("decode review content: %w", err)
		}
	}
	if v, ok := raw["categories"]; ok && !isNull(v) {
		cats, err := DecodeCategories(v)
		if err != nil {
			return fmt.Errorf("decode review categories: %w", err)
		}
		r.Categories = cats
	}
	if v, ok := raw["embeddings"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &r.Embeddings); err != nil {
			return fmt.Errorf("decode review embeddings: %w", err)
		}
	}
	for k, v := range raw {
		if reviewFields[k] {
			continue
		}
		if r.Extra == nil {
			r.Extra = make(map[string]json.RawMessage)
		}
		r.Extra[k] = v
	}
	return nil
}

func (r Review) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		if !reviewFields[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	write := func(key string, value interface{}) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(key)
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(vb)
		return nil
	}
	if err := write("id", r.ID); err != nil {
		return nil, err
	}
	if err := write("content", r.Content); err != nil {
		return nil, err
	}
	if r.PlaceID != "" {
		if err := write("placeId", r.PlaceID); err != nil {
			return nil, err
		}
	}
	for _, k := range keys {
		if err := write(k, r.Extra[k]); err != nil {
			return nil, err
		}
	}
	if r.Categories != nil {
		if err := write("categories", r.Categories); err != nil {
			return nil, err
		}
	}
	if r.Embeddings != nil {
		if err := write("embeddings", r.Embeddings); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DecodeCategories reads an attribute mapping produced by the extraction
// model. Unknown attributes are dropped, non-string values are stringified
// and every known attribute is present in the result.
func DecodeCategories(data []byte) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := DefaultCategories()
	for _, attr := range Attributes {
		v, ok := raw[attr]
		if !ok || isNull(v) {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[attr] = strings.TrimSpace(s)
			continue
		}
		var list []string
		if err := json.Unmarshal(v, &list); err == nil {
			out[attr] = strings.TrimSpace(strings.Join(list, ", "))
			continue
		}
		out[attr] = strings.TrimSpace(string(v))
	}
	return out, nil
}

func decodeScalar(v json.RawMessage) (string, error) {
	if len(v) == 0 || isNull(v) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func isNull(v json.RawMessage) bool {
	return string(bytes.TrimSpace(v)) == "null"
}
