package policetocitizen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Record is one dispatch call exactly as the portal returned it. The
// schema differs between deployments so fields are kept as an ordered
// name -> raw value mapping instead of a struct; serializing a record
// reproduces the original field order and values byte for byte.
type Record struct {
	keys   []string
	values map[string]json.RawMessage
}

func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("call record is not a JSON object")
	}

	r.keys = nil
	r.values = map[string]json.RawMessage{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v in call record", tok)
		}

		var value json.RawMessage
		err = dec.Decode(&value)
		if err != nil {
			return err
		}

		if _, seen := r.values[key]; !seen {
			r.keys = append(r.keys, key)
		}
		r.values[key] = value
	}

	_, err = dec.Token()
	return err
}

func (r Record) MarshalJSON() ([]byte, error) {
	var out bytes.Buffer
	out.WriteByte('{')
	for i, key := range r.keys {
		if i > 0 {
			out.WriteByte(',')
		}
		name, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		out.Write(name)
		out.WriteByte(':')
		out.Write(r.values[key])
	}
	out.WriteByte('}')
	return out.Bytes(), nil
}

func (r Record) Keys() []string {
	return r.keys
}

func (r Record) Get(key string) (json.RawMessage, bool) {
	value, ok := r.values[key]
	return value, ok
}

// Text renders a field for display. Strings come back unquoted,
// everything else as its JSON form; missing fields come back empty.
func (r Record) Text(key string) string {
	raw, ok := r.values[key]
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

// ResultSet is the normalized output of one successful fetch.
type ResultSet struct {
	AgencyId   int         `json:"agencyId"`
	Site       string      `json:"site"`
	AgencyName string      `json:"agencyName,omitempty"`
	Total      int         `json:"total"`
	Retrieved  time.Time   `json:"retrievedAt"`
	Params     RequestSpec `json:"parameters"`
	Calls      []Record    `json:"calls"`
}
