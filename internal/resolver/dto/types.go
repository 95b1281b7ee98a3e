package dto

import (
	"encoding/json"
	"fmt"
	"time"
)

// FlexID accepts identifiers encoded either as JSON numbers or strings.
type FlexID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *FlexID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = FlexID(n.String())
	return nil
}

// FlexDate handles the date formats mirrors use for release dates.
type FlexDate struct {
	time.Time
}

var dateFormats = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
}

// UnmarshalJSON parses "2013-05-17" style dates and full timestamps.
func (d *FlexDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Unparseable dates are dropped rather than failing the whole item.
		d.Time = time.Time{}
		return nil
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	for _, format := range dateFormats {
		if t, err := time.Parse(format, s); err == nil {
			d.Time = t
			return nil
		}
	}
	d.Time = time.Time{}
	return nil
}

// Decode converts a generic JSON value (as produced by json.Unmarshal into
// any) into a typed DTO.
func Decode(v any, out any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
