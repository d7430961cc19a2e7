// Package dbarray provides support for mapping Go slices to and from
// postgres array columns.
package dbarray

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// String maps a []string to a postgres text array.
type String []string

// Value implements the driver.Valuer interface.
func (a String) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteByte('{')
	for i, s := range a {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('"')
		sb.WriteString(strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`))
		sb.WriteByte('"')
	}
	sb.WriteByte('}')

	return sb.String(), nil
}

// Scan implements the sql.Scanner interface.
func (a *String) Scan(src any) error {
	if src == nil {
		*a = nil
		return nil
	}

	var raw string
	switch v := src.(type) {
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("dbarray: cannot scan %T", src)
	}

	raw = strings.TrimPrefix(raw, "{")
	raw = strings.TrimSuffix(raw, "}")
	if raw == "" {
		*a = String{}
		return nil
	}

	parts := strings.Split(raw, ",")
	out := make(String, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, `"`)
		p = strings.ReplaceAll(p, `\"`, `"`)
		p = strings.ReplaceAll(p, `\\`, `\`)
		out = append(out, p)
	}

	*a = out
	return nil
}
