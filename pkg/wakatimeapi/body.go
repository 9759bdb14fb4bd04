package wakatimeapi

import (
	"strings"

	"github.com/go-faster/jx"
)

// percentCalculated reads data.percent_calculated from a 202 body. Missing or
// unparsable values yield 0.
func percentCalculated(body []byte) float64 {
	var percent float64
	d := jx.DecodeBytes(body)
	if d.Next() != jx.Object {
		return 0
	}
	_ = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "data" || d.Next() != jx.Object {
			return d.Skip()
		}
		return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) != "percent_calculated" || d.Next() != jx.Number {
				return d.Skip()
			}
			v, err := d.Float64()
			if err != nil {
				return err
			}
			percent = v
			return nil
		})
	})
	return percent
}

// errorMessage extracts the upstream "error" (or "errors") field, falling back
// to the raw body text.
func errorMessage(body []byte) string {
	var msg string
	var list []string
	d := jx.DecodeBytes(body)
	if d.Next() == jx.Object {
		_ = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch {
			case string(key) == "error" && d.Next() == jx.String:
				s, err := d.Str()
				if err != nil {
					return err
				}
				msg = s
				return nil
			case string(key) == "errors" && d.Next() == jx.Array:
				return d.Arr(func(d *jx.Decoder) error {
					if d.Next() != jx.String {
						return d.Skip()
					}
					s, err := d.Str()
					if err != nil {
						return err
					}
					list = append(list, s)
					return nil
				})
			default:
				return d.Skip()
			}
		})
	}
	if msg != "" {
		return msg
	}
	if len(list) > 0 {
		return strings.Join(list, "; ")
	}
	return strings.TrimSpace(string(body))
}
