package validate

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

type ErrField struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

type Errs []ErrField

func (e Errs) Error() string { // error interface
	var b strings.Builder
	for i, ef := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ef.Field + ": " + ef.Msg)
	}
	return b.String()
}

// Add appends every non-nil field error.
func (e *Errs) Add(fs ...*ErrField) {
	for _, f := range fs {
		if f != nil {
			*e = append(*e, *f)
		}
	}
}

// Err returns e as an error, or nil when nothing failed.
func (e Errs) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Helpers
func Required(field, value string) *ErrField {
	if strings.TrimSpace(value) == "" {
		return &ErrField{Field: field, Msg: "required"}
	}
	return nil
}

func MaxLen(field, value string, max int) *ErrField {
	if utf8.RuneCountInString(value) > max {
		return &ErrField{Field: field, Msg: "must be at most " + strconv.Itoa(max) + " characters"}
	}
	return nil
}

func MinInt(field string, v, min int64) *ErrField {
	if v < min {
		return &ErrField{Field: field, Msg: "must be >= " + strconv.FormatInt(min, 10)}
	}
	return nil
}

func MaxInt(field string, v, max int64) *ErrField {
	if v > max {
		return &ErrField{Field: field, Msg: "must be <= " + strconv.FormatInt(max, 10)}
	}
	return nil
}

// MaxBytes limits the encoded length of value, not its character count.
func MaxBytes(field, value string, max int) *ErrField {
	if len(value) > max {
		return &ErrField{Field: field, Msg: "must be at most " + strconv.Itoa(max) + " bytes"}
	}
	return nil
}

func MinDecimal(field string, v, min decimal.Decimal) *ErrField {
	if v.LessThan(min) {
		return &ErrField{Field: field, Msg: "must be >= " + min.String()}
	}
	return nil
}

// Extension checks that name ends in one of allowed (no dot, lower case).
func Extension(field, name string, allowed []string) *ErrField {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	for _, a := range allowed {
		if ext == a {
			return nil
		}
	}
	return &ErrField{Field: field, Msg: "file type not allowed (" + strings.Join(allowed, ", ") + ")"}
}
