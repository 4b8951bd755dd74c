package filter

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/magpierre/datacomm/datatable"
)

// scriptPrelude is compiled ahead of every script. Str, Num and Has are
// available to script expressions.
const scriptPrelude = `package rowfilter

import (
	"fmt"
	"strconv"
	"strings"
)

func Str(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func Num(v interface{}) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case float64:
		return n
	case bool:
		if n {
			return 1
		}
		return 0
	}
	f, _ := strconv.ParseFloat(strings.TrimSpace(Str(v)), 64)
	return f
}

func Has(v interface{}, sub string) bool {
	return strings.Contains(strings.ToLower(Str(v)), strings.ToLower(sub))
}

func Match(row map[string]interface{}) bool {
%s
}
`

// Script is a row filter written in Go and run by an embedded interpreter.
type Script struct {
	source string

	mu    sync.Mutex
	match func(map[string]interface{}) bool
}

// CompileScript compiles src into a filter. src is either a boolean
// expression or a function body containing return statements; in both
// cases the row is available as row, a map from column name to raw value:
//
//	Num(row["age"]) >= 30 && Has(row["country"], "swe")
func CompileScript(src string) (*Script, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("%w: empty script", datatable.ErrInvalidFilter)
	}
	body := src
	if !strings.Contains(src, "return") {
		body = "return " + src
	}

	var stderr bytes.Buffer
	i := interp.New(interp.Options{Stderr: &stderr})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("loading interpreter symbols: %w", err)
	}
	if _, err := i.Eval(fmt.Sprintf(scriptPrelude, body)); err != nil {
		return nil, fmt.Errorf("%w: %v", datatable.ErrInvalidFilter, err)
	}
	v, err := i.Eval("rowfilter.Match")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", datatable.ErrInvalidFilter, err)
	}
	match, ok := v.Interface().(func(map[string]interface{}) bool)
	if !ok {
		return nil, fmt.Errorf("%w: script does not produce a row predicate", datatable.ErrInvalidFilter)
	}
	return &Script{source: src, match: match}, nil
}

// Evaluate implements datatable.Filter. A panicking script fails the
// evaluation instead of the caller.
func (s *Script) Evaluate(row []datatable.Value, columnNames []string) (ok bool, err error) {
	m := make(map[string]interface{}, len(columnNames))
	for i, name := range columnNames {
		if i < len(row) && !row[i].IsNull {
			m[name] = row[i].Raw
		} else {
			m[name] = nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("%w: script panicked: %v", datatable.ErrInvalidFilter, r)
		}
	}()
	return s.match(m), nil
}

// Description implements datatable.Filter.
func (s *Script) Description() string { return "script: " + s.source }
