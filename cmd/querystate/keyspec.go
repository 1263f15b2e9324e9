package main

import (
	"strings"

	"github.com/vango-dev/querystate/internal/errors"
	"github.com/vango-dev/querystate/pkg/parsers"
	"github.com/vango-dev/querystate/pkg/querystate"
)

// keySpec is a key given on the command line as name=parser[:default].
type keySpec struct {
	Name   string
	Kind   string
	Parser querystate.KeyParser
}

func parseKeySpec(s string) (keySpec, error) {
	name, rest, ok := strings.Cut(s, "=")
	if !ok || name == "" || rest == "" {
		return keySpec{}, errors.New("E501").WithDetail("got " + s)
	}
	kind, def, hasDef := strings.Cut(rest, ":")

	p, err := newKeyParser(kind, def, hasDef)
	if err != nil {
		return keySpec{}, err.WithKey(name)
	}
	return keySpec{Name: name, Kind: kind, Parser: p}, nil
}

func newKeyParser(kind, def string, hasDef bool) (querystate.KeyParser, *errors.Error) {
	switch {
	case kind == "string":
		return withDefault(parsers.String, def, hasDef)
	case kind == "int":
		return withDefault(parsers.Int, def, hasDef)
	case kind == "int64":
		return withDefault(parsers.Int64, def, hasDef)
	case kind == "float":
		return withDefault(parsers.Float, def, hasDef)
	case kind == "bool":
		return withDefault(parsers.Bool, def, hasDef)
	case kind == "time":
		return withDefault(parsers.Time, def, hasDef)
	case kind == "timestamp":
		return withDefault(parsers.Timestamp, def, hasDef)
	case kind == "duration":
		return withDefault(parsers.Duration, def, hasDef)
	case kind == "json":
		return withDefault(parsers.JSON[any](), def, hasDef)
	case kind == "csv":
		return withDefault(parsers.ArrayOf(parsers.String, ","), def, hasDef)
	case strings.HasPrefix(kind, "enum(") && strings.HasSuffix(kind, ")"):
		values := strings.Split(strings.TrimSuffix(strings.TrimPrefix(kind, "enum("), ")"), "|")
		return withDefault(parsers.StringEnum(values...), def, hasDef)
	default:
		return nil, errors.New("E500").WithDetail("unknown parser " + kind)
	}
}

func withDefault[T any](p parsers.Parser[T], raw string, has bool) (querystate.KeyParser, *errors.Error) {
	if !has {
		return p, nil
	}
	v, err := p.Parse(raw)
	if err != nil {
		return nil, errors.New("E501").WithDetail("default " + raw + " does not parse").Wrap(err)
	}
	return p.WithDefault(v), nil
}
