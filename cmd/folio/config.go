package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"
)

// YAMLResolver is a kong.ConfigurationLoader for flat YAML files keyed by
// flag name.
func YAMLResolver(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	var f kong.ResolverFunc = func(_ *kong.Context, _ *kong.Path, flag *kong.Flag) (any, error) {
		v, ok := values[flag.Name]
		if !ok || v == nil {
			return nil, nil
		}
		switch v := v.(type) {
		case []any:
			out := make([]string, len(v))
			for i, item := range v {
				out[i] = fmt.Sprint(item)
			}
			return strings.Join(out, ","), nil
		case map[string]any:
			return nil, fmt.Errorf("config key %q: expected a scalar or list", flag.Name)
		default:
			return fmt.Sprint(v), nil
		}
	}
	return f, nil
}
