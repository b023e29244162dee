// Package jsonpath queries JSON documents such as performance log dumps.
//
// Paths are gjson paths ("logs.#(name==\"db\").numCalls") or a JSONPath
// subset ("$.logs[0].name") that is translated to gjson syntax.
package jsonpath

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// Query extracts the value at path from a JSON document and returns it as a string.
func Query(json []byte, path string) (string, error) {
	result, err := lookup(json, path)
	if err != nil {
		return "", err
	}
	if result.Type == gjson.Null {
		return "null", nil
	}
	return result.String(), nil
}

// QueryInt extracts the integer at path.
func QueryInt(json []byte, path string) (int64, error) {
	result, err := lookup(json, path)
	if err != nil {
		return 0, err
	}
	if result.Type != gjson.Number {
		return 0, fmt.Errorf("value at %s is not a number", path)
	}
	return result.Int(), nil
}

func lookup(json []byte, path string) (gjson.Result, error) {
	if len(json) == 0 {
		return gjson.Result{}, fmt.Errorf("empty JSON document")
	}
	if path == "" {
		return gjson.Result{}, fmt.Errorf("empty path expression")
	}
	if !gjson.ValidBytes(json) {
		return gjson.Result{}, fmt.Errorf("invalid JSON document")
	}

	result := gjson.GetBytes(json, toGjsonPath(path))
	if !result.Exists() {
		return gjson.Result{}, fmt.Errorf("path not found: %s", path)
	}
	return result, nil
}

// toGjsonPath converts a JSONPath expression to gjson syntax. Paths that do
// not start with "$" are assumed to be gjson paths already.
func toGjsonPath(path string) string {
	if !strings.HasPrefix(path, "$") {
		return path
	}

	path = strings.TrimPrefix(path, "$")
	path = strings.TrimPrefix(path, ".")
	if path == "" {
		return "@this"
	}

	// ['name'] and ["name"] -> .name
	for _, q := range []string{"'", `"`} {
		path = strings.ReplaceAll(path, "["+q, ".")
		path = strings.ReplaceAll(path, q+"]", "")
	}

	// [n] -> .n
	path = strings.ReplaceAll(path, "[", ".")
	path = strings.ReplaceAll(path, "]", "")
	return strings.TrimPrefix(path, ".")
}
