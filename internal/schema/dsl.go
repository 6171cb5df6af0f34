/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package schema

import (
	"fmt"
	"strings"
)

// ParseDSL parses a source's "schema" configuration string (§6): a
// comma-separated list of "name:type" pairs, whitespace-tolerant,
// case-insensitive type names, with array<T> and struct<name:T, ...>
// nesting.
//
//	id:int, cate:string, tags:array<string>, loc:struct<lat:double,lon:double>
func ParseDSL(src string) (Schema, error) {
	p := &dslParser{src: src}
	fields, rest, err := p.parseFieldList(false)
	if err != nil {
		return nil, err
	}
	rest = strings.TrimSpace(rest)
	if rest != "" {
		return nil, fmt.Errorf("schema: unexpected trailing input %q", rest)
	}
	return fields, nil
}

type dslParser struct{ src string }

// parseFieldList consumes "name:type, name:type, ..." until it sees the
// closing '>' of an enclosing struct<...> (when nested is true) or runs out
// of input. Returns the parsed fields and the unconsumed remainder.
func (p *dslParser) parseFieldList(nested bool) (Schema, string, error) {
	rest := p.src
	var fields Schema
	for {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			break
		}
		if nested && strings.HasPrefix(rest, ">") {
			break
		}
		colon := strings.IndexByte(rest, ':')
		if colon < 0 {
			return nil, "", fmt.Errorf("schema: expected 'name:type' near %q", rest)
		}
		name := strings.TrimSpace(rest[:colon])
		if name == "" {
			return nil, "", fmt.Errorf("schema: empty field name near %q", rest)
		}
		rest = strings.TrimSpace(rest[colon+1:])

		dt, remainder, err := parseType(rest)
		if err != nil {
			return nil, "", err
		}
		fields = append(fields, Field{Name: name, DataType: dt, Nullable: true})
		rest = strings.TrimSpace(remainder)

		if strings.HasPrefix(rest, ",") {
			rest = rest[1:]
			continue
		}
		break
	}
	return fields, rest, nil
}

// parseType consumes one type token from the head of src and returns the
// resolved DataType plus the unconsumed remainder.
func parseType(src string) (DataType, string, error) {
	src = strings.TrimSpace(src)
	name, rest := takeIdent(src)
	if name == "" {
		return DataType{}, "", fmt.Errorf("schema: expected a type name near %q", src)
	}
	lower := strings.ToLower(name)

	if lower == "array" {
		rest = strings.TrimSpace(rest)
		if !strings.HasPrefix(rest, "<") {
			return DataType{}, "", fmt.Errorf("schema: expected '<' after array near %q", rest)
		}
		elem, remainder, err := parseType(rest[1:])
		if err != nil {
			return DataType{}, "", err
		}
		remainder = strings.TrimSpace(remainder)
		if !strings.HasPrefix(remainder, ">") {
			return DataType{}, "", fmt.Errorf("schema: expected closing '>' for array<...>")
		}
		return Array(elem), remainder[1:], nil
	}

	if lower == "struct" {
		rest = strings.TrimSpace(rest)
		if !strings.HasPrefix(rest, "<") {
			return DataType{}, "", fmt.Errorf("schema: expected '<' after struct near %q", rest)
		}
		p := &dslParser{src: rest[1:]}
		fields, remainder, err := p.parseFieldList(true)
		if err != nil {
			return DataType{}, "", err
		}
		remainder = strings.TrimSpace(remainder)
		if !strings.HasPrefix(remainder, ">") {
			return DataType{}, "", fmt.Errorf("schema: expected closing '>' for struct<...>")
		}
		return Struct(fields), remainder[1:], nil
	}

	dt, ok := scalarByName(lower)
	if !ok {
		return DataType{}, "", fmt.Errorf("schema: unknown type %q", name)
	}
	return dt, rest, nil
}

func scalarByName(lower string) (DataType, bool) {
	switch lower {
	case "int":
		return Int, true
	case "long", "bigint":
		return Long, true
	case "float":
		return Float, true
	case "double":
		return Double, true
	case "string":
		return String, true
	case "boolean", "bool":
		return Boolean, true
	case "binary":
		return Binary, true
	case "timestamp":
		return Timestamp, true
	default:
		return DataType{}, false
	}
}

// takeIdent consumes a leading run of letters/digits/underscore and returns
// it along with the unconsumed remainder.
func takeIdent(src string) (string, string) {
	i := 0
	for i < len(src) {
		c := src[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			i++
			continue
		}
		break
	}
	return src[:i], src[i:]
}
