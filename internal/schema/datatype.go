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

// Package schema defines the engine's logical type system: DataType, Field,
// Schema, and the resolved AttributeReference used once a logical plan has
// been analyzed.
package schema

import "fmt"

// DataType is the closed set of logical types a row field may hold.
type DataType struct {
	kind  dataKind
	Elem  *DataType // non-nil iff kind == kindArray
	Struct Schema    // non-empty iff kind == kindStruct
}

type dataKind int

const (
	// kindUnset is the zero kind, so a zero-value DataType (an unresolved
	// expression's type) is never Equal to any real type.
	kindUnset dataKind = iota
	kindInt
	kindLong
	kindFloat
	kindDouble
	kindString
	kindBoolean
	kindBinary
	kindTimestamp
	kindArray
	kindStruct
)

var (
	Int       = DataType{kind: kindInt}
	Long      = DataType{kind: kindLong}
	Float     = DataType{kind: kindFloat}
	Double    = DataType{kind: kindDouble}
	String    = DataType{kind: kindString}
	Boolean   = DataType{kind: kindBoolean}
	Binary    = DataType{kind: kindBinary}
	Timestamp = DataType{kind: kindTimestamp}
)

// Array builds an array-of-elem DataType.
func Array(elem DataType) DataType {
	e := elem
	return DataType{kind: kindArray, Elem: &e}
}

// Struct builds a struct DataType from a nested Schema.
func Struct(fields Schema) DataType {
	return DataType{kind: kindStruct, Struct: fields}
}

func (t DataType) IsArray() bool  { return t.kind == kindArray }
func (t DataType) IsStruct() bool { return t.kind == kindStruct }

// IsNumericType reports whether t is one of Int, Long, Float, Double.
func (t DataType) IsNumericType() bool {
	switch t.kind {
	case kindInt, kindLong, kindFloat, kindDouble:
		return true
	default:
		return false
	}
}

// numericRank gives the promotion order Int < Long < Float < Double.
func (t DataType) numericRank() int {
	switch t.kind {
	case kindInt:
		return 0
	case kindLong:
		return 1
	case kindFloat:
		return 2
	case kindDouble:
		return 3
	default:
		return -1
	}
}

// Wider reports whether t is strictly wider than other in the numeric
// promotion order (both must be numeric).
func (t DataType) Wider(other DataType) bool {
	return t.numericRank() > other.numericRank()
}

func (t DataType) Equal(other DataType) bool {
	if t.kind != other.kind {
		return false
	}
	switch t.kind {
	case kindArray:
		return t.Elem.Equal(*other.Elem)
	case kindStruct:
		return t.Struct.Equal(other.Struct)
	default:
		return true
	}
}

func (t DataType) String() string {
	switch t.kind {
	case kindInt:
		return "int"
	case kindLong:
		return "long"
	case kindFloat:
		return "float"
	case kindDouble:
		return "double"
	case kindString:
		return "string"
	case kindBoolean:
		return "boolean"
	case kindBinary:
		return "binary"
	case kindTimestamp:
		return "timestamp"
	case kindArray:
		return fmt.Sprintf("array<%s>", t.Elem.String())
	case kindStruct:
		return fmt.Sprintf("struct<%s>", t.Struct.String())
	default:
		return "unknown"
	}
}

// PromotedType returns the wider of a and b under the numeric promotion
// order Int < Long < Float < Double, used by the analyzer's coercion rule.
func PromotedType(a, b DataType) DataType {
	if a.numericRank() >= b.numericRank() {
		return a
	}
	return b
}
