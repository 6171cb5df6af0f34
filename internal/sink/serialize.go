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

package sink

import (
	"encoding/json"

	"github.com/flowetl/flowetl/internal/row"
	"github.com/flowetl/flowetl/internal/schema"
	"github.com/flowetl/flowetl/internal/value"
)

// Serializer encodes one row to the bytes a Block appends between framing
// separators. A per-row Serde failure is the §7 "Serde" error kind: it is
// logged and the row dropped by the caller, not propagated as a fatal
// sink error.
type Serializer func(r row.Row) ([]byte, error)

// JSONRowSerializer builds a Serializer that encodes each row as a JSON
// object keyed by sch's field names, in schema order.
func JSONRowSerializer(sch schema.Schema) Serializer {
	return func(r row.Row) ([]byte, error) {
		obj := make(map[string]interface{}, len(sch))
		for i, f := range sch {
			obj[f.Name] = toJSONValue(r.Get(i))
		}
		return json.Marshal(obj)
	}
}

func toJSONValue(v value.Value) interface{} {
	if v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case value.KindInt:
		return v.GetInt()
	case value.KindLong:
		return v.GetLong()
	case value.KindFloat:
		return v.GetFloat()
	case value.KindDouble:
		return v.GetDouble()
	case value.KindString:
		return v.GetString()
	case value.KindBoolean:
		return v.GetBoolean()
	case value.KindTimestamp:
		return v.GetTimestamp()
	case value.KindBinary:
		return v.GetBinary()
	default:
		return nil
	}
}
