// The MIT License (MIT)
//
// Copyright (c) 2024 the project-palleon authors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package document

import "github.com/pkg/errors"

// Bool extracts a required boolean field.
func Bool(doc Doc, key string) (bool, error) {
	v, ok := doc[key]
	if !ok {
		return false, errors.Errorf("document: missing %q field", key)
	}
	b, ok := v.(bool)
	if !ok {
		return false, errors.Errorf("document: %q field is not a boolean (got %T)", key, v)
	}
	return b, nil
}

// SubDocument extracts a required nested document field.
func SubDocument(doc Doc, key string) (Doc, error) {
	v, ok := doc[key]
	if !ok {
		return nil, errors.Errorf("document: missing %q field", key)
	}
	sub, ok := v.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("document: %q field is not a document (got %T)", key, v)
	}
	return Doc(sub), nil
}

// Int64 extracts a value that must be representable as an integer.
func Int64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, errors.Errorf("document: value is not an integer (got %T)", v)
	}
}
