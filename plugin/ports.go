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

package plugin

// AllocatePorts assigns the deterministic port range of spec.md §4.3:
// input plugins get [p, p+|input|), data plugins get
// [p+|input|, p+|input|+|data|), where p = bindPortRangeStart and the
// ordering within each slice is the caller's configuration order.
func AllocatePorts(bindPortRangeStart uint16, inputNames, dataNames []string) (inputPorts, dataPorts map[string]uint16) {
	inputPorts = make(map[string]uint16, len(inputNames))
	dataPorts = make(map[string]uint16, len(dataNames))

	port := bindPortRangeStart
	for _, name := range inputNames {
		inputPorts[name] = port
		port++
	}
	for _, name := range dataNames {
		dataPorts[name] = port
		port++
	}
	return inputPorts, dataPorts
}
