// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rag

import (
	"strings"
)

// Chunk is one piece of a split document.
type Chunk struct {
	Content   string
	Index     int
	Total     int
	StartLine int
	EndLine   int
}

// LineChunker groups whole lines into chunks of at most Size characters.
// A single line longer than Size becomes its own chunk. With Overlap set,
// each chunk repeats trailing lines of the previous one up to that many
// characters.
type LineChunker struct {
	Size    int
	Overlap int
}

func NewLineChunker(size, overlap int) *LineChunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &LineChunker{Size: size, Overlap: overlap}
}

func (c *LineChunker) Chunk(content string) []Chunk {
	lines := strings.Split(content, "\n")
	if len(content) <= c.Size {
		return []Chunk{{Content: content, Index: 0, Total: 1, StartLine: 1, EndLine: len(lines)}}
	}

	var (
		chunks  []Chunk
		current []string
		size    int
		start   = 1
	)
	flush := func(end int) {
		chunks = append(chunks, Chunk{
			Content:   strings.Join(current, "\n"),
			Index:     len(chunks),
			StartLine: start,
			EndLine:   end,
		})
	}

	for i, line := range lines {
		lineNo := i + 1
		if len(current) > 0 && size+len(line)+1 > c.Size {
			flush(lineNo - 1)
			current, size = c.overlapTail(current)
			start = lineNo - len(current)
		}
		current = append(current, line)
		size += len(line) + 1
	}
	if len(current) > 0 {
		flush(len(lines))
	}

	for i := range chunks {
		chunks[i].Total = len(chunks)
	}
	return chunks
}

// overlapTail keeps the trailing lines of prev that fit in the overlap.
func (c *LineChunker) overlapTail(prev []string) ([]string, int) {
	if c.Overlap == 0 {
		return nil, 0
	}
	size := 0
	i := len(prev)
	for i > 0 && size+len(prev[i-1])+1 <= c.Overlap {
		size += len(prev[i-1]) + 1
		i--
	}
	return append([]string(nil), prev[i:]...), size
}
