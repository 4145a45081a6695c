// Copyright 2025 The toolgate Authors
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

package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "-"},
		{-time.Second, "-"},
		{5 * time.Second, "5s"},
		{90 * time.Second, "1m30s"},
		{61 * time.Minute, "1h1m"},
		{25 * time.Hour, "25h0m"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDuration(tt.d), "duration %s", tt.d)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "exact", Truncate("exact", 5))
	assert.Equal(t, "long st...", Truncate("long string here", 10))
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, "", WrapText("", 10))
	assert.Equal(t, "one two", WrapText("one two", 20))
	assert.Equal(t, "one two\nthree", WrapText("one two three", 8))
	assert.Equal(t, "supercalifragilistic", WrapText("supercalifragilistic", 5),
		"a word longer than the width stays on its own line")
}
