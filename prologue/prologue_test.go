// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package prologue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandPrefixedResolvesAgainstNamespaceMap(t *testing.T) {
	c := NewCache(0)
	prefixes := map[string]string{"ex": "http://example.org/"}
	got, ok := c.ExpandPrefixed(prefixes, "ex:bob")
	assert.True(t, ok)
	assert.Equal(t, "http://example.org/bob", got)
}

func TestExpandPrefixedUnknownPrefixFails(t *testing.T) {
	c := NewCache(0)
	_, ok := c.ExpandPrefixed(map[string]string{}, "ex:bob")
	assert.False(t, ok)
}

func TestExpandPrefixedWithoutColonFails(t *testing.T) {
	c := NewCache(0)
	_, ok := c.ExpandPrefixed(map[string]string{"ex": "http://example.org/"}, "nocolon")
	assert.False(t, ok)
}

func TestExpandPrefixedCachesAcrossCalls(t *testing.T) {
	c := NewCache(0)
	prefixes := map[string]string{"ex": "http://example.org/"}
	first, ok := c.ExpandPrefixed(prefixes, "ex:bob")
	assert.True(t, ok)
	// a second call through a different map that binds the same
	// namespace hits the entry cached under (namespace, local).
	second, ok := c.ExpandPrefixed(map[string]string{"ex": "http://example.org/"}, "ex:bob")
	assert.True(t, ok)
	assert.Equal(t, first, second)
}

func TestExpandRelativeAppendsToBase(t *testing.T) {
	c := NewCache(0)
	got := c.ExpandRelative("http://example.org/", "bob")
	assert.Equal(t, "http://example.org/bob", got)
}

func TestExpandRelativeWithAbsoluteReferenceIsUnchanged(t *testing.T) {
	c := NewCache(0)
	got := c.ExpandRelative("http://example.org/", "http://other.org/bob")
	assert.Equal(t, "http://other.org/bob", got)
}

func TestExpandRelativeWithEmptyBaseIsUnchanged(t *testing.T) {
	c := NewCache(0)
	got := c.ExpandRelative("", "bob")
	assert.Equal(t, "bob", got)
}

func TestDefaultCacheIsUsable(t *testing.T) {
	got, ok := Default.ExpandPrefixed(map[string]string{"ex": "http://example.org/"}, "ex:alice")
	assert.True(t, ok)
	assert.Equal(t, "http://example.org/alice", got)
}
