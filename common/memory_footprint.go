// Copyright (c) 2025 Sonic Operations Ltd
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at soniclabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

import (
	"fmt"
	"sort"
	"strings"
)

// MemoryFootprint describes the memory consumption of a component and its
// sub-components as a tree. Shared sub-components may be registered under
// several parents; they are counted once in Total.
type MemoryFootprint struct {
	value    uintptr
	children map[string]*MemoryFootprint
	note     string
}

// NewMemoryFootprint creates a footprint node accounting for the given number
// of bytes owned directly by the component.
func NewMemoryFootprint(value uintptr) *MemoryFootprint {
	return &MemoryFootprint{value: value}
}

// AddChild registers the footprint of a sub-component under the given name.
func (mf *MemoryFootprint) AddChild(name string, child *MemoryFootprint) {
	if mf.children == nil {
		mf.children = make(map[string]*MemoryFootprint)
	}
	mf.children[name] = child
}

// SetNote attaches a free-form annotation shown in the breakdown.
func (mf *MemoryFootprint) SetNote(note string) {
	mf.note = note
}

// Value returns the number of bytes attributed directly to this component,
// excluding children.
func (mf *MemoryFootprint) Value() uintptr {
	return mf.value
}

// Total returns the number of bytes consumed by the component including all
// its sub-components. Footprints reachable through multiple paths contribute
// only once.
func (mf *MemoryFootprint) Total() uintptr {
	visited := map[*MemoryFootprint]bool{}
	return mf.total(visited)
}

func (mf *MemoryFootprint) total(visited map[*MemoryFootprint]bool) uintptr {
	if mf == nil || visited[mf] {
		return 0
	}
	visited[mf] = true
	sum := mf.value
	for _, child := range mf.children {
		sum += child.total(visited)
	}
	return sum
}

// String produces a human-readable breakdown listing the total of every node
// in the footprint tree, one line per component path.
func (mf *MemoryFootprint) String() string {
	var sb strings.Builder
	mf.printTo(&sb, ".")
	return sb.String()
}

func (mf *MemoryFootprint) printTo(sb *strings.Builder, path string) {
	if mf == nil {
		return
	}
	if mf.note != "" {
		fmt.Fprintf(sb, "%d %s %s\n", mf.Total(), path, mf.note)
	} else {
		fmt.Fprintf(sb, "%d %s\n", mf.Total(), path)
	}
	names := make([]string, 0, len(mf.children))
	for name := range mf.children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		mf.children[name].printTo(sb, path+"/"+name)
	}
}
