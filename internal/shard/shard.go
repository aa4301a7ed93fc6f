package shard

import (
	"hash/fnv"
	"slices"

	"github.com/jaredmtdev/shardfeed/internal/op"
	"github.com/jaredmtdev/shardfeed/pkg/topology"
)

// Hash - used to determine which shard a file belongs to.
// index is the position of the file in the sorted listing.
type Hash func(index int, name string) int

// RoundRobin - file i goes to shard i mod count.
func RoundRobin(index int, _ string) int {
	return index
}

// ByName - shard chosen by FNV-1a of the file name.
// membership survives files being added to or removed from the listing.
func ByName(_ int, name string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return int(h.Sum32())
}

// Split - divides files into count shards.
// files are sorted first so the split does not depend on listing order.
func Split(files []string, count int, h Hash) [][]string {
	if count < 1 {
		panic("must split into at least 1 shard")
	}
	if h == nil {
		h = RoundRobin
	}
	sorted := slices.Sorted(slices.Values(files))
	shards := make([][]string, count)
	for i := range shards {
		shards[i] = make([]string, 0, op.CeilDiv(len(sorted), count))
	}
	for i, name := range sorted {
		s := op.PosMod(h(i, name), count)
		shards[s] = append(shards[s], name)
	}
	return shards
}

// Partition - files owned by the assignment.
// the assignment must be valid (see topology.Assignment.Validate).
func Partition(files []string, a topology.Assignment, h Hash) []string {
	return Split(files, a.Count, h)[a.Index]
}
