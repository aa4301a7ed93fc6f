// Package shard - splits a sorted file listing across the processes of a cluster.
//
// every process lists the same directory and applies the same Hash,
// so the files are divided without any coordination:
// - each file belongs to exactly one shard
// - shard membership depends only on the listing and the assignment
package shard
