// Package topology - resolves which shard of a dataset this process reads.
//
// The cluster layout comes from the TF_CONFIG descriptor:
//
//	{"cluster": {"chief": [...], "worker": [...]}, "task": {"type": "worker", "index": 0}}
//
// The chief always reads shard 0, so worker i reads shard i+1.
// Evaluators read the whole dataset.
package topology

import (
	"encoding/json"
	"os"
	"strings"
)

// EnvVar - environment variable holding the descriptor.
const EnvVar = "TF_CONFIG"

// task roles.
const (
	RoleChief     = "chief"
	RoleWorker    = "worker"
	RoleEvaluator = "evaluator"
)

// Task - role and index of this process.
type Task struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
}

// Descriptor - parsed TF_CONFIG.
type Descriptor struct {
	Cluster map[string][]string `json:"cluster"`
	Task    Task                `json:"task"`
}

// Assignment - the shard this process reads.
type Assignment struct {
	Count int
	Index int
}

// Single - the unsharded assignment used when no descriptor is present.
func Single() Assignment {
	return Assignment{Count: 1, Index: 0}
}

// Validate - checks 0 <= Index < Count.
func (a Assignment) Validate() error {
	if a.Count <= 0 || a.Index < 0 || a.Index >= a.Count {
		return newInvalidAssignmentError(a)
	}
	return nil
}

// Parse - decodes a descriptor.
// cluster, task and task.type are required. Missing role lists count as empty.
func Parse(data []byte) (Descriptor, error) {
	var raw struct {
		Cluster map[string][]string `json:"cluster"`
		Task    *struct {
			Type  *string `json:"type"`
			Index int     `json:"index"`
		} `json:"task"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Descriptor{}, newMalformedTopologyError(err.Error())
	}
	switch {
	case raw.Cluster == nil:
		return Descriptor{}, newMalformedTopologyError("missing cluster")
	case raw.Task == nil:
		return Descriptor{}, newMalformedTopologyError("missing task")
	case raw.Task.Type == nil:
		return Descriptor{}, newMalformedTopologyError("missing task.type")
	}
	return Descriptor{
		Cluster: raw.Cluster,
		Task:    Task{Type: *raw.Task.Type, Index: raw.Task.Index},
	}, nil
}

// FromEnv - reads the descriptor from TF_CONFIG.
// ok is false when the variable is unset or blank.
func FromEnv() (d Descriptor, ok bool, err error) {
	v, found := os.LookupEnv(EnvVar)
	if !found || strings.TrimSpace(v) == "" {
		return Descriptor{}, false, nil
	}
	d, err = Parse([]byte(v))
	if err != nil {
		return Descriptor{}, false, err
	}
	return d, true, nil
}

// Resolve - computes the assignment for d.
//
// The result is the plain role arithmetic and is not validated here:
// a cluster without a chief gives its last worker Index == Count.
// Consumers call Validate before partitioning.
func Resolve(d Descriptor) (Assignment, error) {
	workers := len(d.Cluster[RoleWorker])
	chiefs := len(d.Cluster[RoleChief])

	switch d.Task.Type {
	case RoleChief:
		return Assignment{Count: workers + chiefs, Index: 0}, nil
	case RoleWorker:
		return Assignment{Count: workers + chiefs, Index: d.Task.Index + 1}, nil
	case RoleEvaluator:
		return Single(), nil
	default:
		return Assignment{}, newInvalidTopologyRoleError(d.Task.Type)
	}
}

// ResolveEnv - reads TF_CONFIG and resolves it.
// An absent descriptor resolves to Single.
func ResolveEnv() (Assignment, error) {
	d, ok, err := FromEnv()
	if err != nil {
		return Assignment{}, err
	}
	if !ok {
		return Single(), nil
	}
	return Resolve(d)
}
