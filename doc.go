// Package shardfeed - loads sharded TFRecord training data for distributed training.
//
// A Loader resolves which shard of the dataset this process reads (from TF_CONFIG
// unless an assignment is given) and builds a Dataset for a directory of part-* files.
// Every call to Dataset.Batches is one epoch:
//
//	list -> partition -> per file (read -> shuffle -> parse -> batch -> prefetch) -> merge
//
// All processes of a cluster partition the same sorted listing, so the files are
// divided between them without any communication.
//
// Errors are fatal. The first one ends the epoch and is yielded as the final (nil, err) pair.
// Breaking out of the loop cancels every stage of the epoch.
package shardfeed
