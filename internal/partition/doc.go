// Package partition implements the deterministic split used wherever a
// sequence is divided among workers or local goroutines.
//
// A sequence of n elements split k ways yields k contiguous parts of size
// n/k, with the first n%k parts one element larger. The coordinator uses it
// to assign partitions to worker endpoints, and the local sort engine uses the
// same rule to assign chunks to goroutines, so a given (n, k) always produces
// the same layout on every node.
//
//	Plan(7, 3)
//	// [{0 0 3} {1 3 5} {2 5 7}]
package partition
