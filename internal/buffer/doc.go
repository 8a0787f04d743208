// Package buffer provides the reference-counted payload containers that
// carry frames and messages between hub ports and flows without copies.
//
// Ownership boundary:
// - a Buffer is shared by every port it passes through
// - the last Release returns the slot to its Pool
// - pool capacity is fixed at construction; exhaustion queues, never errors
package buffer
