// Package types defines the inspection record model, the Store and Table
// interfaces that every storage backend implements, and the errors shared by
// the storage, attachment and export layers.
//
// Records are grouped by Kind. Each Kind maps to one table in the local
// store; four of them are inspection logs (daily, weekly, monthly and
// immediate events) and the fifth holds attachment metadata that points back
// at a log through a non-owning reference.
package types
