// Package common contains definitions of fundamental types and functions used
// across the file system implementation: block devices and block addressing.
package common

import "math"

// LogicalBlock is the index of a block relative to the start of an object,
// such as a single FAT copy.
type LogicalBlock uint

// InvalidLogicalBlock marks an empty cache slot.
const InvalidLogicalBlock = LogicalBlock(math.MaxUint)

// Truncator is an interface for objects that support a Truncate() method. This
// method must behave just like [os.File.Truncate].
type Truncator interface {
	Truncate(size int64) error
}
