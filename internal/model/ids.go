package model

import "math"

const (
	// MinID is the smallest value of the id and sorting-index domain.
	MinID int64 = math.MinInt64

	// MaxID is the largest value of the id and sorting-index domain.
	MaxID int64 = math.MaxInt64

	// SortingBuffer is the distance kept from MinID/MaxID by default
	// sorting-index assignments, leaving room to place members before or
	// after them by hand.
	SortingBuffer int64 = 99_999

	// MaxSortingProbe bounds the linear search for a free sorting index.
	MaxSortingProbe = 10_000

	// DefaultSearchDepth is the default depth budget of the graph search.
	DefaultSearchDepth = 20

	// MaxNameLength is the longest entity, class or group name accepted, in runes.
	MaxNameLength = 160
)

// FirstSortingIndex is the index given to the first member of an empty scope.
func FirstSortingIndex() int64 { return MinID + SortingBuffer }

// LaterSortingIndex is the index tried for members added to a non-empty scope.
func LaterSortingIndex() int64 { return MaxID - SortingBuffer }

// ValidID reports whether id can name a stored object.
func ValidID(id int64) bool { return id != 0 }
