package models

import "fmt"

// BatchDescriptor is a contiguous page range processed and committed as one unit.
// TaskID is empty when the batch is processed outside the queue.
type BatchDescriptor struct {
	JobID      uint
	RunID      string
	TaskID     string
	BatchStart int
	BatchEnd   int
}

// Pages returns the number of pages in the batch
func (b BatchDescriptor) Pages() int {
	if b.BatchEnd < b.BatchStart {
		return 0
	}
	return b.BatchEnd - b.BatchStart + 1
}

func (b BatchDescriptor) String() string {
	return fmt.Sprintf("%d-%d", b.BatchStart, b.BatchEnd)
}

// PageRange is an inclusive range of committed pages
type PageRange struct {
	Start int
	End   int
}
