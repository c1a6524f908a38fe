package grounding

import "errors"

var (
	// ErrGroundingUnavailable: the student has no corpus, or it is unreadable.
	ErrGroundingUnavailable = errors.New("grounding unavailable")
	// ErrCorpusFetch: the object store kept failing after every retry.
	ErrCorpusFetch = errors.New("grounding corpus fetch failed")
	// ErrRetrieval: query embedding or index search failed.
	ErrRetrieval = errors.New("retrieval failed")
)
