// Package chunker normalizes document text and splits it into passages
// bounded by a target word count.
//
// Splitting is recursive: text is divided at paragraph boundaries, then
// sentence boundaries, and consecutive sections are greedily grouped up
// to the target size. Any group still over the target is re-split with
// an incremented depth, and a final pass slices whatever remains over
// the limit into fixed-size overlapping windows, so no passage in the
// returned sequence ever exceeds the target.
//
// # Basic Usage
//
//	c := chunker.New(2000, 400)
//	passages, err := c.Chunk(ctx, text)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Chunk checks the context at every recursion step and section
// iteration; a cancelled context aborts with the context error rather
// than returning partial output.
package chunker
