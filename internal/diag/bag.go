package diag

// Bag accumulates the parse errors recorded for a single translation unit.
// Per spec §4.2/§7, a parse error is locally recoverable: the parser skips
// one token and retries, but the unit as a whole still fails once any error
// has been recorded.
type Bag struct {
	errors []Error
}

// Add records an error in the bag.
func (b *Bag) Add(err Error) {
	b.errors = append(b.errors, err)
}

// HasErrors reports whether any error has been recorded.
func (b *Bag) HasErrors() bool {
	return len(b.errors) > 0
}

// Errors returns the recorded errors in the order they were added.
func (b *Bag) Errors() []Error {
	return b.errors
}

// ByLine groups the recorded errors by their one-based source line, so a
// caller can print a richer per-line diagnostic batch.
func (b *Bag) ByLine() map[int][]Error {
	byLine := make(map[int][]Error)
	for _, err := range b.errors {
		byLine[err.Pos.Line] = append(byLine[err.Pos.Line], err)
	}
	return byLine
}
