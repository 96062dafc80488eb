package store

// Turn is one user message paired with the model completion it produced.
// Turns are append-only; a stored turn is never edited or reordered.
type Turn struct {
	User string `json:"user"`
	Bot  string `json:"bot"`
}

// Transcript is the persisted conversation for one (token, section) pair.
type Transcript struct {
	History []Turn  `json:"history"`
	Title   *string `json:"title"` // Nullable, set at most once
}
