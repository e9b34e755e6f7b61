package visualizer

// Options configures the visualization output.
type Options struct {
	// ShowConditions appends after, when and duration details to transition labels.
	ShowConditions bool

	// Direction controls diagram flow: "TD" (top-down) or "LR" (left-right).
	Direction string

	// HighlightPath highlights the named states.
	HighlightPath []string

	// ShowCurrent marks the current state of live machines, nested ones included.
	ShowCurrent bool
}

// DefaultOptions returns sensible defaults for visualization.
func DefaultOptions() Options {
	return Options{
		ShowConditions: true,
		Direction:      "TD",
		ShowCurrent:    true,
	}
}

// WithShowConditions enables/disables transition details.
func (o Options) WithShowConditions(show bool) Options {
	o.ShowConditions = show

	return o
}

// WithDirection sets the diagram direction.
func (o Options) WithDirection(direction string) Options {
	o.Direction = direction

	return o
}

// WithHighlightPath sets states to highlight.
func (o Options) WithHighlightPath(path []string) Options {
	o.HighlightPath = path

	return o
}

// WithShowCurrent enables/disables marking of current states.
func (o Options) WithShowCurrent(show bool) Options {
	o.ShowCurrent = show

	return o
}
