package line

// Output is the result of an event that ends or cancels the editing of a
// line. It is one of Line, EOF and Interrupted.
type Output interface {
	isOutput()
}

// Line is a submitted line, without the trailing newline.
type Line string

// EOF is returned when the user presses Ctrl-D.
type EOF struct{}

// Interrupted is returned when the user presses Ctrl-C.
type Interrupted struct{}

func (Line) isOutput()        {}
func (EOF) isOutput()         {}
func (Interrupted) isOutput() {}
