package vm

// frames is the variable binding stack. The bottom frame holds the globals;
// each function call pushes a frame for its parameters and locals. Reads see
// the innermost binding of any frame, writes always go to the top frame, so
// popping a frame undoes everything the call bound.
type frames []map[string]Value

func newFrames() frames {
	return frames{make(map[string]Value)}
}

func (f frames) lookup(name string) (Value, bool) {
	for i := len(f) - 1; i >= 0; i-- {
		if v, ok := f[i][name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

func (f frames) set(name string, v Value) {
	f[len(f)-1][name] = v
}

func (f *frames) push(frame map[string]Value) {
	*f = append(*f, frame)
}

func (f *frames) pop() {
	if len(*f) > 1 {
		(*f)[len(*f)-1] = nil
		*f = (*f)[:len(*f)-1]
	}
}

// depth is the number of active function calls.
func (f frames) depth() int {
	return len(f) - 1
}
