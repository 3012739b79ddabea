package vm

// Heap is an explicit, owned tracing mark-and-sweep collector over every
// heap-allocated Value (spec.md §4.4): deliberately not delegated to Go's
// own GC (see DESIGN.md's "VM + value model + GC" section), because the spec
// requires the VM to own collection and roots explicitly rather than lean
// on whatever the host runtime happens to do with live pointers.
type Heap struct {
	head      *Object
	count     int
	threshold int
}

// NewHeap returns an empty Heap that triggers its first collection once
// allocCount crosses the given threshold (0 uses a reasonable default).
func NewHeap(threshold int) *Heap {
	if threshold <= 0 {
		threshold = 4096
	}
	return &Heap{threshold: threshold}
}

func (h *Heap) register(o *Object) {
	o.Next = h.head
	h.head = o
	h.count++
}

// RootProvider enumerates every Value a live frame, the module's persisted
// top-level frame, and any other GC root currently holds (spec.md §4.4:
// "roots = live frames' register files + the REPL base frame").
type RootProvider interface {
	Roots(yield func(Value))
}

// ShouldCollect reports whether allocation pressure has crossed the
// collector's trigger threshold.
func (h *Heap) ShouldCollect() bool { return h.count >= h.threshold }

// Collect runs one mark-and-sweep pass rooted at roots, freeing every
// heap object not reachable from a root.
func (h *Heap) Collect(roots RootProvider) {
	roots.Roots(func(v Value) { h.mark(v) })
	h.sweep()
	if h.threshold < h.count*2 {
		h.threshold = h.count * 2
	}
}

func (h *Heap) mark(v Value) {
	o := v.Obj
	if o == nil || o.Marked {
		return
	}
	o.Marked = true
	switch o.Type {
	case ObjTuple:
		for _, e := range o.Tuple {
			h.mark(e)
		}
	case ObjList:
		for _, e := range *o.List {
			h.mark(e)
		}
	case ObjMap:
		for _, k := range o.MapKeys {
			h.mark(k)
		}
		for _, val := range o.MapVals {
			h.mark(val)
		}
	case ObjError:
		if o.ErrVal != nil {
			h.mark(*o.ErrVal)
		}
	case ObjTagged:
		if o.TagVal != nil {
			h.mark(*o.TagVal)
		}
	case ObjFunc:
		for _, c := range o.Func.Captures {
			h.mark(c)
		}
	case ObjIter:
		h.mark(o.Iter.Source)
	}
}

func (h *Heap) sweep() {
	var survivors *Object
	count := 0
	for o := h.head; o != nil; {
		next := o.Next
		if o.Marked {
			o.Marked = false
			o.Next = survivors
			survivors = o
			count++
		}
		o = next
	}
	h.head = survivors
	h.count = count
}

// Live reports the number of objects that survived the most recent sweep
// (or have been allocated since, if no sweep has run yet). Exposed for
// test assertions on collector behaviour.
func (h *Heap) Live() int { return h.count }
