package jsruntime

import (
	"strings"

	"github.com/dop251/goja"
)

// Document is a minimal DOM: element creation and a body that can hold children
type Document struct {
	vm       *goja.Runtime
	object   *goja.Object
	body     *goja.Object
	children []*goja.Object
}

func newDocument(vm *goja.Runtime) *Document {
	d := &Document{vm: vm}

	d.body = vm.NewObject()
	d.body.Set("tagName", "BODY")
	d.body.Set("appendChild", func(call goja.FunctionCall) goja.Value {
		el := d.elementArg(call, "appendChild")
		d.AppendChild(el)
		return el
	})
	d.body.Set("removeChild", func(call goja.FunctionCall) goja.Value {
		el := d.elementArg(call, "removeChild")
		if !d.RemoveChild(el) {
			panic(vm.NewGoError(errNotAChild))
		}
		return el
	})
	d.body.Set("contains", func(call goja.FunctionCall) goja.Value {
		el, ok := call.Argument(0).(*goja.Object)
		return vm.ToValue(ok && d.Contains(el))
	})

	d.object = vm.NewObject()
	d.object.Set("body", d.body)
	d.object.Set("createElement", func(call goja.FunctionCall) goja.Value {
		return d.CreateElement(call.Argument(0).String())
	})
	d.object.Set("getElementById", func(call goja.FunctionCall) goja.Value {
		if el := d.ByID(call.Argument(0).String()); el != nil {
			return el
		}
		return goja.Null()
	})

	return d
}

type domError string

func (e domError) Error() string { return string(e) }

const errNotAChild = domError("The node to be removed is not a child of this node.")

func (d *Document) elementArg(call goja.FunctionCall, method string) *goja.Object {
	el, ok := call.Argument(0).(*goja.Object)
	if !ok {
		panic(d.vm.NewTypeError("Failed to execute '%s': parameter 1 is not of type 'Node'.", method))
	}
	return el
}

// CreateElement returns a detached element with an empty style object
func (d *Document) CreateElement(tag string) *goja.Object {
	el := d.vm.NewObject()
	el.Set("tagName", strings.ToUpper(tag))
	el.Set("id", "")
	el.Set("style", d.vm.NewObject())
	el.Set("parentNode", goja.Null())
	return el
}

// AppendChild attaches el to body, moving it to the end if already attached
func (d *Document) AppendChild(el *goja.Object) {
	d.RemoveChild(el)
	d.children = append(d.children, el)
	el.Set("parentNode", d.body)
}

// RemoveChild detaches el from body, reporting whether it was attached
func (d *Document) RemoveChild(el *goja.Object) bool {
	for i, child := range d.children {
		if child.SameAs(el) {
			d.children = append(d.children[:i], d.children[i+1:]...)
			el.Set("parentNode", goja.Null())
			return true
		}
	}
	return false
}

// Contains reports whether el is attached to body
func (d *Document) Contains(el *goja.Object) bool {
	for _, child := range d.children {
		if child.SameAs(el) {
			return true
		}
	}
	return false
}

// ByID returns the attached element with the given id
func (d *Document) ByID(id string) *goja.Object {
	for _, child := range d.children {
		if v := child.Get("id"); v != nil && v.String() == id {
			return child
		}
	}
	return nil
}

// ChildCount returns the number of attached elements
func (d *Document) ChildCount() int {
	return len(d.children)
}
