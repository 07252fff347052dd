package sandbox

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"golang.org/x/net/html"
)

// binding exposes a Document to one run. Element objects map back to
// their nodes so appendChild can move them.
type binding struct {
	vm    *goja.Runtime
	doc   *Document
	nodes map[*goja.Object]*html.Node
}

func newDocumentBinding(vm *goja.Runtime, doc *Document) *goja.Object {
	b := &binding{vm: vm, doc: doc, nodes: make(map[*goja.Object]*html.Node)}
	root := doc.doc.Selection

	obj := vm.NewObject()
	b.method(obj, "getElementById", func(call goja.FunctionCall) goja.Value {
		return b.wrap(doc.byID(call.Argument(0).String()))
	})
	b.method(obj, "querySelector", func(call goja.FunctionCall) goja.Value {
		return b.wrap(first(root.Find(call.Argument(0).String())))
	})
	b.method(obj, "querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return b.list(root.Find(call.Argument(0).String()))
	})
	b.method(obj, "getElementsByClassName", func(call goja.FunctionCall) goja.Value {
		name := strings.TrimSpace(call.Argument(0).String())
		return b.list(root.Find("[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return s.HasClass(name)
		}))
	})
	b.method(obj, "getElementsByTagName", func(call goja.FunctionCall) goja.Value {
		return b.list(root.Find(call.Argument(0).String()))
	})
	b.method(obj, "createElement", func(call goja.FunctionCall) goja.Value {
		return b.element(newElement(call.Argument(0).String()))
	})
	b.method(obj, "addEventListener", func(call goja.FunctionCall) goja.Value {
		doc.listeners = append(doc.listeners, Listener{Target: "document", Event: call.Argument(0).String()})
		return goja.Undefined()
	})
	b.accessor(obj, "body", func() goja.Value { return b.wrap(doc.body()) }, nil)
	b.accessor(obj, "title",
		func() goja.Value { return vm.ToValue(root.Find("title").First().Text()) },
		func(v goja.Value) { root.Find("title").First().SetText(v.String()) })
	return obj
}

func (b *binding) method(obj *goja.Object, name string, fn func(goja.FunctionCall) goja.Value) {
	_ = obj.Set(name, fn)
}

func (b *binding) accessor(obj *goja.Object, name string, get func() goja.Value, set func(goja.Value)) {
	getter := b.vm.ToValue(func(goja.FunctionCall) goja.Value { return get() })
	var setter goja.Value
	if set != nil {
		setter = b.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(call.Argument(0))
			return goja.Undefined()
		})
	}
	_ = obj.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

func (b *binding) wrap(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	return b.element(n)
}

func (b *binding) list(s *goquery.Selection) goja.Value {
	items := make([]interface{}, 0, s.Length())
	for _, n := range s.Nodes {
		items = append(items, b.element(n))
	}
	return b.vm.NewArray(items...)
}

func (b *binding) attrAccessor(obj *goja.Object, n *html.Node, prop, attr string) {
	b.accessor(obj, prop,
		func() goja.Value {
			v, _ := getAttr(n, attr)
			return b.vm.ToValue(v)
		},
		func(v goja.Value) { setAttr(n, attr, v.String()) })
}

func (b *binding) element(n *html.Node) *goja.Object {
	vm := b.vm
	sel := selection(n)
	obj := vm.NewObject()
	b.nodes[obj] = n

	b.attrAccessor(obj, n, "id", "id")
	b.attrAccessor(obj, n, "className", "class")
	b.attrAccessor(obj, n, "value", "value")
	b.accessor(obj, "tagName", func() goja.Value { return vm.ToValue(strings.ToUpper(n.Data)) }, nil)

	text := func() goja.Value { return vm.ToValue(sel.Text()) }
	setText := func(v goja.Value) { sel.SetText(v.String()) }
	b.accessor(obj, "textContent", text, setText)
	b.accessor(obj, "innerText", text, setText)
	b.accessor(obj, "innerHTML",
		func() goja.Value {
			out, _ := sel.Html()
			return vm.ToValue(out)
		},
		func(v goja.Value) { sel.SetHtml(v.String()) })

	_ = obj.Set("style", vm.NewDynamicObject(&styleObject{vm: vm, n: n}))
	_ = obj.Set("classList", b.classList(n))

	b.method(obj, "getAttribute", func(call goja.FunctionCall) goja.Value {
		if v, ok := getAttr(n, call.Argument(0).String()); ok {
			return vm.ToValue(v)
		}
		return goja.Null()
	})
	b.method(obj, "setAttribute", func(call goja.FunctionCall) goja.Value {
		setAttr(n, call.Argument(0).String(), call.Argument(1).String())
		return goja.Undefined()
	})
	b.method(obj, "removeAttribute", func(call goja.FunctionCall) goja.Value {
		removeAttr(n, call.Argument(0).String())
		return goja.Undefined()
	})
	b.method(obj, "hasAttribute", func(call goja.FunctionCall) goja.Value {
		_, ok := getAttr(n, call.Argument(0).String())
		return vm.ToValue(ok)
	})
	b.method(obj, "addEventListener", func(call goja.FunctionCall) goja.Value {
		b.doc.listen(n, call.Argument(0).String())
		return goja.Undefined()
	})
	b.method(obj, "appendChild", func(call goja.FunctionCall) goja.Value {
		childObj := call.Argument(0).ToObject(vm)
		child, ok := b.nodes[childObj]
		if !ok {
			panic(vm.NewTypeError("appendChild: argument is not a node"))
		}
		if child.Parent != nil {
			child.Parent.RemoveChild(child)
		}
		n.AppendChild(child)
		return childObj
	})
	b.method(obj, "remove", func(goja.FunctionCall) goja.Value {
		if n.Parent != nil {
			n.Parent.RemoveChild(n)
		}
		return goja.Undefined()
	})
	b.method(obj, "querySelector", func(call goja.FunctionCall) goja.Value {
		return b.wrap(first(sel.Find(call.Argument(0).String())))
	})
	b.method(obj, "querySelectorAll", func(call goja.FunctionCall) goja.Value {
		return b.list(sel.Find(call.Argument(0).String()))
	})
	return obj
}

func (b *binding) classList(n *html.Node) *goja.Object {
	vm := b.vm
	classes := func() []string {
		v, _ := getAttr(n, "class")
		return strings.Fields(v)
	}
	contains := func(name string) bool {
		for _, c := range classes() {
			if c == name {
				return true
			}
		}
		return false
	}
	add := func(name string) {
		if !contains(name) {
			setAttr(n, "class", strings.TrimSpace(strings.Join(append(classes(), name), " ")))
		}
	}
	remove := func(name string) {
		var keep []string
		for _, c := range classes() {
			if c != name {
				keep = append(keep, c)
			}
		}
		setAttr(n, "class", strings.Join(keep, " "))
	}

	obj := vm.NewObject()
	b.method(obj, "add", func(call goja.FunctionCall) goja.Value {
		for _, arg := range call.Arguments {
			add(arg.String())
		}
		return goja.Undefined()
	})
	b.method(obj, "remove", func(call goja.FunctionCall) goja.Value {
		for _, arg := range call.Arguments {
			remove(arg.String())
		}
		return goja.Undefined()
	})
	b.method(obj, "contains", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(contains(call.Argument(0).String()))
	})
	b.method(obj, "toggle", func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if contains(name) {
			remove(name)
			return vm.ToValue(false)
		}
		add(name)
		return vm.ToValue(true)
	})
	return obj
}

// styleObject backs element.style. Writes go straight into the style
// attribute so markup checks see them.
type styleObject struct {
	vm *goja.Runtime
	n  *html.Node
}

func (s *styleObject) Get(key string) goja.Value {
	switch key {
	case "cssText":
		v, _ := getAttr(s.n, "style")
		return s.vm.ToValue(v)
	case "setProperty":
		return s.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			setStyleValue(s.n, call.Argument(0).String(), call.Argument(1).String())
			return goja.Undefined()
		})
	case "getPropertyValue":
		return s.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			return s.vm.ToValue(styleValue(s.n, call.Argument(0).String()))
		})
	case "removeProperty":
		return s.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			setStyleValue(s.n, call.Argument(0).String(), "")
			return goja.Undefined()
		})
	}
	return s.vm.ToValue(styleValue(s.n, cssProperty(key)))
}

func (s *styleObject) Set(key string, val goja.Value) bool {
	if key == "cssText" {
		setAttr(s.n, "style", val.String())
		return true
	}
	setStyleValue(s.n, cssProperty(key), val.String())
	return true
}

func (s *styleObject) Has(key string) bool {
	return styleValue(s.n, cssProperty(key)) != ""
}

func (s *styleObject) Delete(key string) bool {
	setStyleValue(s.n, cssProperty(key), "")
	return true
}

func (s *styleObject) Keys() []string {
	style, _ := getAttr(s.n, "style")
	decls := parseStyle(style)
	keys := make([]string, len(decls))
	for i, d := range decls {
		keys[i] = d.property
	}
	return keys
}
