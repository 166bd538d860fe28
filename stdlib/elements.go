package stdlib

import (
	"fmt"

	"github.com/typst-lang/typst-core/value"
)

// elementFunctions returns the standard library's element constructors
// (spec §2 component L, spec §3 "Element"): the function-call surface
// for building the same element kinds markup produces directly (heading,
// list items, emphasis, ...), plus the layout-ish elements that have no
// markup syntax of their own (table, grid, figure).
func elementFunctions() map[string]*value.NativeFunc {
	return map[string]*value.NativeFunc{
		"strong":  {Name: "strong", Call: builtinStrong},
		"emph":    {Name: "emph", Call: builtinEmph},
		"heading": {Name: "heading", Call: builtinHeading},
		"ref":     {Name: "ref", Call: builtinRef},
		"list":    {Name: "list", Call: builtinList("list-item", "list")},
		"enum":    {Name: "enum", Call: builtinList("enum-item", "enum")},
		"figure":  {Name: "figure", Call: builtinFigure},
		"table": {
			Name: "table",
			Call: builtinGridLike("table"),
			Fields: map[string]value.Value{
				"cell": &value.NativeFunc{Name: "table.cell", Call: builtinCell("table-cell")},
			},
		},
		"grid": {
			Name: "grid",
			Call: builtinGridLike("grid"),
			Fields: map[string]value.Value{
				"cell": &value.NativeFunc{Name: "grid.cell", Call: builtinCell("table-cell")},
			},
		},
	}
}

func contentArg(args *value.Arguments, i int) (value.Content, error) {
	v, ok := arg(args, i)
	if !ok {
		return value.Content{Kind: value.ContentEmpty}, nil
	}
	c, ok := v.(value.Content)
	if !ok {
		return value.Content{}, fmt.Errorf("expected content, found %s", v.Kind())
	}
	return c, nil
}

func builtinStrong(_ interface{}, args *value.Arguments) (value.Value, error) {
	body, err := contentArg(args, 0)
	if err != nil {
		return nil, err
	}
	f := value.NewDict()
	f.Set("body", body)
	return value.ElementContent(&value.Element{ElemKind: "strong", Fields: f}), nil
}

func builtinEmph(_ interface{}, args *value.Arguments) (value.Value, error) {
	body, err := contentArg(args, 0)
	if err != nil {
		return nil, err
	}
	f := value.NewDict()
	f.Set("body", body)
	return value.ElementContent(&value.Element{ElemKind: "emph", Fields: f}), nil
}

// builtinHeading implements `heading(level: 1, body)`, the function-call
// equivalent of markup's "= Heading" syntax.
func builtinHeading(_ interface{}, args *value.Arguments) (value.Value, error) {
	level := 1
	if v, ok := args.Named["level"]; ok {
		li, ok := v.(value.Int)
		if !ok {
			return nil, fmt.Errorf("expected integer, found %s", v.Kind())
		}
		level = int(li)
	}
	body, err := contentArg(args, 0)
	if err != nil {
		return nil, err
	}
	f := value.NewDict()
	f.Set("level", value.Int(level))
	f.Set("body", body)
	return value.ElementContent(&value.Element{ElemKind: "heading", Fields: f}), nil
}

// builtinRef implements `ref(<label>)` (spec §8 scenario 3).
func builtinRef(_ interface{}, args *value.Arguments) (value.Value, error) {
	v, ok := arg(args, 0)
	if !ok {
		return nil, fmt.Errorf("ref: expected 1 positional argument, found 0")
	}
	lbl, ok := v.(value.Label)
	if !ok {
		return nil, fmt.Errorf("expected label, found %s", v.Kind())
	}
	f := value.NewDict()
	f.Set("target", lbl)
	return value.ElementContent(&value.Element{ElemKind: "ref", Fields: f}), nil
}

// builtinList returns a constructor wrapping each positional content
// argument as itemKind, then grouping them under a single parentKind
// element — the function-call equivalent of what the realization
// engine's grouping pass (spec §4.I step 1) does for markup list/enum
// items gathered from adjacent source lines.
func builtinList(itemKind, parentKind string) func(interface{}, *value.Arguments) (value.Value, error) {
	return func(_ interface{}, args *value.Arguments) (value.Value, error) {
		items := make([]value.Value, 0, len(args.Positional))
		for _, a := range args.Positional {
			body, ok := a.(value.Content)
			if !ok {
				return nil, fmt.Errorf("expected content, found %s", a.Kind())
			}
			bf := value.NewDict()
			bf.Set("body", body)
			items = append(items, value.ElementContent(&value.Element{ElemKind: itemKind, Fields: bf}))
		}
		f := value.NewDict()
		f.Set("items", value.Array{Elems: items})
		return value.ElementContent(&value.Element{ElemKind: parentKind, Fields: f}), nil
	}
}

// builtinFigure implements `figure(body, caption: ..)`.
func builtinFigure(_ interface{}, args *value.Arguments) (value.Value, error) {
	body, err := contentArg(args, 0)
	if err != nil {
		return nil, err
	}
	f := value.NewDict()
	f.Set("body", body)
	if v, ok := args.Named["caption"]; ok {
		cap, ok := v.(value.Content)
		if !ok {
			return nil, fmt.Errorf("expected content, found %s", v.Kind())
		}
		f.Set("caption", cap)
	}
	return value.ElementContent(&value.Element{ElemKind: "figure", Fields: f}), nil
}

// builtinCell implements `table.cell`/`grid.cell`: an explicitly
// positioned cell, consumed by the enclosing table()/grid() call (spec
// §4.I "Figure-like elements ... enforce that declared (x, y)
// coordinates do not collide").
func builtinCell(elemKind string) func(interface{}, *value.Arguments) (value.Value, error) {
	return func(_ interface{}, args *value.Arguments) (value.Value, error) {
		f := value.NewDict()
		if v, ok := args.Named["x"]; ok {
			xi, ok := v.(value.Int)
			if !ok {
				return nil, fmt.Errorf("expected integer, found %s", v.Kind())
			}
			f.Set("x", xi)
		}
		if v, ok := args.Named["y"]; ok {
			yi, ok := v.(value.Int)
			if !ok {
				return nil, fmt.Errorf("expected integer, found %s", v.Kind())
			}
			f.Set("y", yi)
		}
		body, err := contentArg(args, 0)
		if err != nil {
			return nil, err
		}
		f.Set("body", body)
		return value.ElementContent(&value.Element{ElemKind: elemKind, Fields: f}), nil
	}
}

func cellCoord(f *value.Dict, key string) (int, bool) {
	v, ok := f.Get(key)
	if !ok {
		return 0, false
	}
	i, ok := v.(value.Int)
	return int(i), ok
}

// builtinGridLike implements `table(columns: .., [a], [b], table.cell(x:
// .., y: ..)[c], ..)` and `grid`'s identical layout-cell semantics: cells
// are placed implicitly in row-major order unless given explicit (x, y)
// coordinates, and a later cell pinned to an already-filled slot is a
// diagnostic (spec §4.I, §8 scenario 4).
func builtinGridLike(elemKind string) func(interface{}, *value.Arguments) (value.Value, error) {
	return func(_ interface{}, args *value.Arguments) (value.Value, error) {
		columns := 1
		if v, ok := args.Named["columns"]; ok {
			switch c := v.(type) {
			case value.Int:
				columns = int(c)
			case value.Array:
				columns = len(c.Elems)
			default:
				return nil, fmt.Errorf("expected integer or array, found %s", v.Kind())
			}
		}
		if columns < 1 {
			columns = 1
		}

		type placed struct {
			x, y int
			body value.Content
		}
		occupied := map[[2]int]bool{}
		var cells []placed
		next := 0
		advance := func() (int, int) {
			for occupied[[2]int{next % columns, next / columns}] {
				next++
			}
			x, y := next%columns, next/columns
			next++
			return x, y
		}
		place := func(x, y int, body value.Content) error {
			key := [2]int{x, y}
			if occupied[key] {
				return fmt.Errorf("attempted to place a second cell at column %d, row %d", x, y)
			}
			occupied[key] = true
			cells = append(cells, placed{x: x, y: y, body: body})
			return nil
		}

		for _, a := range args.Positional {
			content, ok := a.(value.Content)
			if !ok {
				return nil, fmt.Errorf("expected content, found %s", a.Kind())
			}
			if content.Kind == value.ContentElement && content.Elem.ElemKind == "table-cell" {
				f := content.Elem.Fields
				x, hasX := cellCoord(f, "x")
				y, hasY := cellCoord(f, "y")
				if !hasX || !hasY {
					ax, ay := advance()
					if !hasX {
						x = ax
					}
					if !hasY {
						y = ay
					}
				}
				body, _ := f.Get("body")
				bc, _ := body.(value.Content)
				if err := place(x, y, bc); err != nil {
					return nil, err
				}
				continue
			}
			x, y := advance()
			if err := place(x, y, content); err != nil {
				return nil, err
			}
		}

		items := make([]value.Value, len(cells))
		for i, c := range cells {
			cf := value.NewDict()
			cf.Set("x", value.Int(c.x))
			cf.Set("y", value.Int(c.y))
			cf.Set("body", c.body)
			items[i] = value.ElementContent(&value.Element{ElemKind: "table-cell", Fields: cf})
		}
		tf := value.NewDict()
		tf.Set("columns", value.Int(columns))
		tf.Set("cells", value.Array{Elems: items})
		return value.ElementContent(&value.Element{ElemKind: elemKind, Fields: tf}), nil
	}
}
