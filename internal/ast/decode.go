package ast

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

// DecodeScript decodes a YAML parse-tree document produced by the
// external parser. The filename is only used to stamp positions; the
// document itself may carry explicit line/col fields per node, and
// falls back to the YAML node's own position otherwise.
func DecodeScript(filename string, data []byte) (*Script, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse tree is not valid YAML: %w", err)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, fmt.Errorf("parse tree document is empty")
	}
	d := &decoder{filename: filename}
	n := root.Content[0]
	if d.kind(n) != "script" {
		return nil, d.errf(n, "root node must have kind \"script\", got %q", d.kind(n))
	}
	stmts, err := d.stmtList(d.field(n, "stmts"))
	if err != nil {
		return nil, err
	}
	return &Script{Pos: d.pos(n), Stmts: stmts}, nil
}

type decoder struct {
	filename string
}

func (d *decoder) pos(n *yaml.Node) Pos {
	p := Pos{Filename: d.filename, Line: n.Line, Column: n.Column}
	if ln := d.field(n, "line"); ln != nil {
		fmt.Sscanf(ln.Value, "%d", &p.Line)
	}
	if col := d.field(n, "col"); col != nil {
		fmt.Sscanf(col.Value, "%d", &p.Column)
	}
	return p
}

func (d *decoder) errf(n *yaml.Node, format string, args ...any) error {
	loc := fmt.Sprintf("%s:%d:%d", d.filename, n.Line, n.Column)
	return fmt.Errorf("%s: %s", loc, fmt.Sprintf(format, args...))
}

// field returns the value node for a mapping key, or nil.
func (d *decoder) field(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func (d *decoder) kind(n *yaml.Node) string {
	if k := d.field(n, "kind"); k != nil {
		return k.Value
	}
	return ""
}

func (d *decoder) strField(n *yaml.Node, key string) string {
	if f := d.field(n, key); f != nil {
		return f.Value
	}
	return ""
}

func (d *decoder) stmtList(n *yaml.Node) ([]Stmt, error) {
	if n == nil {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, d.errf(n, "expected a statement list")
	}
	stmts := make([]Stmt, 0, len(n.Content))
	for _, c := range n.Content {
		s, err := d.stmt(c)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	return stmts, nil
}

func (d *decoder) stmt(n *yaml.Node) (Stmt, error) {
	switch k := d.kind(n); k {
	case "block":
		stmts, err := d.stmtList(d.field(n, "stmts"))
		if err != nil {
			return nil, err
		}
		return &BlockStmt{Pos: d.pos(n), Stmts: stmts}, nil
	case "expr":
		x, err := d.expr(d.field(n, "x"))
		if err != nil {
			return nil, err
		}
		return &ExprStmt{Pos: d.pos(n), X: x}, nil
	case "assign":
		return d.assign(n)
	case "if":
		cond, err := d.expr(d.field(n, "cond"))
		if err != nil {
			return nil, err
		}
		then, err := d.stmt(d.field(n, "then"))
		if err != nil {
			return nil, err
		}
		s := &IfStmt{Pos: d.pos(n), Cond: cond, Then: then}
		if e := d.field(n, "else"); e != nil {
			if s.Else, err = d.stmt(e); err != nil {
				return nil, err
			}
		}
		return s, nil
	case "while", "dowhile":
		cond, err := d.expr(d.field(n, "cond"))
		if err != nil {
			return nil, err
		}
		body, err := d.stmt(d.field(n, "body"))
		if err != nil {
			return nil, err
		}
		return &WhileStmt{Pos: d.pos(n), Cond: cond, Body: body, PostTested: k == "dowhile"}, nil
	case "for", "parfor":
		return d.loop(n, k)
	case "func":
		return d.funcDecl(n)
	case "return":
		var vals []Expr
		if vn := d.field(n, "values"); vn != nil {
			for _, c := range vn.Content {
				v, err := d.expr(c)
				if err != nil {
					return nil, err
				}
				vals = append(vals, v)
			}
		}
		return &ReturnStmt{Pos: d.pos(n), Values: vals}, nil
	case "import":
		return &ImportStmt{Pos: d.pos(n), Path: d.strField(n, "path"), Alias: d.strField(n, "alias")}, nil
	default:
		return nil, d.errf(n, "unknown statement kind %q", k)
	}
}

func (d *decoder) assign(n *yaml.Node) (Stmt, error) {
	tn := d.field(n, "targets")
	if tn == nil || tn.Kind != yaml.SequenceNode || len(tn.Content) == 0 {
		return nil, d.errf(n, "assignment needs at least one target")
	}
	targets := make([]AssignTarget, 0, len(tn.Content))
	for _, c := range tn.Content {
		t := AssignTarget{Pos: d.pos(c), Name: d.strField(c, "name")}
		if t.Name == "" {
			return nil, d.errf(c, "assignment target needs a name")
		}
		if in := d.field(c, "index"); in != nil {
			idx, err := d.indexSpec(in)
			if err != nil {
				return nil, err
			}
			t.Index = idx
		}
		targets = append(targets, t)
	}
	rhs, err := d.expr(d.field(n, "rhs"))
	if err != nil {
		return nil, err
	}
	return &AssignStmt{Pos: d.pos(n), Targets: targets, RHS: rhs}, nil
}

func (d *decoder) loop(n *yaml.Node, kind string) (Stmt, error) {
	v := d.strField(n, "var")
	if v == "" {
		return nil, d.errf(n, "%s loop needs a var", kind)
	}
	from, err := d.expr(d.field(n, "from"))
	if err != nil {
		return nil, err
	}
	to, err := d.expr(d.field(n, "to"))
	if err != nil {
		return nil, err
	}
	var step Expr
	if sn := d.field(n, "step"); sn != nil {
		if step, err = d.expr(sn); err != nil {
			return nil, err
		}
	}
	body, err := d.stmt(d.field(n, "body"))
	if err != nil {
		return nil, err
	}
	if kind == "parfor" {
		return &ParForStmt{Pos: d.pos(n), Var: v, From: from, To: to, Step: step, Body: body}, nil
	}
	return &ForStmt{Pos: d.pos(n), Var: v, From: from, To: to, Step: step, Body: body}, nil
}

func (d *decoder) funcDecl(n *yaml.Node) (Stmt, error) {
	name := d.strField(n, "name")
	if name == "" {
		return nil, d.errf(n, "function declaration needs a name")
	}
	f := &FuncDecl{Pos: d.pos(n), Name: name}
	if pn := d.field(n, "params"); pn != nil {
		for _, c := range pn.Content {
			p := Param{Pos: d.pos(c), Name: d.strField(c, "name")}
			if tn := d.field(c, "type"); tn != nil {
				tr := d.typeRef(tn)
				p.Type = &tr
			}
			f.Params = append(f.Params, p)
		}
	}
	if rn := d.field(n, "results"); rn != nil {
		for _, c := range rn.Content {
			f.Results = append(f.Results, d.typeRef(c))
		}
	}
	body, err := d.stmt(d.field(n, "body"))
	if err != nil {
		return nil, err
	}
	blk, ok := body.(*BlockStmt)
	if !ok {
		return nil, d.errf(n, "function body must be a block")
	}
	f.Body = blk
	return f, nil
}

func (d *decoder) typeRef(n *yaml.Node) TypeRef {
	return TypeRef{
		Pos:    d.pos(n),
		Data:   d.strField(n, "data"),
		Elem:   d.strField(n, "elem"),
		Scalar: d.strField(n, "scalar"),
	}
}

func (d *decoder) expr(n *yaml.Node) (Expr, error) {
	if n == nil {
		return nil, fmt.Errorf("%s: missing expression node", d.filename)
	}
	switch k := d.kind(n); k {
	case "lit":
		return d.literal(n)
	case "ident":
		return &Ident{Pos: d.pos(n), Name: d.strField(n, "name")}, nil
	case "arg":
		return &ArgRef{Pos: d.pos(n), Name: d.strField(n, "name")}, nil
	case "call":
		c := &Call{Pos: d.pos(n), Name: d.strField(n, "name")}
		if an := d.field(n, "args"); an != nil {
			for _, cn := range an.Content {
				a, err := d.expr(cn)
				if err != nil {
					return nil, err
				}
				c.Args = append(c.Args, a)
			}
		}
		return c, nil
	case "cast":
		x, err := d.expr(d.field(n, "x"))
		if err != nil {
			return nil, err
		}
		return &Cast{Pos: d.pos(n), DataType: d.strField(n, "data"), ValueType: d.strField(n, "vtype"), X: x}, nil
	case "unary":
		x, err := d.expr(d.field(n, "x"))
		if err != nil {
			return nil, err
		}
		return &Unary{Pos: d.pos(n), Op: d.strField(n, "op"), X: x}, nil
	case "binary":
		l, err := d.expr(d.field(n, "l"))
		if err != nil {
			return nil, err
		}
		r, err := d.expr(d.field(n, "r"))
		if err != nil {
			return nil, err
		}
		return &Binary{Pos: d.pos(n), Op: d.strField(n, "op"), L: l, R: r}, nil
	case "idx":
		obj, err := d.expr(d.field(n, "obj"))
		if err != nil {
			return nil, err
		}
		idx, err := d.indexSpec(n)
		if err != nil {
			return nil, err
		}
		return &RightIdx{Pos: d.pos(n), Obj: obj, Index: *idx, Filter: d.strField(n, "filter") == "true"}, nil
	default:
		return nil, d.errf(n, "unknown expression kind %q", k)
	}
}

func (d *decoder) indexSpec(n *yaml.Node) (*IndexSpec, error) {
	spec := &IndexSpec{Pos: d.pos(n)}
	var err error
	if rn := d.field(n, "rows"); rn != nil {
		if spec.Rows, err = d.rangeSpec(rn); err != nil {
			return nil, err
		}
	}
	if cn := d.field(n, "cols"); cn != nil {
		if spec.Cols, err = d.rangeSpec(cn); err != nil {
			return nil, err
		}
	}
	return spec, nil
}

// rangeSpec decodes one axis: {at: expr} for a single position, or
// {lo: expr, hi: expr} with either bound optional for a range.
func (d *decoder) rangeSpec(n *yaml.Node) (*RangeSpec, error) {
	r := &RangeSpec{Pos: d.pos(n)}
	var err error
	if at := d.field(n, "at"); at != nil {
		if r.Point, err = d.expr(at); err != nil {
			return nil, err
		}
		return r, nil
	}
	if lo := d.field(n, "lo"); lo != nil {
		if r.Lo, err = d.expr(lo); err != nil {
			return nil, err
		}
	}
	if hi := d.field(n, "hi"); hi != nil {
		if r.Hi, err = d.expr(hi); err != nil {
			return nil, err
		}
	}
	if r.Lo == nil && r.Hi == nil {
		return nil, d.errf(n, "index axis needs \"at\", \"lo\", or \"hi\"")
	}
	return r, nil
}

func (d *decoder) literal(n *yaml.Node) (Expr, error) {
	vn := d.field(n, "value")
	if vn == nil {
		return nil, d.errf(n, "literal needs a value")
	}
	var v any
	if err := vn.Decode(&v); err != nil {
		return nil, d.errf(vn, "bad literal value: %v", err)
	}
	pos := d.pos(n)
	switch val := v.(type) {
	case int:
		return Int(pos, int64(val)), nil
	case int64:
		return Int(pos, val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, d.errf(vn, "integer literal %d overflows signed 64-bit", val)
		}
		return Int(pos, int64(val)), nil
	case float64:
		return Float(pos, val), nil
	case bool:
		return BoolLit(pos, val), nil
	case string:
		return Str(pos, val), nil
	default:
		return nil, d.errf(vn, "unsupported literal value of type %T", v)
	}
}
