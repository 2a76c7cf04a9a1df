package ir

import (
	"fmt"
	"sort"
	"strings"
)

// String renders the module as deterministic text. The format is
// stable across runs for identical input, which makes it suitable for
// golden-file comparison and for artifact storage.
func (m *Module) String() string {
	p := &printer{m: m, names: make(map[ValueID]string)}
	for _, id := range m.BlockOf(m.Body).Ops {
		o := m.Op(id)
		if !o.erased {
			p.printOp(o, 0)
		}
	}
	return p.sb.String()
}

type printer struct {
	m     *Module
	sb    strings.Builder
	names map[ValueID]string
	next  int
}

func (p *printer) name(v ValueID) string {
	if s, ok := p.names[v]; ok {
		return s
	}
	s := fmt.Sprintf("%%%d", p.next)
	p.next++
	p.names[v] = s
	return s
}

func (p *printer) indent(depth int) {
	p.sb.WriteString(strings.Repeat("  ", depth))
}

func (p *printer) printOp(o *Op, depth int) {
	p.indent(depth)
	if len(o.Results) > 0 {
		for i, r := range o.Results {
			if i > 0 {
				p.sb.WriteString(", ")
			}
			p.sb.WriteString(p.name(r))
		}
		p.sb.WriteString(" = ")
	}
	p.sb.WriteString(o.Name)
	for i, v := range o.Operands {
		if i == 0 {
			p.sb.WriteString(" ")
		} else {
			p.sb.WriteString(", ")
		}
		p.sb.WriteString(p.name(v))
	}
	if len(o.Attrs) > 0 {
		keys := make([]string, 0, len(o.Attrs))
		for k := range o.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		p.sb.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				p.sb.WriteString(", ")
			}
			switch v := o.Attrs[k].(type) {
			case string:
				fmt.Fprintf(&p.sb, "%s = %q", k, v)
			default:
				fmt.Fprintf(&p.sb, "%s = %v", k, v)
			}
		}
		p.sb.WriteString("}")
	}
	if len(o.Results) > 0 {
		p.sb.WriteString(" : ")
		for i, r := range o.Results {
			if i > 0 {
				p.sb.WriteString(", ")
			}
			p.sb.WriteString(p.m.TypeOf(r).String())
		}
	}
	if len(o.Regions) == 0 {
		p.sb.WriteString("\n")
		return
	}
	for _, rid := range o.Regions {
		p.sb.WriteString(" {\n")
		for _, bid := range p.m.RegionOf(rid).Blocks {
			p.printBlock(bid, depth+1)
		}
		p.indent(depth)
		p.sb.WriteString("}")
	}
	p.sb.WriteString("\n")
}

func (p *printer) printBlock(bid BlockID, depth int) {
	blk := p.m.BlockOf(bid)
	if len(blk.Params) > 0 {
		p.indent(depth)
		p.sb.WriteString("^(")
		for i, v := range blk.Params {
			if i > 0 {
				p.sb.WriteString(", ")
			}
			fmt.Fprintf(&p.sb, "%s: %s", p.name(v), p.m.TypeOf(v).String())
		}
		p.sb.WriteString("):\n")
	}
	for _, id := range blk.Ops {
		o := p.m.Op(id)
		if !o.erased {
			p.printOp(o, depth)
		}
	}
}
