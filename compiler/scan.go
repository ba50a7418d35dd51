package compiler

import (
	"fmt"
	"reflect"

	"github.com/dop251/goja/ast"
)

// scan reports identifier references the program never declares and the
// ambient environment does not provide. Declarations are collected in a
// single flat pass; shadowing across nested scopes can suppress a
// diagnostic, never invent one.
func (c *Compiler) scan(prog *ast.Program) []Diagnostic {
	s := &scanner{
		declared: map[string]struct{}{},
		assigned: map[string]struct{}{},
	}
	for _, st := range prog.Body {
		s.walk(st)
	}

	var diags []Diagnostic
	seen := map[string]struct{}{}
	for _, name := range s.refs {
		if _, ok := s.declared[name]; ok {
			continue
		}
		if _, ok := c.globals[name]; ok {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if _, ok := s.assigned[name]; ok {
			diags = append(diags, Diagnostic{
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("implicit global '%s'", name),
			})
		} else {
			diags = append(diags, Diagnostic{
				Severity: SeverityError,
				Message:  unresolvedMessage(name),
			})
		}
	}
	return diags
}

type scanner struct {
	declared map[string]struct{}
	assigned map[string]struct{}
	refs     []string // reference order, with repeats
}

func (s *scanner) declare(name string) {
	s.declared[name] = struct{}{}
}

func (s *scanner) refer(name string) {
	s.refs = append(s.refs, name)
}

func (s *scanner) walk(node any) {
	switch n := node.(type) {
	case nil:
		return

	case *ast.Identifier:
		if n != nil {
			s.refer(n.Name.String())
		}

	case *ast.DotExpression:
		if n != nil {
			s.walk(n.Left) // the property name is not a binding reference
		}

	case *ast.PrivateDotExpression:
		if n != nil {
			s.walk(n.Left)
		}

	case *ast.VariableDeclaration:
		if n != nil {
			for _, b := range n.List {
				s.binding(b)
			}
		}

	case *ast.LexicalDeclaration:
		if n != nil {
			for _, b := range n.List {
				s.binding(b)
			}
		}

	case *ast.FunctionDeclaration:
		if n != nil {
			s.walk(n.Function)
		}

	case *ast.FunctionLiteral:
		if n != nil {
			if n.Name != nil {
				s.declare(n.Name.Name.String())
			}
			s.parameters(n.ParameterList)
			s.walk(n.Body)
		}

	case *ast.ArrowFunctionLiteral:
		if n != nil {
			s.parameters(n.ParameterList)
			s.walk(n.Body)
		}

	case *ast.ClassDeclaration:
		if n != nil {
			s.walk(n.Class)
		}

	case *ast.ClassLiteral:
		if n != nil {
			if n.Name != nil {
				s.declare(n.Name.Name.String())
			}
			s.walk(n.SuperClass)
			for _, el := range n.Body {
				s.walk(el)
			}
		}

	case *ast.CatchStatement:
		if n != nil {
			s.declareAll(n.Parameter)
			s.walk(n.Body)
		}

	case *ast.ForIntoVar:
		if n != nil {
			s.binding(n.Binding)
		}

	case *ast.ForDeclaration:
		if n != nil {
			s.declareAll(n.Target)
		}

	case *ast.AssignExpression:
		if n != nil {
			if id, ok := n.Left.(*ast.Identifier); ok {
				name := id.Name.String()
				s.assigned[name] = struct{}{}
				s.refer(name)
			} else {
				s.walk(n.Left)
			}
			s.walk(n.Right)
		}

	case *ast.PropertyShort:
		if n != nil {
			s.refer(n.Name.Name.String())
			s.walk(n.Initializer)
		}

	case *ast.PropertyKeyed:
		if n != nil {
			if n.Computed {
				s.walk(n.Key)
			}
			s.walk(n.Value)
		}

	case *ast.LabelledStatement:
		if n != nil {
			s.walk(n.Statement) // labels do not reference bindings
		}

	case *ast.BranchStatement:
		return

	default:
		s.fields(node)
	}
}

func (s *scanner) parameters(list *ast.ParameterList) {
	if list == nil {
		return
	}
	for _, b := range list.List {
		s.binding(b)
	}
	s.declareAll(list.Rest)
}

func (s *scanner) binding(b *ast.Binding) {
	if b == nil {
		return
	}
	s.declareAll(b.Target)
	s.walk(b.Initializer)
}

// declareAll marks every identifier inside a binding target as declared.
// This covers destructuring patterns without modeling them node by node.
func (s *scanner) declareAll(target any) {
	if target == nil {
		return
	}
	if id, ok := target.(*ast.Identifier); ok {
		if id != nil {
			s.declare(id.Name.String())
		}
		return
	}
	s.children(target, func(child any) { s.declareAll(child) })
}

// fields walks a node generically, feeding each child node back into walk so
// the typed cases above still apply to grandchildren.
func (s *scanner) fields(node any) {
	s.children(node, func(child any) { s.walk(child) })
}

func (s *scanner) children(node any, visit func(any)) {
	v := reflect.ValueOf(node)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < v.NumField(); i++ {
		s.childValue(v.Field(i), visit)
	}
}

func (s *scanner) childValue(f reflect.Value, visit func(any)) {
	switch f.Kind() {
	case reflect.Ptr, reflect.Interface:
		if !f.IsNil() && f.CanInterface() {
			visit(f.Interface())
		}
	case reflect.Slice:
		for i := 0; i < f.Len(); i++ {
			s.childValue(f.Index(i), visit)
		}
	case reflect.Struct:
		if f.CanAddr() && f.CanInterface() {
			visit(f.Addr().Interface())
		}
	}
}
