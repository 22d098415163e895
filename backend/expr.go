package backend

import (
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Expr evaluates a compiled expression on one event. The event holds the
// values of Program.Vars in order.
type Expr func(event []float64) float64

// Program compiles ROOT-style selection and weight expressions such as
// "q_1*q_2<0" or "(gen_match_2 == 5)*0.95 + (gen_match_2 != 5)" and
// collects the branches they read. Comparisons and logical operators yield
// 0 or 1, && and || short-circuit, ^ is exponentiation.
type Program struct {
	index map[string]int
	vars  []string
}

func NewProgram() *Program {
	return &Program{index: make(map[string]int)}
}

// Vars returns the branch names read by the compiled expressions, in the
// order in which an event has to provide them.
func (p *Program) Vars() []string {
	return append([]string(nil), p.vars...)
}

var namespaces = strings.NewReplacer("TMath::", "", "std::", "")

// Compile compiles src. An empty source evaluates to 1.
func (p *Program) Compile(src string) (Expr, error) {
	if strings.TrimSpace(src) == "" {
		return func([]float64) float64 { return 1 }, nil
	}
	node, err := parser.ParseExpr(namespaces.Replace(src))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing expression %q", src)
	}
	e, err := p.compile(node)
	if err != nil {
		return nil, errors.Wrapf(err, "compiling expression %q", src)
	}
	return e, nil
}

func (p *Program) variable(name string) Expr {
	i, ok := p.index[name]
	if !ok {
		i = len(p.vars)
		p.index[name] = i
		p.vars = append(p.vars, name)
	}
	return func(event []float64) float64 { return event[i] }
}

func truth(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (p *Program) compile(node ast.Expr) (Expr, error) {
	switch n := node.(type) {
	case *ast.ParenExpr:
		return p.compile(n.X)

	case *ast.BasicLit:
		if n.Kind != token.INT && n.Kind != token.FLOAT {
			return nil, errors.Newf("unsupported literal %s", n.Value)
		}
		v, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return nil, err
		}
		return func([]float64) float64 { return v }, nil

	case *ast.Ident:
		switch n.Name {
		case "true", "kTRUE":
			return func([]float64) float64 { return 1 }, nil
		case "false", "kFALSE":
			return func([]float64) float64 { return 0 }, nil
		}
		return p.variable(n.Name), nil

	case *ast.UnaryExpr:
		x, err := p.compile(n.X)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case token.SUB:
			return func(e []float64) float64 { return -x(e) }, nil
		case token.ADD:
			return x, nil
		case token.NOT:
			return func(e []float64) float64 { return truth(x(e) == 0) }, nil
		}
		return nil, errors.Newf("unsupported unary operator %s", n.Op)

	case *ast.BinaryExpr:
		return p.binary(n)

	case *ast.CallExpr:
		return p.call(n)
	}
	return nil, errors.Newf("unsupported expression %T", node)
}

func (p *Program) binary(n *ast.BinaryExpr) (Expr, error) {
	x, err := p.compile(n.X)
	if err != nil {
		return nil, err
	}
	y, err := p.compile(n.Y)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case token.ADD:
		return func(e []float64) float64 { return x(e) + y(e) }, nil
	case token.SUB:
		return func(e []float64) float64 { return x(e) - y(e) }, nil
	case token.MUL:
		return func(e []float64) float64 { return x(e) * y(e) }, nil
	case token.QUO:
		return func(e []float64) float64 { return x(e) / y(e) }, nil
	case token.REM:
		return func(e []float64) float64 { return math.Mod(x(e), y(e)) }, nil
	case token.XOR:
		return func(e []float64) float64 { return math.Pow(x(e), y(e)) }, nil
	case token.LSS:
		return func(e []float64) float64 { return truth(x(e) < y(e)) }, nil
	case token.GTR:
		return func(e []float64) float64 { return truth(x(e) > y(e)) }, nil
	case token.LEQ:
		return func(e []float64) float64 { return truth(x(e) <= y(e)) }, nil
	case token.GEQ:
		return func(e []float64) float64 { return truth(x(e) >= y(e)) }, nil
	case token.EQL:
		return func(e []float64) float64 { return truth(x(e) == y(e)) }, nil
	case token.NEQ:
		return func(e []float64) float64 { return truth(x(e) != y(e)) }, nil
	case token.LAND:
		return func(e []float64) float64 { return truth(x(e) != 0 && y(e) != 0) }, nil
	case token.LOR:
		return func(e []float64) float64 { return truth(x(e) != 0 || y(e) != 0) }, nil
	}
	return nil, errors.Newf("unsupported operator %s", n.Op)
}

var unary = map[string]func(float64) float64{
	"abs":   math.Abs,
	"fabs":  math.Abs,
	"sqrt":  math.Sqrt,
	"exp":   math.Exp,
	"log":   math.Log,
	"log10": math.Log10,
	"cos":   math.Cos,
	"sin":   math.Sin,
	"tan":   math.Tan,
	"cosh":  math.Cosh,
	"sinh":  math.Sinh,
	"tanh":  math.Tanh,
	"atan":  math.Atan,
	"floor": math.Floor,
	"ceil":  math.Ceil,
}

var binary = map[string]func(float64, float64) float64{
	"pow":   math.Pow,
	"min":   math.Min,
	"max":   math.Max,
	"atan2": math.Atan2,
}

func (p *Program) call(n *ast.CallExpr) (Expr, error) {
	ident, ok := n.Fun.(*ast.Ident)
	if !ok {
		return nil, errors.Newf("unsupported function call %T", n.Fun)
	}
	name := strings.ToLower(ident.Name)
	args := make([]Expr, len(n.Args))
	for i, arg := range n.Args {
		a, err := p.compile(arg)
		if err != nil {
			return nil, err
		}
		args[i] = a
	}
	if f, ok := unary[name]; ok && len(args) == 1 {
		x := args[0]
		return func(e []float64) float64 { return f(x(e)) }, nil
	}
	if f, ok := binary[name]; ok && len(args) == 2 {
		x, y := args[0], args[1]
		return func(e []float64) float64 { return f(x(e), y(e)) }, nil
	}
	return nil, errors.Newf("unsupported function %s with %d arguments", ident.Name, len(args))
}
