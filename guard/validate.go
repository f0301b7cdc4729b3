package guard

import (
	"errors"
	"strings"

	"github.com/yuin/gopher-lua/ast"
)

// errRestricted rejects an expression during validation. It never leaves the
// package; every rejection is reported as Undetermined.
var errRestricted = errors.New("restricted construct in guard expression")

// reservedIdents are names a guard expression may not reference at all.
// They cover dynamic execution, module loading, environment access, and the
// raw-access and metatable functions that reach interpreter internals. The evaluation
// environment does not define them either; rejecting them at compile time
// keeps the two layers independent.
var reservedIdents = map[string]struct{}{
	"require":        {},
	"load":           {},
	"loadstring":     {},
	"dofile":         {},
	"loadfile":       {},
	"getmetatable":   {},
	"setmetatable":   {},
	"getfenv":        {},
	"setfenv":        {},
	"rawget":         {},
	"rawset":         {},
	"rawequal":       {},
	"rawlen":         {},
	"collectgarbage": {},
	"_G":             {},
}

// validateChunk accepts only a single-expression chunk: exactly one return
// statement carrying exactly one validated expression.
func validateChunk(chunk []ast.Stmt) error {
	if len(chunk) != 1 {
		return errRestricted
	}
	ret, ok := chunk[0].(*ast.ReturnStmt)
	if !ok || len(ret.Exprs) != 1 {
		return errRestricted
	}
	return validateExpr(ret.Exprs[0])
}

// validateExpr walks an expression and rejects everything outside the
// allowed forms: literals, identifiers, attribute access, operators, table
// constructors, and calls. Attribute keys and method names reserved for the
// interpreter (double-underscore prefixed) are rejected, as are references
// to any reserved identifier. Unknown node kinds are rejected by default.
func validateExpr(e ast.Expr) error {
	switch ex := e.(type) {
	case *ast.TrueExpr, *ast.FalseExpr, *ast.NilExpr, *ast.NumberExpr, *ast.StringExpr:
		return nil

	case *ast.IdentExpr:
		if _, ok := reservedIdents[ex.Value]; ok {
			return errRestricted
		}
		return nil

	case *ast.AttrGetExpr:
		if key, ok := ex.Key.(*ast.StringExpr); ok && strings.HasPrefix(key.Value, "__") {
			return errRestricted
		}
		if err := validateExpr(ex.Object); err != nil {
			return err
		}
		return validateExpr(ex.Key)

	case *ast.ArithmeticOpExpr:
		return validatePair(ex.Lhs, ex.Rhs)
	case *ast.RelationalOpExpr:
		return validatePair(ex.Lhs, ex.Rhs)
	case *ast.LogicalOpExpr:
		return validatePair(ex.Lhs, ex.Rhs)
	case *ast.StringConcatOpExpr:
		return validatePair(ex.Lhs, ex.Rhs)

	case *ast.UnaryMinusOpExpr:
		return validateExpr(ex.Expr)
	case *ast.UnaryNotOpExpr:
		return validateExpr(ex.Expr)
	case *ast.UnaryLenOpExpr:
		return validateExpr(ex.Expr)

	case *ast.TableExpr:
		for _, field := range ex.Fields {
			if field.Key != nil {
				if err := validateExpr(field.Key); err != nil {
					return err
				}
			}
			if err := validateExpr(field.Value); err != nil {
				return err
			}
		}
		return nil

	case *ast.FuncCallExpr:
		if strings.HasPrefix(ex.Method, "__") {
			return errRestricted
		}
		if ex.Func != nil {
			if err := validateExpr(ex.Func); err != nil {
				return err
			}
		}
		if ex.Receiver != nil {
			if err := validateExpr(ex.Receiver); err != nil {
				return err
			}
		}
		for _, arg := range ex.Args {
			if err := validateExpr(arg); err != nil {
				return err
			}
		}
		return nil

	default:
		// FunctionExpr, varargs, and anything the parser grows later.
		return errRestricted
	}
}

func validatePair(lhs, rhs ast.Expr) error {
	if err := validateExpr(lhs); err != nil {
		return err
	}
	return validateExpr(rhs)
}
