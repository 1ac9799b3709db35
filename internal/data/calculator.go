package data

import (
	"errors"
	"fmt"
	"go/ast"
	"go/constant"
	"go/parser"
	"go/token"
	"strconv"
	"strings"
)

// evalArithmetic evaluates an arithmetic expression using exact constant
// arithmetic. Supports + - * / %, parentheses and decimal literals.
func evalArithmetic(expr string) (string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return "", errors.New("empty expression")
	}
	node, err := parser.ParseExpr(expr)
	if err != nil {
		return "", fmt.Errorf("parse expression: %w", err)
	}
	v, err := evalNode(node)
	if err != nil {
		return "", err
	}
	if v.Kind() == constant.Int {
		return v.ExactString(), nil
	}
	f, _ := constant.Float64Val(v)
	return strconv.FormatFloat(f, 'g', 12, 64), nil
}

func evalNode(n ast.Expr) (constant.Value, error) {
	switch e := n.(type) {
	case *ast.BasicLit:
		if e.Kind != token.INT && e.Kind != token.FLOAT {
			return nil, fmt.Errorf("unsupported literal %s", e.Value)
		}
		v := constant.MakeFromLiteral(e.Value, e.Kind, 0)
		if v.Kind() == constant.Unknown {
			return nil, fmt.Errorf("invalid number %s", e.Value)
		}
		return v, nil
	case *ast.ParenExpr:
		return evalNode(e.X)
	case *ast.UnaryExpr:
		x, err := evalNode(e.X)
		if err != nil {
			return nil, err
		}
		if e.Op != token.ADD && e.Op != token.SUB {
			return nil, fmt.Errorf("unsupported operator %s", e.Op)
		}
		return constant.UnaryOp(e.Op, x, 0), nil
	case *ast.BinaryExpr:
		x, err := evalNode(e.X)
		if err != nil {
			return nil, err
		}
		y, err := evalNode(e.Y)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case token.ADD, token.SUB, token.MUL:
			return constant.BinaryOp(x, e.Op, y), nil
		case token.QUO:
			if constant.Sign(y) == 0 {
				return nil, errors.New("division by zero")
			}
			return constant.BinaryOp(x, token.QUO, y), nil
		case token.REM:
			if x.Kind() != constant.Int || y.Kind() != constant.Int {
				return nil, errors.New("% needs integer operands")
			}
			if constant.Sign(y) == 0 {
				return nil, errors.New("division by zero")
			}
			return constant.BinaryOp(x, token.REM, y), nil
		}
		return nil, fmt.Errorf("unsupported operator %s", e.Op)
	}
	return nil, fmt.Errorf("unsupported expression %T", n)
}
