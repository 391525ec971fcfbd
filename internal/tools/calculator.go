package tools

import (
	"context"
	"errors"
	"math"
)

// MaxFactorial is the largest input whose factorial fits a float64
const MaxFactorial = 170

type operands struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

type single struct {
	N float64 `json:"n"`
}

type calcResult struct {
	Operation string `json:"operation"`
	Result    any    `json:"result"`
}

func binary(name, operation, description string, fn func(a, b float64) (float64, error)) Capability {
	return Capability{
		Name:        name,
		Description: description,
		Schema: ObjectSchema(
			Param{Name: "a", Type: "number", Description: "First operand", Required: true},
			Param{Name: "b", Type: "number", Description: "Second operand", Required: true},
		),
		Call: func(_ context.Context, args map[string]any) (string, error) {
			var in operands
			if err := decodeArgs(args, &in); err != nil {
				return "", err
			}
			res, err := fn(in.A, in.B)
			if err != nil {
				return "", err
			}
			return jsonResult(calcResult{Operation: operation, Result: res})
		},
	}
}

func unary(name, description string, fn func(n float64) (any, string, error)) Capability {
	return Capability{
		Name:        name,
		Description: description,
		Schema:      ObjectSchema(Param{Name: "n", Type: "number", Description: "Input number", Required: true}),
		Call: func(_ context.Context, args map[string]any) (string, error) {
			var in single
			if err := decodeArgs(args, &in); err != nil {
				return "", err
			}
			res, operation, err := fn(in.N)
			if err != nil {
				return "", err
			}
			return jsonResult(calcResult{Operation: operation, Result: res})
		},
	}
}

// Calculator returns the arithmetic capabilities
func Calculator() []Capability {
	return []Capability{
		binary("add", "addition", "Add two numbers and return the result.", func(a, b float64) (float64, error) {
			return a + b, nil
		}),
		binary("subtract", "subtraction", "Subtract b from a and return the result.", func(a, b float64) (float64, error) {
			return a - b, nil
		}),
		binary("multiply", "multiplication", "Multiply two numbers and return the result.", func(a, b float64) (float64, error) {
			return a * b, nil
		}),
		binary("divide", "division", "Divide a by b and return the result.", func(a, b float64) (float64, error) {
			if b == 0 {
				return 0, errors.New("division by zero is undefined")
			}
			return a / b, nil
		}),
		binary("exponentiate", "exponentiation", "Raise a to the power of b.", func(a, b float64) (float64, error) {
			res := math.Pow(a, b)
			if math.IsNaN(res) || math.IsInf(res, 0) {
				return 0, errors.New("result is not a finite number")
			}
			return res, nil
		}),
		unary("factorial", "Calculate the factorial of a non-negative integer.", func(n float64) (any, string, error) {
			if n < 0 || n != math.Trunc(n) {
				return nil, "", errors.New("factorial requires a non-negative integer")
			}
			if n > MaxFactorial {
				return nil, "", errors.New("factorial input is too large")
			}
			res := 1.0
			for i := 2.0; i <= n; i++ {
				res *= i
			}
			return res, "factorial", nil
		}),
		unary("is_prime", "Check whether a number is prime.", func(n float64) (any, string, error) {
			if n != math.Trunc(n) {
				return false, "prime_check", nil
			}
			return isPrime(int64(n)), "prime_check", nil
		}),
		unary("square_root", "Calculate the square root of a number.", func(n float64) (any, string, error) {
			if n < 0 {
				return nil, "", errors.New("square root of a negative number is undefined")
			}
			return math.Sqrt(n), "square_root", nil
		}),
	}
}

func isPrime(n int64) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for i := int64(3); i*i <= n; i += 2 {
		if n%i == 0 {
			return false
		}
	}
	return true
}
