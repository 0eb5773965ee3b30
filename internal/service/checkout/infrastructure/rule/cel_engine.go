package rule

import (
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"paysheet/internal/service/checkout/domain"
)

// CELRuleEngine 是 domain.RuleEngine 的 CEL 实现。
// 表达式可以使用 code、price、country、currency 四个变量，结果必须是 bool。
type CELRuleEngine struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

func NewCELRuleEngine() (*CELRuleEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("code", cel.StringType),
		cel.Variable("price", cel.DoubleType),
		cel.Variable("country", cel.StringType),
		cel.Variable("currency", cel.StringType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create CEL environment")
	}
	return &CELRuleEngine{env: env, programs: make(map[string]cel.Program)}, nil
}

// Compile 校验表达式并缓存编译结果，启动时用它提前发现配置错误。
func (e *CELRuleEngine) Compile(rule string) error {
	_, err := e.program(rule)
	return err
}

func (e *CELRuleEngine) Evaluate(rule string, fact domain.Fact) (bool, error) {
	prg, err := e.program(rule)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{
		"code":     fact.Code,
		"price":    fact.Price,
		"country":  fact.Country,
		"currency": fact.Currency,
	})
	if err != nil {
		return false, errors.Wrapf(err, "evaluate rule %q", rule)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("rule %q did not evaluate to bool", rule)
	}
	return allowed, nil
}

func (e *CELRuleEngine) program(rule string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.programs[rule]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, hit = e.programs[rule]; hit {
		return prg, nil
	}

	ast, issues := e.env.Compile(rule)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "compile rule %q", rule)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Errorf("rule %q must be a bool expression, got %s", rule, ast.OutputType())
	}
	prg, err := e.env.Program(ast, cel.CostLimit(10000))
	if err != nil {
		return nil, errors.Wrapf(err, "build program for rule %q", rule)
	}
	e.programs[rule] = prg
	return prg, nil
}
