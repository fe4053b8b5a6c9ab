package services

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"gopkg.in/yaml.v3"

	"github.com/inforlary/belkys-sub012/pkg/apperr"
)

// TransitionRule is one configurable gate over a status change. The
// expression evaluates over ctx["record_type"|"from"|"to"|"role"] and
// must come out true for the change to proceed; a false result denies
// with the rule's reason code.
type TransitionRule struct {
	RecordType string `yaml:"record_type"`
	Expr       string `yaml:"expr"`
	Reason     string `yaml:"reason"`
}

type transitionRulesFile struct {
	Rules []TransitionRule `yaml:"rules"`
}

var newTransitionCELEnv = func() (*cel.Env, error) {
	return cel.NewEnv(cel.Variable("ctx", cel.MapType(cel.StringType, cel.StringType)))
}

var transitionProgramCache sync.Map

// TransitionPolicy evaluates the configured rules for one record type.
// A nil policy, or a record type with no rules, allows every change.
type TransitionPolicy struct {
	rules []TransitionRule
}

func LoadTransitionPolicy(path string) (*TransitionPolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: read transition rules: %w", err)
	}
	return ParseTransitionPolicy(raw)
}

// ParseTransitionPolicy compiles every rule eagerly so malformed
// expressions fail at startup, not mid-request.
func ParseTransitionPolicy(raw []byte) (*TransitionPolicy, error) {
	var file transitionRulesFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("lifecycle: parse transition rules: %w", err)
	}
	for i, rule := range file.Rules {
		if strings.TrimSpace(rule.RecordType) == "" {
			return nil, fmt.Errorf("lifecycle: transition rule %d: record_type required", i)
		}
		if strings.TrimSpace(rule.Reason) == "" {
			return nil, fmt.Errorf("lifecycle: transition rule %d: reason required", i)
		}
		if _, err := loadOrCompileTransitionProgram(rule.Expr); err != nil {
			return nil, fmt.Errorf("lifecycle: transition rule %d: %w", i, err)
		}
	}
	return &TransitionPolicy{rules: file.Rules}, nil
}

// Check evaluates the record type's rules in file order and denies on
// the first rule that comes out false.
func (p *TransitionPolicy) Check(recordType string, from string, to string, role string) error {
	if p == nil {
		return nil
	}
	ctxMap := map[string]string{
		"record_type": recordType,
		"from":        from,
		"to":          to,
		"role":        role,
	}
	for _, rule := range p.rules {
		if rule.RecordType != recordType && rule.RecordType != "*" {
			continue
		}
		allowed, err := evalTransitionExpr(rule.Expr, ctxMap)
		if err != nil {
			return fmt.Errorf("lifecycle: transition rule %q: %w", rule.Reason, err)
		}
		if !allowed {
			return apperr.NewAuthorizationDenied(rule.Reason)
		}
	}
	return nil
}

func evalTransitionExpr(expr string, ctxMap map[string]string) (bool, error) {
	program, err := loadOrCompileTransitionProgram(expr)
	if err != nil {
		return false, err
	}
	out, _, err := program.Eval(map[string]any{"ctx": ctxMap})
	if err != nil {
		return false, err
	}
	v, ok := out.Value().(bool)
	if !ok {
		return false, errors.New("expression did not produce a bool")
	}
	return v, nil
}

func loadOrCompileTransitionProgram(expr string) (cel.Program, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("expression required")
	}
	if cached, ok := transitionProgramCache.Load(expr); ok {
		return cached.(cel.Program), nil
	}
	env, err := newTransitionCELEnv()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if ast.OutputType() != cel.BoolType {
		return nil, errors.New("expression output type must be bool")
	}
	program, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	transitionProgramCache.Store(expr, program)
	return program, nil
}
