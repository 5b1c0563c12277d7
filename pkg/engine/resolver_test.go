package engine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/engine"
)

func TestResolver_StaticEnumCustomValue(t *testing.T) {
	p := &scriptedPrompter{answers: []string{engine.CustomValueOption, "staging"}}
	r := &engine.Resolver{Prompter: p}

	v, err := r.Resolve(context.Background(), domain.WorkflowArgument{
		Name:         "env",
		Type:         domain.ArgumentEnum,
		EnumVariants: []string{"dev", "prod"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "staging", v)
	assert.Len(t, p.asked, 2)
}

func TestResolver_DynamicEnumSubstitutesEarlierValue(t *testing.T) {
	shell := &fakeShell{out: "api\n\n  worker  \n"}
	p := &scriptedPrompter{answers: []string{"prod", "worker"}}
	r := &engine.Resolver{Prompter: p, Shell: shell}

	values, err := r.ResolveAll(context.Background(), []domain.WorkflowArgument{
		{Name: "ns", Type: domain.ArgumentEnum, EnumVariants: []string{"dev", "prod"}},
		{Name: "svc", Type: domain.ArgumentEnum, EnumCommand: "kubectl get deploy -n {{ns}} -o name", DynamicResolution: "ns"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ns": "prod", "svc": "worker"}, values)
	assert.Equal(t, []string{"kubectl get deploy -n prod -o name"}, shell.scripts)
}

func TestResolver_DynamicEnumErrors(t *testing.T) {
	arg := domain.WorkflowArgument{Name: "svc", Type: domain.ArgumentEnum, EnumCommand: "ls", DynamicResolution: "ns"}

	t.Run("unresolved reference", func(t *testing.T) {
		r := &engine.Resolver{Prompter: &scriptedPrompter{}, Shell: &fakeShell{out: "a"}}
		_, err := r.Resolve(context.Background(), arg, map[string]string{})
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("no options", func(t *testing.T) {
		r := &engine.Resolver{Prompter: &scriptedPrompter{}, Shell: &fakeShell{out: "\n  \n"}}
		_, err := r.Resolve(context.Background(), arg, map[string]string{"ns": "x"})
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("command fails", func(t *testing.T) {
		r := &engine.Resolver{Prompter: &scriptedPrompter{}, Shell: &fakeShell{err: errors.New("exit 1")}}
		_, err := r.Resolve(context.Background(), arg, map[string]string{"ns": "x"})
		assert.True(t, domain.IsValidation(err))
	})
}

func TestResolver_PresetSkipsPrompt(t *testing.T) {
	r := &engine.Resolver{}

	values, err := r.ResolveAll(context.Background(), []domain.WorkflowArgument{{Name: "who"}}, map[string]string{"who": "me"})
	require.NoError(t, err)
	assert.Equal(t, "me", values["who"])
}

func TestResolver_NoPrompter(t *testing.T) {
	r := &engine.Resolver{}

	_, err := r.ResolveAll(context.Background(), []domain.WorkflowArgument{{Name: "who"}}, nil)
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
}
