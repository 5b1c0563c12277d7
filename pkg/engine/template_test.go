package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/wflow/pkg/domain"
	"github.com/aretw0/wflow/pkg/engine"
)

func TestRenderCommand(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		args map[string]string
		want string
	}{
		{"plain", "echo hi", nil, "echo hi"},
		{"single", "echo {{who}}", map[string]string{"who": "bob"}, "echo bob"},
		{"spaces", "echo {{ who }}", map[string]string{"who": "bob"}, "echo bob"},
		{"repeated", "{{a}}-{{a}}", map[string]string{"a": "x"}, "x-x"},
		{"dashed name", "ssh {{host-name}}", map[string]string{"host-name": "db1"}, "ssh db1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.RenderCommand(tt.tmpl, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRenderCommand_MissingArgument(t *testing.T) {
	_, err := engine.RenderCommand("echo {{a}} {{b}}", map[string]string{"a": "1"})
	require.Error(t, err)
	assert.True(t, domain.IsValidation(err))
	assert.Contains(t, err.Error(), "b")
}
