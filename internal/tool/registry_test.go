package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/taskagent/internal/domain"
)

type fakeTool struct {
	name     string
	params   domain.JSONSchema
	terminal bool
	closed   bool
}

func (f *fakeTool) Info() domain.Tool {
	return domain.Tool{Name: f.name, ShortDescription: "fake " + f.name, Parameters: f.params}
}

func (f *fakeTool) Execute(ctx context.Context, args map[string]any) (*Result, error) {
	return &Result{Output: f.name}, nil
}

func (f *fakeTool) Close() { f.closed = true }

type fakeTerminator struct{ fakeTool }

func (f *fakeTerminator) Terminal() bool { return true }

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&fakeTool{name: "alpha"}))
	require.NoError(t, reg.Register(&fakeTool{name: "beta"}))
	require.NoError(t, reg.Register(NewEndGame()))

	assert.Equal(t, []string{"alpha", "beta", NameEndGame}, reg.Names())
	assert.Equal(t, NameEndGame, reg.Terminator())
	assert.True(t, reg.IsTerminator(NameEndGame))
	assert.False(t, reg.IsTerminator("alpha"))

	list := reg.List()
	require.Len(t, list, 3)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, NameEndGame, list[2].Name)
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&fakeTool{name: "alpha"}))

	err := reg.Register(&fakeTool{name: "alpha"})
	var dup *DuplicateToolError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "alpha", dup.Name)
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryRejectsSecondTerminator(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewEndGame()))

	err := reg.Register(&fakeTerminator{fakeTool{name: "finish"}})
	assert.ErrorIs(t, err, ErrDuplicateTerminator)
	assert.Equal(t, NameEndGame, reg.Terminator())
}

func TestRegistryRejectsBadSchema(t *testing.T) {
	tests := []struct {
		name   string
		params domain.JSONSchema
	}{
		{
			name: "required key not declared",
			params: domain.JSONSchema{
				"type":       "object",
				"properties": map[string]any{"a": map[string]any{"type": "string"}},
				"required":   []string{"b"},
			},
		},
		{
			name:   "type is not a string",
			params: domain.JSONSchema{"type": 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(&fakeTool{name: "bad", params: tt.params})
			var schemaErr *InvalidSchemaError
			require.ErrorAs(t, err, &schemaErr)
			assert.Equal(t, "bad", schemaErr.Name)
		})
	}
}

func TestRegistryAcceptsEmptyRequired(t *testing.T) {
	reg := NewRegistry()
	err := reg.Register(&fakeTool{name: "open", params: domain.JSONSchema{
		"type":       "object",
		"properties": map[string]any{"a": map[string]any{"type": "string"}},
		"required":   []string{},
	}})
	require.NoError(t, err)

	args, err := reg.Validate("open", nil)
	require.NoError(t, err)
	assert.Empty(t, args)
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&fakeTool{name: "alpha"}))

	exec, err := reg.Resolve("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", exec.Info().Name)

	_, err = reg.Resolve("nonexistent_tool")
	var unknown *UnknownToolError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []string{"alpha"}, unknown.Available)
	assert.True(t, IsUnknownTool(err))
	assert.Contains(t, err.Error(), "alpha")
}

func TestRegistryValidate(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(NewFileSaver(t.TempDir(), nil)))

	t.Run("fills defaults", func(t *testing.T) {
		in := map[string]any{"content": "hi", "file_path": "a.txt"}
		out, err := reg.Validate(NameFileSaver, in)
		require.NoError(t, err)
		assert.Equal(t, "w", out["mode"])
		_, touched := in["mode"]
		assert.False(t, touched, "input map must not be modified")
	})

	t.Run("missing required", func(t *testing.T) {
		_, err := reg.Validate(NameFileSaver, map[string]any{"content": "hi"})
		var invalid *InvalidArgumentsError
		require.ErrorAs(t, err, &invalid)
		assert.True(t, IsInvalidArgs(err))
		assert.Contains(t, err.Error(), "file_path")
	})

	t.Run("enum violation", func(t *testing.T) {
		_, err := reg.Validate(NameFileSaver, map[string]any{"content": "hi", "file_path": "a.txt", "mode": "x"})
		assert.True(t, IsInvalidArgs(err))
	})

	t.Run("wrong type", func(t *testing.T) {
		_, err := reg.Validate(NameFileSaver, map[string]any{"content": 12, "file_path": "a.txt"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "content")
	})

	t.Run("undecodable arguments", func(t *testing.T) {
		_, err := reg.Validate(NameFileSaver, map[string]any{domain.RawArgsKey: `{"content": "hi`})
		require.Error(t, err)
		assert.True(t, IsInvalidArgs(err))
		assert.Contains(t, err.Error(), "not a JSON object")
	})

	t.Run("undecodable arguments for a schema without required keys", func(t *testing.T) {
		end := NewRegistry()
		require.NoError(t, end.Register(NewEndGame()))
		_, err := end.Validate(NameEndGame, map[string]any{domain.RawArgsKey: "{oops"})
		assert.True(t, IsInvalidArgs(err))
	})

	t.Run("unknown tool", func(t *testing.T) {
		_, err := reg.Validate("nope", map[string]any{})
		assert.True(t, IsUnknownTool(err))
	})
}

func TestRegistryClose(t *testing.T) {
	reg := NewRegistry()
	ft := &fakeTool{name: "alpha"}
	require.NoError(t, reg.Register(ft))
	require.NoError(t, reg.Register(NewEndGame()))

	reg.Close()
	assert.True(t, ft.closed)
}

func TestToolErrorsUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &ToolExecutionError{Name: "alpha", Err: cause}
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")

	assert.ErrorIs(t, &UnknownToolError{Name: "x"}, ErrToolNotFound)
	assert.ErrorIs(t, &InvalidArgumentsError{Name: "x"}, ErrInvalidArgs)
}
