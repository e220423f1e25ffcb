package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daimatz/gojvm-throw/pkg/classfile"
	"github.com/daimatz/gojvm-throw/pkg/vm"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCatalogCmd(t *testing.T) {
	out, err := execute(t, "catalog")
	require.NoError(t, err)
	assert.Contains(t, out, " 0  java/lang/NullPointerException\n")
	assert.Contains(t, out, "15  java/lang/StringIndexOutOfBoundsException\n")

	out, err = execute(t, "catalog", "ArrayIndexOutOfBounds")
	require.NoError(t, err)
	assert.Equal(t, "2  java/lang/ArrayIndexOutOfBoundsException\n", out)

	_, err = execute(t, "catalog", "NoSuchToken")
	assert.ErrorContains(t, err, "NoSuchToken")
}

func TestSimulateCmd(t *testing.T) {
	dir := t.TempDir()
	handled := filepath.Join(dir, "handled.yaml")
	require.NoError(t, os.WriteFile(handled, []byte(`
frames:
  - class: app/Main
    pc: 2
    handlers:
      - {start: 0, end: 4, handler: 9, catch: java/lang/ArithmeticException}
  - class: app/Worker
    pc: 0
throw:
  kind: Arithmetic
  message: / by zero
`), 0o644))

	out, err := execute(t, "simulate", handled)
	require.NoError(t, err)
	assert.Equal(t, "java/lang/ArithmeticException: / by zero\n  handled by app/Main.run at pc 9, 1 frame(s) unwound\n", out)

	unhandled := filepath.Join(dir, "unhandled.yaml")
	require.NoError(t, os.WriteFile(unhandled, []byte("frames: []\nthrow:\n  null_ref: true\n"), 0o644))
	_, err = execute(t, "simulate", unhandled)
	var fatal *vm.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "No handler for exception java/lang/NullPointerException!", err.Error())
}

func TestRunCmd(t *testing.T) {
	b := classfile.NewBuilder("app/Hello", "java/lang/Object")
	out := b.Fieldref("java/lang/System", "out", "Ljava/io/PrintStream;")
	printInt := b.Methodref("java/io/PrintStream", "println", "(I)V")
	b.Method(classfile.AccPublic|classfile.AccStatic, "main", "([Ljava/lang/String;)V", &classfile.CodeAttribute{
		MaxStack:  2,
		MaxLocals: 1,
		Code: []byte{
			vm.OpGetstatic, byte(out >> 8), byte(out),
			vm.OpBipush, 42,
			vm.OpInvokevirtual, byte(printInt >> 8), byte(printInt),
			vm.OpReturn,
		},
	})

	dir := t.TempDir()
	path := filepath.Join(dir, "app", "Hello.class")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, classfile.Write(f, b.Build()))
	require.NoError(t, f.Close())

	t.Run("class file", func(t *testing.T) {
		got, err := execute(t, "run", path)
		require.NoError(t, err)
		assert.Equal(t, "42\n", got)
	})

	t.Run("class name", func(t *testing.T) {
		got, err := execute(t, "run", "--classpath", dir, "app.Hello")
		require.NoError(t, err)
		assert.Equal(t, "42\n", got)
	})

	t.Run("misplaced class file", func(t *testing.T) {
		moved := filepath.Join(t.TempDir(), "Hello.class")
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(moved, data, 0o644))

		_, err = execute(t, "run", moved)
		assert.ErrorContains(t, err, "declares class app/Hello")
	})
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gojvm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log-level: nonsense\n"), 0o644))

	_, err := execute(t, "--config", path, "catalog")
	assert.ErrorContains(t, err, "log-level")
}

func TestFlagsOverrideConfig(t *testing.T) {
	_, err := execute(t, "--log-level", "nonsense", "catalog")
	assert.ErrorContains(t, err, "log-level")

	path := filepath.Join(t.TempDir(), "gojvm.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log-level: nonsense\n"), 0o644))
	_, err = execute(t, "--config", path, "--log-level", "debug", "catalog")
	assert.NoError(t, err)

	t.Setenv("GOJVM_LOG_LEVEL", "nonsense")
	_, err = execute(t, "catalog")
	assert.ErrorContains(t, err, "log-level")
}
