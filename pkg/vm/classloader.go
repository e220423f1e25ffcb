package vm

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/daimatz/gojvm-throw/pkg/classfile"
)

// ErrClassNotFound is returned (wrapped) when no loader defines a class.
var ErrClassNotFound = errors.New("class not found")

// ClassLoader loads .class files by class name.
type ClassLoader interface {
	LoadClass(name string) (*classfile.ClassFile, error)
}

// coreHierarchy lists the classes the bootstrap loader defines, each after
// its superclass. The catalog's unqualified names are deliberately absent.
var coreHierarchy = []struct{ name, super string }{
	{"java/lang/Object", ""},
	{"java/lang/String", "java/lang/Object"},
	{"java/lang/System", "java/lang/Object"},
	{"java/io/PrintStream", "java/lang/Object"},
	{"java/lang/Throwable", "java/lang/Object"},
	{"java/lang/Exception", "java/lang/Throwable"},
	{"java/lang/Error", "java/lang/Throwable"},
	{"java/lang/RuntimeException", "java/lang/Exception"},
	{"java/lang/NullPointerException", "java/lang/RuntimeException"},
	{"java/lang/IndexOutOfBoundsException", "java/lang/RuntimeException"},
	{"java/lang/ArrayIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException"},
	{"java/lang/StringIndexOutOfBoundsException", "java/lang/IndexOutOfBoundsException"},
	{"java/lang/NegativeArraySizeException", "java/lang/RuntimeException"},
	{"java/lang/ArithmeticException", "java/lang/RuntimeException"},
	{"java/lang/ClassCastException", "java/lang/RuntimeException"},
	{"java/lang/IllegalArgumentException", "java/lang/RuntimeException"},
	{"java/lang/NumberFormatException", "java/lang/IllegalArgumentException"},
	{"java/lang/ReflectiveOperationException", "java/lang/Exception"},
	{"java/lang/ClassNotFoundException", "java/lang/ReflectiveOperationException"},
	{"java/lang/InterruptedException", "java/lang/Exception"},
	{"java/io/IOException", "java/lang/Exception"},
	{"java/io/FileNotFoundException", "java/io/IOException"},
	{"java/lang/VirtualMachineError", "java/lang/Error"},
	{"java/lang/OutOfMemoryError", "java/lang/VirtualMachineError"},
	{"java/lang/LinkageError", "java/lang/Error"},
	{"java/lang/IncompatibleClassChangeError", "java/lang/LinkageError"},
	{"java/lang/NoSuchFieldError", "java/lang/IncompatibleClassChangeError"},
	{"java/lang/NoSuchMethodError", "java/lang/IncompatibleClassChangeError"},
}

// BootstrapClassLoader defines the core library classes in memory. Their
// methods carry no Code attribute and are implemented by the VM natively.
type BootstrapClassLoader struct {
	supers map[string]string
	Cache  map[string]*classfile.ClassFile
}

// NewBootstrapClassLoader creates a new BootstrapClassLoader.
func NewBootstrapClassLoader() *BootstrapClassLoader {
	supers := make(map[string]string, len(coreHierarchy))
	for _, c := range coreHierarchy {
		supers[c.name] = c.super
	}
	return &BootstrapClassLoader{
		supers: supers,
		Cache:  make(map[string]*classfile.ClassFile),
	}
}

func (cl *BootstrapClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	if cf, ok := cl.Cache[name]; ok {
		return cf, nil
	}
	super, ok := cl.supers[name]
	if !ok {
		return nil, fmt.Errorf("bootstrap: %s: %w", name, ErrClassNotFound)
	}

	b := classfile.NewBuilder(name, super)
	switch name {
	case "java/lang/Object":
		b.Method(classfile.AccPublic, "<init>", "()V", nil)
	case "java/lang/String":
		b.Field(0, "value", "[C")
	case "java/lang/System":
		b.Field(classfile.AccPublic|classfile.AccStatic, "out", "Ljava/io/PrintStream;")
	case "java/io/PrintStream":
		b.Method(classfile.AccPublic, "println", "()V", nil)
		b.Method(classfile.AccPublic, "println", "(I)V", nil)
		b.Method(classfile.AccPublic, "println", "(Ljava/lang/String;)V", nil)
	case "java/lang/Throwable":
		b.Field(0, "detailMessage", "Ljava/lang/String;")
		b.Method(classfile.AccPublic, "<init>", "()V", nil)
		b.Method(classfile.AccPublic, "<init>", "(Ljava/lang/String;)V", nil)
		b.Method(classfile.AccPublic, "getMessage", "()Ljava/lang/String;", nil)
	}

	cf := b.Build()
	cl.Cache[name] = cf
	return cf, nil
}

// UserClassLoader loads user classes from the classpath, delegating to the parent first.
type UserClassLoader struct {
	ClassPath []string
	Parent    ClassLoader
	Cache     map[string]*classfile.ClassFile
}

// NewUserClassLoader creates a new UserClassLoader. classPath is a list of
// directories separated by os.PathListSeparator.
func NewUserClassLoader(classPath string, parent ClassLoader) *UserClassLoader {
	var dirs []string
	for _, dir := range filepath.SplitList(classPath) {
		if dir = strings.TrimSpace(dir); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return &UserClassLoader{
		ClassPath: dirs,
		Parent:    parent,
		Cache:     make(map[string]*classfile.ClassFile),
	}
}

func (cl *UserClassLoader) LoadClass(name string) (*classfile.ClassFile, error) {
	if cf, ok := cl.Cache[name]; ok {
		return cf, nil
	}
	if cl.Parent != nil {
		if cf, err := cl.Parent.LoadClass(name); err == nil {
			return cf, nil
		}
	}
	for _, dir := range cl.ClassPath {
		path := filepath.Join(dir, filepath.FromSlash(name)+".class")
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cf, err := classfile.ParseFile(path)
		if err != nil {
			return nil, fmt.Errorf("user: parsing %s: %w", path, err)
		}
		cl.Cache[name] = cf
		return cf, nil
	}
	return nil, fmt.Errorf("user: %s: %w", name, ErrClassNotFound)
}
