package vm

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rs/zerolog"
)

// ClassArea links class files from a ClassLoader into runtime Classes and
// caches them by name. It is owned by one VM.
type ClassArea struct {
	loader  ClassLoader
	classes map[string]*Class
	linking map[string]bool
	log     zerolog.Logger
}

// NewClassArea creates a ClassArea backed by loader.
func NewClassArea(loader ClassLoader, log zerolog.Logger) *ClassArea {
	return &ClassArea{
		loader:  loader,
		classes: make(map[string]*Class),
		linking: make(map[string]bool),
		log:     log.With().Str("component", "classarea").Logger(),
	}
}

// ResolveClass returns the linked class called name, loading and linking it
// and its superclasses on first use. Array descriptors ("[C", "[I",
// "[Ljava/lang/String;") resolve to array classes extending java/lang/Object.
func (a *ClassArea) ResolveClass(name string) (*Class, error) {
	if cls, ok := a.classes[name]; ok {
		return cls, nil
	}
	if a.linking[name] {
		return nil, fmt.Errorf("linking %s: circular superclass chain", name)
	}
	a.linking[name] = true
	defer delete(a.linking, name)

	if strings.HasPrefix(name, "[") {
		object, err := a.ResolveClass("java/lang/Object")
		if err != nil {
			return nil, fmt.Errorf("linking array class %s: %w", name, err)
		}
		cls := &Class{Name: name, Super: object, Array: true}
		a.classes[name] = cls
		return cls, nil
	}

	cf, err := a.loader.LoadClass(name)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", name, err)
	}
	if declared, err := cf.ClassName(); err != nil || declared != name {
		return nil, fmt.Errorf("resolving %s: class file declares %q", name, declared)
	}

	cls := &Class{Name: name, File: cf}
	if superName := cf.SuperClassName(); superName != "" {
		if cls.Super, err = a.ResolveClass(superName); err != nil {
			return nil, fmt.Errorf("linking %s: superclass: %w", name, err)
		}
		cls.Fields = slices.Clone(cls.Super.Fields)
	}
	cls.Fields = append(cls.Fields, cf.InstanceFields()...)

	a.classes[name] = cls
	a.log.Debug().
		Str("class", name).
		Stringer("super", superStringer{cls.Super}).
		Int("slots", len(cls.Fields)).
		Msg("class linked")
	return cls, nil
}

// SuperclassOf returns the direct superclass of cls, or nil for the root.
func (a *ClassArea) SuperclassOf(cls *Class) *Class {
	if cls == nil {
		return nil
	}
	return cls.Super
}

// NameOf returns the fully qualified name of cls.
func (a *ClassArea) NameOf(cls *Class) string {
	return cls.Name
}

// ResolveConstantClassName resolves a CONSTANT_Class index in cls's pool.
func (a *ClassArea) ResolveConstantClassName(index uint16, cls *Class) (string, error) {
	return cls.ConstantClassName(index)
}

// Loaded returns the number of linked classes.
func (a *ClassArea) Loaded() int {
	return len(a.classes)
}

type superStringer struct{ cls *Class }

func (s superStringer) String() string {
	if s.cls == nil {
		return "-"
	}
	return s.cls.Name
}
