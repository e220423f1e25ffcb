package vm

import "strings"

// ExceptionKind identifies an exception the runtime raises on its own, as
// opposed to one thrown by bytecode.
type ExceptionKind int

const (
	ExcNullPointer ExceptionKind = iota
	ExcIndexOutOfBounds
	ExcArrayIndexOutOfBounds
	ExcIncompatibleClassChange
	ExcNegativeArraySize
	ExcOutOfMemory
	ExcClassNotFound
	ExcArithmetic
	ExcNoSuchField
	ExcNoSuchMethod
	ExcRuntime
	ExcIO
	ExcFileNotFound
	ExcInterrupted
	ExcNumberFormat
	ExcStringIndexOutOfBounds

	// ExcNotFound is returned by ClassifyException when nothing matches.
	ExcNotFound ExceptionKind = -1
)

// exceptionClasses maps each kind to its class. The unqualified names do not
// resolve to a loadable class, so raising those kinds is fatal.
var exceptionClasses = [...]string{
	ExcNullPointer:             "java/lang/NullPointerException",
	ExcIndexOutOfBounds:        "java/lang/IndexOutOfBoundsException",
	ExcArrayIndexOutOfBounds:   "java/lang/ArrayIndexOutOfBoundsException",
	ExcIncompatibleClassChange: "IncompatibleClassChangeError",
	ExcNegativeArraySize:       "java/lang/NegativeArraySizeException",
	ExcOutOfMemory:             "java/lang/OutOfMemoryError",
	ExcClassNotFound:           "java/lang/ClassNotFoundException",
	ExcArithmetic:              "java/lang/ArithmeticException",
	ExcNoSuchField:             "java/lang/NoSuchFieldError",
	ExcNoSuchMethod:            "java/lang/NoSuchMethodError",
	ExcRuntime:                 "java/lang/RuntimeException",
	ExcIO:                      "java/io/IOException",
	ExcFileNotFound:            "FileNotFoundException",
	ExcInterrupted:             "java/lang/InterruptedException",
	ExcNumberFormat:            "java/lang/NumberFormatException",
	ExcStringIndexOutOfBounds:  "java/lang/StringIndexOutOfBoundsException",
}

// ExceptionKinds returns every kind in table order.
func ExceptionKinds() []ExceptionKind {
	kinds := make([]ExceptionKind, len(exceptionClasses))
	for i := range kinds {
		kinds[i] = ExceptionKind(i)
	}
	return kinds
}

// ClassName returns the class raised for k, or "" if k is not a kind.
func (k ExceptionKind) ClassName() string {
	if k < 0 || int(k) >= len(exceptionClasses) {
		return ""
	}
	return exceptionClasses[k]
}

func (k ExceptionKind) String() string {
	if name := k.ClassName(); name != "" {
		return name
	}
	return "ExceptionKind(?)"
}

// ClassifyException returns the first kind, in table order, whose class name
// contains token. Short tokens can match several entries; the earliest wins
// ("IndexOutOfBounds" is ExcIndexOutOfBounds, not the array variant).
func ClassifyException(token string) (ExceptionKind, bool) {
	for i, name := range exceptionClasses {
		if strings.Contains(name, token) {
			return ExceptionKind(i), true
		}
	}
	return ExcNotFound, false
}
