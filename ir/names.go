package ir

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedIR is returned for structurally invalid programs.
	ErrMalformedIR = errors.New("malformed IR")
	// ErrUnresolvedSignature is returned when a statement references a class,
	// field or method that is not declared.
	ErrUnresolvedSignature = errors.New("unresolved signature")
)

// Names of classes with special meaning to the analysis and its models.
const (
	ObjectClass       = "java.lang.Object"
	StringClass       = "java.lang.String"
	ClassClass        = "java.lang.Class"
	ThrowableClass    = "java.lang.Throwable"
	SystemClass       = "java.lang.System"
	ThreadClass       = "java.lang.Thread"
	MethodHandleClass = "java.lang.invoke.MethodHandle"
	LookupClass       = "java.lang.invoke.MethodHandles$Lookup"
	MethodTypeClass   = "java.lang.invoke.MethodType"
)

// Subsignatures of special methods.
const (
	InitName = "<init>"
)

// Signature formats the signature of a method: "<Class: name(T1,T2)>".
func Signature(class string, sub Subsignature) string {
	return "<" + class + ": " + string(sub) + ">"
}

func validateSignature(sig string) error {
	if !strings.HasPrefix(sig, "<") || !strings.HasSuffix(sig, ">") || !strings.Contains(sig, ": ") {
		return fmt.Errorf("%w: invalid signature %q", ErrMalformedIR, sig)
	}
	return nil
}

// SplitSignature splits a method signature into its class name and
// subsignature.
func SplitSignature(sig string) (string, Subsignature, error) {
	if err := validateSignature(sig); err != nil {
		return "", "", err
	}

	i := strings.Index(sig, ": ")
	return sig[1:i], Subsignature(sig[i+2 : len(sig)-1]), nil
}

// ClassNameOf returns the class name part of a method signature.
func ClassNameOf(sig string) (string, error) {
	class, _, err := SplitSignature(sig)
	return class, err
}

// SubsignatureOf returns the subsignature part of a method signature.
func SubsignatureOf(sig string) (Subsignature, error) {
	_, sub, err := SplitSignature(sig)
	return sub, err
}
