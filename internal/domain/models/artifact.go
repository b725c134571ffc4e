package models

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ContractArtifact is a compiled contract ready to be deployed. It is
// immutable once loaded.
type ContractArtifact struct {
	Name       string
	SourcePath string
	Bytecode   []byte
	ABI        abi.ABI
	// Interface lists callable signatures in declaration order, constructor first
	Interface []string
}

// HasConstructor reports whether the artifact declares constructor inputs
func (a *ContractArtifact) HasConstructor() bool {
	return len(a.ABI.Constructor.Inputs) > 0
}

// FindMethod resolves a method by name or full signature, e.g.
// "initialize" or "initialize(address,uint256)".
func (a *ContractArtifact) FindMethod(ref string) (abi.Method, bool) {
	if m, ok := a.ABI.Methods[ref]; ok {
		return m, true
	}
	if strings.Contains(ref, "(") {
		for _, m := range a.ABI.Methods {
			if m.Sig == ref {
				return m, true
			}
		}
	}
	return abi.Method{}, false
}

// InitializerNames are the method names treated as post-deployment initializers
var InitializerNames = []string{"initialize", "init", "initializer"}

// FindInitializer returns the initializer method taking argCount inputs
func (a *ContractArtifact) FindInitializer(argCount int) (abi.Method, bool) {
	for _, name := range InitializerNames {
		for _, m := range a.ABI.Methods {
			if strings.EqualFold(m.RawName, name) && len(m.Inputs) == argCount {
				return m, true
			}
		}
	}
	return abi.Method{}, false
}
