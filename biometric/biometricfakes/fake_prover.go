package biometricfakes

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-auth-client/biometric"
)

var _ biometric.Prover = (*FakeProver)(nil)

// FakeProver is a scriptable biometric.Prover.
type FakeProver struct {
	lock sync.Mutex

	Capability    biometric.Capability
	CapabilityErr error

	ProofResult biometric.ProofResult
	ProofErr    error

	proofCalls []string
}

func NewFakeProver() *FakeProver {
	return &FakeProver{}
}

func (p *FakeProver) CheckCapability(_ context.Context) (biometric.Capability, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.Capability, p.CapabilityErr
}

func (p *FakeProver) RequestProof(_ context.Context, promptText string) (biometric.ProofResult, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.proofCalls = append(p.proofCalls, promptText)
	return p.ProofResult, p.ProofErr
}

// ProofCallCount returns how many times RequestProof was invoked.
func (p *FakeProver) ProofCallCount() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.proofCalls)
}
