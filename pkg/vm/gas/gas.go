package gas

import (
	"fmt"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/crypto"
	"github.com/filecoin-project/go-state-types/network"
	"github.com/filecoin-project/go-state-types/proof"
)

// GasCharge is a fully priced unit of work, split into compute and
// storage components. Virtual counters participate in traces but not in
// the amount actually deducted.
type GasCharge struct {
	Name  string
	Extra interface{}

	ComputeGas int64
	StorageGas int64

	VirtualCompute int64
	VirtualStorage int64
}

// Total is the amount deducted from the message gas pool.
func (g GasCharge) Total() int64 {
	return g.ComputeGas + g.StorageGas
}

func (g GasCharge) WithVirtual(compute, storage int64) GasCharge {
	out := g
	out.VirtualCompute = compute
	out.VirtualStorage = storage
	return out
}

func (g GasCharge) WithExtra(extra interface{}) GasCharge {
	out := g
	out.Extra = extra
	return out
}

func NewGasCharge(name string, computeGas int64, storageGas int64) GasCharge {
	return GasCharge{
		Name:       name,
		ComputeGas: computeGas,
		StorageGas: storageGas,
	}
}

// Pricelist provides prices for operations in the vm.
//
// Note: in general the pricelist should be read only once at vm
// construction and treated as constant for the lifetime of that vm.
type Pricelist interface {
	// OnChainMessage returns the gas used for storing a message of a given size in the chain.
	OnChainMessage(msgSize int) GasCharge
	// OnChainReturnValue returns the gas used for storing the response of a message in the chain.
	OnChainReturnValue(dataSize int) GasCharge

	// OnMethodInvocation returns the gas used when invoking a method.
	OnMethodInvocation(value abi.TokenAmount, methodNum abi.MethodNum) GasCharge

	// OnIpldGet returns the gas used for storing an object.
	OnIpldGet() GasCharge
	// OnIpldPut returns the gas used for storing an object.
	OnIpldPut(dataSize int) GasCharge

	// OnCreateActor returns the gas used for creating an actor.
	OnCreateActor() GasCharge
	// OnDeleteActor returns the gas used for deleting an actor.
	OnDeleteActor() GasCharge

	OnVerifySignature(sigType crypto.SigType, planTextSize int) (GasCharge, error)
	OnHashing(dataSize int) GasCharge
	OnComputeUnsealedSectorCid(proofType abi.RegisteredSealProof, pieces []abi.PieceInfo) GasCharge
	OnVerifySeal(info proof.SealVerifyInfo) GasCharge
	OnVerifyAggregateSeals(aggregate proof.AggregateSealVerifyProofAndInfos) GasCharge
	OnVerifyPost(info proof.WindowPoStVerifyInfo) GasCharge
	OnVerifyConsensusFault() GasCharge

	// OnModuleInstantiation returns the gas used for instantiating a
	// compiled module of the given code size inside a sandbox.
	OnModuleInstantiation(codeSize int) GasCharge
	// ExecGasPerFuelUnit is the amount of execution gas one consumed
	// sandbox fuel unit settles to.
	ExecGasPerFuelUnit() int64

	StorageGasMultiplier() int64
}

// PricesSchedule is the versioned set of pricelists. A vm selects one
// pricelist at construction and keeps it for its lifetime.
type PricesSchedule struct {
	prices map[network.Version]Pricelist
}

// NewPricesSchedule builds the default schedule.
func NewPricesSchedule() *PricesSchedule {
	return &PricesSchedule{prices: prices}
}

// PricelistByVersion finds the latest prices defined at or below the
// given network version.
func (schedule *PricesSchedule) PricelistByVersion(nv network.Version) (Pricelist, error) {
	var bestVersion network.Version
	var bestPrice Pricelist
	for version, pl := range schedule.prices {
		if (bestPrice == nil || version > bestVersion) && version <= nv {
			bestVersion = version
			bestPrice = pl
		}
	}
	if bestPrice == nil {
		return nil, fmt.Errorf("no gas price list defined at or below network version %d", nv)
	}
	return bestPrice, nil
}
