package gas

import (
	"fmt"

	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/big"
	"github.com/filecoin-project/go-state-types/builtin"
	"github.com/filecoin-project/go-state-types/crypto"
	"github.com/filecoin-project/go-state-types/network"
	"github.com/filecoin-project/go-state-types/proof"
)

type scalingCost struct {
	flat  int64
	scale int64
}

type stepCost []step

type step struct {
	start int64
	cost  int64
}

func (sc stepCost) Lookup(x int64) int64 {
	i := 0
	for ; i < len(sc); i++ {
		if sc[i].start > x {
			break
		}
	}
	i-- // look at previous item
	if i < 0 {
		return 0
	}
	return sc[i].cost
}

type pricelistV0 struct {
	computeGasMulti int64
	storageGasMulti int64

	// onChainMessageComputeBase is the amount of gas charged for any message
	// before it is executed, covering the cost of decoding and initial
	// validation.
	onChainMessageComputeBase    int64
	onChainMessageStorageBase    int64
	onChainMessageStoragePerByte int64

	// onChainReturnValuePerByte is the cost of storing the response of a
	// message in the chain.
	onChainReturnValuePerByte int64

	// sendBase is charged for any message send, to cover the cost of
	// loading sender and receiver.
	sendBase int64
	// sendTransferFunds is charged on top when the send transfers value.
	sendTransferFunds int64
	// sendTransferOnlyPremium is charged when a send is a bare transfer,
	// since otherwise the invocation costs cover the work.
	sendTransferOnlyPremium int64
	// sendInvokeMethod is charged when a send invokes a method.
	sendInvokeMethod int64

	ipldGetBase    int64
	ipldPutBase    int64
	ipldPutPerByte int64

	createActorCompute int64
	createActorStorage int64
	deleteActorStorage int64

	verifySignature map[crypto.SigType]int64

	hashingBase int64

	computeUnsealedSectorCidBase int64
	verifySealBase               int64
	verifyAggregateSealPer       map[abi.RegisteredSealProof]int64
	verifyAggregateSealSteps     map[abi.RegisteredSealProof]stepCost

	verifyPostLookup     map[abi.RegisteredPoStProof]scalingCost
	verifyPostDiscount   bool
	verifyConsensusFault int64

	// moduleInstantiationBase covers setting up a sandbox around a
	// compiled module; the per-byte component scales with code size.
	moduleInstantiationBase    int64
	moduleInstantiationPerByte int64
	// execGasPerFuel converts consumed sandbox fuel into execution gas.
	execGasPerFuel int64
}

var _ Pricelist = (*pricelistV0)(nil)

var prices = map[network.Version]Pricelist{
	network.Version0: &pricelistV0{
		computeGasMulti: 1,
		storageGasMulti: 1000,

		onChainMessageComputeBase:    38863,
		onChainMessageStorageBase:    36,
		onChainMessageStoragePerByte: 1,

		onChainReturnValuePerByte: 1,

		sendBase:                29233,
		sendTransferFunds:       27500,
		sendTransferOnlyPremium: 159672,
		sendInvokeMethod:        -5377,

		ipldGetBase:    75242,
		ipldPutBase:    84070,
		ipldPutPerByte: 1,

		createActorCompute: 1108454,
		createActorStorage: 36 + 40,
		deleteActorStorage: -(36 + 40),

		verifySignature: map[crypto.SigType]int64{
			crypto.SigTypeBLS:       16598605,
			crypto.SigTypeSecp256k1: 1637292,
		},

		hashingBase: 31355,

		computeUnsealedSectorCidBase: 98647,
		verifySealBase:               2000,
		verifyAggregateSealPer: map[abi.RegisteredSealProof]int64{
			abi.RegisteredSealProof_StackedDrg32GiBV1_1: 449900,
			abi.RegisteredSealProof_StackedDrg64GiBV1_1: 359272,
		},
		verifyAggregateSealSteps: map[abi.RegisteredSealProof]stepCost{
			abi.RegisteredSealProof_StackedDrg32GiBV1_1: {
				{4, 103994170},
				{7, 112356810},
				{13, 122912610},
				{26, 137559930},
				{52, 162039100},
				{103, 210960780},
				{205, 318351180},
				{410, 528274980},
			},
			abi.RegisteredSealProof_StackedDrg64GiBV1_1: {
				{4, 102581240},
				{7, 110803030},
				{13, 120803700},
				{26, 134642130},
				{52, 157357890},
				{103, 203017690},
				{205, 304253590},
				{410, 509880640},
			},
		},

		verifyPostLookup: map[abi.RegisteredPoStProof]scalingCost{
			abi.RegisteredPoStProof_StackedDrgWindow512MiBV1: {
				flat:  123861062,
				scale: 9226981,
			},
			abi.RegisteredPoStProof_StackedDrgWindow32GiBV1: {
				flat:  748593537,
				scale: 85639,
			},
			abi.RegisteredPoStProof_StackedDrgWindow64GiBV1: {
				flat:  748593537,
				scale: 85639,
			},
		},
		verifyPostDiscount:   true,
		verifyConsensusFault: 495422,

		moduleInstantiationBase:    2501963,
		moduleInstantiationPerByte: 86,
		execGasPerFuel:             4,
	},
	network.Version16: &pricelistV0{
		computeGasMulti: 1,
		storageGasMulti: 1300,

		onChainMessageComputeBase:    38863,
		onChainMessageStorageBase:    36,
		onChainMessageStoragePerByte: 1,

		onChainReturnValuePerByte: 1,

		sendBase:                29233,
		sendTransferFunds:       27500,
		sendTransferOnlyPremium: 159672,
		sendInvokeMethod:        -5377,

		ipldGetBase:    114617,
		ipldPutBase:    353640,
		ipldPutPerByte: 1,

		createActorCompute: 1108454,
		createActorStorage: 36 + 40,
		deleteActorStorage: -(36 + 40),

		verifySignature: map[crypto.SigType]int64{
			crypto.SigTypeBLS:       16598605,
			crypto.SigTypeSecp256k1: 1637292,
			crypto.SigTypeDelegated: 1637292,
		},

		hashingBase: 31355,

		computeUnsealedSectorCidBase: 98647,
		verifySealBase:               2000,
		verifyAggregateSealPer: map[abi.RegisteredSealProof]int64{
			abi.RegisteredSealProof_StackedDrg32GiBV1_1: 449900,
			abi.RegisteredSealProof_StackedDrg64GiBV1_1: 359272,
		},
		verifyAggregateSealSteps: map[abi.RegisteredSealProof]stepCost{
			abi.RegisteredSealProof_StackedDrg32GiBV1_1: {
				{4, 103994170},
				{7, 112356810},
				{13, 122912610},
				{26, 137559930},
				{52, 162039100},
				{103, 210960780},
				{205, 318351180},
				{410, 528274980},
			},
			abi.RegisteredSealProof_StackedDrg64GiBV1_1: {
				{4, 102581240},
				{7, 110803030},
				{13, 120803700},
				{26, 134642130},
				{52, 157357890},
				{103, 203017690},
				{205, 304253590},
				{410, 509880640},
			},
		},

		verifyPostLookup: map[abi.RegisteredPoStProof]scalingCost{
			abi.RegisteredPoStProof_StackedDrgWindow512MiBV1: {
				flat:  117680921,
				scale: 43780,
			},
			abi.RegisteredPoStProof_StackedDrgWindow32GiBV1: {
				flat:  117680921,
				scale: 43780,
			},
			abi.RegisteredPoStProof_StackedDrgWindow64GiBV1: {
				flat:  117680921,
				scale: 43780,
			},
		},
		verifyPostDiscount:   false,
		verifyConsensusFault: 495422,

		// Instantiation got cheaper once compiled modules were cached
		// across invocations.
		moduleInstantiationBase:    797520,
		moduleInstantiationPerByte: 21,
		execGasPerFuel:             4,
	},
}

func (pl *pricelistV0) OnChainMessage(msgSize int) GasCharge {
	return NewGasCharge("OnChainMessage", pl.onChainMessageComputeBase,
		(pl.onChainMessageStorageBase+int64(msgSize)*pl.onChainMessageStoragePerByte)*pl.storageGasMulti)
}

func (pl *pricelistV0) OnChainReturnValue(dataSize int) GasCharge {
	return NewGasCharge("OnChainReturnValue", 0, int64(dataSize)*pl.onChainReturnValuePerByte*pl.storageGasMulti)
}

func (pl *pricelistV0) OnMethodInvocation(value abi.TokenAmount, methodNum abi.MethodNum) GasCharge {
	ret := pl.sendBase
	extra := ""

	if big.Cmp(value, abi.NewTokenAmount(0)) != 0 {
		ret += pl.sendTransferFunds
		if methodNum == builtin.MethodSend {
			// transfer only
			ret += pl.sendTransferOnlyPremium
		}
		extra += "t"
	}

	if methodNum != builtin.MethodSend {
		extra += "i"
		// running actors is cheaper because we hand over to actors
		ret += pl.sendInvokeMethod
	}
	return NewGasCharge("OnMethodInvocation", ret, 0).WithExtra(extra)
}

func (pl *pricelistV0) OnIpldGet() GasCharge {
	return NewGasCharge("OnIpldGet", pl.ipldGetBase, 0).WithVirtual(114617, 0)
}

func (pl *pricelistV0) OnIpldPut(dataSize int) GasCharge {
	return NewGasCharge("OnIpldPut", pl.ipldPutBase, int64(dataSize)*pl.ipldPutPerByte*pl.storageGasMulti).
		WithExtra(dataSize).WithVirtual(400000, int64(dataSize)*1300)
}

func (pl *pricelistV0) OnCreateActor() GasCharge {
	return NewGasCharge("OnCreateActor", pl.createActorCompute, pl.createActorStorage*pl.storageGasMulti)
}

func (pl *pricelistV0) OnDeleteActor() GasCharge {
	return NewGasCharge("OnDeleteActor", 0, pl.deleteActorStorage*pl.storageGasMulti)
}

func (pl *pricelistV0) OnVerifySignature(sigType crypto.SigType, planTextSize int) (GasCharge, error) {
	cost, ok := pl.verifySignature[sigType]
	if !ok {
		return GasCharge{}, fmt.Errorf("cost function for signature type %d not supported", sigType)
	}

	sigName, _ := sigType.Name()
	return NewGasCharge("OnVerifySignature", cost, 0).
		WithExtra(map[string]interface{}{
			"type": sigName,
			"size": planTextSize,
		}), nil
}

func (pl *pricelistV0) OnHashing(dataSize int) GasCharge {
	return NewGasCharge("OnHashing", pl.hashingBase, 0).WithExtra(dataSize)
}

func (pl *pricelistV0) OnComputeUnsealedSectorCid(proofType abi.RegisteredSealProof, pieces []abi.PieceInfo) GasCharge {
	return NewGasCharge("OnComputeUnsealedSectorCid", pl.computeUnsealedSectorCidBase, 0)
}

func (pl *pricelistV0) OnVerifySeal(info proof.SealVerifyInfo) GasCharge {
	return NewGasCharge("OnVerifySeal", pl.verifySealBase, 0)
}

func (pl *pricelistV0) OnVerifyAggregateSeals(aggregate proof.AggregateSealVerifyProofAndInfos) GasCharge {
	proofType := aggregate.SealProof
	perProof, ok := pl.verifyAggregateSealPer[proofType]
	if !ok {
		perProof = pl.verifyAggregateSealPer[abi.RegisteredSealProof_StackedDrg32GiBV1_1]
	}

	step, ok := pl.verifyAggregateSealSteps[proofType]
	if !ok {
		step = pl.verifyAggregateSealSteps[abi.RegisteredSealProof_StackedDrg32GiBV1_1]
	}
	num := int64(len(aggregate.Infos))
	return NewGasCharge("OnVerifyAggregateSeals", perProof*num+step.Lookup(num), 0)
}

func (pl *pricelistV0) OnVerifyPost(info proof.WindowPoStVerifyInfo) GasCharge {
	sectorSize := "unknown"
	var proofType abi.RegisteredPoStProof

	if len(info.Proofs) != 0 {
		proofType = info.Proofs[0].PoStProof
		ss, err := info.Proofs[0].PoStProof.SectorSize()
		if err == nil {
			sectorSize = ss.ShortString()
		}
	}

	cost, ok := pl.verifyPostLookup[proofType]
	if !ok {
		cost = pl.verifyPostLookup[abi.RegisteredPoStProof_StackedDrgWindow512MiBV1]
	}

	gasUsed := cost.flat + int64(len(info.ChallengedSectors))*cost.scale
	if pl.verifyPostDiscount {
		gasUsed /= 2 // XXX: this is an artificial discount
	}

	return NewGasCharge("OnVerifyPost", gasUsed, 0).
		WithExtra(map[string]interface{}{
			"proof":   sectorSize,
			"sectors": len(info.ChallengedSectors),
		})
}

func (pl *pricelistV0) OnVerifyConsensusFault() GasCharge {
	return NewGasCharge("OnVerifyConsensusFault", pl.verifyConsensusFault, 0)
}

func (pl *pricelistV0) OnModuleInstantiation(codeSize int) GasCharge {
	return NewGasCharge("OnModuleInstantiation",
		pl.moduleInstantiationBase+int64(codeSize)*pl.moduleInstantiationPerByte, 0).
		WithExtra(codeSize)
}

func (pl *pricelistV0) ExecGasPerFuelUnit() int64 {
	return pl.execGasPerFuel
}

func (pl *pricelistV0) StorageGasMultiplier() int64 {
	return pl.storageGasMulti
}
