package circuit

// Builtin identifies a module whose behaviour is implemented in Go rather
// than by a nested circuit.
type Builtin int

// Built-in modules. BuiltinNone marks a custom module.
const (
	BuiltinNone Builtin = iota
	// Input is the hidden boundary block feeding a custom module body.
	BuiltinInput
	// Output is the hidden boundary block collecting a custom module's results.
	BuiltinOutput
	BuiltinHigh
	BuiltinLow
	BuiltinBuffer
	BuiltinNot
	BuiltinAnd
	BuiltinOr
	BuiltinXor
	BuiltinNand
	BuiltinNor
	BuiltinXnor
	// Button emits a one tick pulse after each press.
	BuiltinButton
	// Switch emits its latched level; pressing it toggles the level.
	BuiltinSwitch
	// Lamp passes its input through and remembers it for display.
	BuiltinLamp
	// Clock toggles its output every tick.
	BuiltinClock
	// DFlipFlop latches D on the rising edge of Clk.
	//
	//	Inputs: d, clk
	//	Outputs: q
	BuiltinDFlipFlop
)

// Builtins lists every built-in module in palette order.
var Builtins = []Builtin{
	BuiltinInput, BuiltinOutput,
	BuiltinHigh, BuiltinLow,
	BuiltinBuffer, BuiltinNot,
	BuiltinAnd, BuiltinOr, BuiltinXor, BuiltinNand, BuiltinNor, BuiltinXnor,
	BuiltinButton, BuiltinSwitch, BuiltinLamp, BuiltinClock,
	BuiltinDFlipFlop,
}

// Module categories.
const (
	CategoryHidden = "hidden"
	CategorySource = "source"
	CategoryGate   = "gate"
	CategoryIO     = "io"
	CategoryMemory = "memory"
	CategoryCustom = "custom"
)

func (b Builtin) String() string {
	switch b {
	case BuiltinNone:
		return "None"
	case BuiltinInput:
		return "Input"
	case BuiltinOutput:
		return "Output"
	case BuiltinHigh:
		return "High"
	case BuiltinLow:
		return "Low"
	case BuiltinBuffer:
		return "Buffer"
	case BuiltinNot:
		return "Not"
	case BuiltinAnd:
		return "And"
	case BuiltinOr:
		return "Or"
	case BuiltinXor:
		return "Xor"
	case BuiltinNand:
		return "Nand"
	case BuiltinNor:
		return "Nor"
	case BuiltinXnor:
		return "Xnor"
	case BuiltinButton:
		return "Button"
	case BuiltinSwitch:
		return "Switch"
	case BuiltinLamp:
		return "Lamp"
	case BuiltinClock:
		return "Clock"
	case BuiltinDFlipFlop:
		return "DFlipFlop"
	}
	return "Builtin(?)"
}

// ports returns the default input and output counts.
func (b Builtin) ports() (inputs, outputs int) {
	switch b {
	case BuiltinInput, BuiltinHigh, BuiltinLow, BuiltinButton, BuiltinSwitch, BuiltinClock:
		return 0, 1
	case BuiltinOutput:
		return 1, 0
	case BuiltinBuffer, BuiltinNot, BuiltinLamp:
		return 1, 1
	case BuiltinAnd, BuiltinOr, BuiltinXor, BuiltinNand, BuiltinNor, BuiltinXnor, BuiltinDFlipFlop:
		return 2, 1
	}
	return 0, 0
}

func (b Builtin) category() string {
	switch b {
	case BuiltinInput, BuiltinOutput:
		return CategoryHidden
	case BuiltinHigh, BuiltinLow, BuiltinClock:
		return CategorySource
	case BuiltinButton, BuiltinSwitch, BuiltinLamp:
		return CategoryIO
	case BuiltinDFlipFlop:
		return CategoryMemory
	}
	return CategoryGate
}

func (b Builtin) decoration() string {
	switch b {
	case BuiltinHigh:
		return "1"
	case BuiltinLow:
		return "0"
	case BuiltinNot:
		return "!"
	case BuiltinAnd:
		return "&"
	case BuiltinOr:
		return ">=1"
	case BuiltinXor:
		return "=1"
	case BuiltinNand:
		return "!&"
	case BuiltinNor:
		return "!>=1"
	case BuiltinXnor:
		return "!=1"
	case BuiltinClock:
		return "~"
	case BuiltinDFlipFlop:
		return "D"
	}
	return ""
}

// stateful reports whether the output depends on more than the current
// inputs.
func (b Builtin) stateful() bool {
	switch b {
	case BuiltinButton, BuiltinSwitch, BuiltinLamp, BuiltinClock, BuiltinDFlipFlop:
		return true
	}
	return false
}

// Interactive reports whether the user can operate blocks of this kind.
func (b Builtin) Interactive() bool {
	return b == BuiltinButton || b == BuiltinSwitch
}

func (b Builtin) initialState() State {
	switch b {
	case BuiltinInput, BuiltinOutput, BuiltinButton, BuiltinSwitch, BuiltinLamp, BuiltinClock, BuiltinDFlipFlop:
		return State{Kind: StateDirect}
	}
	return State{}
}

func gate2(in Bits, fn func(a, b bool) bool) Bits {
	return BitsOf(fn(in.Bit(0), in.Bit(1)))
}

// eval computes the outputs of blk for the given inputs, updating the block
// state for stateful kinds.
func (b Builtin) eval(in Bits, blk *Block) Bits {
	st := &blk.State
	switch b {
	case BuiltinInput:
		return st.Bits.Mask(blk.Outputs)
	case BuiltinOutput:
		st.Kind, st.Bits = StateDirect, in.Mask(blk.Inputs)
		return Bits{}
	case BuiltinHigh:
		return BitsOf(true)
	case BuiltinLow:
		return Bits{}
	case BuiltinBuffer:
		return BitsOf(in.Bit(0))
	case BuiltinNot:
		return BitsOf(!in.Bit(0))
	case BuiltinAnd:
		return gate2(in, func(a, b bool) bool { return a && b })
	case BuiltinOr:
		return gate2(in, func(a, b bool) bool { return a || b })
	case BuiltinXor:
		return gate2(in, func(a, b bool) bool { return a != b })
	case BuiltinNand:
		return gate2(in, func(a, b bool) bool { return !(a && b) })
	case BuiltinNor:
		return gate2(in, func(a, b bool) bool { return !(a || b) })
	case BuiltinXnor:
		return gate2(in, func(a, b bool) bool { return a == b })
	case BuiltinButton:
		out := st.Bits.Mask(1)
		st.Kind, st.Bits = StateDirect, Bits{}
		return out
	case BuiltinSwitch:
		st.Kind = StateDirect
		return st.Bits.Mask(1)
	case BuiltinLamp:
		st.Kind, st.Bits = StateDirect, in.Mask(1)
		return in.Mask(1)
	case BuiltinClock:
		st.Kind, st.Bits = StateDirect, BitsOf(!st.Bits.Bit(0))
		return st.Bits
	case BuiltinDFlipFlop:
		q, prev := st.Bits.Bit(0), st.Bits.Bit(1)
		clk := in.Bit(1)
		if clk && !prev {
			q = in.Bit(0)
		}
		st.Kind, st.Bits = StateDirect, BitsOf(q, clk)
		return BitsOf(q)
	}
	return Bits{}
}

// press operates an interactive block: a button is pressed until its next
// evaluation, a switch flips.
func (b Builtin) press(blk *Block) bool {
	switch b {
	case BuiltinButton:
		blk.State = State{Kind: StateDirect, Bits: BitsOf(true)}
		return true
	case BuiltinSwitch:
		blk.State = State{Kind: StateDirect, Bits: BitsOf(!blk.State.Bits.Bit(0))}
		return true
	}
	return false
}
