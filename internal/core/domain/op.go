package domain

// Op is an engine operation selector as it appears on the wire.
type Op string

// Engine operation selectors.
const (
	OpGet             Op = "get"
	OpSet             Op = "set"
	OpGetAndSet       Op = "getAndSet"
	OpDelete          Op = "delete"
	OpGetKeysByPrefix Op = "getKeysByPrefix"
	OpGetMany         Op = "getMany"
	OpIncrement       Op = "increment"
	OpDecrement       Op = "decrement"
	OpSetContains     Op = "setContains"
	OpSetAdd          Op = "setAdd"
	OpSetRemove       Op = "setRemove"
	OpSetMembers      Op = "setMembers"
	OpClearAll        Op = "clearAll"

	// Queue selectors are accepted and never stored.
	OpQueuePush  Op = "queuePush"
	OpQueuePop   Op = "queuePop"
	OpQueueCount Op = "queueCount"
)

// Class is the atomicity class of an operation.
type Class uint8

const (
	// ClassRead operations may run alongside other reads.
	ClassRead Class = iota + 1
	// ClassWrite operations write without reading.
	ClassWrite
	// ClassReadWrite operations read then write as one step.
	ClassReadWrite
	// ClassAdmin operations are maintenance-only.
	ClassAdmin
	// ClassNoop operations touch no state.
	ClassNoop
)

// String returns the class name used in logs and metrics.
func (c Class) String() string {
	switch c {
	case ClassRead:
		return "read"
	case ClassWrite:
		return "write"
	case ClassReadWrite:
		return "read_write"
	case ClassAdmin:
		return "admin"
	case ClassNoop:
		return "noop"
	default:
		return "unknown"
	}
}

// Exclusive reports whether operations of this class must exclude every
// other operation on the same instance.
func (c Class) Exclusive() bool {
	return c == ClassWrite || c == ClassReadWrite || c == ClassAdmin
}

var opClasses = map[Op]Class{
	OpGet:             ClassRead,
	OpSet:             ClassWrite,
	OpGetAndSet:       ClassReadWrite,
	OpDelete:          ClassWrite,
	OpGetKeysByPrefix: ClassRead,
	OpGetMany:         ClassRead,
	OpIncrement:       ClassReadWrite,
	OpDecrement:       ClassReadWrite,
	OpSetContains:     ClassRead,
	OpSetAdd:          ClassReadWrite,
	OpSetRemove:       ClassReadWrite,
	OpSetMembers:      ClassRead,
	OpClearAll:        ClassAdmin,
	OpQueuePush:       ClassNoop,
	OpQueuePop:        ClassNoop,
	OpQueueCount:      ClassNoop,
}

// ParseOp validates a wire selector.
func ParseOp(s string) (Op, error) {
	op := Op(s)
	if _, ok := opClasses[op]; !ok {
		return "", ErrUnknownOperation.WithDetails(s)
	}
	return op, nil
}

// Class returns the atomicity class of op, or zero for unknown selectors.
func (op Op) Class() Class {
	return opClasses[op]
}

// Valid reports whether op is a known selector.
func (op Op) Valid() bool {
	_, ok := opClasses[op]
	return ok
}

// IsAdmin reports whether op is reachable only through the maintenance entry point.
func (op Op) IsAdmin() bool {
	return op.Class() == ClassAdmin
}

// Ops returns every known selector.
func Ops() []Op {
	ops := make([]Op, 0, len(opClasses))
	for op := range opClasses {
		ops = append(ops, op)
	}
	return ops
}
