package sim

// StationID identifies a station. Station ids share the 32-bit space of the
// MES wire protocol.
type StationID uint32

// TrayID identifies a tray. Ids are assigned at injection, starting at 1.
type TrayID uint32

// WorkpieceID identifies the workpiece (order) a tray is currently carrying.
type WorkpieceID uint32

// NoWorkpiece marks a tray that has not been assigned a workpiece yet.
const NoWorkpiece WorkpieceID = 0

// Tray is the unit of simulation identity. At any instant a tray is owned by
// exactly one of: a station Buffer, a StationWorker mid-service, or a
// detached transfer task.
type Tray struct {
	ID         TrayID
	Workpiece  WorkpieceID
	InjectedAt Time
	// Path lists the stations the tray has been dequeued at, in order.
	Path []StationID
}

// Completion is a completion ledger entry.
type Completion struct {
	Tray        TrayID
	Workpiece   WorkpieceID
	Station     StationID // sink the tray left the network through
	InjectedAt  Time
	CompletedAt Time
	Path        []StationID
}

// Sojourn returns the time the tray spent in the network.
func (c Completion) Sojourn() Time {
	return c.CompletedAt - c.InjectedAt
}
