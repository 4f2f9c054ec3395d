package core

// Phase is the channel state of one transaction. Exactly one of the variants
// below is held at any time; the zero value (nil) reads as idle.
type Phase interface {
	phase()
}

// PhaseIdle: submitted and queued, not yet granted.
type PhaseIdle struct{}

// PhaseAddress: granted and presented on the address channel since Since.
type PhaseAddress struct {
	Since int
}

// PhaseData: address accepted. Writes wait for their data beat, reads are
// being serviced by the slave.
type PhaseData struct {
	Since     int
	DataTaken bool
}

// PhaseResponse: the slave result is ready and waits on the response channel.
type PhaseResponse struct {
	Since int
}

func (PhaseIdle) phase()     {}
func (PhaseAddress) phase()  {}
func (PhaseData) phase()     {}
func (PhaseResponse) phase() {}

// PhaseName returns a stable label for p.
func PhaseName(p Phase) string {
	switch p.(type) {
	case nil, PhaseIdle:
		return "idle"
	case PhaseAddress:
		return "address"
	case PhaseData:
		return "data"
	case PhaseResponse:
		return "response"
	default:
		return "unknown"
	}
}
