package domain

const (
	RolePatient  = "patient"
	RoleProvider = "provider"
)

const (
	ConsultationTypeChat  = "chat"
	ConsultationTypeAudio = "audio"
	ConsultationTypeVideo = "video"
)

const (
	StatusUpcoming  = "upcoming"
	StatusApproved  = "approved"
	StatusCompleted = "completed"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

const (
	PaymentMethodDirect   = "direct"
	PaymentMethodRazorpay = "razorpay"
	PaymentMethodCheckout = "checkout"
)

const (
	ExpiryStageExpired   = "expired"
	ExpiryStagePermanent = "permanently_expired"
)

const (
	ChannelWaiting = "waiting"
	ChannelActive  = "active"
	ChannelEnded   = "ended"
)

const (
	MessageTypeText   = "text"
	MessageTypeFile   = "file"
	MessageTypeSystem = "system"
	MessageTypeAudio  = "audio"
)

// CallBudgetSeconds is the fixed ceiling for one audio/video call.
const CallBudgetSeconds = 1800

func ValidConsultationType(t string) bool {
	switch t {
	case ConsultationTypeChat, ConsultationTypeAudio, ConsultationTypeVideo:
		return true
	}
	return false
}

func ValidMessageType(t string) bool {
	switch t {
	case MessageTypeText, MessageTypeFile, MessageTypeSystem, MessageTypeAudio:
		return true
	}
	return false
}
