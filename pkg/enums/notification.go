package enums

// NotificationType tags feed entries. Settlement entries record contract
// outcomes, shame entries record that an SMS went out to the contacts.
type NotificationType string

const (
	NotificationTypeSettlement NotificationType = "settlement"
	NotificationTypeShame      NotificationType = "shame"
)
